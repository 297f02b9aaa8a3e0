// seehuhn.de/go/pdfprotect - password protection for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package testpdf generates PDF documents for use in unit tests.
package testpdf

import (
	"bytes"
	"fmt"

	"golang.org/x/text/language"
	pdf "seehuhn.de/go/pdfprotect"
	"seehuhn.de/go/pdfprotect/pagetree"
	"seehuhn.de/go/xmp"
)

// Document returns a new document with the given number of pages.  Every
// page has a small content stream which shows the page number.  The
// document has an information dictionary with the given title.
func Document(numPages int, title string) *pdf.Document {
	doc := pdf.NewDocument(pdf.V1_7)

	font := doc.Add(pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name("Helvetica"),
	})
	resources := doc.Add(pdf.Dict{
		"Font": pdf.Dict{"F1": font},
	})

	pages := make([]pdf.Dict, numPages)
	for i := range pages {
		content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (Page %d) Tj ET\n", i+1)
		contentRef := doc.Add(&pdf.Stream{
			Dict: pdf.Dict{},
			Data: []byte(content),
		})
		pages[i] = pdf.Dict{
			"MediaBox":  pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
			"Resources": resources,
			"Contents":  contentRef,
		}
	}
	pagesRef := pagetree.Build(doc, pages)

	catalogRef := doc.Add(pdf.Dict{
		"Type":  pdf.Name("Catalog"),
		"Pages": pagesRef,
	})
	infoRef := doc.Add(pdf.Dict{
		"Title":    pdf.EncodeTextString(title),
		"Producer": pdf.String("seehuhn.de/go/pdfprotect/internal/testpdf"),
	})
	doc.Trailer["Root"] = catalogRef
	doc.Trailer["Info"] = infoRef

	return doc
}

// AddMetadata attaches an XMP metadata stream with the given title to the
// document catalog.
func AddMetadata(doc *pdf.Document, title string) error {
	dc := &xmp.DublinCore{}
	dc.Title.Set(language.Und, title)
	packet := xmp.NewPacket()
	err := packet.Set(dc)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	err = packet.Write(buf, nil)
	if err != nil {
		return err
	}

	ref := doc.Add(&pdf.Stream{
		Dict: pdf.Dict{
			"Type":    pdf.Name("Metadata"),
			"Subtype": pdf.Name("XML"),
		},
		Data: buf.Bytes(),
	})
	catalog, err := doc.Catalog()
	if err != nil {
		return err
	}
	catalog["Metadata"] = ref
	return nil
}

// Encode serialises the document.
func Encode(doc *pdf.Document, opt *pdf.WriterOptions) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := pdf.Write(buf, doc, opt)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encrypted returns a one-page document, encrypted with the given
// passwords and the default policy.
func Encrypted(title, userPwd, ownerPwd string) ([]byte, error) {
	doc := Document(1, title)
	return Encode(doc, &pdf.WriterOptions{
		Encryption: &pdf.Encryption{
			UserPassword:  userPwd,
			OwnerPassword: ownerPwd,
			Policy:        pdf.DefaultPolicy(),
		},
	})
}
