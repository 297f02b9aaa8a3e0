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

// Package verify checks that a freshly encrypted PDF file can be opened
// with the password it was protected with.
package verify

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	pdf "seehuhn.de/go/pdfprotect"
	"seehuhn.de/go/pdfprotect/pagetree"
	"seehuhn.de/go/xmp"
)

// Options give the passwords to check.
type Options struct {
	// UserPassword must open the file.
	UserPassword string

	// OwnerPassword, if non-empty, must validate against the O entry of the
	// encryption dictionary.
	OwnerPassword string
}

// Report summarises a successfully verified file.
type Report struct {
	Pages    int
	Version  pdf.Version
	Security *pdf.SecurityInfo

	// Metadata is the XMP packet of the document, if any.
	Metadata *xmp.Packet

	// MetadataErr records a problem with the metadata stream.  Such
	// problems do not cause the verification to fail.
	MetadataErr error
}

// VerificationError indicates that a written file could not be re-opened.
type VerificationError struct {
	Path string
	Err  error
}

func (err *VerificationError) Error() string {
	if err.Path == "" {
		return "verification failed: " + err.Err.Error()
	}
	return fmt.Sprintf("verification of %q failed: %v", err.Path, err.Err)
}

func (err *VerificationError) Unwrap() error {
	return err.Err
}

var errNotEncrypted = errors.New("file is not encrypted")

// File reads and verifies the PDF file at path.
func File(path string, opt *Options) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &VerificationError{Path: path, Err: err}
	}
	report, err := Bytes(data, opt)
	if err != nil {
		if vErr, ok := err.(*VerificationError); ok {
			vErr.Path = path
		}
		return nil, err
	}
	return report, nil
}

// Bytes verifies a PDF file held in memory.  The data is not modified.
func Bytes(data []byte, opt *Options) (*Report, error) {
	if opt == nil {
		opt = &Options{}
	}
	report, err := check(data, opt)
	if err != nil {
		return nil, &VerificationError{Err: err}
	}
	return report, nil
}

func check(data []byte, opt *Options) (*Report, error) {
	doc, err := pdf.Parse(data, &pdf.ReaderOptions{Password: opt.UserPassword})
	if err != nil {
		return nil, err
	}
	if doc.Security == nil {
		return nil, errNotEncrypted
	}
	if opt.OwnerPassword != "" && !doc.Security.OwnerAuthenticated {
		err = doc.Security.AuthenticateOwner(opt.OwnerPassword)
		if err != nil {
			return nil, fmt.Errorf("owner password: %w", err)
		}
	}

	if _, err := doc.Catalog(); err != nil {
		return nil, err
	}
	pages, err := pagetree.Count(doc)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Pages:    pages,
		Version:  doc.Version,
		Security: doc.Security,
	}
	report.Metadata, report.MetadataErr = readMetadata(doc)
	return report, nil
}

// readMetadata decodes the XMP metadata stream of the document.
func readMetadata(doc *pdf.Document) (*xmp.Packet, error) {
	stm, err := doc.Metadata()
	if err != nil || stm == nil {
		return nil, err
	}
	data, err := pdf.DecodeStream(stm)
	if err != nil {
		return nil, fmt.Errorf("metadata stream: %w", err)
	}
	return xmp.Read(bytes.NewReader(data))
}
