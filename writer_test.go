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

package pdf_test

import (
	"bytes"
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"
	pdf "seehuhn.de/go/pdfprotect"
	"seehuhn.de/go/pdfprotect/internal/testpdf"
	"seehuhn.de/go/pdfprotect/pagetree"
	"seehuhn.de/go/xmp"
)

// withoutLength returns a copy of the document objects, where the /Length
// entries of all stream dictionaries are removed.
func withoutLength(doc *pdf.Document) map[pdf.Reference]pdf.Object {
	res := make(map[pdf.Reference]pdf.Object, len(doc.Objects))
	for ref, obj := range doc.Objects {
		if stm, ok := obj.(*pdf.Stream); ok {
			dict := pdf.Dict{}
			for key, val := range stm.Dict {
				if key != "Length" {
					dict[key] = val
				}
			}
			obj = &pdf.Stream{Dict: dict, Data: stm.Data}
		}
		res[ref] = obj
	}
	return res
}

func TestWriteRoundTrip(t *testing.T) {
	for _, xrefStream := range []bool{false, true} {
		doc := testpdf.Document(40, "Round Trip")
		data, err := testpdf.Encode(doc, &pdf.WriterOptions{XRefStream: xrefStream})
		if err != nil {
			t.Fatal(err)
		}
		if hasXRefStream := bytes.Contains(data, []byte("/Type /XRef")); hasXRefStream != xrefStream {
			t.Errorf("xrefStream=%t: wrong cross-reference format", xrefStream)
		}

		doc2, err := pdf.Parse(data, nil)
		if err != nil {
			t.Fatalf("xrefStream=%t: %v", xrefStream, err)
		}
		// objects are numbered contiguously, so renumbering has no effect
		if d := cmp.Diff(withoutLength(doc), withoutLength(doc2)); d != "" {
			t.Errorf("xrefStream=%t: objects differ (-want +got):\n%s", xrefStream, d)
		}
		if d := cmp.Diff(doc.Trailer, doc2.Trailer); d != "" {
			t.Errorf("xrefStream=%t: trailers differ (-want +got):\n%s", xrefStream, d)
		}
	}
}

func TestWriteRenumber(t *testing.T) {
	doc := pdf.NewDocument(pdf.V1_4)
	pagesRef := pdf.NewReference(10, 3)
	pageRef := pdf.NewReference(20, 0)
	catalogRef := pdf.NewReference(5, 0)
	doc.Put(catalogRef, pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pagesRef})
	doc.Put(pagesRef, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{pageRef},
		"Count": pdf.Integer(1),
	})
	doc.Put(pageRef, pdf.Dict{
		"Type":     pdf.Name("Page"),
		"Parent":   pagesRef,
		"Contents": pdf.NewReference(99, 0), // dangling
	})
	doc.Trailer["Root"] = catalogRef

	data, err := testpdf.Encode(doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := pdf.Parse(data, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := map[pdf.Reference]pdf.Object{
		pdf.NewReference(1, 0): pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.NewReference(2, 0)},
		pdf.NewReference(2, 0): pdf.Dict{
			"Type":  pdf.Name("Pages"),
			"Kids":  pdf.Array{pdf.NewReference(3, 0)},
			"Count": pdf.Integer(1),
		},
		pdf.NewReference(3, 0): pdf.Dict{
			"Type":   pdf.Name("Page"),
			"Parent": pdf.NewReference(2, 0),
		},
	}
	if d := cmp.Diff(want, doc2.Objects); d != "" {
		t.Errorf("wrong objects (-want +got):\n%s", d)
	}
	if doc2.Trailer["Root"] != pdf.NewReference(1, 0) {
		t.Errorf("wrong root %s", pdf.Format(doc2.Trailer["Root"]))
	}
}

func TestWriteVersion(t *testing.T) {
	cases := []struct {
		docVersion pdf.Version
		cipher     pdf.Cipher
		xrefStream bool
		want       pdf.Version
		extension  bool
	}{
		{pdf.V1_0, 0, false, pdf.V1_0, false},
		{pdf.V1_2, 0, true, pdf.V1_5, false},
		{pdf.V1_0, pdf.CipherRC4_40, false, pdf.V1_1, false},
		{pdf.V1_2, pdf.CipherRC4_128, false, pdf.V1_4, false},
		{pdf.V1_4, pdf.CipherAES128, false, pdf.V1_6, false},
		{pdf.V1_4, pdf.CipherAES256, false, pdf.V1_7, true},
		{pdf.V1_7, pdf.CipherAES256, false, pdf.V1_7, true},
		{pdf.V2_0, pdf.CipherAES256, true, pdf.V2_0, false},
	}
	for _, test := range cases {
		doc := testpdf.Document(1, "Version")
		doc.Version = test.docVersion
		opt := &pdf.WriterOptions{XRefStream: test.xrefStream}
		if test.cipher != 0 {
			opt.Encryption = &pdf.Encryption{
				UserPassword: "x",
				Policy: pdf.Policy{
					Cipher:          test.cipher,
					Permissions:     pdf.PermAll,
					EncryptMetadata: true,
				},
			}
		}
		data, err := testpdf.Encode(doc, opt)
		if err != nil {
			t.Fatal(err)
		}

		header := "%PDF-" + test.want.String() + "\n"
		if !bytes.HasPrefix(data, []byte(header)) {
			t.Errorf("%s/%s: wrong header %q", test.docVersion, test.cipher, data[:9])
		}

		doc2, err := pdf.Parse(data, &pdf.ReaderOptions{Password: "x"})
		if err != nil {
			t.Fatal(err)
		}
		catalog, err := doc2.Catalog()
		if err != nil {
			t.Fatal(err)
		}
		_, hasExt := catalog["Extensions"]
		if hasExt != test.extension {
			t.Errorf("%s/%s: extensions=%t", test.docVersion, test.cipher, hasExt)
		}
		if hasExt {
			ext, _ := pdf.GetDict(doc2, catalog["Extensions"])
			adbe, _ := pdf.GetDict(doc2, ext["ADBE"])
			if adbe["ExtensionLevel"] != pdf.Integer(8) || adbe["BaseVersion"] != pdf.Name("1.7") {
				t.Errorf("wrong extension dictionary %s", pdf.Format(adbe))
			}
		}

		// the input document is not modified
		orig, _ := doc.Catalog()
		if _, ok := orig["Extensions"]; ok {
			t.Error("input catalog was modified")
		}
	}
}

func TestWriteEncryptedID(t *testing.T) {
	doc := testpdf.Document(1, "ID")
	opt := &pdf.WriterOptions{
		Encryption: &pdf.Encryption{UserPassword: "a", Policy: pdf.DefaultPolicy()},
	}

	var ids [][]byte
	for range 2 {
		data, err := testpdf.Encode(doc, opt)
		if err != nil {
			t.Fatal(err)
		}
		doc2, err := pdf.Parse(data, &pdf.ReaderOptions{Password: "a"})
		if err != nil {
			t.Fatal(err)
		}
		if len(doc2.ID) != 2 || len(doc2.ID[0]) != 16 {
			t.Fatalf("invalid file identifier %x", doc2.ID)
		}
		ids = append(ids, doc2.ID[0])
	}
	if bytes.Equal(ids[0], ids[1]) {
		t.Error("file identifier was reused")
	}
}

func TestWriteMetadata(t *testing.T) {
	const title = "Metadata Title 42"
	cases := []struct {
		policy    pdf.Policy
		plaintext bool
	}{
		{pdf.DefaultPolicy(), true},
		{pdf.Policy{Cipher: pdf.CipherAES128, EncryptMetadata: false}, true},
		{pdf.Policy{Cipher: pdf.CipherAES128, EncryptMetadata: true}, false},
		{pdf.Policy{Cipher: pdf.CipherRC4_128, EncryptMetadata: true}, false},
	}
	dc := &xmp.DublinCore{}
	dc.Title.Set(language.Und, title)
	wantPacket := xmp.NewPacket()
	err := wantPacket.Set(dc)
	if err != nil {
		t.Fatal(err)
	}
	var want xmp.DublinCore
	wantPacket.Get(&want)

	for _, test := range cases {
		doc := testpdf.Document(1, "Info Title")
		err := testpdf.AddMetadata(doc, title)
		if err != nil {
			t.Fatal(err)
		}
		data, err := testpdf.Encode(doc, &pdf.WriterOptions{
			Encryption: &pdf.Encryption{
				UserPassword:  "u",
				OwnerPassword: "o",
				Policy:        test.policy,
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		if bytes.Contains(data, []byte(title)) != test.plaintext {
			t.Errorf("%s/%t: metadata plaintext=%t", test.policy.Cipher,
				test.policy.EncryptMetadata, !test.plaintext)
		}
		if bytes.Contains(data, []byte("Info Title")) {
			t.Errorf("%s: information dictionary not encrypted", test.policy.Cipher)
		}

		doc2, err := pdf.Parse(data, &pdf.ReaderOptions{Password: "u"})
		if err != nil {
			t.Fatal(err)
		}
		stm, err := doc2.Metadata()
		if err != nil {
			t.Fatal(err)
		}
		packet, err := xmp.Read(bytes.NewReader(stm.Data))
		if err != nil {
			t.Fatal(err)
		}
		var got xmp.DublinCore
		packet.Get(&got)
		if d := cmp.Diff(want, got); d != "" {
			t.Errorf("wrong metadata (-want +got):\n%s", d)
		}
	}
}

func TestWriteKeepsPages(t *testing.T) {
	for _, n := range []int{0, 1, 17, 300} {
		doc := testpdf.Document(n, "Pages")
		data, err := testpdf.Encode(doc, &pdf.WriterOptions{
			Encryption: &pdf.Encryption{UserPassword: "p", Policy: pdf.DefaultPolicy()},
		})
		if err != nil {
			t.Fatal(err)
		}
		doc2, err := pdf.Parse(data, &pdf.ReaderOptions{Password: "p"})
		if err != nil {
			t.Fatal(err)
		}
		pages, err := pagetree.FindPages(doc2)
		if err != nil {
			t.Fatal(err)
		}
		if len(pages) != n {
			t.Fatalf("got %d pages, expected %d", len(pages), n)
		}
		if n == 0 {
			continue
		}
		last, err := pdf.GetDict(doc2, pages[n-1])
		if err != nil {
			t.Fatal(err)
		}
		contents, err := pdf.GetStream(doc2, last["Contents"])
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(contents.Data, []byte("(Page "+strconv.Itoa(n)+")")) {
			t.Errorf("wrong contents of last page: %q", contents.Data)
		}
	}
}

func TestWriteErrors(t *testing.T) {
	doc := pdf.NewDocument(pdf.V1_7)
	err := pdf.Write(&bytes.Buffer{}, doc, nil)
	if !isStructureError(err) {
		t.Errorf("missing catalog: got %v", err)
	}

	doc.Trailer["Root"] = pdf.Dict{"Type": pdf.Name("Catalog")}
	err = pdf.Write(&bytes.Buffer{}, doc, nil)
	if !isStructureError(err) {
		t.Errorf("direct catalog: got %v", err)
	}

	doc = testpdf.Document(1, "x")
	err = pdf.Write(&bytes.Buffer{}, doc, &pdf.WriterOptions{
		Encryption: &pdf.Encryption{Policy: pdf.Policy{Cipher: pdf.Cipher(17)}},
	})
	var cryptoErr *pdf.CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Errorf("invalid cipher: got %v", err)
	}
}

