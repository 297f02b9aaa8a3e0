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

package pagetree

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	pdf "seehuhn.de/go/pdfprotect"
)

func newDoc(t *testing.T, numPages int) (*pdf.Document, []pdf.Reference) {
	t.Helper()
	doc := pdf.NewDocument(pdf.V1_7)
	pages := make([]pdf.Dict, numPages)
	for i := range pages {
		pages[i] = pdf.Dict{"Rotate": pdf.Integer(90 * (i % 4))}
	}
	root := Build(doc, pages)
	doc.Trailer["Root"] = doc.Add(pdf.Dict{
		"Type":  pdf.Name("Catalog"),
		"Pages": root,
	})

	// Build allocates the page objects first, in page order.
	var refs []pdf.Reference
	for i := range numPages {
		refs = append(refs, pdf.NewReference(uint32(i+1), 0))
	}
	return doc, refs
}

func TestBuildAndFind(t *testing.T) {
	for _, n := range []int{0, 1, 2, maxDegree, maxDegree + 1, 234} {
		doc, want := newDoc(t, n)
		got, err := FindPages(doc)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(want, got); d != "" {
			t.Errorf("%d pages: wrong result (-want +got):\n%s", n, d)
		}

		count, err := Count(doc)
		if err != nil {
			t.Fatal(err)
		}
		if count != n {
			t.Errorf("wrong count %d != %d", count, n)
		}
	}
}

func TestBuildStructure(t *testing.T) {
	doc, _ := newDoc(t, 234)
	catalog, err := doc.Catalog()
	if err != nil {
		t.Fatal(err)
	}

	var check func(ref, parent pdf.Reference) int
	check = func(ref, parent pdf.Reference) int {
		node, err := pdf.GetDict(doc, ref)
		if err != nil {
			t.Fatal(err)
		}
		if p, _ := node["Parent"].(pdf.Reference); p != parent {
			t.Errorf("%s: wrong parent %s", ref, pdf.Format(node["Parent"]))
		}
		if node["Type"] == pdf.Name("Page") {
			return 1
		}
		kids := node["Kids"].(pdf.Array)
		if len(kids) > maxDegree {
			t.Errorf("%s: %d kids", ref, len(kids))
		}
		total := 0
		for _, kid := range kids {
			total += check(kid.(pdf.Reference), ref)
		}
		if node["Count"] != pdf.Integer(total) {
			t.Errorf("%s: wrong /Count %s", ref, pdf.Format(node["Count"]))
		}
		return total
	}
	if n := check(catalog["Pages"].(pdf.Reference), 0); n != 234 {
		t.Errorf("found %d pages", n)
	}
}

func TestFindPagesErrors(t *testing.T) {
	cases := []struct {
		name  string
		setup func(doc *pdf.Document, root pdf.Reference)
	}{
		{"loop", func(doc *pdf.Document, root pdf.Reference) {
			node, _ := pdf.GetDict(doc, root)
			node["Kids"] = append(node["Kids"].(pdf.Array), root)
		}},
		{"missing kid", func(doc *pdf.Document, root pdf.Reference) {
			node, _ := pdf.GetDict(doc, root)
			node["Kids"] = append(node["Kids"].(pdf.Array), pdf.NewReference(999, 0))
		}},
		{"direct kid", func(doc *pdf.Document, root pdf.Reference) {
			node, _ := pdf.GetDict(doc, root)
			node["Kids"] = append(node["Kids"].(pdf.Array), pdf.Dict{"Type": pdf.Name("Page")})
		}},
		{"bad type", func(doc *pdf.Document, root pdf.Reference) {
			page, _ := pdf.GetDict(doc, pdf.NewReference(1, 0))
			page["Type"] = pdf.Name("Font")
		}},
		{"page as root", func(doc *pdf.Document, root pdf.Reference) {
			catalog, _ := doc.Catalog()
			catalog["Pages"] = pdf.NewReference(1, 0)
		}},
		{"no pages", func(doc *pdf.Document, root pdf.Reference) {
			catalog, _ := doc.Catalog()
			delete(catalog, "Pages")
		}},
	}
	for _, test := range cases {
		doc, _ := newDoc(t, 3)
		catalog, err := doc.Catalog()
		if err != nil {
			t.Fatal(err)
		}
		test.setup(doc, catalog["Pages"].(pdf.Reference))

		_, err = FindPages(doc)
		var structErr *pdf.StructureError
		if !errors.As(err, &structErr) {
			t.Errorf("%s: expected StructureError, got %v", test.name, err)
		}
	}
}
