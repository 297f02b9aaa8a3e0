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

// Package pagetree reads and builds PDF page trees.
package pagetree

import (
	"errors"
	"fmt"

	pdf "seehuhn.de/go/pdfprotect"
)

var errNoPages = errors.New("missing /Pages in catalog")

// FindPages returns references to all pages of the document, in page
// order.  Every node of the page tree must be an indirect object with a
// /Type of either /Pages or /Page.  Loops in the tree cause a
// [*pdf.StructureError].
func FindPages(doc *pdf.Document) ([]pdf.Reference, error) {
	catalog, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	root, ok := catalog["Pages"].(pdf.Reference)
	if !ok {
		return nil, &pdf.StructureError{Err: errNoPages}
	}

	var res []pdf.Reference
	todo := []pdf.Reference{root}
	seen := map[pdf.Reference]bool{
		root: true,
	}
	isRoot := true
	for len(todo) > 0 {
		k := len(todo) - 1
		ref := todo[k]
		todo = todo[:k]

		node, err := pdf.GetDict(doc, ref)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, &pdf.StructureError{Err: fmt.Errorf("page tree node %s not found", ref)}
		}
		tp, err := pdf.GetName(doc, node["Type"])
		if err != nil {
			return nil, err
		}
		if isRoot && tp != "Pages" {
			return nil, &pdf.StructureError{Err: fmt.Errorf("page tree root %s has type %q", ref, tp)}
		}
		isRoot = false

		switch tp {
		case "Page":
			res = append(res, ref)
		case "Pages":
			kids, err := pdf.GetArray(doc, node["Kids"])
			if err != nil {
				return nil, err
			}
			for i := len(kids) - 1; i >= 0; i-- {
				kidRef, ok := kids[i].(pdf.Reference)
				if !ok {
					return nil, &pdf.StructureError{
						Err: fmt.Errorf("page tree node %s: kid %d is not a reference", ref, i),
					}
				}
				if seen[kidRef] {
					return nil, &pdf.StructureError{
						Err: fmt.Errorf("page tree node %s: loop via %s", ref, kidRef),
					}
				}
				seen[kidRef] = true
				todo = append(todo, kidRef)
			}
		default:
			return nil, &pdf.StructureError{
				Err: fmt.Errorf("page tree node %s has invalid type %q", ref, tp),
			}
		}
	}

	return res, nil
}

// Count returns the number of pages in the document.
func Count(doc *pdf.Document) (int, error) {
	pages, err := FindPages(doc)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}
