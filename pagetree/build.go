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
	pdf "seehuhn.de/go/pdfprotect"
)

// maxDegree is the maximal number of children of a node in the page trees
// generated by Build.
const maxDegree = 16

// Build adds a balanced page tree containing the given pages to doc and
// returns the reference of the root node.  The /Type and /Parent entries
// of the page dictionaries are set by Build.
func Build(doc *pdf.Document, pages []pdf.Dict) pdf.Reference {
	type node struct {
		ref   pdf.Reference
		dict  pdf.Dict
		count int
	}

	if len(pages) == 0 {
		return doc.Add(pdf.Dict{
			"Type":  pdf.Name("Pages"),
			"Kids":  pdf.Array{},
			"Count": pdf.Integer(0),
		})
	}

	level := make([]*node, len(pages))
	for i, page := range pages {
		page["Type"] = pdf.Name("Page")
		level[i] = &node{ref: doc.Add(page), dict: page, count: 1}
	}

	for {
		var next []*node
		for start := 0; start < len(level); start += maxDegree {
			end := min(start+maxDegree, len(level))
			parentRef := doc.Alloc()
			kids := make(pdf.Array, 0, end-start)
			count := 0
			for _, kid := range level[start:end] {
				kids = append(kids, kid.ref)
				count += kid.count
				kid.dict["Parent"] = parentRef
			}
			dict := pdf.Dict{
				"Type":  pdf.Name("Pages"),
				"Kids":  kids,
				"Count": pdf.Integer(count),
			}
			doc.Put(parentRef, dict)
			next = append(next, &node{ref: parentRef, dict: dict, count: count})
		}
		level = next
		if len(level) == 1 {
			return level[0].ref
		}
	}
}
