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

package testpdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"slices"
)

// rawFile assembles PDF files by hand, for testing the parser on file
// structures which the writer in this module never produces.
type rawFile struct {
	buf     bytes.Buffer
	offsets map[int]int64
}

func newRawFile(version string) *rawFile {
	f := &rawFile{offsets: make(map[int]int64)}
	fmt.Fprintf(&f.buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)
	return f
}

func (f *rawFile) pos() int64 {
	return int64(f.buf.Len())
}

// obj writes an indirect object with generation 0.
func (f *rawFile) obj(num int, body string) {
	f.offsets[num] = f.pos()
	fmt.Fprintf(&f.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// stream writes an indirect stream object.  dict must not contain the
// closing ">>", so that /Length can be appended.
func (f *rawFile) stream(num int, dict string, data []byte) {
	f.offsets[num] = f.pos()
	fmt.Fprintf(&f.buf, "%d 0 obj\n%s /Length %d >>\nstream\n", num, dict, len(data))
	f.buf.Write(data)
	f.buf.WriteString("\nendstream\nendobj\n")
}

// xrefTable writes a classic cross-reference table for the given objects,
// followed by the trailer and the startxref section.
func (f *rawFile) xrefTable(nums []int, size int, trailer string) int64 {
	start := f.pos()
	f.buf.WriteString("xref\n")
	if slices.Contains(nums, 0) {
		nums = slices.DeleteFunc(slices.Clone(nums), func(n int) bool { return n == 0 })
		f.buf.WriteString("0 1\n0000000000 65535 f\r\n")
	}
	slices.Sort(nums)
	for _, num := range nums {
		fmt.Fprintf(&f.buf, "%d 1\n%010d 00000 n\r\n", num, f.offsets[num])
	}
	fmt.Fprintf(&f.buf, "trailer\n<< /Size %d %s >>\n", size, trailer)
	return start
}

func (f *rawFile) startXRef(pos int64) []byte {
	fmt.Fprintf(&f.buf, "startxref\n%d\n%%%%EOF\n", pos)
	return f.buf.Bytes()
}

type xrefRow struct {
	tp   byte
	a    int64
	b    int
	skip bool
}

// xrefStreamData encodes cross-reference stream rows with /W [1 4 2],
// using the PNG Up predictor followed by Flate compression.
func xrefStreamData(rows []xrefRow) []byte {
	const columns = 7
	prev := make([]byte, columns)
	var raw []byte
	for _, row := range rows {
		cur := []byte{
			row.tp,
			byte(row.a >> 24), byte(row.a >> 16), byte(row.a >> 8), byte(row.a),
			byte(row.b >> 8), byte(row.b),
		}
		raw = append(raw, 2)
		for i := range cur {
			raw = append(raw, cur[i]-prev[i])
		}
		prev = cur
	}
	return deflate(raw)
}

func deflate(data []byte) []byte {
	buf := &bytes.Buffer{}
	zw := zlib.NewWriter(buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// objStm encodes the given objects as the contents of an object stream.
// The result is the stream data and the value of /First.
func objStm(nums []int, bodies []string) ([]byte, int) {
	var header, body bytes.Buffer
	for i, num := range nums {
		fmt.Fprintf(&header, "%d %d ", num, body.Len())
		body.WriteString(bodies[i])
		body.WriteString("\n")
	}
	first := header.Len()
	return append(header.Bytes(), body.Bytes()...), first
}

// XRefStreamFile returns a PDF 1.5 file which uses a compressed
// cross-reference stream and an object stream.  The document has one page,
// whose dictionary is stored in the object stream.
func XRefStreamFile() []byte {
	f := newRawFile("1.5")
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")

	data, first := objStm([]int{3, 4}, []string{
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 5 0 R >>",
		"<< /Title (XRef Stream) >>",
	})
	f.stream(6, fmt.Sprintf("<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode", first), deflate(data))
	f.stream(5, "<<", []byte("BT /F1 12 Tf 72 720 Td (Hello) Tj ET"))

	xrefPos := f.pos()
	rows := []xrefRow{
		{tp: 0, a: 0, b: 65535},
		{tp: 1, a: f.offsets[1]},
		{tp: 1, a: f.offsets[2]},
		{tp: 2, a: 6, b: 0},
		{tp: 2, a: 6, b: 1},
		{tp: 1, a: f.offsets[5]},
		{tp: 1, a: f.offsets[6]},
		{tp: 1, a: xrefPos},
	}
	f.stream(7, "<< /Type /XRef /Size 8 /W [1 4 2] /Root 1 0 R /Info 4 0 R"+
		" /Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 7 >>",
		xrefStreamData(rows))
	return f.startXRef(xrefPos)
}

// HybridFile returns a file with a classic cross-reference table whose
// trailer points to an additional cross-reference stream via /XRefStm.
// Object 3 is marked as free in the table but is found in an object
// stream via the cross-reference stream.
func HybridFile() []byte {
	f := newRawFile("1.5")
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	data, first := objStm([]int{3}, []string{
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>",
	})
	f.stream(4, fmt.Sprintf("<< /Type /ObjStm /N 1 /First %d /Filter /FlateDecode", first), deflate(data))

	stmPos := f.pos()
	rows := []xrefRow{
		{tp: 2, a: 4, b: 0},
	}
	f.stream(5, "<< /Type /XRef /Size 6 /Index [3 1] /W [1 4 2]"+
		" /Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 7 >>",
		xrefStreamData(rows))

	start := f.pos()
	f.buf.WriteString("xref\n0 6\n")
	f.buf.WriteString("0000000000 65535 f\r\n")
	fmt.Fprintf(&f.buf, "%010d 00000 n\r\n", f.offsets[1])
	fmt.Fprintf(&f.buf, "%010d 00000 n\r\n", f.offsets[2])
	f.buf.WriteString("0000000000 00001 f\r\n")
	fmt.Fprintf(&f.buf, "%010d 00000 n\r\n", f.offsets[4])
	fmt.Fprintf(&f.buf, "%010d 00000 n\r\n", f.offsets[5])
	fmt.Fprintf(&f.buf, "trailer\n<< /Size 6 /Root 1 0 R /XRefStm %d >>\n", stmPos)
	return f.startXRef(start)
}

// IncrementalFile returns a file with one incremental update.  The update
// replaces the information dictionary, so that the title of the document
// changes from "Original" to "Updated", and adds a second page.
func IncrementalFile() []byte {
	f := newRawFile("1.4")
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	f.obj(4, "<< /Title (Original) >>")
	first := f.xrefTable([]int{0, 1, 2, 3, 4}, 5, "/Root 1 0 R /Info 4 0 R")
	f.buf.WriteString("startxref\n")
	fmt.Fprintf(&f.buf, "%d\n%%%%EOF\n", first)

	f.obj(2, "<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 2 >>")
	f.obj(4, "<< /Title (Updated) >>")
	f.obj(5, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	second := f.xrefTable([]int{2, 4, 5}, 6,
		fmt.Sprintf("/Root 1 0 R /Info 4 0 R /Prev %d", first))
	return f.startXRef(second)
}

// IndirectLengthFile returns a file where the /Length of the page content
// stream is an indirect object, stored after the stream.
func IndirectLengthFile() []byte {
	content := "BT /F1 12 Tf 72 720 Td (endstream) Tj ET"

	f := newRawFile("1.4")
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	f.offsets[4] = f.pos()
	fmt.Fprintf(&f.buf, "4 0 obj\n<< /Length 5 0 R >>\nstream\n%s\nendstream\nendobj\n", content)
	f.obj(5, fmt.Sprint(len(content)))
	start := f.xrefTable([]int{0, 1, 2, 3, 4, 5}, 6, "/Root 1 0 R")
	return f.startXRef(start)
}

// PrevLoopFile returns a file whose /Prev entry points back to the
// cross-reference table itself.
func PrevLoopFile() []byte {
	f := newRawFile("1.4")
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	start := f.pos()
	f.xrefTable([]int{0, 1, 2}, 3, fmt.Sprintf("/Root 1 0 R /Prev %d", start))
	return f.startXRef(start)
}

// TruncatedFile returns a one-page file whose content stream declares a
// /Length which extends beyond the end of the file.
func TruncatedFile() []byte {
	f := newRawFile("1.4")
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.obj(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	f.offsets[4] = f.pos()
	f.buf.WriteString("4 0 obj\n<< /Length 100000 >>\nstream\nshort\nendstream\nendobj\n")
	start := f.xrefTable([]int{0, 1, 2, 3, 4}, 5, "/Root 1 0 R")
	return f.startXRef(start)
}

// LoopingPageTreeFile returns a file whose page tree contains a loop.
func LoopingPageTreeFile() []byte {
	f := newRawFile("1.4")
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.obj(3, "<< /Type /Pages /Parent 2 0 R /Kids [2 0 R] /Count 1 >>")
	start := f.xrefTable([]int{0, 1, 2, 3}, 4, "/Root 1 0 R")
	return f.startXRef(start)
}
