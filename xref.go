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

package pdf

import (
	"bytes"
	"errors"
	"math/bits"

	"golang.org/x/exp/constraints"
)

type xRefEntry struct {
	// Pos is the byte offset of an uncompressed object, or the index
	// inside the containing object stream.  For free entries, Pos is -1.
	Pos        int64
	Generation uint16

	// InStream is the object number of the containing object stream,
	// if Compressed is set.
	InStream   uint32
	Compressed bool
}

func (entry *xRefEntry) IsFree() bool {
	return entry == nil || entry.Pos < 0
}

type xRefSubSection struct {
	Start, Size int64
}

// findXRef locates the last "startxref" keyword and returns the position
// of the cross-reference section it points to.
func (r *reader) findXRef() (int64, error) {
	idx := bytes.LastIndex(r.data, []byte("startxref"))
	if idx < 0 {
		return 0, &StructureError{Err: errors.New("startxref not found")}
	}
	s := r.scannerAt(int64(idx) + 9)

	xRefPos, err := s.ReadInteger()
	if err != nil {
		return 0, err
	}
	if xRefPos <= 0 || int64(xRefPos) >= int64(len(r.data)) {
		return 0, structureErrorf(int64(idx), "invalid xref position %d", xRefPos)
	}
	return int64(xRefPos), nil
}

// readXRef reads all cross-reference sections, starting with the newest
// one and following the /Prev chain.  Entries from newer sections take
// precedence over older ones.  The returned trailer combines the entries
// of all trailer dictionaries, again preferring newer values.
func (r *reader) readXRef() (Dict, error) {
	start, err := r.findXRef()
	if err != nil {
		return nil, err
	}

	r.xref = make(map[uint32]*xRefEntry)
	trailer := Dict{}
	seen := make(map[int64]bool)
	for {
		if seen[start] {
			return nil, structureErrorf(start, "loop in /Prev chain")
		}
		seen[start] = true

		s := r.scannerAt(start)
		var dict Dict
		if s.hasKeyword("xref") {
			var section map[uint32]*xRefEntry
			section, dict, err = readXRefTable(s)
			if err != nil {
				return nil, err
			}

			// In hybrid files, the entries of the cross-reference stream
			// take precedence over the ones in the table.
			if xRefStm, ok := dict["XRefStm"]; ok {
				zStart, ok := xRefStm.(Integer)
				if !ok || zStart <= 0 || int64(zStart) >= int64(len(r.data)) {
					return nil, structureErrorf(start, "invalid /XRefStm %s", Format(xRefStm))
				}
				stmSection, _, err := r.readXRefStream(int64(zStart))
				if err != nil {
					return nil, err
				}
				mergeXRef(r.xref, stmSection)
			}
			mergeXRef(r.xref, section)
		} else {
			var section map[uint32]*xRefEntry
			section, dict, err = r.readXRefStream(start)
			if err != nil {
				return nil, err
			}
			mergeXRef(r.xref, section)
		}

		for key, val := range dict {
			if _, ok := trailer[key]; !ok {
				trailer[key] = val
			}
		}

		prev, ok := dict["Prev"]
		if !ok {
			break
		}
		prevStart, ok := prev.(Integer)
		if !ok || prevStart < 0 || int64(prevStart) >= int64(len(r.data)) {
			return nil, structureErrorf(start, "invalid /Prev value %s", Format(prev))
		}
		start = int64(prevStart)
	}

	return trailer, nil
}

func mergeXRef(xref, section map[uint32]*xRefEntry) {
	for num, entry := range section {
		if _, ok := xref[num]; !ok {
			xref[num] = entry
		}
	}
}

// readXRefTable reads a classic cross-reference table, followed by the
// trailer dictionary.  The entries are read token by token, so that
// both the 20-byte and the (non-conforming) 19-byte entry layouts are
// accepted.
func readXRefTable(s *scanner) (map[uint32]*xRefEntry, Dict, error) {
	err := s.SkipKeyword("xref")
	if err != nil {
		return nil, nil, err
	}

	section := make(map[uint32]*xRefEntry)
	for {
		s.SkipWhiteSpace()
		if s.atEOF() || !isDigit(s.data[s.pos]) {
			break
		}

		start, err := s.readUint()
		if err != nil {
			return nil, nil, err
		}
		s.SkipWhiteSpace()
		length, err := s.readUint()
		if err != nil {
			return nil, nil, err
		}
		if start+length > 1<<32 {
			return nil, nil, s.errorf("invalid xref subsection %d %d", start, length)
		}

		for i := start; i < start+length; i++ {
			entry, err := readXRefTableEntry(s)
			if err != nil {
				return nil, nil, err
			}
			if _, dup := section[uint32(i)]; !dup {
				section[uint32(i)] = entry
			}
		}
	}

	err = s.SkipKeyword("trailer")
	if err != nil {
		return nil, nil, err
	}
	s.SkipWhiteSpace()
	dict, err := s.ReadDict()
	if err != nil {
		return nil, nil, err
	}
	if _, ok := dict["Size"].(Integer); !ok {
		return nil, nil, s.errorf("missing /Size in trailer")
	}
	return section, dict, nil
}

func readXRefTableEntry(s *scanner) (*xRefEntry, error) {
	s.SkipWhiteSpace()
	a, err := s.readUint()
	if err != nil {
		return nil, err
	}
	s.SkipWhiteSpace()
	b, err := s.readUint()
	if err != nil {
		return nil, err
	}
	s.SkipWhiteSpace()
	if s.atEOF() {
		return nil, s.errorf("truncated xref table")
	}
	c := s.data[s.pos]
	s.pos++

	switch c {
	case 'f':
		return &xRefEntry{Pos: -1, Generation: uint16(b)}, nil
	case 'n':
		if b > 0xFFFF {
			return nil, s.errorf("invalid generation number %d", b)
		}
		return &xRefEntry{Pos: a, Generation: uint16(b)}, nil
	default:
		return nil, s.errorf("malformed xref table entry")
	}
}

// readXRefStream reads a cross-reference stream.  Cross-reference streams
// are never encrypted.  The object number of the stream is recorded, so
// that the stream is not copied into the document.
func (r *reader) readXRefStream(start int64) (map[uint32]*xRefEntry, Dict, error) {
	s := r.scannerAt(start)
	ref, obj, err := s.ReadIndirectObject()
	if err != nil {
		return nil, nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok || !stream.IsType("XRef") {
		return nil, nil, structureErrorf(start, "invalid xref stream")
	}
	r.structural[ref.Number()] = true
	dict := stream.Dict

	w, ss, err := checkXRefStreamDict(dict)
	if err != nil {
		return nil, nil, structureErrorf(start, "xref stream: %w", err)
	}
	data, err := DecodeStream(stream)
	if err != nil {
		return nil, nil, structureErrorf(start, "xref stream: %w", err)
	}
	section, err := decodeXRefStream(data, w, ss)
	if err != nil {
		return nil, nil, structureErrorf(start, "xref stream: %w", err)
	}

	return section, dict, nil
}

func checkXRefStreamDict(dict Dict) ([]int, []xRefSubSection, error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 {
		return nil, nil, errors.New("missing or invalid /Size")
	}
	W, ok := dict["W"].(Array)
	if !ok || len(W) < 3 {
		return nil, nil, errors.New("missing or invalid /W")
	}
	var w []int
	for i, Wi := range W {
		wi, ok := Wi.(Integer)
		if !ok || wi < 0 || i < 3 && wi > 8 {
			return nil, nil, errors.New("invalid /W")
		}
		w = append(w, int(wi))
	}

	var ss []xRefSubSection
	switch ind := dict["Index"].(type) {
	case nil:
		ss = append(ss, xRefSubSection{0, int64(size)})
	case Array:
		if len(ind)%2 != 0 {
			return nil, nil, errors.New("invalid /Index")
		}
		for i := 0; i < len(ind); i += 2 {
			start, ok1 := ind[i].(Integer)
			size, ok2 := ind[i+1].(Integer)
			if !ok1 || !ok2 || start < 0 || size < 0 || start+size > 1<<32 {
				return nil, nil, errors.New("invalid /Index")
			}
			ss = append(ss, xRefSubSection{int64(start), int64(size)})
		}
	default:
		return nil, nil, errors.New("invalid /Index")
	}
	return w, ss, nil
}

func decodeXRefStream(data []byte, w []int, ss []xRefSubSection) (map[uint32]*xRefEntry, error) {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	if wTotal == 0 {
		return nil, errors.New("invalid /W")
	}
	var n int64
	for _, sec := range ss {
		n += sec.Size
	}
	if n > int64(len(data)/wTotal) {
		return nil, errors.New("not enough data for all entries")
	}

	w0 := w[0]
	w1 := w[1]
	w2 := w[2]
	section := make(map[uint32]*xRefEntry)
	for _, sec := range ss {
		for i := sec.Start; i < sec.Start+sec.Size; i++ {
			buf := data[:wTotal]
			data = data[wTotal:]

			if _, dup := section[uint32(i)]; dup {
				continue
			}

			tp := decodeInt(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(buf[w0 : w0+w1])
			b := decodeInt(buf[w0+w1 : w0+w1+w2])
			switch tp {
			case 0:
				// free object; a = next free object, b = generation
				section[uint32(i)] = &xRefEntry{Pos: -1, Generation: uint16(b)}
			case 1:
				// uncompressed object; a = byte offset, b = generation
				if a > 1<<62 || b > 0xFFFF {
					return nil, errors.New("invalid xref stream entry")
				}
				section[uint32(i)] = &xRefEntry{Pos: int64(a), Generation: uint16(b)}
			case 2:
				// compressed object; a = object stream number, b = index
				if a > 0xFFFFFFFF || b > 1<<31 {
					return nil, errors.New("invalid xref stream entry")
				}
				section[uint32(i)] = &xRefEntry{
					Pos:        int64(b),
					InStream:   uint32(a),
					Compressed: true,
				}
			default:
				// other types are treated as references to the null object
				section[uint32(i)] = &xRefEntry{Pos: -1}
			}
		}
	}
	return section, nil
}

func decodeInt(buf []byte) (res uint64) {
	for _, x := range buf {
		res = res<<8 | uint64(x)
	}
	return res
}

// appendBigEndian appends the w least significant bytes of x to buf,
// most significant byte first.
func appendBigEndian[T constraints.Unsigned](buf []byte, x T, w int) []byte {
	for i := w - 1; i >= 0; i-- {
		buf = append(buf, byte(uint64(x)>>(8*i)))
	}
	return buf
}

// writeXRefTable writes a classic cross-reference table and the trailer.
// pos[i] is the byte offset of object i+1.
func (w *writer) writeXRefTable(pos []int64, trailer Dict) error {
	_, err := w.w.Printf("xref\n0 %d\n", len(pos)+1)
	if err != nil {
		return err
	}
	_, err = w.w.WriteString("0000000000 65535 f\r\n")
	if err != nil {
		return err
	}
	for _, p := range pos {
		_, err = w.w.Printf("%010d 00000 n\r\n", p)
		if err != nil {
			return err
		}
	}

	_, err = w.w.WriteString("trailer\n")
	if err != nil {
		return err
	}
	err = trailer.PDF(w.w)
	if err != nil {
		return err
	}
	_, err = w.w.WriteString("\n")
	return err
}

// writeXRefStream writes a compressed cross-reference stream.  The stream
// is the last object of the file and lists itself.  pos[i] is the byte
// offset of object i+1.
func (w *writer) writeXRefStream(pos []int64, trailer Dict) error {
	selfPos := w.w.pos
	pos = append(pos, selfPos)
	n := len(pos) + 1

	var maxPos int64
	for _, p := range pos {
		maxPos = max(maxPos, p)
	}
	w1 := max((bits.Len64(uint64(maxPos))+7)/8, 1)
	const w2 = 2

	data := make([]byte, 0, n*(1+w1+w2))
	data = append(data, 0)
	data = appendBigEndian(data, uint64(0), w1)
	data = appendBigEndian(data, uint16(0xFFFF), w2)
	for _, p := range pos {
		data = append(data, 1)
		data = appendBigEndian(data, uint64(p), w1)
		data = appendBigEndian(data, uint16(0), w2)
	}
	compressed, err := flateEncode(data)
	if err != nil {
		return err
	}

	dict := make(Dict, len(trailer)+5)
	for key, val := range trailer {
		dict[key] = val
	}
	dict["Type"] = Name("XRef")
	dict["Size"] = Integer(n)
	dict["W"] = Array{Integer(1), Integer(w1), Integer(w2)}
	dict["Filter"] = Name("FlateDecode")

	stm := &Stream{Dict: dict, Data: compressed}
	_, err = w.w.Printf("%d 0 obj\n", n-1)
	if err != nil {
		return err
	}
	err = stm.PDF(w.w)
	if err != nil {
		return err
	}
	_, err = w.w.WriteString("\nendobj\n")
	return err
}
