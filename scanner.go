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
	"slices"
	"strconv"
)

// maxNesting limits the nesting depth of arrays and dictionaries.
const maxNesting = 256

// scanner splits PDF data into tokens and assembles them into objects.
// The complete input is held in memory.
type scanner struct {
	data []byte
	pos  int

	// base is the file offset of data[0], used for error messages.
	base int64

	// getLength resolves indirect /Length entries of stream dictionaries.
	// If this is nil, streams are not allowed.
	getLength func(Reference) (Integer, error)

	depth int
}

func newScanner(data []byte, base int64, getLength func(Reference) (Integer, error)) *scanner {
	return &scanner{
		data:      data,
		base:      base,
		getLength: getLength,
	}
}

func (s *scanner) filePos() int64 {
	return s.base + int64(s.pos)
}

func (s *scanner) errorf(format string, args ...any) error {
	return structureErrorf(s.filePos(), format, args...)
}

func (s *scanner) atEOF() bool {
	return s.pos >= len(s.data)
}

// ReadIndirectObject reads an object of the form "n g obj ... endobj".
func (s *scanner) ReadIndirectObject() (Reference, Object, error) {
	s.SkipWhiteSpace()
	number, err := s.readUint()
	if err != nil {
		return 0, nil, err
	}
	s.SkipWhiteSpace()
	generation, err := s.readUint()
	if err != nil {
		return 0, nil, err
	}
	if number > 0xFFFFFFFF || generation > 0xFFFF {
		return 0, nil, s.errorf("invalid object number %d %d", number, generation)
	}
	err = s.SkipKeyword("obj")
	if err != nil {
		return 0, nil, err
	}

	obj, err := s.ReadObject()
	if err != nil {
		return 0, nil, err
	}

	err = s.SkipKeyword("endobj")
	if err != nil {
		return 0, nil, err
	}

	ref := NewReference(uint32(number), uint16(generation))
	return ref, obj, nil
}

// ReadObject reads the next object.  References to indirect objects are
// recognised and returned as [Reference] values.
func (s *scanner) ReadObject() (Object, error) {
	s.SkipWhiteSpace()
	if s.atEOF() {
		return nil, s.errorf("unexpected end of data")
	}

	c := s.data[s.pos]
	switch {
	case c == '/':
		return s.ReadName()
	case c == '(':
		s.pos++
		return s.ReadQuotedString()
	case c == '<':
		if s.hasPrefix("<<") {
			dict, err := s.ReadDict()
			if err != nil {
				return nil, err
			}
			afterDict := s.pos
			s.SkipWhiteSpace()
			if s.hasKeyword("stream") {
				return s.ReadStreamData(dict)
			}
			s.pos = afterDict
			return dict, nil
		}
		s.pos++
		return s.ReadHexString()
	case c == '[':
		s.pos++
		return s.ReadArray()
	case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		num, err := s.ReadNumber()
		if err != nil {
			return nil, err
		}
		a, isInt := num.(Integer)
		if isInt && isDigit(c) {
			if ref, ok := s.tryReference(a); ok {
				return ref, nil
			}
		}
		return num, nil
	}

	kw := s.readRegular()
	switch string(kw) {
	case "null":
		return nil, nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "":
		return nil, s.errorf("unexpected character %q", c)
	}
	return nil, s.errorf("unexpected keyword %q", kw)
}

// tryReference checks whether the integer a, which has just been read, is
// the start of an "a b R" reference.  If not, the read position is left
// unchanged.
func (s *scanner) tryReference(a Integer) (Reference, bool) {
	save := s.pos
	s.SkipWhiteSpace()
	if s.atEOF() || !isDigit(s.data[s.pos]) {
		s.pos = save
		return 0, false
	}
	b, err := s.readUint()
	if err != nil {
		s.pos = save
		return 0, false
	}
	s.SkipWhiteSpace()
	if !s.hasKeyword("R") || a > 0xFFFFFFFF || b > 0xFFFF {
		s.pos = save
		return 0, false
	}
	s.pos++
	return NewReference(uint32(a), uint16(b)), true
}

// ReadNumber reads an integer or real number.
func (s *scanner) ReadNumber() (Object, error) {
	start := s.pos
	hasDot := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c == '.' && !hasDot {
			hasDot = true
		} else if (c == '+' || c == '-') && s.pos == start {
			// sign
		} else if !isDigit(c) {
			break
		}
		s.pos++
	}
	tok := string(s.data[start:s.pos])

	if hasDot {
		x, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, structureErrorf(s.base+int64(start), "invalid number %q", tok)
		}
		return Real(x), nil
	}
	x, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, structureErrorf(s.base+int64(start), "invalid number %q", tok)
	}
	return Integer(x), nil
}

// ReadInteger reads an integer, with optional sign.
func (s *scanner) ReadInteger() (Integer, error) {
	s.SkipWhiteSpace()
	obj, err := s.ReadNumber()
	if err != nil {
		return 0, err
	}
	x, ok := obj.(Integer)
	if !ok {
		return 0, s.errorf("expected integer, got %s", Format(obj))
	}
	return x, nil
}

func (s *scanner) readUint() (int64, error) {
	start := s.pos
	for s.pos < len(s.data) && isDigit(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return 0, s.errorf("expected unsigned integer")
	}
	x, err := strconv.ParseInt(string(s.data[start:s.pos]), 10, 64)
	if err != nil {
		return 0, structureErrorf(s.base+int64(start), "invalid integer: %w", err)
	}
	return x, nil
}

// ReadQuotedString reads a ()-delimited string, starting after the opening
// bracket.
func (s *scanner) ReadQuotedString() (String, error) {
	start := s.filePos()
	res := []byte{}
	level := 0
	for {
		if s.atEOF() {
			return nil, structureErrorf(start, "unterminated string")
		}
		c := s.data[s.pos]
		s.pos++

		switch c {
		case '(':
			level++
		case ')':
			if level == 0 {
				return String(res), nil
			}
			level--
		case '\r':
			// end-of-line markers inside strings are read as \n
			if !s.atEOF() && s.data[s.pos] == '\n' {
				s.pos++
			}
			c = '\n'
		case '\\':
			if s.atEOF() {
				return nil, structureErrorf(start, "unterminated string")
			}
			c = s.data[s.pos]
			s.pos++
			switch c {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r':
				if !s.atEOF() && s.data[s.pos] == '\n' {
					s.pos++
				}
				continue
			case '\n':
				continue
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := c - '0'
				for k := 0; k < 2 && !s.atEOF(); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val*8 + (d - '0')
					s.pos++
				}
				c = val
			}
			// for all other characters, the backslash is ignored
		}
		res = append(res, c)
	}
}

// ReadHexString reads a <>-delimited string, starting after the opening
// angle bracket.
func (s *scanner) ReadHexString() (String, error) {
	start := s.filePos()
	res := []byte{}
	var hexVal byte
	first := true
	for {
		if s.atEOF() {
			return nil, structureErrorf(start, "unterminated hex string")
		}
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		if isSpace[c] {
			continue
		}
		d, ok := hexDigit(c)
		if !ok {
			return nil, s.errorf("invalid character %q in hex string", c)
		}
		if first {
			hexVal = d
		} else {
			res = append(res, hexVal<<4|d)
		}
		first = !first
	}
	if !first {
		res = append(res, hexVal<<4)
	}
	return String(res), nil
}

// ReadName reads a PDF name object, including the leading slash.
func (s *scanner) ReadName() (Name, error) {
	if s.atEOF() || s.data[s.pos] != '/' {
		return "", s.errorf("expected name")
	}
	s.pos++

	var res []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isSpace[c] || isDelimiter[c] {
			break
		}
		s.pos++
		if c == '#' {
			if s.pos+2 > len(s.data) {
				return "", s.errorf("truncated #-escape in name")
			}
			hi, ok1 := hexDigit(s.data[s.pos])
			lo, ok2 := hexDigit(s.data[s.pos+1])
			if !ok1 || !ok2 {
				return "", s.errorf("invalid #-escape in name")
			}
			c = hi<<4 | lo
			s.pos += 2
		}
		res = append(res, c)
	}
	return Name(res), nil
}

// ReadArray reads an array, starting after the opening "[".
func (s *scanner) ReadArray() (Array, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxNesting {
		return nil, s.errorf("objects nested too deeply")
	}

	array := Array{}
	for {
		s.SkipWhiteSpace()
		if s.atEOF() {
			return nil, s.errorf("unterminated array")
		}
		if s.data[s.pos] == ']' {
			s.pos++
			return array, nil
		}
		obj, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		array = append(array, obj)
	}
}

// ReadDict reads a PDF dictionary, including the "<<" and ">>" markers.
// Entries with a null value are dropped.
func (s *scanner) ReadDict() (Dict, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxNesting {
		return nil, s.errorf("objects nested too deeply")
	}

	if !s.hasPrefix("<<") {
		return nil, s.errorf("expected dictionary")
	}
	s.pos += 2

	dict := Dict{}
	for {
		s.SkipWhiteSpace()
		if s.atEOF() {
			return nil, s.errorf("unterminated dictionary")
		}
		if s.hasPrefix(">>") {
			s.pos += 2
			return dict, nil
		}
		key, err := s.ReadName()
		if err != nil {
			return nil, err
		}
		val, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		if val != nil {
			dict[key] = val
		}
	}
}

// ReadStreamData reads the data of a PDF Stream, starting at the "stream"
// keyword after the stream dictionary.
func (s *scanner) ReadStreamData(dict Dict) (*Stream, error) {
	if s.getLength == nil {
		return nil, s.errorf("stream not allowed here")
	}
	s.pos += len("stream")

	switch {
	case s.hasPrefix("\r\n"):
		s.pos += 2
	case s.hasPrefix("\n"):
		s.pos++
	default:
		return nil, s.errorf("missing end-of-line after stream keyword")
	}

	var length Integer
	switch l := dict["Length"].(type) {
	case Integer:
		length = l
	case Reference:
		var err error
		length, err = s.getLength(l)
		if err != nil {
			return nil, err
		}
	default:
		return nil, s.errorf("missing or invalid stream /Length")
	}
	if length < 0 {
		return nil, s.errorf("stream with negative length %d", length)
	}

	avail := int64(len(s.data) - s.pos)
	if int64(length) > avail {
		return nil, &TruncatedDataError{
			Pos:  s.filePos(),
			Want: int64(length),
			Have: avail,
		}
	}
	data := slices.Clone(s.data[s.pos : s.pos+int(length)])
	s.pos += int(length)

	err := s.SkipKeyword("endstream")
	if err != nil {
		return nil, err
	}

	return &Stream{
		Dict: dict,
		Data: data,
	}, nil
}

// SkipWhiteSpace skips white space and comments.
func (s *scanner) SkipWhiteSpace() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\r' && s.data[s.pos] != '\n' {
				s.pos++
			}
			continue
		}
		if !isSpace[c] {
			return
		}
		s.pos++
	}
}

// SkipKeyword skips white space, followed by the given keyword.
func (s *scanner) SkipKeyword(kw string) error {
	s.SkipWhiteSpace()
	if !s.hasKeyword(kw) {
		found := s.data[s.pos:min(s.pos+len(kw), len(s.data))]
		return s.errorf("expected %q but found %q", kw, found)
	}
	s.pos += len(kw)
	return nil
}

func (s *scanner) hasPrefix(pat string) bool {
	return bytes.HasPrefix(s.data[s.pos:], []byte(pat))
}

// hasKeyword checks whether the input continues with the keyword kw,
// followed by a delimiter, white space, or the end of data.
func (s *scanner) hasKeyword(kw string) bool {
	if !s.hasPrefix(kw) {
		return false
	}
	next := s.pos + len(kw)
	return next >= len(s.data) || isSpace[s.data[next]] || isDelimiter[s.data[next]]
}

// readRegular reads a run of regular characters.
func (s *scanner) readRegular() []byte {
	start := s.pos
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isSpace[c] || isDelimiter[c] {
			break
		}
		s.pos++
	}
	return s.data[start:s.pos]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

var (
	isSpace = [256]bool{
		0:  true,
		9:  true,
		10: true,
		12: true,
		13: true,
		32: true,
	}
	isDelimiter = [256]bool{
		'(': true,
		')': true,
		'<': true,
		'>': true,
		'[': true,
		']': true,
		'{': true,
		'}': true,
		'/': true,
		'%': true,
	}
)
