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
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// pdfDocSpecial lists the code points of PDFDocEncoding which differ from
// ISO Latin 1.  A value of utf8.RuneError marks an undefined code.
var pdfDocSpecial = map[byte]rune{
	0x18: 0x02D8, // breve
	0x19: 0x02C7, // caron
	0x1A: 0x02C6, // circumflex
	0x1B: 0x02D9, // dotaccent
	0x1C: 0x02DD, // hungarumlaut
	0x1D: 0x02DB, // ogonek
	0x1E: 0x02DA, // ring
	0x1F: 0x02DC, // tilde
	0x7F: utf8.RuneError,
	0x80: 0x2022, // bullet
	0x81: 0x2020, // dagger
	0x82: 0x2021, // daggerdbl
	0x83: 0x2026, // ellipsis
	0x84: 0x2014, // emdash
	0x85: 0x2013, // endash
	0x86: 0x0192, // florin
	0x87: 0x2044, // fraction
	0x88: 0x2039, // guilsinglleft
	0x89: 0x203A, // guilsinglright
	0x8A: 0x2212, // minus
	0x8B: 0x2030, // perthousand
	0x8C: 0x201E, // quotedblbase
	0x8D: 0x201C, // quotedblleft
	0x8E: 0x201D, // quotedblright
	0x8F: 0x2018, // quoteleft
	0x90: 0x2019, // quoteright
	0x91: 0x201A, // quotesinglbase
	0x92: 0x2122, // trademark
	0x93: 0xFB01, // fi
	0x94: 0xFB02, // fl
	0x95: 0x0141, // Lslash
	0x96: 0x0152, // OE
	0x97: 0x0160, // Scaron
	0x98: 0x0178, // Ydieresis
	0x99: 0x017D, // Zcaron
	0x9A: 0x0131, // dotlessi
	0x9B: 0x0142, // lslash
	0x9C: 0x0153, // oe
	0x9D: 0x0161, // scaron
	0x9E: 0x017E, // zcaron
	0x9F: utf8.RuneError,
	0xA0: 0x20AC, // Euro
	0xAD: utf8.RuneError,
}

var pdfDocReverse = func() map[rune]byte {
	res := make(map[rune]byte, len(pdfDocSpecial))
	for c, r := range pdfDocSpecial {
		if r != utf8.RuneError {
			res[r] = c
		}
	}
	return res
}()

func pdfDocDecodeByte(c byte) rune {
	if r, ok := pdfDocSpecial[c]; ok {
		return r
	}
	return rune(c)
}

// pdfDocEncode converts a string to PDFDocEncoding.  The boolean result
// indicates whether all characters could be represented.
func pdfDocEncode(s string) ([]byte, bool) {
	res := make([]byte, 0, len(s))
	for _, r := range s {
		if c, ok := pdfDocReverse[r]; ok {
			res = append(res, c)
			continue
		}
		if r > 0xFF {
			return nil, false
		}
		c := byte(r)
		if _, special := pdfDocSpecial[c]; special {
			return nil, false
		}
		res = append(res, c)
	}
	return res, true
}

func pdfDocDecode(s []byte) string {
	r := make([]rune, len(s))
	for i, c := range s {
		r[i] = pdfDocDecodeByte(c)
	}
	return string(r)
}

// DecodeTextString converts a PDF text string to a Go string.  Text strings
// are either UTF-16 encoded (with byte order mark), UTF-8 encoded (with
// byte order mark, PDF 2.0), or use PDFDocEncoding.
func DecodeTextString(s String) string {
	switch {
	case bytes.HasPrefix(s, []byte{0xFE, 0xFF}), bytes.HasPrefix(s, []byte{0xFF, 0xFE}):
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(s)
		if err != nil {
			return pdfDocDecode(s)
		}
		return string(out)
	case bytes.HasPrefix(s, []byte{0xEF, 0xBB, 0xBF}):
		return string(s[3:])
	}
	return pdfDocDecode(s)
}

// EncodeTextString converts a Go string to a PDF text string, using
// PDFDocEncoding where possible and UTF-16 otherwise.
func EncodeTextString(s string) String {
	if buf, ok := pdfDocEncode(s); ok {
		return String(buf)
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		// only happens for invalid UTF-8, which the encoder cannot map
		return String(s)
	}
	return String(out)
}

// passwordBytes prepares a password for revisions 2 to 4 of the standard
// security handler: the password is NFC normalised and converted to
// PDFDocEncoding.
func passwordBytes(passwd string) ([]byte, bool) {
	return pdfDocEncode(norm.NFC.String(passwd))
}
