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
	"testing"
)

// pngPredict applies the PNG predictor tp to every row of data.
func pngPredict(data []byte, tp byte, bpp, rowBytes int) []byte {
	prev := make([]byte, rowBytes)
	var out []byte
	for len(data) > 0 {
		cur := data[:rowBytes]
		data = data[rowBytes:]
		out = append(out, tp)
		for i, x := range cur {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch tp {
			case 0:
				out = append(out, x)
			case 1:
				out = append(out, x-left)
			case 2:
				out = append(out, x-up)
			case 3:
				out = append(out, x-byte((int(left)+int(up))/2))
			case 4:
				out = append(out, x-paeth(left, up, upLeft))
			}
		}
		prev = cur
	}
	return out
}

func TestPNGPredictors(t *testing.T) {
	const rowBytes = 6
	data := []byte("0123456789abcdefghijklmnopqrstuvwxyz\x00\xff\x80\x7f\x01\xfe")
	data = data[:len(data)/rowBytes*rowBytes]

	for _, bpp := range []int{1, 2, 3} {
		for tp := byte(0); tp <= 4; tp++ {
			enc := pngPredict(data, tp, bpp, rowBytes)
			dec, err := pngUnpredict(enc, bpp, rowBytes)
			if err != nil {
				t.Errorf("bpp=%d type=%d: %v", bpp, tp, err)
				continue
			}
			if !bytes.Equal(dec, data) {
				t.Errorf("bpp=%d type=%d: wrong result %q", bpp, tp, dec)
			}
		}
	}
}

func TestPNGPredictorErrors(t *testing.T) {
	_, err := pngUnpredict([]byte{2, 1, 2, 3}, 1, 2)
	if err == nil {
		t.Error("incomplete row accepted")
	}
	_, err = pngUnpredict([]byte{5, 1, 2}, 1, 2)
	if err == nil {
		t.Error("invalid predictor type accepted")
	}
	_, err = pngUnpredict(nil, 0, 2)
	if err == nil {
		t.Error("invalid parameters accepted")
	}
}

func TestDecodeStream(t *testing.T) {
	plain := []byte("BT /F1 12 Tf 72 720 Td (Hello World) Tj ET")
	compressed, err := flateEncode(plain)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		stm  *Stream
	}{
		{"unfiltered", &Stream{Dict: Dict{}, Data: plain}},
		{"flate", &Stream{Dict: Dict{"Filter": Name("FlateDecode")}, Data: compressed}},
		{"abbreviated", &Stream{Dict: Dict{"Filter": Name("Fl")}, Data: compressed}},
		{"array", &Stream{
			Dict: Dict{
				"Filter":      Array{Name("FlateDecode")},
				"DecodeParms": Array{nil},
			},
			Data: compressed,
		}},
	}
	for _, test := range cases {
		out, err := DecodeStream(test.stm)
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if !bytes.Equal(out, plain) {
			t.Errorf("%s: wrong data %q", test.name, out)
		}
	}
}

func TestDecodeStreamPredictor(t *testing.T) {
	rows := []byte{
		1, 0, 0, 0, 15, 0,
		1, 0, 0, 1, 20, 0,
		2, 0, 0, 0, 3, 0,
	}
	enc := pngPredict(rows, 2, 1, 6)
	compressed, err := flateEncode(enc)
	if err != nil {
		t.Fatal(err)
	}
	stm := &Stream{
		Dict: Dict{
			"Filter":      Name("FlateDecode"),
			"DecodeParms": Dict{"Predictor": Integer(12), "Columns": Integer(6)},
		},
		Data: compressed,
	}
	out, err := DecodeStream(stm)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, rows) {
		t.Errorf("wrong data %v", out)
	}
}

func TestUnsupportedFilter(t *testing.T) {
	for _, filter := range []Object{Name("LZWDecode"), Integer(1), Array{Name("DCTDecode")}} {
		stm := &Stream{Dict: Dict{"Filter": filter}, Data: []byte("x")}
		_, err := DecodeStream(stm)
		if err == nil {
			t.Errorf("filter %s accepted", Format(filter))
		}
	}
}
