// Copyright 2020 Jochen Voss <voss@seehuhn.de>
//
// The PNG predictor code here started out from the pngUpReader in
// https://pkg.go.dev/rsc.io/pdf .  Use of this source code is governed by a
// BSD-style license, which is reproduced here:
//
//     Copyright (c) 2009 The Go Authors. All rights reserved.
//
//     Redistribution and use in source and binary forms, with or without
//     modification, are permitted provided that the following conditions are
//     met:
//
//        * Redistributions of source code must retain the above copyright
//     notice, this list of conditions and the following disclaimer.
//        * Redistributions in binary form must reproduce the above
//     copyright notice, this list of conditions and the following disclaimer
//     in the documentation and/or other materials provided with the
//     distribution.
//        * Neither the name of Google Inc. nor the names of its
//     contributors may be used to endorse or promote products derived from
//     this software without specific prior written permission.
//
//     THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
//     "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
//     LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
//     A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
//     OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
//     SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
//     LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
//     DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
//     THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
//     (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
//     OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package pdf

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// maxDecodedSize limits the size of decoded structural streams
// (cross-reference streams and object streams).
const maxDecodedSize = 1 << 28

// DecodeStream removes the filters from the data of a stream.
// Only FlateDecode is supported, since this is what PDF writers use for
// cross-reference streams, object streams and metadata in practice.
func DecodeStream(stm *Stream) ([]byte, error) {
	var filters []Object
	var parms []Object
	switch f := stm.Dict["Filter"].(type) {
	case nil:
		return stm.Data, nil
	case Name:
		filters = []Object{f}
		parms = []Object{stm.Dict["DecodeParms"]}
	case Array:
		filters = f
		if p, ok := stm.Dict["DecodeParms"].(Array); ok {
			parms = p
		}
	default:
		return nil, fmt.Errorf("invalid filter description %s", Format(f))
	}

	data := stm.Data
	for i, f := range filters {
		var param Object
		if i < len(parms) {
			param = parms[i]
		}
		var err error
		data, err = applyFilter(data, f, param)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func applyFilter(data []byte, name Object, param Object) ([]byte, error) {
	n, ok := name.(Name)
	if !ok {
		return nil, fmt.Errorf("invalid filter description %s", Format(name))
	}
	switch n {
	case "FlateDecode", "Fl":
		params := map[Name]int{
			"Predictor":        1,
			"Colors":           1,
			"BitsPerComponent": 8,
			"Columns":          1,
		}
		if pDict, ok := param.(Dict); ok {
			for key := range params {
				if val, ok := pDict[key].(Integer); ok {
					params[key] = int(val)
				}
			}
		}

		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		out, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize+1))
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		if len(out) > maxDecodedSize {
			return nil, errors.New("decoded stream too large")
		}

		pred := params["Predictor"]
		switch {
		case pred == 1:
			return out, nil
		case pred >= 10 && pred <= 15:
			bpp := (params["Colors"]*params["BitsPerComponent"] + 7) / 8
			rowBytes := (params["Colors"]*params["BitsPerComponent"]*params["Columns"] + 7) / 8
			return pngUnpredict(out, bpp, rowBytes)
		default:
			return nil, fmt.Errorf("unsupported predictor %d", pred)
		}
	default:
		return nil, fmt.Errorf("unsupported filter %q", n)
	}
}

// pngUnpredict reverses the PNG predictors.  Each row of the input starts
// with a byte which gives the predictor used for this row.
func pngUnpredict(data []byte, bpp, rowBytes int) ([]byte, error) {
	if bpp < 1 || rowBytes < 1 {
		return nil, errors.New("invalid predictor parameters")
	}
	stride := rowBytes + 1
	if len(data)%stride != 0 {
		return nil, errors.New("malformed PNG predictor data")
	}

	prev := make([]byte, rowBytes)
	out := make([]byte, 0, len(data)/stride*rowBytes)
	for len(data) > 0 {
		tp := data[0]
		row := data[1:stride]
		data = data[stride:]

		cur := make([]byte, rowBytes)
		for i, x := range row {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch tp {
			case 0: // None
				cur[i] = x
			case 1: // Sub
				cur[i] = x + left
			case 2: // Up
				cur[i] = x + up
			case 3: // Average
				cur[i] = x + byte((int(left)+int(up))/2)
			case 4: // Paeth
				cur[i] = x + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG predictor type %d", tp)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// flateEncode compresses data for a stream with /Filter /FlateDecode.
func flateEncode(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	_, err = zw.Write(data)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
