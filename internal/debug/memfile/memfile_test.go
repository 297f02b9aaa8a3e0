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

package memfile

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnlimited(t *testing.T) {
	f := New(0)
	for _, s := range []string{"hello", " ", "world"} {
		n, err := f.Write([]byte(s))
		if err != nil {
			t.Fatal(err)
		}
		if n != len(s) {
			t.Errorf("short write: %d < %d", n, len(s))
		}
	}
	if d := cmp.Diff([]byte("hello world"), f.Bytes()); d != "" {
		t.Errorf("wrong contents (-want +got):\n%s", d)
	}
}

func TestLimit(t *testing.T) {
	f := New(8)
	n, err := f.Write([]byte("12345"))
	if n != 5 || err != nil {
		t.Fatalf("first write: %d, %v", n, err)
	}
	n, err = f.Write([]byte("67890"))
	if n != 3 || !errors.Is(err, ErrFull) {
		t.Fatalf("second write: %d, %v", n, err)
	}
	n, err = f.Write([]byte("x"))
	if n != 0 || !errors.Is(err, ErrFull) {
		t.Fatalf("third write: %d, %v", n, err)
	}
	if string(f.Data) != "12345678" {
		t.Errorf("wrong contents %q", f.Data)
	}
}

func TestClose(t *testing.T) {
	f := New(0)
	err := f.Close()
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Write([]byte("x"))
	if !errors.Is(err, fs.ErrClosed) {
		t.Errorf("write after close: %v", err)
	}
	err = f.Close()
	if !errors.Is(err, fs.ErrClosed) {
		t.Errorf("double close: %v", err)
	}
}
