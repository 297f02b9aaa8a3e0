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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in  Object
		out string
	}{
		{nil, "null"},
		{Bool(true), "true"},
		{Integer(-12), "-12"},
		{Real(1), "1."},
		{Real(-0.5), "-0.5"},
		{String("a"), "(a)"},
		{String("a (test version)"), "(a (test version))"},
		{String("a (test version"), "(a \\(test version)"},
		{String(""), "()"},
		{String("\000"), "<00>"},
		{String("x\\y"), `(x\\y)`},
		{Name("Type"), "/Type"},
		{Name("A B"), "/A#20B"},
		{Name("a#b"), "/a#23b"},
		{Name("x/y"), "/x#2fy"},
		{Array{Integer(1), nil, Integer(3)}, "[1 null 3]"},
		{Dict{"B": Integer(2), "A": Integer(1), "C": nil}, "<<\n/A 1\n/B 2\n>>"},
		{NewReference(12, 0), "12 0 R"},
		{NewReference(7, 3), "7 3 R"},
		{&Stream{Dict: Dict{"Length": Integer(99)}, Data: []byte("abc")},
			"<<\n/Length 3\n>>\nstream\nabc\nendstream"},
	}
	for _, test := range cases {
		out := Format(test.in)
		if out != test.out {
			t.Errorf("%#v wrongly formatted, expected %q but got %q",
				test.in, test.out, out)
		}
	}
}

func TestReferenceString(t *testing.T) {
	cases := []struct {
		ref Reference
		out string
	}{
		{NewReference(1, 0), "obj_1"},
		{NewReference(17, 2), "obj_17@2"},
		{NewReference(0xFFFFFFFF, 0xFFFF), "obj_4294967295@65535"},
	}
	for _, test := range cases {
		if got := test.ref.String(); got != test.out {
			t.Errorf("wrong string for %d %d: %q != %q",
				test.ref.Number(), test.ref.Generation(), got, test.out)
		}
	}
}

// TestFormatRoundTrip checks that formatted objects are parsed back into
// the same value.
func TestFormatRoundTrip(t *testing.T) {
	objects := []Object{
		Integer(0),
		Real(3.25),
		String("hello (world)"),
		String([]byte{0, 1, 2, 255, '(', ')'}),
		Name("Name with spaces"),
		Array{Name("A"), Integer(1), Array{}, Dict{}},
		Dict{"Kids": Array{NewReference(3, 0), NewReference(4, 1)}, "Count": Integer(2)},
	}
	for _, obj := range objects {
		s := newScanner([]byte(Format(obj)), 0, nil)
		out, err := s.ReadObject()
		if err != nil {
			t.Errorf("%s: %v", Format(obj), err)
			continue
		}
		if d := cmp.Diff(obj, out); d != "" {
			t.Errorf("%s: round trip failed (-want +got):\n%s", Format(obj), d)
		}
	}
}

func TestWalkObject(t *testing.T) {
	in := Dict{
		"Title": String("abc"),
		"Kids":  Array{NewReference(1, 0), String("x")},
		"Data":  &Stream{Dict: Dict{"Name": String("s")}, Data: []byte("stream")},
	}
	var seen []string
	out, err := walkObject(in, func(o Object) (Object, error) {
		seen = append(seen, Format(o))
		if s, ok := o.(String); ok {
			return String("<" + string(s) + ">"), nil
		}
		return o, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 5 {
		t.Errorf("callback called %d times, expected 5", len(seen))
	}

	want := Dict{
		"Title": String("<abc>"),
		"Kids":  Array{NewReference(1, 0), String("<x>")},
		"Data":  &Stream{Dict: Dict{"Name": String("<s>")}, Data: []byte("stream")},
	}
	if d := cmp.Diff(want, out); d != "" {
		t.Errorf("wrong result (-want +got):\n%s", d)
	}

	// the input must not be modified
	if in["Title"].(String)[0] != 'a' || in["Kids"].(Array)[1].(String)[0] != 'x' {
		t.Error("input was modified")
	}
}
