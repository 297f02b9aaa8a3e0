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

package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestShort(t *testing.T) {
	const path = "seehuhn.de/go/pdfprotect"
	cases := []struct {
		version  string
		settings []debug.BuildSetting
		want     string
	}{
		{"v0.2.0", nil, "pdf-protect (" + path + " v0.2.0)"},
		{"(devel)", nil, "pdf-protect"},
		{"(devel)", []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
		}, "pdf-protect (" + path + " 01234567)"},
		{"", []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc"},
			{Key: "vcs.modified", Value: "true"},
		}, "pdf-protect (" + path + " abc+dirty)"},
	}
	for _, test := range cases {
		info := &debug.BuildInfo{
			Main:     debug.Module{Path: path, Version: test.version},
			Settings: test.settings,
		}
		got := short("pdf-protect", info)
		if got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}
