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

package verify

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"
	pdf "seehuhn.de/go/pdfprotect"
	"seehuhn.de/go/pdfprotect/internal/testpdf"
	"seehuhn.de/go/xmp"
)

func TestBytes(t *testing.T) {
	data, err := testpdf.Encrypted("Verify", "u1", "o1")
	if err != nil {
		t.Fatal(err)
	}

	report, err := Bytes(data, &Options{UserPassword: "u1", OwnerPassword: "o1"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Pages != 1 {
		t.Errorf("wrong page count %d", report.Pages)
	}
	if report.Security.Cipher != pdf.CipherAES256 {
		t.Errorf("wrong cipher %s", report.Security.Cipher)
	}
	if report.Security.Permissions != pdf.PermPrintOnly {
		t.Errorf("wrong permissions %s", report.Security.Permissions)
	}
	if !report.Security.OwnerAuthenticated {
		t.Error("owner password not checked")
	}
	if report.Metadata != nil || report.MetadataErr != nil {
		t.Errorf("unexpected metadata: %v %v", report.Metadata, report.MetadataErr)
	}
}

func TestFailures(t *testing.T) {
	encrypted, err := testpdf.Encrypted("Verify", "u1", "o1")
	if err != nil {
		t.Fatal(err)
	}
	plain, err := testpdf.Encode(testpdf.Document(1, "plain"), nil)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		data []byte
		opt  *Options
		auth bool
	}{
		{"wrong user password", encrypted, &Options{UserPassword: "wrong"}, true},
		{"wrong owner password", encrypted, &Options{UserPassword: "u1", OwnerPassword: "u1"}, true},
		{"not encrypted", plain, &Options{UserPassword: "u1"}, false},
		{"truncated", encrypted[:len(encrypted)/2], &Options{UserPassword: "u1"}, false},
		{"garbage", []byte("not a PDF file"), nil, false},
	}
	for _, test := range cases {
		_, err := Bytes(test.data, test.opt)
		var vErr *VerificationError
		if !errors.As(err, &vErr) {
			t.Errorf("%s: expected VerificationError, got %v", test.name, err)
			continue
		}
		if pdf.IsAuthenticationError(err) != test.auth {
			t.Errorf("%s: wrong cause %v", test.name, err)
		}
	}
}

func TestFile(t *testing.T) {
	data, err := testpdf.Encrypted("Verify", "", "owner")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.pdf")
	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		t.Fatal(err)
	}

	// verification has no side effects, so repeated runs give the same
	// result
	var reports []*Report
	for range 2 {
		report, err := File(path, &Options{OwnerPassword: "owner"})
		if err != nil {
			t.Fatal(err)
		}
		reports = append(reports, report)
	}
	if reports[0].Pages != reports[1].Pages || reports[0].Version != reports[1].Version {
		t.Error("verification results differ")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(data, after); d != "" {
		t.Error("file was modified")
	}

	_, err = File(filepath.Join(t.TempDir(), "missing.pdf"), nil)
	var vErr *VerificationError
	if !errors.As(err, &vErr) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}

	_, err = File(path, &Options{UserPassword: "x"})
	if !errors.As(err, &vErr) || vErr.Path != path {
		t.Errorf("wrong error %v", err)
	}
}

func TestMetadata(t *testing.T) {
	doc := testpdf.Document(2, "With Metadata")
	err := testpdf.AddMetadata(doc, "XMP Title")
	if err != nil {
		t.Fatal(err)
	}
	data, err := testpdf.Encode(doc, &pdf.WriterOptions{
		Encryption: &pdf.Encryption{UserPassword: "u", Policy: pdf.DefaultPolicy()},
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := Bytes(data, &Options{UserPassword: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if report.MetadataErr != nil {
		t.Fatal(report.MetadataErr)
	}
	if report.Metadata == nil {
		t.Fatal("metadata not found")
	}

	dc := &xmp.DublinCore{}
	dc.Title.Set(language.Und, "XMP Title")
	packet := xmp.NewPacket()
	err = packet.Set(dc)
	if err != nil {
		t.Fatal(err)
	}
	var want, got xmp.DublinCore
	packet.Get(&want)
	report.Metadata.Get(&got)
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("wrong metadata (-want +got):\n%s", d)
	}
}
