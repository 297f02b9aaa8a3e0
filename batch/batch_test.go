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

package batch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	pdf "seehuhn.de/go/pdfprotect"
	"seehuhn.de/go/pdfprotect/internal/testpdf"
	"seehuhn.de/go/pdfprotect/protect"
)

// makeSources writes one-page PDF files with the given names into dir.
func makeSources(t *testing.T, dir string, names ...string) {
	t.Helper()
	data, err := testpdf.Encode(testpdf.Document(1, "batch"), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		err := os.WriteFile(filepath.Join(dir, name), data, 0o644)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	makeSources(t, dir, "b.pdf", "a.PDF", "c.Pdf", "notes.txt", "pdf")
	err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Sources(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.PDF"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "c.Pdf"),
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("wrong sources (-want +got):\n%s", d)
	}

	_, err = Sources(filepath.Join(dir, "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing directory: got %v", err)
	}
}

func TestRun(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out", "nested")
	names := []string{"1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf"}
	makeSources(t, srcDir, names...)

	var seen []string
	summary, err := Run(context.Background(), &Config{
		SourceDir: srcDir,
		OutputDir: outDir,
		Protect:   protect.Options{UserPassword: "u1", OwnerPassword: "o1"},
		Workers:   3,
		OnResult: func(res Result) {
			seen = append(seen, res.Name)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Attempted() != 5 || summary.Succeeded() != 5 || !summary.AllOK() {
		t.Errorf("wrong summary: %d attempted, %d succeeded",
			summary.Attempted(), summary.Succeeded())
	}
	if len(seen) != len(names) {
		t.Errorf("OnResult called %d times", len(seen))
	}

	for i, res := range summary.Results {
		if res.Name != names[i] {
			t.Errorf("result %d is for %q", i, res.Name)
		}
		if res.SourceDeleted || !exists(res.Source) {
			t.Errorf("%s: source was deleted", res.Name)
		}
		_, err := pdf.Open(res.Destination, &pdf.ReaderOptions{Password: "u1"})
		if err != nil {
			t.Errorf("%s: %v", res.Name, err)
		}
	}
}

func TestRunDeleteSource(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	makeSources(t, srcDir, "a.pdf", "b.pdf")
	err := os.WriteFile(filepath.Join(srcDir, "broken.pdf"), []byte("%PDF-1.7\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := Run(context.Background(), &Config{
		SourceDir:    srcDir,
		OutputDir:    outDir,
		Protect:      protect.Options{UserPassword: "u"},
		DeleteSource: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded() != 2 || summary.Failed() != 1 || summary.AllOK() {
		t.Errorf("wrong summary: %d succeeded, %d failed",
			summary.Succeeded(), summary.Failed())
	}
	for _, res := range summary.Results {
		switch res.Name {
		case "broken.pdf":
			if res.Created {
				t.Error("broken.pdf: output reported as created")
			}
			if !exists(res.Source) {
				t.Error("broken.pdf: failed source was deleted")
			}
			if exists(res.Destination) {
				t.Error("broken.pdf: output exists")
			}
		default:
			if !res.SourceDeleted || exists(res.Source) {
				t.Errorf("%s: source not deleted", res.Name)
			}
			if !exists(res.Destination) {
				t.Errorf("%s: output missing", res.Name)
			}
		}
	}
}

func TestRunInPlace(t *testing.T) {
	dir := t.TempDir()
	makeSources(t, dir, "a.pdf")

	summary, err := Run(context.Background(), &Config{
		SourceDir:    dir,
		OutputDir:    dir,
		Protect:      protect.Options{UserPassword: "u"},
		DeleteSource: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !summary.AllOK() || summary.Attempted() != 1 {
		t.Fatalf("in-place run failed: %v", summary.Results)
	}
	res := summary.Results[0]
	if res.SourceDeleted {
		t.Error("source reported as deleted")
	}
	doc, err := pdf.Open(filepath.Join(dir, "a.pdf"), &pdf.ReaderOptions{Password: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Security == nil {
		t.Error("file was not replaced")
	}
	if exists(filepath.Join(dir, "a.pdf"+tmpSuffix)) {
		t.Error("temporary file left behind")
	}
}

// fullDisk passes the first n bytes on to the file and then fails, like a
// file system which runs out of space.
type fullDisk struct {
	f       *os.File
	n       int
	written int
}

var errDiskFull = errors.New("no space left on device")

func (w *fullDisk) Write(p []byte) (int, error) {
	k := min(len(p), w.n-w.written)
	if k > 0 {
		_, err := w.f.Write(p[:k])
		if err != nil {
			return 0, err
		}
		w.written += k
	}
	if k < len(p) {
		return k, errDiskFull
	}
	return k, nil
}

func (w *fullDisk) Close() error {
	return w.f.Close()
}

// TestRunFailureCleanup simulates a full disk while the output is written.
// The partial output must not remain at the destination.
func TestRunFailureCleanup(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	makeSources(t, srcDir, "a.pdf")

	var disk *fullDisk
	var partial int64
	summary, err := Run(context.Background(), &Config{
		SourceDir: srcDir,
		OutputDir: outDir,
		Protect: protect.Options{
			UserPassword: "u",
			Create: func(name string) (io.WriteCloser, error) {
				f, err := os.Create(name)
				if err != nil {
					return nil, err
				}
				disk = &fullDisk{f: f, n: 300}
				return disk, nil
			},
		},
		DeleteSource: true,
		OnResult: func(res Result) {
			// the output is removed before OnResult is called
			if fi, err := os.Stat(res.Destination); err == nil {
				partial = fi.Size()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.AllOK() || summary.Failed() != 1 {
		t.Fatal("failure not reported")
	}
	res := summary.Results[0]
	if !res.Created {
		t.Error("failure not attributed to the create stage")
	}
	if !errors.Is(res.Err, errDiskFull) {
		t.Errorf("wrong error %v", res.Err)
	}
	if disk == nil || disk.written != 300 {
		t.Errorf("partial output not written to disk")
	}
	if partial != 0 || exists(res.Destination) {
		t.Error("partial output was not removed")
	}
	if !exists(res.Source) {
		t.Error("source was deleted")
	}
}

func TestRunCancelled(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	makeSources(t, srcDir, "a.pdf", "b.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := Run(ctx, &Config{
		SourceDir: srcDir,
		OutputDir: outDir,
		Protect:   protect.Options{UserPassword: "u"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("wrong error %v", err)
	}
	if summary == nil || summary.Attempted() != 0 {
		t.Errorf("documents processed after cancellation")
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), &Config{
		SourceDir: filepath.Join(dir, "missing"),
		OutputDir: dir,
	})
	if err == nil {
		t.Error("missing source folder not detected")
	}

	// no PDF files: nothing to do, the output folder is not created
	outDir := filepath.Join(dir, "out")
	summary, err := Run(context.Background(), &Config{
		SourceDir: dir,
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Attempted() != 0 || !summary.AllOK() {
		t.Error("wrong summary for empty folder")
	}
	if exists(outDir) {
		t.Error("output folder created")
	}
}
