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

// Package batch protects all PDF files in a directory.
//
// Documents are independent of each other and are processed by a pool of
// workers.  A failure only affects the document where it occurred; the
// remaining documents are still processed.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"seehuhn.de/go/pdfprotect/protect"
)

// Config describes a batch run.
type Config struct {
	SourceDir string

	// OutputDir receives the protected files.  It is created if needed.
	// If this is the same as SourceDir, the source files are replaced.
	OutputDir string

	Protect protect.Options

	// DeleteSource requests that source files are removed after the
	// protected version has been written and verified.  Source files which
	// are replaced in place are never deleted.
	DeleteSource bool

	// Workers is the number of documents processed concurrently.  If this
	// is zero or negative, runtime.NumCPU() is used.
	Workers int

	Logger *slog.Logger

	// OnResult, if set, is called once for every processed document.
	// Calls are not concurrent.
	OnResult func(Result)
}

// Result describes the outcome for one source file.
type Result struct {
	Name        string
	Source      string
	Destination string

	// Created is set if the output file had been created before the
	// failure occurred.
	Created bool

	// SourceDeleted is set if the source file was removed.
	SourceDeleted bool

	Info *protect.Result
	Err  error
}

// OK reports whether the document was protected and verified.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Summary collects the results of a batch run, in the order of the source
// files.
type Summary struct {
	Results []Result
}

// Attempted returns the number of documents which were processed.
func (s *Summary) Attempted() int {
	return len(s.Results)
}

// Succeeded returns the number of documents which were protected and
// verified.
func (s *Summary) Succeeded() int {
	n := 0
	for i := range s.Results {
		if s.Results[i].OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of documents which could not be protected.
func (s *Summary) Failed() int {
	return s.Attempted() - s.Succeeded()
}

// AllOK reports whether every attempted document succeeded.
func (s *Summary) AllOK() bool {
	return s.Failed() == 0
}

// Sources lists the PDF files in dir, sorted by name.  Files are
// recognised by the extension ".pdf", ignoring case.  Subdirectories are
// not searched.
func Sources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		path := filepath.Join(dir, name)
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		} else if !entry.Type().IsRegular() {
			continue
		}
		res = append(res, path)
	}
	return res, nil
}

// Run protects all PDF files in cfg.SourceDir.
//
// An error is returned only if the run as a whole cannot proceed, for
// example because the source directory cannot be read.  Problems with
// individual documents are reported in the summary.  If ctx is cancelled,
// no new documents are started, documents already in progress are
// completed, and the partial summary is returned together with the
// context's error.
func Run(ctx context.Context, cfg *Config) (*Summary, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	sources, err := Sources(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("source folder: %w", err)
	}
	summary := &Summary{}
	if len(sources) == 0 {
		return summary, nil
	}

	err = os.MkdirAll(cfg.OutputDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("output folder: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(sources))
	log.Debug("starting batch", "files", len(sources), "workers", workers)

	opt := cfg.Protect
	if opt.Logger == nil {
		opt.Logger = log
	}

	results := make([]Result, len(sources))
	done := make([]bool, len(sources))
	var mu sync.Mutex

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := processFile(sources[i], cfg, &opt, log)

				mu.Lock()
				results[i] = res
				done[i] = true
				if cfg.OnResult != nil {
					cfg.OnResult(res)
				}
				mu.Unlock()
			}
		}()
	}

	for i := range sources {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for i := range sources {
		if done[i] {
			summary.Results = append(summary.Results, results[i])
		}
	}
	return summary, ctx.Err()
}

// tmpSuffix is appended to the output name while a file is replaced in
// place.
const tmpSuffix = ".protect-tmp"

func processFile(src string, cfg *Config, opt *protect.Options, log *slog.Logger) Result {
	name := filepath.Base(src)
	dst := filepath.Join(cfg.OutputDir, name)
	res := Result{
		Name:        name,
		Source:      src,
		Destination: dst,
	}

	inPlace := samePath(src, dst)
	target := dst
	if inPlace {
		target = dst + tmpSuffix
	}

	info, err := protect.File(src, target, opt)
	if err != nil {
		var stageErr *protect.StageError
		res.Created = errors.As(err, &stageErr)
		res.Err = err
		removeOutput(target, log)
		log.Info("failed", "file", name, "created", res.Created, "error", err)
		return res
	}
	if inPlace {
		err = os.Rename(target, dst)
		if err != nil {
			res.Created = true
			res.Err = err
			removeOutput(target, log)
			return res
		}
		info.Destination = dst
	}
	res.Info = info
	log.Info("protected", "file", name, "pages", info.Report.Pages)

	if cfg.DeleteSource && !inPlace {
		err = os.Remove(src)
		if err != nil {
			log.Warn("cannot delete source", "file", src, "error", err)
		} else {
			res.SourceDeleted = true
		}
	}
	return res
}

// removeOutput deletes a partially written or unverified output file.
func removeOutput(path string, log *slog.Logger) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("cannot remove output", "file", path, "error", err)
	}
}

// samePath reports whether a and b refer to the same file.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}
