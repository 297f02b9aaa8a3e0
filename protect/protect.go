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

// Package protect encrypts PDF files with a user and an owner password.
//
// Each document passes through the stages parse, decrypt, encrypt, write
// and verify.  The whole document is held in memory, and the stages run
// strictly one after another.
package protect

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	pdf "seehuhn.de/go/pdfprotect"
	"seehuhn.de/go/pdfprotect/verify"
)

// Options describe how a document is protected.
type Options struct {
	UserPassword  string
	OwnerPassword string

	// SourcePassword is used to open source documents which are already
	// encrypted.
	SourcePassword string

	// Policy selects the cipher and the permissions.  If this is nil,
	// [pdf.DefaultPolicy] is used.
	Policy *pdf.Policy

	// XRefStream selects a cross-reference stream instead of a
	// cross-reference table for the output.
	XRefStream bool

	// Create opens the output file for writing.  If this is nil,
	// [os.Create] is used.
	Create func(name string) (io.WriteCloser, error)

	// Logger receives debug messages.  If this is nil, nothing is logged.
	Logger *slog.Logger
}

func (opt *Options) encryption() *pdf.Encryption {
	policy := pdf.DefaultPolicy()
	if opt.Policy != nil {
		policy = *opt.Policy
	}
	return &pdf.Encryption{
		UserPassword:  opt.UserPassword,
		OwnerPassword: opt.OwnerPassword,
		Policy:        policy,
	}
}

func (opt *Options) logger() *slog.Logger {
	if opt.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return opt.Logger
}

func (opt *Options) create(name string) (io.WriteCloser, error) {
	if opt.Create == nil {
		return os.Create(name)
	}
	return opt.Create(name)
}

// Result describes a successfully protected file.
type Result struct {
	Source      string
	Destination string

	// SourceSecurity describes the encryption of the source file, or is
	// nil if the source was not encrypted.
	SourceSecurity *pdf.SecurityInfo

	Report *verify.Report
}

// Bytes encrypts the PDF file src and returns the encrypted file.
//
// If src is encrypted, opt.SourcePassword is used to decrypt it.  A wrong
// source password gives a [*pdf.AuthenticationError].
func Bytes(src []byte, opt *Options) ([]byte, error) {
	if opt == nil {
		opt = &Options{}
	}
	doc, wOpt, err := prepare(src, opt)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	err = pdf.Write(buf, doc, wOpt)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// prepare parses the source document and checks the encryption settings.
// Errors returned here occur before any output is produced.
func prepare(src []byte, opt *Options) (*pdf.Document, *pdf.WriterOptions, error) {
	enc := opt.encryption()
	err := enc.Check()
	if err != nil {
		return nil, nil, err
	}
	doc, err := pdf.Parse(src, &pdf.ReaderOptions{Password: opt.SourcePassword})
	if err != nil {
		return nil, nil, err
	}
	wOpt := &pdf.WriterOptions{
		Encryption: enc,
		XRefStream: opt.XRefStream,
	}
	return doc, wOpt, nil
}

// File encrypts the PDF file src and writes the result to dst.  The output
// is then read back from disk and verified with the new passwords.
//
// Problems with the source file or the settings are reported before dst
// is created.  Errors after this point are of type [*StageError].  In this
// case dst may exist and contain a partial or unusable file; removing it
// is the responsibility of the caller.
//
// The source is read completely before dst is created.
func File(src, dst string, opt *Options) (*Result, error) {
	if opt == nil {
		opt = &Options{}
	}
	log := opt.logger().With("source", src)

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	doc, wOpt, err := prepare(data, opt)
	if err != nil {
		return nil, err
	}
	log.Debug("parsed",
		"version", doc.Version,
		"objects", len(doc.Objects),
		"encrypted", doc.Security != nil)

	err = writeFile(dst, doc, wOpt, opt)
	if err != nil {
		return nil, &StageError{Stage: StageCreate, Path: dst, Err: err}
	}
	log.Debug("written", "destination", dst)

	report, err := verify.File(dst, &verify.Options{
		UserPassword:  opt.UserPassword,
		OwnerPassword: opt.OwnerPassword,
	})
	if err != nil {
		return nil, &StageError{Stage: StageVerify, Path: dst, Err: err}
	}
	log.Debug("verified", "pages", report.Pages, "cipher", report.Security.Cipher)

	res := &Result{
		Source:         src,
		Destination:    dst,
		SourceSecurity: doc.Security,
		Report:         report,
	}
	return res, nil
}

func writeFile(dst string, doc *pdf.Document, wOpt *pdf.WriterOptions, opt *Options) error {
	w, err := opt.create(dst)
	if err != nil {
		return err
	}
	err = pdf.Write(w, doc, wOpt)
	closeErr := w.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// Stage identifies the part of the pipeline where an error occurred after
// the output file was created.
type Stage int

// These are the stages which can produce a [StageError].
const (
	StageCreate Stage = iota + 1 // the output could not be written
	StageVerify                  // the output was written but did not verify
)

func (s Stage) String() string {
	switch s {
	case StageCreate:
		return "create"
	case StageVerify:
		return "verify"
	default:
		return fmt.Sprintf("protect.Stage(%d)", int(s))
	}
}

// StageError is returned by [File] for errors which occur after the output
// file has been created.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (err *StageError) Error() string {
	switch err.Stage {
	case StageVerify:
		return fmt.Sprintf("%s: created but not verified: %v", err.Path, err.Err)
	default:
		return fmt.Sprintf("%s: not created: %v", err.Path, err.Err)
	}
}

func (err *StageError) Unwrap() error {
	return err.Err
}
