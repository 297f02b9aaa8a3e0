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
	"errors"
	"fmt"
	"strconv"
)

var (
	errVersion = errors.New("unsupported PDF version")
)

// StructureError indicates that the PDF file could not be parsed, because
// its structure is malformed.
type StructureError struct {
	Pos int64
	Err error
}

func (err *StructureError) Error() string {
	middle := ""
	if err.Err != nil {
		middle = ": " + err.Err.Error()
	}
	tail := ""
	if err.Pos > 0 {
		tail = " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return "malformed PDF file" + middle + tail
}

func (err *StructureError) Unwrap() error {
	return err.Err
}

func structureErrorf(pos int64, format string, args ...any) error {
	return &StructureError{Pos: pos, Err: fmt.Errorf(format, args...)}
}

// TruncatedDataError indicates that an object in the PDF file extends beyond
// the end of the available data.
type TruncatedDataError struct {
	Pos  int64 // start of the truncated data
	Want int64 // number of bytes declared
	Have int64 // number of bytes available
}

func (err *TruncatedDataError) Error() string {
	return fmt.Sprintf("truncated PDF data at byte %d: need %d bytes, have %d",
		err.Pos, err.Want, err.Have)
}

// AuthenticationError indicates that the supplied password does not
// validate against the encryption dictionary of a document.
type AuthenticationError struct {
	ID []byte
}

func (err *AuthenticationError) Error() string {
	return fmt.Sprintf("cannot authenticate document %x", err.ID)
}

// CryptoError indicates that a document uses an encryption scheme which is
// not supported, or that encrypted data could not be processed.
type CryptoError struct {
	Err error
}

func (err *CryptoError) Error() string {
	return "encryption: " + err.Err.Error()
}

func (err *CryptoError) Unwrap() error {
	return err.Err
}

func cryptoErrorf(format string, args ...any) error {
	return &CryptoError{Err: fmt.Errorf(format, args...)}
}

// IsAuthenticationError reports whether err (or an error it wraps) is an
// [AuthenticationError].
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
