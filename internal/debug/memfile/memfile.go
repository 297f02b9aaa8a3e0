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
)

// MemFile is a temporary in-memory file.
//
// This type implements the [io.WriteCloser] interface.
type MemFile struct {
	// Data are the file contents.
	Data []byte

	// Limit is the maximum number of bytes the file can hold.
	// Zero means no limit.
	Limit int64

	closed bool
}

// New creates a new MemFile which can hold at most limit bytes.
// If limit is zero, the file size is not limited.
func New(limit int64) *MemFile {
	return &MemFile{Limit: limit}
}

// Write appends data to the file.  If the data does not fit, the part which
// fits is written and [ErrFull] is returned.
func (f *MemFile) Write(p []byte) (n int, err error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if f.Limit > 0 {
		room := f.Limit - int64(len(f.Data))
		if int64(len(p)) > room {
			f.Data = append(f.Data, p[:room]...)
			return int(room), ErrFull
		}
	}
	f.Data = append(f.Data, p...)
	return len(p), nil
}

// Close marks the file as closed.  Further writes fail.
func (f *MemFile) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	return nil
}

// Bytes returns the current contents of the file.
func (f *MemFile) Bytes() []byte {
	return f.Data
}

// ErrFull is returned by Write when the size limit is reached.
var ErrFull = errors.New("no space left in memory file")
