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
	"bufio"
	"cmp"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// WriterOptions control how a document is written.
type WriterOptions struct {
	// Version is the minimum PDF version of the output.  The version is
	// increased if a feature of the file requires this.  If this is zero,
	// the version of the document is used.
	Version Version

	// Encryption, if non-nil, specifies how the output is encrypted.
	// If this is nil, the output is not encrypted.
	Encryption *Encryption

	// XRefStream selects a compressed cross-reference stream instead of a
	// classic cross-reference table.
	XRefStream bool
}

// Write serialises doc to w.
//
// The objects are renumbered contiguously, starting from 1, in the order
// of their original object numbers.  All generation numbers in the output
// are 0.  References to objects which are not present in doc are written
// as null.
//
// The document is not modified.
func Write(w io.Writer, doc *Document, opt *WriterOptions) error {
	if opt == nil {
		opt = &WriterOptions{}
	}

	version := max(doc.Version, opt.Version, V1_0)
	if version >= tooHighVersion {
		return errVersion
	}
	if opt.XRefStream {
		version = max(version, V1_5)
	}

	catalog, err := doc.Catalog()
	if err != nil {
		return err
	}
	rootRef, isRef := doc.Trailer["Root"].(Reference)
	if !isRef {
		return &StructureError{Err: errors.New("catalog is not an indirect object")}
	}

	refs := make([]Reference, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, compareRefs)
	renumber := make(map[Reference]Reference, len(refs))
	for i, ref := range refs {
		renumber[ref] = NewReference(uint32(i+1), 0)
	}

	// Objects which are added or replaced during writing.
	override := make(map[Reference]Object)

	var enc *encryptInfo
	var id [][]byte
	if opt.Encryption != nil {
		// Every encryption run uses a fresh file key, so the file
		// identifier is regenerated as well.
		fileID := make([]byte, 16)
		_, err := rand.Read(fileID)
		if err != nil {
			return err
		}
		id = [][]byte{fileID, fileID}

		enc, err = newEncryptInfo(fileID, opt.Encryption)
		if err != nil {
			return err
		}
		version = max(version, opt.Encryption.Policy.Cipher.minVersion())

		if opt.Encryption.Policy.Cipher == CipherAES256 && version < V2_0 {
			catalog = withADBEExtension(doc, catalog)
			override[rootRef] = catalog
		}
	} else if len(doc.ID) == 2 {
		id = doc.ID
	}

	pw := &posWriter{w: bufio.NewWriter(w)}
	out := &writer{
		w:        pw,
		enc:      enc,
		renumber: renumber,
	}
	err = out.writeHeader(version)
	if err != nil {
		return err
	}

	pos := make([]int64, 0, len(refs)+1)
	for _, ref := range refs {
		obj, ok := override[ref]
		if !ok {
			obj = doc.Objects[ref]
		}
		pos = append(pos, pw.pos)
		err = out.writeIndirect(renumber[ref], obj)
		if err != nil {
			return err
		}
	}

	var encRef Reference
	if enc != nil {
		encRef = NewReference(uint32(len(pos)+1), 0)
		pos = append(pos, pw.pos)
		err = out.writeIndirectPlain(encRef, enc.AsDict())
		if err != nil {
			return err
		}
	}

	newTrailer := Dict{}
	for key, val := range doc.Trailer {
		conv, err := walkObject(val, func(o Object) (Object, error) {
			if ref, isRef := o.(Reference); isRef {
				return out.mapRef(ref), nil
			}
			return o, nil
		})
		if err != nil {
			return err
		}
		newTrailer[key] = conv
	}
	if enc != nil {
		newTrailer["Encrypt"] = encRef
	}
	if id != nil {
		newTrailer["ID"] = Array{String(id[0]), String(id[1])}
	}

	xRefPos := pw.pos
	if opt.XRefStream {
		err = out.writeXRefStream(pos, newTrailer)
	} else {
		newTrailer["Size"] = Integer(len(pos) + 1)
		err = out.writeXRefTable(pos, newTrailer)
	}
	if err != nil {
		return err
	}

	_, err = pw.Printf("startxref\n%d\n%%%%EOF\n", xRefPos)
	if err != nil {
		return err
	}
	return pw.w.Flush()
}

// compareRefs orders references by object number, then by generation.
func compareRefs(a, b Reference) int {
	if c := cmp.Compare(a.Number(), b.Number()); c != 0 {
		return c
	}
	return cmp.Compare(a.Generation(), b.Generation())
}

// withADBEExtension returns a copy of the catalog which announces the
// Adobe extension level 8 (AES-256 encryption, revision 6) for PDF 1.7.
func withADBEExtension(doc *Document, catalog Dict) Dict {
	res := maps.Clone(catalog)
	ext, _ := GetDict(doc, catalog["Extensions"])
	newExt := Dict{}
	for key, val := range ext {
		newExt[key] = val
	}
	newExt["ADBE"] = Dict{
		"BaseVersion":    Name("1.7"),
		"ExtensionLevel": Integer(8),
	}
	res["Extensions"] = newExt
	return res
}

// writer holds the state while a document is written.
type writer struct {
	w        *posWriter
	enc      *encryptInfo
	renumber map[Reference]Reference
}

func (w *writer) writeHeader(v Version) error {
	vString, err := v.ToString()
	if err != nil {
		return err
	}
	_, err = w.w.Printf("%%PDF-%s\n%%\x80\x80\x80\x80\n", vString)
	return err
}

// mapRef translates a reference of the input document into a reference of
// the output.  Dangling references are mapped to null.
func (w *writer) mapRef(ref Reference) Object {
	newRef, ok := w.renumber[ref]
	if !ok {
		return nil
	}
	return newRef
}

// writeIndirect writes obj as the indirect object ref.  References are
// renumbered and, if encryption is enabled, strings and streams are
// encrypted.
func (w *writer) writeIndirect(ref Reference, obj Object) error {
	obj, err := walkObject(obj, func(o Object) (Object, error) {
		switch x := o.(type) {
		case Reference:
			return w.mapRef(x), nil
		case String:
			if w.enc == nil {
				return x, nil
			}
			buf, err := w.enc.EncryptString(ref, x)
			if err != nil {
				return nil, err
			}
			return String(buf), nil
		case *Stream:
			if w.enc == nil || !w.encryptsStream(x) {
				return x, nil
			}
			buf, err := w.enc.EncryptStream(ref, x.Data)
			if err != nil {
				return nil, err
			}
			return &Stream{Dict: x.Dict, Data: buf}, nil
		default:
			return o, nil
		}
	})
	if err != nil {
		return fmt.Errorf("object %s: %w", ref, err)
	}
	return w.writeIndirectPlain(ref, obj)
}

// encryptsStream checks whether the data of stm is encrypted on output.
func (w *writer) encryptsStream(stm *Stream) bool {
	if stm.IsType("Metadata") && w.enc.sec.unencryptedMetaData {
		return false
	}
	return !hasIdentityCryptFilter(stm)
}

func (w *writer) writeIndirectPlain(ref Reference, obj Object) error {
	_, err := w.w.Printf("%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}
	err = writeObject(w.w, obj)
	if err != nil {
		return err
	}
	_, err = w.w.WriteString("\nendobj\n")
	return err
}

// posWriter keeps track of the number of bytes written, so that the
// offsets of objects can be recorded in the cross-reference table.
type posWriter struct {
	w   *bufio.Writer
	pos int64
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}

func (w *posWriter) WriteString(s string) (int, error) {
	n, err := w.w.WriteString(s)
	w.pos += int64(n)
	return n, err
}

func (w *posWriter) Printf(format string, args ...any) (int, error) {
	n, err := fmt.Fprintf(w.w, format, args...)
	w.pos += int64(n)
	return n, err
}
