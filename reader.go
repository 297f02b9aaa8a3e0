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
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
)

// ReaderOptions control how a PDF file is read.
type ReaderOptions struct {
	// Password is used to decrypt encrypted documents.  It is tried as the
	// user password first and as the owner password second.
	Password string
}

// Open reads the named PDF file into memory and parses it.
func Open(fname string, opt *ReaderOptions) (*Document, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return Parse(data, opt)
}

// reader holds the state needed while a document is parsed.
type reader struct {
	data []byte
	xref map[uint32]*xRefEntry

	// structural lists the object numbers of cross-reference streams,
	// object streams and the encryption dictionary.  These are not
	// copied into the document.
	structural map[uint32]bool

	enc        *encryptInfo
	encryptRef Reference

	lengths     map[Reference]Integer
	lengthsBusy map[Reference]bool

	objStms map[uint32][]objStmEntry
}

type objStmEntry struct {
	num uint32
	obj Object
}

// Parse parses a complete PDF file held in memory.  If the file is
// encrypted, opt.Password is used to decrypt all strings and streams.
//
// Malformed files are not repaired: structural problems cause a
// [*StructureError] or [*TruncatedDataError], a wrong password causes an
// [*AuthenticationError] and unsupported encryption causes a
// [*CryptoError].
func Parse(data []byte, opt *ReaderOptions) (*Document, error) {
	if opt == nil {
		opt = &ReaderOptions{}
	}

	r := &reader{
		data:        data,
		structural:  make(map[uint32]bool),
		lengths:     make(map[Reference]Integer),
		lengthsBusy: make(map[Reference]bool),
		objStms:     make(map[uint32][]objStmEntry),
	}

	version, err := r.readHeader()
	if err != nil {
		return nil, err
	}

	trailer, err := r.readXRef()
	if err != nil {
		return nil, err
	}

	doc := NewDocument(version)

	if idObj, ok := trailer["ID"]; ok {
		doc.ID, err = parseID(idObj)
		if err != nil {
			return nil, err
		}
	}

	if encObj, ok := trailer["Encrypt"]; ok {
		err = r.setupDecryption(encObj, doc.ID, opt.Password)
		if err != nil {
			return nil, err
		}
		doc.Security = newSecurityInfo(r.enc)
	}

	nums := make([]uint32, 0, len(r.xref))
	for num, entry := range r.xref {
		if entry.IsFree() || num == 0 {
			continue
		}
		if entry.Compressed {
			r.structural[entry.InStream] = true
		}
		nums = append(nums, num)
	}
	slices.Sort(nums)

	for _, num := range nums {
		if r.structural[num] {
			continue
		}
		ref, obj, err := r.getObject(num)
		if err != nil {
			return nil, err
		}
		if stm, isStream := obj.(*Stream); isStream && (stm.IsType("XRef") || stm.IsType("ObjStm")) {
			continue
		}
		doc.Put(ref, obj)
	}

	for _, key := range []Name{"Root", "Info"} {
		if val, ok := trailer[key]; ok {
			doc.Trailer[key] = val
		}
	}
	catalog, err := doc.Catalog()
	if err != nil {
		return nil, err
	}

	if verObj, ok := catalog["Version"].(Name); ok {
		if v, err := ParseVersion(string(verObj)); err == nil && v > doc.Version {
			doc.Version = v
		}
	}

	return doc, nil
}

// readHeader checks the "%PDF-x.y" header at the start of the file.
func (r *reader) readHeader() (Version, error) {
	const prefix = "%PDF-"
	if !bytes.HasPrefix(r.data, []byte(prefix)) {
		return 0, &StructureError{Err: errors.New("PDF header not found")}
	}
	end := len(prefix)
	for end < len(r.data) && end < len(prefix)+3 && !isSpace[r.data[end]] {
		end++
	}
	version, err := ParseVersion(string(r.data[len(prefix):end]))
	if err != nil {
		return 0, &StructureError{Err: fmt.Errorf("invalid PDF header %q", r.data[:end])}
	}
	return version, nil
}

func parseID(obj Object) ([][]byte, error) {
	arr, ok := obj.(Array)
	if !ok || len(arr) != 2 {
		return nil, &StructureError{Err: fmt.Errorf("invalid /ID %s", Format(obj))}
	}
	var res [][]byte
	for _, elem := range arr {
		s, ok := elem.(String)
		if !ok {
			return nil, &StructureError{Err: fmt.Errorf("invalid /ID %s", Format(obj))}
		}
		res = append(res, slices.Clone([]byte(s)))
	}
	return res, nil
}

// setupDecryption reads the encryption dictionary and authenticates with
// the given password.
func (r *reader) setupDecryption(encObj Object, id [][]byte, passwd string) error {
	var enc Dict
	switch x := encObj.(type) {
	case Dict:
		enc = x
	case Reference:
		entry := r.xref[x.Number()]
		if entry.IsFree() {
			return &StructureError{Err: fmt.Errorf("encryption dictionary %s not found", x)}
		}
		r.encryptRef = x
		r.structural[x.Number()] = true
		_, obj, err := r.getObject(x.Number())
		if err != nil {
			return err
		}
		d, ok := obj.(Dict)
		if !ok {
			return &StructureError{Err: errors.New("invalid encryption dictionary")}
		}
		enc = d
	default:
		return &StructureError{Err: fmt.Errorf("invalid /Encrypt %s", Format(encObj))}
	}

	// resolve indirect entries, e.g. /CF
	direct := make(Dict, len(enc))
	for key, val := range enc {
		if ref, isRef := val.(Reference); isRef {
			_, obj, err := r.getObject(ref.Number())
			if err != nil {
				return err
			}
			val = obj
		}
		direct[key] = val
	}

	var firstID []byte
	if len(id) > 0 {
		firstID = id[0]
	} else if v, _ := direct["V"].(Integer); v < 5 {
		return &StructureError{Err: errors.New("found /Encrypt but no /ID")}
	}

	info, err := parseEncryptDict(direct, firstID)
	if err != nil {
		return err
	}
	err = info.sec.Authenticate(passwd)
	if err != nil {
		return err
	}
	r.enc = info
	return nil
}

func (r *reader) scannerAt(pos int64) *scanner {
	s := newScanner(r.data, 0, r.getLength)
	s.pos = int(pos)
	return s
}

// getObject reads the object with the given number, using the
// cross-reference table.  Strings and streams are decrypted.
func (r *reader) getObject(num uint32) (Reference, Object, error) {
	entry := r.xref[num]
	if entry.IsFree() {
		return NewReference(num, 0), nil, nil
	}

	if entry.Compressed {
		obj, err := r.getFromObjStm(num, entry)
		return NewReference(num, 0), obj, err
	}

	if entry.Pos >= int64(len(r.data)) {
		return 0, nil, structureErrorf(entry.Pos, "object %d beyond end of file", num)
	}
	s := r.scannerAt(entry.Pos)
	ref, obj, err := s.ReadIndirectObject()
	if err != nil {
		return 0, nil, err
	}
	if ref.Number() != num || ref.Generation() != entry.Generation {
		return 0, nil, structureErrorf(entry.Pos,
			"expected object %d %d but found %d %d",
			num, entry.Generation, ref.Number(), ref.Generation())
	}

	if r.enc != nil && ref != r.encryptRef {
		obj, err = r.decrypt(ref, obj)
		if err != nil {
			return 0, nil, err
		}
	}
	return ref, obj, nil
}

// decrypt decrypts all strings and streams contained in the object ref.
func (r *reader) decrypt(ref Reference, obj Object) (Object, error) {
	return walkObject(obj, func(o Object) (Object, error) {
		switch x := o.(type) {
		case String:
			buf, err := r.enc.DecryptString(ref, x)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", ref, err)
			}
			return String(buf), nil
		case *Stream:
			if !r.isEncryptedStream(x) {
				return x, nil
			}
			buf, err := r.enc.DecryptStream(ref, x.Data)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", ref, err)
			}
			return &Stream{Dict: x.Dict, Data: buf}, nil
		default:
			return o, nil
		}
	})
}

// isEncryptedStream checks whether the data of stm is encrypted.
// Cross-reference streams, unencrypted metadata and streams with an
// Identity crypt filter are stored in clear text.
func (r *reader) isEncryptedStream(stm *Stream) bool {
	if stm.IsType("XRef") {
		return false
	}
	if stm.IsType("Metadata") && r.enc.sec.unencryptedMetaData {
		return false
	}
	return !hasIdentityCryptFilter(stm)
}

// hasIdentityCryptFilter checks whether the first filter of the stream is
// /Crypt with the Identity crypt filter.
func hasIdentityCryptFilter(stm *Stream) bool {
	var first Object
	var parms Object
	switch f := stm.Dict["Filter"].(type) {
	case Name:
		first = f
		parms = stm.Dict["DecodeParms"]
	case Array:
		if len(f) > 0 {
			first = f[0]
		}
		if p, ok := stm.Dict["DecodeParms"].(Array); ok && len(p) > 0 {
			parms = p[0]
		}
	}
	if first != Name("Crypt") {
		return false
	}
	if p, ok := parms.(Dict); ok {
		name, _ := p["Name"].(Name)
		return name == "" || name == "Identity"
	}
	return true
}

// getLength resolves an indirect /Length entry of a stream dictionary.
// Since streams may be read before the complete object table is known,
// lookups go directly to the cross-reference table.
func (r *reader) getLength(ref Reference) (Integer, error) {
	if length, ok := r.lengths[ref]; ok {
		return length, nil
	}
	if r.lengthsBusy[ref] {
		return 0, &StructureError{Err: fmt.Errorf("loop while resolving stream length %s", ref)}
	}
	r.lengthsBusy[ref] = true
	defer delete(r.lengthsBusy, ref)

	entry := r.xref[ref.Number()]
	if entry.IsFree() {
		return 0, &StructureError{Err: fmt.Errorf("stream length %s not found", ref)}
	}
	_, obj, err := r.getObject(ref.Number())
	if err != nil {
		return 0, err
	}
	length, ok := obj.(Integer)
	if !ok {
		return 0, &StructureError{Err: fmt.Errorf("invalid stream length %s", Format(obj))}
	}
	r.lengths[ref] = length
	return length, nil
}

// getFromObjStm returns an object stored inside an object stream.
func (r *reader) getFromObjStm(num uint32, entry *xRefEntry) (Object, error) {
	contents, err := r.loadObjStm(entry.InStream)
	if err != nil {
		return nil, err
	}
	if entry.Pos >= int64(len(contents)) || contents[entry.Pos].num != num {
		return nil, &StructureError{
			Err: fmt.Errorf("object %d not found in object stream %d", num, entry.InStream),
		}
	}
	return contents[entry.Pos].obj, nil
}

// loadObjStm reads and decodes all objects contained in an object stream.
// Objects inside object streams are not encrypted individually, but the
// object stream as a whole is.
func (r *reader) loadObjStm(num uint32) ([]objStmEntry, error) {
	if contents, ok := r.objStms[num]; ok {
		if contents == nil {
			return nil, &StructureError{Err: fmt.Errorf("object stream %d contains itself", num)}
		}
		return contents, nil
	}
	r.objStms[num] = nil

	entry := r.xref[num]
	if entry.IsFree() || entry.Compressed {
		return nil, &StructureError{Err: fmt.Errorf("object stream %d not found", num)}
	}
	_, obj, err := r.getObject(num)
	if err != nil {
		return nil, err
	}
	stm, ok := obj.(*Stream)
	if !ok || !stm.IsType("ObjStm") {
		return nil, structureErrorf(entry.Pos, "object %d is not an object stream", num)
	}

	n, ok1 := stm.Dict["N"].(Integer)
	first, ok2 := stm.Dict["First"].(Integer)
	if !ok1 || !ok2 || n < 0 || first < 0 {
		return nil, structureErrorf(entry.Pos, "object stream %d: invalid /N or /First", num)
	}
	data, err := DecodeStream(stm)
	if err != nil {
		return nil, structureErrorf(entry.Pos, "object stream %d: %w", num, err)
	}
	if int64(first) > int64(len(data)) || int64(n) > int64(first) {
		return nil, structureErrorf(entry.Pos, "object stream %d: invalid /N or /First", num)
	}

	header := newScanner(data[:first], 0, nil)
	contents := make([]objStmEntry, n)
	offsets := make([]int64, n)
	for i := range contents {
		header.SkipWhiteSpace()
		objNum, err := header.readUint()
		if err != nil {
			return nil, err
		}
		header.SkipWhiteSpace()
		offset, err := header.readUint()
		if err != nil {
			return nil, err
		}
		if objNum > 0xFFFFFFFF || int64(first)+offset >= int64(len(data)) {
			return nil, structureErrorf(entry.Pos, "object stream %d: invalid header", num)
		}
		contents[i].num = uint32(objNum)
		offsets[i] = offset
	}

	body := data[first:]
	for i := range contents {
		s := newScanner(body, 0, nil)
		s.pos = int(offsets[i])
		obj, err := s.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", num, err)
		}
		contents[i].obj = obj
	}

	r.objStms[num] = contents
	return contents, nil
}
