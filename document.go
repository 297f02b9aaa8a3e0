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
)

// Document is a PDF document held in memory.
//
// All indirect objects are stored in the Objects map, keyed by their
// reference.  Objects refer to each other only through [Reference] values,
// so that cyclic object graphs need no special treatment.
type Document struct {
	Version Version

	// Objects contains all indirect objects of the document.
	Objects map[Reference]Object

	// Trailer is the trailer dictionary.  The entries /Size, /Prev,
	// /XRefStm, /Encrypt and /ID are managed by the reader and the writer
	// and are not present here.
	Trailer Dict

	// ID is the file identifier, if any.  When present, it has two
	// elements.
	ID [][]byte

	// Security describes the encryption of the file this document was read
	// from.  This is nil for unencrypted files and for new documents.
	Security *SecurityInfo

	// maxNum is the largest object number seen by Put, Add and Alloc.
	maxNum uint32
}

// NewDocument returns an empty document with the given version.
func NewDocument(v Version) *Document {
	return &Document{
		Version: v,
		Objects: make(map[Reference]Object),
		Trailer: Dict{},
	}
}

// Alloc allocates a new, unused object number.
func (doc *Document) Alloc() Reference {
	ref := NewReference(doc.maxNum+1, 0)
	if _, used := doc.Objects[ref]; used || (doc.maxNum == 0 && len(doc.Objects) > 0) {
		// Objects was modified directly.
		doc.maxNum = 0
		for ref := range doc.Objects {
			doc.maxNum = max(doc.maxNum, ref.Number())
		}
		ref = NewReference(doc.maxNum+1, 0)
	}
	doc.Put(ref, nil)
	return ref
}

// Put stores obj as the indirect object ref.
func (doc *Document) Put(ref Reference, obj Object) {
	doc.Objects[ref] = obj
	doc.maxNum = max(doc.maxNum, ref.Number())
}

// Add allocates a new object number and stores obj under it.
func (doc *Document) Add(obj Object) Reference {
	ref := doc.Alloc()
	doc.Put(ref, obj)
	return ref
}

// Get returns the indirect object ref.  Missing objects are returned as
// null.
func (doc *Document) Get(ref Reference) Object {
	return doc.Objects[ref]
}

// maxRefChain bounds the length of reference chains followed by Resolve.
const maxRefChain = 16

// Resolve follows references until a direct object is found.
// References to missing objects resolve to null.
func (doc *Document) Resolve(obj Object) (Object, error) {
	for range maxRefChain {
		ref, isRef := obj.(Reference)
		if !isRef {
			return obj, nil
		}
		obj = doc.Objects[ref]
	}
	return nil, &StructureError{Err: errors.New("reference loop")}
}

// Getter is implemented by types which can resolve references to
// indirect objects, e.g. by [*Document].
type Getter interface {
	Resolve(obj Object) (Object, error)
}

// GetDict resolves references to indirect objects and makes sure the
// resulting object is a dictionary.  Null is returned as a nil Dict.
func GetDict(r Getter, obj Object) (Dict, error) {
	obj, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch x := obj.(type) {
	case nil:
		return nil, nil
	case Dict:
		return x, nil
	default:
		return nil, &StructureError{Err: fmt.Errorf("expected Dict but got %T", obj)}
	}
}

// GetArray resolves references to indirect objects and makes sure the
// resulting object is an array.
func GetArray(r Getter, obj Object) (Array, error) {
	obj, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch x := obj.(type) {
	case nil:
		return nil, nil
	case Array:
		return x, nil
	default:
		return nil, &StructureError{Err: fmt.Errorf("expected Array but got %T", obj)}
	}
}

// GetName resolves references to indirect objects and makes sure the
// resulting object is a name.
func GetName(r Getter, obj Object) (Name, error) {
	obj, err := r.Resolve(obj)
	if err != nil {
		return "", err
	}
	switch x := obj.(type) {
	case nil:
		return "", nil
	case Name:
		return x, nil
	default:
		return "", &StructureError{Err: fmt.Errorf("expected Name but got %T", obj)}
	}
}

// GetInt resolves references to indirect objects and makes sure the
// resulting object is an integer.
func GetInt(r Getter, obj Object) (Integer, error) {
	obj, err := r.Resolve(obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case nil:
		return 0, nil
	case Integer:
		return x, nil
	default:
		return 0, &StructureError{Err: fmt.Errorf("expected Integer but got %T", obj)}
	}
}

// GetStream resolves references to indirect objects and makes sure the
// resulting object is a stream.
func GetStream(r Getter, obj Object) (*Stream, error) {
	obj, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch x := obj.(type) {
	case nil:
		return nil, nil
	case *Stream:
		return x, nil
	default:
		return nil, &StructureError{Err: fmt.Errorf("expected Stream but got %T", obj)}
	}
}

// Catalog returns the document catalog.  An error is returned if the
// /Root entry of the trailer is missing or does not resolve to a
// dictionary.
func (doc *Document) Catalog() (Dict, error) {
	root, ok := doc.Trailer["Root"]
	if !ok {
		return nil, &StructureError{Err: errors.New("missing /Root in trailer")}
	}
	if ref, isRef := root.(Reference); isRef {
		if _, exists := doc.Objects[ref]; !exists {
			return nil, &StructureError{Err: fmt.Errorf("catalog %s not found", ref)}
		}
	}
	catalog, err := GetDict(doc, root)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, &StructureError{Err: errors.New("catalog is null")}
	}
	return catalog, nil
}

// Info returns the document information dictionary, or nil if there is
// none.
func (doc *Document) Info() (Dict, error) {
	return GetDict(doc, doc.Trailer["Info"])
}

// Metadata returns the XMP metadata stream of the document, or nil if
// there is none.
func (doc *Document) Metadata() (*Stream, error) {
	catalog, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	return GetStream(doc, catalog["Metadata"])
}
