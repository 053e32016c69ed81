// Copyright (C) 2024 ANARI-SDK Contributors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package anyvalue implements Any, the type-tagged parameter cell every
// entry in a ParameterizedObject's bag is stored as.
package anyvalue

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/anari-sdk/corerun/internal/refcount"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// maxInlineBytes is sized to hold a 4x4 float32 matrix, the largest POD
// payload the core runtime stores inline (mirrors helium::AnariAny's
// 16*sizeof(float) local storage).
const maxInlineBytes = 16 * 4

// Object is the minimal capability an object-typed Any needs from its
// pointee: the internal-reference contract.
type Object interface {
	refcount.Node
}

// Any is an ordered-mapping value cell: a POD payload up to maxInlineBytes,
// a string, or an owned reference to an object. Exactly one of these is
// meaningful at a time, selected by Type(). The zero value is the "unset"
// Any (Type() == anaritype.Unknown).
type Any struct {
	typ     anaritype.Type
	storage [maxInlineBytes]byte
	str     string
	obj     Object
}

// New builds an Any from a fixed-size POD type tag and its encoded bytes.
// v must be at least anaritype.ByteSize(t) bytes for POD t.
func New(t anaritype.Type, v []byte) Any {
	var a Any
	a.typ = t
	n := copy(a.storage[:], v)
	_ = n
	return a
}

// NewString builds a string-typed Any.
func NewString(s string) Any {
	return Any{typ: anaritype.String, str: s}
}

// NewObject builds an object-typed Any, taking an internal reference on
// obj for as long as this Any (or a copy assigned from it) exists.
func NewObject(t anaritype.Type, obj Object) Any {
	a := Any{typ: t, obj: obj}
	a.refIncObject()
	return a
}

// Reset releases any held object reference and returns the Any to unset.
func (a *Any) Reset() {
	a.refDecObject()
	a.typ = anaritype.Unknown
	a.storage = [maxInlineBytes]byte{}
	a.str = ""
	a.obj = nil
}

// Assign replaces a's contents with rhs's, taking a's own internal
// reference on rhs's object (if any; rhs keeps the reference it already
// holds) before releasing the one a held — this is the
// strong-exception-safety order §4.2 requires for object-typed parameter
// overwrites: the new pointee is ref'd before the old one is unref'd.
func (a *Any) Assign(rhs Any) {
	if rhs.typ != anaritype.Unknown && anaritype.IsObject(rhs.typ) && rhs.obj != nil {
		rhs.obj.RefInc(refcount.Internal)
	}
	old := *a
	a.typ = rhs.typ
	a.storage = rhs.storage
	a.str = rhs.str
	a.obj = rhs.obj
	old.refDecObject()
}

func (a *Any) refIncObject() {
	if anaritype.IsObject(a.typ) && a.obj != nil {
		a.obj.RefInc(refcount.Internal)
	}
}

func (a *Any) refDecObject() {
	if anaritype.IsObject(a.typ) && a.obj != nil {
		a.obj.RefDec(refcount.Internal)
	}
}

// Type reports the Any's current type tag.
func (a Any) Type() anaritype.Type { return a.typ }

// Valid reports whether the Any currently holds a value.
func (a Any) Valid() bool { return a.typ != anaritype.Unknown }

// Is reports whether the Any's type tag equals t.
func (a Any) Is(t anaritype.Type) bool { return a.typ == t }

// Data returns the raw inline bytes backing a POD value. Meaningless for
// String or object-typed Anys.
func (a Any) Data() []byte { return a.storage[:] }

// GetString returns the stored string, or "" if the Any is not
// string-typed.
func (a Any) GetString() string {
	if a.typ != anaritype.String {
		return ""
	}
	return a.str
}

// GetObject returns the stored object reference, or nil if the Any is not
// object-typed (or unset).
func (a Any) GetObject() Object {
	if !anaritype.IsObject(a.typ) {
		return nil
	}
	return a.obj
}

// Equal reports whether a and rhs hold byte-identical values of the same
// type. Two unset Anys are never equal (mirrors AnariAny::operator==,
// which short-circuits false when either side is invalid).
func (a Any) Equal(rhs Any) bool {
	if !a.Valid() || !rhs.Valid() {
		return false
	}
	if a.typ != rhs.typ {
		return false
	}
	switch {
	case a.typ == anaritype.String:
		return a.str == rhs.str
	case anaritype.IsObject(a.typ):
		return a.obj == rhs.obj
	default:
		n := anaritype.ByteSize(a.typ)
		return bytes.Equal(a.storage[:n], rhs.storage[:n])
	}
}

// Float32 reads the first four inline bytes of the Any as a float32; the
// type tag is not checked. Helper for commitParameters()-style call sites that
// already know the stored type from context, matching the teacher's
// templated AnariAny::get<T>().
func (a Any) Float32() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(a.storage[:4]))
}

// EncodeFloat32 is the encoder-side counterpart to Float32, used by
// callers constructing an Any with New(anaritype.Float32, ...).
func EncodeFloat32(v float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return b[:]
}

// Bool reads the Any as a bool.
func (a Any) Bool() bool {
	return binary.LittleEndian.Uint32(a.storage[:4]) != 0
}

// EncodeBool is the encoder-side counterpart to Bool.
func EncodeBool(v bool) []byte {
	var b [4]byte
	if v {
		binary.LittleEndian.PutUint32(b[:], 1)
	}
	return b[:]
}
