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

// Package array implements Array (§3, §5): the three ownership regimes
// (shared, captured, managed), the one-way privatize transition, and
// mapping/unmapping.
package array

import (
	"errors"

	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/internal/devstate"
	"github.com/anari-sdk/corerun/internal/object"
	"github.com/anari-sdk/corerun/internal/refcount"
	"github.com/anari-sdk/corerun/internal/status"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// Ownership identifies which of the three regimes an Array's backing
// store is currently in.
type Ownership int

const (
	Shared Ownership = iota
	Captured
	Managed
)

func (o Ownership) String() string {
	switch o {
	case Shared:
		return "shared"
	case Captured:
		return "captured"
	case Managed:
		return "managed"
	default:
		return "invalid"
	}
}

// Deleter is invoked when a captured array's total reference count
// reaches zero, handing the application buffer back for it to free.
type Deleter func(userData interface{}, mem []byte)

// Descriptor configures a new Array, matching ArrayMemoryDescriptor in
// the original plus the dimensionality (Dims) and element size needed to
// compute total byte length.
type Descriptor struct {
	ElementType anaritype.Type
	ElementSize int // bytes per element; overrides anaritype.ByteSize for compound types
	Dims        [3]uint64
	AppMemory   []byte // non-nil selects Shared or Captured
	Deleter     Deleter
	UserData    interface{}
}

// numElements is the product of the non-zero dimensions.
func (d Descriptor) numElements() uint64 {
	n := uint64(1)
	for _, dim := range d.Dims {
		if dim == 0 {
			continue
		}
		n *= dim
	}
	return n
}

func (d Descriptor) elementSize() int {
	if d.ElementSize > 0 {
		return d.ElementSize
	}
	return anaritype.ByteSize(d.ElementType)
}

// ErrInvalidDescriptor is returned by New when the descriptor violates a
// §3 invariant: a deleter without application memory (a managed array
// with a deleter), or application memory with userData but no deleter.
var ErrInvalidDescriptor = errors.New("array: invalid memory descriptor")

// Array is the host-based array implementation described in §3. It
// embeds object.BaseObject for reference counting, parameters, and the
// change-observer graph (an Array is itself an ordinary committable
// object: its own "commit" recomputes nothing but marking data modified
// still needs a place to live).
type Array struct {
	object.BaseObject

	elemType  anaritype.Type
	elemSize  int
	dims      [3]uint64
	ownership Ownership

	appMemory []byte // present for Shared and Captured
	deleter   Deleter
	userData  interface{}

	managed []byte // present for Managed and once-privatized Shared

	// objects holds one internally-ref'd slot per element for an
	// object-typed array (ElementType one of the ANARI_OBJECT family). The
	// byte buffer still carries the application-facing handle encoding
	// (see debugdevice's map/unmap translation); this slice is the
	// backend's own view of what each slot actually references.
	objects []anyvalue.Object

	mapped           bool
	privatized       bool
	lastDataModified devstate.TimeStamp
}

// New constructs an Array in the ownership regime implied by d:
// AppMemory == nil -> Managed; AppMemory != nil && Deleter == nil ->
// Shared; AppMemory != nil && Deleter != nil -> Captured.
func New(t anaritype.Type, state *devstate.GlobalState, d Descriptor) (*Array, error) {
	if d.AppMemory == nil && d.Deleter != nil {
		return nil, ErrInvalidDescriptor // "managed array constructed with a non-null deleter"
	}
	if d.Deleter == nil && d.UserData != nil && d.AppMemory != nil {
		return nil, ErrInvalidDescriptor // "deleter null but userData != null"
	}

	a := &Array{
		elemType: d.ElementType,
		elemSize: d.elementSize(),
		dims:     d.Dims,
	}
	a.Init(a, t, state)
	if anaritype.IsObject(d.ElementType) {
		a.objects = make([]anyvalue.Object, d.numElements())
	}

	switch {
	case d.AppMemory == nil:
		a.ownership = Managed
		a.managed = make([]byte, d.numElements()*uint64(a.elemSize))
	case d.Deleter == nil:
		a.ownership = Shared
		a.appMemory = d.AppMemory
	default:
		a.ownership = Captured
		a.appMemory = d.AppMemory
		a.deleter = d.Deleter
		a.userData = d.UserData
	}
	return a, nil
}

// ElementType returns the array's element type tag.
func (a *Array) ElementType() anaritype.Type { return a.elemType }

// Ownership returns the array's current ownership regime.
func (a *Array) Ownership() Ownership { return a.ownership }

// NumElements returns the product of the array's dimensions.
func (a *Array) NumElements() uint64 {
	n := uint64(1)
	for _, d := range a.dims {
		if d == 0 {
			continue
		}
		n *= d
	}
	return n
}

// Data returns the current backing bytes, whichever regime they live in.
func (a *Array) Data() []byte {
	switch a.ownership {
	case Managed:
		return a.managed
	default:
		return a.appMemory
	}
}

// IsMapped reports whether the array is between a Map and Unmap call.
func (a *Array) IsMapped() bool { return a.mapped }

// NumObjectSlots reports how many object-reference slots the array holds,
// 0 if it is not an object-typed array.
func (a *Array) NumObjectSlots() int { return len(a.objects) }

// ObjectAt returns the object reference held at element index i of an
// object-typed array, or nil if i is out of range or the slot is empty.
func (a *Array) ObjectAt(i int) anyvalue.Object {
	if i < 0 || i >= len(a.objects) {
		return nil
	}
	return a.objects[i]
}

// SetObjectAt stores obj at element index i of an object-typed array,
// acquiring a reference on obj before releasing whatever the slot held —
// the same strong-exception-safety order anyvalue.Any.Assign uses for a
// single object-typed parameter cell.
func (a *Array) SetObjectAt(i int, obj anyvalue.Object) {
	if i < 0 || i >= len(a.objects) {
		return
	}
	if obj != nil {
		obj.RefInc(refcount.Internal)
	}
	old := a.objects[i]
	a.objects[i] = obj
	if old != nil {
		old.RefDec(refcount.Internal)
	}
}

// WasPrivatized reports whether the array has transitioned from Shared to
// Managed via OnNoPublicReferences.
func (a *Array) WasPrivatized() bool { return a.privatized }

// Map returns a writable view of the array's bytes. Writing through a
// Shared array's pointer is a caller error (§3: "the implementation must
// not write to it") but Go cannot enforce that at the type level any more
// than the original enforces it at the ABI level; Map simply hands back
// the live backing slice.
func (a *Array) Map() []byte {
	a.mapped = true
	return a.Data()
}

// Unmap marks the array's data modified (advancing its stamp) and ends
// the mapped transaction.
func (a *Array) Unmap() {
	a.mapped = false
	a.MarkDataModified()
}

// MarkDataModified advances the array's data-modified stamp. Exposed
// separately from Unmap so captured-buffer uploads driven from outside
// the map/unmap pair (e.g. a deleter-free direct write) can still signal
// it.
func (a *Array) MarkDataModified() {
	a.lastDataModified = devstate.Now()
	a.MarkParameterChanged()
}

// LastDataModified reports the stamp of the most recent Unmap.
func (a *Array) LastDataModified() devstate.TimeStamp { return a.lastDataModified }

// OnNoPublicReferences privatizes a Shared array exactly once: it
// allocates managed storage, copies the shared bytes, and thereafter
// behaves as Managed (§3, §5, §8 scenario 4). Captured and Managed
// arrays have nothing to do here — Captured's release happens at
// OnDestroy via the application deleter.
func (a *Array) OnNoPublicReferences() {
	if a.ownership != Shared || a.privatized {
		return
	}
	cp := make([]byte, len(a.appMemory))
	copy(cp, a.appMemory)
	a.managed = cp
	a.appMemory = nil
	a.ownership = Managed
	a.privatized = true
}

// OnDestroy invokes the application deleter for a Captured array (its
// "total count reaches zero" contract), then releases the base object's
// own parameters.
func (a *Array) OnDestroy() {
	if a.ownership == Captured && a.deleter != nil {
		a.deleter(a.userData, a.appMemory)
	}
	for i, obj := range a.objects {
		if obj != nil {
			obj.RefDec(refcount.Internal)
			a.objects[i] = nil
		}
	}
	a.BaseObject.OnDestroy()
}

// Commit is Array's derived commit hook: arrays have no parameters of
// their own to stage in this minimal core (concrete backends that add
// typed array subclasses, e.g. Array1D's stride handling, override this);
// the base behavior simply reports nothing pending.
func (a *Array) Commit() {}

// Finalize is Array's derived finalize hook: nothing to propagate at this
// layer.
func (a *Array) Finalize() {}

// GetProperty answers read-only introspection beyond the universal
// "valid" property BaseObject already handles.
func (a *Array) GetProperty(name string, t anaritype.Type, flags object.PropertyFlags) (interface{}, bool) {
	switch name {
	case "numElements":
		return a.NumElements(), true
	case "elementType":
		return a.elemType, true
	default:
		return nil, false
	}
}

// IsValid: arrays are always considered valid.
func (a *Array) IsValid() bool { return true }

// ReportInvalidDescriptor is a convenience for callers (the debug device's
// validation layer) that want to surface ErrInvalidDescriptor as a status
// record instead of a Go error, matching "managed array constructed with
// a non-null deleter -> error" / "deleter null but user-data non-null ->
// error" from §4.5.
func ReportInvalidDescriptor(fn status.Func, source interface{}) {
	status.Reportf(fn, source, status.SeverityError, status.CodeInvalidArgument,
		"invalid array memory descriptor")
}
