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

package array_test

import (
	"bytes"
	"testing"

	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/internal/array"
	"github.com/anari-sdk/corerun/internal/devstate"
	"github.com/anari-sdk/corerun/internal/refcount"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

func TestNewManagedArray(t *testing.T) {
	state := devstate.NewGlobalState()
	a, err := array.New(anaritype.Array1D, state, array.Descriptor{
		ElementType: anaritype.Float32,
		Dims:        [3]uint64{4, 0, 0},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Ownership() != array.Managed {
		t.Fatalf("ownership = %v, want Managed", a.Ownership())
	}
	if len(a.Data()) != 16 {
		t.Fatalf("len(Data()) = %d, want 16", len(a.Data()))
	}
}

func TestInvalidDescriptorRejected(t *testing.T) {
	state := devstate.NewGlobalState()
	buf := make([]byte, 16)
	if _, err := array.New(anaritype.Array1D, state, array.Descriptor{
		ElementType: anaritype.Float32,
		Dims:        [3]uint64{4, 0, 0},
		AppMemory:   nil,
		Deleter:     func(interface{}, []byte) {},
	}); err != array.ErrInvalidDescriptor {
		t.Fatalf("managed+deleter: err = %v, want ErrInvalidDescriptor", err)
	}
	if _, err := array.New(anaritype.Array1D, state, array.Descriptor{
		ElementType: anaritype.Float32,
		Dims:        [3]uint64{4, 0, 0},
		AppMemory:   buf,
		Deleter:     nil,
		UserData:    "unexpected",
	}); err != array.ErrInvalidDescriptor {
		t.Fatalf("deleter-nil+userdata: err = %v, want ErrInvalidDescriptor", err)
	}
}

// TestSharedArrayPrivatization walks §8 scenario 4: a shared 1024-byte
// array referenced from elsewhere, released by its owner, must privatize
// and keep reading back the bytes it had at privatization time even after
// the application buffer is mutated afterward.
func TestSharedArrayPrivatization(t *testing.T) {
	state := devstate.NewGlobalState()
	appBuf := make([]byte, 1024)
	for i := range appBuf {
		appBuf[i] = byte(i)
	}

	a, err := array.New(anaritype.Array1D, state, array.Descriptor{
		ElementType: anaritype.UInt32,
		ElementSize: 1,
		Dims:        [3]uint64{1024, 0, 0},
		AppMemory:   appBuf,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Ownership() != array.Shared {
		t.Fatalf("ownership = %v, want Shared", a.Ownership())
	}

	// Something else (e.g. a Surface parameter slot) holds an internal
	// reference, keeping the array alive after the app releases its own.
	a.RefInc(refcount.Internal)

	a.RefDec(refcount.Public) // application releases its last public ref
	if !a.WasPrivatized() {
		t.Fatalf("array did not privatize on last public release")
	}
	if a.Ownership() != array.Managed {
		t.Fatalf("ownership after privatize = %v, want Managed", a.Ownership())
	}

	want := make([]byte, 1024)
	copy(want, appBuf)

	for i := range appBuf {
		appBuf[i] = 0xFF // mutate the application's original buffer
	}

	if !bytes.Equal(a.Data(), want) {
		t.Fatalf("privatized array data changed after app buffer mutation")
	}
}

type fakeNode struct {
	refcount.Base
}

func newFakeNode() *fakeNode {
	n := &fakeNode{}
	n.Init(n)
	return n
}

// TestObjectArraySlotsHoldInternalReferences exercises the per-element
// object storage an ANARI_OBJECT-typed array carries alongside its byte
// buffer: setting a slot acquires an internal reference, overwriting it
// releases the old occupant, and destroying the array drains every
// remaining slot.
func TestObjectArraySlotsHoldInternalReferences(t *testing.T) {
	state := devstate.NewGlobalState()
	a, err := array.New(anaritype.Array1D, state, array.Descriptor{
		ElementType: anaritype.Object,
		Dims:        [3]uint64{2, 0, 0},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.NumObjectSlots() != 2 {
		t.Fatalf("NumObjectSlots() = %d, want 2", a.NumObjectSlots())
	}

	first := newFakeNode()
	second := newFakeNode()

	a.SetObjectAt(0, first)
	if got := first.UseCount(refcount.Internal); got != 1 {
		t.Fatalf("first internal refcount = %d, want 1", got)
	}
	if a.ObjectAt(0) != anyvalue.Object(first) {
		t.Fatal("ObjectAt(0) did not return the stored object")
	}

	a.SetObjectAt(0, second)
	if got := first.UseCount(refcount.Internal); got != 0 {
		t.Fatalf("first internal refcount after overwrite = %d, want 0", got)
	}
	if got := second.UseCount(refcount.Internal); got != 1 {
		t.Fatalf("second internal refcount = %d, want 1", got)
	}

	a.RefDec(refcount.Public) // total -> 0, OnDestroy drains remaining slots
	if got := second.UseCount(refcount.Internal); got != 0 {
		t.Fatalf("second internal refcount after destroy = %d, want 0", got)
	}
}

func TestCapturedArrayInvokesDeleterOnDestroy(t *testing.T) {
	state := devstate.NewGlobalState()
	appBuf := make([]byte, 16)
	var deletedWith []byte
	var deletedUser interface{}

	a, err := array.New(anaritype.Array1D, state, array.Descriptor{
		ElementType: anaritype.Float32,
		Dims:        [3]uint64{4, 0, 0},
		AppMemory:   appBuf,
		Deleter: func(userData interface{}, mem []byte) {
			deletedWith = mem
			deletedUser = userData
		},
		UserData: "owner-token",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.RefDec(refcount.Public) // total -> 0, destroy fires
	if deletedUser != "owner-token" {
		t.Fatalf("deleter userData = %v, want owner-token", deletedUser)
	}
	if len(deletedWith) != len(appBuf) {
		t.Fatalf("deleter mem len = %d, want %d", len(deletedWith), len(appBuf))
	}
}
