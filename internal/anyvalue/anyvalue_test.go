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

package anyvalue_test

import (
	"testing"

	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/internal/refcount"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

type node struct {
	refcount.Base
}

func newNode() *node {
	n := &node{}
	n.Init(n)
	return n
}

func TestNewObjectTakesInternalReference(t *testing.T) {
	n := newNode()
	a := anyvalue.NewObject(anaritype.Surface, n)
	if got := n.UseCount(refcount.Internal); got != 1 {
		t.Fatalf("internal refcount = %d, want 1", got)
	}
	a.Reset()
	if got := n.UseCount(refcount.Internal); got != 0 {
		t.Fatalf("internal refcount after Reset = %d, want 0", got)
	}
}

func TestAssignAcquiresBeforeReleasing(t *testing.T) {
	oldTarget := newNode()
	newTarget := newNode()

	a := anyvalue.NewObject(anaritype.Surface, oldTarget)
	b := anyvalue.NewObject(anaritype.Surface, newTarget)

	a.Assign(b)
	if got := oldTarget.UseCount(refcount.Internal); got != 0 {
		t.Fatalf("old target internal refcount = %d, want 0 (released)", got)
	}
	if got := newTarget.UseCount(refcount.Internal); got != 2 {
		t.Fatalf("new target internal refcount = %d, want 2 (one each for a and b)", got)
	}
	if a.GetObject() != anyvalue.Object(newTarget) {
		t.Fatal("a should now hold newTarget")
	}
}

func TestFloat32RoundTrips(t *testing.T) {
	a := anyvalue.New(anaritype.Float32, anyvalue.EncodeFloat32(3.5))
	if got := a.Float32(); got != 3.5 {
		t.Fatalf("Float32() = %v, want 3.5", got)
	}
}

func TestBoolRoundTrips(t *testing.T) {
	a := anyvalue.New(anaritype.Bool, anyvalue.EncodeBool(true))
	if !a.Bool() {
		t.Fatal("Bool() = false, want true")
	}
	a = anyvalue.New(anaritype.Bool, anyvalue.EncodeBool(false))
	if a.Bool() {
		t.Fatal("Bool() = true, want false")
	}
}

func TestEqualRequiresSameTypeAndValue(t *testing.T) {
	a := anyvalue.New(anaritype.Float32, anyvalue.EncodeFloat32(1))
	b := anyvalue.New(anaritype.Float32, anyvalue.EncodeFloat32(1))
	c := anyvalue.New(anaritype.Float32, anyvalue.EncodeFloat32(2))
	if !a.Equal(b) {
		t.Fatal("equal Float32 Anys should compare Equal")
	}
	if a.Equal(c) {
		t.Fatal("differing Float32 Anys should not compare Equal")
	}
}

func TestEqualIsFalseForUnsetAnys(t *testing.T) {
	var a, b anyvalue.Any
	if a.Equal(b) {
		t.Fatal("two unset Anys must never compare Equal")
	}
}

func TestStringAccessors(t *testing.T) {
	a := anyvalue.NewString("flat")
	if got := a.GetString(); got != "flat" {
		t.Fatalf("GetString() = %q, want %q", got, "flat")
	}
	if (anyvalue.Any{}).GetString() != "" {
		t.Fatal("GetString() on an unset Any should return empty")
	}
}

func TestValidReflectsTypeTag(t *testing.T) {
	var zero anyvalue.Any
	if zero.Valid() {
		t.Fatal("zero-value Any should be invalid")
	}
	if !anyvalue.NewString("x").Valid() {
		t.Fatal("a string Any should be valid")
	}
}
