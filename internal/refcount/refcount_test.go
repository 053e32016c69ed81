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

package refcount_test

import (
	"testing"

	"github.com/anari-sdk/corerun/internal/refcount"
)

type node struct {
	refcount.Base
	noPublic   int
	noInternal int
}

func newNode() *node {
	n := &node{}
	n.Init(n)
	return n
}

func (n *node) OnNoPublicReferences()   { n.noPublic++ }
func (n *node) OnNoInternalReferences() { n.noInternal++ }

func TestInitialCounts(t *testing.T) {
	n := newNode()
	if got := n.UseCount(refcount.Public); got != 1 {
		t.Errorf("public = %d, want 1", got)
	}
	if got := n.UseCount(refcount.Internal); got != 0 {
		t.Errorf("internal = %d, want 0", got)
	}
}

// TestRefCountTransitions walks scenario 1 from the spec verbatim:
// (1,0) -> refInc(internal) -> (1,1) no hooks
// -> refDec(public) -> (0,1) OnNoPublicReferences fires
// -> refInc(public) -> (1,1)
// -> refDec(internal) -> (1,0) OnNoInternalReferences fires
func TestRefCountTransitions(t *testing.T) {
	n := newNode()

	n.RefInc(refcount.Internal)
	if n.UseCount(refcount.All) != 2 || n.noPublic != 0 || n.noInternal != 0 {
		t.Fatalf("after refInc(internal): public=%d internal=%d noPublic=%d noInternal=%d",
			n.UseCount(refcount.Public), n.UseCount(refcount.Internal), n.noPublic, n.noInternal)
	}

	n.RefDec(refcount.Public)
	if n.UseCount(refcount.Public) != 0 || n.noPublic != 1 {
		t.Fatalf("after refDec(public): public=%d noPublic=%d", n.UseCount(refcount.Public), n.noPublic)
	}

	n.RefInc(refcount.Public)
	if n.UseCount(refcount.Public) != 1 {
		t.Fatalf("after refInc(public): public=%d", n.UseCount(refcount.Public))
	}

	n.RefDec(refcount.Internal)
	if n.UseCount(refcount.Internal) != 0 || n.noInternal != 1 {
		t.Fatalf("after refDec(internal): internal=%d noInternal=%d", n.UseCount(refcount.Internal), n.noInternal)
	}
}

func TestHooksFireExactlyOnce(t *testing.T) {
	n := newNode()
	n.RefInc(refcount.Internal)
	n.RefDec(refcount.Public) // public -> 0, internal=1: fires
	n.RefDec(refcount.Public) // already 0: no-op, no extra fire
	if n.noPublic != 1 {
		t.Fatalf("OnNoPublicReferences fired %d times, want 1", n.noPublic)
	}
}

func TestRearmOnRetransition(t *testing.T) {
	n := newNode()
	n.RefInc(refcount.Internal)
	n.RefDec(refcount.Public) // (0,1) fire #1
	n.RefInc(refcount.Public) // (1,1)
	n.RefDec(refcount.Public) // (0,1) fire #2
	if n.noPublic != 2 {
		t.Fatalf("OnNoPublicReferences fired %d times, want 2", n.noPublic)
	}
}

func TestDestroyOnTotalZero(t *testing.T) {
	n := newNode()
	n.RefDec(refcount.Public)
	if got := n.UseCount(refcount.All); got != 0 {
		t.Fatalf("total = %d, want 0", got)
	}
}

func TestDecrementBelowZeroSaturates(t *testing.T) {
	n := newNode()
	n.RefDec(refcount.Internal) // internal already 0: must not go negative
	if got := n.UseCount(refcount.Internal); got != 0 {
		t.Fatalf("internal = %d, want 0 (saturating)", got)
	}
}

type owned struct {
	refcount.Base
}

func newOwned() *owned {
	o := &owned{}
	o.Init(o)
	return o
}

func TestIntrusivePtrLifetime(t *testing.T) {
	c := newOwned()
	if got := c.UseCount(refcount.All); got != 1 {
		t.Fatalf("child total = %d, want 1 (public=1)", got)
	}

	var ip refcount.IntrusivePtr[*owned]
	ip.Reset(c)
	if got := c.UseCount(refcount.Internal); got != 1 {
		t.Fatalf("after bind: internal = %d, want 1", got)
	}

	c.RefDec(refcount.Public) // application releases its handle
	if got := c.UseCount(refcount.Public); got != 0 {
		t.Fatalf("public = %d, want 0", got)
	}
	if got := c.UseCount(refcount.Internal); got != 1 {
		t.Fatalf("internal = %d, want 1 (still held by param slot)", got)
	}

	ip.Release() // owner unsets the parameter
	if got := c.UseCount(refcount.All); got != 0 {
		t.Fatalf("total = %d, want 0 (destroyed)", got)
	}
}
