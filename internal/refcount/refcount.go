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

// Package refcount implements the split public/internal reference count
// that every node in the object graph is built on, plus the owning and
// observing pointer types layered on top of it.
package refcount

import "sync/atomic"

// Kind selects which of the two independent counters an operation applies
// to. All counts a caller ever asks to mutate or read name a Kind.
type Kind int

const (
	Public Kind = iota
	Internal
	All
)

// Hooks is implemented by anything that wants to react to the node's
// lifetime transitions. BaseObject (internal/object) embeds Base and
// overrides these; a bare Base's hooks are no-ops.
type Hooks interface {
	// OnNoPublicReferences is called the first time public refs drop to
	// zero while internal refs are still held. Re-arms if public rises
	// above zero again and later drops back to zero.
	OnNoPublicReferences()
	// OnNoInternalReferences is called the first time internal refs drop
	// to zero while public refs are still held. Re-arms symmetrically.
	OnNoInternalReferences()
	// OnDestroy is called once when total (public+internal) reaches zero.
	OnDestroy()
}

// Base is the split-reference-count core. Embed it (by pointer receiver
// methods, so embed *Base or embed Base and take its address) in any node
// type, and override OnNoPublicReferences/OnNoInternalReferences by
// shadowing them on the outer type — Self must be set to the outer type so
// that the hooks dispatch there instead of back into Base's own no-ops.
type Base struct {
	public   atomic.Int64
	internal atomic.Int64

	// self is the outer object whose Hooks should fire. A type that embeds
	// Base and wants custom lifetime hooks sets this by passing itself to
	// Init. If unset, Base's own no-op hooks are used.
	self Hooks
}

// Init must be called from the embedding type's constructor before the
// object is published to any other goroutine. It starts public at 1 and
// internal at 0, matching "every successful creation starts at public=1,
// internal=0". self is the outer object whose OnNoPublicReferences /
// OnNoInternalReferences should be invoked; pass the Base itself (&b.Base)
// if the embedder has no extra lifetime behavior.
func (b *Base) Init(self Hooks) {
	b.public.Store(1)
	b.internal.Store(0)
	b.self = self
}

// OnNoPublicReferences is Base's default no-op hook.
func (b *Base) OnNoPublicReferences() {}

// OnNoInternalReferences is Base's default no-op hook.
func (b *Base) OnNoInternalReferences() {}

// OnDestroy is Base's default no-op hook.
func (b *Base) OnDestroy() {}

// RefInc increments the named counter. kind == All increments both.
func (b *Base) RefInc(kind Kind) {
	switch kind {
	case Public:
		b.public.Add(1)
	case Internal:
		b.internal.Add(1)
	case All:
		b.public.Add(1)
		b.internal.Add(1)
	}
}

// RefDec decrements the named counter, firing lifetime hooks and
// destruction as needed. Decrementing a counter already at zero is a
// client bug; it is silently ignored rather than going negative (see
// §4.1's "saturating non-negative" failure semantics) — the arithmetic
// stays well-defined but the caller's handle must be considered dead.
// No status record is emitted for it.
func (b *Base) RefDec(kind Kind) {
	hooks := b.self
	if hooks == nil {
		hooks = b
	}

	dec := false
	switch kind {
	case Public:
		dec = b.decPublic(hooks)
	case Internal:
		dec = b.decInternal(hooks)
	case All:
		p := b.decPublic(hooks)
		i := b.decInternal(hooks)
		dec = p || i
	}

	if dec && b.public.Load() == 0 && b.internal.Load() == 0 {
		hooks.OnDestroy()
	}
}

func (b *Base) decPublic(hooks Hooks) bool {
	for {
		cur := b.public.Load()
		if cur <= 0 {
			return false
		}
		if !b.public.CompareAndSwap(cur, cur-1) {
			continue
		}
		if cur-1 == 0 && b.internal.Load() > 0 {
			hooks.OnNoPublicReferences()
		}
		return true
	}
}

func (b *Base) decInternal(hooks Hooks) bool {
	for {
		cur := b.internal.Load()
		if cur <= 0 {
			return false
		}
		if !b.internal.CompareAndSwap(cur, cur-1) {
			continue
		}
		if cur-1 == 0 && b.public.Load() > 0 {
			hooks.OnNoInternalReferences()
		}
		return true
	}
}

// UseCount returns the named counter, or their sum for All.
func (b *Base) UseCount(kind Kind) int64 {
	switch kind {
	case Public:
		return b.public.Load()
	case Internal:
		return b.internal.Load()
	default:
		return b.public.Load() + b.internal.Load()
	}
}
