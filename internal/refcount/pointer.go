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

package refcount

// Node is the minimal capability every IntrusivePtr target must provide:
// the two-counter lifetime contract.
type Node interface {
	RefInc(Kind)
	RefDec(Kind)
}

// IntrusivePtr is an owning smart pointer: it holds the Internal count of
// whatever it points at for as long as it is non-nil. Assignment releases
// the old target (if any) only after acquiring the new one, matching the
// strong-exception-safety order the object-typed parameter contract
// requires (§4.2).
type IntrusivePtr[T Node] struct {
	ptr T
}

// NewIntrusivePtr wraps p, internal-incrementing it (unless it is the zero
// value of T — callers passing a nil pointer type get a no-op ref).
func NewIntrusivePtr[T Node](p T) IntrusivePtr[T] {
	var ip IntrusivePtr[T]
	ip.Reset(p)
	return ip
}

// Get returns the held pointer, or the zero value if none is held.
func (ip *IntrusivePtr[T]) Get() T {
	return ip.ptr
}

// IsNil reports whether the pointer is unset. T must be a pointer-like
// Node for this to be meaningful; callers compare against nil themselves
// when T is a concrete pointer type.
func (ip *IntrusivePtr[T]) IsNil() bool {
	var zero T
	return any(ip.ptr) == any(zero)
}

// Reset replaces the held pointer with p: increments p's internal count
// first, then decrements the outgoing pointer's internal count. Passing
// the zero value of T releases the current target and holds nothing.
func (ip *IntrusivePtr[T]) Reset(p T) {
	var zero T
	if any(p) != any(zero) {
		p.RefInc(Internal)
	}
	old := ip.ptr
	ip.ptr = p
	if any(old) != any(zero) {
		old.RefDec(Internal)
	}
}

// Release is Reset to the zero value.
func (ip *IntrusivePtr[T]) Release() {
	var zero T
	ip.Reset(zero)
}

// Observer is the non-owning side of a dependency edge: something that can
// be marked updated and enqueued for finalize when the object it observes
// changes. BaseObject implements this.
type Observer interface {
	NotifyUpdated()
}

// ObserverSet is the set of Observers registered on a subject. It is not
// safe for concurrent use without external locking — callers hold the
// subject's own per-object lock around mutation (see object.BaseObject).
type ObserverSet struct {
	m map[Observer]struct{}
}

// Add registers o, if not already present.
func (s *ObserverSet) Add(o Observer) {
	if s.m == nil {
		s.m = make(map[Observer]struct{})
	}
	s.m[o] = struct{}{}
}

// Remove unregisters o. A no-op if o was not registered.
func (s *ObserverSet) Remove(o Observer) {
	delete(s.m, o)
}

// NotifyAll marks every registered observer updated.
func (s *ObserverSet) NotifyAll() {
	for o := range s.m {
		o.NotifyUpdated()
	}
}

// Len reports the number of registered observers.
func (s *ObserverSet) Len() int { return len(s.m) }

// ChangeObserverPtr combines an owning IntrusivePtr to a subject with this
// object's registration as one of the subject's observers. Reassignment
// detaches from the outgoing subject's observer set and attaches to the
// incoming one, then swaps the owning reference (the new subject is ref'd
// before the old one is released).
type ChangeObserverPtr[T interface {
	Node
	AddObserver(Observer)
	RemoveObserver(Observer)
}] struct {
	target   IntrusivePtr[T]
	observer Observer
}

// NewChangeObserverPtr creates a ChangeObserverPtr whose registered
// observer is obs; Set must be called to attach a target.
func NewChangeObserverPtr[T interface {
	Node
	AddObserver(Observer)
	RemoveObserver(Observer)
}](obs Observer) ChangeObserverPtr[T] {
	return ChangeObserverPtr[T]{observer: obs}
}

// Get returns the current target, or the zero value of T if none is set.
func (c *ChangeObserverPtr[T]) Get() T {
	return c.target.Get()
}

// Set attaches to a new target, detaching from the old one. Move-only in
// spirit: callers should not copy a ChangeObserverPtr, since both copies
// would try to manage the same observer registration independently.
func (c *ChangeObserverPtr[T]) Set(p T) {
	old := c.target.Get()
	var zero T
	if any(old) != any(zero) {
		old.RemoveObserver(c.observer)
	}
	if any(p) != any(zero) {
		p.AddObserver(c.observer)
	}
	c.target.Reset(p)
}

// Clear detaches from the current target, if any.
func (c *ChangeObserverPtr[T]) Clear() {
	var zero T
	c.Set(zero)
}
