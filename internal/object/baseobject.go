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

package object

import (
	"sync"
	"sync/atomic"

	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/internal/devstate"
	"github.com/anari-sdk/corerun/internal/refcount"
	"github.com/anari-sdk/corerun/internal/status"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// PropertyFlags mirrors the ANARIWaitMask-ish flags bag passed to
// getProperty; the core runtime only distinguishes "wait" from
// "no-wait" at this layer, leaving richer flags to concrete backends.
type PropertyFlags uint32

const (
	PropertyNoWait PropertyFlags = 0
	PropertyWait   PropertyFlags = 1 << 0
)

// Derived is the capability set a concrete object type provides to
// BaseObject: the four hooks §9's design notes call out as the actual
// interface of the object taxonomy ("commitParameters, finalize,
// getProperty, isValid").
type Derived interface {
	// Commit promotes staged parameters into concrete member state. Must
	// not touch other objects' state (§4.2).
	Commit()
	// Finalize propagates committed state into dependents once all
	// priority-sorted commits for this flush have completed.
	Finalize()
	// GetProperty answers read-only introspection queries; ok is false
	// for unrecognized property names.
	GetProperty(name string, t anaritype.Type, flags PropertyFlags) (value interface{}, ok bool)
	// IsValid reports whether the object is usable; the renderer skips
	// objects for which it returns false.
	IsValid() bool
}

// Full is what BaseObject.Init requires: a type that is both the subject
// of the lifetime hooks and the provider of Derived's capability set.
// Concrete object types embed *BaseObject and pass themselves (as the
// outermost type) to Init so both dispatch through the most-derived
// override.
type Full interface {
	refcount.Hooks
	Derived
	devstate.Committable
}

// refBase names the embedded refcount.Base under a field name that does not
// collide with BaseObject's own Base method.
type refBase = refcount.Base

// BaseObject is the shared implementation every ANARI object type in this
// runtime embeds: split reference counting, the parameter bag, the
// change-observer graph, and the four commit/finalize/update timestamps.
type BaseObject struct {
	refBase
	ParameterizedObject

	self  Full
	typ   anaritype.Type
	state *devstate.GlobalState

	mu        sync.Mutex
	observers refcount.ObserverSet

	lastParamChanged atomic.Uint64
	lastUpdated      atomic.Uint64
	lastCommitted    atomic.Uint64
	lastFinalized    atomic.Uint64
}

// Init must be called from every concrete constructor before the object
// is published. self is the outermost embedding type (so hooks and
// Commit/Finalize/GetProperty/IsValid dispatch to its overrides, not
// BaseObject's own defaults). Matches "GlobalState maintains one atomic
// counter per object category, incremented in BaseObject's constructor".
func (b *BaseObject) Init(self Full, t anaritype.Type, state *devstate.GlobalState) {
	b.self = self
	b.typ = t
	b.state = state
	b.refBase.Init(self)
	if state != nil {
		state.IncrementObjectCount(t)
	}
}

// Type returns the object's ANARI data-type tag.
func (b *BaseObject) Type() anaritype.Type { return b.typ }

// Base returns b itself. Exists so code holding only an anyvalue.Object
// (or any other narrow interface) can recover the embedded BaseObject via
// a single-method type assertion, without needing to know the concrete
// wrapping type.
func (b *BaseObject) Base() *BaseObject { return b }

// State returns the device-wide GlobalState this object was created in.
// Objects hold this as a back pointer only — never ownership (§3
// invariant: "no object outlives the device state it was created in").
func (b *BaseObject) State() *devstate.GlobalState { return b.state }

// OnNoPublicReferences is BaseObject's default: no-op. Array overrides it
// to privatize shared storage.
func (b *BaseObject) OnNoPublicReferences() {}

// OnNoInternalReferences is BaseObject's default: no-op.
func (b *BaseObject) OnNoInternalReferences() {}

// OnDestroy releases the object's parameters (dropping any internal refs
// they hold) and reports the per-type leak counter decrement.
func (b *BaseObject) OnDestroy() {
	b.RemoveAllParams()
	if b.state != nil {
		b.state.DecrementObjectCount(b.typ)
	}
}

// IsValid is BaseObject's default: true. Concrete types may override it.
func (b *BaseObject) IsValid() bool { return true }

// ReportMessage routes a status record through the owning GlobalState's
// functor, matching BaseObject::reportMessage.
func (b *BaseObject) ReportMessage(sev status.Severity, code status.Code, format string, args ...interface{}) {
	if b.state == nil {
		return
	}
	status.Reportf(b.state.StatusFn, b.self, sev, code, format, args...)
}

// -- timestamps --------------------------------------------------------

func (b *BaseObject) LastParameterChanged() devstate.TimeStamp {
	return devstate.TimeStamp(b.lastParamChanged.Load())
}

func (b *BaseObject) LastUpdated() devstate.TimeStamp {
	return devstate.TimeStamp(b.lastUpdated.Load())
}

func (b *BaseObject) LastCommitted() devstate.TimeStamp {
	return devstate.TimeStamp(b.lastCommitted.Load())
}

func (b *BaseObject) LastFinalized() devstate.TimeStamp {
	return devstate.TimeStamp(b.lastFinalized.Load())
}

// MarkParameterChanged stamps lastParameterChanged to now. Called
// whenever SetParam/RemoveParam/RemoveAllParams actually mutates the bag.
func (b *BaseObject) MarkParameterChanged() {
	b.lastParamChanged.Store(uint64(devstate.Now()))
}

// MarkCommitted stamps lastCommitted to now; called by the flush loop
// after a successful CommitParameters.
func (b *BaseObject) MarkCommitted() {
	b.lastCommitted.Store(uint64(devstate.Now()))
}

// MarkUpdated stamps lastUpdated to now; called when this object is
// notified as a change observer of something it depends on.
func (b *BaseObject) MarkUpdated() {
	b.lastUpdated.Store(uint64(devstate.Now()))
}

// MarkFinalized stamps lastFinalized to now; called by the flush loop
// after a successful FinalizeObject.
func (b *BaseObject) MarkFinalized() {
	b.lastFinalized.Store(uint64(devstate.Now()))
}

// IsClean reports the §3 invariant "lastCommitted >= lastParameterChanged".
func (b *BaseObject) IsClean() bool {
	return b.LastCommitted() >= b.LastParameterChanged()
}

// -- devstate.Committable plumbing --------------------------------------

// RefCount satisfies devstate.Committable (useCount(ALL)).
func (b *BaseObject) RefCount() int64 { return b.UseCount(refcount.All) }

// CommitParameters satisfies devstate.Committable by dispatching to the
// most-derived Commit().
func (b *BaseObject) CommitParameters() { b.self.Commit() }

// FinalizeObject satisfies devstate.Committable by dispatching to the
// most-derived Finalize().
func (b *BaseObject) FinalizeObject() { b.self.Finalize() }

// HoldInternal/ReleaseInternal satisfy devstate.Committable: the queues
// pin an enqueued object for as long as they hold it.
func (b *BaseObject) HoldInternal()    { b.RefInc(refcount.Internal) }
func (b *BaseObject) ReleaseInternal() { b.RefDec(refcount.Internal) }

// GetProperty answers the universal "valid" property itself; everything
// else is forwarded to the most-derived GetProperty.
func (b *BaseObject) GetProperty(name string, t anaritype.Type, flags PropertyFlags) (interface{}, bool) {
	if name == "valid" {
		return b.self.IsValid(), true
	}
	return b.self.GetProperty(name, t, flags)
}

// -- parameter bag overrides that also stamp timestamps and notify ------

// SetParam stages a POD parameter, stamping lastParameterChanged and
// scheduling a commit if the value actually changed.
func (b *BaseObject) SetParam(name string, t anaritype.Type, bytes []byte) bool {
	changed := b.ParameterizedObject.SetParam(name, t, bytes)
	if changed {
		b.MarkParameterChanged()
		b.scheduleCommit()
	}
	return changed
}

// SetParamString stages a string parameter.
func (b *BaseObject) SetParamString(name string, s string) bool {
	changed := b.ParameterizedObject.SetParamString(name, s)
	if changed {
		b.MarkParameterChanged()
		b.scheduleCommit()
	}
	return changed
}

// SetParamObject stages an object-typed parameter.
func (b *BaseObject) SetParamObject(name string, t anaritype.Type, obj anyvalue.Object) bool {
	changed := b.ParameterizedObject.SetParamObject(name, t, obj)
	if changed {
		b.MarkParameterChanged()
		b.scheduleCommit()
	}
	return changed
}

// RemoveParam removes name, stamping lastParameterChanged on success.
func (b *BaseObject) RemoveParam(name string) bool {
	removed := b.ParameterizedObject.RemoveParam(name)
	if removed {
		b.MarkParameterChanged()
		b.scheduleCommit()
	}
	return removed
}

// RemoveAllParams clears the bag, stamping lastParameterChanged on
// success.
func (b *BaseObject) RemoveAllParams() bool {
	removed := b.ParameterizedObject.RemoveAllParams()
	if removed {
		b.MarkParameterChanged()
		b.scheduleCommit()
	}
	return removed
}

// scheduleCommit enqueues this object on the owning GlobalState's commit
// queue, the way CommitParameters()-triggering API calls do in the C ABI
// surface (outside this package's scope, but the enqueue point itself is
// here so every object type gets it for free).
func (b *BaseObject) scheduleCommit() {
	if b.state != nil {
		b.state.AddCommit(b.self)
	}
}

// -- change-observer graph -----------------------------------------------

// AddChangeObserver registers obs as depending on this object's value.
func (b *BaseObject) AddChangeObserver(obs refcount.Observer) {
	b.mu.Lock()
	b.observers.Add(obs)
	b.mu.Unlock()
}

// RemoveChangeObserver unregisters obs.
func (b *BaseObject) RemoveChangeObserver(obs refcount.Observer) {
	b.mu.Lock()
	b.observers.Remove(obs)
	b.mu.Unlock()
}

// NotifyChangeObservers marks every registered observer updated and
// enqueues it for finalize on the next buffer flush.
func (b *BaseObject) NotifyChangeObservers() {
	b.mu.Lock()
	b.observers.NotifyAll()
	b.mu.Unlock()
}

// NotifyUpdated implements refcount.Observer: this object is itself an
// observer of whatever it holds a ChangeObserverPtr to.
func (b *BaseObject) NotifyUpdated() {
	b.MarkUpdated()
	if b.state != nil {
		b.state.AddFinalize(b.self)
	}
}

// AddObserver/RemoveObserver let this object be the *subject* side of a
// refcount.ChangeObserverPtr held by something that depends on it.
func (b *BaseObject) AddObserver(o refcount.Observer)    { b.AddChangeObserver(o) }
func (b *BaseObject) RemoveObserver(o refcount.Observer) { b.RemoveChangeObserver(o) }

// ObserverCount reports how many observers are currently registered.
func (b *BaseObject) ObserverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observers.Len()
}

// UseCountAll is a small convenience wrapper over UseCount(refcount.All),
// named for call sites that would otherwise need to import refcount just
// to spell out the Kind.
func (b *BaseObject) UseCountAll() int64 { return b.UseCount(refcount.All) }

// ReleasePublic is a convenience wrapper over RefDec(refcount.Public),
// modeling the application calling anariRelease() on a handle.
func (b *BaseObject) ReleasePublic() { b.RefDec(refcount.Public) }
