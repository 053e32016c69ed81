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

package devstate

import (
	"sync"
	"sync/atomic"

	"github.com/anari-sdk/corerun/internal/status"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// Committable is the capability BaseObject exposes to the commit/finalize
// machinery. It deliberately does not import internal/object, to keep the
// dependency edge one-directional (object depends on devstate, not the
// reverse) the way BaseGlobalDeviceState and BaseObject live in the same
// library in the original but here split across packages.
type Committable interface {
	Type() anaritype.Type
	RefCount() int64 // useCount(ALL); see refcount.Base.UseCount
	LastParameterChanged() TimeStamp
	LastCommitted() TimeStamp
	LastUpdated() TimeStamp
	LastFinalized() TimeStamp
	// CommitParameters runs the object's commit() body.
	CommitParameters()
	MarkCommitted()
	// FinalizeObject runs the object's finalize() body.
	FinalizeObject()
	MarkFinalized()
	// holdInternal/releaseInternal let the queues pin an object for the
	// duration they sit in a queue, mirroring addObject's refInc(INTERNAL)
	// / clear's refDec(INTERNAL) in the original DeferredCommitBuffer.
	HoldInternal()
	ReleaseInternal()
}

// GlobalState is the process-wide-per-device state described in §4.3:
// the commit buffer, the finalize queue, per-type object counters, and
// the status callback indirection.
type GlobalState struct {
	mu            sync.Mutex
	commitQueue   []Committable
	finalizeQueue []Committable
	needSort      bool
	lastFlush     TimeStamp

	counts   [anaritype.Array3D + 1]atomic.Int64
	StatusFn status.Func
}

// NewGlobalState returns a GlobalState with status records discarded
// until SetStatusFunc is called.
func NewGlobalState() *GlobalState {
	return &GlobalState{StatusFn: status.Discard}
}

// SetStatusFunc installs fn as the status callback indirection. Passing
// nil restores the discarding default.
func (g *GlobalState) SetStatusFunc(fn status.Func) {
	if fn == nil {
		fn = status.Discard
	}
	g.mu.Lock()
	g.StatusFn = fn
	g.mu.Unlock()
}

// Report routes a status record through the installed functor.
func (g *GlobalState) Report(r status.Record) {
	g.mu.Lock()
	fn := g.StatusFn
	g.mu.Unlock()
	fn(r)
}

// IncrementObjectCount bumps the per-type leak counter. Called from
// BaseObject's constructor.
func (g *GlobalState) IncrementObjectCount(t anaritype.Type) {
	if int(t) < len(g.counts) {
		g.counts[t].Add(1)
	}
}

// DecrementObjectCount reverses IncrementObjectCount. Called from
// BaseObject's OnDestroy.
func (g *GlobalState) DecrementObjectCount(t anaritype.Type) {
	if int(t) < len(g.counts) {
		g.counts[t].Add(-1)
	}
}

// ObjectCount reads the current live count for t.
func (g *GlobalState) ObjectCount(t anaritype.Type) int64 {
	if int(t) >= len(g.counts) {
		return 0
	}
	return g.counts[t].Load()
}

// LeakReport returns {type: count} for every type with a non-zero live
// count, for use at device-destruction time (§4.3, §8 scenario 6).
func (g *GlobalState) LeakReport() map[anaritype.Type]int64 {
	out := map[anaritype.Type]int64{}
	for t := anaritype.Type(0); int(t) < len(g.counts); t++ {
		if n := g.counts[t].Load(); n > 0 {
			out[t] = n
		}
	}
	return out
}

// AddCommit enqueues obj on the commit queue, matching
// DeferredCommitBuffer::addObject: it takes an internal reference for the
// duration the queue holds the pointer, and flags a sort if obj's
// priority differs from the default bucket.
func (g *GlobalState) AddCommit(obj Committable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	obj.HoldInternal()
	if anaritype.CommitPriority(obj.Type()) != anaritype.DefaultCommitPriority {
		g.needSort = true
	}
	g.commitQueue = append(g.commitQueue, obj)
}

// AddFinalize enqueues obj on the finalize queue: called by
// NotifyChangeObservers when an object is marked updated.
func (g *GlobalState) AddFinalize(obj Committable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	obj.HoldInternal()
	g.finalizeQueue = append(g.finalizeQueue, obj)
}

// LastFlush reports the timestamp of the most recent successful
// FlushCommits call.
func (g *GlobalState) LastFlush() TimeStamp {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFlush
}

// maxFixedPointPasses bounds the "commit during commit" iteration from
// §9's resolved open question: re-committing within the same flush is
// correct, but must not spin forever on a runaway observer cycle.
const maxFixedPointPasses = 64

// FlushCommits implements §4.3's flush algorithm: sort by priority (only
// if needed), drain the commit queue (tolerating new enqueues from commit
// callbacks), then drain the finalize queue the same way. Returns
// didWork=false if the commit queue was empty on entry.
func (g *GlobalState) FlushCommits() (didWork bool) {
	g.mu.Lock()
	if len(g.commitQueue) == 0 {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()

	g.drainCommitQueue()
	g.drainFinalizeQueue()

	g.mu.Lock()
	g.lastFlush = Now()
	g.mu.Unlock()
	return true
}

func (g *GlobalState) drainCommitQueue() {
	for pass := 0; pass < maxFixedPointPasses; pass++ {
		g.mu.Lock()
		if len(g.commitQueue) == 0 {
			g.mu.Unlock()
			return
		}
		if g.needSort {
			sortByPriority(g.commitQueue)
			g.needSort = false
		}
		queue := g.commitQueue
		g.commitQueue = nil
		g.mu.Unlock()

		for _, obj := range queue {
			if obj.RefCount() > 1 && obj.LastParameterChanged() > obj.LastCommitted() {
				obj.CommitParameters()
				obj.MarkCommitted()
			}
			obj.ReleaseInternal()
		}

		g.mu.Lock()
		empty := len(g.commitQueue) == 0
		g.mu.Unlock()
		if empty {
			return
		}
	}
	g.Report(status.Record{
		Severity: status.SeverityWarning,
		Code:     status.CodeUnknownError,
		Message:  "commit flush exceeded the fixed-point iteration bound; likely an observer cycle",
	})
	g.clearCommitQueue()
}

func (g *GlobalState) drainFinalizeQueue() {
	for pass := 0; pass < maxFixedPointPasses; pass++ {
		g.mu.Lock()
		if len(g.finalizeQueue) == 0 {
			g.mu.Unlock()
			return
		}
		sortByPriority(g.finalizeQueue)
		queue := g.finalizeQueue
		g.finalizeQueue = nil
		g.mu.Unlock()

		for _, obj := range queue {
			if obj.LastUpdated() > obj.LastFinalized() {
				obj.FinalizeObject()
				obj.MarkFinalized()
			}
			obj.ReleaseInternal()
		}

		g.mu.Lock()
		empty := len(g.finalizeQueue) == 0
		g.mu.Unlock()
		if empty {
			return
		}
	}
	g.Report(status.Record{
		Severity: status.SeverityWarning,
		Code:     status.CodeUnknownError,
		Message:  "finalize flush exceeded the fixed-point iteration bound; likely an observer cycle",
	})
	g.clearFinalizeQueue()
}

func (g *GlobalState) clearCommitQueue() {
	g.mu.Lock()
	queue := g.commitQueue
	g.commitQueue = nil
	g.mu.Unlock()
	for _, obj := range queue {
		obj.ReleaseInternal()
	}
}

func (g *GlobalState) clearFinalizeQueue() {
	g.mu.Lock()
	queue := g.finalizeQueue
	g.finalizeQueue = nil
	g.mu.Unlock()
	for _, obj := range queue {
		obj.ReleaseInternal()
	}
}

// sortByPriority stable-sorts queue ascending by commit priority, so
// leaves commit before roots (§4.3 step 2).
func sortByPriority(queue []Committable) {
	// insertion sort: queues are small (typically well under a hundred
	// entries per flush) and stability matters more than asymptotics here.
	for i := 1; i < len(queue); i++ {
		for j := i; j > 0 && anaritype.CommitPriority(queue[j-1].Type()) > anaritype.CommitPriority(queue[j].Type()); j-- {
			queue[j-1], queue[j] = queue[j], queue[j-1]
		}
	}
}
