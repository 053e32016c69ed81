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

package devstate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/anari-sdk/corerun/internal/devstate"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// fakeCommittable is a minimal devstate.Committable for exercising
// GlobalState's queues without pulling in internal/object.
type fakeCommittable struct {
	typ              anaritype.Type
	refCount         int64
	paramChanged     devstate.TimeStamp
	committed        devstate.TimeStamp
	updated          devstate.TimeStamp
	finalized        devstate.TimeStamp
	internalHolds    int
	commits          int
	finalizes        int
}

func (f *fakeCommittable) Type() anaritype.Type                  { return f.typ }
func (f *fakeCommittable) RefCount() int64                       { return f.refCount }
func (f *fakeCommittable) LastParameterChanged() devstate.TimeStamp { return f.paramChanged }
func (f *fakeCommittable) LastCommitted() devstate.TimeStamp     { return f.committed }
func (f *fakeCommittable) LastUpdated() devstate.TimeStamp       { return f.updated }
func (f *fakeCommittable) LastFinalized() devstate.TimeStamp     { return f.finalized }
func (f *fakeCommittable) CommitParameters()                     { f.commits++; f.committed = f.paramChanged + 1 }
func (f *fakeCommittable) MarkCommitted()                        {}
func (f *fakeCommittable) FinalizeObject()                       { f.finalizes++ }
func (f *fakeCommittable) MarkFinalized()                        {}
func (f *fakeCommittable) HoldInternal()                         { f.internalHolds++ }
func (f *fakeCommittable) ReleaseInternal()                      { f.internalHolds-- }

func TestObjectCountTracksIncrementAndDecrement(t *testing.T) {
	g := devstate.NewGlobalState()
	g.IncrementObjectCount(anaritype.Surface)
	g.IncrementObjectCount(anaritype.Surface)
	g.IncrementObjectCount(anaritype.World)

	got := g.LeakReport()
	want := map[anaritype.Type]int64{anaritype.Surface: 2, anaritype.World: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LeakReport() mismatch (-want +got):\n%s", diff)
	}

	g.DecrementObjectCount(anaritype.World)
	got = g.LeakReport()
	want = map[anaritype.Type]int64{anaritype.Surface: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LeakReport() after decrement mismatch (-want +got):\n%s", diff)
	}
}

func TestFlushCommitsSkipsUnchangedAndSingleReferencedObjects(t *testing.T) {
	g := devstate.NewGlobalState()

	changed := &fakeCommittable{typ: anaritype.Surface, refCount: 2, paramChanged: 5}
	unchanged := &fakeCommittable{typ: anaritype.Material, refCount: 2, paramChanged: 1, committed: 1}
	soleRef := &fakeCommittable{typ: anaritype.Geometry, refCount: 1, paramChanged: 5}

	g.AddCommit(changed)
	g.AddCommit(unchanged)
	g.AddCommit(soleRef)

	if !g.FlushCommits() {
		t.Fatal("FlushCommits() = false, want true with a non-empty queue")
	}

	if changed.commits != 1 {
		t.Errorf("changed.commits = %d, want 1", changed.commits)
	}
	if unchanged.commits != 0 {
		t.Errorf("unchanged.commits = %d, want 0 (nothing staged since last commit)", unchanged.commits)
	}
	if soleRef.commits != 0 {
		t.Errorf("soleRef.commits = %d, want 0 (refCount <= 1, no external owner)", soleRef.commits)
	}
	for _, c := range []*fakeCommittable{changed, unchanged, soleRef} {
		if c.internalHolds != 0 {
			t.Errorf("%v: internalHolds = %d, want 0 after flush releases the queue's hold", c.typ, c.internalHolds)
		}
	}
}

func TestFlushCommitsOnEmptyQueueIsNoop(t *testing.T) {
	g := devstate.NewGlobalState()
	if g.FlushCommits() {
		t.Fatal("FlushCommits() = true on an empty queue, want false")
	}
}
