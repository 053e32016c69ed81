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

// Package frame implements the Frame state machine from §4.4, plus the
// rendering semaphore from §5, which serializes Frame.Map against a frame
// render in flight.
package frame

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/anari-sdk/corerun/internal/devstate"
	"github.com/anari-sdk/corerun/internal/object"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// discardPollInterval is how often the cancellation watcher checks the
// discard flag while a render is in flight.
const discardPollInterval = 2 * time.Millisecond

type poller struct {
	c    <-chan time.Time
	stop func()
}

func pollTicker() poller {
	t := time.NewTicker(discardPollInterval)
	return poller{c: t.C, stop: t.Stop}
}

// State is one of the four frame states from §4.4.
type State int

const (
	Unmapped State = iota
	Rendering
	Ready
	Mapped
)

func (s State) String() string {
	switch s {
	case Unmapped:
		return "unmapped"
	case Rendering:
		return "render"
	case Ready:
		return "ready"
	case Mapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// Channel names the two mandatory framebuffer channels (§4.4).
type Channel string

const (
	ChannelColor Channel = "channel.color"
	ChannelDepth Channel = "channel.depth"
)

// RenderFunc is the backend render routine a Frame drives. It must
// respect ctx cancellation so Discard can cut it short.
type RenderFunc func(ctx context.Context) error

// Semaphore is the "rendering semaphore" from §5. Backed by
// golang.org/x/sync/semaphore with weight 1 and shared by the Frames one
// device creates: RenderFrame holds it for the whole render, and
// Frame.Map acquires it (blocking while a render is in flight) for the
// duration of the Map call. Array mapping (array.Array.Map/Unmap) does not
// use it.
type Semaphore struct {
	sem *semaphore.Weighted
}

// NewSemaphore returns a rendering semaphore ready for use.
func NewSemaphore() *Semaphore {
	return &Semaphore{sem: semaphore.NewWeighted(1)}
}

// AcquireForArrayMap blocks until no frame is in flight, then marks an
// array mapping as in progress.
func (s *Semaphore) AcquireForArrayMap(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

// ReleaseArrayMap ends an array mapping.
func (s *Semaphore) ReleaseArrayMap() { s.sem.Release(1) }

// AcquireForRender blocks until no array mapping is in progress, then
// marks a frame render as in progress.
func (s *Semaphore) AcquireForRender(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

// ReleaseRender ends a frame render.
func (s *Semaphore) ReleaseRender() { s.sem.Release(1) }

// Frame is the entity described in §3 (two image channels, a size,
// pixel-type tags, and the §4.4 state machine) plus its BaseObject
// identity.
type Frame struct {
	object.BaseObject

	mu       sync.Mutex
	cond     *sync.Cond
	state    State
	discard  bool
	renderFn RenderFunc
	sem      *Semaphore

	width, height int
	colorType     anaritype.Type
	depthType     anaritype.Type
	color         []byte
	depth         []byte
}

// New constructs a Frame in the unmapped state. state may be nil for
// standalone/test use; a real device always passes its GlobalState so
// leak accounting and the commit/finalize queues see the frame.
func New(sem *Semaphore, state *devstate.GlobalState) *Frame {
	f := &Frame{sem: sem, state: Unmapped}
	f.cond = sync.NewCond(&f.mu)
	f.Init(f, anaritype.Frame, state)
	return f
}

// State reports the frame's current state.
func (f *Frame) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetRenderFunc installs the backend render routine invoked by
// RenderFrame. Must be called (typically from Commit) before the first
// RenderFrame.
func (f *Frame) SetRenderFunc(fn RenderFunc) {
	f.mu.Lock()
	f.renderFn = fn
	f.mu.Unlock()
}

// Configure sets the frame's size and channel pixel types. Called from
// the device's commit path once it has read the frame's staged size
// parameters.
func (f *Frame) Configure(width, height int, colorType, depthType anaritype.Type) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.width, f.height = width, height
	f.colorType, f.depthType = colorType, depthType
	f.color = make([]byte, width*height*anaritype.ByteSize(colorType))
	f.depth = make([]byte, width*height*anaritype.ByteSize(depthType))
}

// RenderFrame implements §4.4's renderFrame transition: if the frame is
// mapped, blocks until Unmap; then acquires the rendering semaphore
// (blocking against any in-flight Frame.Map) and runs the backend render
// routine in its own goroutine via errgroup, alongside a watcher that
// cancels the render context once Discard is called. RenderFrame returns
// only after the render routine has returned, so a backend that ignores
// cancellation keeps it blocked.
func (f *Frame) RenderFrame(ctx context.Context) error {
	f.mu.Lock()
	for f.state == Mapped {
		f.cond.Wait()
	}
	f.state = Rendering
	f.discard = false
	renderFn := f.renderFn
	f.mu.Unlock()

	if err := f.sem.AcquireForRender(ctx); err != nil {
		return err
	}
	defer f.sem.ReleaseRender()

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(renderCtx)
	g.Go(func() error {
		// ends the watcher below once the render routine returns
		defer cancel()
		if renderFn == nil {
			return nil
		}
		return renderFn(gctx)
	})
	g.Go(func() error {
		// cancellation watcher: observes Discard and cuts the render
		// context short without requiring the backend to poll a flag
		// itself on every iteration.
		ticker := pollTicker()
		defer ticker.stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.c:
				f.mu.Lock()
				d := f.discard
				f.mu.Unlock()
				if d {
					cancel()
					return nil
				}
			}
		}
	})
	err := g.Wait()

	f.mu.Lock()
	f.state = Ready
	f.cond.Broadcast()
	f.mu.Unlock()
	return err
}

// FrameReady implements §4.4's frameReady: wait==true blocks until the
// frame leaves Rendering; wait==false returns the boolean directly.
// Once Ready, it remains true until the next RenderFrame (§8 boundary
// behavior).
func (f *Frame) FrameReady(wait bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if wait {
		for f.state == Rendering {
			f.cond.Wait()
		}
	}
	return f.state == Ready || f.state == Mapped
}

// Map implements §4.4's map transition: valid only from Ready, returns
// the channel's current bytes plus width/height/pixel-type.
func (f *Frame) Map(ch Channel) (data []byte, width, height int, pixelType anaritype.Type, ok bool) {
	if err := f.sem.AcquireForArrayMap(context.Background()); err != nil {
		return nil, 0, 0, anaritype.Unknown, false
	}
	defer f.sem.ReleaseArrayMap()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Ready {
		return nil, 0, 0, anaritype.Unknown, false
	}
	f.state = Mapped
	switch ch {
	case ChannelColor:
		return f.color, f.width, f.height, f.colorType, true
	case ChannelDepth:
		return f.depth, f.width, f.height, f.depthType, true
	default:
		f.state = Ready
		return nil, 0, 0, anaritype.Unknown, false
	}
}

// Unmap implements §4.4's unmap transition.
func (f *Frame) Unmap(ch Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Mapped {
		return
	}
	f.state = Unmapped
	f.cond.Broadcast()
}

// Discard implements §4.4's discard transition: cancels an in-flight
// render asynchronously and, from Ready, returns directly to unmapped.
func (f *Frame) Discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discard = true
	if f.state == Ready {
		f.state = Unmapped
	}
	f.cond.Broadcast()
}

// DiscardAndWait is used by Frame's own OnNoPublicReferences: "on release
// of the last public reference, an in-flight frame is discarded and
// waited on."
func (f *Frame) DiscardAndWait() {
	f.Discard()
	f.FrameReady(true)
}

// OnNoPublicReferences implements the §4.4 release rule above.
func (f *Frame) OnNoPublicReferences() {
	f.DiscardAndWait()
}

// Commit is Frame's derived commit hook; concrete devices override sizing
// logic via Configure from their own commit path (the frame module stays
// backend-agnostic about what parameters a "size"/"format" pair means).
func (f *Frame) Commit() {}

// Finalize is Frame's derived finalize hook.
func (f *Frame) Finalize() {}

// GetProperty answers frame-specific introspection.
func (f *Frame) GetProperty(name string, t anaritype.Type, flags object.PropertyFlags) (interface{}, bool) {
	switch name {
	case "size":
		f.mu.Lock()
		defer f.mu.Unlock()
		return [2]int{f.width, f.height}, true
	default:
		return nil, false
	}
}

// IsValid: frames are always valid once constructed.
func (f *Frame) IsValid() bool { return true }

func floatBits(v float32) uint32 { return math.Float32bits(v) }

// Base exposes the embedded BaseObject so a backend's commit path can
// read the frame's staged parameters (size, format, world) without this
// package needing to know what any of them mean.
func (f *Frame) Base() *object.BaseObject { return &f.BaseObject }

// FillColor writes color to every pixel of the color channel. The only
// write access a backend gets to a frame's buffers — call during a
// RenderFunc, before it returns.
func (f *Frame) FillColor(color [4]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stride := anaritype.ByteSize(f.colorType)
	if stride != 16 || len(f.color) == 0 {
		return
	}
	var px [16]byte
	for i, c := range color {
		bits := floatBits(c)
		px[i*4+0] = byte(bits)
		px[i*4+1] = byte(bits >> 8)
		px[i*4+2] = byte(bits >> 16)
		px[i*4+3] = byte(bits >> 24)
	}
	for off := 0; off+16 <= len(f.color); off += 16 {
		copy(f.color[off:off+16], px[:])
	}
}
