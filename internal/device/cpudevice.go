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

package device

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/internal/array"
	"github.com/anari-sdk/corerun/internal/devstate"
	"github.com/anari-sdk/corerun/internal/frame"
	"github.com/anari-sdk/corerun/internal/object"
	"github.com/anari-sdk/corerun/internal/refcount"
	"github.com/anari-sdk/corerun/internal/status"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// baser is satisfied by every node this device creates: the single-method
// escape hatch that recovers the embedded object.BaseObject from a narrow
// anyvalue.Object handle (see object.BaseObject.Base).
type baser interface {
	Base() *object.BaseObject
}

// genericNode backs every object type cpudevice does not special-case
// (camera, renderer, world, instance, group, surface, volume, geometry,
// material, sampler, spatial field, light): a plain parameterized,
// committable object with no behavior of its own. Concrete rendering
// algorithms are explicitly out of scope; cpudevice's only job is to
// exercise the commit/finalize/reference-counting machinery end-to-end.
type genericNode struct {
	object.BaseObject
	subtype string
}

func newGenericNode(t anaritype.Type, subtype string, state *devstate.GlobalState) *genericNode {
	n := &genericNode{subtype: subtype}
	n.Init(n, t, state)
	return n
}

func (n *genericNode) Commit()   {}
func (n *genericNode) Finalize() {}
func (n *genericNode) GetProperty(name string, t anaritype.Type, flags object.PropertyFlags) (interface{}, bool) {
	if name == "subtype" {
		return n.subtype, true
	}
	return nil, false
}
func (n *genericNode) IsValid() bool { return true }

// CPUDevice is the minimal in-process reference backend from §3.7: a
// "surface" renders as a flat color so the frame pipeline and commit
// ordering have something real to flush through. It is not a rendering
// engine — concrete rendering algorithms remain out of scope.
type CPUDevice struct {
	state *devstate.GlobalState
	sem   *frame.Semaphore
}

var _ Device = (*CPUDevice)(nil)

// NewCPUDevice constructs a CPUDevice with its own GlobalState and
// rendering semaphore.
func NewCPUDevice() *CPUDevice {
	return &CPUDevice{state: devstate.NewGlobalState(), sem: frame.NewSemaphore()}
}

// SetStatusFunc installs the device-wide status callback.
func (d *CPUDevice) SetStatusFunc(fn status.Func) { d.state.SetStatusFunc(fn) }

// State exposes the device's GlobalState for components (debugdevice,
// the CLI) that need direct access to leak reporting or FlushCommits.
func (d *CPUDevice) State() *devstate.GlobalState { return d.state }

// knownSubtypes lists the (type, subtype) pairs this reference backend
// actually implements a placeholder behavior for. A type absent from this
// table has no subtype taxonomy of its own yet (World, Frame, Camera,
// Renderer, Instance, Group, Material, Volume, Sampler, SpatialField), so
// any subtype string — including the empty string applications typically
// pass for those — is accepted.
var knownSubtypes = map[anaritype.Type][]string{
	anaritype.Surface:  {"flat", "matte"},
	anaritype.Geometry: {"triangle", "sphere"},
	anaritype.Light:    {"point", "directional"},
}

func subtypeKnown(t anaritype.Type, subtype string) bool {
	allowed, restricted := knownSubtypes[t]
	if !restricted {
		return true
	}
	for _, s := range allowed {
		if s == subtype {
			return true
		}
	}
	return false
}

func (d *CPUDevice) NewObject(t anaritype.Type, subtype string) (anyvalue.Object, error) {
	switch t {
	case anaritype.Frame:
		return frame.New(d.sem, d.state), nil
	case anaritype.Array1D, anaritype.Array2D, anaritype.Array3D:
		return nil, errors.New("device: use NewArray for array objects")
	default:
		if !anaritype.IsObject(t) {
			return nil, errors.Errorf("device: %s is not an object type", t)
		}
		if !subtypeKnown(t, subtype) {
			return nil, &ErrUnsupportedSubtype{Type: t, Subtype: subtype}
		}
		return newGenericNode(t, subtype, d.state), nil
	}
}

func (d *CPUDevice) NewArray(desc array.Descriptor) (anyvalue.Object, error) {
	t := anaritype.Array1D
	switch {
	case desc.Dims[2] > 0:
		t = anaritype.Array3D
	case desc.Dims[1] > 0:
		t = anaritype.Array2D
	}
	a, err := array.New(t, d.state, desc)
	if err != nil {
		array.ReportInvalidDescriptor(d.state.StatusFn, nil)
		return nil, err
	}
	return a, nil
}

func (d *CPUDevice) MapParameterArray(o anyvalue.Object, name string, elemType anaritype.Type, dims [3]uint64) ([]byte, anyvalue.Object, error) {
	b, ok := o.(baser)
	if !ok {
		return nil, nil, errors.New("device: object does not support parameter-array mapping")
	}
	data, arr := array.MapParameter(b.Base(), d.state, name, elemType, dims)
	if arr == nil {
		return nil, nil, errors.New("device: failed to allocate parameter array")
	}
	return data, arr, nil
}

func (d *CPUDevice) UnmapParameterArray(o anyvalue.Object, arrObj anyvalue.Object) error {
	b, ok := o.(baser)
	if !ok {
		return errors.New("device: object does not support parameter-array mapping")
	}
	arr, ok := arrObj.(*array.Array)
	if !ok {
		return errors.New("device: not a mapped parameter array")
	}
	array.UnmapParameter(arr, b.Base())
	return nil
}

func (d *CPUDevice) SetParameter(o anyvalue.Object, name string, t anaritype.Type, bytes []byte) error {
	b, ok := o.(baser)
	if !ok {
		return errors.New("device: object does not accept parameters")
	}
	b.Base().SetParam(name, t, bytes)
	return nil
}

func (d *CPUDevice) SetParameterString(o anyvalue.Object, name string, s string) error {
	b, ok := o.(baser)
	if !ok {
		return errors.New("device: object does not accept parameters")
	}
	b.Base().SetParamString(name, s)
	return nil
}

func (d *CPUDevice) SetParameterObject(o anyvalue.Object, name string, t anaritype.Type, v anyvalue.Object) error {
	b, ok := o.(baser)
	if !ok {
		return errors.New("device: object does not accept parameters")
	}
	b.Base().SetParamObject(name, t, v)
	return nil
}

func (d *CPUDevice) UnsetParameter(o anyvalue.Object, name string) error {
	b, ok := o.(baser)
	if !ok {
		return errors.New("device: object does not accept parameters")
	}
	b.Base().RemoveParam(name)
	return nil
}

// Commit forces an early flush of the pending commit/finalize queues
// (§4.3 step 2-5 run through GlobalState.FlushCommits), rather than
// invoking commitParameters directly: parameter writes already enqueue
// their object the moment they change something (see
// object.BaseObject.scheduleCommit), so by the time the application
// calls commit, the object is already sitting in GlobalState's buffer
// with the right priority. RenderFrame flushes again on its own, so an
// explicit Commit call mainly matters for objects whose committed state
// an application wants to read back (GetProperty) before rendering.
func (d *CPUDevice) Commit(o anyvalue.Object) error {
	if f, ok := o.(*frame.Frame); ok {
		d.commitFrame(f)
	}
	if _, ok := o.(baser); !ok {
		return errors.New("device: object is not committable")
	}
	d.state.FlushCommits()
	return nil
}

// commitFrame reads the frame's staged size/format parameters and wires
// its render function, matching the §3.7 note that the frame module
// stays backend-agnostic about what a size/format pair means — cpudevice
// is the thing that actually knows.
func (d *CPUDevice) commitFrame(f *frame.Frame) {
	base := f.Base()
	width := int(decodeUint32(base.GetParamDirect("width")))
	height := int(decodeUint32(base.GetParamDirect("height")))
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	f.Configure(width, height, anaritype.Float32Vec4, anaritype.Float32)

	worldObj := base.GetParamObject("world")
	f.SetRenderFunc(func(ctx context.Context) error {
		return d.rasterize(ctx, f, worldObj)
	})
}

func decodeUint32(a anyvalue.Any) uint32 {
	if !a.Is(anaritype.UInt32) && !a.Is(anaritype.Int32) {
		return 0
	}
	return binary.LittleEndian.Uint32(a.Data()[:4])
}

// rasterize fills the color channel with the flat color of the world's
// "surface" parameter (or dark gray, 0.2/0.2/0.2/1, if none); the depth
// channel is not written. It is the "render" placeholder
// §3.7 calls out: real shading algorithms are explicitly out of scope.
func (d *CPUDevice) rasterize(ctx context.Context, f *frame.Frame, worldObj anyvalue.Object) error {
	color := [4]float32{0.2, 0.2, 0.2, 1}
	found := false
	if wb, ok := worldObj.(baser); ok {
		if surf := wb.Base().GetParamObject("surface"); surf != nil {
			if sb, ok := surf.(baser); ok {
				c := sb.Base().GetParamDirect("color")
				if c.Is(anaritype.Float32Vec4) {
					d := c.Data()
					for i := range color {
						color[i] = math.Float32frombits(binary.LittleEndian.Uint32(d[i*4 : i*4+4]))
					}
					found = true
				}
			}
		}
	}
	if !found {
		status.From(ctx).Info().Log("no committed surface color on world; rendering default flat color")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	writePixels(f, color)
	return nil
}

func writePixels(f *frame.Frame, color [4]float32) {
	// Frame.Configure already allocated storage sized for colorType; the
	// render writes it through Frame.FillColor instead of poking private
	// fields, keeping cpudevice honest about the frame package's
	// encapsulation.
	f.FillColor(color)
}

func (d *CPUDevice) GetProperty(o anyvalue.Object, name string, t anaritype.Type, flags object.PropertyFlags) (interface{}, bool) {
	b, ok := o.(baser)
	if !ok {
		return nil, false
	}
	return b.Base().GetProperty(name, t, flags)
}

func (d *CPUDevice) Release(o anyvalue.Object) error {
	o.RefDec(refcount.Public)
	return nil
}

func (d *CPUDevice) Retain(o anyvalue.Object) error {
	o.RefInc(refcount.Public)
	return nil
}

// RenderFrame flushes the commit/finalize buffer (§2's data-flow diagram:
// "application calls renderFrame -> buffer flushed") before dispatching
// the frame's own render routine, so the object graph it renders against
// is fully committed.
func (d *CPUDevice) RenderFrame(ctx context.Context, fObj anyvalue.Object) error {
	f, ok := fObj.(*frame.Frame)
	if !ok {
		return errors.New("device: RenderFrame requires a frame object")
	}
	d.state.FlushCommits()
	ctx = status.Bind(ctx, fObj, d.state.StatusFn)
	return f.RenderFrame(ctx)
}

func (d *CPUDevice) FrameReady(fObj anyvalue.Object, wait bool) bool {
	f, ok := fObj.(*frame.Frame)
	if !ok {
		return false
	}
	return f.FrameReady(wait)
}

func (d *CPUDevice) MapFrame(fObj anyvalue.Object, channel string) ([]byte, int, int, anaritype.Type, bool) {
	f, ok := fObj.(*frame.Frame)
	if !ok {
		return nil, 0, 0, anaritype.Unknown, false
	}
	return f.Map(frame.Channel(channel))
}

func (d *CPUDevice) UnmapFrame(fObj anyvalue.Object, channel string) {
	if f, ok := fObj.(*frame.Frame); ok {
		f.Unmap(frame.Channel(channel))
	}
}

func (d *CPUDevice) Flush() { d.state.FlushCommits() }
