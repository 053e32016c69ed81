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

// Package debugdevice implements the validating passthrough wrapper from
// §4.5: it sits between the application and a real device.Device backend,
// handing the application opaque debug handles instead of direct
// anyvalue.Object references so it can detect use-after-release, unknown
// handles, and the other misuse patterns described there, before
// translating and forwarding every call to the wrapped device.
package debugdevice

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/internal/array"
	"github.com/anari-sdk/corerun/internal/device"
	"github.com/anari-sdk/corerun/internal/object"
	"github.com/anari-sdk/corerun/internal/serializer"
	"github.com/anari-sdk/corerun/internal/status"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// Handle is the opaque id the application sees in place of a real
// anyvalue.Object. Defined in the serializer package so a trace can be
// replayed without importing this one.
type Handle = serializer.Handle

// lifecycle is a descriptor's coarse state, used for the "commit called
// with no pending changes" and "release of a never-referenced object"
// warnings.
type lifecycle int

const (
	lifecycleCreated lifecycle = iota
	lifecycleCommitted
	lifecycleReleased
)

// descriptor is the debug device's record of one application-visible
// handle: its type identity, the real object it wraps, and enough history
// to drive the §4.5 validation rules.
type descriptor struct {
	handle  Handle
	typ     anaritype.Type
	subtype string
	wrapped anyvalue.Object

	elemType anaritype.Type // arrays only: element type, for object-slot translation

	state         lifecycle
	pendingCommit bool
	everCommitted bool
	referenced    bool // ever retained, or ever bound as another object's parameter
	publicRefs    int64
	mapped        bool // arrays only: between MapParameterArray and UnmapParameterArray
}

// DebugDevice wraps a device.Device, validating every call before
// translating handles and forwarding.
type DebugDevice struct {
	mu       sync.Mutex
	backend  device.Device
	serial   serializer.Serializer
	statusFn status.Func

	nextHandle Handle
	byHandle   map[Handle]*descriptor
	byWrapped  map[anyvalue.Object]Handle

	featureUsage map[string]int64
}

// New wraps backend. Until SetSerializer is called, calls are not traced.
func New(backend device.Device) *DebugDevice {
	return &DebugDevice{
		backend:      backend,
		serial:       serializer.NoopSerializer{},
		byHandle:     make(map[Handle]*descriptor),
		byWrapped:    make(map[anyvalue.Object]Handle),
		featureUsage: make(map[string]int64),
	}
}

// SetStatusFunc installs the callback every validation record and
// passed-through device status record is routed through.
func (d *DebugDevice) SetStatusFunc(fn status.Func) { d.statusFn = fn }

// SetSerializer installs a trace sink. Called with serializer.NoopSerializer{}
// (the default) to disable tracing.
func (d *DebugDevice) SetSerializer(s serializer.Serializer) { d.serial = s }

func (d *DebugDevice) report(source interface{}, sev status.Severity, code status.Code, format string, args ...interface{}) {
	status.Reportf(d.statusFn, source, sev, code, format, args...)
	d.serial.Status(status.Record{Source: source, Severity: sev, Code: code, Message: fmt.Sprintf(format, args...)})
}

var errUnknownHandle = errors.New("debugdevice: unknown or released handle")

// lookup resolves h, reporting and returning errUnknownHandle for a handle
// that was never issued or has already been released (§4.5: "referencing
// an unknown or already-released handle -> error").
func (d *DebugDevice) lookup(h Handle) (*descriptor, error) {
	desc, ok := d.byHandle[h]
	if !ok || desc.state == lifecycleReleased {
		d.report(nil, status.SeverityError, status.CodeInvalidArgument,
			"handle %d is unknown or has already been released", h)
		return nil, errUnknownHandle
	}
	return desc, nil
}

func (d *DebugDevice) register(t anaritype.Type, subtype string, wrapped anyvalue.Object) *descriptor {
	d.nextHandle++
	desc := &descriptor{handle: d.nextHandle, typ: t, subtype: subtype, wrapped: wrapped, publicRefs: 1}
	d.byHandle[desc.handle] = desc
	d.byWrapped[wrapped] = desc.handle
	return desc
}

func (d *DebugDevice) accountFeatureUsage(t anaritype.Type, subtype string) {
	if ext := anaritype.ExtensionID(t, subtype); ext != "" {
		d.featureUsage[ext]++
	}
}

// NewObject validates the subtype (by attempting the creation and checking
// for device.ErrUnsupportedSubtype), assigns a fresh handle, and accounts
// the type/subtype pair against the feature-usage table.
func (d *DebugDevice) NewObject(t anaritype.Type, subtype string) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if anaritype.IsArray(t) {
		d.report(nil, status.SeverityError, status.CodeInvalidArgument,
			"NewObject called with array type %s; use NewArray", t)
		return 0, errors.New("debugdevice: use NewArray for array objects")
	}
	obj, err := d.backend.NewObject(t, subtype)
	if err != nil {
		var unsupported *device.ErrUnsupportedSubtype
		if errors.As(err, &unsupported) {
			d.report(nil, status.SeverityError, status.CodeInvalidArgument,
				"unknown subtype %q for type %s", subtype, t)
		}
		return 0, err
	}
	desc := d.register(t, subtype, obj)
	d.accountFeatureUsage(t, subtype)
	d.serial.NewObject(desc.handle, t, subtype)
	return desc.handle, nil
}

// NewArray validates the descriptor before forwarding, matching §4.5's
// array-descriptor rules: a managed array with a deleter is reported and
// the backend is not called; any other descriptor the backend rejects
// with array.ErrInvalidDescriptor is reported after the backend call.
func (d *DebugDevice) NewArray(desc array.Descriptor) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.AppMemory == nil && desc.Deleter != nil {
		array.ReportInvalidDescriptor(d.statusFn, nil)
		return 0, array.ErrInvalidDescriptor
	}
	obj, err := d.backend.NewArray(desc)
	if err != nil {
		if errors.Is(err, array.ErrInvalidDescriptor) {
			array.ReportInvalidDescriptor(d.statusFn, nil)
		}
		return 0, err
	}
	t := arrayType(desc)
	dd := d.register(t, "", obj)
	d.serial.NewArray(dd.handle, desc, nil)
	return dd.handle, nil
}

func arrayType(desc array.Descriptor) anaritype.Type {
	switch {
	case desc.Dims[2] > 0:
		return anaritype.Array3D
	case desc.Dims[1] > 0:
		return anaritype.Array2D
	default:
		return anaritype.Array1D
	}
}

// MapParameterArray forwards to the backend and registers the returned
// anonymous array under its own handle. For an object-typed element, each
// slot the backend currently holds is additionally translated from its
// internal object reference into the application's debug handle, so what
// the caller reads out of the mapped buffer is a handle it can act on.
func (d *DebugDevice) MapParameterArray(h Handle, name string, elemType anaritype.Type, dims [3]uint64) ([]byte, Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	owner, err := d.lookup(h)
	if err != nil {
		return nil, 0, err
	}
	data, arrObj, err := d.backend.MapParameterArray(owner.wrapped, name, elemType, dims)
	if err != nil {
		return nil, 0, err
	}
	arrDesc := d.register(arrayType(array.Descriptor{Dims: dims}), "", arrObj)
	arrDesc.mapped = true
	arrDesc.elemType = elemType
	if anaritype.IsObject(elemType) {
		d.translateObjectsToHandles(arrObj, data)
	}
	return data, arrDesc.handle, nil
}

// translateObjectsToHandles overwrites each 8-byte object slot of data
// with the application handle for whatever backend object arrObj
// currently holds there (0 for an empty slot).
func (d *DebugDevice) translateObjectsToHandles(arrObj anyvalue.Object, data []byte) {
	arr, ok := arrObj.(*array.Array)
	if !ok {
		return
	}
	for i := 0; i < arr.NumObjectSlots(); i++ {
		var h Handle
		if obj := arr.ObjectAt(i); obj != nil {
			h = d.byWrapped[obj]
		}
		binary.LittleEndian.PutUint64(data[i*8:i*8+8], uint64(h))
	}
}

// translateHandlesToObjects reads each 8-byte object slot the application
// just wrote into arrDesc's mapped buffer, resolves it to the backend
// object it names, and stores that reference on the array — the unmap-side
// counterpart of translateObjectsToHandles. An unknown or released handle
// is reported and rejected like any other handle reference.
func (d *DebugDevice) translateHandlesToObjects(arrDesc *descriptor) error {
	arr, ok := arrDesc.wrapped.(*array.Array)
	if !ok {
		return nil
	}
	data := arr.Data()
	for i := 0; i < arr.NumObjectSlots(); i++ {
		raw := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		if raw == 0 {
			arr.SetObjectAt(i, nil)
			continue
		}
		valDesc, err := d.lookup(Handle(raw))
		if err != nil {
			return err
		}
		arr.SetObjectAt(i, valDesc.wrapped)
		valDesc.referenced = true
	}
	return nil
}

// UnmapParameterArray requires the array handle to currently be mapped
// (§4.5: "unmapping a parameter array that is not currently mapped ->
// error").
func (d *DebugDevice) UnmapParameterArray(h Handle, arrH Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	owner, err := d.lookup(h)
	if err != nil {
		return err
	}
	arrDesc, err := d.lookup(arrH)
	if err != nil {
		return err
	}
	if !arrDesc.mapped {
		d.report(owner.wrapped, status.SeverityError, status.CodeInvalidOperation,
			"array handle %d is not currently mapped", arrH)
		return errors.New("debugdevice: array not currently mapped")
	}
	if anaritype.IsObject(arrDesc.elemType) {
		if err := d.translateHandlesToObjects(arrDesc); err != nil {
			return err
		}
	}
	if err := d.backend.UnmapParameterArray(owner.wrapped, arrDesc.wrapped); err != nil {
		return err
	}
	arrDesc.mapped = false
	return nil
}

func (d *DebugDevice) SetParameter(h Handle, name string, t anaritype.Type, bytes []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return err
	}
	if err := d.backend.SetParameter(desc.wrapped, name, t, bytes); err != nil {
		return err
	}
	desc.pendingCommit = true
	d.serial.SetParameter(desc.handle, name, t, bytes)
	return nil
}

func (d *DebugDevice) SetParameterString(h Handle, name string, s string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return err
	}
	if err := d.backend.SetParameterString(desc.wrapped, name, s); err != nil {
		return err
	}
	desc.pendingCommit = true
	d.serial.SetParameterString(desc.handle, name, s)
	return nil
}

// SetParameterObject additionally validates the referenced handle, rejects
// a declared type that does not match what the handle actually is (§4.5:
// "type mismatch in object parameter -> error"), and marks the referenced
// handle as "referenced" so a later Release on it is not flagged unused.
func (d *DebugDevice) SetParameterObject(h Handle, name string, t anaritype.Type, v Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return err
	}
	valDesc, err := d.lookup(v)
	if err != nil {
		return err
	}
	if valDesc.typ != t {
		d.report(desc.wrapped, status.SeverityError, status.CodeInvalidArgument,
			"parameter %q declared as %s but handle %d is a %s", name, t, v, valDesc.typ)
		return errors.New("debugdevice: object parameter type mismatch")
	}
	if err := d.backend.SetParameterObject(desc.wrapped, name, t, valDesc.wrapped); err != nil {
		return err
	}
	desc.pendingCommit = true
	valDesc.referenced = true
	d.serial.SetParameterObject(desc.handle, name, valDesc.handle)
	return nil
}

func (d *DebugDevice) UnsetParameter(h Handle, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return err
	}
	if err := d.backend.UnsetParameter(desc.wrapped, name); err != nil {
		return err
	}
	desc.pendingCommit = true
	d.serial.UnsetParameter(desc.handle, name)
	return nil
}

// Commit warns when called with nothing staged since the last commit
// (§4.5: "committing an object with no pending parameter changes ->
// warning") but still forwards the call — committing is always valid, just
// possibly redundant.
func (d *DebugDevice) Commit(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return err
	}
	if !desc.pendingCommit && desc.state != lifecycleCreated {
		d.report(desc.wrapped, status.SeverityWarning, status.CodeNoError,
			"commit called on handle %d with no pending parameter changes", h)
	}
	if err := d.backend.Commit(desc.wrapped); err != nil {
		return err
	}
	desc.pendingCommit = false
	desc.everCommitted = true
	desc.state = lifecycleCommitted
	d.serial.Commit(desc.handle)
	return nil
}

func (d *DebugDevice) GetProperty(h Handle, name string, t anaritype.Type, flags object.PropertyFlags) (interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return nil, false
	}
	return d.backend.GetProperty(desc.wrapped, name, t, flags)
}

// Release warns when the very last public reference to an object that was
// never retained, never bound as a dependency, and never committed goes
// away (§4.5: "an object that had zero references taken during its
// lifetime -> warning").
func (d *DebugDevice) Release(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return err
	}
	if err := d.backend.Release(desc.wrapped); err != nil {
		return err
	}
	desc.publicRefs--
	d.serial.Release(desc.handle)
	if desc.publicRefs <= 0 {
		if !desc.referenced && !desc.everCommitted {
			d.report(desc.wrapped, status.SeverityWarning, status.CodeNoError,
				"object %d released without ever being retained, committed, or bound as a parameter", h)
		}
		desc.state = lifecycleReleased
		delete(d.byWrapped, desc.wrapped)
	}
	return nil
}

func (d *DebugDevice) Retain(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.lookup(h)
	if err != nil {
		return err
	}
	if err := d.backend.Retain(desc.wrapped); err != nil {
		return err
	}
	desc.publicRefs++
	desc.referenced = true
	d.serial.Retain(desc.handle)
	return nil
}

// RenderFrame warns when the frame handle itself has uncommitted
// parameters (§4.5: "renderFrame called while the frame object itself has
// uncommitted parameters -> warning") — a stale world/camera reference
// bound but never committed.
func (d *DebugDevice) RenderFrame(ctx context.Context, h Handle) error {
	d.mu.Lock()
	desc, err := d.lookup(h)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if desc.typ != anaritype.Frame {
		d.mu.Unlock()
		d.report(desc.wrapped, status.SeverityError, status.CodeInvalidArgument,
			"handle %d is not a frame", h)
		return errors.New("debugdevice: RenderFrame requires a frame handle")
	}
	if desc.pendingCommit {
		d.report(desc.wrapped, status.SeverityWarning, status.CodeNoError,
			"renderFrame called on handle %d with uncommitted parameters on the frame itself", h)
	}
	wrapped := desc.wrapped
	d.mu.Unlock()

	if err := d.backend.RenderFrame(ctx, wrapped); err != nil {
		return err
	}
	d.serial.RenderFrame(desc.handle)
	return nil
}

func (d *DebugDevice) FrameReady(h Handle, wait bool) bool {
	d.mu.Lock()
	desc, err := d.lookup(h)
	d.mu.Unlock()
	if err != nil {
		return false
	}
	return d.backend.FrameReady(desc.wrapped, wait)
}

func (d *DebugDevice) MapFrame(h Handle, channel string) ([]byte, int, int, anaritype.Type, bool) {
	d.mu.Lock()
	desc, err := d.lookup(h)
	d.mu.Unlock()
	if err != nil {
		return nil, 0, 0, anaritype.Unknown, false
	}
	data, w, ht, pt, ok := d.backend.MapFrame(desc.wrapped, channel)
	if ok {
		d.serial.MapFrame(desc.handle, channel)
	}
	return data, w, ht, pt, ok
}

func (d *DebugDevice) UnmapFrame(h Handle, channel string) {
	d.mu.Lock()
	desc, err := d.lookup(h)
	d.mu.Unlock()
	if err != nil {
		return
	}
	d.backend.UnmapFrame(desc.wrapped, channel)
	d.serial.UnmapFrame(desc.handle, channel)
}

func (d *DebugDevice) Flush() { d.backend.Flush() }

// Shutdown reports one warning per object that survived to device
// destruction (§4.5: "the device is destroyed while objects remain
// un-released -> warning, one per leaked object") and one informational
// record per extension exercised during the session, then finalizes the
// trace if one is installed.
func (d *DebugDevice) Shutdown() (traceSource []byte, traceData []byte, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for h, desc := range d.byHandle {
		if desc.state != lifecycleReleased {
			d.report(desc.wrapped, status.SeverityWarning, status.CodeNoError,
				"device destroyed with handle %d (%s) still alive", h, desc.typ)
		}
	}
	for ext, count := range d.featureUsage {
		d.report(nil, status.SeverityInfo, status.CodeNoError,
			"feature %s used %d time(s)", ext, count)
	}
	return d.serial.Close()
}
