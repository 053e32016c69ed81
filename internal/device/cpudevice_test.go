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

package device_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/anari-sdk/corerun/internal/device"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

func encodeUint32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func encodeVec4(v [4]float32) []byte {
	b := make([]byte, 16)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], math.Float32bits(f))
	}
	return b
}

// TestEndToEndRenderPipeline builds a surface with a committed color,
// attaches it to a world, renders a frame against that world, and reads
// the rasterized color back out — exercising object creation, parameter
// staging/commit, frame render/map, and reference release in one pass.
func TestEndToEndRenderPipeline(t *testing.T) {
	d := device.NewCPUDevice()

	surface, err := d.NewObject(anaritype.Surface, "flat")
	if err != nil {
		t.Fatalf("NewObject(surface): %v", err)
	}
	want := [4]float32{1, 0.5, 0.25, 1}
	if err := d.SetParameter(surface, "color", anaritype.Float32Vec4, encodeVec4(want)); err != nil {
		t.Fatalf("SetParameter(color): %v", err)
	}
	if err := d.Commit(surface); err != nil {
		t.Fatalf("Commit(surface): %v", err)
	}

	world, err := d.NewObject(anaritype.World, "")
	if err != nil {
		t.Fatalf("NewObject(world): %v", err)
	}
	if err := d.SetParameterObject(world, "surface", anaritype.Surface, surface); err != nil {
		t.Fatalf("SetParameterObject(surface): %v", err)
	}
	if err := d.Commit(world); err != nil {
		t.Fatalf("Commit(world): %v", err)
	}

	f, err := d.NewObject(anaritype.Frame, "")
	if err != nil {
		t.Fatalf("NewObject(frame): %v", err)
	}
	if err := d.SetParameter(f, "width", anaritype.UInt32, encodeUint32(2)); err != nil {
		t.Fatalf("SetParameter(width): %v", err)
	}
	if err := d.SetParameter(f, "height", anaritype.UInt32, encodeUint32(2)); err != nil {
		t.Fatalf("SetParameter(height): %v", err)
	}
	if err := d.SetParameterObject(f, "world", anaritype.World, world); err != nil {
		t.Fatalf("SetParameterObject(world): %v", err)
	}
	if err := d.Commit(f); err != nil {
		t.Fatalf("Commit(frame): %v", err)
	}

	if err := d.RenderFrame(context.Background(), f); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if !d.FrameReady(f, true) {
		t.Fatal("FrameReady(WAIT) returned false after RenderFrame")
	}

	data, w, h, pt, ok := d.MapFrame(f, "channel.color")
	if !ok {
		t.Fatal("MapFrame failed")
	}
	if w != 2 || h != 2 || pt != anaritype.Float32Vec4 {
		t.Fatalf("MapFrame returned w=%d h=%d type=%v", w, h, pt)
	}
	for px := 0; px < w*h; px++ {
		off := px * 16
		for i, wantC := range want {
			got := math.Float32frombits(binary.LittleEndian.Uint32(data[off+i*4 : off+i*4+4]))
			if got != wantC {
				t.Fatalf("pixel %d channel %d = %v, want %v", px, i, got, wantC)
			}
		}
	}
	d.UnmapFrame(f, "channel.color")

	if err := d.Release(surface); err != nil {
		t.Fatalf("Release(surface): %v", err)
	}
}

func TestNewArrayAndMapParameterArray(t *testing.T) {
	d := device.NewCPUDevice()

	geom, err := d.NewObject(anaritype.Geometry, "triangle")
	if err != nil {
		t.Fatalf("NewObject(geometry): %v", err)
	}

	data, arr, err := d.MapParameterArray(geom, "vertex.position", anaritype.Float32Vec3, [3]uint64{3, 0, 0})
	if err != nil {
		t.Fatalf("MapParameterArray: %v", err)
	}
	if len(data) != 3*12 {
		t.Fatalf("len(data) = %d, want 36", len(data))
	}
	if err := d.UnmapParameterArray(geom, arr); err != nil {
		t.Fatalf("UnmapParameterArray: %v", err)
	}
}

func TestUnsupportedArrayTypeViaNewObject(t *testing.T) {
	d := device.NewCPUDevice()
	if _, err := d.NewObject(anaritype.Array1D, ""); err == nil {
		t.Fatal("NewObject(Array1D) should be rejected in favor of NewArray")
	}
}

// TestNewObjectRejectsUnknownSubtype exercises the subtype allow-list:
// a type this backend knows (Surface) but a subtype string it does not
// implement must fail with *device.ErrUnsupportedSubtype, not silently
// succeed.
func TestNewObjectRejectsUnknownSubtype(t *testing.T) {
	d := device.NewCPUDevice()
	_, err := d.NewObject(anaritype.Surface, "nonexistent")
	if err == nil {
		t.Fatal("NewObject with an unknown subtype should fail")
	}
	var unsupported *device.ErrUnsupportedSubtype
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v (%T), want *device.ErrUnsupportedSubtype", err, err)
	}
	if unsupported.Type != anaritype.Surface || unsupported.Subtype != "nonexistent" {
		t.Fatalf("unsupported = %+v, want {Surface nonexistent}", unsupported)
	}
}

// TestNewObjectAcceptsEmptySubtypeForUnrestrictedTypes confirms a type
// with no subtype taxonomy of its own (World) still accepts the empty
// subtype applications normally pass for it.
func TestNewObjectAcceptsEmptySubtypeForUnrestrictedTypes(t *testing.T) {
	d := device.NewCPUDevice()
	if _, err := d.NewObject(anaritype.World, ""); err != nil {
		t.Fatalf("NewObject(World, \"\"): %v", err)
	}
}
