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

// Package device defines the capability-set contract every concrete
// backend (a real renderer, the debug passthrough, a future remote
// client) implements, and ships cpudevice: a minimal in-process backend
// used to exercise the rest of this module end-to-end.
package device

import (
	"context"

	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/internal/array"
	"github.com/anari-sdk/corerun/internal/object"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// Device is the capability set §9 calls out: object creation, parameter
// staging, commit, property introspection, and frame rendering. Every
// object-valued return is an anyvalue.Object so Device implementations
// never need to import the concrete object/array/frame packages back
// into this one.
type Device interface {
	NewObject(t anaritype.Type, subtype string) (anyvalue.Object, error)
	NewArray(desc array.Descriptor) (anyvalue.Object, error)
	MapParameterArray(o anyvalue.Object, name string, elemType anaritype.Type, dims [3]uint64) ([]byte, anyvalue.Object, error)
	UnmapParameterArray(o anyvalue.Object, arr anyvalue.Object) error
	SetParameter(o anyvalue.Object, name string, t anaritype.Type, bytes []byte) error
	SetParameterString(o anyvalue.Object, name string, s string) error
	SetParameterObject(o anyvalue.Object, name string, t anaritype.Type, v anyvalue.Object) error
	UnsetParameter(o anyvalue.Object, name string) error
	Commit(o anyvalue.Object) error
	GetProperty(o anyvalue.Object, name string, t anaritype.Type, flags object.PropertyFlags) (interface{}, bool)
	Release(o anyvalue.Object) error
	Retain(o anyvalue.Object) error

	RenderFrame(ctx context.Context, f anyvalue.Object) error
	FrameReady(f anyvalue.Object, wait bool) bool
	MapFrame(f anyvalue.Object, channel string) ([]byte, int, int, anaritype.Type, bool)
	UnmapFrame(f anyvalue.Object, channel string)

	// Flush drains any pending commit/finalize work. Concrete devices
	// call this after Commit; it is exposed so a serializer or the debug
	// device can trigger a flush point explicitly too.
	Flush()
}

// ErrUnsupportedSubtype is returned by NewObject for an (type, subtype)
// pair the backend does not implement.
type ErrUnsupportedSubtype struct {
	Type    anaritype.Type
	Subtype string
}

func (e *ErrUnsupportedSubtype) Error() string {
	return "device: unsupported subtype " + e.Subtype + " for " + e.Type.String()
}
