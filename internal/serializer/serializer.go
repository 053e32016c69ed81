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

// Package serializer implements the trace plug-in from §4.5/§6: every
// call the debug device intercepts is optionally mirrored here, keyed by
// debug handle (not the wrapped backend's handle, so a trace replays
// identically against any backend that implements device.Device).
package serializer

import (
	"github.com/anari-sdk/corerun/internal/array"
	"github.com/anari-sdk/corerun/internal/status"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// Handle is the debug device's opaque per-object id. Defined here (rather
// than in debugdevice) so this package never needs to import its only
// caller back.
type Handle uint64

// Serializer mirrors every DebugDevice entry point. NoopSerializer
// satisfies it doing nothing; CodeSerializer emits a replayable Go
// source file plus a binary payload sidecar.
type Serializer interface {
	NewObject(h Handle, t anaritype.Type, subtype string)
	NewArray(h Handle, desc array.Descriptor, data []byte)
	SetParameter(h Handle, name string, t anaritype.Type, bytes []byte)
	SetParameterString(h Handle, name string, s string)
	SetParameterObject(h Handle, name string, ref Handle)
	UnsetParameter(h Handle, name string)
	Commit(h Handle)
	Release(h Handle)
	Retain(h Handle)
	RenderFrame(h Handle)
	MapFrame(h Handle, channel string)
	UnmapFrame(h Handle, channel string)
	Status(rec status.Record)

	// Close finalizes the trace, returning the generated source and its
	// sidecar binary payload (both nil for NoopSerializer).
	Close() (source []byte, data []byte, err error)
}

// NoopSerializer is installed when tracing is off (the default
// "statusCallback"/"wrappedDevice"-only configuration from §4.5).
type NoopSerializer struct{}

var _ Serializer = NoopSerializer{}

func (NoopSerializer) NewObject(Handle, anaritype.Type, string)            {}
func (NoopSerializer) NewArray(Handle, array.Descriptor, []byte)           {}
func (NoopSerializer) SetParameter(Handle, string, anaritype.Type, []byte) {}
func (NoopSerializer) SetParameterString(Handle, string, string)           {}
func (NoopSerializer) SetParameterObject(Handle, string, Handle)           {}
func (NoopSerializer) UnsetParameter(Handle, string)                      {}
func (NoopSerializer) Commit(Handle)                                      {}
func (NoopSerializer) Release(Handle)                                     {}
func (NoopSerializer) Retain(Handle)                                      {}
func (NoopSerializer) RenderFrame(Handle)                                 {}
func (NoopSerializer) MapFrame(Handle, string)                            {}
func (NoopSerializer) UnmapFrame(Handle, string)                          {}
func (NoopSerializer) Status(status.Record)                               {}
func (NoopSerializer) Close() ([]byte, []byte, error)                     { return nil, nil, nil }
