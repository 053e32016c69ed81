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

// Package config parses the device/debug-device construction parameters
// (§1: "statusCallback", "wrappedDevice", "traceMode", "traceDir") with
// small typed getters over a struct filled in by functional options, the way
// core/app/flags binds typed values off a flag set rather than handing
// callers a raw map to type-assert themselves.
package config

import (
	"github.com/anari-sdk/corerun/internal/device"
	"github.com/anari-sdk/corerun/internal/status"
)

// TraceMode selects the debug device's serializer.
type TraceMode string

const (
	// TraceNone installs serializer.NoopSerializer (the default).
	TraceNone TraceMode = ""
	// TraceCode installs a serializer.CodeSerializer emitting out.go/data.bin.
	TraceCode TraceMode = "code"
)

// Config holds the construction-time parameters of a debug-wrapped
// device. Its fields are unexported; callers build one with Option values
// and read it back through the typed getters below, matching how
// statusCallback/wrappedDevice/traceMode/traceDir are handed to the real
// ANARI device constructor as opaque parameters rather than struct fields.
type Config struct {
	statusFn  status.Func
	wrapped   device.Device
	traceMode TraceMode
	traceDir  string
}

// Option configures a Config.
type Option func(*Config)

// WithStatusFunc installs the "statusCallback" parameter.
func WithStatusFunc(fn status.Func) Option {
	return func(c *Config) { c.statusFn = fn }
}

// WithWrappedDevice installs the "wrappedDevice" parameter: the backend a
// debugdevice.DebugDevice forwards validated calls to.
func WithWrappedDevice(d device.Device) Option {
	return func(c *Config) { c.wrapped = d }
}

// WithTraceMode installs the "traceMode" parameter.
func WithTraceMode(mode TraceMode) Option {
	return func(c *Config) { c.traceMode = mode }
}

// WithTraceDir installs the "traceDir" parameter: where a code trace's
// out.go/data.bin pair is written.
func WithTraceDir(dir string) Option {
	return func(c *Config) { c.traceDir = dir }
}

// New builds a Config from opts, applied in order (later options win on
// conflicting fields, matching ordinary functional-options semantics).
func New(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusFunc returns the configured status callback, or status.Discard if
// none was set.
func (c *Config) StatusFunc() status.Func {
	if c.statusFn == nil {
		return status.Discard
	}
	return c.statusFn
}

// WrappedDevice returns the configured backend, or nil if none was set —
// a Config with no wrapped device cannot build a usable DebugDevice.
func (c *Config) WrappedDevice() device.Device { return c.wrapped }

// Tracing reports whether a trace sink should be installed.
func (c *Config) Tracing() bool { return c.traceMode != TraceNone }

// TraceMode returns the configured trace mode.
func (c *Config) TraceMode() TraceMode { return c.traceMode }

// TraceDir returns the configured trace output directory.
func (c *Config) TraceDir() string { return c.traceDir }
