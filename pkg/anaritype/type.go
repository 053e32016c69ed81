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

// Package anaritype holds the data-type tags shared by every object in the
// core runtime, plus the small per-type tables (commit priority, object
// counter bucket, extension id) that key off of them.
package anaritype

import "strings"

// Type tags the kind of a value stored in a parameter cell, or the kind of
// node a handle refers to.
type Type int

const (
	Unknown Type = iota

	// POD and string scalars/vectors. Only the handful the core runtime
	// itself needs to reason about are enumerated; concrete backends may
	// carry many more through Any without this package knowing about them.
	Bool
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
	Float32Vec2
	Float32Vec3
	Float32Vec4
	Float32Mat4
	String

	// Object-typed tags. Order encodes nothing; CommitPriority below is the
	// authoritative ordering table.
	Object
	Device
	Frame
	Camera
	Renderer
	World
	Instance
	Group
	Surface
	Volume
	Geometry
	Material
	Sampler
	SpatialField
	Light
	Array1D
	Array2D
	Array3D
)

// IsObject reports whether t identifies a reference-counted node rather
// than a POD/string value.
func IsObject(t Type) bool {
	switch t {
	case Object, Device, Frame, Camera, Renderer, World, Instance, Group,
		Surface, Volume, Geometry, Material, Sampler, SpatialField, Light,
		Array1D, Array2D, Array3D:
		return true
	default:
		return false
	}
}

// IsArray reports whether t is one of the three array dimensionalities.
func IsArray(t Type) bool {
	return t == Array1D || t == Array2D || t == Array3D
}

// String renders t for status messages and serializer output.
func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "UNKNOWN"
}

var names = map[Type]string{
	Unknown:      "ANARI_UNKNOWN",
	Bool:         "ANARI_BOOL",
	Int32:        "ANARI_INT32",
	UInt32:       "ANARI_UINT32",
	Int64:        "ANARI_INT64",
	UInt64:       "ANARI_UINT64",
	Float32:      "ANARI_FLOAT32",
	Float64:      "ANARI_FLOAT64",
	Float32Vec2:  "ANARI_FLOAT32_VEC2",
	Float32Vec3:  "ANARI_FLOAT32_VEC3",
	Float32Vec4:  "ANARI_FLOAT32_VEC4",
	Float32Mat4:  "ANARI_FLOAT32_MAT4",
	String:       "ANARI_STRING",
	Object:       "ANARI_OBJECT",
	Device:       "ANARI_DEVICE",
	Frame:        "ANARI_FRAME",
	Camera:       "ANARI_CAMERA",
	Renderer:     "ANARI_RENDERER",
	World:        "ANARI_WORLD",
	Instance:     "ANARI_INSTANCE",
	Group:        "ANARI_GROUP",
	Surface:      "ANARI_SURFACE",
	Volume:       "ANARI_VOLUME",
	Geometry:     "ANARI_GEOMETRY",
	Material:     "ANARI_MATERIAL",
	Sampler:      "ANARI_SAMPLER",
	SpatialField: "ANARI_SPATIAL_FIELD",
	Light:        "ANARI_LIGHT",
	Array1D:      "ANARI_ARRAY1D",
	Array2D:      "ANARI_ARRAY2D",
	Array3D:      "ANARI_ARRAY3D",
}

var byName = func() map[string]Type {
	m := make(map[string]Type, len(names)*3)
	for t, s := range names {
		bare := strings.TrimPrefix(s, "ANARI_")
		m[s] = t
		m[bare] = t
		m[strings.ReplaceAll(bare, "_", "")] = t
	}
	return m
}()

// ParseType resolves a scene-script/config type name to its Type tag. The
// full ANARI tag ("ANARI_FLOAT32_VEC4"), its bare suffix ("FLOAT32_VEC4"),
// and the suffix with underscores collapsed ("float32vec4") are all
// accepted case-insensitively, so a YAML scene script can write whichever
// reads best.
func ParseType(s string) (Type, bool) {
	t, ok := byName[strings.ToUpper(s)]
	return t, ok
}

// ByteSize returns the encoded size of a fixed-size POD type, the handle
// slot size for an object-typed element (arrays of objects store one
// reference-sized slot per element), or 0 for variable-length types
// (String).
func ByteSize(t Type) int {
	switch t {
	case Bool, Int32, UInt32:
		return 4
	case Int64, UInt64, Float64:
		return 8
	case Float32:
		return 4
	case Float32Vec2:
		return 8
	case Float32Vec3:
		return 12
	case Float32Vec4:
		return 16
	case Float32Mat4:
		return 64
	default:
		if IsObject(t) {
			return 8
		}
		return 0
	}
}

// CommitPriority maps a data-type tag to its position in the commit flush
// order: lower values commit first. Mirrors the original implementation's
// switch over ANARIDataType (frame > world > instance > group >
// surface=volume > material > everything else).
func CommitPriority(t Type) int {
	switch t {
	case Frame:
		return 6
	case World:
		return 5
	case Instance:
		return 4
	case Group:
		return 3
	case Surface, Volume:
		return 2
	case Material:
		return 1
	default:
		return 0
	}
}

// DefaultCommitPriority is CommitPriority(Object) — the bucket almost every
// object falls into. DeferredCommitBuffer skips the sort step entirely when
// nothing in the queue differs from this bucket.
const DefaultCommitPriority = 0
