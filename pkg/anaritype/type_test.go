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

package anaritype_test

import (
	"testing"

	"github.com/anari-sdk/corerun/pkg/anaritype"
)

func TestParseTypeAcceptsFullBareAndCollapsedForms(t *testing.T) {
	cases := []string{
		"ANARI_FLOAT32_VEC4", "FLOAT32_VEC4", "float32vec4", "Float32Vec4",
	}
	for _, s := range cases {
		got, ok := anaritype.ParseType(s)
		if !ok || got != anaritype.Float32Vec4 {
			t.Errorf("ParseType(%q) = (%v, %v), want (Float32Vec4, true)", s, got, ok)
		}
	}
}

func TestParseTypeRejectsUnknownName(t *testing.T) {
	if _, ok := anaritype.ParseType("NOT_A_TYPE"); ok {
		t.Fatal("ParseType should reject an unrecognized name")
	}
}

func TestParseTypeIsStringInverse(t *testing.T) {
	for t2 := anaritype.Bool; t2 <= anaritype.Array3D; t2++ {
		got, ok := anaritype.ParseType(t2.String())
		if !ok || got != t2 {
			t.Errorf("ParseType(%q) = (%v, %v), want (%v, true)", t2.String(), got, ok, t2)
		}
	}
}

func TestByteSizeKnownAndUnknownTypes(t *testing.T) {
	if anaritype.ByteSize(anaritype.Float32Vec4) != 16 {
		t.Fatalf("ByteSize(Float32Vec4) = %d, want 16", anaritype.ByteSize(anaritype.Float32Vec4))
	}
	if anaritype.ByteSize(anaritype.String) != 0 {
		t.Fatalf("ByteSize(String) = %d, want 0", anaritype.ByteSize(anaritype.String))
	}
	if anaritype.ByteSize(anaritype.Object) != 8 {
		t.Fatalf("ByteSize(Object) = %d, want 8 (one handle-sized slot)", anaritype.ByteSize(anaritype.Object))
	}
	if anaritype.ByteSize(anaritype.Surface) != 8 {
		t.Fatalf("ByteSize(Surface) = %d, want 8 (object-family types all use a handle-sized slot)", anaritype.ByteSize(anaritype.Surface))
	}
}

func TestCommitPriorityOrdersFrameLast(t *testing.T) {
	if anaritype.CommitPriority(anaritype.Frame) <= anaritype.CommitPriority(anaritype.World) {
		t.Fatal("Frame must commit after World")
	}
	if anaritype.CommitPriority(anaritype.World) <= anaritype.CommitPriority(anaritype.Surface) {
		t.Fatal("World must commit after Surface")
	}
}
