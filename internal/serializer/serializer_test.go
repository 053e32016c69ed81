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

package serializer_test

import (
	"bytes"
	"testing"

	"github.com/anari-sdk/corerun/internal/serializer"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

func TestNoopSerializerCloseReturnsNothing(t *testing.T) {
	var s serializer.NoopSerializer
	src, data, err := s.Close()
	if src != nil || data != nil || err != nil {
		t.Fatalf("NoopSerializer.Close() = (%v, %v, %v), want all nil", src, data, err)
	}
}

func TestCodeSerializerRecordsAndRendersTrace(t *testing.T) {
	c := serializer.NewCodeSerializer()
	c.NewObject(1, anaritype.Surface, "flat")
	c.SetParameter(1, "color", anaritype.Float32Vec4, []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x80, 0x3f})
	c.Commit(1)
	c.Release(1)

	src, data, err := c.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("sidecar payload len = %d, want 16", len(data))
	}
	for _, want := range [][]byte{
		[]byte("surface1 := dev.NewObject"),
		[]byte("dev.SetParameter(surface1"),
		[]byte("dev.Commit(surface1)"),
		[]byte("dev.Release(surface1)"),
	} {
		if !bytes.Contains(src, want) {
			t.Errorf("generated source missing %q\n--- source ---\n%s", want, src)
		}
	}
}
