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

package serializer

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/anari-sdk/corerun/internal/array"
	"github.com/anari-sdk/corerun/internal/status"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// CodeSerializer emits a replayable Go source file (§3.9/§6): one
// statement per intercepted call, each handle given a stable variable name
// derived from its type and numeric id ("surface1" for a surface with
// handle 1). Every SetParameter value and every non-empty NewArray payload
// is appended to a sidecar buffer and referenced by (offset, size); there
// is no inline size threshold. Payloads are stored as given: no stride
// handling is done.
type CodeSerializer struct {
	mu    sync.Mutex
	stmts []string
	data  bytes.Buffer
	names map[Handle]string
}

// NewCodeSerializer returns a CodeSerializer ready to record a trace.
func NewCodeSerializer() *CodeSerializer {
	return &CodeSerializer{names: make(map[Handle]string)}
}

var _ Serializer = (*CodeSerializer)(nil)

func (c *CodeSerializer) varName(h Handle, t anaritype.Type) string {
	if n, ok := c.names[h]; ok {
		return n
	}
	n := fmt.Sprintf("%s%d", typeTag(t), uint64(h))
	c.names[h] = n
	return n
}

func typeTag(t anaritype.Type) string {
	s := strings.TrimPrefix(t.String(), "ANARI_")
	// "ANARI_SURFACE" -> "surface"
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'A' && b <= 'Z':
			out = append(out, b-'A'+'a')
		case b == '_':
			continue
		default:
			out = append(out, b)
		}
	}
	return string(out)
}

// appendPayload writes raw bytes to the sidecar and returns the (offset,
// size) reference a generated NewArray call embeds as a comment.
func (c *CodeSerializer) appendPayload(b []byte) (offset, size int) {
	offset = c.data.Len()
	c.data.Write(b)
	return offset, len(b)
}

func (c *CodeSerializer) emit(format string, args ...interface{}) {
	c.stmts = append(c.stmts, fmt.Sprintf(format, args...))
}

func (c *CodeSerializer) NewObject(h Handle, t anaritype.Type, subtype string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := c.varName(h, t)
	c.emit("%s := dev.NewObject(%s, %q)", name, t, subtype)
}

func (c *CodeSerializer) NewArray(h Handle, desc array.Descriptor, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := c.varName(h, anaritype.Array1D)
	if len(data) == 0 {
		c.emit("%s := dev.NewArray(%+v)", name, desc)
		return
	}
	off, size := c.appendPayload(data)
	c.emit("%s := dev.NewArray(%+v) // data.bin[%d:%d]", name, desc, off, off+size)
}

func (c *CodeSerializer) SetParameter(h Handle, name string, t anaritype.Type, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	off, size := c.appendPayload(bytes)
	c.emit("dev.SetParameter(%s, %q, %s, data[%d:%d])", c.names[h], name, t, off, off+size)
}

func (c *CodeSerializer) SetParameterString(h Handle, name string, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.SetParameterString(%s, %q, %q)", c.names[h], name, s)
}

func (c *CodeSerializer) SetParameterObject(h Handle, name string, ref Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.SetParameterObject(%s, %q, %s)", c.names[h], name, c.names[ref])
}

func (c *CodeSerializer) UnsetParameter(h Handle, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.UnsetParameter(%s, %q)", c.names[h], name)
}

func (c *CodeSerializer) Commit(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.Commit(%s)", c.names[h])
}

func (c *CodeSerializer) Release(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.Release(%s)", c.names[h])
}

func (c *CodeSerializer) Retain(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.Retain(%s)", c.names[h])
}

func (c *CodeSerializer) RenderFrame(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.RenderFrame(ctx, %s)", c.names[h])
}

func (c *CodeSerializer) MapFrame(h Handle, channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.MapFrame(%s, %q)", c.names[h], channel)
}

func (c *CodeSerializer) UnmapFrame(h Handle, channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("dev.UnmapFrame(%s, %q)", c.names[h], channel)
}

func (c *CodeSerializer) Status(rec status.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit("// status[%s/%v]: %s", rec.Severity, rec.Code, rec.Message)
}

const codeTemplate = `// Code generated by CodeSerializer. Replay against any device.Device.
package main

func replay(dev Device, data []byte) {
{{range .}}	{{.}}
{{end}}}
`

// Close renders the recorded statements through the fixed template above
// and returns the generated source alongside the accumulated sidecar
// payload.
func (c *CodeSerializer) Close() ([]byte, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tmpl, err := template.New("trace").Parse(codeTemplate)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c.stmts); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), c.data.Bytes(), nil
}
