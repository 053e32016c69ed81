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

// Package object implements ParameterizedObject and BaseObject (§4.2): the
// keyed parameter bag, typed get/set, the change-observer graph, and the
// four per-object timestamps.
package object

import (
	"github.com/anari-sdk/corerun/internal/anyvalue"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

type param struct {
	name  string
	value anyvalue.Any
}

// ParameterizedObject is an ordered name -> Any mapping. It preserves
// insertion order (a slice, not a map) so that commit() review order and
// serializer replay are deterministic, mirroring the original's
// std::vector<Param> bag rather than a hash map.
type ParameterizedObject struct {
	params []param
}

func (p *ParameterizedObject) find(name string) int {
	for i := range p.params {
		if p.params[i].name == name {
			return i
		}
	}
	return -1
}

// HasParam reports whether name is currently set.
func (p *ParameterizedObject) HasParam(name string) bool {
	return p.find(name) >= 0
}

// SetParamAny stores v under name, returning true if the stored value
// differs from what was there (including "was absent"). Object-typed
// values are ref-counted by anyvalue.Any itself: Assign gives the slot its
// own reference in the order §4.2 requires (new pointee ref'd before old
// one released), and v is then Reset so the reference its constructor took
// is dropped; a v equal to the stored value is Reset the same way.
func (p *ParameterizedObject) SetParamAny(name string, v anyvalue.Any) bool {
	if i := p.find(name); i >= 0 {
		if p.params[i].value.Equal(v) {
			v.Reset()
			return false
		}
		p.params[i].value.Assign(v)
		v.Reset()
		return true
	}
	p.params = append(p.params, param{name: name, value: v})
	return true
}

// SetParam stores a POD value by type tag and encoded bytes.
func (p *ParameterizedObject) SetParam(name string, t anaritype.Type, bytes []byte) bool {
	return p.SetParamAny(name, anyvalue.New(t, bytes))
}

// SetParamString stores a string value.
func (p *ParameterizedObject) SetParamString(name string, s string) bool {
	return p.SetParamAny(name, anyvalue.NewString(s))
}

// SetParamObject stores an object-typed value.
func (p *ParameterizedObject) SetParamObject(name string, t anaritype.Type, obj anyvalue.Object) bool {
	return p.SetParamAny(name, anyvalue.NewObject(t, obj))
}

// RemoveParam removes name, returning true if a value was actually
// present.
func (p *ParameterizedObject) RemoveParam(name string) bool {
	i := p.find(name)
	if i < 0 {
		return false
	}
	p.params[i].value.Reset()
	p.params = append(p.params[:i], p.params[i+1:]...)
	return true
}

// RemoveAllParams clears the bag, returning true if it was non-empty.
func (p *ParameterizedObject) RemoveAllParams() bool {
	if len(p.params) == 0 {
		return false
	}
	for i := range p.params {
		p.params[i].value.Reset()
	}
	p.params = nil
	return true
}

// GetParamDirect returns the raw Any stored under name, or the zero
// (unset) Any if absent.
func (p *ParameterizedObject) GetParamDirect(name string) anyvalue.Any {
	if i := p.find(name); i >= 0 {
		return p.params[i].value
	}
	return anyvalue.Any{}
}

// GetParamString returns the string stored under name, or def if absent
// or not string-typed.
func (p *ParameterizedObject) GetParamString(name string, def string) string {
	i := p.find(name)
	if i < 0 || !p.params[i].value.Is(anaritype.String) {
		return def
	}
	return p.params[i].value.GetString()
}

// GetParamObject returns the object stored under name, or nil if absent
// or not object-typed.
func (p *ParameterizedObject) GetParamObject(name string) anyvalue.Object {
	i := p.find(name)
	if i < 0 {
		return nil
	}
	return p.params[i].value.GetObject()
}

// GetParamFloat32 returns the float32 stored under name, or def.
func (p *ParameterizedObject) GetParamFloat32(name string, def float32) float32 {
	i := p.find(name)
	if i < 0 || !p.params[i].value.Is(anaritype.Float32) {
		return def
	}
	return p.params[i].value.Float32()
}

// GetParamBool returns the bool stored under name, or def.
func (p *ParameterizedObject) GetParamBool(name string, def bool) bool {
	i := p.find(name)
	if i < 0 || !p.params[i].value.Is(anaritype.Bool) {
		return def
	}
	return p.params[i].value.Bool()
}

// ForEachParam visits every (name, value) pair in insertion order. Used by
// the debug device's parameter-history recorder and the code serializer.
func (p *ParameterizedObject) ForEachParam(f func(name string, v anyvalue.Any)) {
	for _, e := range p.params {
		f(e.name, e.value)
	}
}
