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

package main

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// encodeValue renders a scene script's YAML value node to the little-endian
// byte encoding SetParameter expects, per t's scalar/vector shape. Object-
// and string-typed parameters are staged through SetParameterObject /
// SetParameterString instead and never reach this function.
func encodeValue(t anaritype.Type, node yaml.Node) ([]byte, error) {
	switch t {
	case anaritype.Bool:
		var v bool
		if err := node.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decoding bool value")
		}
		b := make([]byte, 4)
		if v {
			binary.LittleEndian.PutUint32(b, 1)
		}
		return b, nil
	case anaritype.Int32:
		var v int32
		if err := node.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decoding int32 value")
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b, nil
	case anaritype.UInt32:
		var v uint32
		if err := node.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decoding uint32 value")
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b, nil
	case anaritype.Int64:
		var v int64
		if err := node.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decoding int64 value")
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return b, nil
	case anaritype.UInt64:
		var v uint64
		if err := node.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decoding uint64 value")
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b, nil
	case anaritype.Float32:
		var v float64
		if err := node.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decoding float32 value")
		}
		return encodeFloat32s([]float64{v}), nil
	case anaritype.Float64:
		var v float64
		if err := node.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decoding float64 value")
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return b, nil
	case anaritype.Float32Vec2:
		return decodeFloatList(node, 2)
	case anaritype.Float32Vec3:
		return decodeFloatList(node, 3)
	case anaritype.Float32Vec4:
		return decodeFloatList(node, 4)
	case anaritype.Float32Mat4:
		return decodeFloatList(node, 16)
	default:
		return nil, errors.Errorf("encodeValue: unsupported parameter type %s", t)
	}
}

func decodeFloatList(node yaml.Node, n int) ([]byte, error) {
	var v []float64
	if err := node.Decode(&v); err != nil {
		return nil, errors.Wrapf(err, "decoding %d-component vector value", n)
	}
	if len(v) != n {
		return nil, errors.Errorf("value has %d components, want %d", len(v), n)
	}
	return encodeFloat32s(v), nil
}

func encodeFloat32s(v []float64) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], math.Float32bits(float32(f)))
	}
	return b
}

// decodeFloat32Channel reinterprets a raw frame channel buffer (as returned
// by MapFrame) as a slice of float32, for assert_channel comparisons.
func decodeFloat32Channel(data []byte) []float64 {
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4])))
	}
	return out
}
