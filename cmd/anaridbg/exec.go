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
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/anari-sdk/corerun/internal/debugdevice"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// run replays every step of s against dd in order, resolving "as"/"target"
// names to handles as it goes. out receives one line per render/assert
// step, the way a smoke-test driver reports progress.
func run(ctx context.Context, dd *debugdevice.DebugDevice, s *Scene, out io.Writer) error {
	handles := make(map[string]debugdevice.Handle)

	resolve := func(name string) (debugdevice.Handle, error) {
		h, ok := handles[name]
		if !ok {
			return 0, errors.Errorf("scene: %q was never created (missing an \"as\" step)", name)
		}
		return h, nil
	}

	for i, step := range s.Steps {
		if err := runStep(ctx, dd, step, handles, resolve, out); err != nil {
			return errors.Wrapf(err, "step %d (%s)", i, step.Op)
		}
	}
	return nil
}

func runStep(
	ctx context.Context,
	dd *debugdevice.DebugDevice,
	step Step,
	handles map[string]debugdevice.Handle,
	resolve func(string) (debugdevice.Handle, error),
	out io.Writer,
) error {
	switch step.Op {
	case "new_object":
		t, ok := anaritype.ParseType(step.Type)
		if !ok {
			return errors.Errorf("unknown type %q", step.Type)
		}
		h, err := dd.NewObject(t, step.Subtype)
		if err != nil {
			return err
		}
		if step.As != "" {
			handles[step.As] = h
		}
		return nil

	case "set_parameter":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		t, ok := anaritype.ParseType(step.Type)
		if !ok {
			return errors.Errorf("unknown type %q", step.Type)
		}
		bytes, err := encodeValue(t, step.Value)
		if err != nil {
			return err
		}
		return dd.SetParameter(target, step.Name, t, bytes)

	case "set_parameter_string":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		var s string
		if err := step.Value.Decode(&s); err != nil {
			return errors.Wrap(err, "decoding string value")
		}
		return dd.SetParameterString(target, step.Name, s)

	case "set_parameter_object":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		var ref string
		if err := step.Value.Decode(&ref); err != nil {
			return errors.Wrap(err, "decoding object reference value")
		}
		value, err := resolve(ref)
		if err != nil {
			return err
		}
		t, ok := anaritype.ParseType(step.Type)
		if !ok {
			return errors.Errorf("unknown type %q", step.Type)
		}
		return dd.SetParameterObject(target, step.Name, t, value)

	case "unset_parameter":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		return dd.UnsetParameter(target, step.Name)

	case "commit":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		return dd.Commit(target)

	case "render_frame":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		if err := dd.RenderFrame(ctx, target); err != nil {
			return err
		}
		dd.FrameReady(target, true) // a scripted run always blocks for the result
		fmt.Fprintf(out, "rendered %s\n", step.Target)
		return nil

	case "assert_channel":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		data, _, _, _, ok := dd.MapFrame(target, step.Channel)
		if !ok {
			return errors.Errorf("channel %q is not available on %s", step.Channel, step.Target)
		}
		defer dd.UnmapFrame(target, step.Channel)
		got := decodeFloat32Channel(data)
		if err := assertChannelEquals(got, step.Equals); err != nil {
			return err
		}
		fmt.Fprintf(out, "assert_channel %s/%s OK\n", step.Target, step.Channel)
		return nil

	case "retain":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		return dd.Retain(target)

	case "release":
		target, err := resolve(step.Target)
		if err != nil {
			return err
		}
		return dd.Release(target)

	default:
		return errors.Errorf("unknown op %q", step.Op)
	}
}

// assertChannelEquals checks that want repeats across every pixel of got
// (a mapped frame channel decoded to float64), the way a flat-color
// smoke-test scene expects a uniform raster back.
func assertChannelEquals(got []float64, want []float64) error {
	if len(want) == 0 {
		return nil
	}
	if len(got)%len(want) != 0 {
		return errors.Errorf("channel has %d components, not a multiple of %d", len(got), len(want))
	}
	for px := 0; px < len(got); px += len(want) {
		for i, w := range want {
			if got[px+i] != w {
				return errors.Errorf("pixel %d component %d = %v, want %v", px/len(want), i, got[px+i], w)
			}
		}
	}
	return nil
}
