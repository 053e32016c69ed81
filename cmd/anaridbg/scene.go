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
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Step is one line of a scene script: a create/set/commit/render/assert
// operation against the debug device. Which fields apply depends on Op;
// unused fields are simply left zero in the YAML source.
type Step struct {
	Op      string    `yaml:"op"`
	Type    string    `yaml:"type"`
	Subtype string    `yaml:"subtype"`
	As      string    `yaml:"as"`
	Target  string    `yaml:"target"`
	Name    string    `yaml:"name"`
	Value   yaml.Node `yaml:"value"`
	Channel string    `yaml:"channel"`
	Equals  []float64 `yaml:"equals"`
}

// Scene is a scene script in full: an ordered list of steps replayed
// against a debugdevice.DebugDevice by run().
type Scene struct {
	Steps []Step `yaml:"steps"`
}

// LoadScene parses a scene script from path.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scene script %q", path)
	}
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parsing scene script %q", path)
	}
	return &s, nil
}
