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

package anaritype

import "strings"

// ExtensionID names the ANARI extension a subtyped object belongs to, for
// the debug device's feature-usage accounting (§4.5), which keeps one
// counter per extension, increments it on every object created with a
// matching subtype, and reports the counters on device destruction.
// It returns "" for types the core runtime itself owns outright (Frame,
// World, Instance, Group — no subtype namespace to report against).
func ExtensionID(t Type, subtype string) string {
	if subtype == "" {
		return ""
	}
	prefix, ok := extensionPrefixes[t]
	if !ok {
		return ""
	}
	return prefix + strings.ToUpper(subtype)
}

var extensionPrefixes = map[Type]string{
	Light:        "ANARI_KHR_LIGHT_",
	Geometry:     "ANARI_KHR_GEOMETRY_",
	Material:     "ANARI_KHR_MATERIAL_",
	Sampler:      "ANARI_KHR_SAMPLER_",
	SpatialField: "ANARI_KHR_SPATIAL_FIELD_",
	Volume:       "ANARI_KHR_VOLUME_",
	Camera:       "ANARI_KHR_CAMERA_",
	Renderer:     "ANARI_KHR_RENDERER_",
}

// ParameterExtensionID names the extension a specific parameter belongs to,
// for parameters that gate an optional feature independent of subtype (the
// §4.5 table also keys on parameter name, e.g. a "clipPlanes" parameter on
// an otherwise-core object type). The core runtime ships an empty table;
// concrete deployments extend it by calling RegisterParameterExtension.
func ParameterExtensionID(t Type, paramName string) string {
	return parameterExtensions[paramKey{t, paramName}]
}

type paramKey struct {
	t    Type
	name string
}

var parameterExtensions = map[paramKey]string{}

// RegisterParameterExtension adds an entry to the parameter-keyed
// extension table consulted by ParameterExtensionID.
func RegisterParameterExtension(t Type, paramName, extensionID string) {
	parameterExtensions[paramKey{t, paramName}] = extensionID
}
