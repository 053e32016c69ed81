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

package array

import (
	"github.com/anari-sdk/corerun/internal/devstate"
	"github.com/anari-sdk/corerun/internal/object"
	"github.com/anari-sdk/corerun/internal/refcount"
	"github.com/anari-sdk/corerun/pkg/anaritype"
)

// MapParameter allocates an anonymous managed array sized for dims,
// binds it as parameter name on owner, and returns the writable backing
// slice plus the array itself — the "per-type parameter-array mapping"
// operations from §4.2 (anariMapParameterArray1D/2D/3D), collapsed into
// one dimension-agnostic helper since the core runtime does not
// otherwise distinguish 1D/2D/3D parameter arrays at this layer.
//
// The anonymous array's only surviving reference after this call is the
// internal one the parameter slot holds: MapParameter drops its own
// transient creation handle before returning, matching "the anonymous
// array is released (its internal reference from the parameter slot
// keeps it alive until the parameter is overwritten or the owner dies)".
func MapParameter(owner *object.BaseObject, state *devstate.GlobalState, name string, elemType anaritype.Type, dims [3]uint64) ([]byte, *Array) {
	arr, err := New(anaritype.Array1D, state, Descriptor{ElementType: elemType, Dims: dims})
	if err != nil {
		return nil, nil
	}
	owner.SetParamObject(name, arrayTypeFor(dims), arr)
	arr.RefDec(refcount.Public) // drop the transient creation handle
	return arr.Map(), arr
}

// UnmapParameter closes the transaction opened by MapParameter: it marks
// the anonymous array's data modified so its stamp advances, and
// notifies owner's observers on the next flush.
func UnmapParameter(arr *Array, owner *object.BaseObject) {
	arr.Unmap()
	owner.NotifyChangeObservers()
}

func arrayTypeFor(dims [3]uint64) anaritype.Type {
	switch {
	case dims[2] > 0:
		return anaritype.Array3D
	case dims[1] > 0:
		return anaritype.Array2D
	default:
		return anaritype.Array1D
	}
}
