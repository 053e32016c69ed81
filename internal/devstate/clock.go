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

// Package devstate implements the per-device GlobalState: the deferred
// commit/finalize buffer, object counters, and status callback
// indirection described in §4.3.
package devstate

import "sync/atomic"

// TimeStamp is a point on the process-wide monotonic mutation clock. Zero
// means "never stamped".
type TimeStamp uint64

// clock is genuinely process-global: every mutation event anywhere in the
// process advances the same counter, so timestamps from different
// devices are still comparable (they just never collide).
var clock atomic.Uint64

// Now advances the global clock by one and returns the new value. Call
// this, never read the clock without advancing it — every mutation event
// gets its own unique stamp.
func Now() TimeStamp {
	return TimeStamp(clock.Add(1))
}
