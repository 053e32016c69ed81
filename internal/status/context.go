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

package status

import "context"

// key is an unexported type so this package's context values never
// collide with another package's, mirroring core/log's own private key.
type key struct{}

// Bind attaches fn (and the device/source it reports on behalf of) to
// ctx, in the style of core/log's ctx.Info()/Handler threading: callers
// further down a call chain reach the installed sink with status.From
// instead of re-threading a Func parameter through every signature.
func Bind(ctx context.Context, source interface{}, fn Func) context.Context {
	if fn == nil {
		fn = Discard
	}
	return context.WithValue(ctx, key{}, &binding{source: source, fn: fn})
}

type binding struct {
	source interface{}
	fn     Func
}

// Logger is the handle status.From returns: a severity-bound entry point
// that already knows its source object, the way core/log's ctx.Info()
// already knows its context values.
type Logger struct {
	b   *binding
	sev Severity
}

// From extracts the Logger bound to ctx by the nearest enclosing Bind
// call, or a discarding Logger if none was bound.
func From(ctx context.Context) Logger {
	if b, ok := ctx.Value(key{}).(*binding); ok {
		return Logger{b: b}
	}
	return Logger{b: &binding{fn: Discard}}
}

// At returns a copy of l bound to severity sev.
func (l Logger) At(sev Severity) Logger {
	l.sev = sev
	return l
}

// Error returns l bound to SeverityError, the most common call-site
// shorthand (ctx.Error() in core/log's own idiom).
func (l Logger) Error() Logger { return l.At(SeverityError) }

// Warn returns l bound to SeverityWarning.
func (l Logger) Warn() Logger { return l.At(SeverityWarning) }

// Info returns l bound to SeverityInfo.
func (l Logger) Info() Logger { return l.At(SeverityInfo) }

// Log formats and delivers a record through the bound Func, tagging it
// with CodeUnknownError unless the caller uses Logf to supply a code.
func (l Logger) Log(format string, args ...interface{}) {
	l.Logf(CodeUnknownError, format, args...)
}

// Logf is Log with an explicit status code.
func (l Logger) Logf(code Code, format string, args ...interface{}) {
	Reportf(l.b.fn, l.b.source, l.sev, code, format, args...)
}
