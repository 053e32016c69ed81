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

// Package wire implements the remote-device wire contract summarized in
// §6: a length-prefixed opcode stream plus the typed-value encoding every
// message payload is built from. No transport is implemented here — this
// package is the codec only, round-trippable over any io.Reader/io.Writer
// pair (an io.Pipe in tests, a net.Conn in a real remote device).
package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Opcode enumerates the wire message kinds, matching §6's list exactly.
type Opcode uint8

const (
	OpNewDevice Opcode = iota
	OpNewObject
	OpNewArray
	OpDeviceHandle
	OpSetParam
	OpUnsetParam
	OpUnsetAllParams
	OpCommitParams
	OpRelease
	OpRetain
	OpMapArray
	OpArrayMapped
	OpUnmapArray
	OpArrayUnmapped
	OpRenderFrame
	OpFrameReady
	OpFrameIsReady
	OpGetProperty
	OpProperty
	OpGetObjectSubtypes
	OpObjectSubtypes
	OpGetObjectInfo
	OpObjectInfo
	OpGetParameterInfo
	OpParameterInfo
	OpChannelColor
	OpChannelDepth
)

// Writer encodes primitive values to an underlying io.Writer with a sticky
// error: once a write fails, every subsequent method is a no-op and Error
// reports the first failure (mirrors core/data/binary.Writer's contract).
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Error returns the first error encountered, or nil.
func (w *Writer) Error() error { return w.err }

// SetError latches err if no error has been recorded yet.
func (w *Writer) SetError(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *Writer) Uint8(v uint8)   { w.write([]byte{v}) }
func (w *Writer) Uint32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.write(b[:]) }
func (w *Writer) Uint64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); w.write(b[:]) }

// Bytes writes a length-prefixed byte payload.
func (w *Writer) Bytes(v []byte) {
	w.Uint32(uint32(len(v)))
	w.write(v)
}

// String writes a length-prefixed UTF-8 string.
func (w *Writer) String(s string) { w.Bytes([]byte(s)) }

// Reader decodes primitive values from an underlying io.Reader with the
// Writer's mirror-image sticky-error contract.
type Reader struct {
	r   io.Reader
	err error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// Error returns the first error encountered, or nil.
func (r *Reader) Error() error { return r.err }

// SetError latches err if no error has been recorded yet.
func (r *Reader) SetError(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) read(b []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, b)
}

func (r *Reader) Uint8() uint8 {
	var b [1]byte
	r.read(b[:])
	return b[0]
}

func (r *Reader) Uint32() uint32 {
	var b [4]byte
	r.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (r *Reader) Uint64() uint64 {
	var b [8]byte
	r.read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Bytes reads a length-prefixed byte payload.
func (r *Reader) Bytes() []byte {
	n := r.Uint32()
	if r.err != nil || n == 0 {
		return nil
	}
	b := make([]byte, n)
	r.read(b)
	if r.err != nil {
		return nil
	}
	return b
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() string { return string(r.Bytes()) }

// Message is one wire frame: an opcode, the object handle the call targets
// (0 when the opcode carries none, e.g. NewDevice), and the opcode-specific
// payload already encoded by the caller.
type Message struct {
	Op      Opcode
	Handle  uint64
	Payload []byte
}

// WriteMessage frames m as [opcode:1][handle:8][len(payload):4][payload] and
// writes it to w.
func WriteMessage(w io.Writer, m Message) error {
	bw := NewWriter(w)
	bw.Uint8(uint8(m.Op))
	bw.Uint64(m.Handle)
	bw.Bytes(m.Payload)
	return bw.Error()
}

// ReadMessage reads one frame written by WriteMessage.
func ReadMessage(r io.Reader) (Message, error) {
	br := NewReader(r)
	op := Opcode(br.Uint8())
	handle := br.Uint64()
	payload := br.Bytes()
	if err := br.Error(); err != nil {
		return Message{}, err
	}
	return Message{Op: op, Handle: handle, Payload: payload}, nil
}

// ErrListOfList is returned by EncodeParameterValue for a
// list-of-list-typed payload: the §9 "safe choice" resolution of the open
// question on whether nested lists are a supported wire value. They are
// not — encoding fails fast rather than attempting a recursive, unbounded
// representation.
var ErrListOfList = errors.New("wire: list-of-list parameter payloads are not supported")
