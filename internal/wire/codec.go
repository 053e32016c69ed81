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

package wire

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// EncodeColorChannel JPEG-compresses a float32 RGBA color channel (clamped
// to [0,1] and quantized to 8 bits per the format JPEG actually carries) —
// the lossy compression §6 calls out for the color channel specifically,
// since a user-facing preview does not need full float precision on the
// wire.
func EncodeColorChannel(width, height int, rgba []float32) ([]byte, error) {
	if len(rgba) != width*height*4 {
		return nil, errors.New("wire: color channel length does not match width*height*4")
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		c := rgba[i*4 : i*4+4]
		img.Set(i%width, i/width, color.RGBA{
			R: quantize(c[0]), G: quantize(c[1]), B: quantize(c[2]), A: quantize(c[3]),
		})
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, errors.WithMessage(err, "wire: encoding color channel")
	}
	return buf.Bytes(), nil
}

// DecodeColorChannel reverses EncodeColorChannel, returning the
// reconstructed (lossy) float32 RGBA channel plus its dimensions.
func DecodeColorChannel(data []byte) (width, height int, rgba []float32, err error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, nil, errors.WithMessage(err, "wire: decoding color channel")
	}
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	rgba = make([]float32, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*width + x) * 4
			rgba[i+0] = float32(r>>8) / 255
			rgba[i+1] = float32(g>>8) / 255
			rgba[i+2] = float32(bl>>8) / 255
			rgba[i+3] = float32(a>>8) / 255
		}
	}
	return width, height, rgba, nil
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}

// EncodeDepthChannel snappy-compresses a raw depth channel byte slice. Depth
// is lossless on the wire (unlike color) since it commonly feeds further
// computation (e.g. depth compositing) rather than direct display.
func EncodeDepthChannel(depth []byte) []byte {
	return snappy.Encode(nil, depth)
}

// DecodeDepthChannel reverses EncodeDepthChannel.
func DecodeDepthChannel(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.WithMessage(err, "wire: decoding depth channel")
	}
	return out, nil
}

// EncodeParameterValue appends the wire encoding of one ordinary (non-list)
// parameter value to w: a length-prefixed byte string for POD/string
// payloads, matching the §6 contract that object-typed parameters already
// carry a translated remote handle rather than raw bytes by the time they
// reach here. isNestedList rejects the one payload shape the wire
// protocol does not support (§9's resolved open question): a list whose
// elements are themselves lists.
func EncodeParameterValue(w *Writer, isNestedList bool, bytes []byte) error {
	if isNestedList {
		return ErrListOfList
	}
	w.Bytes(bytes)
	return w.Error()
}
