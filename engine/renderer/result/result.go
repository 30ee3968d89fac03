// Package result turns the raw RGBA bytes read back from a render target into typed numeric buffers.
package result

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/pkg/errors"
)

// NumericType is the element type a program's colour output is reinterpreted as.
type NumericType int

const (
	// Uint8 keeps the readback bytes as they are: four elements per pixel.
	Uint8 NumericType = iota

	// Int32 reinterprets every four bytes as one signed 32-bit integer in host byte order.
	Int32

	// Float32 reinterprets every four bytes as one 32-bit float in host byte order.
	Float32
)

func (t NumericType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("NumericType(%d)", int(t))
	}
}

// ElementSize returns the number of readback bytes that make up one element.
//
// Returns:
//   - int: 1 for Uint8, 4 for Int32 and Float32, 0 for unknown types
func (t NumericType) ElementSize() int {
	switch t {
	case Uint8:
		return 1
	case Int32, Float32:
		return 4
	default:
		return 0
	}
}

// ParseNumericType maps "uint8", "int32" or "float32" to its NumericType.
//
// Parameters:
//   - s: the type name
//
// Returns:
//   - NumericType: the parsed type
//   - error: an error for any other name
func ParseNumericType(s string) (NumericType, error) {
	switch s {
	case "uint8":
		return Uint8, nil
	case "int32":
		return Int32, nil
	case "float32":
		return Float32, nil
	}
	return 0, errors.Errorf("unknown numeric type %q", s)
}

// TypedBuffer is the decoded output of one run. Exactly one of the typed views is populated,
// matching Type(); the others return nil. All views alias the same readback bytes.
type TypedBuffer struct {
	t   NumericType
	raw []byte
	i32 []int32
	f32 []float32
}

// Decode reinterprets raw readback bytes as the given numeric type. No values are scaled,
// converted or byte-swapped: for the 4-byte types every consecutive group of four bytes becomes
// one element in host byte order.
//
// Parameters:
//   - raw: the readback bytes, width*height*4 long
//   - t: the numeric type to reinterpret as
//
// Returns:
//   - TypedBuffer: the typed view over raw
//   - error: an error if t is unknown or len(raw) is not a multiple of the element size
func Decode(raw []byte, t NumericType) (TypedBuffer, error) {
	size := t.ElementSize()
	if size == 0 {
		return TypedBuffer{}, errors.Errorf("cannot decode as %s", t)
	}
	if len(raw)%size != 0 {
		return TypedBuffer{}, errors.Errorf("cannot decode %d bytes as %s: length is not a multiple of %d", len(raw), t, size)
	}

	b := TypedBuffer{t: t, raw: raw}
	switch t {
	case Int32:
		b.i32 = common.BytesToSlice[int32](raw)
	case Float32:
		b.f32 = common.BytesToSlice[float32](raw)
	}
	return b, nil
}

// Type returns the numeric type the buffer was decoded as.
func (b TypedBuffer) Type() NumericType { return b.t }

// Len returns the element count: len(bytes) for Uint8, len(bytes)/4 otherwise.
func (b TypedBuffer) Len() int {
	if size := b.t.ElementSize(); size > 0 {
		return len(b.raw) / size
	}
	return 0
}

// Bytes returns the raw readback bytes regardless of type.
func (b TypedBuffer) Bytes() []byte { return b.raw }

// Uint8 returns the byte view, or nil if the buffer is not Uint8.
func (b TypedBuffer) Uint8() []uint8 {
	if b.t != Uint8 {
		return nil
	}
	return b.raw
}

// Int32 returns the int32 view, or nil if the buffer is not Int32.
func (b TypedBuffer) Int32() []int32 { return b.i32 }

// Float32 returns the float32 view, or nil if the buffer is not Float32.
func (b TypedBuffer) Float32() []float32 { return b.f32 }
