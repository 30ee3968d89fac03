package common

import (
	"math/bits"
	"unsafe"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// IsPowerOf2 reports whether v is an exact power of two. Zero and negative values are not.
//
// Parameters:
//   - v: the value to test
//
// Returns:
//   - bool: true if v is 1, 2, 4, 8, ...
func IsPowerOf2(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// MipLevelCount returns the number of levels in a full mip chain for a texture of the given size,
// down to and including the 1x1 level.
//
// Parameters:
//   - width: the base level width in pixels
//   - height: the base level height in pixels
//
// Returns:
//   - int: the level count, or 0 for a non-positive size
func MipLevelCount(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return bits.Len(uint(max(width, height)))
}

// SliceToBytes views a slice of fixed-size values as its underlying bytes without copying.
// The returned slice aliases the input and is only valid while the input is alive.
//
// Parameters:
//   - s: the slice to view
//
// Returns:
//   - []byte: the raw bytes backing s, or nil for an empty slice
func SliceToBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// BytesToSlice reinterprets raw bytes as a slice of T in host byte order without copying.
// Trailing bytes that do not fill a whole element are ignored.
//
// Parameters:
//   - b: the raw bytes
//
// Returns:
//   - []T: a slice aliasing b, or nil when b holds less than one element
func BytesToSlice[T any](b []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || len(b) < size {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/size)
}
