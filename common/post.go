package common

import (
	"cmp"
	"slices"
)

// RGBA is one pixel's four channels split out of a flat RGBA sequence.
type RGBA[T any] struct {
	R, G, B, A T
}

// Cell is one output pixel of a scalar field together with its coordinates.
type Cell[T any] struct {
	X, Y  int
	Value T
}

// Batch splits seq into consecutive chunks of length n, in order. A trailing chunk shorter than n
// is dropped, so callers must not rely on exact divisibility. The chunks alias seq.
//
// Parameters:
//   - n: the chunk length
//   - seq: the flat sequence to split
//
// Returns:
//   - [][]T: len(seq)/n chunks, or nil when n <= 0
func Batch[T any](n int, seq []T) [][]T {
	if n <= 0 {
		return nil
	}
	count := len(seq) / n
	out := make([][]T, count)
	for i := range count {
		out[i] = seq[i*n : (i+1)*n : (i+1)*n]
	}
	return out
}

// ToGreyScale selects the red channel of every pixel in a flat RGBA sequence. This is a channel
// select for shaders that store a scalar result in red, not a luminance conversion.
//
// Parameters:
//   - rgba: the flat RGBA sequence
//
// Returns:
//   - []T: one value per pixel
func ToGreyScale[T any](rgba []T) []T {
	out := make([]T, 0, (len(rgba)+3)/4)
	for i := 0; i < len(rgba); i += 4 {
		out = append(out, rgba[i])
	}
	return out
}

// ToGreyScaleMatrix reshapes the red channel of a flat RGBA sequence into rows of width values.
// Row 0 holds the lowest readback row index.
//
// Parameters:
//   - width: the number of pixels per row
//   - rgba: the flat RGBA sequence
//
// Returns:
//   - [][]T: the row-major scalar matrix
func ToGreyScaleMatrix[T any](width int, rgba []T) [][]T {
	return Batch(width, ToGreyScale(rgba))
}

// ToRGBAScale groups a flat RGBA sequence into per-pixel channel structs. A trailing partial
// pixel is dropped.
//
// Parameters:
//   - rgba: the flat RGBA sequence
//
// Returns:
//   - []RGBA[T]: one struct per pixel
func ToRGBAScale[T any](rgba []T) []RGBA[T] {
	out := make([]RGBA[T], len(rgba)/4)
	for i := range out {
		p := rgba[i*4 : i*4+4]
		out[i] = RGBA[T]{R: p[0], G: p[1], B: p[2], A: p[3]}
	}
	return out
}

// Rank turns a row-major scalar field into (x, y, value) cells sorted ascending by value.
// Equal values keep their row-major order.
//
// Parameters:
//   - width: the number of values per row
//   - values: the row-major scalar field
//
// Returns:
//   - []Cell[T]: every cell, best (lowest) first, or nil when width <= 0
func Rank[T cmp.Ordered](width int, values []T) []Cell[T] {
	if width <= 0 {
		return nil
	}
	cells := make([]Cell[T], len(values))
	for i, v := range values {
		cells[i] = Cell[T]{X: i % width, Y: i / width, Value: v}
	}
	slices.SortStableFunc(cells, func(a, b Cell[T]) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return cells
}
