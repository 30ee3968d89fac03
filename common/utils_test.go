package common

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
	assert.Equal(t, float32(32), Coalesce(float32(0), 32))
}

func TestIsPowerOf2(t *testing.T) {
	for _, v := range []int{1, 2, 4, 64, 1024} {
		assert.True(t, IsPowerOf2(v), "%d", v)
	}
	for _, v := range []int{0, -4, 3, 6, 100, 1023} {
		assert.False(t, IsPowerOf2(v), "%d", v)
	}
}

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, 1, MipLevelCount(1, 1))
	assert.Equal(t, 9, MipLevelCount(256, 256))
	assert.Equal(t, 9, MipLevelCount(256, 4))
	assert.Equal(t, 0, MipLevelCount(0, 16))
}

func TestBytesToSliceReinterpretsHostOrder(t *testing.T) {
	raw := make([]byte, 8)
	binary.NativeEndian.PutUint32(raw[0:4], math.Float32bits(1.5))
	binary.NativeEndian.PutUint32(raw[4:8], math.Float32bits(-2))
	assert.Equal(t, []float32{1.5, -2}, BytesToSlice[float32](raw))

	binary.NativeEndian.PutUint32(raw[0:4], uint32(0xFFFFFFFF))
	assert.Equal(t, int32(-1), BytesToSlice[int32](raw)[0])

	assert.Nil(t, BytesToSlice[int32](raw[:3]))
	assert.Len(t, BytesToSlice[int32](raw[:7]), 1)
}

func TestSliceToBytesRoundTrip(t *testing.T) {
	in := []int32{1, -1, 1 << 20}
	b := SliceToBytes(in)
	assert.Len(t, b, 12)
	assert.Equal(t, in, BytesToSlice[int32](b))
	assert.Nil(t, SliceToBytes([]int32{}))
}

func TestTextureStagingDataMipLevelSize(t *testing.T) {
	tex := TextureStagingData{Width: 8, Height: 2}
	w, h := tex.MipLevelSize(2)
	assert.Equal(t, uint32(2), w)
	assert.Equal(t, uint32(1), h)
	assert.False(t, tex.Valid())
	tex.Pixels = make([]byte, 8*2*4)
	assert.True(t, tex.Valid())
}
