package result

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUint8IsIdentity(t *testing.T) {
	raw := []byte{255, 0, 0, 255, 1, 2, 3, 4}
	buf, err := Decode(raw, Uint8)
	require.NoError(t, err)
	assert.Equal(t, raw, buf.Uint8())
	assert.Equal(t, 8, buf.Len())
	assert.Nil(t, buf.Float32())
	assert.Nil(t, buf.Int32())
}

func TestDecodeReinterpretsWithoutConversion(t *testing.T) {
	raw := make([]byte, 12)
	binary.NativeEndian.PutUint32(raw[0:], math.Float32bits(3.25))
	binary.NativeEndian.PutUint32(raw[4:], math.Float32bits(-0.5))
	binary.NativeEndian.PutUint32(raw[8:], math.Float32bits(float32(math.Inf(1))))

	f, err := Decode(raw, Float32)
	require.NoError(t, err)
	require.Equal(t, 3, f.Len())
	assert.Equal(t, float32(3.25), f.Float32()[0])
	assert.Equal(t, float32(-0.5), f.Float32()[1])
	assert.True(t, math.IsInf(float64(f.Float32()[2]), 1))

	i, err := Decode(raw, Int32)
	require.NoError(t, err)
	assert.Equal(t, int32(math.Float32bits(3.25)), i.Int32()[0])
	assert.Same(t, &raw[0], &i.Bytes()[0])
}

func TestDecodeLengths(t *testing.T) {
	for _, n := range []int{0, 4, 16, 4 * 7 * 3} {
		raw := make([]byte, n)
		f, err := Decode(raw, Float32)
		require.NoError(t, err)
		i, err := Decode(raw, Int32)
		require.NoError(t, err)
		assert.Equal(t, n/4, f.Len())
		assert.Equal(t, n/4, len(i.Int32()))
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(make([]byte, 6), Int32)
	assert.Error(t, err)
	_, err = Decode(make([]byte, 4), NumericType(9))
	assert.Error(t, err)
}

func TestParseNumericType(t *testing.T) {
	for _, nt := range []NumericType{Uint8, Int32, Float32} {
		got, err := ParseNumericType(nt.String())
		require.NoError(t, err)
		assert.Equal(t, nt, got)
	}
	_, err := ParseNumericType("float16")
	assert.Error(t, err)
}
