package codec

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_FloatRoundTrip(t *testing.T) {
	src := []float32{0, -0, 1.5, -2, math.MaxFloat32, math.SmallestNonzeroFloat32, 696969.0}
	buf := Bytes(src)
	require.Len(t, buf, len(src)*4)

	got := Values[float32](buf)
	require.Len(t, got, len(src))
	for i := range src {
		assert.Equal(t, math.Float32bits(src[i]), math.Float32bits(got[i]), "element %d", i)
	}
}

func TestCodec_IntRoundTrip(t *testing.T) {
	src := []int32{0, 1, -1, math.MaxInt32, math.MinInt32, 42}
	got := Values[int32](Bytes(src))
	assert.Equal(t, src, got)
}

func TestCodec_NaNBitsPreserved(t *testing.T) {
	nan := math.Float32frombits(0x7fc00123)
	got := Values[float32](Bytes([]float32{nan}))
	assert.Equal(t, uint32(0x7fc00123), math.Float32bits(got[0]))
}

func TestCodec_NativeLayout(t *testing.T) {
	buf := Bytes([]int32{10, -7})
	assert.Equal(t, uint32(10), binary.NativeEndian.Uint32(buf[0:4]))
	assert.Equal(t, int32(-7), int32(binary.NativeEndian.Uint32(buf[4:8])))

	fbuf := Bytes([]float32{2.5})
	assert.Equal(t, math.Float32bits(2.5), binary.NativeEndian.Uint32(fbuf))
}

func TestCodec_Empty(t *testing.T) {
	assert.Empty(t, Bytes([]int32{}))
	assert.Empty(t, Values[float32](nil))
	assert.NotPanics(t, func() { Encode([]byte{}, []float32{}) })
}

func TestCodec_EncodeIntoExisting(t *testing.T) {
	dst := make([]byte, 8)
	Encode(dst, []float32{1, 2})
	out := make([]float32, 2)
	Decode(out, dst)
	assert.Equal(t, []float32{1, 2}, out)
}

func TestCodec_LengthMismatchPanics(t *testing.T) {
	assert.PanicsWithValue(t, "codec: encode 2 elements into 12 bytes", func() {
		Encode(make([]byte, 12), []int32{1, 2})
	})
	assert.PanicsWithValue(t, "codec: decode 4 bytes into 2 elements", func() {
		Decode(make([]float32, 2), make([]byte, 4))
	})
	assert.Panics(t, func() {
		Values[int32](make([]byte, 7))
	})
}
