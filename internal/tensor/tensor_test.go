package tensor

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestDTypeSize(t *testing.T) {
	tests := []struct {
		dtype DType
		want  int
	}{
		{DTypeF64, 8},
		{DTypeF32, 4},
		{DTypeF16, 2},
		{DTypeBF16, 2},
		{DTypeI64, 8},
		{DTypeI32, 4},
		{DTypeI16, 2},
		{DTypeI8, 1},
		{DTypeU8, 1},
		{DTypeBool, 1},
		{DTypeInvalid, 0},
	}

	for _, tt := range tests {
		t.Run(tt.dtype.String(), func(t *testing.T) {
			if got := tt.dtype.Size(); got != tt.want {
				t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.want)
			}
		})
	}
}

func TestParseDType(t *testing.T) {
	for d, name := range dtypeNames {
		got, err := ParseDType(name)
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := ParseDType("Q4_K")
	var unsupported ErrUnsupportedDType
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "unsupported tensor dtype: Q4_K", err.Error())
}

func TestFromInt64sRoundTrip(t *testing.T) {
	vals := []int64{0, 1, -7, 32767, 1 << 40}
	tn, err := FromInt64s([]int64{1, 5}, vals)
	require.NoError(t, err)
	assert.Equal(t, int64(5), tn.NumElements())
	assert.Equal(t, int64(40), tn.SizeBytes())

	got, err := tn.Int64s()
	require.NoError(t, err)
	assert.Equal(t, vals, got)

	_, err = tn.Float32s()
	require.Error(t, err)
}

func TestFromFloat32sRoundTrip(t *testing.T) {
	vals := []float32{0, -1.5, 3.25, 1e-7}
	tn, err := FromFloat32s([]int64{2, 2}, vals)
	require.NoError(t, err)

	got, err := tn.Float32s()
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestFloat32sHalfPrecision(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:], float16.Fromfloat32(1.5).Bits())
	binary.LittleEndian.PutUint16(data[2:], float16.Fromfloat32(-2).Bits())
	f16, err := New(DTypeF16, []int64{2}, data)
	require.NoError(t, err)
	got, err := f16.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, got)

	// 1.0 in bfloat16 is 0x3F80
	bf := []byte{0x80, 0x3F}
	bf16, err := New(DTypeBF16, []int64{1}, bf)
	require.NoError(t, err)
	got, err = bf16.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tensor  Tensor
		wantErr bool
	}{
		{"scalar", Tensor{DType: DTypeF32, Data: make([]byte, 4)}, false},
		{"empty dim", Tensor{DType: DTypeF32, Shape: []int64{0, 3}}, false},
		{"short buffer", Tensor{DType: DTypeF32, Shape: []int64{2}, Data: make([]byte, 4)}, true},
		{"negative dim", Tensor{DType: DTypeI8, Shape: []int64{-1}}, true},
		{"invalid dtype", Tensor{DType: DTypeInvalid}, true},
		{"byte size wraps to buffer length", Tensor{DType: DTypeF64, Shape: []int64{1<<61 + 1}, Data: make([]byte, 8)}, true},
		{"element count overflows", Tensor{DType: DTypeU8, Shape: []int64{1 << 32, 1 << 32}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tensor.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTensorEqual(t *testing.T) {
	a, _ := FromFloat32s([]int64{2}, []float32{1, 2})
	b, _ := FromFloat32s([]int64{2}, []float32{1, 2})
	c, _ := FromFloat32s([]int64{1, 2}, []float32{1, 2})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestCollectionOrderAndUniqueness(t *testing.T) {
	c := NewCollection()
	names := []string{"z.weight", "a.weight", "m.bias"}
	for i, n := range names {
		tn, err := FromInt64s([]int64{1}, []int64{int64(i)})
		require.NoError(t, err)
		require.NoError(t, c.Add(n, tn))
	}

	assert.Equal(t, names, c.Keys())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, int64(24), c.TotalBytes())

	err := c.Add("a.weight", &Tensor{DType: DTypeI64, Shape: []int64{1}, Data: make([]byte, 8)})
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 3, c.Len())

	var seen []string
	c.Range(func(name string, _ *Tensor) bool {
		seen = append(seen, name)
		return len(seen) < 2
	})
	assert.Equal(t, names[:2], seen)

	got, ok := c.Get("m.bias")
	require.True(t, ok)
	vals, _ := got.Int64s()
	assert.Equal(t, []int64{2}, vals)
}
