package safetensors

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgermishuys/netchat/internal/tensor"
)

func sampleCollection(t *testing.T) *tensor.Collection {
	t.Helper()
	c := tensor.NewCollection()

	w, err := tensor.FromFloat32s([]int64{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	ids, err := tensor.FromInt64s([]int64{1, 4}, []int64{5, 0, 32767, 12})
	require.NoError(t, err)
	scalar, err := tensor.FromFloat32s(nil, []float32{0.5})
	require.NoError(t, err)
	empty, err := tensor.New(tensor.DTypeF16, []int64{0, 8}, nil)
	require.NoError(t, err)
	half, err := tensor.New(tensor.DTypeBF16, []int64{3}, []byte{0x80, 0x3f, 0, 0x40, 0, 0})
	require.NoError(t, err)

	// deliberately unsorted names
	require.NoError(t, c.Add("zeta.weight", w))
	require.NoError(t, c.Add("alpha.ids", ids))
	require.NoError(t, c.Add("m.scalar", scalar))
	require.NoError(t, c.Add("b.empty", empty))
	require.NoError(t, c.Add("a.empty2", empty))
	require.NoError(t, c.Add("c.half", half))
	return c
}

func TestRoundTripPreservesOrderAndValues(t *testing.T) {
	src := sampleCollection(t)
	path := filepath.Join(t.TempDir(), "model.safetensors")
	meta := map[string]string{"format": "pt", "source": "unit"}

	require.NoError(t, WriteFile(path, src, meta))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, meta, got.Metadata)
	assert.Equal(t, meta, got.Tensors.Metadata)
	assert.Equal(t, src.Keys(), got.Tensors.Keys())

	src.Range(func(name string, want *tensor.Tensor) bool {
		have, ok := got.Tensors.Get(name)
		require.True(t, ok, name)
		assert.True(t, want.Equal(have), "tensor %s: want %v got %v", name, want, have)
		return true
	})
}

func TestEncodeAlignsData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleCollection(t), nil))

	n := binary.LittleEndian.Uint64(buf.Bytes())
	assert.Zero(t, (8+n)%8, "data section must start 8-byte aligned")
}

func TestDecodeHonoursHeaderOrder(t *testing.T) {
	header := `{"b":{"dtype":"U8","shape":[1],"data_offsets":[1,2]},"a":{"dtype":"U8","shape":[1],"data_offsets":[0,1]}}`
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(len(header)))
	data = append(data, header...)
	data = append(data, 7, 9)

	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, f.Tensors.Keys())

	b, _ := f.Tensors.Get("b")
	vals, err := b.Int64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, vals)
}

func TestDecodeErrors(t *testing.T) {
	build := func(header string, body ...byte) []byte {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, uint64(len(header)))
		data = append(data, header...)
		return append(data, body...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{1, 2, 3}},
		{"header past end", func() []byte {
			d := make([]byte, 8)
			binary.LittleEndian.PutUint64(d, 1000)
			return d
		}()},
		{"not an object", build(`[]`)},
		{"offsets out of bounds", build(`{"a":{"dtype":"F32","shape":[1],"data_offsets":[0,4]}}`, 1, 2)},
		{"size mismatch", build(`{"a":{"dtype":"F32","shape":[2],"data_offsets":[0,4]}}`, 1, 2, 3, 4)},
		{"shape overflows", build(`{"a":{"dtype":"F64","shape":[2305843009213693953],"data_offsets":[0,8]}}`, 1, 2, 3, 4, 5, 6, 7, 8)},
		{"duplicate key", build(`{"a":{"dtype":"U8","shape":[1],"data_offsets":[0,1]},"a":{"dtype":"U8","shape":[1],"data_offsets":[0,1]}}`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
		})
	}
}

func TestDecodeUnsupportedDType(t *testing.T) {
	header := `{"q":{"dtype":"F8_E4M3","shape":[1],"data_offsets":[0,1]}}`
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(len(header)))
	data = append(data, header...)
	data = append(data, 0)

	_, err := Decode(data)
	var unsupported tensor.ErrUnsupportedDType
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "F8_E4M3", unsupported.Name)
}

func TestEncodeRejectsReservedName(t *testing.T) {
	c := tensor.NewCollection()
	tn, _ := tensor.FromInt64s([]int64{1}, []int64{1})
	require.NoError(t, c.Add(metadataKey, tn))

	var buf bytes.Buffer
	require.Error(t, Encode(&buf, c, nil))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.safetensors"))
	require.Error(t, err)
}
