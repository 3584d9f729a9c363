// Package gguf reads GGUF model files as a read-only checkpoint source.
// Only plain-element tensor types are accepted; block-quantized tensors are
// reported as unsupported dtypes.
package gguf

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/logger"
	"github.com/pgermishuys/netchat/internal/tensor"
)

// maxArrayLen bounds metadata arrays so corrupt lengths fail fast.
const maxArrayLen = 1 << 26

// LoadFile reads path fully and decodes it.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %s", path)
	}
	return f, nil
}

// reader is a bounds-checked little-endian cursor over the file bytes.
type reader struct {
	data []byte
	off  uint64
}

func (r *reader) need(n uint64) error {
	if r.off+n < r.off || r.off+n > uint64(len(r.data)) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u64()
	if err != nil {
		return "", err
	}
	if err := r.need(n); err != nil {
		return "", err
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s, nil
}

// Decode parses an in-memory GGUF buffer. Tensors keep directory order and
// alias data.
func Decode(data []byte) (*File, error) {
	r := &reader{data: data}
	file := &File{KV: make(map[string]any)}

	var err error
	if file.Header.Magic, err = r.u32(); err != nil {
		return nil, errors.Wrap(err, "gguf: magic")
	}
	if file.Header.Magic != GGUFMagic {
		return nil, ErrInvalidMagic{Magic: file.Header.Magic}
	}
	if file.Header.Version, err = r.u32(); err != nil {
		return nil, errors.Wrap(err, "gguf: version")
	}
	if file.Header.Version < 2 || file.Header.Version > GGUFVersion {
		return nil, ErrUnsupportedVersion{Version: file.Header.Version}
	}
	if file.Header.TensorCount, err = r.u64(); err != nil {
		return nil, errors.Wrap(err, "gguf: tensor count")
	}
	if file.Header.KVCount, err = r.u64(); err != nil {
		return nil, errors.Wrap(err, "gguf: kv count")
	}

	logger.Log.Debug("gguf header",
		"version", file.Header.Version,
		"tensors", file.Header.TensorCount,
		"kv", file.Header.KVCount)

	for i := uint64(0); i < file.Header.KVCount; i++ {
		key, err := r.str()
		if err != nil {
			return nil, errors.Wrapf(err, "gguf: kv %d key", i)
		}
		typ, err := r.u32()
		if err != nil {
			return nil, errors.Wrapf(err, "gguf: kv %q type", key)
		}
		val, err := r.value(GGUFMetadataValueType(typ))
		if err != nil {
			return nil, errors.WithMessagef(err, "gguf: kv %q", key)
		}
		file.KV[key] = val
	}

	for i := uint64(0); i < file.Header.TensorCount; i++ {
		info, err := r.tensorInfo()
		if err != nil {
			return nil, errors.WithMessagef(err, "gguf: tensor info %d", i)
		}
		file.Infos = append(file.Infos, info)
	}

	alignment := uint64(DefaultAlignment)
	switch v := file.KV["general.alignment"].(type) {
	case uint32:
		alignment = uint64(v)
	case uint64:
		alignment = v
	}
	if alignment == 0 {
		return nil, errors.New("gguf: general.alignment is zero")
	}
	dataStart := r.off
	if pad := dataStart % alignment; pad != 0 {
		dataStart += alignment - pad
	}

	file.Tensors = tensor.NewCollection()
	if md := file.Metadata(); len(md) > 0 {
		file.Tensors.Metadata = md
	}
	for _, info := range file.Infos {
		t, err := info.tensor(data, dataStart)
		if err != nil {
			return nil, err
		}
		if err := file.Tensors.Add(info.Name, t); err != nil {
			return nil, errors.Wrap(err, "gguf")
		}
	}
	return file, nil
}

func (r *reader) tensorInfo() (*TensorInfo, error) {
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	nDims, err := r.u32()
	if err != nil {
		return nil, err
	}
	if nDims > 8 {
		return nil, errors.Errorf("tensor %q has %d dimensions", name, nDims)
	}
	dims := make([]uint64, nDims)
	for j := range dims {
		if dims[j], err = r.u64(); err != nil {
			return nil, err
		}
	}
	typ, err := r.u32()
	if err != nil {
		return nil, err
	}
	off, err := r.u64()
	if err != nil {
		return nil, err
	}
	return &TensorInfo{Name: name, Dimensions: dims, Type: GGMLType(typ), Offset: off}, nil
}

func (t *TensorInfo) tensor(data []byte, dataStart uint64) (*tensor.Tensor, error) {
	dtype, err := t.Type.DType()
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", t.Name)
	}
	n := uint64(dtype.Size())
	for _, d := range t.Dimensions {
		if d != 0 && n > math.MaxUint64/d {
			return nil, errors.Errorf("tensor %q: size overflows", t.Name)
		}
		n *= d
	}
	start := dataStart + t.Offset
	if start < dataStart || start+n < start || start+n > uint64(len(data)) {
		return nil, errors.Errorf("tensor %q: data [%d, %d) out of bounds (%d bytes)", t.Name, start, start+n, len(data))
	}
	out, err := tensor.New(dtype, t.Shape(), data[start:start+n:start+n])
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", t.Name)
	}
	return out, nil
}

func (r *reader) value(typ GGUFMetadataValueType) (any, error) {
	switch typ {
	case GGUFMetadataValueTypeUint8:
		return r.u8()
	case GGUFMetadataValueTypeInt8:
		v, err := r.u8()
		return int8(v), err
	case GGUFMetadataValueTypeUint16:
		return r.u16()
	case GGUFMetadataValueTypeInt16:
		v, err := r.u16()
		return int16(v), err
	case GGUFMetadataValueTypeUint32:
		return r.u32()
	case GGUFMetadataValueTypeInt32:
		v, err := r.u32()
		return int32(v), err
	case GGUFMetadataValueTypeFloat32:
		v, err := r.u32()
		return math.Float32frombits(v), err
	case GGUFMetadataValueTypeBool:
		v, err := r.u8()
		return v != 0, err
	case GGUFMetadataValueTypeString:
		return r.str()
	case GGUFMetadataValueTypeArray:
		elemType, err := r.u32()
		if err != nil {
			return nil, err
		}
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		if n > maxArrayLen {
			return nil, errors.Errorf("array length %d too large", n)
		}
		arr := make([]any, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := r.value(GGUFMetadataValueType(elemType))
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case GGUFMetadataValueTypeUint64:
		return r.u64()
	case GGUFMetadataValueTypeInt64:
		v, err := r.u64()
		return int64(v), err
	case GGUFMetadataValueTypeFloat64:
		v, err := r.u64()
		return math.Float64frombits(v), err
	default:
		return nil, errors.Errorf("unsupported metadata type: %d", typ)
	}
}
