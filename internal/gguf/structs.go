package gguf

import (
	"fmt"

	"github.com/pgermishuys/netchat/internal/tensor"
)

const (
	GGUFMagic   = 0x46554747 // "GGUF"
	GGUFVersion = 3

	DefaultAlignment = 32
)

type GGMLType uint32

const (
	GGMLTypeF32  GGMLType = 0
	GGMLTypeF16  GGMLType = 1
	GGMLTypeQ4_0 GGMLType = 2
	GGMLTypeQ4_1 GGMLType = 3
	GGMLTypeQ5_0 GGMLType = 6
	GGMLTypeQ8_0 GGMLType = 8
	GGMLTypeQ4_K GGMLType = 12
	GGMLTypeQ6_K GGMLType = 14
	GGMLTypeI8   GGMLType = 24
	GGMLTypeI16  GGMLType = 25
	GGMLTypeI32  GGMLType = 26
	GGMLTypeI64  GGMLType = 27
	GGMLTypeF64  GGMLType = 28
	GGMLTypeBF16 GGMLType = 30
)

// plainTypes are stored element by element and map onto a tensor dtype.
// Block-quantized types have no such mapping and cannot be re-keyed losslessly
// into the output container.
var plainTypes = map[GGMLType]tensor.DType{
	GGMLTypeF32:  tensor.DTypeF32,
	GGMLTypeF16:  tensor.DTypeF16,
	GGMLTypeI8:   tensor.DTypeI8,
	GGMLTypeI16:  tensor.DTypeI16,
	GGMLTypeI32:  tensor.DTypeI32,
	GGMLTypeI64:  tensor.DTypeI64,
	GGMLTypeF64:  tensor.DTypeF64,
	GGMLTypeBF16: tensor.DTypeBF16,
}

// DType returns the tensor dtype for a plain GGML type.
func (t GGMLType) DType() (tensor.DType, error) {
	if d, ok := plainTypes[t]; ok {
		return d, nil
	}
	return tensor.DTypeInvalid, tensor.ErrUnsupportedDType{Name: "GGML_" + t.String()}
}

func (t GGMLType) String() string {
	switch t {
	case GGMLTypeF32:
		return "F32"
	case GGMLTypeF16:
		return "F16"
	case GGMLTypeQ4_0:
		return "Q4_0"
	case GGMLTypeQ4_1:
		return "Q4_1"
	case GGMLTypeQ5_0:
		return "Q5_0"
	case GGMLTypeQ8_0:
		return "Q8_0"
	case GGMLTypeQ4_K:
		return "Q4_K"
	case GGMLTypeQ6_K:
		return "Q6_K"
	case GGMLTypeI8:
		return "I8"
	case GGMLTypeI16:
		return "I16"
	case GGMLTypeI32:
		return "I32"
	case GGMLTypeI64:
		return "I64"
	case GGMLTypeF64:
		return "F64"
	case GGMLTypeBF16:
		return "BF16"
	default:
		return fmt.Sprintf("UNKNOWN_TYPE_%d", uint32(t))
	}
}

type GGUFMetadataValueType uint32

const (
	GGUFMetadataValueTypeUint8   GGUFMetadataValueType = 0
	GGUFMetadataValueTypeInt8    GGUFMetadataValueType = 1
	GGUFMetadataValueTypeUint16  GGUFMetadataValueType = 2
	GGUFMetadataValueTypeInt16   GGUFMetadataValueType = 3
	GGUFMetadataValueTypeUint32  GGUFMetadataValueType = 4
	GGUFMetadataValueTypeInt32   GGUFMetadataValueType = 5
	GGUFMetadataValueTypeFloat32 GGUFMetadataValueType = 6
	GGUFMetadataValueTypeBool    GGUFMetadataValueType = 7
	GGUFMetadataValueTypeString  GGUFMetadataValueType = 8
	GGUFMetadataValueTypeArray   GGUFMetadataValueType = 9
	GGUFMetadataValueTypeUint64  GGUFMetadataValueType = 10
	GGUFMetadataValueTypeInt64   GGUFMetadataValueType = 11
	GGUFMetadataValueTypeFloat64 GGUFMetadataValueType = 12
)

// TensorInfo is one entry of the tensor directory.
type TensorInfo struct {
	Name       string
	Dimensions []uint64 // ne order: fastest-varying dimension first
	Type       GGMLType
	Offset     uint64 // relative to the data section
}

// Shape converts ne order into a row-major shape.
func (t *TensorInfo) Shape() []int64 {
	shape := make([]int64, len(t.Dimensions))
	for i, d := range t.Dimensions {
		shape[len(t.Dimensions)-1-i] = int64(d)
	}
	return shape
}

type GGUFHeader struct {
	Magic       uint32
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

// File is a parsed GGUF file with its tensors re-expressed as a collection.
type File struct {
	Header  GGUFHeader
	KV      map[string]any
	Infos   []*TensorInfo
	Tensors *tensor.Collection
}

// Metadata returns the string-valued KV pairs, suitable for a container header.
func (f *File) Metadata() map[string]string {
	out := make(map[string]string)
	for k, v := range f.KV {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Error types
type ErrInvalidMagic struct{ Magic uint32 }

func (e ErrInvalidMagic) Error() string {
	return fmt.Sprintf("invalid GGUF magic: %x", e.Magic)
}

type ErrUnsupportedVersion struct{ Version uint32 }

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported GGUF version: %d", e.Version)
}
