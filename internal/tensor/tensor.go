// Package tensor holds the opaque tensor handle and the ordered named-tensor
// collection shared by the rename and verification pipelines.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Tensor is an opaque, row-major, little-endian buffer with a dtype and shape.
// Tensors are never mutated once built; collections only move pointers around.
type Tensor struct {
	DType DType
	Shape []int64
	Data  []byte
}

// New wraps an existing buffer and checks its length against the shape.
func New(dtype DType, shape []int64, data []byte) (*Tensor, error) {
	t := &Tensor{DType: dtype, Shape: append([]int64(nil), shape...), Data: data}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// FromInt64s builds an I64 tensor.
func FromInt64s(shape []int64, values []int64) (*Tensor, error) {
	data := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	}
	return New(DTypeI64, shape, data)
}

// FromFloat32s builds an F32 tensor.
func FromFloat32s(shape []int64, values []float32) (*Tensor, error) {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return New(DTypeF32, shape, data)
}

// NumElements is the product of the shape; a scalar has one element.
func (t *Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// SizeBytes is the expected byte length of Data. Only meaningful once
// Validate has accepted the shape.
func (t *Tensor) SizeBytes() int64 {
	return t.NumElements() * int64(t.DType.Size())
}

func (t *Tensor) Validate() error {
	if t.DType.Size() == 0 {
		return ErrUnsupportedDType{Name: t.DType.String()}
	}
	size := int64(t.DType.Size())
	for i, d := range t.Shape {
		if d < 0 {
			return errors.Errorf("invalid shape %v: dimension %d is negative", t.Shape, i)
		}
		if d != 0 && size > math.MaxInt64/d {
			return errors.Errorf("invalid shape %v: byte size overflows int64", t.Shape)
		}
		size *= d
	}
	if int64(len(t.Data)) != size {
		return errors.Errorf("tensor shaped %v of %s needs %d bytes, got %d", t.Shape, t.DType, size, len(t.Data))
	}
	return nil
}

// Int64s decodes any integer or bool dtype into int64 values.
func (t *Tensor) Int64s() ([]int64, error) {
	n := int(t.NumElements())
	out := make([]int64, n)
	b := t.Data
	switch t.DType {
	case DTypeI64:
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
		}
	case DTypeI32:
		for i := range out {
			out[i] = int64(int32(binary.LittleEndian.Uint32(b[i*4:])))
		}
	case DTypeI16:
		for i := range out {
			out[i] = int64(int16(binary.LittleEndian.Uint16(b[i*2:])))
		}
	case DTypeI8:
		for i := range out {
			out[i] = int64(int8(b[i]))
		}
	case DTypeU8, DTypeBool:
		for i := range out {
			out[i] = int64(b[i])
		}
	default:
		return nil, errors.Errorf("cannot read %s tensor as integers", t.DType)
	}
	return out, nil
}

// Float32s decodes any floating point dtype into float32 values.
func (t *Tensor) Float32s() ([]float32, error) {
	n := int(t.NumElements())
	out := make([]float32, n)
	b := t.Data
	switch t.DType {
	case DTypeF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		}
	case DTypeF64:
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:])))
		}
	case DTypeF16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[i*2:])).Float32()
		}
	case DTypeBF16:
		// bfloat16 is the upper half of a float32
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(b[i*2:])) << 16)
		}
	default:
		return nil, errors.Errorf("cannot read %s tensor as floats", t.DType)
	}
	return out, nil
}

// Equal reports whether both tensors have the same dtype, shape and bytes.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.DType != o.DType || len(t.Shape) != len(o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v", t.DType, t.Shape)
}
