package tensor

import "fmt"

// DType identifies the element encoding of a tensor's backing buffer.
type DType uint8

const (
	DTypeInvalid DType = iota
	DTypeF64
	DTypeF32
	DTypeF16
	DTypeBF16
	DTypeI64
	DTypeI32
	DTypeI16
	DTypeI8
	DTypeU8
	DTypeBool
)

var dtypeNames = map[DType]string{
	DTypeF64:  "F64",
	DTypeF32:  "F32",
	DTypeF16:  "F16",
	DTypeBF16: "BF16",
	DTypeI64:  "I64",
	DTypeI32:  "I32",
	DTypeI16:  "I16",
	DTypeI8:   "I8",
	DTypeU8:   "U8",
	DTypeBool: "BOOL",
}

// Size returns the number of bytes per element, or 0 for an invalid dtype.
func (d DType) Size() int {
	switch d {
	case DTypeF64, DTypeI64:
		return 8
	case DTypeF32, DTypeI32:
		return 4
	case DTypeF16, DTypeBF16, DTypeI16:
		return 2
	case DTypeI8, DTypeU8, DTypeBool:
		return 1
	default:
		return 0
	}
}

// String returns the safetensors spelling of the dtype.
func (d DType) String() string {
	if s, ok := dtypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN_DTYPE_%d", uint8(d))
}

// IsFloat reports whether the dtype holds floating point values.
func (d DType) IsFloat() bool {
	switch d {
	case DTypeF64, DTypeF32, DTypeF16, DTypeBF16:
		return true
	}
	return false
}

// ParseDType maps a safetensors dtype string to a DType.
func ParseDType(s string) (DType, error) {
	for d, name := range dtypeNames {
		if name == s {
			return d, nil
		}
	}
	return DTypeInvalid, ErrUnsupportedDType{Name: s}
}

// ErrUnsupportedDType is returned for dtype spellings this module cannot carry.
type ErrUnsupportedDType struct{ Name string }

func (e ErrUnsupportedDType) Error() string {
	return fmt.Sprintf("unsupported tensor dtype: %s", e.Name)
}
