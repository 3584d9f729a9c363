package checkpoint

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/pgermishuys/netchat/internal/tensor"
)

// tensorExtID tags tensors inside msgpack checkpoints.
const tensorExtID int8 = 17

// maxDepth bounds nesting on decode.
const maxDepth = 64

type tensorPayload struct {
	_msgpack struct{} `msgpack:",as_array"`
	DType    string
	Shape    []int64
	Data     []byte
}

// Encode writes v as a single msgpack value.
func Encode(w io.Writer, v Value) error {
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)
	if err := encodeValue(enc, v); err != nil {
		return err
	}
	return errors.Wrap(bw.Flush(), "msgpack: flush")
}

func encodeValue(enc *msgpack.Encoder, v Value) error {
	switch v := v.(type) {
	case *Mapping:
		if err := enc.EncodeMapLen(v.Len()); err != nil {
			return err
		}
		for _, k := range v.keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := encodeValue(enc, v.vals[k]); err != nil {
				return errors.WithMessagef(err, "entry %q", k)
			}
		}
		return nil
	case *tensor.Tensor:
		return encodeTensor(enc, v)
	case []Value:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for i, elem := range v {
			if err := encodeValue(enc, elem); err != nil {
				return errors.WithMessagef(err, "index %d", i)
			}
		}
		return nil
	default:
		return enc.Encode(v)
	}
}

func encodeTensor(enc *msgpack.Encoder, t *tensor.Tensor) error {
	if err := t.Validate(); err != nil {
		return err
	}
	payload, err := msgpack.Marshal(&tensorPayload{DType: t.DType.String(), Shape: t.Shape, Data: t.Data})
	if err != nil {
		return errors.Wrap(err, "msgpack: tensor payload")
	}
	if err := enc.EncodeExtHeader(tensorExtID, len(payload)); err != nil {
		return err
	}
	_, err = enc.Writer().Write(payload)
	return err
}

// Decode reads a single msgpack value. Maps become *Mapping in stored order.
func Decode(data []byte) (Value, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec, 0, len(data))
	if err != nil {
		return nil, errors.WithMessage(err, "msgpack")
	}
	return v, nil
}

// limit is the input size; no extension can be longer.
func decodeValue(d *msgpack.Decoder, depth, limit int) (Value, error) {
	if depth > maxDepth {
		return nil, errors.Errorf("nesting deeper than %d", maxDepth)
	}
	c, err := d.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := d.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		m := NewMapping()
		for i := 0; i < n; i++ {
			key, err := d.DecodeString()
			if err != nil {
				return nil, errors.Wrapf(err, "map key %d", i)
			}
			if m.Has(key) {
				return nil, errors.Errorf("duplicate key %q", key)
			}
			val, err := decodeValue(d, depth+1, limit)
			if err != nil {
				return nil, errors.WithMessagef(err, "entry %q", key)
			}
			m.Set(key, val)
		}
		return m, nil

	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := d.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		list := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			val, err := decodeValue(d, depth+1, limit)
			if err != nil {
				return nil, errors.WithMessagef(err, "index %d", i)
			}
			list = append(list, val)
		}
		return list, nil

	case msgpcode.IsExt(c):
		id, n, err := d.DecodeExtHeader()
		if err != nil {
			return nil, err
		}
		if id != tensorExtID {
			return nil, errors.Errorf("unknown extension type %d", id)
		}
		if n < 0 || n > limit {
			return nil, errors.Errorf("tensor extension of %d bytes exceeds input size %d", n, limit)
		}
		buf := make([]byte, n)
		if err := d.ReadFull(buf); err != nil {
			return nil, errors.Wrap(err, "tensor payload")
		}
		r := bytes.NewReader(buf)
		var p tensorPayload
		if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
			return nil, errors.Wrap(err, "tensor payload")
		}
		if r.Len() != 0 {
			return nil, errors.Errorf("tensor extension declares %d bytes, payload uses %d", n, n-r.Len())
		}
		dtype, err := tensor.ParseDType(p.DType)
		if err != nil {
			return nil, err
		}
		t, err := tensor.New(dtype, p.Shape, p.Data)
		if err != nil {
			return nil, err
		}
		return t, nil

	default:
		return d.DecodeInterfaceLoose()
	}
}
