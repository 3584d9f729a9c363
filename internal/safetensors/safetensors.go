// Package safetensors reads and writes flat named-tensor files in the
// safetensors layout: an 8-byte little-endian header length, a JSON header,
// then the raw tensor bytes.
package safetensors

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/atomicfile"
	"github.com/pgermishuys/netchat/internal/tensor"
)

const (
	metadataKey = "__metadata__"
	// headers larger than this are treated as corrupt
	maxHeaderSize = 100 << 20
	headerAlign   = 8
)

type entry struct {
	DType   string   `json:"dtype"`
	Shape   []int64  `json:"shape"`
	Offsets [2]int64 `json:"data_offsets"`
}

// File is a decoded safetensors file.
type File struct {
	Tensors  *tensor.Collection
	Metadata map[string]string
}

// ReadFile loads path fully into memory. Tensor data aliases the file buffer.
func ReadFile(path string) (*File, error) {
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

// Decode parses an in-memory safetensors buffer. Entries keep header order.
func Decode(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, errors.Errorf("safetensors: %d bytes is too short for a header", len(data))
	}
	n := binary.LittleEndian.Uint64(data)
	if n > maxHeaderSize || 8+n > uint64(len(data)) {
		return nil, errors.Errorf("safetensors: header size %d exceeds file size %d", n, len(data))
	}
	header := data[8 : 8+n]
	body := data[8+n:]

	out := &File{Tensors: tensor.NewCollection(), Metadata: map[string]string{}}

	dec := json.NewDecoder(bytes.NewReader(header))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, errors.Errorf("safetensors: header is not a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "safetensors: header key")
		}
		name, ok := tok.(string)
		if !ok {
			return nil, errors.Errorf("safetensors: unexpected header token %v", tok)
		}

		if name == metadataKey {
			if err := dec.Decode(&out.Metadata); err != nil {
				return nil, errors.Wrap(err, "safetensors: __metadata__")
			}
			continue
		}

		var e entry
		if err := dec.Decode(&e); err != nil {
			return nil, errors.Wrapf(err, "safetensors: entry %q", name)
		}
		t, err := e.tensor(name, body)
		if err != nil {
			return nil, err
		}
		if err := out.Tensors.Add(name, t); err != nil {
			return nil, errors.Wrap(err, "safetensors")
		}
	}
	if len(out.Metadata) > 0 {
		out.Tensors.Metadata = out.Metadata
	}
	return out, nil
}

func (e entry) tensor(name string, body []byte) (*tensor.Tensor, error) {
	dtype, err := tensor.ParseDType(e.DType)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", name)
	}
	start, end := e.Offsets[0], e.Offsets[1]
	if start < 0 || end < start || end > int64(len(body)) {
		return nil, errors.Errorf("tensor %q: data offsets [%d, %d) out of bounds (%d bytes)", name, start, end, len(body))
	}
	t, err := tensor.New(dtype, e.Shape, body[start:end:end])
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", name)
	}
	return t, nil
}

// WriteFile atomically replaces path with the encoded collection.
func WriteFile(path string, c *tensor.Collection, metadata map[string]string) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return Encode(w, c, metadata)
	})
}

// Encode writes c in insertion order; data offsets grow with key order.
func Encode(w io.Writer, c *tensor.Collection, metadata map[string]string) error {
	header, err := encodeHeader(c, metadata)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(header)))
	if _, err := bw.Write(size[:]); err != nil {
		return errors.Wrap(err, "safetensors: write header size")
	}
	if _, err := bw.Write(header); err != nil {
		return errors.Wrap(err, "safetensors: write header")
	}

	var werr error
	c.Range(func(name string, t *tensor.Tensor) bool {
		if _, werr = bw.Write(t.Data); werr != nil {
			werr = errors.Wrapf(werr, "safetensors: write tensor %q", name)
			return false
		}
		return true
	})
	if werr != nil {
		return werr
	}
	return errors.Wrap(bw.Flush(), "safetensors: flush")
}

func encodeHeader(c *tensor.Collection, metadata map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeField := func(key string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	if len(metadata) > 0 {
		if err := writeField(metadataKey, metadata); err != nil {
			return nil, errors.Wrap(err, "safetensors: encode metadata")
		}
	}

	var offset int64
	var herr error
	c.Range(func(name string, t *tensor.Tensor) bool {
		if name == metadataKey {
			herr = errors.Errorf("safetensors: tensor name %q is reserved", name)
			return false
		}
		if err := t.Validate(); err != nil {
			herr = errors.WithMessagef(err, "tensor %q", name)
			return false
		}
		shape := t.Shape
		if shape == nil {
			shape = []int64{}
		}
		n := int64(len(t.Data))
		e := entry{DType: t.DType.String(), Shape: shape, Offsets: [2]int64{offset, offset + n}}
		offset += n
		if err := writeField(name, e); err != nil {
			herr = errors.Wrapf(err, "safetensors: encode entry %q", name)
			return false
		}
		return true
	})
	if herr != nil {
		return nil, herr
	}
	buf.WriteByte('}')

	// pad with spaces so tensor data starts 8-byte aligned
	for buf.Len()%headerAlign != 0 {
		buf.WriteByte(' ')
	}
	return buf.Bytes(), nil
}
