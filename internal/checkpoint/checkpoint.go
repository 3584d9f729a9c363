package checkpoint

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/atomicfile"
	"github.com/pgermishuys/netchat/internal/gguf"
	"github.com/pgermishuys/netchat/internal/logger"
	"github.com/pgermishuys/netchat/internal/safetensors"
	"github.com/pgermishuys/netchat/internal/tensor"
)

// ErrFileNotFound is returned when a checkpoint argument resolves to nothing.
var ErrFileNotFound = errors.New("checkpoint file not found")

// Load resolves path and decodes it. Flat formats come back as a *Mapping of
// tensors; msgpack checkpoints keep whatever nesting they were saved with.
func Load(path string) (Value, Format, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.WithMessage(ErrFileNotFound, path)
		}
		return nil, 0, errors.Wrapf(err, "read %s", resolved)
	}

	format := sniff(resolved, data)
	logger.Log.Debug("loading checkpoint", "path", resolved, "format", format.String(), "bytes", len(data))

	switch format {
	case FormatSafetensors:
		f, err := safetensors.Decode(data)
		if err != nil {
			return nil, format, errors.WithMessagef(err, "while reading %s", resolved)
		}
		return MappingOf(f.Tensors), format, nil
	case FormatGGUF:
		f, err := gguf.Decode(data)
		if err != nil {
			return nil, format, errors.WithMessagef(err, "while reading %s", resolved)
		}
		return MappingOf(f.Tensors), format, nil
	default:
		v, err := Decode(data)
		if err != nil {
			return nil, format, errors.WithMessagef(err, "while reading %s", resolved)
		}
		return v, format, nil
	}
}

// LoadCollection loads path and extracts its flat parameter collection.
func LoadCollection(path string) (*tensor.Collection, Shape, error) {
	v, _, err := Load(path)
	if err != nil {
		return nil, 0, err
	}
	return Extract(v)
}

// Save writes c as a flat checkpoint. The write is atomic: on failure path
// keeps its previous content. Collection metadata survives in safetensors
// headers only.
func Save(path string, c *tensor.Collection, format Format) error {
	switch format {
	case FormatSafetensors:
		return safetensors.WriteFile(path, c, c.Metadata)
	case FormatMsgpack:
		return SaveValue(path, MappingOf(c))
	default:
		return errors.Errorf("cannot write %s checkpoints", format)
	}
}

// SaveValue writes an arbitrary value, such as a wrapped checkpoint, as msgpack.
func SaveValue(path string, v Value) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return Encode(w, v)
	})
}

// SaveTensor writes a single named tensor, choosing the format from path.
func SaveTensor(path, name string, t *tensor.Tensor) error {
	c := tensor.NewCollection()
	if err := c.Add(name, t); err != nil {
		return err
	}
	return Save(path, c, FormatForPath(path))
}

// LoadTensor reads a single named tensor written by SaveTensor.
func LoadTensor(path, name string) (*tensor.Tensor, error) {
	c, _, err := LoadCollection(path)
	if err != nil {
		return nil, err
	}
	t, ok := c.Get(name)
	if !ok {
		return nil, errors.Errorf("%s: no tensor named %q", path, name)
	}
	return t, nil
}
