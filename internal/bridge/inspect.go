package bridge

import (
	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/golden"
	"github.com/pgermishuys/netchat/internal/metrics"
	"github.com/pgermishuys/netchat/internal/rename"
	"github.com/pgermishuys/netchat/internal/tensor"
)

// Entry is one tensor as listed by Inspect.
type Entry struct {
	Name   string
	Target string
	DType  tensor.DType
	Shape  []int64
}

type Inspection struct {
	Path    string
	Format  checkpoint.Format
	Shape   checkpoint.Shape
	Entries []Entry
	Bytes   int64
}

// Inspect lists the parameters of a checkpoint and the names convert would
// give them.
func Inspect(path string) (*Inspection, error) {
	v, format, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	params, shape, err := checkpoint.Extract(v)
	if err != nil {
		return nil, err
	}

	rw := rename.New()
	out := &Inspection{Path: path, Format: format, Shape: shape, Bytes: params.TotalBytes()}
	params.Range(func(name string, t *tensor.Tensor) bool {
		out.Entries = append(out.Entries, Entry{Name: name, Target: rw.Rewrite(name), DType: t.DType, Shape: t.Shape})
		return true
	})
	return out, nil
}

// CompareFiles compares the tensors stored in two fixture artifacts.
func CompareFiles(expectedPath, actualPath string, tol golden.Tolerance) (*golden.Comparison, error) {
	expected, err := loadSingle(expectedPath)
	if err != nil {
		return nil, err
	}
	actual, err := loadSingle(actualPath)
	if err != nil {
		return nil, err
	}
	c, err := golden.Compare(expected, actual, tol)
	if err != nil {
		return nil, err
	}
	metrics.RecordComparison(c.Mismatches)
	return c, nil
}

// loadSingle returns the only tensor in path, or its logits or input ids.
func loadSingle(path string) (*tensor.Tensor, error) {
	c, _, err := checkpoint.LoadCollection(path)
	if err != nil {
		return nil, err
	}
	if c.Len() == 1 {
		t, _ := c.Get(c.Keys()[0])
		return t, nil
	}
	for _, key := range []string{golden.LogitsKey, golden.InputKey} {
		if t, ok := c.Get(key); ok {
			return t, nil
		}
	}
	return nil, errors.Errorf("%s holds %d tensors, cannot pick one to compare", path, c.Len())
}
