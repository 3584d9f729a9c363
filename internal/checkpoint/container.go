package checkpoint

import (
	"fmt"

	"github.com/pgermishuys/netchat/internal/tensor"
)

// Shape tags which layout a checkpoint was saved in.
type Shape int

const (
	ShapeFlat Shape = iota
	ShapeModelWrapped
	ShapeStateDictWrapped
)

const (
	modelKey     = "model"
	stateDictKey = "state_dict"
)

func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeModelWrapped:
		return "model-wrapped"
	case ShapeStateDictWrapped:
		return "state_dict-wrapped"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// UnsupportedShapeError reports a loaded value that holds no recognisable
// parameter mapping. Key is set when the problem is a nested entry.
type UnsupportedShapeError struct {
	Type string
	Key  string
}

func (e *UnsupportedShapeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("unsupported checkpoint shape: entry %q is a %s", e.Key, e.Type)
	}
	return fmt.Sprintf("unsupported checkpoint shape: top level is a %s, want a mapping", e.Type)
}

// Container is one of Flat, ModelWrapped or StateDictWrapped. Values are only
// produced by Classify.
type Container interface {
	Shape() Shape
	// Params is the mapping that holds the parameters.
	Params() *Mapping
	container()
}

type Flat struct{ params *Mapping }

// ModelWrapped is a checkpoint whose parameters live under "model". Other
// entries (optimizer state, step counters) are Rest.
type ModelWrapped struct {
	params *Mapping
	Rest   []string
}

type StateDictWrapped struct {
	params *Mapping
	Rest   []string
}

func (c Flat) Shape() Shape             { return ShapeFlat }
func (c ModelWrapped) Shape() Shape     { return ShapeModelWrapped }
func (c StateDictWrapped) Shape() Shape { return ShapeStateDictWrapped }

func (c Flat) Params() *Mapping             { return c.params }
func (c ModelWrapped) Params() *Mapping     { return c.params }
func (c StateDictWrapped) Params() *Mapping { return c.params }

func (Flat) container()             {}
func (ModelWrapped) container()     {}
func (StateDictWrapped) container() {}

// Classify picks the container shape. "model" wins over "state_dict", which
// wins over treating the whole mapping as flat.
func Classify(v Value) (Container, error) {
	root, ok := v.(*Mapping)
	if !ok {
		return nil, &UnsupportedShapeError{Type: TypeName(v)}
	}

	for _, wrapper := range []string{modelKey, stateDictKey} {
		inner, ok := root.Get(wrapper)
		if !ok {
			continue
		}
		params, ok := inner.(*Mapping)
		if !ok {
			return nil, &UnsupportedShapeError{Type: TypeName(inner), Key: wrapper}
		}
		rest := without(root.Keys(), wrapper)
		if wrapper == modelKey {
			return ModelWrapped{params: params, Rest: rest}, nil
		}
		return StateDictWrapped{params: params, Rest: rest}, nil
	}
	return Flat{params: root}, nil
}

// Extract returns the flat parameter collection in its stored order.
func Extract(v Value) (*tensor.Collection, Shape, error) {
	c, err := Classify(v)
	if err != nil {
		return nil, 0, err
	}
	params := c.Params()
	out := tensor.NewCollection()
	out.Metadata = params.meta
	for _, k := range params.keys {
		t, ok := params.vals[k].(*tensor.Tensor)
		if !ok {
			return nil, 0, &UnsupportedShapeError{Type: TypeName(params.vals[k]), Key: k}
		}
		if err := out.Add(k, t); err != nil {
			return nil, 0, err
		}
	}
	return out, c.Shape(), nil
}

func without(keys []string, drop string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != drop {
			out = append(out, k)
		}
	}
	return out
}
