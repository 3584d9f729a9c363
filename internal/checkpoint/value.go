// Package checkpoint loads and saves model checkpoints and locates the flat
// parameter mapping inside whatever shape a checkpoint was saved in.
package checkpoint

import (
	"fmt"

	"github.com/pgermishuys/netchat/internal/tensor"
)

// Value is anything a checkpoint can hold: *Mapping, *tensor.Tensor, []Value,
// nil, or a scalar (string, bool, int64, uint64, float64, []byte).
type Value = any

// Mapping is an ordered string-keyed map of values.
type Mapping struct {
	keys []string
	vals map[string]Value
	// meta is the source collection's header metadata, if any.
	meta map[string]string
}

func NewMapping() *Mapping {
	return &Mapping{vals: make(map[string]Value)}
}

// MappingOf builds a flat mapping from a collection, in collection order.
func MappingOf(c *tensor.Collection) *Mapping {
	m := NewMapping()
	m.meta = c.Metadata
	c.Range(func(name string, t *tensor.Tensor) bool {
		m.Set(name, t)
		return true
	})
	return m
}

// Set replaces the value under key, or appends key if it is new.
func (m *Mapping) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

func (m *Mapping) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *Mapping) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

func (m *Mapping) Len() int { return len(m.keys) }

// Keys returns a copy of the keys in insertion order.
func (m *Mapping) Keys() []string {
	return append([]string(nil), m.keys...)
}

// TypeName names the kind of v the way it is reported to users.
func TypeName(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case *Mapping:
		return "mapping"
	case *tensor.Tensor:
		return "tensor"
	case []Value:
		return "list"
	case string:
		return "string"
	case []byte:
		return "bytes"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	default:
		return fmt.Sprintf("%T", v)
	}
}
