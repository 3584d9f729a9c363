package tensor

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is returned by Add when the key is already present.
var ErrDuplicateKey = errors.New("duplicate tensor key")

// Collection is an ordered name -> tensor mapping with unique keys.
type Collection struct {
	keys   []string
	byName map[string]*Tensor

	// Metadata is free-form string metadata from the source container header.
	Metadata map[string]string
}

func NewCollection() *Collection {
	return &Collection{byName: make(map[string]*Tensor)}
}

// Add appends a tensor under a new key.
func (c *Collection) Add(name string, t *Tensor) error {
	if _, ok := c.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, name)
	}
	c.keys = append(c.keys, name)
	c.byName[name] = t
	return nil
}

func (c *Collection) Get(name string) (*Tensor, bool) {
	t, ok := c.byName[name]
	return t, ok
}

func (c *Collection) Len() int {
	return len(c.keys)
}

// Keys returns a copy of the keys in insertion order.
func (c *Collection) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Range calls fn for every entry in insertion order until fn returns false.
func (c *Collection) Range(fn func(name string, t *Tensor) bool) {
	for _, k := range c.keys {
		if !fn(k, c.byName[k]) {
			return
		}
	}
}

// TotalBytes sums the payload size of every tensor.
func (c *Collection) TotalBytes() int64 {
	var n int64
	for _, t := range c.byName {
		n += int64(len(t.Data))
	}
	return n
}
