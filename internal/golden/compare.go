package golden

import (
	"fmt"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/tensor"
)

// Tolerance is an allclose-style bound: |a-e| <= Atol + Rtol*|e|.
type Tolerance struct {
	Atol float64
	Rtol float64
}

func DefaultTolerance() Tolerance {
	return Tolerance{Atol: 1e-5, Rtol: 1e-4}
}

// ShapeMismatchError is returned when two tensors cannot be compared.
type ShapeMismatchError struct {
	Expected []int64
	Actual   []int64
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: expected %v, got %v", e.Expected, e.Actual)
}

// Comparison is the element-wise outcome of Compare.
type Comparison struct {
	Count       int
	Mismatches  int
	MaxAbsError float64
	MaxRelError float64
	// FirstMismatch is a flat index, or -1.
	FirstMismatch int
	Tolerance     Tolerance
}

func (c *Comparison) Passed() bool { return c.Mismatches == 0 }

func (c *Comparison) String() string {
	return fmt.Sprintf("compared %d values: %d outside atol=%g rtol=%g (max abs %.3g, max rel %.3g)",
		c.Count, c.Mismatches, c.Tolerance.Atol, c.Tolerance.Rtol, c.MaxAbsError, c.MaxRelError)
}

// Compare checks actual against expected. Integer tensors compare exactly
// under a zero tolerance; NaN matches only NaN.
func Compare(expected, actual *tensor.Tensor, tol Tolerance) (*Comparison, error) {
	if tol.Atol < 0 || tol.Rtol < 0 {
		return nil, errors.Errorf("tolerance must be non-negative, got %+v", tol)
	}
	if !slices.Equal(expected.Shape, actual.Shape) {
		return nil, &ShapeMismatchError{Expected: expected.Shape, Actual: actual.Shape}
	}
	if expected.DType.IsFloat() != actual.DType.IsFloat() {
		return nil, errors.Errorf("cannot compare %s with %s", expected.DType, actual.DType)
	}

	want, err := values(expected)
	if err != nil {
		return nil, errors.WithMessage(err, "expected")
	}
	got, err := values(actual)
	if err != nil {
		return nil, errors.WithMessage(err, "actual")
	}

	c := &Comparison{Count: len(want), FirstMismatch: -1, Tolerance: tol}
	for i := range want {
		e, a := want[i], got[i]
		ok := false
		switch {
		case math.IsNaN(e) || math.IsNaN(a):
			ok = math.IsNaN(e) && math.IsNaN(a)
		case math.IsInf(e, 0) || math.IsInf(a, 0):
			ok = e == a
		default:
			diff := math.Abs(a - e)
			c.MaxAbsError = max(c.MaxAbsError, diff)
			if e != 0 {
				c.MaxRelError = max(c.MaxRelError, diff/math.Abs(e))
			}
			ok = diff <= tol.Atol+tol.Rtol*math.Abs(e)
		}
		if !ok {
			c.Mismatches++
			if c.FirstMismatch < 0 {
				c.FirstMismatch = i
			}
		}
	}
	return c, nil
}
