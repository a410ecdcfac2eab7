// Package param defines the declared physical parameter space of a template
// library and the mapping between it and the free vector seen by the
// non-linear optimizer.
package param

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrEmptySpace is returned when a space has no parameters.
	ErrEmptySpace = errors.New("param: space has no parameters")
	// ErrDuplicateName is returned when a parameter name repeats.
	ErrDuplicateName = errors.New("param: duplicate parameter name")
	// ErrUnknownName is returned for a name outside the space.
	ErrUnknownName = errors.New("param: unknown parameter name")
	// ErrMissingValue is returned when a map lacks a parameter of the space.
	ErrMissingValue = errors.New("param: missing parameter value")
)

// ErrDimensionMismatch indicates a vector of the wrong length.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("param: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Vector is an ordered parameter tuple. Its order is the order of the Space
// it belongs to.
type Vector []float64

// Clone returns a copy of v.
func (v Vector) Clone() Vector { return slices.Clone(v) }

// Space is an ordered list of named parameters, e.g. teff, logg, feh, alpha.
// It is resolved once per fit call and then only read.
type Space struct {
	names []string
	index map[string]int
}

// NewSpace creates a Space from parameter names in declaration order.
func NewSpace(names ...string) (Space, error) {
	if len(names) == 0 {
		return Space{}, ErrEmptySpace
	}
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return Space{}, fmt.Errorf("%w: empty name at %d", ErrUnknownName, i)
		}
		if _, ok := idx[n]; ok {
			return Space{}, fmt.Errorf("%w: %q", ErrDuplicateName, n)
		}
		idx[n] = i
	}
	return Space{names: slices.Clone(names), index: idx}, nil
}

// MustSpace is like NewSpace but panics on error. Intended for tests and
// package-level declarations.
func MustSpace(names ...string) Space {
	s, err := NewSpace(names...)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns the parameter names in order.
func (s Space) Names() []string { return slices.Clone(s.names) }

// Len returns the number of parameters.
func (s Space) Len() int { return len(s.names) }

// Index returns the position of name.
func (s Space) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether both spaces list the same names in the same order.
func (s Space) Equal(o Space) bool { return slices.Equal(s.names, o.names) }

// Check validates the length of v.
func (s Space) Check(v Vector) error {
	if len(v) != len(s.names) {
		return &ErrDimensionMismatch{Expected: len(s.names), Actual: len(v)}
	}
	return nil
}

// FromMap orders the values of m by the space. Extra keys are ignored.
func (s Space) FromMap(m map[string]float64) (Vector, error) {
	v := make(Vector, len(s.names))
	for i, n := range s.names {
		x, ok := m[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingValue, n)
		}
		v[i] = x
	}
	return v, nil
}

// ToMap returns v keyed by parameter name.
func (s Space) ToMap(v Vector) map[string]float64 {
	m := make(map[string]float64, len(s.names))
	for i, n := range s.names {
		if i < len(v) {
			m[n] = v[i]
		}
	}
	return m
}

// Grid returns the Cartesian product of the given per-parameter values, in
// space order, with the last parameter varying fastest.
func (s Space) Grid(values map[string][]float64) ([]Vector, error) {
	for k := range values {
		if _, ok := s.index[k]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownName, k)
		}
	}
	axes := make([][]float64, len(s.names))
	total := 1
	for i, n := range s.names {
		vals, ok := values[n]
		if !ok || len(vals) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrMissingValue, n)
		}
		axes[i] = vals
		total *= len(vals)
	}

	out := make([]Vector, 0, total)
	idx := make([]int, len(axes))
	for {
		v := make(Vector, len(axes))
		for d, i := range idx {
			v[d] = axes[d][i]
		}
		out = append(out, v)

		d := len(axes) - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < len(axes[d]) {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return out, nil
		}
	}
}
