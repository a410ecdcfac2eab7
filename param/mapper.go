package param

import (
	"fmt"
	"math"
	"slices"
)

// VsiniName is the reserved name of the rotational velocity in fixed lists
// and result tables.
const VsiniName = "vsini"

// VsiniTransform maps vsini to an unconstrained optimizer coordinate:
// Forward(v) = log(clip(v, Min, Max)), Inverse(x) = clip(exp(x), Min, Max).
type VsiniTransform struct {
	Min float64
	Max float64
}

func (t VsiniTransform) clip(v float64) float64 {
	return math.Min(math.Max(v, t.Min), t.Max)
}

// Forward maps vsini to optimizer space.
func (t VsiniTransform) Forward(vsini float64) float64 {
	return math.Log(t.clip(vsini))
}

// Inverse maps an optimizer coordinate back to vsini.
func (t VsiniTransform) Inverse(x float64) float64 {
	return t.clip(math.Exp(x))
}

// Point is a fully specified non-linear evaluation point.
type Point struct {
	Velocity float64
	// Vsini is nil when no rotational broadening is applied.
	Vsini  *float64
	Params Vector
}

// Mapper splits the parameters into free and fixed ones and converts between
// a Point and the flat vector [velocity, vsini', free params...] driven by
// the optimizer.
type Mapper struct {
	space     Space
	initial   Vector
	vsini     *float64
	fitVsini  bool
	free      []int
	transform VsiniTransform
}

// NewMapper creates a Mapper.
//
// initial provides the start values and the values of fixed parameters.
// vsini nil disables rotation; otherwise vsini is fitted unless fixed lists
// VsiniName. fixed may name any parameter of space.
func NewMapper(space Space, initial Vector, vsini *float64, fixed []string, t VsiniTransform) (*Mapper, error) {
	if err := space.Check(initial); err != nil {
		return nil, err
	}
	isFixed := make(map[string]bool, len(fixed))
	for _, n := range fixed {
		if n != VsiniName {
			if _, ok := space.Index(n); !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownName, n)
			}
		}
		isFixed[n] = true
	}

	m := &Mapper{
		space:     space,
		initial:   initial.Clone(),
		transform: t,
	}
	if vsini != nil {
		v := *vsini
		m.vsini = &v
		m.fitVsini = !isFixed[VsiniName]
	}
	for i, n := range space.names {
		if !isFixed[n] {
			m.free = append(m.free, i)
		}
	}
	return m, nil
}

// Dim returns the length of the optimizer vector.
func (m *Mapper) Dim() int {
	d := 1 + len(m.free)
	if m.fitVsini {
		d++
	}
	return d
}

// FitVsini reports whether vsini is a free parameter.
func (m *Mapper) FitVsini() bool { return m.fitVsini }

// Space returns the parameter space.
func (m *Mapper) Space() Space { return m.space }

// FreeNames returns the names of the free physical parameters.
func (m *Mapper) FreeNames() []string {
	out := make([]string, len(m.free))
	for i, k := range m.free {
		out[i] = m.space.names[k]
	}
	return out
}

// FreeIndices returns the space indices of the free physical parameters.
func (m *Mapper) FreeIndices() []int { return slices.Clone(m.free) }

// Start returns the optimizer start vector for the given velocity.
func (m *Mapper) Start(velocity float64) []float64 {
	x := make([]float64, 0, m.Dim())
	x = append(x, velocity)
	if m.fitVsini {
		x = append(x, m.transform.Forward(*m.vsini))
	}
	for _, k := range m.free {
		x = append(x, m.initial[k])
	}
	return x
}

// Map converts an optimizer vector to a Point.
func (m *Mapper) Map(x []float64) (Point, error) {
	if len(x) != m.Dim() {
		return Point{}, &ErrDimensionMismatch{Expected: m.Dim(), Actual: len(x)}
	}
	p := Point{Velocity: x[0]}
	pos := 1
	if m.fitVsini {
		v := m.transform.Inverse(x[pos])
		p.Vsini = &v
		pos++
	} else if m.vsini != nil {
		v := *m.vsini
		p.Vsini = &v
	}
	p.Params = m.initial.Clone()
	for _, k := range m.free {
		p.Params[k] = x[pos]
		pos++
	}
	return p, nil
}
