package template

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/hupe1980/specfit/internal/kernel"
	"github.com/hupe1980/specfit/param"
)

// axisTolerance absorbs rounding in parameters that sit exactly on a grid edge.
const axisTolerance = 1e-9

// Grid is a regular grid of templates for one setup.
// It is immutable and safe for concurrent use.
type Grid struct {
	setup   string
	space   param.Space
	axes    [][]float64
	strides []int
	wave    []float64
	flux    [][]float64
}

// NewGrid creates a Grid.
//
// axes holds one strictly ascending axis per parameter of space, in space
// order. flux holds one array per node, ordered with the last parameter
// varying fastest (the order of param.Space.Grid), each sampled on wave.
func NewGrid(setup string, space param.Space, axes [][]float64, wave []float64, flux [][]float64) (*Grid, error) {
	if len(axes) != space.Len() {
		return nil, fmt.Errorf("%w: %d axes for %d parameters", ErrInvalidGrid, len(axes), space.Len())
	}
	names := space.Names()
	for d, axis := range axes {
		if len(axis) == 0 {
			return nil, fmt.Errorf("%w: empty axis %q", ErrInvalidGrid, names[d])
		}
		for i, x := range axis {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: non-finite node on axis %q", ErrInvalidGrid, names[d])
			}
			if i > 0 && x <= axis[i-1] {
				return nil, fmt.Errorf("%w: axis %q is not strictly ascending", ErrInvalidGrid, names[d])
			}
		}
	}
	if len(wave) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 wavelengths", ErrInvalidGrid)
	}
	for i := 1; i < len(wave); i++ {
		if !(wave[i] > wave[i-1]) {
			return nil, fmt.Errorf("%w: wavelengths not strictly ascending at %d", ErrInvalidGrid, i)
		}
	}

	strides := make([]int, len(axes))
	nodes := 1
	for d := len(axes) - 1; d >= 0; d-- {
		strides[d] = nodes
		nodes *= len(axes[d])
	}
	if len(flux) != nodes {
		return nil, fmt.Errorf("%w: %d flux arrays for %d nodes", ErrInvalidGrid, len(flux), nodes)
	}
	for i, f := range flux {
		if len(f) != len(wave) {
			return nil, fmt.Errorf("%w: node %d has %d samples, want %d", ErrInvalidGrid, i, len(f), len(wave))
		}
	}

	ax := make([][]float64, len(axes))
	for d := range axes {
		ax[d] = slices.Clone(axes[d])
	}
	fl := make([][]float64, len(flux))
	for i := range flux {
		fl[i] = slices.Clone(flux[i])
	}

	return &Grid{
		setup:   setup,
		space:   space,
		axes:    ax,
		strides: strides,
		wave:    slices.Clone(wave),
		flux:    fl,
	}, nil
}

// BuildGrid evaluates model at every node of the grid spanned by axes
// (keyed by parameter name) and returns the resulting Grid.
func BuildGrid(setup string, space param.Space, axes map[string][]float64, wave []float64, model func(param.Vector) []float64) (*Grid, error) {
	nodes, err := space.Grid(axes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrid, err)
	}
	ordered := make([][]float64, space.Len())
	for d, n := range space.Names() {
		ordered[d] = axes[n]
	}
	flux := make([][]float64, len(nodes))
	for i, v := range nodes {
		flux[i] = model(v)
	}
	return NewGrid(setup, space, ordered, wave, flux)
}

// Setup returns the instrument setup served by the grid.
func (g *Grid) Setup() string { return g.setup }

// ParamSpace returns the parameter space of the grid.
func (g *Grid) ParamSpace() param.Space { return g.space }

// Axes returns a copy of the grid axes.
func (g *Grid) Axes() [][]float64 {
	out := make([][]float64, len(g.axes))
	for d := range g.axes {
		out[d] = slices.Clone(g.axes[d])
	}
	return out
}

// Wavelength returns the shared wavelength array. It must not be modified.
func (g *Grid) Wavelength() []float64 { return g.wave }

// NumNodes returns the number of grid nodes.
func (g *Grid) NumNodes() int { return len(g.flux) }

// Space implements Source.
func (g *Grid) Space(setup string) (param.Space, error) {
	if setup != g.setup {
		return param.Space{}, fmt.Errorf("%w: %q", ErrUnknownSetup, setup)
	}
	return g.space, nil
}

// Lookup implements Source by multilinear interpolation.
func (g *Grid) Lookup(ctx context.Context, setup string, v param.Vector) (*Template, error) {
	if setup != g.setup {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSetup, setup)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.interpolate(v)
}

func (g *Grid) interpolate(v param.Vector) (*Template, error) {
	if err := g.space.Check(v); err != nil {
		return nil, err
	}

	dim := len(g.axes)
	lo := make([]int, dim)
	frac := make([]float64, dim)
	for d, axis := range g.axes {
		i, t, err := g.locate(d, axis, v[d])
		if err != nil {
			return nil, err
		}
		lo[d], frac[d] = i, t
	}

	out := make([]float64, len(g.wave))
	for corner := 0; corner < 1<<dim; corner++ {
		w := 1.0
		node := 0
		for d := range dim {
			idx := lo[d]
			if corner&(1<<d) != 0 {
				if frac[d] == 0 {
					w = 0
					break
				}
				idx++
				w *= frac[d]
			} else {
				w *= 1 - frac[d]
			}
			node += idx * g.strides[d]
		}
		if w == 0 {
			continue
		}
		kernel.Axpy(w, g.flux[node], out)
	}

	return &Template{Wavelength: g.wave, Flux: out}, nil
}

// locate returns the lower node index of the cell holding x and the
// fractional position inside it.
func (g *Grid) locate(d int, axis []float64, x float64) (int, float64, error) {
	first, last := axis[0], axis[len(axis)-1]
	tol := axisTolerance * math.Max(1, math.Max(math.Abs(first), math.Abs(last)))
	if math.IsNaN(x) || x < first-tol || x > last+tol {
		return 0, 0, &CoverageError{
			Setup: g.setup,
			Param: g.space.Names()[d],
			Value: x,
			Min:   first,
			Max:   last,
		}
	}
	if len(axis) == 1 || x <= first {
		return 0, 0, nil
	}
	if x >= last {
		return len(axis) - 2, 1, nil
	}
	i := sort.SearchFloat64s(axis, x)
	if axis[i] == x {
		return i, 0, nil
	}
	lo := i - 1
	return lo, (x - axis[lo]) / (axis[i] - axis[lo]), nil
}
