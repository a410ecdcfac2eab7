package template

import (
	"context"
	"testing"

	"github.com/hupe1980/specfit/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpace = param.MustSpace("teff", "logg")

// linearModel is exactly reproduced by multilinear interpolation.
func linearModel(wave []float64) func(param.Vector) []float64 {
	return func(v param.Vector) []float64 {
		out := make([]float64, len(wave))
		for i, w := range wave {
			out[i] = 1 + 1e-4*v[0] + 0.1*v[1] + 1e-3*w + 1e-6*v[0]*v[1]
		}
		return out
	}
}

func newTestGrid(t *testing.T, setup string) *Grid {
	t.Helper()
	wave := []float64{4000, 4001, 4002, 4003}
	g, err := BuildGrid(setup, testSpace, map[string][]float64{
		"teff": {4000, 5000, 6000},
		"logg": {1, 2, 3, 4},
	}, wave, linearModel(wave))
	require.NoError(t, err)
	return g
}

func TestGrid_LookupNode(t *testing.T) {
	g := newTestGrid(t, "b")
	assert.Equal(t, 12, g.NumNodes())

	tpl, err := g.Lookup(t.Context(), "b", param.Vector{5000, 3})
	require.NoError(t, err)
	assert.InDeltaSlice(t, linearModel(g.Wavelength())(param.Vector{5000, 3}), tpl.Flux, 1e-12)
	assert.Equal(t, 4, tpl.Len())
}

func TestGrid_LookupInterpolates(t *testing.T) {
	g := newTestGrid(t, "b")
	model := linearModel(g.Wavelength())

	for _, v := range []param.Vector{{4250, 1.5}, {5999.5, 3.9}, {6000, 4}, {4000, 1}} {
		tpl, err := g.Lookup(t.Context(), "b", v)
		require.NoError(t, err)
		assert.InDeltaSlice(t, model(v), tpl.Flux, 1e-9, "at %v", v)
	}
}

func TestGrid_Coverage(t *testing.T) {
	g := newTestGrid(t, "b")

	_, err := g.Lookup(t.Context(), "b", param.Vector{6500, 2})
	require.ErrorIs(t, err, ErrOutsideCoverage)
	var ce *CoverageError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "teff", ce.Param)
	assert.Equal(t, 6000.0, ce.Max)

	_, err = g.Lookup(t.Context(), "b", param.Vector{5000, 0.5})
	assert.ErrorIs(t, err, ErrOutsideCoverage)

	_, err = g.Lookup(t.Context(), "r", param.Vector{5000, 2})
	assert.ErrorIs(t, err, ErrUnknownSetup)

	_, err = g.Lookup(t.Context(), "b", param.Vector{5000})
	var dm *param.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = g.Lookup(ctx, "b", param.Vector{5000, 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGrid_SingletonAxis(t *testing.T) {
	space := param.MustSpace("teff", "alpha")
	wave := []float64{1, 2}
	g, err := BuildGrid("z", space, map[string][]float64{
		"teff":  {4000, 5000},
		"alpha": {0},
	}, wave, func(v param.Vector) []float64 { return []float64{v[0], v[0] + 1} })
	require.NoError(t, err)

	tpl, err := g.Lookup(t.Context(), "z", param.Vector{4500, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4500, 4501}, tpl.Flux, 1e-9)

	_, err = g.Lookup(t.Context(), "z", param.Vector{4500, 0.1})
	assert.ErrorIs(t, err, ErrOutsideCoverage)
}

func TestNewGrid_Invalid(t *testing.T) {
	wave := []float64{1, 2}
	ok := [][]float64{{1, 1}, {2, 2}}

	tests := []struct {
		name string
		axes [][]float64
		wave []float64
		flux [][]float64
	}{
		{"axis count", [][]float64{{1, 2}}, wave, ok},
		{"descending axis", [][]float64{{2, 1}, {0}}, wave, ok},
		{"empty axis", [][]float64{{1, 2}, {}}, wave, ok},
		{"short wave", [][]float64{{1, 2}, {0}}, []float64{1}, [][]float64{{1}, {2}}},
		{"unsorted wave", [][]float64{{1, 2}, {0}}, []float64{2, 1}, ok},
		{"node count", [][]float64{{1, 2}, {0}}, wave, ok[:1]},
		{"flux length", [][]float64{{1, 2}, {0}}, wave, [][]float64{{1}, {2, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid("b", testSpace, tt.axes, tt.wave, tt.flux)
			assert.ErrorIs(t, err, ErrInvalidGrid)
		})
	}
}

func TestGrid_Immutable(t *testing.T) {
	wave := []float64{1, 2}
	flux := [][]float64{{1, 1}, {2, 2}}
	g, err := NewGrid("b", testSpace, [][]float64{{1, 2}, {0}}, wave, flux)
	require.NoError(t, err)

	flux[0][0] = 99
	wave[0] = -1
	tpl, err := g.Lookup(t.Context(), "b", param.Vector{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, tpl.Flux)
	assert.Equal(t, 1.0, g.Wavelength()[0])
}
