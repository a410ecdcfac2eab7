package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(4711)
	a := rng.NormFloat64()
	rng.Reset()
	assert.Equal(t, a, rng.NormFloat64())
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestNoisy(t *testing.T) {
	rng := NewRNG(1)
	model := make([]float64, 20000)
	for i := range model {
		model[i] = 2
	}

	flux, sigma := rng.Noisy(model, 20)
	require.Len(t, flux, len(model))

	var sum, sq float64
	for i := range flux {
		assert.Equal(t, 0.1, sigma[i])
		r := (flux[i] - model[i]) / sigma[i]
		sum += r
		sq += r * r
	}
	n := float64(len(flux))
	assert.InDelta(t, 0, sum/n, 0.05)
	assert.InDelta(t, 1, sq/n, 0.05)
}

func TestStellarFlux(t *testing.T) {
	wave := Linspace(4000, 4100, 1001)
	lines := Lines(4000, 4100, 3, 7)
	require.NotEmpty(t, lines)

	ref := StellarFlux(wave, lines, Star{Teff: 5000, Logg: 3})
	for _, f := range ref {
		assert.Greater(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}

	metalPoor := StellarFlux(wave, lines, Star{Teff: 5000, Logg: 3, Feh: -1})
	var dRef, dPoor float64
	for i := range wave {
		dRef += 1 - ref[i]
		dPoor += 1 - metalPoor[i]
	}
	assert.Less(t, dPoor, dRef, "lower metallicity weakens lines")

	hot := StellarFlux(wave, lines, Star{Teff: 6000, Logg: 3})
	var diff float64
	for i := range wave {
		diff += math.Abs(hot[i] - ref[i])
	}
	assert.Greater(t, diff, 1.0)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	assert.Equal(t, []float64{2}, Linspace(2, 3, 1))
}

func TestScale(t *testing.T) {
	got := Scale([]float64{1, 1, 1}, 2, 1)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, got, 1e-12)
}
