package testutil

import (
	"math"
	"sort"
)

// Star is a point in the toy atmospheric parameter space.
type Star struct {
	Teff  float64
	Logg  float64
	Feh   float64
	Alpha float64
}

// Line is a Gaussian absorption line of the toy model.
type Line struct {
	Center float64
	Tau    float64 // central optical depth at the reference star
	Sigma  float64 // Gaussian width in wavelength units
	Group  int     // which parameters the line responds to
}

// Lines returns a deterministic line list covering [lo, hi] with the given
// mean spacing.
func Lines(lo, hi, spacing float64, seed int64) []Line {
	rng := NewRNG(seed)
	var lines []Line
	for c := lo + spacing*rng.Float64(); c < hi; c += spacing * (0.5 + rng.Float64()) {
		lines = append(lines, Line{
			Center: c,
			Tau:    0.3 + 0.7*rng.Float64(),
			Sigma:  0.5 + 0.4*rng.Float64(),
			Group:  len(lines) % 4,
		})
	}
	return lines
}

func (l Line) at(s Star) (tau, sigma float64) {
	t := (s.Teff - 5000) / 1000
	g := s.Logg - 3
	m := s.Feh
	a := s.Alpha

	sigma = l.Sigma
	switch l.Group {
	case 0:
		tau = l.Tau * math.Exp(0.8*m-1.2*t)
	case 1:
		tau = l.Tau * math.Exp(0.8*m+0.9*t)
	case 2:
		tau = l.Tau * math.Exp(0.8*m+0.7*a)
		sigma *= 1 + 0.15*g
	default:
		tau = l.Tau * math.Exp(0.5*m-0.4*g)
	}
	return tau, sigma
}

// StellarFlux evaluates the continuum-normalised toy spectrum of s at the
// given ascending wavelengths.
func StellarFlux(wave []float64, lines []Line, s Star) []float64 {
	depth := make([]float64, len(wave))
	for _, l := range lines {
		tau, sigma := l.at(s)
		lo := sort.SearchFloat64s(wave, l.Center-5*sigma)
		hi := sort.SearchFloat64s(wave, l.Center+5*sigma)
		for i := lo; i < hi; i++ {
			x := (wave[i] - l.Center) / sigma
			depth[i] += tau * math.Exp(-0.5*x*x)
		}
	}
	flux := make([]float64, len(wave))
	for i, d := range depth {
		flux[i] = math.Exp(-d)
	}
	return flux
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Scale multiplies xs by a polynomial continuum c0 + c1*u, u in [-1, 1]
// across the array, returning a new slice.
func Scale(xs []float64, c0, c1 float64) []float64 {
	out := make([]float64, len(xs))
	n := float64(max(len(xs)-1, 1))
	for i, x := range xs {
		u := 2*float64(i)/n - 1
		out[i] = x * (c0 + c1*u)
	}
	return out
}
