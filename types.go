package specfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vsini returns a pointer to v for use as an optional rotation argument.
// A nil vsini means no rotational broadening.
func Vsini(v float64) *float64 { return &v }

// ArmResolution describes the instrumental resolution of one arm.
//
// Matrix, when set, is applied to the template after resampling onto the
// observed wavelengths and must be square with one row per pixel.
// Otherwise a positive Power builds a Gaussian line-spread matrix of
// resolving power R.
type ArmResolution struct {
	Matrix mat.Matrix
	Power  float64
}

// Resolution maps arm names to their resolution. Arms without an entry are
// not convolved.
type Resolution map[string]ArmResolution

// VelocityGrid is a strictly increasing sequence of trial velocities in km/s.
type VelocityGrid []float64

// LinearGrid returns lo, lo+step, ... up to but excluding hi.
func LinearGrid(lo, hi, step float64) VelocityGrid {
	if !(step > 0) || !(hi > lo) {
		return nil
	}
	n := int(math.Ceil((hi - lo) / step))
	g := make(VelocityGrid, 0, n)
	for i := 0; i < n; i++ {
		v := lo + float64(i)*step
		if v >= hi {
			break
		}
		g = append(g, v)
	}
	return g
}

// CenteredGrid returns a grid through center with the given step, covering
// [lo, hi) on both sides. center itself is always included.
func CenteredGrid(center, lo, hi, step float64) VelocityGrid {
	if !(step > 0) {
		return VelocityGrid{center}
	}
	nBelow := 0
	for center-float64(nBelow+1)*step > lo {
		nBelow++
	}
	g := make(VelocityGrid, 0, nBelow+1+max(int((hi-center)/step), 0))
	for i := nBelow; i >= 0; i-- {
		g = append(g, center-float64(i)*step)
	}
	for i := 1; center+float64(i)*step < hi; i++ {
		g = append(g, center+float64(i)*step)
	}
	return g
}

// Validate checks that the grid is strictly increasing and finite.
func (g VelocityGrid) Validate() error {
	for i, v := range g {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigError{Field: "velocity grid", Reason: fmt.Sprintf("non-finite value at %d", i)}
		}
		if i > 0 && !(v > g[i-1]) {
			return &ConfigError{Field: "velocity grid", Reason: fmt.Sprintf("not strictly increasing at %d", i)}
		}
	}
	return nil
}

// Span returns the distance between the first and last velocity.
func (g VelocityGrid) Span() float64 {
	if len(g) == 0 {
		return 0
	}
	return g[len(g)-1] - g[0]
}
