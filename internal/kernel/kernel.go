package kernel

import (
	"math"
	"os"
	"strings"
)

// Variant identifies the active kernel implementation.
type Variant uint8

const (
	// Generic is the plain Go implementation.
	Generic Variant = iota
	// FMA uses math.FMA with four independent accumulators.
	FMA
)

// String returns the string representation of a Variant.
func (v Variant) String() string {
	switch v {
	case Generic:
		return "generic"
	case FMA:
		return "fma"
	default:
		return "unknown"
	}
}

// Kernel function pointers, set once at init.
var (
	kernelDot   = dotGeneric
	kernelAxpy  = axpyGeneric
	kernelChisq = chisqGeneric

	active      Variant
	hasFMA      bool
	hasOverride bool
)

// initCapabilities is called from platform-specific init functions
// after CPU features are detected.
func initCapabilities() {
	if override := os.Getenv("SPECFIT_KERNEL"); override != "" {
		if strings.EqualFold(strings.TrimSpace(override), "generic") {
			hasOverride = true
			active = Generic
			return
		}
	}

	if hasFMA {
		kernelDot = dotFMA
		kernelAxpy = axpyFMA
		kernelChisq = chisqFMA
		active = FMA
		return
	}
	active = Generic
}

// Active returns the selected kernel variant.
func Active() Variant {
	return active
}

// IsOverridden returns true if SPECFIT_KERNEL forced the generic kernels.
func IsOverridden() bool {
	return hasOverride
}

// Dot returns the dot product of a and b.
//
// SAFETY: Assumes len(a) == len(b).
func Dot(a, b []float64) float64 {
	return kernelDot(a, b)
}

// Axpy computes y += alpha*x in place.
//
// SAFETY: Assumes len(x) == len(y).
func Axpy(alpha float64, x, y []float64) {
	kernelAxpy(alpha, x, y)
}

// Chisq returns sum(w * (obs-model)^2). Pixels with zero weight are skipped,
// so non-finite model values there do not poison the sum.
//
// SAFETY: Assumes all slices share a length.
func Chisq(obs, model, w []float64) float64 {
	return kernelChisq(obs, model, w)
}

func dotGeneric(a, b []float64) float64 {
	var ret float64
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

func axpyGeneric(alpha float64, x, y []float64) {
	for i := range x {
		y[i] += alpha * x[i]
	}
}

func chisqGeneric(obs, model, w []float64) float64 {
	var ret float64
	for i := range obs {
		if w[i] == 0 {
			continue
		}
		d := obs[i] - model[i]
		ret += w[i] * d * d
	}
	return ret
}

func dotFMA(a, b []float64) float64 {
	var s0, s1, s2, s3 float64
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 = math.FMA(a[i], b[i], s0)
		s1 = math.FMA(a[i+1], b[i+1], s1)
		s2 = math.FMA(a[i+2], b[i+2], s2)
		s3 = math.FMA(a[i+3], b[i+3], s3)
	}
	for ; i < n; i++ {
		s0 = math.FMA(a[i], b[i], s0)
	}
	return (s0 + s1) + (s2 + s3)
}

func axpyFMA(alpha float64, x, y []float64) {
	for i := range x {
		y[i] = math.FMA(alpha, x[i], y[i])
	}
}

func chisqFMA(obs, model, w []float64) float64 {
	var s0, s1 float64
	n := len(obs)
	i := 0
	for ; i+2 <= n; i += 2 {
		if w[i] != 0 {
			d := obs[i] - model[i]
			s0 = math.FMA(w[i]*d, d, s0)
		}
		if w[i+1] != 0 {
			d := obs[i+1] - model[i+1]
			s1 = math.FMA(w[i+1]*d, d, s1)
		}
	}
	for ; i < n; i++ {
		if w[i] != 0 {
			d := obs[i] - model[i]
			s0 = math.FMA(w[i]*d, d, s0)
		}
	}
	return s0 + s1
}
