package optim

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotPositiveDefinite is returned when a Hessian cannot be inverted
	// into a covariance matrix (singular, flat, or a saddle).
	ErrNotPositiveDefinite = errors.New("optim: hessian is not positive definite")
	// ErrNonFinite is returned when the Hessian has NaN or infinite entries.
	ErrNonFinite = errors.New("optim: hessian has non-finite entries")
)

// HessianEstimator approximates the matrix of second derivatives of f at x.
// step holds a per-coordinate finite-difference step.
type HessianEstimator interface {
	Hessian(f Objective, x, step []float64) (*mat.SymDense, error)
}

// FiniteDiff estimates Hessians with gonum's finite-difference stencils.
//
// Coordinates are rescaled so that each step[i] maps to a unit step, which
// lets every parameter use its own step size.
type FiniteDiff struct {
	// Formula is a first-derivative stencil; the zero value selects fd.Central.
	Formula fd.Formula
}

// Hessian implements HessianEstimator.
func (e FiniteDiff) Hessian(f Objective, x, step []float64) (*mat.SymDense, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyPoint
	}
	if len(step) != n {
		return nil, fmt.Errorf("optim: %d steps for %d coordinates", len(step), n)
	}
	for i, s := range step {
		if !(s > 0) {
			return nil, fmt.Errorf("optim: step %d must be positive, got %g", i, s)
		}
	}

	formula := e.Formula
	if formula.Stencil == nil {
		formula = fd.Central
	}

	buf := make([]float64, n)
	scaled := func(u []float64) float64 {
		for i := range buf {
			buf[i] = x[i] + u[i]*step[i]
		}
		return f(buf)
	}

	h := mat.NewSymDense(n, nil)
	fd.Hessian(h, scaled, make([]float64, n), &fd.Settings{Formula: formula, Step: 1})

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := h.At(i, j) / (step[i] * step[j])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, ErrNonFinite
			}
			h.SetSym(i, j, v)
		}
	}
	return h, nil
}

// Covariance inverts a Hessian of 0.5*chi-square into a covariance matrix.
func Covariance(h mat.Symmetric) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return nil, ErrNotPositiveDefinite
	}
	cov := mat.NewSymDense(h.SymmetricDim(), nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPositiveDefinite, err)
	}
	return cov, nil
}

// Uncertainties returns the square roots of the covariance diagonal.
func Uncertainties(cov mat.Symmetric) []float64 {
	n := cov.SymmetricDim()
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sqrt(cov.At(i, i))
	}
	return out
}
