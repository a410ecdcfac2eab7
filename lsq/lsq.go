// Package lsq solves the inner linear problem of the fit: for fixed
// non-linear parameters, the amplitude and continuum coefficients that
// minimise the weighted chi-square have a closed form.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/specfit/internal/kernel"
	"gonum.org/v1/gonum/mat"
)

// DefaultRcond is the relative singular value cutoff below which a design
// matrix is treated as rank deficient.
const DefaultRcond = 1e-10

var (
	// ErrRankDeficient is returned when the basis vectors are linearly
	// dependent over the weighted pixels.
	ErrRankDeficient = errors.New("lsq: design matrix is rank deficient")
	// ErrNoBasis is returned when no basis vectors are given.
	ErrNoBasis = errors.New("lsq: no basis vectors")
	// ErrFactorization is returned when the SVD does not converge.
	ErrFactorization = errors.New("lsq: SVD factorization failed")
)

// ErrShape indicates an array whose length does not match the data.
type ErrShape struct {
	What     string
	Expected int
	Actual   int
}

func (e *ErrShape) Error() string {
	return fmt.Sprintf("lsq: %s has length %d, expected %d", e.What, e.Actual, e.Expected)
}

// RankError carries the rank found for a deficient design matrix.
type RankError struct {
	Rank    int
	Columns int
}

func (e *RankError) Error() string {
	return fmt.Sprintf("%v: rank %d < %d columns", ErrRankDeficient, e.Rank, e.Columns)
}

func (e *RankError) Unwrap() error { return ErrRankDeficient }

// Solution is the result of a weighted linear fit.
type Solution struct {
	// Coef holds one coefficient per basis vector.
	Coef []float64
	// Model is sum(Coef[i] * basis[i]) on every pixel.
	Model []float64
	// Chisq is sum(w * (obs - Model)^2).
	Chisq float64
}

// Weights converts standard deviations to weights 1/sigma^2. Infinite or
// non-positive sigmas give zero weight.
func Weights(sigma []float64) []float64 {
	w := make([]float64, len(sigma))
	for i, s := range sigma {
		if s > 0 && !math.IsInf(s, 1) {
			w[i] = 1 / (s * s)
		}
	}
	return w
}

// Fit finds the linear combination of basis vectors that minimises
// sum(w * (obs - sum(c_i * basis_i))^2).
//
// Columns are normalised before factorisation so the rank test does not
// depend on the flux units. A rank below len(basis) fails with a *RankError.
func Fit(obs, w []float64, basis [][]float64) (*Solution, error) {
	n := len(obs)
	k := len(basis)
	if k == 0 {
		return nil, ErrNoBasis
	}
	if len(w) != n {
		return nil, &ErrShape{What: "weights", Expected: n, Actual: len(w)}
	}
	for j, b := range basis {
		if len(b) != n {
			return nil, &ErrShape{What: fmt.Sprintf("basis[%d]", j), Expected: n, Actual: len(b)}
		}
	}

	sw := make([]float64, n)
	for i, wi := range w {
		if wi > 0 {
			sw[i] = math.Sqrt(wi)
		}
	}

	a := mat.NewDense(n, k, nil)
	scale := make([]float64, k)
	col := make([]float64, n)
	for j, b := range basis {
		for i := range col {
			col[i] = b[i] * sw[i]
		}
		norm := math.Sqrt(kernel.Dot(col, col))
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			return nil, &RankError{Rank: -1, Columns: k}
		}
		scale[j] = norm
		for i := range col {
			a.Set(i, j, col[i]/norm)
		}
	}

	rhs := make([]float64, n)
	for i := range rhs {
		if sw[i] != 0 {
			rhs[i] = obs[i] * sw[i]
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrFactorization
	}
	rank := svd.Rank(DefaultRcond)
	if rank < k {
		return nil, &RankError{Rank: rank, Columns: k}
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, mat.NewVecDense(n, rhs), rank)

	coef := make([]float64, k)
	for j := range coef {
		coef[j] = x.AtVec(j) / scale[j]
	}

	model := make([]float64, n)
	for j, b := range basis {
		kernel.Axpy(coef[j], b, model)
	}

	return &Solution{
		Coef:  coef,
		Model: model,
		Chisq: kernel.Chisq(obs, model, w),
	}, nil
}
