package optim

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// ErrEmptyPoint is returned when the start point has no coordinates.
var ErrEmptyPoint = errors.New("optim: empty start point")

// Objective is a scalar function to minimise.
type Objective func(x []float64) float64

// Tolerance controls convergence.
type Tolerance struct {
	// FAbs is the absolute change in the objective considered negligible.
	FAbs float64
	// XAbs is the absolute change of any coordinate considered negligible.
	XAbs float64
	// MaxIterations bounds the number of major iterations (0 = unbounded).
	MaxIterations int
	// MaxEvaluations bounds objective evaluations (0 = unbounded).
	MaxEvaluations int
}

// DefaultTolerance mirrors the fatol/xatol settings used for spectral fits.
func DefaultTolerance() Tolerance {
	return Tolerance{
		FAbs:           1e-3,
		XAbs:           1e-2,
		MaxIterations:  2000,
		MaxEvaluations: 10000,
	}
}

// Minimum is the outcome of a minimisation.
type Minimum struct {
	X           []float64
	F           float64
	Iterations  int
	Evaluations int
	// Converged is false when an iteration or evaluation limit stopped the run.
	Converged bool
}

// Minimizer finds a local minimum of an objective.
type Minimizer interface {
	Minimize(f Objective, x0 []float64, tol Tolerance) (*Minimum, error)
}

// NelderMead is a downhill simplex Minimizer.
//
// The initial simplex perturbs each coordinate of the start point by
// NonzeroDelta relative to its value, or by ZeroDelta when it is zero.
type NelderMead struct {
	NonzeroDelta float64
	ZeroDelta    float64
	// Patience is the number of consecutive iterations within tolerance that
	// count as converged. 0 means 2*(dim+1).
	Patience int
}

// NewNelderMead returns a NelderMead with the classic 5% / 0.00025 simplex.
func NewNelderMead() *NelderMead {
	return &NelderMead{NonzeroDelta: 0.05, ZeroDelta: 0.00025}
}

// Minimize implements Minimizer.
func (nm *NelderMead) Minimize(f Objective, x0 []float64, tol Tolerance) (*Minimum, error) {
	dim := len(x0)
	if dim == 0 {
		return nil, ErrEmptyPoint
	}

	patience := nm.Patience
	if patience <= 0 {
		patience = 2 * (dim + 1)
	}

	var evals int
	counted := func(x []float64) float64 {
		evals++
		return f(x)
	}

	vertices := nm.simplex(x0)
	values := make([]float64, len(vertices))
	for i, v := range vertices {
		values[i] = counted(v)
	}

	method := &optimize.NelderMead{InitialVertices: vertices, InitialValues: values}
	problem := optimize.Problem{Func: counted}
	settings := &optimize.Settings{
		// The first vertex is x0.
		InitValues: &optimize.Location{F: values[0]},
		Converger: &simplexConverger{
			fAbs:     tol.FAbs,
			xAbs:     tol.XAbs,
			patience: patience,
		},
		MajorIterations: tol.MaxIterations,
		FuncEvaluations: tol.MaxEvaluations,
	}

	res, err := optimize.Minimize(problem, append([]float64(nil), x0...), settings, method)
	if res == nil {
		return nil, fmt.Errorf("optim: nelder-mead: %w", err)
	}

	converged := true
	switch res.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		converged = false
	default:
		if err != nil {
			return nil, fmt.Errorf("optim: nelder-mead: %w", err)
		}
	}

	return &Minimum{
		X:           append([]float64(nil), res.X...),
		F:           res.F,
		Iterations:  res.MajorIterations,
		Evaluations: evals,
		Converged:   converged,
	}, nil
}

func (nm *NelderMead) simplex(x0 []float64) [][]float64 {
	nz := nm.NonzeroDelta
	if nz == 0 {
		nz = 0.05
	}
	z := nm.ZeroDelta
	if z == 0 {
		z = 0.00025
	}

	dim := len(x0)
	vertices := make([][]float64, dim+1)
	vertices[0] = append([]float64(nil), x0...)
	for i := 0; i < dim; i++ {
		v := append([]float64(nil), x0...)
		if v[i] != 0 {
			v[i] *= 1 + nz
		} else {
			v[i] = z
		}
		vertices[i+1] = v
	}
	return vertices
}

// simplexConverger stops once the best vertex has moved by less than xAbs in
// every coordinate and improved by less than fAbs for patience consecutive
// iterations.
type simplexConverger struct {
	fAbs     float64
	xAbs     float64
	patience int

	bestF float64
	bestX []float64
	calm  int
}

func (c *simplexConverger) Init(dim int) {
	c.bestF = math.Inf(1)
	c.bestX = nil
	c.calm = 0
}

func (c *simplexConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.bestX != nil && math.Abs(loc.F-c.bestF) <= c.fAbs && maxAbsDiff(loc.X, c.bestX) <= c.xAbs {
		c.calm++
	} else {
		c.calm = 0
	}
	c.bestF = loc.F
	c.bestX = append(c.bestX[:0], loc.X...)

	if c.calm >= c.patience {
		return optimize.FunctionConvergence
	}
	return optimize.NotTerminated
}

func maxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}
