package specfit

import (
	"context"
	"math"
	"time"

	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/spectrum"
	"gonum.org/v1/gonum/stat"
)

// minGridPoints is the smallest velocity grid with a defined curvature.
const minGridPoints = 3

// GridResult is the outcome of FindBest.
type GridResult struct {
	// Velocity is the grid velocity with the lowest chi-square.
	Velocity float64
	// VelErr is the velocity uncertainty from the curvature of the
	// chi-square profile at the minimum.
	VelErr float64
	// Params is the best candidate vector.
	Params param.Vector
	// Chisq is the global minimum chi-square.
	Chisq float64
	// Skewness and Kurtosis (excess) describe the normalised likelihood
	// exp(-0.5*(chisq-min)) over the grid velocities.
	Skewness float64
	Kurtosis float64
	// AtBoundary is set when the minimum lies on the first or last grid
	// velocity. VelErr is then the grid span and carries no precision.
	AtBoundary bool
	// CurvatureOK is false when the profile is not convex at the minimum;
	// VelErr then falls back to the likelihood standard deviation.
	CurvatureOK bool
	// Velocities and Profile are the grid and the chi-square of the best
	// vector at each velocity.
	Velocities VelocityGrid
	Profile    []float64
}

// FindBest evaluates Chisq for every pair of candidate vector and grid
// velocity and returns the global minimum. The grid needs at least three
// velocities.
func (f *Fitter) FindBest(ctx context.Context, specs []*spectrum.Spectrum, vels VelocityGrid, vectors []param.Vector, vsini *float64, res Resolution) (*GridResult, error) {
	ev, err := f.prepare(specs, res)
	if err != nil {
		return nil, err
	}
	return ev.findBest(ctx, vels, vectors, vsini)
}

func (e *evaluator) findBest(ctx context.Context, vels VelocityGrid, vectors []param.Vector, vsini *float64) (*GridResult, error) {
	start := time.Now()
	points := len(vels) * len(vectors)

	r, err := e.scanGrid(ctx, vels, vectors, vsini)
	e.f.opts.metricsCollector.RecordGridSearch(points, time.Since(start), err)
	e.f.opts.logger.LogGridSearch(ctx, len(vels), len(vectors), r, err)
	return r, err
}

func (e *evaluator) scanGrid(ctx context.Context, vels VelocityGrid, vectors []param.Vector, vsini *float64) (*GridResult, error) {
	if len(vels) < minGridPoints {
		return nil, &InsufficientGridError{Points: len(vels)}
	}
	if err := vels.Validate(); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &ConfigError{Field: "vectors", Reason: "no candidate parameter vectors"}
	}
	for _, v := range vectors {
		if err := e.space.Check(v); err != nil {
			return nil, translateError(err, e.arms[0].spec.Name(), v)
		}
	}

	best := math.Inf(1)
	bestVec, bestVel := -1, -1
	var profile []float64
	row := make([]float64, len(vels))
	for i, vec := range vectors {
		for j, vel := range vels {
			r, err := e.chisq(ctx, param.Point{Velocity: vel, Vsini: vsini, Params: vec})
			if err != nil {
				return nil, err
			}
			row[j] = r.Chisq
			if r.Chisq < best {
				best = r.Chisq
				bestVec, bestVel = i, j
			}
		}
		if bestVec == i {
			profile = append(profile[:0], row...)
		}
	}
	if bestVec < 0 {
		// Every evaluation was NaN.
		return nil, &LinearFitError{Arm: e.arms[0].spec.Name(), Rank: -1}
	}

	out := &GridResult{
		Velocity:    vels[bestVel],
		Params:      vectors[bestVec].Clone(),
		Chisq:       best,
		Velocities:  append(VelocityGrid(nil), vels...),
		Profile:     profile,
		CurvatureOK: true,
	}

	likelihood := make([]float64, len(vels))
	for j, c := range profile {
		likelihood[j] = math.Exp(-0.5 * (c - best))
	}
	m2 := stat.Moment(2, vels, likelihood)
	if m2 > 0 {
		out.Skewness = stat.Moment(3, vels, likelihood) / math.Pow(m2, 1.5)
		out.Kurtosis = stat.Moment(4, vels, likelihood)/(m2*m2) - 3
	}

	switch {
	case bestVel == 0 || bestVel == len(vels)-1:
		out.AtBoundary = true
		out.CurvatureOK = false
		out.VelErr = vels.Span()
	default:
		a := curvature(vels[bestVel-1], vels[bestVel], vels[bestVel+1],
			profile[bestVel-1], profile[bestVel], profile[bestVel+1])
		if a > 0 && !math.IsInf(a, 0) {
			out.VelErr = 1 / math.Sqrt(a)
		} else {
			out.CurvatureOK = false
			out.VelErr = math.Sqrt(m2)
		}
	}
	return out, nil
}

// curvature returns the quadratic coefficient a of the parabola
// a*x^2 + b*x + c through three points with x0 < x1 < x2.
func curvature(x0, x1, x2, y0, y1, y2 float64) float64 {
	d1 := (y1 - y0) / (x1 - x0)
	d2 := (y2 - y1) / (x2 - x1)
	return (d2 - d1) / (x2 - x0)
}
