package specfit

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/hupe1980/specfit/optim"
	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/spectrum"
	"gonum.org/v1/gonum/mat"
)

// hessianRelStep and hessianMinStep set the finite-difference step of each
// parameter: max(hessianRelStep*|p|, hessianMinStep).
const (
	hessianRelStep = 1e-4
	hessianMinStep = 1e-4
)

// Guess is the starting point of Process.
type Guess struct {
	// Params holds a value for every parameter of the space. Fixed
	// parameters keep these values.
	Params map[string]float64
	// Vsini enables rotational broadening when non-nil.
	Vsini *float64
	// Velocity is the rough velocity estimate. It centres the seed grid
	// when Config.SeedWindow is set.
	Velocity float64
	// Fixed lists parameters held constant, optionally including "vsini".
	Fixed []string
}

// Result is the outcome of Process.
type Result struct {
	Space param.Space

	Velocity float64
	VelErr   float64
	// VelocityClamped is set when the optimum left [MinVel, MaxVel] and was
	// moved to the nearest bound.
	VelocityClamped bool

	Params param.Vector
	// ParamErr holds the 1-sigma uncertainty of each parameter, zero for
	// fixed ones. It is nil when HessianErr is set.
	ParamErr param.Vector
	// Covariance of the free parameters, in the order of FreeParams.
	Covariance *mat.SymDense
	FreeParams []string
	// HessianErr reports why parameter uncertainties are unavailable. It
	// matches ErrNonInvertibleHessian.
	HessianErr error

	// Vsini is the best vsini, nil when no rotation was applied.
	Vsini    *float64
	FitVsini bool

	Chisq    float64
	Arms     []string
	ArmChisq []float64
	Models   [][]float64

	Skewness float64
	Kurtosis float64

	// Converged reports whether the simplex met its tolerances.
	Converged bool
	// ScanConverged reports whether the velocity scan reached a step fine
	// enough for its uncertainty within MaxScanIterations.
	ScanConverged  bool
	ScanIterations int
	// Evaluations counts chi-square evaluations of the whole fit.
	Evaluations int
}

// ParamMap returns the best parameters keyed by name.
func (r *Result) ParamMap() map[string]float64 { return r.Space.ToMap(r.Params) }

// ParamErrMap returns the parameter uncertainties keyed by name, or nil.
func (r *Result) ParamErrMap() map[string]float64 {
	if r.ParamErr == nil {
		return nil
	}
	return r.Space.ToMap(r.ParamErr)
}

// Process fits velocity, vsini and the free parameters of specs.
//
// A seed grid search refines the starting velocity, a Nelder-Mead simplex
// optimises [velocity, log(vsini), free parameters...], the velocity
// uncertainty comes from an adaptive chi-square scan and the parameter
// covariance from the Hessian of 0.5*chisq. A singular Hessian is reported in
// Result.HessianErr and does not fail the fit.
func (f *Fitter) Process(ctx context.Context, specs []*spectrum.Spectrum, guess Guess, res Resolution) (*Result, error) {
	start := time.Now()
	var evals int
	r, err := f.process(ctx, specs, guess, res, &evals)
	if r != nil {
		r.Evaluations = evals
	}
	f.opts.metricsCollector.RecordProcess(evals, time.Since(start), err)
	f.opts.logger.LogProcess(ctx, r, time.Since(start), err)
	return r, err
}

func (f *Fitter) process(ctx context.Context, specs []*spectrum.Spectrum, guess Guess, res Resolution, evals *int) (*Result, error) {
	ev, err := f.prepare(specs, res)
	if err != nil {
		return nil, err
	}
	defer func() { *evals = ev.evals }()

	cfg := f.cfg
	params0, err := ev.space.FromMap(guess.Params)
	if err != nil {
		return nil, translateError(err, specs[0].Name(), nil)
	}
	if guess.Vsini != nil && (*guess.Vsini < 0 || math.IsNaN(*guess.Vsini)) {
		return nil, &ConfigError{Field: "vsini", Reason: "must be non-negative"}
	}

	// Seed.
	seedGrid := LinearGrid(cfg.MinVel, cfg.MaxVel, cfg.VelStep0)
	if cfg.SeedWindow > 0 {
		lo := math.Max(guess.Velocity-cfg.SeedWindow, cfg.MinVel)
		hi := math.Min(guess.Velocity+cfg.SeedWindow, cfg.MaxVel)
		seedGrid = LinearGrid(lo, hi, cfg.VelStep0)
	}
	seed, err := ev.findBest(ctx, seedGrid, []param.Vector{params0}, guess.Vsini)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Non-linear minimisation.
	mapper, err := param.NewMapper(ev.space, params0, guess.Vsini, guess.Fixed,
		param.VsiniTransform{Min: cfg.MinVsini, Max: cfg.MaxVsini})
	if err != nil {
		return nil, translateError(err, specs[0].Name(), params0)
	}

	var fatal error
	objective := func(x []float64) float64 {
		if fatal != nil {
			return BadChisq
		}
		p, err := mapper.Map(x)
		if err != nil {
			fatal = err
			return BadChisq
		}
		if p.Velocity > cfg.MaxVel || p.Velocity < cfg.MinVel {
			return BadChisq
		}
		r, err := ev.chisq(ctx, p)
		if err != nil {
			if errors.Is(err, ErrTemplateLookup) {
				return BadChisq
			}
			fatal = err
			return BadChisq
		}
		return r.Chisq
	}

	m, err := f.opts.minimizer.Minimize(objective, mapper.Start(seed.Velocity), f.opts.tolerance)
	if err != nil {
		return nil, err
	}
	if fatal != nil {
		return nil, fatal
	}
	best, err := mapper.Map(m.X)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Result{
		Space:      ev.space,
		Params:     best.Params,
		Vsini:      best.Vsini,
		FitVsini:   mapper.FitVsini(),
		FreeParams: mapper.FreeNames(),
		Converged:  m.Converged,
	}

	// Clamp.
	bestVel := best.Velocity
	if bestVel > cfg.MaxVel || bestVel < cfg.MinVel {
		clamped := math.Min(math.Max(bestVel, cfg.MinVel), cfg.MaxVel)
		f.opts.logger.LogVelocityClamped(ctx, bestVel, clamped)
		bestVel = clamped
		out.VelocityClamped = true
	}
	out.Velocity = bestVel

	// Velocity uncertainty.
	scan, err := ev.scanVelocity(ctx, bestVel, best.Params, best.Vsini, out)
	if err != nil {
		return nil, err
	}
	out.VelErr = scan.VelErr
	out.Skewness = scan.Skewness
	out.Kurtosis = scan.Kurtosis

	// Final model.
	final, err := ev.chisq(ctx, param.Point{Velocity: bestVel, Vsini: best.Vsini, Params: best.Params})
	if err != nil {
		return nil, err
	}
	out.Chisq = final.Chisq
	out.Arms = final.Arms
	out.ArmChisq = final.ArmChisq
	out.Models = final.Models

	// Parameter covariance.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev.covariance(ctx, mapper, bestVel, best, out)

	return out, nil
}

// scanVelocity refines the velocity uncertainty with chi-square scans of
// shrinking step and range around v until the step resolves the
// uncertainty.
func (e *evaluator) scanVelocity(ctx context.Context, v float64, params param.Vector, vsini *float64, out *Result) (*GridResult, error) {
	cfg := e.f.cfg
	lo, hi := cfg.MinVel, cfg.MaxVel
	step := cfg.VelStep0

	var last *GridResult
	for it := 1; it <= cfg.MaxScanIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := e.findBest(ctx, CenteredGrid(v, lo, hi, step), []param.Vector{params}, vsini)
		if err != nil {
			return nil, err
		}
		last = r
		out.ScanIterations = it
		e.f.opts.logger.LogScan(ctx, it, step, lo, hi, r.VelErr)

		if step < r.VelErr/cfg.CritRatio || step <= cfg.MinVelStep {
			out.ScanConverged = true
			break
		}
		step = math.Max(math.Max(r.VelErr, step)/cfg.CritRatio*0.8, cfg.MinVelStep)
		width := math.Max(r.VelErr, step) * 10
		lo = math.Max(v-width, lo)
		hi = math.Min(v+width, hi)
	}
	return last, nil
}

// covariance estimates the uncertainties of the free parameters from the
// Hessian of 0.5*chisq at fixed velocity and vsini.
func (e *evaluator) covariance(ctx context.Context, mapper *param.Mapper, v float64, best param.Point, out *Result) {
	idx := mapper.FreeIndices()
	if len(idx) == 0 {
		out.ParamErr = make(param.Vector, len(best.Params))
		return
	}

	x0 := make([]float64, len(idx))
	step := make([]float64, len(idx))
	for i, k := range idx {
		x0[i] = best.Params[k]
		step[i] = math.Max(hessianRelStep*math.Abs(x0[i]), hessianMinStep)
	}

	trial := best.Params.Clone()
	half := func(x []float64) float64 {
		for i, k := range idx {
			trial[k] = x[i]
		}
		r, err := e.chisq(ctx, param.Point{Velocity: v, Vsini: best.Vsini, Params: trial})
		if err != nil {
			return math.NaN()
		}
		return 0.5 * r.Chisq
	}

	fail := func(err error) {
		out.HessianErr = &HessianError{Params: mapper.FreeNames(), cause: err}
		e.f.opts.logger.LogHessian(ctx, mapper.FreeNames(), nil, out.HessianErr)
	}

	h, err := e.f.opts.hessian.Hessian(half, x0, step)
	if err != nil {
		fail(err)
		return
	}
	cov, err := optim.Covariance(h)
	if err != nil {
		fail(err)
		return
	}

	errs := optim.Uncertainties(cov)
	out.Covariance = cov
	out.ParamErr = make(param.Vector, len(best.Params))
	for i, k := range idx {
		out.ParamErr[k] = errs[i]
	}
	e.f.opts.logger.LogHessian(ctx, mapper.FreeNames(), errs, nil)
}
