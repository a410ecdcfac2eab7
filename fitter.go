package specfit

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/specfit/broaden"
	"github.com/hupe1980/specfit/lsq"
	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/spectrum"
	"github.com/hupe1980/specfit/template"
	"gonum.org/v1/gonum/mat"
)

// BadChisq is returned by the non-linear objective for points outside the
// velocity bounds or the template coverage. It exceeds any chi-square a
// real spectrum can reach.
const BadChisq = 1e30

// Fitter evaluates and fits spectra against a template source.
//
// A Fitter holds no per-fit state and is safe for concurrent use as long as
// its template.Source is.
type Fitter struct {
	source template.Source
	cfg    Config
	opts   options
}

// New creates a Fitter. cfg is required; a nil cfg is a configuration error.
func New(source template.Source, cfg *Config, optFns ...Option) (*Fitter, error) {
	if source == nil {
		return nil, &ConfigError{Field: "source", Reason: "template source is required"}
	}
	if cfg == nil {
		return nil, &ConfigError{Reason: "configuration is required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Fitter{
		source: source,
		cfg:    *cfg,
		opts:   applyOptions(optFns),
	}, nil
}

// Config returns a copy of the fitter configuration.
func (f *Fitter) Config() Config { return f.cfg }

// Logger returns the configured logger.
func (f *Fitter) Logger() *Logger { return f.opts.logger }

// Space returns the declared parameter space of a set of arms, which is the
// space of the first arm's setup.
func (f *Fitter) Space(specs []*spectrum.Spectrum) (param.Space, error) {
	if len(specs) == 0 {
		return param.Space{}, ErrNoSpectra
	}
	s, err := f.source.Space(specs[0].Name())
	if err != nil {
		return param.Space{}, translateError(err, specs[0].Name(), nil)
	}
	return s, nil
}

// arm holds everything about one observed arm that does not depend on the
// trial point.
type arm struct {
	spec       *spectrum.Spectrum
	weights    []float64
	poly       [][]float64
	resolution mat.Matrix
}

// evaluator is the per-call view of a set of arms.
type evaluator struct {
	f     *Fitter
	space param.Space
	arms  []arm
	// evals counts chi-square evaluations.
	evals int
}

func (f *Fitter) prepare(specs []*spectrum.Spectrum, res Resolution) (*evaluator, error) {
	space, err := f.Space(specs)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = f.opts.resolution
	}

	seen := make(map[string]bool, len(specs))
	arms := make([]arm, len(specs))
	for i, s := range specs {
		if s == nil {
			return nil, &ConfigError{Field: "spectra", Reason: fmt.Sprintf("arm %d is nil", i)}
		}
		name := s.Name()
		if seen[name] {
			return nil, &ConfigError{Field: "spectra", Reason: fmt.Sprintf("duplicate arm %q", name)}
		}
		seen[name] = true

		if i > 0 {
			other, err := f.source.Space(name)
			if err != nil {
				return nil, translateError(err, name, nil)
			}
			if !other.Equal(space) {
				return nil, &ConfigError{Field: "spectra", Reason: fmt.Sprintf("arm %q has parameters %v, expected %v", name, other.Names(), space.Names())}
			}
		}

		a := arm{
			spec:    s,
			weights: lsq.Weights(s.Error()),
			poly:    lsq.LegendreBasis(s.Wavelength(), f.cfg.NPoly),
		}
		if r, ok := res[name]; ok {
			switch {
			case r.Matrix != nil:
				rows, cols := r.Matrix.Dims()
				if rows != s.Len() || cols != s.Len() {
					return nil, translateError(fmt.Errorf("%w: matrix is %dx%d, arm has %d pixels", broaden.ErrShapeMismatch, rows, cols, s.Len()), name, nil)
				}
				a.resolution = r.Matrix
			case r.Power > 0:
				m, err := broaden.BuildResolutionMatrix(s.Wavelength(), r.Power)
				if err != nil {
					return nil, &ConfigError{Field: "resolution." + name, Reason: err.Error(), cause: err}
				}
				a.resolution = m
			}
		}
		arms[i] = a
	}

	return &evaluator{f: f, space: space, arms: arms}, nil
}

// EvalResult is the outcome of one chi-square evaluation.
type EvalResult struct {
	// Chisq is the sum of the per-arm chi-squares.
	Chisq float64
	// Arms lists the arm names in input order.
	Arms []string
	// ArmChisq holds the chi-square of each arm, aligned with Arms.
	ArmChisq []float64
	// Models holds the fitted model of each arm, aligned with Arms.
	Models [][]float64
	// Coef holds the linear coefficients of each arm: the template
	// amplitude first (absent for continuum-only fits), then the Legendre
	// continuum terms.
	Coef [][]float64
}

// ArmChisqMap returns the per-arm chi-square keyed by arm name.
func (r *EvalResult) ArmChisqMap() map[string]float64 {
	m := make(map[string]float64, len(r.Arms))
	for i, a := range r.Arms {
		m[a] = r.ArmChisq[i]
	}
	return m
}

func newEvalResult(arms []arm) *EvalResult {
	r := &EvalResult{
		Arms:     make([]string, len(arms)),
		ArmChisq: make([]float64, len(arms)),
		Models:   make([][]float64, len(arms)),
		Coef:     make([][]float64, len(arms)),
	}
	for i, a := range arms {
		r.Arms[i] = a.spec.Name()
	}
	return r
}

// chisq evaluates the template model at p on every arm.
func (e *evaluator) chisq(ctx context.Context, p param.Point) (*EvalResult, error) {
	start := time.Now()
	e.evals++

	r := newEvalResult(e.arms)
	for i := range e.arms {
		sol, err := e.fitArm(ctx, &e.arms[i], p)
		if err != nil {
			e.f.opts.metricsCollector.RecordEvaluation(time.Since(start), err)
			return nil, err
		}
		r.ArmChisq[i] = sol.Chisq
		r.Models[i] = sol.Model
		r.Coef[i] = sol.Coef
		r.Chisq += sol.Chisq
	}

	e.f.opts.metricsCollector.RecordEvaluation(time.Since(start), nil)
	return r, nil
}

func (e *evaluator) fitArm(ctx context.Context, a *arm, p param.Point) (*lsq.Solution, error) {
	name := a.spec.Name()

	t0 := time.Now()
	tpl, err := e.f.source.Lookup(ctx, name, p.Params)
	e.f.opts.metricsCollector.RecordTemplateLookup(time.Since(t0), err)
	if err != nil {
		return nil, translateError(err, name, p.Params)
	}

	wave := broaden.Shift(tpl.Wavelength, p.Velocity)
	flux := tpl.Flux
	if p.Vsini != nil {
		wave, flux, err = broaden.Rotate(wave, flux, *p.Vsini)
		if err != nil {
			return nil, translateError(err, name, p.Params)
		}
	}

	model, inRange := broaden.Resample(wave, flux, a.spec.Wavelength())
	if a.resolution != nil {
		model, err = broaden.ApplyResolution(a.resolution, model)
		if err != nil {
			return nil, translateError(err, name, p.Params)
		}
		inRange = broaden.Covered(a.resolution, inRange)
	}

	// Pixels the shifted template does not reach, directly or through the
	// line-spread function, are left out of the fit.
	w := a.weights
	copied := false
	for i, ok := range inRange {
		if ok {
			continue
		}
		if !copied {
			w = append([]float64(nil), a.weights...)
			copied = true
		}
		w[i] = 0
	}

	basis := make([][]float64, 0, 1+len(a.poly))
	basis = append(basis, model)
	basis = append(basis, a.poly...)

	sol, err := lsq.Fit(a.spec.Flux(), w, basis)
	if err != nil {
		return nil, translateError(err, name, p.Params)
	}
	return sol, nil
}

// continuum fits the Legendre continuum alone on every arm.
func (e *evaluator) continuum() (*EvalResult, error) {
	r := newEvalResult(e.arms)
	for i, a := range e.arms {
		sol, err := lsq.Fit(a.spec.Flux(), a.weights, a.poly)
		if err != nil {
			return nil, translateError(err, a.spec.Name(), nil)
		}
		r.ArmChisq[i] = sol.Chisq
		r.Models[i] = sol.Model
		r.Coef[i] = sol.Coef
		r.Chisq += sol.Chisq
	}
	return r, nil
}
