package specfit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/google/uuid"
	"github.com/hupe1980/specfit/spectrum"
	"golang.org/x/sync/errgroup"
)

// Seeder produces a starting point for Process, typically from a
// cross-correlation or a coarse grid search.
type Seeder interface {
	Seed(ctx context.Context, specs []*spectrum.Spectrum) (Guess, error)
}

// Object is one target of FitMany.
type Object struct {
	ID      string
	Spectra []*spectrum.Spectrum
	// Guess is used as is when Guess.Params is set; otherwise the Seeder of
	// FitManyOptions provides it.
	Guess      Guess
	Resolution Resolution
}

// FitManyOptions configures FitMany.
type FitManyOptions struct {
	// Workers bounds the number of concurrent fits. 0 uses GOMAXPROCS.
	Workers int
	// Seeder provides guesses for objects without one.
	Seeder Seeder
}

// Outcome is the result of one object in FitMany. Exactly one of Result and
// Err is set.
type Outcome struct {
	Run    string
	ID     string
	Result *Result
	// ContinuumChisq is the continuum-only chi-square per arm.
	ContinuumChisq map[string]float64
	// SNR is the median signal-to-noise ratio per arm.
	SNR map[string]float64
	Err error
}

// FitMany runs Process on every object with bounded parallelism. A failing
// object is logged with its identity and reported in its Outcome; it never
// stops the others. Cancelling ctx skips objects that have not started.
func FitMany(ctx context.Context, f *Fitter, objects []Object, opts FitManyOptions) []Outcome {
	run := uuid.NewString()
	logger := f.opts.logger.WithRun(run)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]Outcome, len(objects))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range objects {
		obj := &objects[i]
		g.Go(func() error {
			out[i] = f.fitOne(ctx, obj, opts.Seeder, logger)
			out[i].Run = run
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	logger.LogBatch(ctx, len(objects), failed)
	return out
}

func (f *Fitter) fitOne(ctx context.Context, obj *Object, seeder Seeder, logger *Logger) (o Outcome) {
	o.ID = obj.ID
	if err := ctx.Err(); err != nil {
		o.Err = err
		return o
	}
	logger = logger.WithObject(obj.ID)

	defer func() {
		if r := recover(); r != nil {
			o.Result = nil
			o.Err = fmt.Errorf("fit of %q panicked: %v", obj.ID, r)
		}
		if o.Err != nil {
			logger.ErrorContext(ctx, "object failed", "arms", armNames(obj.Spectra), "error", o.Err)
		}
	}()

	guess := obj.Guess
	if guess.Params == nil {
		if seeder == nil {
			o.Err = &ConfigError{Field: "guess", Reason: "no guess and no seeder"}
			return o
		}
		seeded, err := seeder.Seed(ctx, obj.Spectra)
		if err != nil {
			o.Err = fmt.Errorf("seed: %w", err)
			return o
		}
		seeded.Fixed = obj.Guess.Fixed
		guess = seeded
	}

	res, err := f.Process(ctx, obj.Spectra, guess, obj.Resolution)
	if err != nil {
		o.Err = err
		return o
	}
	o.Result = res

	cont, err := f.ChisqContinuum(ctx, obj.Spectra)
	if err != nil && !errors.Is(err, ErrLinearFit) {
		o.Result = nil
		o.Err = err
		return o
	}
	if cont != nil {
		o.ContinuumChisq = cont.ArmChisqMap()
	}

	o.SNR = make(map[string]float64, len(obj.Spectra))
	for _, s := range obj.Spectra {
		o.SNR[s.Name()] = s.MedianSNR()
	}
	return o
}

func armNames(specs []*spectrum.Spectrum) []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		if s != nil {
			names = append(names, s.Name())
		}
	}
	return names
}

// Column is one named value of a result row.
type Column struct {
	Name  string
	Value float64
}

// Row renders the outcome as ordered columns: vrad, vrad_err, the
// parameters and their errors, vsini, skewness, kurtosis, chisq_tot and per
// arm chisq_<arm>, chisq_c_<arm> and sn_<arm>. Unavailable values are NaN.
// Row returns nil for failed outcomes.
func (o *Outcome) Row() []Column {
	if o.Result == nil {
		return nil
	}
	row := o.Result.Row()
	for _, arm := range o.Result.Arms {
		row = append(row,
			Column{Name: "chisq_c_" + arm, Value: lookupOrNaN(o.ContinuumChisq, arm)},
			Column{Name: "sn_" + arm, Value: lookupOrNaN(o.SNR, arm)},
		)
	}
	return row
}

// Row renders the result as ordered columns. See Outcome.Row.
func (r *Result) Row() []Column {
	row := []Column{
		{Name: "vrad", Value: r.Velocity},
		{Name: "vrad_err", Value: r.VelErr},
	}
	names := r.Space.Names()
	for i, n := range names {
		row = append(row, Column{Name: n, Value: r.Params[i]})
	}
	for i, n := range names {
		v := nan
		if r.ParamErr != nil {
			v = r.ParamErr[i]
		}
		row = append(row, Column{Name: n + "_err", Value: v})
	}
	vsini := nan
	if r.Vsini != nil {
		vsini = *r.Vsini
	}
	row = append(row,
		Column{Name: "vsini", Value: vsini},
		Column{Name: "skewness", Value: r.Skewness},
		Column{Name: "kurtosis", Value: r.Kurtosis},
		Column{Name: "chisq_tot", Value: r.Chisq},
	)
	for i, arm := range r.Arms {
		row = append(row, Column{Name: "chisq_" + arm, Value: r.ArmChisq[i]})
	}
	return row
}

var nan = math.NaN()

func lookupOrNaN(m map[string]float64, k string) float64 {
	if v, ok := m[k]; ok {
		return v
	}
	return nan
}
