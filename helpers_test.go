package specfit

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/specfit/broaden"
	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/spectrum"
	"github.com/hupe1980/specfit/template"
	"github.com/hupe1980/specfit/testutil"
	"github.com/stretchr/testify/require"
)

var testSpace = param.MustSpace("teff", "logg", "feh", "alpha")

// armRanges are observed wavelength ranges of the synthetic b, r and z arms.
var armRanges = map[string][2]float64{
	"b": {4200, 4700},
	"r": {6200, 6700},
	"z": {8400, 8900},
}

const (
	pixelStep    = 0.8
	templateStep = 0.1
	// templateMargin covers Doppler shifts of a few hundred km/s.
	templateMargin = 40
)

var testLines = testutil.Lines(4000, 9200, 3, 7)

// analyticSource serves noise-free toy templates computed directly from the
// line list, so lookups carry no interpolation error.
type analyticSource struct {
	lines []testutil.Line
	wave  map[string][]float64
	// ignoreAlpha makes templates independent of alpha.
	ignoreAlpha bool
	// flat returns a featureless template.
	flat bool
}

func newAnalyticSource(arms ...string) *analyticSource {
	s := &analyticSource{lines: testLines, wave: make(map[string][]float64)}
	for _, a := range arms {
		r := armRanges[a]
		lo, hi := r[0]-templateMargin, r[1]+templateMargin
		s.wave[a] = testutil.Linspace(lo, hi, int((hi-lo)/templateStep)+1)
	}
	return s
}

var coverage = map[string][2]float64{
	"teff":  {3000, 10000},
	"logg":  {0, 5},
	"feh":   {-4, 1},
	"alpha": {-0.5, 1},
}

func (s *analyticSource) Space(setup string) (param.Space, error) {
	if _, ok := s.wave[setup]; !ok {
		return param.Space{}, fmt.Errorf("%w: %q", template.ErrUnknownSetup, setup)
	}
	return testSpace, nil
}

func (s *analyticSource) Lookup(ctx context.Context, setup string, v param.Vector) (*template.Template, error) {
	wave, ok := s.wave[setup]
	if !ok {
		return nil, fmt.Errorf("%w: %q", template.ErrUnknownSetup, setup)
	}
	if err := testSpace.Check(v); err != nil {
		return nil, err
	}
	for i, n := range testSpace.Names() {
		c := coverage[n]
		if v[i] < c[0] || v[i] > c[1] {
			return nil, &template.CoverageError{Setup: setup, Param: n, Value: v[i], Min: c[0], Max: c[1]}
		}
	}
	if s.flat {
		flux := make([]float64, len(wave))
		for i := range flux {
			flux[i] = 1
		}
		return &template.Template{Wavelength: wave, Flux: flux}, nil
	}
	star := testutil.Star{Teff: v[0], Logg: v[1], Feh: v[2], Alpha: v[3]}
	if s.ignoreAlpha {
		star.Alpha = 0
	}
	return &template.Template{Wavelength: wave, Flux: testutil.StellarFlux(wave, s.lines, star)}, nil
}

// observedWave returns the pixel wavelengths of an arm.
func observedWave(arm string) []float64 {
	r := armRanges[arm]
	return testutil.Linspace(r[0], r[1], int((r[1]-r[0])/pixelStep)+1)
}

// modelFlux builds the observed-frame template of an arm the same way the
// fitter does: shift, optional rotation, resampling.
func modelFlux(t *testing.T, src template.Source, arm string, p param.Point) []float64 {
	t.Helper()
	tpl, err := src.Lookup(context.Background(), arm, p.Params)
	require.NoError(t, err)
	wave := broaden.Shift(tpl.Wavelength, p.Velocity)
	flux := tpl.Flux
	if p.Vsini != nil {
		wave, flux, err = broaden.Rotate(wave, flux, *p.Vsini)
		require.NoError(t, err)
	}
	out, _ := broaden.Resample(wave, flux, observedWave(arm))
	return out
}

// exactSpectra returns noise-free arms of the template at p with a constant
// error of sigma.
func exactSpectra(t *testing.T, src template.Source, p param.Point, sigma float64, arms ...string) []*spectrum.Spectrum {
	t.Helper()
	out := make([]*spectrum.Spectrum, 0, len(arms))
	for _, a := range arms {
		flux := modelFlux(t, src, a, p)
		errs := make([]float64, len(flux))
		for i := range errs {
			errs[i] = sigma
		}
		s, err := spectrum.New(a, observedWave(a), flux, errs, nil)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

// noisySpectra returns arms of 2*T + 0.3 with Gaussian noise at the given
// signal-to-noise ratio.
func noisySpectra(t *testing.T, src template.Source, p param.Point, snr float64, rng *testutil.RNG, arms ...string) []*spectrum.Spectrum {
	t.Helper()
	out := make([]*spectrum.Spectrum, 0, len(arms))
	for _, a := range arms {
		model := modelFlux(t, src, a, p)
		for i := range model {
			model[i] = 2*model[i] + 0.3
		}
		flux, sigma := rng.Noisy(model, snr)
		s, err := spectrum.New(a, observedWave(a), flux, sigma, nil)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

// fastConfig narrows the velocity range to keep the tests quick.
func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.MinVel = -300
	cfg.MaxVel = 300
	return cfg
}

func newTestFitter(t *testing.T, src template.Source, cfg *Config, opts ...Option) *Fitter {
	t.Helper()
	if cfg == nil {
		cfg = fastConfig()
	}
	f, err := New(src, cfg, opts...)
	require.NoError(t, err)
	return f
}

var truth = param.Vector{5000, 3, -1, 0}
