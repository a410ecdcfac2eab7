package specfit

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hupe1980/specfit/broaden"
	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/spectrum"
	"github.com/hupe1980/specfit/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNew(t *testing.T) {
	src := newAnalyticSource("b")

	t.Run("NilConfig", func(t *testing.T) {
		_, err := New(src, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("NilSource", func(t *testing.T) {
		_, err := New(nil, DefaultConfig())
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.NPoly = 0
		_, err := New(src, cfg)
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "npoly", ce.Field)
	})

	t.Run("CopiesConfig", func(t *testing.T) {
		cfg := DefaultConfig()
		f, err := New(src, cfg)
		require.NoError(t, err)
		cfg.MaxVel = 1
		assert.Equal(t, 1000.0, f.Config().MaxVel)
	})
}

func TestChisq(t *testing.T) {
	ctx := context.Background()
	src := newAnalyticSource("b", "r", "z")
	f := newTestFitter(t, src, nil)
	p := param.Point{Velocity: 120, Params: truth}

	t.Run("ZeroNoiseAtTruth", func(t *testing.T) {
		specs := exactSpectra(t, src, p, 0.01, "b", "r", "z")
		r, err := f.Chisq(ctx, specs, p, nil)
		require.NoError(t, err)
		assert.Less(t, r.Chisq, 1e-6)
		assert.Equal(t, []string{"b", "r", "z"}, r.Arms)
		require.Len(t, r.Models, 3)
		for i, s := range specs {
			assert.Len(t, r.Models[i], s.Len())
			assert.InDelta(t, 1, r.Coef[i][0], 1e-6)
		}
		assert.InDelta(t, r.Chisq, r.ArmChisq[0]+r.ArmChisq[1]+r.ArmChisq[2], 1e-12)

		away, err := f.Chisq(ctx, specs, param.Point{Velocity: 140, Params: truth}, nil)
		require.NoError(t, err)
		assert.Greater(t, away.Chisq, 1.0)
	})

	t.Run("Idempotent", func(t *testing.T) {
		specs := noisySpectra(t, src, p, 30, testutil.NewRNG(1), "b", "r")
		r1, err := f.Chisq(ctx, specs, p, nil)
		require.NoError(t, err)
		r2, err := f.Chisq(ctx, specs, p, nil)
		require.NoError(t, err)
		assert.Equal(t, r1.Chisq, r2.Chisq)
		assert.Equal(t, r1.Models, r2.Models)
		assert.Equal(t, r1.ArmChisq, r2.ArmChisq)
	})

	t.Run("DoesNotMutateSpectra", func(t *testing.T) {
		specs := noisySpectra(t, src, p, 30, testutil.NewRNG(2), "b")
		before := append([]float64(nil), specs[0].Flux()...)
		_, err := f.Chisq(ctx, specs, p, nil)
		require.NoError(t, err)
		assert.Equal(t, before, specs[0].Flux())
	})

	t.Run("MaskedPixelNegligible", func(t *testing.T) {
		base := noisySpectra(t, src, p, 30, testutil.NewRNG(3), "r")[0]
		n := base.Len()
		bad := make([]bool, n)
		bad[n/2] = true

		masked, err := spectrum.New("r", base.Wavelength(), base.Flux(), base.Error(), bad)
		require.NoError(t, err)
		flux := append([]float64(nil), base.Flux()...)
		flux[n/2] = 1e3
		outlier, err := spectrum.New("r", base.Wavelength(), flux, base.Error(), bad)
		require.NoError(t, err)

		r1, err := f.Chisq(ctx, []*spectrum.Spectrum{masked}, p, nil)
		require.NoError(t, err)
		r2, err := f.Chisq(ctx, []*spectrum.Spectrum{outlier}, p, nil)
		require.NoError(t, err)
		assert.Less(t, math.Abs(r1.Chisq-r2.Chisq)/r1.Chisq, 1e-6)
	})

	t.Run("InfiniteFluxMasked", func(t *testing.T) {
		base := noisySpectra(t, src, p, 30, testutil.NewRNG(4), "r")[0]
		n := base.Len()
		bad := make([]bool, n)
		bad[n/2] = true
		masked, err := spectrum.New("r", base.Wavelength(), base.Flux(), base.Error(), bad)
		require.NoError(t, err)

		flux := append([]float64(nil), base.Flux()...)
		flux[n/2] = math.Inf(1)
		inf, err := spectrum.New("r", base.Wavelength(), flux, base.Error(), nil)
		require.NoError(t, err)
		require.True(t, inf.IsBad(n/2))

		r1, err := f.Chisq(ctx, []*spectrum.Spectrum{masked}, p, nil)
		require.NoError(t, err)
		r2, err := f.Chisq(ctx, []*spectrum.Spectrum{inf}, p, nil)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(r2.Chisq))
		assert.Less(t, math.Abs(r1.Chisq-r2.Chisq)/r1.Chisq, 1e-6)
	})

	t.Run("Rotation", func(t *testing.T) {
		rot := param.Point{Velocity: 50, Vsini: Vsini(30), Params: truth}
		specs := exactSpectra(t, src, rot, 0.01, "r")
		r, err := f.Chisq(ctx, specs, rot, nil)
		require.NoError(t, err)
		assert.Less(t, r.Chisq, 1e-6)

		none, err := f.Chisq(ctx, specs, param.Point{Velocity: 50, Params: truth}, nil)
		require.NoError(t, err)
		assert.Greater(t, none.Chisq, 100*math.Max(r.Chisq, 1e-3))
	})

	t.Run("ResolutionPower", func(t *testing.T) {
		specs := exactSpectra(t, src, p, 0.01, "z")
		m, err := broaden.BuildResolutionMatrix(specs[0].Wavelength(), 5000)
		require.NoError(t, err)
		conv, err := broaden.ApplyResolution(m, specs[0].Flux())
		require.NoError(t, err)
		s, err := spectrum.New("z", specs[0].Wavelength(), conv, specs[0].Error(), nil)
		require.NoError(t, err)
		obs := []*spectrum.Spectrum{s}

		r, err := f.Chisq(ctx, obs, p, Resolution{"z": {Power: 5000}})
		require.NoError(t, err)
		assert.Less(t, r.Chisq, 1e-6)

		byMatrix, err := f.Chisq(ctx, obs, p, Resolution{"z": {Matrix: m}})
		require.NoError(t, err)
		assert.InDelta(t, r.Chisq, byMatrix.Chisq, 1e-9)

		unconvolved, err := f.Chisq(ctx, obs, p, nil)
		require.NoError(t, err)
		assert.Greater(t, unconvolved.Chisq, 1.0)

		withDefault := newTestFitter(t, src, nil, WithResolution(Resolution{"z": {Power: 5000}}))
		r2, err := withDefault.Chisq(ctx, obs, p, nil)
		require.NoError(t, err)
		assert.InDelta(t, r.Chisq, r2.Chisq, 1e-9)
	})

	t.Run("TemplateBeyondArm", func(t *testing.T) {
		// A large shift moves the template off part of the arm; those
		// pixels are ignored instead of extrapolated.
		specs := exactSpectra(t, src, p, 0.01, "b")
		far := param.Point{Velocity: -5000, Params: truth}
		r, err := f.Chisq(ctx, specs, far, nil)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(r.Chisq))
	})

	t.Run("ResolutionAtTemplateEdge", func(t *testing.T) {
		// At 2500 km/s the template stops about 30 A inside the z arm. The
		// observation comes from a wider template, so the pixels whose
		// line-spread function reaches past the template edge must not
		// enter the fit.
		edge := param.Point{Velocity: 2500, Params: truth}
		tpl, err := src.Lookup(ctx, "z", truth)
		require.NoError(t, err)
		step := tpl.Wavelength[1] - tpl.Wavelength[0]
		const extra = 700
		wide := make([]float64, extra, extra+len(tpl.Wavelength))
		for i := range wide {
			wide[i] = tpl.Wavelength[0] - float64(extra-i)*step
		}
		wide = append(wide, tpl.Wavelength...)
		flux := testutil.StellarFlux(wide, src.lines, testutil.Star{Teff: 5000, Logg: 3, Feh: -1})
		wave := observedWave("z")
		model, inRange := broaden.Resample(broaden.Shift(wide, edge.Velocity), flux, wave)
		require.True(t, inRange[0])

		m, err := broaden.BuildResolutionMatrix(wave, 5000)
		require.NoError(t, err)
		conv, err := broaden.ApplyResolution(m, model)
		require.NoError(t, err)
		errs := make([]float64, len(wave))
		for i := range errs {
			errs[i] = 0.01
		}
		obs, err := spectrum.New("z", wave, conv, errs, nil)
		require.NoError(t, err)

		r, err := f.Chisq(ctx, []*spectrum.Spectrum{obs}, edge, Resolution{"z": {Power: 5000}})
		require.NoError(t, err)
		assert.Less(t, r.Chisq, 1e-6)
	})
}

func TestChisq_Errors(t *testing.T) {
	ctx := context.Background()
	src := newAnalyticSource("b", "r")
	f := newTestFitter(t, src, nil)
	p := param.Point{Velocity: 0, Params: truth}
	specs := exactSpectra(t, src, p, 0.01, "b", "r")

	t.Run("NoSpectra", func(t *testing.T) {
		_, err := f.Chisq(ctx, nil, p, nil)
		assert.ErrorIs(t, err, ErrNoSpectra)
	})

	t.Run("UnknownSetup", func(t *testing.T) {
		s, err := spectrum.New("x", specs[0].Wavelength(), specs[0].Flux(), specs[0].Error(), nil)
		require.NoError(t, err)
		_, err = f.Chisq(ctx, []*spectrum.Spectrum{s}, p, nil)
		assert.ErrorIs(t, err, ErrTemplateLookup)
	})

	t.Run("OutsideCoverage", func(t *testing.T) {
		_, err := f.Chisq(ctx, specs, param.Point{Params: param.Vector{20000, 3, -1, 0}}, nil)
		require.ErrorIs(t, err, ErrTemplateLookup)
		var le *TemplateLookupError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "b", le.Setup)
		assert.Equal(t, 20000.0, le.Params[0])
	})

	t.Run("NegativeVsini", func(t *testing.T) {
		_, err := f.Chisq(ctx, specs, param.Point{Vsini: Vsini(-1), Params: truth}, nil)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("WrongDimension", func(t *testing.T) {
		_, err := f.Chisq(ctx, specs, param.Point{Params: param.Vector{5000, 3}}, nil)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("ResolutionShape", func(t *testing.T) {
		_, err := f.Chisq(ctx, specs, p, Resolution{"b": {Matrix: mat.NewDense(3, 3, nil)}})
		require.ErrorIs(t, err, ErrConfiguration)
		assert.True(t, errors.Is(err, broaden.ErrShapeMismatch))
	})

	t.Run("DuplicateArm", func(t *testing.T) {
		_, err := f.Chisq(ctx, []*spectrum.Spectrum{specs[0], specs[0]}, p, nil)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("DegenerateLinearFit", func(t *testing.T) {
		flat := newAnalyticSource("b")
		flat.flat = true
		cfg := fastConfig()
		cfg.NPoly = 1
		ff := newTestFitter(t, flat, cfg)
		_, err := ff.Chisq(ctx, specs[:1], p, nil)
		require.ErrorIs(t, err, ErrLinearFit)
		var lf *LinearFitError
		require.ErrorAs(t, err, &lf)
		assert.Equal(t, "b", lf.Arm)
		assert.Equal(t, 2, lf.Columns)
	})
}

func TestChisqContinuum(t *testing.T) {
	ctx := context.Background()
	src := newAnalyticSource("b", "r", "z")
	f := newTestFitter(t, src, nil)

	t.Run("FlatSpectrum", func(t *testing.T) {
		rng := testutil.NewRNG(11)
		specs := make([]*spectrum.Spectrum, 0, 3)
		for _, a := range []string{"b", "r", "z"} {
			wave := observedWave(a)
			model := make([]float64, len(wave))
			for i := range model {
				model[i] = 1
			}
			flux, sigma := rng.Noisy(model, 30)
			s, err := spectrum.New(a, wave, flux, sigma, nil)
			require.NoError(t, err)
			specs = append(specs, s)
		}

		cont, err := f.ChisqContinuum(ctx, specs)
		require.NoError(t, err)
		full, err := f.Chisq(ctx, specs, param.Point{Velocity: 0, Params: truth}, nil)
		require.NoError(t, err)

		assert.LessOrEqual(t, full.Chisq, cont.Chisq+1e-9)
		assert.InDelta(t, 1, full.Chisq/cont.Chisq, 0.02)
		assert.Len(t, cont.ArmChisqMap(), 3)
	})

	t.Run("TemplateImproves", func(t *testing.T) {
		p := param.Point{Velocity: 10, Params: truth}
		specs := noisySpectra(t, src, p, 30, testutil.NewRNG(12), "b")
		cont, err := f.ChisqContinuum(ctx, specs)
		require.NoError(t, err)
		full, err := f.Chisq(ctx, specs, p, nil)
		require.NoError(t, err)
		assert.Greater(t, cont.Chisq/full.Chisq, 2.0)
	})
}
