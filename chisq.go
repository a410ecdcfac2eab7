package specfit

import (
	"context"

	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/spectrum"
)

// Chisq evaluates the chi-square of specs against the template at p.
//
// For every arm the template is Doppler-shifted by p.Velocity, rotationally
// broadened when p.Vsini is set, resampled onto the observed wavelengths,
// convolved with the arm resolution and fitted together with the Legendre
// continuum by weighted least squares. Pixels outside the template range do
// not contribute. The total is the sum over arms.
//
// res overrides the resolution configured with WithResolution; nil uses it.
func (f *Fitter) Chisq(ctx context.Context, specs []*spectrum.Spectrum, p param.Point, res Resolution) (*EvalResult, error) {
	ev, err := f.prepare(specs, res)
	if err != nil {
		return nil, err
	}
	if err := ev.space.Check(p.Params); err != nil {
		return nil, translateError(err, specs[0].Name(), p.Params)
	}

	r, err := ev.chisq(ctx, p)
	var chisq float64
	if r != nil {
		chisq = r.Chisq
	}
	f.opts.logger.LogEvaluation(ctx, p.Velocity, p.Params, chisq, err)
	return r, err
}

// ChisqContinuum fits only the Legendre continuum to every arm. Comparing its
// chi-square with Chisq tells how much the template improves on a smooth
// continuum; a ratio near one means no improvement.
func (f *Fitter) ChisqContinuum(ctx context.Context, specs []*spectrum.Spectrum) (*EvalResult, error) {
	ev, err := f.prepare(specs, nil)
	if err != nil {
		return nil, err
	}
	return ev.continuum()
}
