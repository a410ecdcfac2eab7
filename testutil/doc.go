// Package testutil provides deterministic synthetic data for specfit tests.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Numbers
//
//	rng := testutil.NewRNG(seed)
//	flux, errs := rng.Noisy(model, 30) // Gaussian noise at S/N 30
//
// # Synthetic Stars
//
// StellarFlux evaluates a toy absorption-line spectrum whose line strengths
// and widths depend smoothly on teff, logg, feh and alpha. Different line
// groups respond to different parameters, so all four are identifiable:
//
//	lines := testutil.Lines(3900, 4700, 3.0, 1)
//	wave := testutil.Linspace(3900, 4700, 3201)
//	flux := testutil.StellarFlux(wave, lines, testutil.Star{Teff: 5000, Logg: 3, Feh: -1})
package testutil
