// Package specfit fits observed multi-arm stellar spectra against a library of
// synthetic templates to measure radial velocity, rotational broadening
// (vsini) and atmospheric parameters, together with their uncertainties.
//
// # Quick Start
//
// Load a template library and create a Fitter:
//
//	ctx := context.Background()
//	store := blobstore.NewLocalStore("./templates")
//	lib, _ := template.Load(ctx, store, []string{"b", "r", "z"})
//	f, _ := specfit.New(lib, specfit.DefaultConfig())
//
// Cloud mode:
//
//	s3Store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("templates/"))
//	lib, _ := template.Load(ctx, s3Store, []string{"b", "r", "z"})
//
// # Evaluation
//
// Chisq evaluates one (velocity, vsini, parameters) point. The template is
// Doppler-shifted, broadened, resampled onto each arm and fitted jointly with
// a Legendre continuum by weighted least squares:
//
//	r, _ := f.Chisq(ctx, arms, param.Point{Velocity: 120, Params: v}, nil)
//	fmt.Println(r.Chisq, r.ArmChisq)
//
// FindBest brute-forces a grid of candidate vectors and velocities:
//
//	g, _ := f.FindBest(ctx, arms, specfit.LinearGrid(-500, 500, 5), vectors, nil, nil)
//	fmt.Println(g.Velocity, g.VelErr, g.AtBoundary)
//
// # Fitting
//
// Process refines a guess with a Nelder-Mead simplex, measures the velocity
// uncertainty with an adaptive chi-square scan and the parameter covariance
// from a numerical Hessian:
//
//	res, _ := f.Process(ctx, arms, specfit.Guess{
//	    Params: map[string]float64{"teff": 5000, "logg": 3, "feh": -1, "alpha": 0},
//	    Fixed:  []string{"alpha"},
//	}, nil)
//	fmt.Println(res.Velocity, res.VelErr, res.ParamErrMap())
//
// FitMany processes many objects in parallel; one failing object never
// affects the others.
//
// # Errors
//
// Errors match one of ErrConfiguration, ErrTemplateLookup, ErrLinearFit,
// ErrInsufficientGrid and ErrNonInvertibleHessian with errors.Is. A singular
// Hessian does not fail Process; it is reported in Result.HessianErr.
package specfit
