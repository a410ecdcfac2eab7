package specfit

import (
	"errors"
	"fmt"

	"github.com/hupe1980/specfit/broaden"
	"github.com/hupe1980/specfit/lsq"
	"github.com/hupe1980/specfit/optim"
	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/template"
)

var (
	// ErrConfiguration is returned for missing or invalid configuration and
	// invalid broadening parameters. It aborts the fit call.
	ErrConfiguration = errors.New("configuration error")

	// ErrTemplateLookup is returned when a parameter vector falls outside the
	// coverage of the template library.
	ErrTemplateLookup = errors.New("template lookup failed")

	// ErrLinearFit is returned when the continuum/amplitude design matrix is
	// degenerate.
	ErrLinearFit = errors.New("linear fit failed")

	// ErrInsufficientGrid is returned when a velocity grid is too small to
	// estimate the curvature of the chi-square profile.
	ErrInsufficientGrid = errors.New("insufficient velocity grid")

	// ErrNonInvertibleHessian is reported when the parameter Hessian cannot
	// be inverted. It degrades a Result but does not fail the fit.
	ErrNonInvertibleHessian = errors.New("non-invertible hessian")

	// ErrNoSpectra is returned when a fit is requested without any arm.
	ErrNoSpectra = errors.New("no spectra")
)

// ConfigError indicates an invalid configuration value.
//
// errors.Is(err, ErrConfiguration) holds for every ConfigError.
type ConfigError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.cause}
}

// TemplateLookupError identifies the template that could not be produced.
type TemplateLookupError struct {
	Setup  string
	Params param.Vector
	cause  error
}

func (e *TemplateLookupError) Error() string {
	return fmt.Sprintf("%v: setup %q params %v: %v", ErrTemplateLookup, e.Setup, []float64(e.Params), e.cause)
}

func (e *TemplateLookupError) Unwrap() []error { return []error{ErrTemplateLookup, e.cause} }

// LinearFitError carries the arm and rank of a degenerate linear fit.
type LinearFitError struct {
	Arm     string
	Rank    int
	Columns int
	cause   error
}

func (e *LinearFitError) Error() string {
	return fmt.Sprintf("%v: arm %q: rank %d of %d columns", ErrLinearFit, e.Arm, e.Rank, e.Columns)
}

func (e *LinearFitError) Unwrap() []error { return []error{ErrLinearFit, e.cause} }

// InsufficientGridError reports a velocity grid with too few points.
type InsufficientGridError struct {
	Points int
}

func (e *InsufficientGridError) Error() string {
	return fmt.Sprintf("%v: %d points, need at least %d", ErrInsufficientGrid, e.Points, minGridPoints)
}

func (e *InsufficientGridError) Unwrap() error { return ErrInsufficientGrid }

// HessianError names the parameters whose covariance could not be computed.
type HessianError struct {
	Params []string
	cause  error
}

func (e *HessianError) Error() string {
	return fmt.Sprintf("%v: params %v: %v", ErrNonInvertibleHessian, e.Params, e.cause)
}

func (e *HessianError) Unwrap() []error { return []error{ErrNonInvertibleHessian, e.cause} }

// translateError maps errors of the sub-packages onto the public taxonomy.
// arm and params identify the evaluation for the typed errors.
func translateError(err error, arm string, params param.Vector) error {
	if err == nil {
		return nil
	}

	var rank *lsq.RankError
	if errors.As(err, &rank) {
		return &LinearFitError{Arm: arm, Rank: rank.Rank, Columns: rank.Columns, cause: err}
	}
	if errors.Is(err, lsq.ErrRankDeficient) {
		return &LinearFitError{Arm: arm, Rank: -1, cause: err}
	}
	if errors.Is(err, lsq.ErrFactorization) {
		return fmt.Errorf("%w: arm %q: %w", ErrLinearFit, arm, err)
	}

	if errors.Is(err, template.ErrOutsideCoverage) || errors.Is(err, template.ErrUnknownSetup) {
		return &TemplateLookupError{Setup: arm, Params: params.Clone(), cause: err}
	}

	if errors.Is(err, broaden.ErrNegativeVsini) {
		return &ConfigError{Field: "vsini", Reason: "must be non-negative", cause: err}
	}
	if errors.Is(err, broaden.ErrShapeMismatch) {
		return &ConfigError{Field: "resolution." + arm, Reason: "matrix does not match the template sampling", cause: err}
	}

	var dm *param.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ConfigError{Field: "params", Reason: dm.Error(), cause: err}
	}
	if errors.Is(err, param.ErrUnknownName) || errors.Is(err, param.ErrMissingValue) {
		return &ConfigError{Field: "params", Reason: err.Error(), cause: err}
	}

	if errors.Is(err, optim.ErrNotPositiveDefinite) || errors.Is(err, optim.ErrNonFinite) {
		return fmt.Errorf("%w: %w", ErrNonInvertibleHessian, err)
	}

	return err
}
