package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/specfit/param"
)

var (
	// ErrOutsideCoverage is returned when a parameter vector lies outside the grid.
	ErrOutsideCoverage = errors.New("template: parameters outside library coverage")
	// ErrUnknownSetup is returned for a setup the source does not serve.
	ErrUnknownSetup = errors.New("template: unknown setup")
	// ErrInvalidGrid is returned when grid axes, wavelengths or fluxes are inconsistent.
	ErrInvalidGrid = errors.New("template: invalid grid")
	// ErrFormat is returned when a grid file cannot be decoded.
	ErrFormat = errors.New("template: malformed grid file")
)

// CoverageError reports the parameter that left the grid.
type CoverageError struct {
	Setup string
	Param string
	Value float64
	Min   float64
	Max   float64
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("template: %s=%g outside [%g, %g] for setup %q", e.Param, e.Value, e.Min, e.Max, e.Setup)
}

// Unwrap returns ErrOutsideCoverage.
func (e *CoverageError) Unwrap() error { return ErrOutsideCoverage }

// Template is a synthetic spectrum in the rest frame.
// Templates returned by a Source are shared and must not be modified.
type Template struct {
	Wavelength []float64
	Flux       []float64
}

// Len returns the number of samples.
func (t *Template) Len() int { return len(t.Wavelength) }

func (t *Template) sizeBytes() int64 {
	// The wavelength array is shared with the grid; flux is owned.
	return int64(8*len(t.Flux)) + 48
}

// Source provides templates per instrument setup.
type Source interface {
	// Space returns the declared parameter space of setup.
	Space(setup string) (param.Space, error)
	// Lookup returns the template of setup at v. Vectors outside the
	// coverage fail with an error wrapping ErrOutsideCoverage.
	Lookup(ctx context.Context, setup string, v param.Vector) (*Template, error)
}
