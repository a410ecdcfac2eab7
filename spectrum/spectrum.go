// Package spectrum holds the immutable per-arm observation record consumed
// by the fitter.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// LargeError is the error assigned to masked pixels. Such pixels stay in the
// arrays but carry negligible weight in any chi-square.
const LargeError = 1e9

var (
	// ErrEmpty is returned for a spectrum without pixels.
	ErrEmpty = errors.New("spectrum: no pixels")
	// ErrNotAscending is returned when wavelengths are not strictly increasing.
	ErrNotAscending = errors.New("spectrum: wavelength must be strictly increasing")
)

// ErrLengthMismatch indicates that the per-pixel arrays differ in length.
type ErrLengthMismatch struct {
	Field    string
	Expected int
	Actual   int
}

func (e *ErrLengthMismatch) Error() string {
	return fmt.Sprintf("spectrum: %s has %d elements, expected %d", e.Field, e.Actual, e.Expected)
}

// Spectrum is one observed arm: wavelength, flux, error and bad-pixel mask.
//
// A Spectrum is never modified after construction. Slices returned by the
// accessors share the internal storage and must be treated as read-only.
type Spectrum struct {
	name       string
	wavelength []float64
	flux       []float64
	err        []float64
	bad        *roaring.Bitmap
}

// New creates a Spectrum from copies of the given arrays.
//
// bad may be nil. Pixels flagged bad, pixels whose error is non-positive or
// non-finite, and pixels with non-finite flux are masked: their error is
// replaced with LargeError. Non-finite flux values are replaced with zero.
func New(name string, wavelength, flux, errs []float64, bad []bool) (*Spectrum, error) {
	n := len(wavelength)
	if n == 0 {
		return nil, ErrEmpty
	}
	if len(flux) != n {
		return nil, &ErrLengthMismatch{Field: "flux", Expected: n, Actual: len(flux)}
	}
	if len(errs) != n {
		return nil, &ErrLengthMismatch{Field: "error", Expected: n, Actual: len(errs)}
	}
	if bad != nil && len(bad) != n {
		return nil, &ErrLengthMismatch{Field: "bad mask", Expected: n, Actual: len(bad)}
	}
	for i := 1; i < n; i++ {
		if !(wavelength[i] > wavelength[i-1]) {
			return nil, fmt.Errorf("%w: index %d", ErrNotAscending, i)
		}
	}

	s := &Spectrum{
		name:       name,
		wavelength: slices.Clone(wavelength),
		flux:       slices.Clone(flux),
		err:        slices.Clone(errs),
		bad:        roaring.New(),
	}

	for i := 0; i < n; i++ {
		e := s.err[i]
		finite := !math.IsNaN(s.flux[i]) && !math.IsInf(s.flux[i], 0)
		masked := (bad != nil && bad[i]) || !(e > 0) || math.IsInf(e, 0) || !finite
		if !masked {
			continue
		}
		s.bad.Add(uint32(i))
		s.err[i] = LargeError
		if !finite {
			s.flux[i] = 0
		}
	}
	s.bad.RunOptimize()

	return s, nil
}

// FromIvar builds a Spectrum from inverse variances and an integer pixel mask,
// the layout used by pipeline products. Pixels with ivar <= 0 or mask > 0 are bad.
// mask may be nil.
func FromIvar(name string, wavelength, flux, ivar []float64, mask []int32) (*Spectrum, error) {
	n := len(wavelength)
	if len(ivar) != n {
		return nil, &ErrLengthMismatch{Field: "ivar", Expected: n, Actual: len(ivar)}
	}
	if mask != nil && len(mask) != n {
		return nil, &ErrLengthMismatch{Field: "mask", Expected: n, Actual: len(mask)}
	}

	errs := make([]float64, n)
	bad := make([]bool, n)
	for i := 0; i < n; i++ {
		if ivar[i] <= 0 || (mask != nil && mask[i] > 0) {
			bad[i] = true
			errs[i] = LargeError
			continue
		}
		errs[i] = 1 / math.Sqrt(ivar[i])
	}
	return New(name, wavelength, flux, errs, bad)
}

// Name returns the arm/setup identifier.
func (s *Spectrum) Name() string { return s.name }

// Len returns the number of pixels.
func (s *Spectrum) Len() int { return len(s.wavelength) }

// Wavelength returns the wavelength array (read-only).
func (s *Spectrum) Wavelength() []float64 { return s.wavelength }

// Flux returns the flux array (read-only).
func (s *Spectrum) Flux() []float64 { return s.flux }

// Error returns the per-pixel standard deviation (read-only).
func (s *Spectrum) Error() []float64 { return s.err }

// IsBad reports whether pixel i is masked.
func (s *Spectrum) IsBad(i int) bool { return s.bad.Contains(uint32(i)) }

// BadCount returns the number of masked pixels.
func (s *Spectrum) BadCount() int { return int(s.bad.GetCardinality()) }

// BadMask returns a freshly allocated boolean mask.
func (s *Spectrum) BadMask() []bool {
	out := make([]bool, len(s.wavelength))
	it := s.bad.Iterator()
	for it.HasNext() {
		out[it.Next()] = true
	}
	return out
}

// WavelengthRange returns the first and last wavelength.
func (s *Spectrum) WavelengthRange() (lo, hi float64) {
	return s.wavelength[0], s.wavelength[len(s.wavelength)-1]
}

// MedianSNR returns the median of flux/error over good pixels, or 0 when all
// pixels are masked.
func (s *Spectrum) MedianSNR() float64 {
	snr := make([]float64, 0, len(s.flux)-s.BadCount())
	for i := range s.flux {
		if s.bad.Contains(uint32(i)) {
			continue
		}
		snr = append(snr, s.flux[i]/s.err[i])
	}
	if len(snr) == 0 {
		return 0
	}
	slices.Sort(snr)
	m := len(snr) / 2
	if len(snr)%2 == 1 {
		return snr[m]
	}
	return 0.5 * (snr[m-1] + snr[m])
}
