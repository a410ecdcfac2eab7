package broaden

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// fwhmToSigma converts a Gaussian FWHM to its standard deviation.
const fwhmToSigma = 1 / 2.3548200450309493

// lsfTruncation is the half-width of the line-spread function in sigmas.
const lsfTruncation = 4

// ApplyResolution returns m * flux. m must be square with len(flux) rows.
func ApplyResolution(m mat.Matrix, flux []float64) ([]float64, error) {
	r, c := m.Dims()
	if r != len(flux) || c != len(flux) {
		return nil, fmt.Errorf("%w: matrix is %dx%d, spectrum has %d pixels", ErrShapeMismatch, r, c, len(flux))
	}
	src := mat.NewVecDense(len(flux), append([]float64(nil), flux...))
	dst := mat.NewVecDense(r, nil)
	dst.MulVec(m, src)
	return dst.RawVector().Data, nil
}

// Covered returns, for each row of m, whether every pixel the row draws on
// is set in inRange. m must be square with len(inRange) rows. Rows that mix
// in uncovered pixels are false.
func Covered(m mat.Matrix, inRange []bool) []bool {
	n := len(inRange)
	out := slices.Clone(inRange)
	kl, ku := n-1, n-1
	if b, ok := m.(mat.Banded); ok {
		kl, ku = b.Bandwidth()
	}
	for j, ok := range inRange {
		if ok {
			continue
		}
		for i := max(j-ku, 0); i <= min(j+kl, n-1); i++ {
			if out[i] && m.At(i, j) != 0 {
				out[i] = false
			}
		}
	}
	return out
}

// BuildResolutionMatrix returns a banded matrix whose rows are normalised
// Gaussian line-spread functions of FWHM lambda/R centred on each pixel of
// wavelength.
func BuildResolutionMatrix(wavelength []float64, resolvingPower float64) (*mat.BandDense, error) {
	n := len(wavelength)
	if n < 2 {
		return nil, ErrInvalidGrid
	}
	if !(resolvingPower > 0) || math.IsInf(resolvingPower, 0) {
		return nil, fmt.Errorf("broaden: resolving power must be positive, got %g", resolvingPower)
	}
	for i := 1; i < n; i++ {
		if !(wavelength[i] > wavelength[i-1]) {
			return nil, ErrInvalidGrid
		}
	}

	sigmas := make([]float64, n)
	width := 0
	for i, w := range wavelength {
		sigmas[i] = w / resolvingPower * fwhmToSigma
		reach := lsfTruncation * sigmas[i]
		lo, hi := i, i
		for lo > 0 && wavelength[i]-wavelength[lo-1] <= reach {
			lo--
		}
		for hi < n-1 && wavelength[hi+1]-wavelength[i] <= reach {
			hi++
		}
		width = max(width, i-lo, hi-i)
	}

	band := mat.NewBandDense(n, n, width, width, nil)
	for i := 0; i < n; i++ {
		lo := max(0, i-width)
		hi := min(n-1, i+width)
		var total float64
		for j := lo; j <= hi; j++ {
			d := (wavelength[j] - wavelength[i]) / sigmas[i]
			if math.Abs(d) > lsfTruncation {
				continue
			}
			total += math.Exp(-0.5 * d * d)
		}
		for j := lo; j <= hi; j++ {
			d := (wavelength[j] - wavelength[i]) / sigmas[i]
			if math.Abs(d) > lsfTruncation {
				continue
			}
			band.SetBand(i, j, math.Exp(-0.5*d*d)/total)
		}
	}
	return band, nil
}
