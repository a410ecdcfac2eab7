package broaden

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458

// LimbDarkening is the linear limb-darkening coefficient of the rotation
// profile.
const LimbDarkening = 0.6

// maxLogGridFactor bounds the size of the log-wavelength grid relative to the
// input length.
const maxLogGridFactor = 8

var (
	// ErrNegativeVsini is returned for vsini < 0.
	ErrNegativeVsini = errors.New("broaden: vsini must be non-negative")
	// ErrShapeMismatch is returned when a resolution matrix does not match
	// the pixel count it is applied to.
	ErrShapeMismatch = errors.New("broaden: resolution matrix shape mismatch")
	// ErrInvalidGrid is returned for wavelength grids that are too short,
	// non-positive or not increasing.
	ErrInvalidGrid = errors.New("broaden: invalid wavelength grid")
)

// Shift Doppler-shifts a wavelength axis: lambda_obs = lambda * (1 + v/c).
func Shift(wavelength []float64, velocity float64) []float64 {
	f := 1 + velocity/SpeedOfLight
	out := make([]float64, len(wavelength))
	for i, w := range wavelength {
		out[i] = w * f
	}
	return out
}

// Rotate convolves flux with the rotational broadening kernel for vsini
// (km/s). The result is sampled on a uniform log-wavelength grid spanning the
// input, which is returned alongside. vsini == 0 returns copies of the input.
func Rotate(wavelength, flux []float64, vsini float64) ([]float64, []float64, error) {
	if vsini < 0 || math.IsNaN(vsini) {
		return nil, nil, fmt.Errorf("%w: %g", ErrNegativeVsini, vsini)
	}
	if len(wavelength) != len(flux) || len(wavelength) < 2 {
		return nil, nil, ErrInvalidGrid
	}
	if vsini == 0 {
		return append([]float64(nil), wavelength...), append([]float64(nil), flux...), nil
	}

	lnLo := math.Log(wavelength[0])
	lnHi := math.Log(wavelength[len(wavelength)-1])
	if !(wavelength[0] > 0) || !(lnHi > lnLo) {
		return nil, nil, ErrInvalidGrid
	}

	step := math.Inf(1)
	prev := lnLo
	for _, w := range wavelength[1:] {
		cur := math.Log(w)
		if d := cur - prev; d > 0 && d < step {
			step = d
		}
		prev = cur
	}
	n := int(math.Ceil((lnHi-lnLo)/step)) + 1
	if limit := maxLogGridFactor * len(wavelength); n > limit {
		n = limit
	}
	step = (lnHi - lnLo) / float64(n-1)

	logWave := make([]float64, n)
	for i := range logWave {
		logWave[i] = math.Exp(lnLo + float64(i)*step)
	}
	// Pin the end points so the resampled grid covers exactly the input.
	logWave[0] = wavelength[0]
	logWave[n-1] = wavelength[len(wavelength)-1]

	onLog, _ := Resample(wavelength, flux, logWave)
	kern := RotationKernel(vsini, SpeedOfLight*step)
	return logWave, convolveSame(onLog, kern), nil
}

// RotationKernel returns the normalised rotational broadening profile sampled
// on pixels of velocity width dv (km/s). Each pixel holds the profile averaged
// over its extent, so kernels narrower than a pixel collapse smoothly to a
// delta function instead of aliasing.
func RotationKernel(vsini, dv float64) []float64 {
	if vsini <= 0 || dv <= 0 {
		return []float64{1}
	}
	h := vsini / dv
	half := int(math.Ceil(h + 0.5))

	sub := int(math.Ceil(16 / math.Min(h, 1)))
	if sub > 1<<16 {
		sub = 1 << 16
	}

	kern := make([]float64, 2*half+1)
	var total float64
	for j := -half; j <= half; j++ {
		var s float64
		for q := 0; q < sub; q++ {
			x := (float64(j) - 0.5 + (float64(q)+0.5)/float64(sub)) / h
			s += rotationProfile(x)
		}
		kern[j+half] = s
		total += s
	}
	if total == 0 {
		return []float64{1}
	}
	for i := range kern {
		kern[i] /= total
	}
	return kern
}

// rotationProfile is the Gray (2005) rotation profile with linear limb
// darkening, unnormalised, as a function of x = dv / vsini.
func rotationProfile(x float64) float64 {
	u := 1 - x*x
	if u <= 0 {
		return 0
	}
	const eps = LimbDarkening
	return 2*(1-eps)*math.Sqrt(u) + 0.5*math.Pi*eps*u
}

// convolveSame convolves a with a symmetric odd-length kernel, replicating
// the edge values, and returns a slice of len(a).
func convolveSame(a, kern []float64) []float64 {
	if len(kern) == 1 {
		out := make([]float64, len(a))
		for i := range a {
			out[i] = a[i] * kern[0]
		}
		return out
	}
	half := len(kern) / 2
	n := len(a)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for k, kv := range kern {
			j := i + k - half
			if j < 0 {
				j = 0
			} else if j >= n {
				j = n - 1
			}
			s += kv * a[j]
		}
		out[i] = s
	}
	return out
}

// Resample linearly interpolates (srcWave, srcFlux) onto dstWave. Points of
// dstWave outside the source range get 0 and inRange[i] == false; they are
// never extrapolated. Both wavelength arrays must be ascending.
func Resample(srcWave, srcFlux, dstWave []float64) (out []float64, inRange []bool) {
	out = make([]float64, len(dstWave))
	inRange = make([]bool, len(dstWave))
	if len(srcWave) == 0 {
		return out, inRange
	}
	lo, hi := srcWave[0], srcWave[len(srcWave)-1]

	last := len(srcWave) - 1
	j := 0
	for i, w := range dstWave {
		if !(w >= lo && w <= hi) {
			continue
		}
		inRange[i] = true
		if last == 0 {
			out[i] = srcFlux[0]
			continue
		}
		if srcWave[j] > w {
			j = max(sort.SearchFloat64s(srcWave, w)-1, 0)
		}
		for j < last-1 && srcWave[j+1] <= w {
			j++
		}
		x0, x1 := srcWave[j], srcWave[j+1]
		out[i] = srcFlux[j] + (w-x0)/(x1-x0)*(srcFlux[j+1]-srcFlux[j])
	}
	return out, inRange
}
