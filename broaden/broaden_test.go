package broaden

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func logGrid(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	a, b := math.Log(lo), math.Log(hi)
	for i := range out {
		out[i] = math.Exp(a + (b-a)*float64(i)/float64(n-1))
	}
	return out
}

func lineSpectrum(wave []float64, center, sigma, depth float64) []float64 {
	out := make([]float64, len(wave))
	for i, w := range wave {
		out[i] = 1 - depth*math.Exp(-0.5*math.Pow((w-center)/sigma, 2))
	}
	return out
}

func TestShift(t *testing.T) {
	w := Shift([]float64{5000, 6000}, 299.792458)
	assert.InDeltaSlice(t, []float64{5005, 6006}, w, 1e-9)
}

func TestRotationKernel(t *testing.T) {
	k := RotationKernel(50, 2)
	var sum float64
	for _, v := range k {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Equal(t, 1, len(k)%2)
	// symmetric
	for i := range k {
		assert.InDelta(t, k[i], k[len(k)-1-i], 1e-12)
	}
	// half width covers vsini/dv pixels
	assert.GreaterOrEqual(t, len(k)/2, 25)

	narrow := RotationKernel(1e-3, 2)
	require.Len(t, narrow, 3)
	assert.InDelta(t, 1.0, narrow[1], 1e-12)

	assert.Equal(t, []float64{1}, RotationKernel(0, 2))
}

func TestRotate_ConservesEquivalentWidth(t *testing.T) {
	wave := logGrid(5000, 5100, 2000)
	flux := lineSpectrum(wave, 5050, 0.3, 0.6)

	bw, bf, err := Rotate(wave, flux, 60)
	require.NoError(t, err)
	require.Equal(t, len(bw), len(bf))

	ew := func(w, f []float64) float64 {
		var s float64
		for i := 1; i < len(w); i++ {
			s += 0.5 * ((1 - f[i]) + (1 - f[i-1])) * (w[i] - w[i-1])
		}
		return s
	}
	assert.InDelta(t, ew(wave, flux), ew(bw, bf), 1e-3*ew(wave, flux))

	minOf := func(f []float64) float64 {
		m := f[0]
		for _, v := range f {
			m = math.Min(m, v)
		}
		return m
	}
	// Broadening makes the line shallower.
	assert.Greater(t, minOf(bf), minOf(flux)+0.1)
}

func TestRotate_ZeroAndNegative(t *testing.T) {
	wave := []float64{1, 2, 3}
	flux := []float64{4, 5, 6}

	w, f, err := Rotate(wave, flux, 0)
	require.NoError(t, err)
	assert.Equal(t, wave, w)
	assert.Equal(t, flux, f)

	_, _, err = Rotate(wave, flux, -1)
	assert.ErrorIs(t, err, ErrNegativeVsini)

	_, _, err = Rotate([]float64{1}, []float64{1}, 10)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestResample(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	flux := []float64{10, 20, 30, 40}

	out, in := Resample(src, flux, []float64{0.5, 1, 1.5, 3.25, 4, 4.5})
	assert.Equal(t, []bool{false, true, true, true, true, false}, in)
	assert.InDeltaSlice(t, []float64{0, 10, 15, 32.5, 40, 0}, out, 1e-12)
}

func TestResample_Unordered(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	flux := []float64{10, 20, 30, 40}

	out, _ := Resample(src, flux, []float64{3.5, 1.5})
	assert.InDeltaSlice(t, []float64{35, 15}, out, 1e-12)
}

func TestBuildResolutionMatrix(t *testing.T) {
	wave := make([]float64, 200)
	for i := range wave {
		wave[i] = 5000 + 0.5*float64(i)
	}
	m, err := BuildResolutionMatrix(wave, 2000)
	require.NoError(t, err)

	r, c := m.Dims()
	assert.Equal(t, 200, r)
	assert.Equal(t, 200, c)
	for i := 0; i < r; i++ {
		var sum float64
		for _, v := range mat.Row(nil, i, m) {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}

	// A constant spectrum is unchanged.
	flat := make([]float64, 200)
	for i := range flat {
		flat[i] = 3
	}
	out, err := ApplyResolution(m, flat)
	require.NoError(t, err)
	assert.InDeltaSlice(t, flat, out, 1e-12)

	_, err = BuildResolutionMatrix(wave, 0)
	assert.Error(t, err)
}

func TestApplyResolution_ShapeMismatch(t *testing.T) {
	m := mat.NewDense(3, 3, nil)
	_, err := ApplyResolution(m, []float64{1, 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCovered(t *testing.T) {
	wave := make([]float64, 100)
	for i := range wave {
		wave[i] = 5000 + 0.5*float64(i)
	}
	m, err := BuildResolutionMatrix(wave, 2000)
	require.NoError(t, err)
	kl, _ := m.Bandwidth()
	require.Greater(t, kl, 0)

	inRange := make([]bool, len(wave))
	for i := 10; i < len(wave); i++ {
		inRange[i] = true
	}
	got := Covered(m, inRange)

	for i := range got {
		want := inRange[i]
		for j := 0; j < 10; j++ {
			if m.At(i, j) != 0 {
				want = false
			}
		}
		assert.Equal(t, want, got[i], "pixel %d", i)
	}
	// The line-spread function of the first covered pixel reaches into the
	// uncovered edge.
	assert.False(t, got[10])
	assert.True(t, got[len(got)-1])

	// Without uncovered pixels nothing changes.
	all := make([]bool, len(wave))
	for i := range all {
		all[i] = true
	}
	assert.Equal(t, all, Covered(m, all))

	// A dense identity only excludes the uncovered pixels themselves.
	id := mat.NewDiagDense(3, []float64{1, 1, 1})
	assert.Equal(t, []bool{true, false, true}, Covered(id, []bool{true, false, true}))
}
