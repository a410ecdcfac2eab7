package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	wave := []float64{5000, 5001, 5002, 5003}
	flux := []float64{1, 2, 3, 4}
	errs := []float64{0.1, 0.1, 0.1, 0.1}

	s, err := New("b", wave, flux, errs, []bool{false, true, false, false})
	require.NoError(t, err)

	assert.Equal(t, "b", s.Name())
	assert.Equal(t, 4, s.Len())
	assert.True(t, s.IsBad(1))
	assert.False(t, s.IsBad(0))
	assert.Equal(t, 1, s.BadCount())
	assert.Equal(t, LargeError, s.Error()[1])
	assert.Equal(t, 0.1, s.Error()[0])
	assert.Equal(t, []bool{false, true, false, false}, s.BadMask())

	lo, hi := s.WavelengthRange()
	assert.Equal(t, 5000.0, lo)
	assert.Equal(t, 5003.0, hi)
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	wave := []float64{1, 2, 3}
	flux := []float64{1, 1, 1}
	errs := []float64{1, 1, 1}

	s, err := New("r", wave, flux, errs, nil)
	require.NoError(t, err)

	flux[0] = 100
	errs[1] = 100
	assert.Equal(t, 1.0, s.Flux()[0])
	assert.Equal(t, 1.0, s.Error()[1])
}

func TestNew_MasksInvalidErrors(t *testing.T) {
	s, err := New("z",
		[]float64{1, 2, 3, 4},
		[]float64{1, math.NaN(), 1, 1},
		[]float64{0, 1, math.Inf(1), 1},
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true, false}, s.BadMask())
	assert.Equal(t, 0.0, s.Flux()[1])
}

func TestNew_MasksNonFiniteFlux(t *testing.T) {
	s, err := New("r",
		[]float64{1, 2, 3, 4},
		[]float64{1, math.Inf(1), math.Inf(-1), 1},
		[]float64{0.01, 0.01, 0.01, 0.01},
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, true, false}, s.BadMask())
	assert.Equal(t, []float64{1, 0, 0, 1}, s.Flux())
	assert.Equal(t, LargeError, s.Error()[1])
	assert.Equal(t, LargeError, s.Error()[2])
}

func TestNew_Errors(t *testing.T) {
	_, err := New("x", nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = New("x", []float64{1, 2}, []float64{1}, []float64{1, 1}, nil)
	var lm *ErrLengthMismatch
	require.ErrorAs(t, err, &lm)
	assert.Equal(t, "flux", lm.Field)

	_, err = New("x", []float64{1, 1}, []float64{1, 1}, []float64{1, 1}, nil)
	assert.ErrorIs(t, err, ErrNotAscending)

	_, err = New("x", []float64{1, 2}, []float64{1, 1}, []float64{1, 1}, []bool{true})
	require.ErrorAs(t, err, &lm)
	assert.Equal(t, "bad mask", lm.Field)
}

func TestFromIvar(t *testing.T) {
	s, err := FromIvar("b",
		[]float64{1, 2, 3, 4},
		[]float64{10, 10, 10, 10},
		[]float64{4, 0, 100, 4},
		[]int32{0, 0, 0, 1},
	)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, false, true}, s.BadMask())
	assert.InDelta(t, 0.5, s.Error()[0], 1e-12)
	assert.InDelta(t, 0.1, s.Error()[2], 1e-12)
	assert.Equal(t, LargeError, s.Error()[1])
}

func TestMedianSNR(t *testing.T) {
	s, err := New("b",
		[]float64{1, 2, 3, 4, 5},
		[]float64{10, 20, 30, 40, 1000},
		[]float64{1, 1, 1, 1, 1},
		[]bool{false, false, false, false, true},
	)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, s.MedianSNR(), 1e-12)

	all, err := New("b", []float64{1}, []float64{1}, []float64{1}, []bool{true})
	require.NoError(t, err)
	assert.Equal(t, 0.0, all.MedianSNR())
}
