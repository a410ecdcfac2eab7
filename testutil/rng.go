package testutil

import (
	"math/rand"
	"sync"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// NormFloat64 returns a standard normal deviate.
func (r *RNG) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64()
}

// FillGaussian fills dst with N(0, sigma[i]) deviates.
// Locks only once per call.
func (r *RNG) FillGaussian(dst, sigma []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.NormFloat64() * sigma[i]
	}
}

// Noisy returns model plus Gaussian noise with per-pixel sigma model/snr,
// together with the sigma array. Pixels with non-positive model flux get
// sigma 1/snr.
func (r *RNG) Noisy(model []float64, snr float64) (flux, sigma []float64) {
	sigma = make([]float64, len(model))
	for i, m := range model {
		if m > 0 {
			sigma[i] = m / snr
		} else {
			sigma[i] = 1 / snr
		}
	}
	flux = make([]float64, len(model))
	r.FillGaussian(flux, sigma)
	for i := range flux {
		flux[i] += model[i]
	}
	return flux, sigma
}
