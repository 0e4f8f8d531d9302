// Package rng provides the seedable pseudo-random source for the simulator.
//
// Every probabilistic decision of a tick (packet loss, missing detections,
// dribbler mis-detections, ball shuffling, detection noise) draws from one
// Rng instance, in a fixed order. Re-seeding and replaying the same command
// stream therefore reproduces the exact same output bytes.
package rng

import "math/rand"

type Rng struct {
	src *rand.Rand
}

func NewRng(seed uint32) *Rng {
	r := &Rng{}
	r.Seed(seed)
	return r
}

func (r *Rng) Seed(seed uint32) {
	r.src = rand.New(rand.NewSource(int64(seed)))
}

// UniformFloat returns a float in [min, max).
func (r *Rng) UniformFloat(min float64, max float64) float64 {
	return min + r.src.Float64()*(max-min)
}

// NormalFloat returns a normally distributed float with mean 0 and the given
// standard deviation.
func (r *Rng) NormalFloat(stddev float64) float64 {
	return r.src.NormFloat64() * stddev
}

func (r *Rng) UniformInt(n int) int {
	return r.src.Intn(n)
}

// Shuffle randomizes the order of n elements through swap, consuming this
// source so shuffles stay reproducible under the same seed.
func (r *Rng) Shuffle(n int, swap func(i int, j int)) {
	r.src.Shuffle(n, swap)
}
