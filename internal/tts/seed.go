package tts

import "math/rand/v2"

// NewRNG returns the random source for one request. A non-zero seed gives a
// reproducible stream; zero draws a fresh seed.
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}
