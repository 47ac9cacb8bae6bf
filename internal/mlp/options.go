package mlp

import "math/rand/v2"

// Option configures a Network at construction.
type Option func(*Network)

// WithRand sets the random source used to initialise parameters.
func WithRand(r *rand.Rand) Option {
	return func(n *Network) {
		if r != nil {
			n.rng = r
		}
	}
}

// WithSeed initialises parameters from a deterministic source.
func WithSeed(seed uint64) Option {
	return func(n *Network) {
		n.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}
