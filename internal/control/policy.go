package control

import (
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/spaces"
)

type Policy interface {
	Name() string
	Act(obs env.Observation) ([]float64, error)
	// Reset clears any per-episode state.
	Reset()
}

type Zero struct {
	dim int
}

func NewZero(dim int) *Zero {
	return &Zero{dim: dim}
}

func (z *Zero) Name() string { return "zero" }

func (z *Zero) Act(env.Observation) ([]float64, error) {
	return make([]float64, z.dim), nil
}

func (z *Zero) Reset() {}

// Random draws uniformly from the action space.
type Random struct {
	space *spaces.Box
}

func NewRandom(space *spaces.Box, seed uint64) *Random {
	space.Seed(seed)
	return &Random{space: space}
}

func (r *Random) Name() string { return "random" }

func (r *Random) Act(env.Observation) ([]float64, error) {
	return r.space.Sample(), nil
}

func (r *Random) Reset() {}
