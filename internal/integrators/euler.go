package integrators

import (
	"github.com/san-kum/reachenv/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Euler is the explicit first-order method. It is only stable for the
// servo model at small timesteps and is kept for comparison runs.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	result := x.Clone()
	floats.AddScaled(result, dt, sys.Derive(x, u, t))
	return result
}

// SemiImplicitEuler updates velocities first and positions from the new
// velocities. The state must be laid out as [positions, velocities].
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (s *SemiImplicitEuler) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	half := len(x) / 2
	dx := sys.Derive(x, u, t)
	result := x.Clone()
	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + dt*dx[half+i]
		result[i] = x[i] + dt*result[half+i]
	}
	return result
}
