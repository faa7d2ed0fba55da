package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/dynamo"
)

// Servo models every joint as a position-controlled motor with a
// saturated PD law. The state is [q, qd] and the control is the vector of
// joint targets.
type Servo struct {
	Kp      float64
	Kd      float64
	Inertia float64

	// Per-joint data, one entry per link. Fixed links stay at rest.
	Movable     []bool
	Force       []float64
	Lower       []float64
	Upper       []float64
	MaxVelocity []float64
}

func NewServo(n int) *Servo {
	return &Servo{
		Kp:          900,
		Kd:          60,
		Inertia:     0.5,
		Movable:     make([]bool, n),
		Force:       make([]float64, n),
		Lower:       make([]float64, n),
		Upper:       make([]float64, n),
		MaxVelocity: make([]float64, n),
	}
}

func (s *Servo) StateDim() int {
	return 2 * len(s.Movable)
}

func (s *Servo) ControlDim() int {
	return len(s.Movable)
}

func (s *Servo) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	n := len(s.Movable)
	dx := make(dynamo.State, 2*n)
	for i := 0; i < n; i++ {
		if !s.Movable[i] {
			continue
		}
		q, qd := x[i], x[n+i]
		acc := s.Kp*(u[i]-q) - s.Kd*qd
		if limit := s.Force[i] / s.Inertia; math.Abs(acc) > limit {
			acc = math.Copysign(limit, acc)
		}
		dx[i] = qd
		dx[n+i] = acc
	}
	return dx
}

// Constrain clips positions to joint limits and velocities to the joint
// velocity limit in place. Hitting a position limit zeroes the velocity.
func (s *Servo) Constrain(x dynamo.State) {
	n := len(s.Movable)
	for i := 0; i < n; i++ {
		if !s.Movable[i] {
			x[i], x[n+i] = 0, 0
			continue
		}
		if x[i] < s.Lower[i] {
			x[i] = s.Lower[i]
			x[n+i] = math.Max(x[n+i], 0)
		} else if x[i] > s.Upper[i] {
			x[i] = s.Upper[i]
			x[n+i] = math.Min(x[n+i], 0)
		}
		if v := s.MaxVelocity[i]; v > 0 {
			x[n+i] = math.Max(-v, math.Min(v, x[n+i]))
		}
	}
}

func (s *Servo) GetParams() map[string]float64 {
	return map[string]float64{
		"kp":      s.Kp,
		"kd":      s.Kd,
		"inertia": s.Inertia,
	}
}

func (s *Servo) SetParam(name string, value float64) error {
	switch name {
	case "kp":
		s.Kp = value
	case "kd":
		s.Kd = value
	case "inertia":
		if value <= 0 {
			return fmt.Errorf("%w: inertia must be positive, got %g", dynamo.ErrParameterBounds, value)
		}
		s.Inertia = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
