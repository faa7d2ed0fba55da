package control

import (
	"fmt"

	"github.com/san-kum/reachenv/internal/dynamo"
)

// PID is a per-component PID on an error vector.
type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	integral []float64
	prevErr  []float64
	first    bool
}

func NewPID(kp, ki, kd float64) *PID {
	return &PID{
		Kp:    kp,
		Ki:    ki,
		Kd:    kd,
		first: true,
	}
}

// Compute returns the command for err after dt seconds.
func (p *PID) Compute(err []float64, dt float64) []float64 {
	u := make([]float64, len(err))
	if p.first || len(p.prevErr) != len(err) {
		p.integral = make([]float64, len(err))
		p.prevErr = append(p.prevErr[:0], err...)
		p.first = false
		for i, e := range err {
			u[i] = p.Kp * e
		}
		return u
	}

	for i, e := range err {
		u[i] = p.Kp * e
		if dt > 0 {
			p.integral[i] += e * dt
			u[i] += p.Ki*p.integral[i] + p.Kd*(e-p.prevErr[i])/dt
		}
	}
	copy(p.prevErr, err)
	return u
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = nil
	p.prevErr = p.prevErr[:0]
	p.first = true
}

func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"kp": p.Kp,
		"ki": p.Ki,
		"kd": p.Kd,
	}
}

func (p *PID) SetParam(name string, value float64) error {
	if value < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %v", dynamo.ErrParameterBounds, name, value)
	}
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
