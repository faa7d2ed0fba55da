package integrators

import (
	"testing"

	"github.com/san-kum/reachenv/internal/dynamo"
)

func benchmarkIntegrator(b *testing.B, integ dynamo.Integrator) {
	sys := &servo{kp: 900, kd: 60}
	x := make(dynamo.State, 18)
	u := dynamo.Control{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0, 0}
	wide := &wideServo{servo: sys, n: 9}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integ.Step(wide, x, u, 0, 0.002)
	}
}

// wideServo drives n independent joints, the size of the arm state.
type wideServo struct {
	servo *servo
	n     int
}

func (w *wideServo) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, 2*w.n)
	for i := 0; i < w.n; i++ {
		dx[i] = x[w.n+i]
		dx[w.n+i] = w.servo.kp*(u[i]-x[i]) - w.servo.kd*x[w.n+i]
	}
	return dx
}

func (w *wideServo) StateDim() int   { return 2 * w.n }
func (w *wideServo) ControlDim() int { return w.n }

func BenchmarkEuler(b *testing.B)  { benchmarkIntegrator(b, NewEuler()) }
func BenchmarkRK4(b *testing.B)    { benchmarkIntegrator(b, NewRK4()) }
func BenchmarkVerlet(b *testing.B) { benchmarkIntegrator(b, NewVerlet()) }
