package robot

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/reachenv/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

func newPanda(t *testing.T, ct ControlType) (*sim.Simulation, *Panda) {
	t.Helper()
	opts := sim.DefaultOptions()
	opts.NSubsteps = 30
	s, err := sim.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ro := DefaultOptions()
	ro.ControlType = ct
	p, err := NewPanda(s, ro)
	if err != nil {
		t.Fatal(err)
	}
	return s, p
}

func settle(t *testing.T, s *sim.Simulation, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewPanda_ControlType(t *testing.T) {
	s, err := sim.New(sim.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewPanda(s, Options{ControlType: "torque"}); !errors.Is(err, ErrControlType) {
		t.Errorf("expected ErrControlType, got %v", err)
	}
}

func TestPanda_ActionSpace(t *testing.T) {
	tests := []struct {
		ct  ControlType
		dim int
	}{
		{ControlJoints, 7},
		{ControlEE, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.ct), func(t *testing.T) {
			_, p := newPanda(t, tt.ct)
			as := p.ActionSpace()
			if as.Dim() != tt.dim || as.Low[0] != -1 || as.High[0] != 1 {
				t.Errorf("expected Box(-1, 1, %d), got %v %v", tt.dim, as.Low, as.High)
			}
		})
	}
}

func TestPanda_NeutralObs(t *testing.T) {
	_, p := newPanda(t, ControlJoints)
	obs, err := p.Obs()
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 7 {
		t.Fatalf("expected 7 joint angles, got %d", len(obs))
	}
	for i := range obs {
		if obs[i] != NeutralJointValues[i] {
			t.Errorf("joint %d: expected %v, got %v", i, NeutralJointValues[i], obs[i])
		}
	}
	ee, _ := p.EEPosition()
	if r3.Norm(r3.Sub(ee, r3.Vec{X: 0.3367, Z: 0.2707})) > 1e-3 {
		t.Errorf("unexpected neutral end effector %v", ee)
	}
}

func TestPanda_SetActionShape(t *testing.T) {
	_, p := newPanda(t, ControlJoints)
	if err := p.SetAction([]float64{1, 2, 3}); !errors.Is(err, ErrActionShape) {
		t.Errorf("expected ErrActionShape, got %v", err)
	}
	if err := p.SetAction([]float64{0, 0, 0, math.NaN(), 0, 0, 0}); !errors.Is(err, ErrActionShape) {
		t.Errorf("expected ErrActionShape for NaN, got %v", err)
	}
}

func TestPanda_JointControl(t *testing.T) {
	s, p := newPanda(t, ControlJoints)
	action := []float64{1, -1, 0, 5, 0, 0, 0}
	if err := p.SetAction(action); err != nil {
		t.Fatal(err)
	}
	settle(t, s, 10)
	obs, _ := p.Obs()
	want := []float64{0.05, -0.65, 0, -2.75, 0, 2.2, 0.785}
	for i := range want {
		if math.Abs(obs[i]-want[i]) > 1e-3 {
			t.Errorf("joint %d: expected %v, got %v", i, want[i], obs[i])
		}
	}
}

func TestPanda_EEControl(t *testing.T) {
	s, p := newPanda(t, ControlEE)
	start, _ := p.EEPosition()
	if err := p.SetAction([]float64{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	settle(t, s, 10)
	ee, _ := p.EEPosition()
	want := r3.Add(start, r3.Vec{X: EEStep})
	if r3.Norm(r3.Sub(ee, want)) > 2e-3 {
		t.Errorf("expected end effector at %v, got %v", want, ee)
	}
	v, _ := p.EEVelocity()
	if r3.Norm(v) > 1e-3 {
		t.Errorf("expected settled arm, got velocity %v", v)
	}
}

func TestPanda_Reset(t *testing.T) {
	s, p := newPanda(t, ControlJoints)
	_ = p.SetAction([]float64{1, 1, 1, 1, 1, 1, 1})
	settle(t, s, 3)
	if err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	obs, _ := p.Obs()
	for i := range obs {
		if obs[i] != NeutralJointValues[i] {
			t.Errorf("joint %d: expected %v after reset, got %v", i, NeutralJointValues[i], obs[i])
		}
	}
	v, _ := p.EEVelocity()
	if r3.Norm(v) != 0 {
		t.Errorf("expected zero velocity after reset, got %v", v)
	}
}
