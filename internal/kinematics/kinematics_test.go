package kinematics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

var neutral = []float64{0, -0.6, 0, -2.8, 0, 2.2, 0.785, 0, 0, 0, 0, 0}

func near(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) < tol
}

func TestPanda_Structure(t *testing.T) {
	p := Panda()
	if p.NumLinks() != 12 {
		t.Fatalf("expected 12 links, got %d", p.NumLinks())
	}
	movable := p.MovableJoints()
	want := []int{0, 1, 2, 3, 4, 5, 6, 9, 10}
	if len(movable) != len(want) {
		t.Fatalf("expected movable joints %v, got %v", want, movable)
	}
	for i := range want {
		if movable[i] != want[i] {
			t.Errorf("expected movable joints %v, got %v", want, movable)
			break
		}
	}
	if p.Links[PandaGraspTarget].Geometry != nil {
		t.Error("grasp target should carry no geometry")
	}
}

func TestForwardKinematics_KnownPoses(t *testing.T) {
	p := Panda()
	zero := make([]float64, p.NumLinks())

	tests := []struct {
		name string
		q    []float64
		link int
		want r3.Vec
	}{
		{"zero shoulder", zero, 1, r3.Vec{Z: 0.333}},
		{"zero elbow", zero, 3, r3.Vec{X: 0.0825, Z: 0.649}},
		{"zero tcp", zero, PandaGraspTarget, r3.Vec{X: 0.088, Z: 0.8226}},
		{"neutral wrist", neutral, 6, r3.Vec{X: 0.3367, Z: 0.4811}},
		{"neutral tcp", neutral, PandaGraspTarget, r3.Vec{X: 0.3367, Z: 0.2707}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose, err := p.LinkPose(spatial.Pose{Orientation: spatial.Identity()}, tt.q, tt.link)
			if err != nil {
				t.Fatal(err)
			}
			if !near(pose.Position, tt.want, 1e-3) {
				t.Errorf("expected %v, got %v", tt.want, pose.Position)
			}
		})
	}
}

func TestForwardKinematics_NeutralPointsDown(t *testing.T) {
	p := Panda()
	pose, err := p.LinkPose(spatial.Pose{Orientation: spatial.Identity()}, neutral, PandaGraspTarget)
	if err != nil {
		t.Fatal(err)
	}
	z := spatial.Rotate(pose.Orientation, r3.Vec{Z: 1})
	if !near(z, r3.Vec{Z: -1}, 1e-2) {
		t.Errorf("expected tool z axis to point down, got %v", z)
	}
}

func TestForwardKinematics_BaseOffset(t *testing.T) {
	p := Panda()
	base := spatial.Pose{Position: r3.Vec{X: -0.6}, Orientation: spatial.Identity()}
	pose, err := p.LinkPose(base, neutral, PandaGraspTarget)
	if err != nil {
		t.Fatal(err)
	}
	want := r3.Vec{X: 0.3367 - 0.6, Z: 0.2707}
	if !near(pose.Position, want, 1e-3) {
		t.Errorf("expected %v, got %v", want, pose.Position)
	}
}

func TestForwardKinematics_Errors(t *testing.T) {
	p := Panda()
	if _, err := p.ForwardKinematics(spatial.Pose{Orientation: spatial.Identity()}, make([]float64, 7)); !errors.Is(err, ErrJointCount) {
		t.Errorf("expected ErrJointCount, got %v", err)
	}
	if _, err := p.LinkPose(spatial.Pose{Orientation: spatial.Identity()}, neutral, 12); !errors.Is(err, ErrUnknownLink) {
		t.Errorf("expected ErrUnknownLink, got %v", err)
	}
}

func TestFingersOpenSymmetrically(t *testing.T) {
	p := Panda()
	q := append([]float64(nil), neutral...)
	q[PandaLeftFinger] = 0.03
	q[PandaRightFinger] = 0.03
	frames, err := p.ForwardKinematics(spatial.Pose{Orientation: spatial.Identity()}, q)
	if err != nil {
		t.Fatal(err)
	}
	gap := r3.Norm(r3.Sub(Origin(frames[PandaLeftFinger]), Origin(frames[PandaRightFinger])))
	if math.Abs(gap-0.06) > 1e-9 {
		t.Errorf("expected finger gap 0.06, got %v", gap)
	}
}

func TestJacobian_MatchesFiniteDifference(t *testing.T) {
	p := Panda()
	base := spatial.Pose{Orientation: spatial.Identity()}
	j, err := p.Jacobian(base, neutral, PandaGraspTarget, PandaArmJoints)
	if err != nil {
		t.Fatal(err)
	}
	r, c := j.Dims()
	if r != 6 || c != 7 {
		t.Fatalf("expected 6x7 Jacobian, got %dx%d", r, c)
	}

	const h = 1e-6
	p0, _ := p.LinkPose(base, neutral, PandaGraspTarget)
	for col, ji := range PandaArmJoints {
		q := append([]float64(nil), neutral...)
		q[ji] += h
		p1, _ := p.LinkPose(base, q, PandaGraspTarget)
		fd := r3.Scale(1/h, r3.Sub(p1.Position, p0.Position))
		got := r3.Vec{X: j.At(0, col), Y: j.At(1, col), Z: j.At(2, col)}
		if !near(fd, got, 1e-4) {
			t.Errorf("joint %d: expected %v, got %v", ji, fd, got)
		}
	}
}

func TestJacobian_NonAncestorColumnIsZero(t *testing.T) {
	p := Panda()
	j, err := p.Jacobian(spatial.Pose{Orientation: spatial.Identity()}, neutral, 3, PandaArmJoints)
	if err != nil {
		t.Fatal(err)
	}
	for row := 0; row < 6; row++ {
		if j.At(row, 5) != 0 {
			t.Fatalf("expected zero column for joint 5, got %v at row %d", j.At(row, 5), row)
		}
	}
}

func TestInverseKinematics_PositionOnly(t *testing.T) {
	p := Panda()
	base := spatial.Pose{Orientation: spatial.Identity()}
	targets := []r3.Vec{
		{X: 0.45, Y: 0.1, Z: 0.2},
		{X: 0.6, Y: -0.15, Z: 0.1},
		{X: 0.35, Y: 0, Z: 0.35},
	}
	for _, target := range targets {
		q, err := p.InverseKinematics(base, neutral, PandaGraspTarget,
			spatial.Pose{Position: target, Orientation: spatial.Identity()},
			DefaultIKOptions(PandaArmJoints))
		if err != nil {
			t.Fatalf("target %v: %v", target, err)
		}
		pose, _ := p.LinkPose(base, q, PandaGraspTarget)
		if !near(pose.Position, target, 1e-3) {
			t.Errorf("expected %v, got %v", target, pose.Position)
		}
		for i, l := range p.Links {
			if l.Movable() && (q[i] < l.Lower-1e-12 || q[i] > l.Upper+1e-12) {
				t.Errorf("joint %d out of limits: %v", i, q[i])
			}
		}
	}
}

func TestInverseKinematics_Unreachable(t *testing.T) {
	p := Panda()
	base := spatial.Pose{Orientation: spatial.Identity()}
	opts := DefaultIKOptions(PandaArmJoints)
	opts.MaxIterations = 50
	q, err := p.InverseKinematics(base, neutral, PandaGraspTarget,
		spatial.Pose{Position: r3.Vec{X: 3}, Orientation: spatial.Identity()}, opts)
	if !errors.Is(err, ErrNoConvergence) {
		t.Fatalf("expected ErrNoConvergence, got %v", err)
	}
	if len(q) != p.NumLinks() {
		t.Errorf("expected best-effort solution of length %d, got %d", p.NumLinks(), len(q))
	}
}

func TestNewChain_Validation(t *testing.T) {
	tests := []struct {
		name  string
		links []Link
	}{
		{"forward parent", []Link{{Name: "a", Parent: 1}, {Name: "b", Parent: -1}}},
		{"inverted limits", []Link{{Name: "a", Parent: -1, Joint: Revolute, Lower: 1, Upper: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewChain(tt.links); !errors.Is(err, ErrInvalidChain) {
				t.Errorf("expected ErrInvalidChain, got %v", err)
			}
		})
	}
}

func TestClipJoints(t *testing.T) {
	p := Panda()
	q := make([]float64, p.NumLinks())
	q[3] = 0.5
	q[PandaLeftFinger] = 1
	q[PandaFlange] = 2
	p.ClipJoints(q)
	if q[3] != -0.0698 || q[PandaLeftFinger] != 0.04 || q[PandaFlange] != 0 {
		t.Errorf("unexpected clipped values: %v", q)
	}
}
