package spatial

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func near(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) < tol
}

func TestRotateAboutZ(t *testing.T) {
	q := FromAxisAngle(r3.Vec{Z: 1}, math.Pi/2)
	got := Rotate(q, r3.Vec{X: 1})
	if !near(got, r3.Vec{Y: 1}, 1e-12) {
		t.Errorf("expected (0,1,0), got %v", got)
	}
}

func TestFromEulerMatchesAxisAngles(t *testing.T) {
	tests := []struct {
		name             string
		roll, pitch, yaw float64
		axis             r3.Vec
		angle            float64
	}{
		{"roll", 0.3, 0, 0, r3.Vec{X: 1}, 0.3},
		{"pitch", 0, -0.7, 0, r3.Vec{Y: 1}, -0.7},
		{"yaw", 0, 0, 1.2, r3.Vec{Z: 1}, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromEuler(tt.roll, tt.pitch, tt.yaw)
			want := FromAxisAngle(tt.axis, tt.angle)
			if d := AngularDistance(got, want); d > 1e-9 {
				t.Errorf("angular distance %v, want 0", d)
			}
		})
	}
}

func TestComposeInverse(t *testing.T) {
	p := NewPose(r3.Vec{X: 0.1, Y: -0.2, Z: 0.3}, FromEuler(0.2, 0.4, -1.0))
	id := Compose(p, p.Inverse())
	if !near(id.Position, r3.Vec{}, 1e-12) {
		t.Errorf("expected zero translation, got %v", id.Position)
	}
	if d := AngularDistance(id.Orientation, Identity()); d > 1e-9 {
		t.Errorf("expected identity rotation, got distance %v", d)
	}
}

func TestTransformRoundTrip(t *testing.T) {
	p := NewPose(r3.Vec{X: 1, Y: 2, Z: 3}, FromEuler(math.Pi, 0, 0.5))
	back := FromTransform(p.Transform())
	if !near(back.Position, p.Position, 1e-12) {
		t.Errorf("position: got %v want %v", back.Position, p.Position)
	}
	if d := AngularDistance(back.Orientation, p.Orientation); d > 1e-9 {
		t.Errorf("orientation differs by %v", d)
	}
}

func TestAngularDistanceIgnoresSign(t *testing.T) {
	q := FromEuler(0.1, 0.2, 0.3)
	neg := FromAxisAngle(r3.Vec{X: 1}, 0)
	neg.Real = -q.Real
	neg.Imag, neg.Jmag, neg.Kmag = -q.Imag, -q.Jmag, -q.Kmag
	if d := AngularDistance(q, neg); d > 1e-6 {
		t.Errorf("q and -q are the same rotation, got distance %v", d)
	}
	if d := AngularDistance(Identity(), FromAxisAngle(r3.Vec{Z: 1}, 0.5)); math.Abs(d-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %v", d)
	}
}

func TestOrientationFromSlice(t *testing.T) {
	if _, err := OrientationFromSlice([]float64{0, 0, 0}); err != nil {
		t.Errorf("euler: unexpected error %v", err)
	}
	q, err := OrientationFromSlice([]float64{0, 0, 0, 2})
	if err != nil {
		t.Fatalf("quaternion: unexpected error %v", err)
	}
	if q.Real != 1 {
		t.Errorf("expected normalized identity, got %v", q)
	}
	if _, err := OrientationFromSlice([]float64{1, 2}); !errors.Is(err, ErrOrientationShape) {
		t.Errorf("expected ErrOrientationShape, got %v", err)
	}
}

func TestXYZWOrder(t *testing.T) {
	q := FromAxisAngle(r3.Vec{X: 1}, math.Pi)
	got := ToXYZW(q)
	if math.Abs(got[0]-1) > 1e-12 || math.Abs(got[3]) > 1e-12 {
		t.Errorf("expected [1 0 0 0], got %v", got)
	}
}
