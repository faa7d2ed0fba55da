package spaces

import (
	"errors"
	"testing"
)

func TestNewBox_Validation(t *testing.T) {
	tests := []struct {
		name      string
		low, high []float64
	}{
		{"length mismatch", []float64{0}, []float64{1, 2}},
		{"inverted", []float64{1}, []float64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBox(tt.low, tt.high); !errors.Is(err, ErrBounds) {
				t.Errorf("expected ErrBounds, got %v", err)
			}
		})
	}
}

func TestBox_SampleWithinBounds(t *testing.T) {
	b := UniformBox(-1, 1, 7)
	b.Seed(42)
	for i := 0; i < 1000; i++ {
		if x := b.Sample(); !b.Contains(x) {
			t.Fatalf("sample %v outside box", x)
		}
	}
}

func TestBox_SeedIsReproducible(t *testing.T) {
	a := UniformBox(-1, 1, 3)
	b := UniformBox(-1, 1, 3)
	a.Seed(7)
	b.Seed(7)
	for i := 0; i < 10; i++ {
		x, y := a.Sample(), b.Sample()
		for j := range x {
			if x[j] != y[j] {
				t.Fatalf("expected identical samples, got %v and %v", x, y)
			}
		}
	}
}

func TestBox_ContainsAndClip(t *testing.T) {
	b := UniformBox(-1, 1, 2)
	if b.Contains([]float64{0.5}) {
		t.Error("expected wrong dimension to be rejected")
	}
	if b.Contains([]float64{0.5, 1.5}) {
		t.Error("expected out of bounds to be rejected")
	}
	got := b.Clip([]float64{-3, 0.25})
	if got[0] != -1 || got[1] != 0.25 {
		t.Errorf("expected [-1 0.25], got %v", got)
	}
}

func TestDict(t *testing.T) {
	d := NewDict(map[string]*Box{
		"robot_pos":     UniformBox(-10, 10, 7),
		"achieved_goal": UniformBox(-10, 10, 3),
		"desired_goal":  UniformBox(-10, 10, 3),
		"obstacle_dist": UniformBox(-10, 10, 1),
	})
	keys := d.Keys()
	want := []string{"achieved_goal", "desired_goal", "obstacle_dist", "robot_pos"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}

	d.Seed(1)
	sample := d.Sample()
	if !d.Contains(sample) {
		t.Errorf("expected sample %v in dict", sample)
	}
	delete(sample, "robot_pos")
	if d.Contains(sample) {
		t.Error("expected missing key to be rejected")
	}
	if _, err := d.Get("joint_vel"); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}
