package render

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCamera_TargetProjectsToCenter(t *testing.T) {
	cam := DefaultCamera()
	v := cam.view(700, 400)
	x, y, depth, ok := v.project(cam.Target)
	if !ok {
		t.Fatal("target should be in front of the camera")
	}
	if math.Abs(x-350) > 1e-9 || math.Abs(y-200) > 1e-9 {
		t.Errorf("expected (350, 200), got (%v, %v)", x, y)
	}
	if math.Abs(depth-cam.Distance) > 1e-9 {
		t.Errorf("expected depth %v, got %v", cam.Distance, depth)
	}
}

func TestCamera_EyeAboveTargetWhenPitchedDown(t *testing.T) {
	cam := DefaultCamera()
	eye := cam.Eye()
	if eye.Z <= cam.Target.Z {
		t.Errorf("expected eye above target, got %v", eye)
	}
	if d := r3.Norm(r3.Sub(eye, cam.Target)); math.Abs(d-2) > 1e-9 {
		t.Errorf("expected eye 2 away from target, got %v", d)
	}
}

func TestCamera_PointsBehindAreSkipped(t *testing.T) {
	cam := DefaultCamera()
	v := cam.view(100, 100)
	behind := r3.Sub(v.eye, v.forward)
	if _, _, _, ok := v.project(behind); ok {
		t.Error("expected point behind the camera to be rejected")
	}
}

func TestFrame_DrawsTarget(t *testing.T) {
	cam := DefaultCamera()
	scene := physics.Scene{
		Primitives: []physics.Primitive{{
			Name:  "target",
			Shape: physics.Sphere{Radius: 0.1},
			Pose:  spatial.NewPose(cam.Target, spatial.Identity()),
			Color: physics.Color{0, 1, 0, 1},
			Ghost: true,
		}},
	}
	img := Frame(scene, cam, 120, 80, Background)
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 80 {
		t.Fatalf("expected 120x80, got %v", b)
	}
	r, g, _, _ := img.At(60, 40).RGBA()
	if g>>8 < 200 || r>>8 > 50 {
		t.Errorf("expected green at the center, got r=%d g=%d", r>>8, g>>8)
	}
	r, g, _, _ = img.At(2, 2).RGBA()
	if r>>8 != 61 || g>>8 != 61 {
		t.Errorf("expected background in the corner, got r=%d g=%d", r>>8, g>>8)
	}
}

func TestFrame_ArmScene(t *testing.T) {
	scene := physics.Scene{
		Primitives: []physics.Primitive{
			{Shape: physics.Box{HalfExtents: r3.Vec{X: 0.65, Y: 1, Z: 0.05}}, Pose: spatial.NewPose(r3.Vec{X: 0.65, Z: -0.05}, spatial.Identity())},
			{Shape: physics.Cylinder{Radius: 0.008, Length: 0.08}, Pose: spatial.NewPose(r3.Vec{X: 0.5}, spatial.Identity())},
		},
		Capsules: []physics.Capsule{{A: r3.Vec{}, B: r3.Vec{Z: 0.333}, Radius: 0.06}},
	}
	img := Frame(scene, DefaultCamera(), 700, 400, Background)

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := SavePNG(path, img); err != nil {
		t.Fatal(err)
	}
}
