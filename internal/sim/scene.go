package sim

import (
	"github.com/san-kum/reachenv/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ArmBody             = "panda"
	PlaneBody           = "plane"
	TableBody           = "table"
	TargetBody          = "target"
	ObstacleBody        = "obstacle1"
	OrientationMarkBody = "target_orientation_mark"
)

// ObstaclePosition is the centre of the obstacle box.
var ObstaclePosition = r3.Vec{X: 0.45, Z: 0.05}

// ObstacleHalfExtents is half the 0.05 x 0.05 x 0.1 obstacle box.
var ObstacleHalfExtents = r3.Vec{X: 0.025, Y: 0.025, Z: 0.05}

func (s *Simulation) createGeometry(name string, shape physics.Shape, position r3.Vec, color physics.Color, ghost bool) error {
	return s.register(name, func() (physics.BodyID, error) {
		spec := physics.MultiBodySpec{
			Name:     name,
			Visual:   shape,
			Color:    color,
			Position: position,
		}
		if !ghost {
			spec.Collision = shape
		}
		return s.engine.CreateMultiBody(spec)
	})
}

func (s *Simulation) CreateBox(name string, halfExtents, position r3.Vec, color physics.Color, ghost bool) error {
	return s.createGeometry(name, physics.Box{HalfExtents: halfExtents}, position, color, ghost)
}

func (s *Simulation) CreateSphere(name string, radius float64, position r3.Vec, color physics.Color, ghost bool) error {
	return s.createGeometry(name, physics.Sphere{Radius: radius}, position, color, ghost)
}

func (s *Simulation) CreateCylinder(name string, radius, length float64, position r3.Vec, color physics.Color, ghost bool) error {
	return s.createGeometry(name, physics.Cylinder{Radius: radius, Length: length}, position, color, ghost)
}

// CreatePlane adds the floor as a half space whose surface sits at zOffset.
func (s *Simulation) CreatePlane(zOffset float64) error {
	return s.createGeometry(PlaneBody, physics.Plane{}, r3.Vec{Z: zOffset}, physics.Color{0.15, 0.15, 0.15, 1}, false)
}

// CreateTable adds a fixed table with its top at z=0, centred in y.
func (s *Simulation) CreateTable(length, width, height float64) error {
	return s.CreateBox(TableBody, r3.Vec{X: length / 2, Y: width / 2, Z: height / 2},
		r3.Vec{X: length / 2, Z: -height / 2}, physics.Color{0.95, 0.95, 0.95, 1}, false)
}

func (s *Simulation) CreateObstacle(length, width, height float64) error {
	return s.CreateBox(ObstacleBody, r3.Vec{X: length / 2, Y: width / 2, Z: height / 2},
		r3.Vec{X: ObstaclePosition.X, Z: height / 2}, physics.Color{0.9, 0.1, 0.1, 0.75}, false)
}

func (s *Simulation) CreateTarget(position r3.Vec) error {
	return s.CreateSphere(TargetBody, 0.02, position, physics.Color{0, 1, 0, 1}, true)
}

func (s *Simulation) CreateOrientationMark(position r3.Vec) error {
	return s.CreateCylinder(OrientationMarkBody, 0.008, 0.08, position, physics.Color{0.1, 0.8, 0.1, 0.8}, true)
}

// CreateScene builds the static task scene: floor, table, target,
// obstacle and, for orientation tasks, the orientation mark.
func (s *Simulation) CreateScene() error {
	steps := []func() error{
		func() error { return s.CreatePlane(-0.4) },
		func() error { return s.CreateTable(1.3, 2, 0.1) },
		func() error { return s.CreateTarget(r3.Vec{}) },
		func() error { return s.CreateObstacle(0.05, 0.05, 0.1) },
	}
	if s.opts.OrientationTask {
		steps = append(steps, func() error { return s.CreateOrientationMark(r3.Vec{}) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
