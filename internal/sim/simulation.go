// Package sim wraps the physics engine with a body registry keyed by name,
// a fixed substep count per control step, the task scene and the
// obstacle distance probe.
package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/kinematics"
	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/render"
	"github.com/san-kum/reachenv/internal/spatial"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

type Simulation struct {
	opts   Options
	engine *physics.Engine
	bodies map[string]physics.BodyID
	camera render.Camera
	log    *zap.Logger

	background    physics.Color
	lastClearance float64
	steps         int
}

func connectionMode(mode RenderMode, renderer Renderer) (physics.Mode, error) {
	switch mode {
	case RenderHuman:
		return physics.GUI, nil
	case RenderRGBArray:
		switch renderer {
		case RendererOpenGL:
			return physics.GUI, nil
		case RendererTiny:
			return physics.Direct, nil
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidRenderer, renderer)
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRenderMode, mode)
	}
}

func New(opts Options) (*Simulation, error) {
	opts.fill()
	mode, err := connectionMode(opts.RenderMode, opts.Renderer)
	if err != nil {
		return nil, err
	}

	var engineOpts []physics.Option
	if opts.Integrator != nil {
		engineOpts = append(engineOpts, physics.WithIntegrator(opts.Integrator))
	}
	eng := physics.NewEngine(mode, engineOpts...)
	if err := eng.SetTimeStep(opts.Timestep); err != nil {
		return nil, err
	}
	if err := eng.ResetSimulation(); err != nil {
		return nil, err
	}
	if err := eng.SetGravity(r3.Vec{Z: -9.81}); err != nil {
		return nil, err
	}

	s := &Simulation{
		opts:          opts,
		engine:        eng,
		bodies:        make(map[string]physics.BodyID),
		camera:        render.DefaultCamera(),
		log:           opts.Logger.Named("sim"),
		background:    render.Background,
		lastClearance: NoContactDistance,
	}
	s.log.Debug("connected",
		zap.Stringer("mode", mode),
		zap.String("render_mode", string(opts.RenderMode)),
		zap.Int("substeps", opts.NSubsteps),
		zap.Float64("timestep", opts.Timestep))
	return s, nil
}

func (s *Simulation) Engine() *physics.Engine        { return s.engine }
func (s *Simulation) RenderMode() RenderMode         { return s.opts.RenderMode }
func (s *Simulation) ConnectionMode() physics.Mode   { return s.engine.Mode() }
func (s *Simulation) BackgroundColor() physics.Color { return s.background }
func (s *Simulation) Camera() render.Camera          { return s.camera }
func (s *Simulation) Timestep() float64              { return s.opts.Timestep }
func (s *Simulation) NSubsteps() int                 { return s.opts.NSubsteps }
func (s *Simulation) Snapshot() physics.Scene        { return s.engine.Snapshot() }
func (s *Simulation) Closed() bool                   { return !s.engine.Connected() }
func (s *Simulation) OrientationTask() bool          { return s.opts.OrientationTask }

// Dt is the simulated time covered by one Step.
func (s *Simulation) Dt() float64 {
	return s.opts.Timestep * float64(s.opts.NSubsteps)
}

// Step runs NSubsteps engine steps.
func (s *Simulation) Step() error {
	for i := 0; i < s.opts.NSubsteps; i++ {
		if err := s.engine.StepSimulation(); err != nil {
			return err
		}
	}
	s.steps++
	if s.opts.DebugMode {
		if d, err := s.Distances(); err == nil {
			s.log.Debug("step", zap.Int("step", s.steps), zap.Float64s("distances", d))
		}
	}
	return nil
}

// Close disconnects from the engine. Closing twice is a no-op.
func (s *Simulation) Close() error {
	if s.engine.Connected() {
		s.engine.Disconnect()
		s.log.Debug("disconnected", zap.Int("steps", s.steps))
	}
	return nil
}

// WithoutRendering runs fn with frame production disabled.
func (s *Simulation) WithoutRendering(fn func() error) error {
	prev := s.engine.RenderingEnabled()
	s.engine.ConfigureRendering(false)
	defer s.engine.ConfigureRendering(prev)
	return fn()
}

func (s *Simulation) BodyID(name string) (physics.BodyID, error) {
	if !s.engine.Connected() {
		return -1, physics.ErrNotConnected
	}
	id, ok := s.bodies[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}
	return id, nil
}

func (s *Simulation) register(name string, create func() (physics.BodyID, error)) error {
	if _, ok := s.bodies[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateBody, name)
	}
	id, err := create()
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	s.bodies[name] = id
	return nil
}

func (s *Simulation) LoadArm(name string, chain *kinematics.Chain, base spatial.Pose) error {
	return s.register(name, func() (physics.BodyID, error) {
		return s.engine.LoadArm(name, chain, base)
	})
}

// SetBasePose moves a body. orientation holds either three Euler angles
// (roll, pitch, yaw) or a quaternion [x, y, z, w].
func (s *Simulation) SetBasePose(body string, position r3.Vec, orientation []float64) error {
	id, err := s.BodyID(body)
	if err != nil {
		return err
	}
	q, err := spatial.OrientationFromSlice(orientation)
	if err != nil {
		return err
	}
	return s.engine.ResetBasePositionAndOrientation(id, position, q)
}

func (s *Simulation) BasePose(body string) (spatial.Pose, error) {
	id, err := s.BodyID(body)
	if err != nil {
		return spatial.Pose{}, err
	}
	return s.engine.BasePose(id)
}

func (s *Simulation) linkState(body string, link int, velocity bool) (physics.LinkState, error) {
	id, err := s.BodyID(body)
	if err != nil {
		return physics.LinkState{}, err
	}
	return s.engine.LinkState(id, link, velocity)
}

func (s *Simulation) LinkPosition(body string, link int) (r3.Vec, error) {
	ls, err := s.linkState(body, link, false)
	return ls.Position, err
}

func (s *Simulation) LinkOrientation(body string, link int) (quat.Number, error) {
	ls, err := s.linkState(body, link, false)
	return ls.Orientation, err
}

func (s *Simulation) LinkVelocity(body string, link int) (r3.Vec, error) {
	ls, err := s.linkState(body, link, true)
	return ls.LinearVelocity, err
}

// NumJoints returns the number of links of an articulated body.
func (s *Simulation) NumJoints(body string) (int, error) {
	id, err := s.BodyID(body)
	if err != nil {
		return 0, err
	}
	return s.engine.NumJoints(id)
}

func (s *Simulation) JointAngle(body string, joint int) (float64, error) {
	id, err := s.BodyID(body)
	if err != nil {
		return 0, err
	}
	q, _, err := s.engine.JointState(id, joint)
	return q, err
}

func (s *Simulation) SetJointAngles(body string, joints []int, angles []float64) error {
	if len(joints) != len(angles) {
		return fmt.Errorf("set joint angles: %d joints, %d angles", len(joints), len(angles))
	}
	id, err := s.BodyID(body)
	if err != nil {
		return err
	}
	for i, j := range joints {
		if err := s.engine.ResetJointState(id, j, angles[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) ControlJoints(body string, joints []int, targets, forces []float64) error {
	id, err := s.BodyID(body)
	if err != nil {
		return err
	}
	return s.engine.SetJointMotorControlArray(id, joints, targets, forces)
}

// PlaceCamera sets the viewpoint used for rgb_array frames and the GUI.
func (s *Simulation) PlaceCamera(target r3.Vec, distance, yaw, pitch float64) {
	s.camera.Target = target
	s.camera.Distance = distance
	s.camera.Yaw = yaw
	s.camera.Pitch = pitch
}

// Distances measures each probe link of the arm against the obstacle.
// NoContactDistance stands in when nothing lies within that range.
func (s *Simulation) Distances() ([]float64, error) {
	arm, err := s.BodyID(ArmBody)
	if err != nil {
		return nil, err
	}
	obstacle, err := s.BodyID(ObstacleBody)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(s.opts.ProbeLinks))
	clearance := math.Inf(1)
	for i, link := range s.opts.ProbeLinks {
		points, err := s.engine.ClosestPoints(arm, obstacle, NoContactDistance, link)
		if err != nil {
			return nil, err
		}
		out[i] = NoContactDistance
		if len(points) > 0 {
			out[i] = points[0].Distance
		}
		clearance = math.Min(clearance, out[i])
	}
	s.lastClearance = clearance
	return out, nil
}

// IsCollision reports whether any probe distance is below margin.
func (s *Simulation) IsCollision(margin float64) (bool, error) {
	ds, err := s.Distances()
	if err != nil {
		return false, err
	}
	for _, d := range ds {
		if d < margin {
			return true, nil
		}
	}
	return false, nil
}

// LastClearance is the smallest distance from the latest probe.
func (s *Simulation) LastClearance() float64 {
	return s.lastClearance
}
