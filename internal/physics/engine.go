package physics

import (
	"errors"
	"fmt"

	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/integrators"
	"github.com/san-kum/reachenv/internal/kinematics"
	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNotConnected   = errors.New("physics: not connected to engine")
	ErrUnknownBody    = errors.New("physics: unknown body")
	ErrUnknownLink    = errors.New("physics: unknown link")
	ErrUnknownJoint   = errors.New("physics: unknown joint")
	ErrNotArticulated = errors.New("physics: body has no joints")
)

type Mode int

const (
	Direct Mode = iota
	GUI
)

func (m Mode) String() string {
	if m == GUI {
		return "gui"
	}
	return "direct"
}

type BodyID int

// Color is RGBA in [0, 1].
type Color [4]float64

type MultiBodySpec struct {
	Name string
	// Visual is drawn; Collision takes part in distance queries. A nil
	// Collision makes the body a ghost.
	Visual    Shape
	Collision Shape
	Color     Color
	Mass      float64

	Position    r3.Vec
	Orientation quat.Number
}

type LinkState struct {
	Position       r3.Vec
	Orientation    quat.Number
	LinearVelocity r3.Vec
}

type arm struct {
	chain   *kinematics.Chain
	servo   *Servo
	x       dynamo.State
	targets dynamo.Control
	frames  []*mat.Dense
	movable []int
}

type body struct {
	spec MultiBodySpec
	pose spatial.Pose
	arm  *arm
}

type Engine struct {
	mode       Mode
	connected  bool
	rendering  bool
	integrator dynamo.Integrator

	dt      float64
	gravity r3.Vec
	time    float64
	steps   int

	bodies []*body
}

type Option func(*Engine)

func WithIntegrator(integ dynamo.Integrator) Option {
	return func(e *Engine) { e.integrator = integ }
}

func NewEngine(mode Mode, opts ...Option) *Engine {
	e := &Engine{
		mode:       mode,
		connected:  true,
		rendering:  true,
		integrator: integrators.NewRK4(),
		dt:         1.0 / 240.0,
		gravity:    r3.Vec{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Mode() Mode        { return e.mode }
func (e *Engine) Connected() bool   { return e.connected }
func (e *Engine) TimeStep() float64 { return e.dt }
func (e *Engine) Time() float64     { return e.time }
func (e *Engine) Steps() int        { return e.steps }
func (e *Engine) Gravity() r3.Vec   { return e.gravity }

func (e *Engine) RenderingEnabled() bool {
	return e.rendering
}

// ConfigureRendering toggles frame production. Bodies created while
// rendering is off are still visible once it is turned back on.
func (e *Engine) ConfigureRendering(enabled bool) {
	e.rendering = enabled
}

func (e *Engine) Disconnect() {
	e.connected = false
	e.bodies = nil
}

func (e *Engine) SetTimeStep(dt float64) error {
	if !e.connected {
		return ErrNotConnected
	}
	if dt <= 0 {
		return fmt.Errorf("%w: time step must be positive, got %g", dynamo.ErrParameterBounds, dt)
	}
	e.dt = dt
	return nil
}

// SetGravity is recorded for completeness; joints are servo driven and
// free bodies stay where they are placed.
func (e *Engine) SetGravity(g r3.Vec) error {
	if !e.connected {
		return ErrNotConnected
	}
	e.gravity = g
	return nil
}

func (e *Engine) ResetSimulation() error {
	if !e.connected {
		return ErrNotConnected
	}
	e.bodies = nil
	e.time = 0
	e.steps = 0
	return nil
}

func (e *Engine) NumBodies() int {
	return len(e.bodies)
}

func (e *Engine) body(id BodyID) (*body, error) {
	if !e.connected {
		return nil, ErrNotConnected
	}
	if id < 0 || int(id) >= len(e.bodies) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	return e.bodies[id], nil
}

func (e *Engine) armBody(id BodyID) (*arm, error) {
	b, err := e.body(id)
	if err != nil {
		return nil, err
	}
	if b.arm == nil {
		return nil, fmt.Errorf("%w: %d (%s)", ErrNotArticulated, id, b.spec.Name)
	}
	return b.arm, nil
}

func (e *Engine) CreateMultiBody(spec MultiBodySpec) (BodyID, error) {
	if !e.connected {
		return -1, ErrNotConnected
	}
	orn := spec.Orientation
	if orn == (quat.Number{}) {
		orn = spatial.Identity()
	}
	e.bodies = append(e.bodies, &body{
		spec: spec,
		pose: spatial.NewPose(spec.Position, orn),
	})
	return BodyID(len(e.bodies) - 1), nil
}

// LoadArm adds an articulated body driven by chain. All joints start at
// zero with their motors holding that position.
func (e *Engine) LoadArm(name string, chain *kinematics.Chain, base spatial.Pose) (BodyID, error) {
	if !e.connected {
		return -1, ErrNotConnected
	}
	n := chain.NumLinks()
	servo := NewServo(n)
	for i, l := range chain.Links {
		servo.Movable[i] = l.Movable()
		servo.Force[i] = l.MaxForce
		servo.Lower[i] = l.Lower
		servo.Upper[i] = l.Upper
		servo.MaxVelocity[i] = l.MaxVelocity
	}
	a := &arm{
		chain:   chain,
		servo:   servo,
		x:       make(dynamo.State, 2*n),
		targets: make(dynamo.Control, n),
		movable: chain.MovableJoints(),
	}
	b := &body{spec: MultiBodySpec{Name: name}, pose: spatial.NewPose(base.Position, spatial.Normalize(base.Orientation)), arm: a}
	if err := e.refresh(b); err != nil {
		return -1, err
	}
	e.bodies = append(e.bodies, b)
	return BodyID(len(e.bodies) - 1), nil
}

func (e *Engine) refresh(b *body) error {
	frames, err := b.arm.chain.ForwardKinematics(b.pose, b.arm.x[:b.arm.chain.NumLinks()])
	if err != nil {
		return err
	}
	b.arm.frames = frames
	return nil
}

// Servo exposes the motor model of an arm for parameter tuning.
func (e *Engine) Servo(id BodyID) (*Servo, error) {
	a, err := e.armBody(id)
	if err != nil {
		return nil, err
	}
	return a.servo, nil
}

// StepSimulation advances every arm by one time step.
func (e *Engine) StepSimulation() error {
	if !e.connected {
		return ErrNotConnected
	}
	for _, b := range e.bodies {
		if b.arm == nil {
			continue
		}
		next := e.integrator.Step(b.arm.servo, b.arm.x, b.arm.targets, e.time, e.dt)
		b.arm.servo.Constrain(next)
		if !next.IsValid() {
			return &dynamo.SimulationError{Step: e.steps, Time: e.time, State: next, Wrapped: dynamo.ErrInvalidState}
		}
		b.arm.x = next
		if err := e.refresh(b); err != nil {
			return err
		}
	}
	e.time += e.dt
	e.steps++
	return nil
}

func (e *Engine) BasePose(id BodyID) (spatial.Pose, error) {
	b, err := e.body(id)
	if err != nil {
		return spatial.Pose{}, err
	}
	return b.pose, nil
}

func (e *Engine) ResetBasePositionAndOrientation(id BodyID, pos r3.Vec, orn quat.Number) error {
	b, err := e.body(id)
	if err != nil {
		return err
	}
	b.pose = spatial.NewPose(pos, spatial.Normalize(orn))
	if b.arm != nil {
		return e.refresh(b)
	}
	return nil
}

func (a *arm) checkJoint(joint int) error {
	if joint < 0 || joint >= a.chain.NumLinks() {
		return fmt.Errorf("%w: %d", ErrUnknownJoint, joint)
	}
	return nil
}

// ResetJointState teleports a joint, zeroes its velocity and retargets its
// motor to the new value.
func (e *Engine) ResetJointState(id BodyID, joint int, value float64) error {
	b, err := e.body(id)
	if err != nil {
		return err
	}
	if b.arm == nil {
		return fmt.Errorf("%w: %d", ErrNotArticulated, id)
	}
	if err := b.arm.checkJoint(joint); err != nil {
		return err
	}
	n := b.arm.chain.NumLinks()
	b.arm.x[joint] = value
	b.arm.x[n+joint] = 0
	b.arm.targets[joint] = value
	return e.refresh(b)
}

func (e *Engine) JointState(id BodyID, joint int) (position, velocity float64, err error) {
	a, err := e.armBody(id)
	if err != nil {
		return 0, 0, err
	}
	if err := a.checkJoint(joint); err != nil {
		return 0, 0, err
	}
	n := a.chain.NumLinks()
	return a.x[joint], a.x[n+joint], nil
}

func (e *Engine) NumJoints(id BodyID) (int, error) {
	a, err := e.armBody(id)
	if err != nil {
		return 0, err
	}
	return a.chain.NumLinks(), nil
}

// SetJointMotorControlArray sets position targets and force limits for
// the given joints.
func (e *Engine) SetJointMotorControlArray(id BodyID, joints []int, targets, forces []float64) error {
	a, err := e.armBody(id)
	if err != nil {
		return err
	}
	if len(targets) != len(joints) || (forces != nil && len(forces) != len(joints)) {
		return fmt.Errorf("%w: %d joints, %d targets, %d forces",
			dynamo.ErrDimensionMismatch, len(joints), len(targets), len(forces))
	}
	for _, j := range joints {
		if err := a.checkJoint(j); err != nil {
			return err
		}
	}
	for i, j := range joints {
		a.targets[j] = targets[i]
		if forces != nil {
			a.servo.Force[j] = forces[i]
		}
	}
	return nil
}

func (e *Engine) LinkState(id BodyID, link int, computeVelocity bool) (LinkState, error) {
	b, err := e.body(id)
	if err != nil {
		return LinkState{}, err
	}
	a := b.arm
	if a == nil {
		return LinkState{}, fmt.Errorf("%w: %d (%s)", ErrNotArticulated, id, b.spec.Name)
	}
	if link < 0 || link >= a.chain.NumLinks() {
		return LinkState{}, fmt.Errorf("%w: %d", ErrUnknownLink, link)
	}
	pose := spatial.FromTransform(a.frames[link])
	ls := LinkState{Position: pose.Position, Orientation: pose.Orientation}
	if computeVelocity {
		ls.LinearVelocity = a.linkVelocity(b.pose, link)
	}
	return ls, nil
}

// linkVelocity is the linear part of J(q) qd over all movable joints.
func (a *arm) linkVelocity(base spatial.Pose, link int) r3.Vec {
	n := a.chain.NumLinks()
	j, err := a.chain.Jacobian(base, a.x[:n], link, a.movable)
	if err != nil {
		return r3.Vec{}
	}
	qd := make([]float64, len(a.movable))
	for i, ji := range a.movable {
		qd[i] = a.x[n+ji]
	}
	var v mat.VecDense
	v.MulVec(j.Slice(0, 3, 0, len(a.movable)), mat.NewVecDense(len(qd), qd))
	return r3.Vec{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)}
}
