// Package robot drives the Panda arm inside a simulation: it turns
// normalised actions into joint targets and reports joint and
// end-effector state.
package robot

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/kinematics"
	"github.com/san-kum/reachenv/internal/sim"
	"github.com/san-kum/reachenv/internal/spaces"
	"github.com/san-kum/reachenv/internal/spatial"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrActionShape = errors.New("robot: action has the wrong number of components")
	ErrControlType = errors.New("robot: control type must be 'joints' or 'ee'")
	ErrArmShape    = errors.New("robot: loaded arm has too few links")
)

type ControlType string

const (
	ControlJoints ControlType = "joints"
	ControlEE     ControlType = "ee"
)

const (
	EELink = kinematics.PandaGraspTarget
	// JointStep is the joint change in radians for a unit action.
	JointStep = 0.05
	// EEStep is the end-effector displacement in metres for a unit action.
	EEStep = 0.05
)

var (
	ArmJoints    = kinematics.PandaArmJoints
	FingerJoints = kinematics.PandaFingerJoints
	// JointForces are the motor force limits for the arm then the fingers.
	JointForces = []float64{87, 87, 87, 87, 12, 120, 120, 170, 170}
	// NeutralJointValues is the rest pose for the arm then the fingers.
	NeutralJointValues = []float64{0, -0.6, 0, -2.8, 0, 2.2, 0.785, 0, 0}
)

type Options struct {
	ControlType ControlType
	Base        spatial.Pose
	Logger      *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		ControlType: ControlJoints,
		Base:        spatial.NewPose(r3.Vec{}, spatial.Identity()),
	}
}

type Panda struct {
	sim   *sim.Simulation
	chain *kinematics.Chain
	opts  Options
	log   *zap.Logger

	actionSpace *spaces.Box
	joints      []int
}

func NewPanda(s *sim.Simulation, opts Options) (*Panda, error) {
	var dim int
	switch opts.ControlType {
	case ControlJoints:
		dim = len(ArmJoints)
	case ControlEE:
		dim = 3
	default:
		return nil, fmt.Errorf("%w: got %q", ErrControlType, opts.ControlType)
	}
	if opts.Base.Orientation == (quat.Number{}) {
		opts.Base.Orientation = spatial.Identity()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	p := &Panda{
		sim:         s,
		chain:       kinematics.Panda(),
		opts:        opts,
		log:         opts.Logger.Named("robot"),
		actionSpace: spaces.UniformBox(-1, 1, dim),
		joints:      append(append([]int(nil), ArmJoints...), FingerJoints...),
	}
	if err := s.LoadArm(sim.ArmBody, p.chain, opts.Base); err != nil {
		return nil, err
	}
	n, err := s.NumJoints(sim.ArmBody)
	if err != nil {
		return nil, err
	}
	if n <= EELink {
		return nil, fmt.Errorf("%w: arm has %d links, end effector is link %d", ErrArmShape, n, EELink)
	}
	if err := p.Reset(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Panda) Chain() *kinematics.Chain { return p.chain }
func (p *Panda) ControlType() ControlType { return p.opts.ControlType }
func (p *Panda) Base() spatial.Pose       { return p.opts.Base }
func (p *Panda) ActionSpace() *spaces.Box { return p.actionSpace }

// SetAction clips action to [-1, 1] and sends the resulting joint
// targets. The gripper is held closed.
func (p *Panda) SetAction(action []float64) error {
	if len(action) != p.actionSpace.Dim() {
		return fmt.Errorf("%w: got %d, want %d", ErrActionShape, len(action), p.actionSpace.Dim())
	}
	for _, a := range action {
		if math.IsNaN(a) {
			return fmt.Errorf("%w: NaN component", ErrActionShape)
		}
	}
	action = p.actionSpace.Clip(action)

	var arm []float64
	var err error
	switch p.opts.ControlType {
	case ControlEE:
		arm, err = p.eeTargets(action)
	default:
		arm, err = p.jointTargets(action)
	}
	if err != nil {
		return err
	}
	targets := append(arm, 0, 0)
	return p.sim.ControlJoints(sim.ArmBody, p.joints, targets, JointForces)
}

func (p *Panda) jointTargets(action []float64) ([]float64, error) {
	current, err := p.Obs()
	if err != nil {
		return nil, err
	}
	targets := make([]float64, len(ArmJoints))
	for i, j := range ArmJoints {
		targets[i] = p.chain.Links[j].Clip(current[i] + action[i]*JointStep)
	}
	return targets, nil
}

func (p *Panda) eeTargets(action []float64) ([]float64, error) {
	ee, err := p.EEPosition()
	if err != nil {
		return nil, err
	}
	target := r3.Add(ee, r3.Scale(EEStep, r3.Vec{X: action[0], Y: action[1], Z: action[2]}))
	target.Z = math.Max(0, target.Z)

	q, err := p.JointAngles()
	if err != nil {
		return nil, err
	}
	sol, err := p.chain.InverseKinematics(p.opts.Base, q, EELink,
		spatial.NewPose(target, spatial.Identity()), kinematics.DefaultIKOptions(ArmJoints))
	if err != nil {
		if !errors.Is(err, kinematics.ErrNoConvergence) {
			return nil, err
		}
		p.log.Debug("ik best effort", zap.Error(err))
	}
	targets := make([]float64, len(ArmJoints))
	for i, j := range ArmJoints {
		targets[i] = sol[j]
	}
	return targets, nil
}

// Obs returns the seven arm joint angles.
func (p *Panda) Obs() ([]float64, error) {
	obs := make([]float64, len(ArmJoints))
	for i, j := range ArmJoints {
		q, err := p.sim.JointAngle(sim.ArmBody, j)
		if err != nil {
			return nil, err
		}
		obs[i] = q
	}
	return obs, nil
}

// JointAngles returns one value per link, fixed links included.
func (p *Panda) JointAngles() ([]float64, error) {
	q := make([]float64, p.chain.NumLinks())
	for j := range q {
		v, err := p.sim.JointAngle(sim.ArmBody, j)
		if err != nil {
			return nil, err
		}
		q[j] = v
	}
	return q, nil
}

// Reset puts the arm and fingers back in the neutral pose.
func (p *Panda) Reset() error {
	return p.sim.SetJointAngles(sim.ArmBody, p.joints, NeutralJointValues)
}

func (p *Panda) EEPosition() (r3.Vec, error) {
	return p.sim.LinkPosition(sim.ArmBody, EELink)
}

func (p *Panda) EEOrientation() (quat.Number, error) {
	return p.sim.LinkOrientation(sim.ArmBody, EELink)
}

func (p *Panda) EEVelocity() (r3.Vec, error) {
	return p.sim.LinkVelocity(sim.ArmBody, EELink)
}
