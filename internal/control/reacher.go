package control

import (
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/kinematics"
	"github.com/san-kum/reachenv/internal/robot"
	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type ReacherOptions struct {
	Kp, Ki, Kd float64
	// Damping regularises the least-squares joint step near singularities.
	Damping float64
	// SafeClearance is the obstacle clearance below which the target is
	// lifted by up to Lift metres.
	SafeClearance float64
	Lift          float64
}

func DefaultReacherOptions() ReacherOptions {
	return ReacherOptions{
		Kp:            1,
		Damping:       0.05,
		SafeClearance: 0.06,
		Lift:          0.05,
	}
}

// Reacher steers the end effector straight at the desired goal.
type Reacher struct {
	opts    ReacherOptions
	pid     *PID
	chain   *kinematics.Chain
	base    spatial.Pose
	control robot.ControlType
	dt      float64
}

func NewReacher(e *env.Env, opts ReacherOptions) (*Reacher, error) {
	if opts.Damping < 0 || opts.SafeClearance < 0 || opts.Lift < 0 {
		return nil, fmt.Errorf("%w: reacher options must be non-negative", dynamo.ErrParameterBounds)
	}
	return &Reacher{
		opts:    opts,
		pid:     NewPID(opts.Kp, opts.Ki, opts.Kd),
		chain:   e.Robot().Chain(),
		base:    e.Robot().Base(),
		control: e.Robot().ControlType(),
		dt:      e.Sim().Dt(),
	}, nil
}

func (r *Reacher) Name() string { return "reacher" }

func (r *Reacher) Reset() { r.pid.Reset() }

func (r *Reacher) Act(obs env.Observation) ([]float64, error) {
	if len(obs.AchievedGoal) < 3 || len(obs.DesiredGoal) < 3 {
		return nil, fmt.Errorf("%w: goals need a position", dynamo.ErrDimensionMismatch)
	}
	achieved := env.Float64s(obs.AchievedGoal[:3])
	desired := env.Float64s(obs.DesiredGoal[:3])
	e := make([]float64, 3)
	floats.SubTo(e, desired, achieved)

	if len(obs.ObstacleDist) > 0 && r.opts.SafeClearance > 0 {
		clearance := float64(obs.ObstacleDist[0])
		for _, d := range obs.ObstacleDist[1:] {
			clearance = math.Min(clearance, float64(d))
		}
		if clearance < r.opts.SafeClearance {
			e[2] += r.opts.Lift * (1 - math.Max(clearance, 0)/r.opts.SafeClearance)
		}
	}

	u := r.pid.Compute(e, r.dt)
	if r.control == robot.ControlEE {
		floats.Scale(1/robot.EEStep, u)
		return normalise(u), nil
	}

	dq, err := r.jointStep(obs.RobotPos, u)
	if err != nil {
		return nil, err
	}
	floats.Scale(1/robot.JointStep, dq)
	return normalise(dq), nil
}

// jointStep maps a task-space displacement to arm joint displacements with
// damped least squares.
func (r *Reacher) jointStep(arm []float32, dx []float64) ([]float64, error) {
	if len(arm) != len(robot.ArmJoints) {
		return nil, fmt.Errorf("%w: expected %d joint angles, got %d", dynamo.ErrDimensionMismatch, len(robot.ArmJoints), len(arm))
	}
	q := make([]float64, r.chain.NumLinks())
	for i, j := range robot.ArmJoints {
		q[j] = float64(arm[i])
	}
	jac, err := r.chain.Jacobian(r.base, q, robot.EELink, robot.ArmJoints)
	if err != nil {
		return nil, err
	}
	jp := jac.Slice(0, 3, 0, len(robot.ArmJoints))

	var a mat.Dense
	a.Mul(jp, jp.T())
	lambda := r.opts.Damping * r.opts.Damping
	for i := 0; i < 3; i++ {
		a.Set(i, i, a.At(i, i)+lambda)
	}
	var y mat.VecDense
	if err := y.SolveVec(&a, mat.NewVecDense(3, dx)); err != nil {
		return nil, fmt.Errorf("reacher: %w", err)
	}
	dq := mat.NewVecDense(len(robot.ArmJoints), nil)
	dq.MulVec(jp.T(), &y)
	return dq.RawVector().Data, nil
}

func (r *Reacher) GetParams() map[string]float64 {
	p := r.pid.GetParams()
	p["damping"] = r.opts.Damping
	p["safe_clearance"] = r.opts.SafeClearance
	p["lift"] = r.opts.Lift
	return p
}

func (r *Reacher) SetParam(name string, value float64) error {
	if value < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %v", dynamo.ErrParameterBounds, name, value)
	}
	switch name {
	case "damping":
		r.opts.Damping = value
	case "safe_clearance":
		r.opts.SafeClearance = value
	case "lift":
		r.opts.Lift = value
	default:
		return r.pid.SetParam(name, value)
	}
	return nil
}

// normalise scales v into [-1, 1] keeping its direction.
func normalise(v []float64) []float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	if m > 1 {
		floats.Scale(1/m, v)
	}
	return v
}
