// Package task implements the reaching task: goal sampling around a
// fixed centre, success checks and reward shaping around the obstacle.
package task

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/robot"
	"github.com/san-kum/reachenv/internal/sim"
	"github.com/san-kum/reachenv/internal/spatial"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrGoalSampling = errors.New("task: could not sample a goal clear of the obstacle")
	ErrGoalShape    = errors.New("task: goal must have 3 (position) or 7 (position and quaternion) components")
	ErrRewardType   = errors.New("task: reward type must be 'dense' or 'sparse'")
)

type RewardType string

const (
	Dense  RewardType = "dense"
	Sparse RewardType = "sparse"
)

const (
	maxGoalAttempts = 1000
	minGoalHeight   = 0.02
)

// DownOrientation points the gripper at the table.
var DownOrientation = quat.Number{Real: 0, Imag: 1}

type Params struct {
	RewardType           RewardType
	DistanceThreshold    float64
	OrientationThreshold float64
	GoalRange            float64
	GoalCenter           r3.Vec
	OrientationTask      bool

	CollisionPenalty  float64
	SafetyDistance    float64
	ProximityWeight   float64
	OrientationWeight float64
	// ObstacleClearance is the minimum goal distance from the obstacle.
	ObstacleClearance float64
}

func DefaultParams() Params {
	return Params{
		RewardType:           Dense,
		DistanceThreshold:    0.05,
		OrientationThreshold: 0.1,
		GoalRange:            0.3,
		GoalCenter:           r3.Vec{X: 0.6, Z: 0.15},
		CollisionPenalty:     10,
		SafetyDistance:       0.05,
		ProximityWeight:      1,
		OrientationWeight:    0.5,
		ObstacleClearance:    0.04,
	}
}

func (p Params) Validate() error {
	if p.RewardType != Dense && p.RewardType != Sparse {
		return fmt.Errorf("%w: got %q", ErrRewardType, p.RewardType)
	}
	checks := []struct {
		name  string
		value float64
		ok    bool
	}{
		{"distance_threshold", p.DistanceThreshold, p.DistanceThreshold > 0},
		{"orientation_threshold", p.OrientationThreshold, p.OrientationThreshold > 0},
		{"goal_range", p.GoalRange, p.GoalRange >= 0},
		{"collision_penalty", p.CollisionPenalty, p.CollisionPenalty >= 0},
		{"safety_distance", p.SafetyDistance, p.SafetyDistance >= 0},
		{"proximity_weight", p.ProximityWeight, p.ProximityWeight >= 0},
		{"orientation_weight", p.OrientationWeight, p.OrientationWeight >= 0},
		{"obstacle_clearance", p.ObstacleClearance, p.ObstacleClearance >= 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s=%g", dynamo.ErrParameterBounds, c.name, c.value)
		}
	}
	return nil
}

// Info describes the outcome of a step.
type Info struct {
	IsSuccess   bool
	IsCollision bool
}

type Reach struct {
	sim    *sim.Simulation
	robot  *robot.Panda
	params Params
	log    *zap.Logger

	goalPos *distmv.Uniform
	goalYaw distuv.Uniform
	goal    []float64
}

func NewReach(s *sim.Simulation, r *robot.Panda, params Params, logger *zap.Logger) (*Reach, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Reach{
		sim:    s,
		robot:  r,
		params: params,
		log:    logger.Named("task"),
	}
	t.Seed(0)
	t.goal = make([]float64, t.GoalDim())
	return t, nil
}

func (t *Reach) Params() Params { return t.params }

// GoalDim is 3, or 7 when the goal includes an orientation.
func (t *Reach) GoalDim() int {
	if t.params.OrientationTask {
		return 7
	}
	return 3
}

// Seed reseeds the goal sampler.
func (t *Reach) Seed(seed uint64) {
	half := t.params.GoalRange / 2
	c := t.params.GoalCenter
	bounds := []r1.Interval{
		{Min: c.X - half, Max: c.X + half},
		{Min: c.Y - half, Max: c.Y + half},
		{Min: c.Z - half, Max: c.Z + half},
	}
	t.goalPos = distmv.NewUniform(bounds, rand.NewSource(seed))
	t.goalYaw = distuv.Uniform{Min: -math.Pi / 2, Max: math.Pi / 2, Src: rand.NewSource(seed + 1)}
}

func (t *Reach) obstacleDistance(p r3.Vec) float64 {
	box := physics.Box{HalfExtents: sim.ObstacleHalfExtents}
	return box.SignedDistance(r3.Sub(p, sim.ObstaclePosition))
}

func (t *Reach) sampleGoal() ([]float64, error) {
	for i := 0; i < maxGoalAttempts; i++ {
		x := t.goalPos.Rand(nil)
		p := r3.Vec{X: x[0], Y: x[1], Z: math.Max(x[2], minGoalHeight)}
		if t.obstacleDistance(p) < t.params.ObstacleClearance {
			continue
		}
		goal := spatial.Slice(p)
		if t.params.OrientationTask {
			q := quat.Mul(spatial.FromAxisAngle(r3.Vec{Z: 1}, t.goalYaw.Rand()), DownOrientation)
			goal = append(goal, spatial.ToXYZW(q)...)
		}
		return goal, nil
	}
	return nil, fmt.Errorf("%w: %d attempts", ErrGoalSampling, maxGoalAttempts)
}

// Reset samples a new goal and moves the target markers to it.
func (t *Reach) Reset() error {
	goal, err := t.sampleGoal()
	if err != nil {
		return err
	}
	return t.SetGoal(goal)
}

func (t *Reach) Goal() []float64 {
	return append([]float64(nil), t.goal...)
}

// SetGoal overrides the goal. A 3-component goal on an orientation task
// keeps the downward orientation.
func (t *Reach) SetGoal(goal []float64) error {
	switch {
	case len(goal) == 3 && t.params.OrientationTask:
		goal = append(append([]float64(nil), goal...), spatial.ToXYZW(DownOrientation)...)
	case len(goal) == t.GoalDim():
		goal = append([]float64(nil), goal...)
	default:
		return fmt.Errorf("%w: got %d", ErrGoalShape, len(goal))
	}
	pos, _ := spatial.Vec(goal[:3])
	if err := t.sim.SetBasePose(sim.TargetBody, pos, []float64{0, 0, 0, 1}); err != nil {
		return err
	}
	if t.params.OrientationTask {
		q, err := spatial.FromXYZW(goal[3:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGoalShape, err)
		}
		// Lay the mark along the gripper x axis.
		mark := quat.Mul(q, spatial.FromAxisAngle(r3.Vec{Y: 1}, math.Pi/2))
		if err := t.sim.SetBasePose(sim.OrientationMarkBody, pos, spatial.ToXYZW(mark)); err != nil {
			return err
		}
	}
	t.goal = goal
	t.log.Debug("goal", zap.Float64s("goal", goal))
	return nil
}

// AchievedGoal is the end-effector position, followed by its orientation
// for orientation tasks.
func (t *Reach) AchievedGoal() ([]float64, error) {
	ee, err := t.robot.EEPosition()
	if err != nil {
		return nil, err
	}
	out := spatial.Slice(ee)
	if t.params.OrientationTask {
		q, err := t.robot.EEOrientation()
		if err != nil {
			return nil, err
		}
		out = append(out, spatial.ToXYZW(q)...)
	}
	return out, nil
}
