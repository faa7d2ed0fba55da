// Package env exposes the reaching task as an episodic environment:
// Reset, Step and Close over a dictionary observation.
package env

import (
	"fmt"
	"image"

	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/render"
	"github.com/san-kum/reachenv/internal/robot"
	"github.com/san-kum/reachenv/internal/sim"
	"github.com/san-kum/reachenv/internal/spaces"
	"github.com/san-kum/reachenv/internal/task"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// velocityGate triggers an extra simulation step while the summed
	// end-effector velocity components exceed it.
	velocityGate    = 0.1
	maxExtraSteps   = 2
	observationHigh = 10.0
)

type Info = task.Info

type ResetOptions struct {
	// Seed reseeds the goal sampler; nil draws a random seed.
	Seed *uint64
	// Goal overrides the sampled goal.
	Goal []float64
}

type Option func(*Env)

func WithLogger(l *zap.Logger) Option {
	return func(e *Env) { e.log = l }
}

func WithIntegrator(integ dynamo.Integrator) Option {
	return func(e *Env) { e.integrator = integ }
}

type Env struct {
	cfg        config.Config
	sim        *sim.Simulation
	robot      *robot.Panda
	task       *task.Reach
	log        *zap.Logger
	integrator dynamo.Integrator

	observationSpace *spaces.Dict
	seeder           *rand.Rand

	steps   int
	lastObs Observation
}

func New(cfg config.Config, opts ...Option) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Env{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	s, err := sim.New(sim.Options{
		RenderMode:      sim.RenderMode(cfg.RenderMode),
		Renderer:        sim.Renderer(cfg.Renderer),
		NSubsteps:       cfg.NSubsteps,
		Timestep:        cfg.Timestep,
		OrientationTask: cfg.Task.OrientationTask,
		DebugMode:       cfg.DebugMode,
		Integrator:      e.integrator,
		Logger:          e.log,
	})
	if err != nil {
		return nil, err
	}
	e.sim = s

	if err := e.build(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return e, nil
}

func (e *Env) build() error {
	if err := e.sim.CreateScene(); err != nil {
		return err
	}
	ro := robot.DefaultOptions()
	ro.ControlType = robot.ControlType(e.cfg.ControlType)
	ro.Logger = e.log
	r, err := robot.NewPanda(e.sim, ro)
	if err != nil {
		return err
	}
	e.robot = r

	id, err := e.sim.BodyID(sim.ArmBody)
	if err != nil {
		return err
	}
	servo, err := e.sim.Engine().Servo(id)
	if err != nil {
		return err
	}
	for name, v := range map[string]float64{"kp": e.cfg.Servo.Kp, "kd": e.cfg.Servo.Kd, "inertia": e.cfg.Servo.Inertia} {
		if err := servo.SetParam(name, v); err != nil {
			return err
		}
	}

	t, err := task.NewReach(e.sim, r, e.cfg.TaskParams(), e.log)
	if err != nil {
		return err
	}
	e.task = t
	e.seeder = rand.New(rand.NewSource(e.cfg.Seed))

	seed := e.cfg.Seed
	obs, _, err := e.Reset(ResetOptions{Seed: &seed})
	if err != nil {
		return err
	}
	e.observationSpace = spaces.NewDict(map[string]*spaces.Box{
		KeyRobotPos:     spaces.UniformBox(-observationHigh, observationHigh, len(obs.RobotPos)),
		KeyObstacleDist: spaces.UniformBox(-observationHigh, observationHigh, len(obs.ObstacleDist)),
		KeyAchieved:     spaces.UniformBox(-observationHigh, observationHigh, len(obs.AchievedGoal)),
		KeyDesired:      spaces.UniformBox(-observationHigh, observationHigh, len(obs.AchievedGoal)),
	})

	return e.sim.WithoutRendering(func() error {
		c := render.DefaultCamera()
		e.sim.PlaceCamera(c.Target, c.Distance, c.Yaw, c.Pitch)
		return nil
	})
}

func (e *Env) Config() config.Config          { return e.cfg }
func (e *Env) Sim() *sim.Simulation           { return e.sim }
func (e *Env) Robot() *robot.Panda            { return e.robot }
func (e *Env) Task() *task.Reach              { return e.task }
func (e *Env) ObservationSpace() *spaces.Dict { return e.observationSpace }
func (e *Env) ActionSpace() *spaces.Box       { return e.robot.ActionSpace() }
func (e *Env) ElapsedSteps() int              { return e.steps }
func (e *Env) CollisionMargin() float64       { return e.cfg.CollisionMargin }
func (e *Env) LastObservation() Observation   { return e.lastObs }

func (e *Env) Reset(opts ResetOptions) (Observation, Info, error) {
	if e.sim.Closed() {
		return Observation{}, Info{}, physics.ErrNotConnected
	}
	seed := e.seeder.Uint64()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	e.task.Seed(seed)

	err := e.sim.WithoutRendering(func() error {
		if err := e.robot.Reset(); err != nil {
			return err
		}
		return e.task.Reset()
	})
	if err != nil {
		return Observation{}, Info{}, err
	}
	if opts.Goal != nil {
		if err := e.task.SetGoal(opts.Goal); err != nil {
			return Observation{}, Info{}, err
		}
	}
	e.steps = 0

	obs, err := e.observe()
	if err != nil {
		return Observation{}, Info{}, err
	}
	info := Info{IsSuccess: e.task.IsSuccess(obs.achieved, obs.desired)}
	e.log.Debug("reset", zap.Uint64("seed", seed), zap.Float64s("goal", obs.desired))
	return obs.Observation, info, nil
}

// Step applies action and advances the simulation. The episode
// terminates on collision or success; it is truncated only when
// MaxEpisodeSteps is positive and reached.
func (e *Env) Step(action []float64) (obs Observation, reward float64, terminated, truncated bool, info Info, err error) {
	if e.sim.Closed() {
		return Observation{}, 0, false, false, Info{}, physics.ErrNotConnected
	}
	if err := e.robot.SetAction(action); err != nil {
		return Observation{}, 0, false, false, Info{}, err
	}
	if err := e.sim.Step(); err != nil {
		return Observation{}, 0, false, false, Info{}, err
	}
	for i := 0; i < maxExtraSteps; i++ {
		v, err := e.robot.EEVelocity()
		if err != nil {
			return Observation{}, 0, false, false, Info{}, err
		}
		if floats.Sum([]float64{v.X, v.Y, v.Z}) <= velocityGate {
			break
		}
		if err := e.sim.Step(); err != nil {
			return Observation{}, 0, false, false, Info{}, err
		}
	}
	e.steps++

	o, err := e.observe()
	if err != nil {
		return Observation{}, 0, false, false, Info{}, err
	}

	collided, err := e.sim.IsCollision(e.cfg.CollisionMargin)
	if err != nil {
		return Observation{}, 0, false, false, Info{}, err
	}
	if collided {
		terminated = true
		info = Info{IsSuccess: false, IsCollision: true}
	} else {
		terminated = e.task.IsSuccess(o.achieved, o.desired)
		info = Info{IsSuccess: terminated}
	}
	truncated = e.cfg.MaxEpisodeSteps > 0 && e.steps >= e.cfg.MaxEpisodeSteps
	reward = e.task.ComputeReward(o.achieved, o.desired, info, e.sim.LastClearance())

	if collided {
		e.log.Debug("collision", zap.Int("step", e.steps), zap.Float64("clearance", e.sim.LastClearance()))
	}
	return o.Observation, reward, terminated, truncated, info, nil
}

// ComputeReward scores an arbitrary achieved/desired pair, for relabelling
// stored transitions.
func (e *Env) ComputeReward(achieved, desired []float64, info Info, clearance float64) (float64, error) {
	if err := task.CheckGoals(achieved, desired); err != nil {
		return 0, err
	}
	return e.task.ComputeReward(achieved, desired, info, clearance), nil
}

// ComputeRewards is the batched form with one goal per row.
func (e *Env) ComputeRewards(achieved, desired mat.Matrix, infos []Info, clearances []float64) ([]float64, error) {
	return e.task.ComputeRewards(achieved, desired, infos, clearances)
}

// Render returns an rgb_array frame, or nil in human mode.
func (e *Env) Render() (image.Image, error) {
	if e.sim.Closed() {
		return nil, physics.ErrNotConnected
	}
	if e.sim.RenderMode() != sim.RenderRGBArray {
		return nil, nil
	}
	return render.Frame(e.sim.Snapshot(), e.sim.Camera(), e.cfg.Render.Width, e.cfg.Render.Height, e.sim.BackgroundColor()), nil
}

func (e *Env) Close() error {
	return e.sim.Close()
}

// Distance is the current end-effector distance to the goal.
func (e *Env) Distance() (float64, error) {
	ee, err := e.robot.EEPosition()
	if err != nil {
		return 0, err
	}
	g := e.task.Goal()
	return r3.Norm(r3.Sub(ee, r3.Vec{X: g[0], Y: g[1], Z: g[2]})), nil
}

// Validate reports whether obs lies in the observation space.
func (e *Env) Validate(obs Observation) error {
	if !e.observationSpace.Contains(obs.Float64()) {
		return fmt.Errorf("%w: observation outside space", dynamo.ErrInvalidState)
	}
	return nil
}
