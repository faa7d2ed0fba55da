package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/sim"
	"github.com/san-kum/reachenv/internal/task"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNSubsteps       = 30
	DefaultTimestep        = 1.0 / 500
	DefaultCollisionMargin = 0.022
	// MaxCollisionMargin is the largest margin the probe geometry allows
	// before the resting arm registers as colliding.
	MaxCollisionMargin = 0.022
	DefaultSteps       = 100
	DefaultEpisodes    = 10
	DefaultWidth       = 700
	DefaultHeight      = 400
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	RenderMode      string  `yaml:"render_mode"`
	Renderer        string  `yaml:"renderer"`
	ControlType     string  `yaml:"control_type"`
	Integrator      string  `yaml:"integrator"`
	Policy          string  `yaml:"policy"`
	NSubsteps       int     `yaml:"n_substeps"`
	Timestep        float64 `yaml:"timestep"`
	CollisionMargin float64 `yaml:"collision_margin"`
	MaxEpisodeSteps int     `yaml:"max_episode_steps"`
	DebugMode       bool    `yaml:"debug_mode"`

	Episodes int    `yaml:"episodes"`
	Steps    int    `yaml:"steps"`
	Seed     uint64 `yaml:"seed"`

	Task   TaskConfig   `yaml:"task"`
	Servo  ServoConfig  `yaml:"servo"`
	Render RenderConfig `yaml:"render"`
}

type TaskConfig struct {
	RewardType           string     `yaml:"reward_type"`
	OrientationTask      bool       `yaml:"orientation_task"`
	DistanceThreshold    float64    `yaml:"distance_threshold"`
	OrientationThreshold float64    `yaml:"orientation_threshold"`
	GoalRange            float64    `yaml:"goal_range"`
	GoalCenter           [3]float64 `yaml:"goal_center,flow"`
	CollisionPenalty     float64    `yaml:"collision_penalty"`
	SafetyDistance       float64    `yaml:"safety_distance"`
	ProximityWeight      float64    `yaml:"proximity_weight"`
	OrientationWeight    float64    `yaml:"orientation_weight"`
	ObstacleClearance    float64    `yaml:"obstacle_clearance"`
}

type ServoConfig struct {
	Kp      float64 `yaml:"kp"`
	Kd      float64 `yaml:"kd"`
	Inertia float64 `yaml:"inertia"`
}

type RenderConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func DefaultConfig() *Config {
	tp := task.DefaultParams()
	return &Config{
		RenderMode:      "rgb_array",
		Renderer:        "Tiny",
		ControlType:     "joints",
		Integrator:      "rk4",
		Policy:          "reacher",
		NSubsteps:       DefaultNSubsteps,
		Timestep:        DefaultTimestep,
		CollisionMargin: DefaultCollisionMargin,
		Episodes:        DefaultEpisodes,
		Steps:           DefaultSteps,
		Task: TaskConfig{
			RewardType:           string(tp.RewardType),
			DistanceThreshold:    tp.DistanceThreshold,
			OrientationThreshold: tp.OrientationThreshold,
			GoalRange:            tp.GoalRange,
			GoalCenter:           [3]float64{tp.GoalCenter.X, tp.GoalCenter.Y, tp.GoalCenter.Z},
			CollisionPenalty:     tp.CollisionPenalty,
			SafetyDistance:       tp.SafetyDistance,
			ProximityWeight:      tp.ProximityWeight,
			OrientationWeight:    tp.OrientationWeight,
			ObstacleClearance:    tp.ObstacleClearance,
		},
		Servo:  ServoConfig{Kp: 900, Kd: 60, Inertia: 0.5},
		Render: RenderConfig{Width: DefaultWidth, Height: DefaultHeight},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto overlays the file at path on cfg; keys absent from the file
// keep their current value.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// TaskParams converts the task section for the task package.
func (c *Config) TaskParams() task.Params {
	t := c.Task
	return task.Params{
		RewardType:           task.RewardType(t.RewardType),
		DistanceThreshold:    t.DistanceThreshold,
		OrientationThreshold: t.OrientationThreshold,
		GoalRange:            t.GoalRange,
		GoalCenter:           r3.Vec{X: t.GoalCenter[0], Y: t.GoalCenter[1], Z: t.GoalCenter[2]},
		OrientationTask:      t.OrientationTask,
		CollisionPenalty:     t.CollisionPenalty,
		SafetyDistance:       t.SafetyDistance,
		ProximityWeight:      t.ProximityWeight,
		OrientationWeight:    t.OrientationWeight,
		ObstacleClearance:    t.ObstacleClearance,
	}
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	switch {
	case !oneOf(c.RenderMode, "human", "rgb_array"):
		return fmt.Errorf("%w: %w: got %q", ErrInvalidConfig, sim.ErrInvalidRenderMode, c.RenderMode)
	case c.RenderMode == "rgb_array" && !oneOf(c.Renderer, "Tiny", "OpenGL"):
		return fmt.Errorf("%w: %w: got %q", ErrInvalidConfig, sim.ErrInvalidRenderer, c.Renderer)
	case !oneOf(c.ControlType, "joints", "ee"):
		return fmt.Errorf("%w: control_type %q", ErrInvalidConfig, c.ControlType)
	case c.NSubsteps <= 0:
		return fmt.Errorf("%w: n_substeps=%d", dynamo.ErrParameterBounds, c.NSubsteps)
	case c.Timestep <= 0:
		return fmt.Errorf("%w: timestep=%g", dynamo.ErrParameterBounds, c.Timestep)
	case c.CollisionMargin <= 0 || c.CollisionMargin > MaxCollisionMargin:
		return fmt.Errorf("%w: collision_margin=%g must be in (0, %g]", dynamo.ErrParameterBounds, c.CollisionMargin, MaxCollisionMargin)
	case c.MaxEpisodeSteps < 0:
		return fmt.Errorf("%w: max_episode_steps=%d", dynamo.ErrParameterBounds, c.MaxEpisodeSteps)
	case c.Episodes < 0 || c.Steps < 0:
		return fmt.Errorf("%w: episodes=%d steps=%d", dynamo.ErrParameterBounds, c.Episodes, c.Steps)
	case c.Servo.Inertia <= 0:
		return fmt.Errorf("%w: servo.inertia=%g", dynamo.ErrParameterBounds, c.Servo.Inertia)
	case c.Render.Width <= 0 || c.Render.Height <= 0:
		return fmt.Errorf("%w: render size %dx%d", dynamo.ErrParameterBounds, c.Render.Width, c.Render.Height)
	}
	return c.TaskParams().Validate()
}

// GetParams exposes the numeric parameters that sweeps can vary.
func (c *Config) GetParams() map[string]float64 {
	return map[string]float64{
		"distance_threshold":    c.Task.DistanceThreshold,
		"orientation_threshold": c.Task.OrientationThreshold,
		"goal_range":            c.Task.GoalRange,
		"collision_penalty":     c.Task.CollisionPenalty,
		"safety_distance":       c.Task.SafetyDistance,
		"proximity_weight":      c.Task.ProximityWeight,
		"orientation_weight":    c.Task.OrientationWeight,
		"collision_margin":      c.CollisionMargin,
		"n_substeps":            float64(c.NSubsteps),
		"kp":                    c.Servo.Kp,
		"kd":                    c.Servo.Kd,
	}
}

// ParamRange returns the closed interval Validate accepts for a
// parameter. Unbounded sides are infinite.
func ParamRange(name string) (lo, hi float64) {
	switch name {
	case "collision_margin":
		return 0, MaxCollisionMargin
	case "n_substeps":
		return 1, math.Inf(1)
	case "distance_threshold", "orientation_threshold", "goal_range", "collision_penalty",
		"safety_distance", "proximity_weight", "orientation_weight", "kp", "kd":
		return 0, math.Inf(1)
	}
	return math.Inf(-1), math.Inf(1)
}

func (c *Config) SetParam(name string, value float64) error {
	switch name {
	case "distance_threshold":
		c.Task.DistanceThreshold = value
	case "orientation_threshold":
		c.Task.OrientationThreshold = value
	case "goal_range":
		c.Task.GoalRange = value
	case "collision_penalty":
		c.Task.CollisionPenalty = value
	case "safety_distance":
		c.Task.SafetyDistance = value
	case "proximity_weight":
		c.Task.ProximityWeight = value
	case "orientation_weight":
		c.Task.OrientationWeight = value
	case "collision_margin":
		c.CollisionMargin = value
	case "n_substeps":
		c.NSubsteps = int(value)
	case "kp":
		c.Servo.Kp = value
	case "kd":
		c.Servo.Kd = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
