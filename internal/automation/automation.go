// Package automation runs scripted rollout scenarios, parameter sweeps and
// Monte Carlo perturbation studies on top of experiment runners.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/experiment"
	"github.com/san-kum/reachenv/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

var ErrUnknownPreset = errors.New("automation: unknown preset")

// Scenario defines a scripted sequence of rollouts
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one rollout. Zero fields keep the preset's value.
type ScenarioStep struct {
	Preset      string             `yaml:"preset"`
	Policy      string             `yaml:"policy"`
	Integrator  string             `yaml:"integrator"`
	ControlType string             `yaml:"control_type"`
	Episodes    int                `yaml:"episodes"`
	MaxSteps    int                `yaml:"steps"`
	Seed        uint64             `yaml:"seed"`
	Params      map[string]float64 `yaml:"params"`
	SaveAs      string             `yaml:"save_as"`
}

type StepResult struct {
	Step   ScenarioStep
	Result *experiment.Result
	// RunID is set when the step was saved.
	RunID string
}

type Options struct {
	Registry *experiment.Registry
	// Store receives steps with SaveAs set; nil disables saving.
	Store  *storage.Store
	Logger *zap.Logger
}

func (o Options) fill() Options {
	if o.Registry == nil {
		o.Registry = experiment.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: no steps", path)
	}
	return &scenario, nil
}

func presetConfig(name string) (*config.Config, error) {
	if name == "" {
		name = "reach"
	}
	cfg := config.GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return cfg, nil
}

// Config resolves the step against its preset.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg, err := presetConfig(s.Preset)
	if err != nil {
		return nil, err
	}
	if s.Policy != "" {
		cfg.Policy = s.Policy
	}
	if s.Integrator != "" {
		cfg.Integrator = s.Integrator
	}
	if s.ControlType != "" {
		cfg.ControlType = s.ControlType
	}
	if s.Episodes > 0 {
		cfg.Episodes = s.Episodes
	}
	if s.MaxSteps > 0 {
		cfg.Steps = s.MaxSteps
	}
	if s.Seed != 0 {
		cfg.Seed = s.Seed
	}
	for k, v := range s.Params {
		if err := cfg.SetParam(k, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// rollout runs cfg.Episodes episodes of cfg on a fresh runner.
func rollout(ctx context.Context, cfg config.Config, opts Options) (*experiment.Result, error) {
	r, err := experiment.NewRunner(cfg, opts.Registry, opts.Logger)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Run(ctx, experiment.Config{Episodes: cfg.Episodes, MaxSteps: cfg.Steps, Seed: cfg.Seed})
}

// RunScenario executes all steps in a scenario
func RunScenario(ctx context.Context, scenario *Scenario, opts Options) ([]StepResult, error) {
	opts = opts.fill()
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		opts.Logger.Info("scenario step",
			zap.String("scenario", scenario.Name),
			zap.Int("step", i+1),
			zap.Int("of", len(scenario.Steps)),
			zap.String("preset", step.Preset),
			zap.String("policy", step.Policy),
		)

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		res, err := rollout(ctx, *cfg, opts)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Step: step, Result: res}
		if step.SaveAs != "" && opts.Store != nil {
			if sr.RunID, err = opts.Store.Save(step.SaveAs, *cfg, res); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep varies one config parameter linearly
type ParameterSweep struct {
	Preset    string
	Policy    string
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
	Episodes  int
	MaxSteps  int
	Seed      uint64
}

type SweepResult struct {
	ParamValue    float64
	SuccessRate   float64
	CollisionRate float64
	MeanReturn    float64
	MinClearance  float64
}

func summarize(value float64, res *experiment.Result) SweepResult {
	return SweepResult{
		ParamValue:    value,
		SuccessRate:   res.Metrics["success_rate"],
		CollisionRate: res.Metrics["collision_rate"],
		MeanReturn:    res.Metrics["mean_return"],
		MinClearance:  res.Metrics["min_clearance"],
	}
}

func (s *ParameterSweep) base() (*config.Config, error) {
	cfg, err := presetConfig(s.Preset)
	if err != nil {
		return nil, err
	}
	if s.Policy != "" {
		cfg.Policy = s.Policy
	}
	if s.Episodes > 0 {
		cfg.Episodes = s.Episodes
	}
	if s.MaxSteps > 0 {
		cfg.Steps = s.MaxSteps
	}
	cfg.Seed = s.Seed
	if _, ok := cfg.GetParams()[s.ParamName]; !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, s.ParamName)
	}
	return cfg, nil
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, opts Options) ([]SweepResult, error) {
	opts = opts.fill()
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", dynamo.ErrParameterBounds)
	}
	base, err := sweep.base()
	if err != nil {
		return nil, err
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		cfg := base.Clone()
		if err := cfg.SetParam(sweep.ParamName, paramVal); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}

		res, err := rollout(ctx, *cfg, opts)
		if err != nil {
			return nil, err
		}
		sr := summarize(paramVal, res)
		results = append(results, sr)

		opts.Logger.Info("sweep",
			zap.Int("step", i+1),
			zap.Int("of", sweep.NumSteps),
			zap.String("param", sweep.ParamName),
			zap.Float64("value", paramVal),
			zap.Float64("success_rate", sr.SuccessRate),
			zap.Float64("collision_rate", sr.CollisionRate),
		)
	}

	return results, nil
}

// MonteCarloConfig perturbs one parameter by a relative amount per trial.
type MonteCarloConfig struct {
	Preset       string
	Policy       string
	ParamName    string
	Perturbation float64
	NumTrials    int
	Episodes     int
	MaxSteps     int
	Seed         uint64
}

type MonteCarloResult struct {
	TrialID int
	SweepResult
	Metrics map[string]float64
}

// RunMonteCarlo executes trials with the parameter drawn uniformly from
// value*(1 ± Perturbation), clamped to the range the config accepts.
// Trials whose config still fails validation are skipped; their errors
// are joined into the returned error alongside the completed trials.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, opts Options) ([]MonteCarloResult, error) {
	opts = opts.fill()
	if mc.NumTrials < 1 || mc.Perturbation < 0 {
		return nil, fmt.Errorf("%w: trials=%d perturbation=%g", dynamo.ErrParameterBounds, mc.NumTrials, mc.Perturbation)
	}
	sweep := ParameterSweep{Preset: mc.Preset, Policy: mc.Policy, ParamName: mc.ParamName,
		Episodes: mc.Episodes, MaxSteps: mc.MaxSteps, Seed: mc.Seed}
	base, err := sweep.base()
	if err != nil {
		return nil, err
	}
	nominal := base.GetParams()[mc.ParamName]
	lo, hi := config.ParamRange(mc.ParamName)
	rng := rand.New(rand.NewSource(mc.Seed))

	var skipped []error
	results := make([]MonteCarloResult, 0, mc.NumTrials)
	for trial := 0; trial < mc.NumTrials; trial++ {
		value := nominal * (1 + (rng.Float64()*2-1)*mc.Perturbation)
		value = math.Min(math.Max(value, lo), hi)
		cfg := base.Clone()
		cfg.Seed = mc.Seed + uint64(trial)
		if err := cfg.SetParam(mc.ParamName, value); err != nil {
			return results, err
		}
		if err := cfg.Validate(); err != nil {
			opts.Logger.Warn("monte carlo trial skipped", zap.Int("trial", trial), zap.Error(err))
			skipped = append(skipped, fmt.Errorf("trial %d: %w", trial, err))
			continue
		}

		res, err := rollout(ctx, *cfg, opts)
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}
		results = append(results, MonteCarloResult{
			TrialID:     trial,
			SweepResult: summarize(value, res),
			Metrics:     res.Metrics,
		})

		if (trial+1)%10 == 0 {
			opts.Logger.Info("monte carlo", zap.Int("done", trial+1), zap.Int("of", mc.NumTrials))
		}
	}

	return results, errors.Join(skipped...)
}

// MonteCarloSummary is the spread of one metric across trials.
type MonteCarloSummary struct {
	Metric   string
	Trials   int
	Mean     float64
	Std      float64
	Min      float64
	Max      float64
	Safe     int
	Collided int
}

// MonteCarloStats summarizes metric over the completed trials. Std is the
// sample standard deviation, 0 for a single trial.
func MonteCarloStats(results []MonteCarloResult, metric string) (MonteCarloSummary, error) {
	sum := MonteCarloSummary{Metric: metric, Trials: len(results)}
	if len(results) == 0 {
		return sum, fmt.Errorf("%w: no completed trials", dynamo.ErrParameterBounds)
	}
	values := make([]float64, len(results))
	for i, r := range results {
		v, ok := r.Metrics[metric]
		if !ok {
			return sum, fmt.Errorf("unknown metric: %s", metric)
		}
		values[i] = v
		if r.CollisionRate == 0 {
			sum.Safe++
		} else {
			sum.Collided++
		}
	}
	sum.Mean, sum.Std = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		sum.Std = 0
	}
	sum.Min, sum.Max = floats.Min(values), floats.Max(values)
	return sum, nil
}
