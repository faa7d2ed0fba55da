// Package experiment runs policies against the environment and
// aggregates episodic metrics.
package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/control"
	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/metrics"
	"go.uber.org/zap"
)

type Config struct {
	Episodes int
	// MaxSteps caps each episode; an episode cut here is marked truncated.
	MaxSteps int
	// Seed of the first episode; episode i uses Seed+i.
	Seed uint64
}

type Episode struct {
	Index       int
	Seed        uint64
	Goal        []float64
	Return      float64
	Length      int
	Success     bool
	Collision   bool
	Transitions []env.Transition
}

type Result struct {
	Episodes []Episode
	Metrics  map[string]float64
}

// Transitions flattens every episode in order.
func (r *Result) Transitions() []env.Transition {
	var out []env.Transition
	for _, ep := range r.Episodes {
		out = append(out, ep.Transitions...)
	}
	return out
}

type Observer interface {
	OnStep(tr env.Transition)
}

type ObserverFunc func(tr env.Transition)

func (f ObserverFunc) OnStep(tr env.Transition) { f(tr) }

type Runner struct {
	Env     *env.Env
	Policy  control.Policy
	Metrics []metrics.Metric
	Logger  *zap.Logger

	observers []Observer
}

// NewRunner builds an environment, policy and default metrics from cfg.
func NewRunner(cfg config.Config, reg *Registry, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	e, err := env.New(cfg, env.WithIntegrator(integ), env.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	p, err := reg.GetPolicy(cfg.Policy, e, cfg.Seed)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return &Runner{
		Env:     e,
		Policy:  p,
		Metrics: metrics.Defaults(),
		Logger:  logger,
	}, nil
}

func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Runner) Close() error { return r.Env.Close() }

func (r *Runner) validate(cfg Config) error {
	if cfg.Episodes <= 0 {
		return fmt.Errorf("%w: episodes must be positive, got %d", dynamo.ErrParameterBounds, cfg.Episodes)
	}
	if cfg.MaxSteps <= 0 {
		return fmt.Errorf("%w: max steps must be positive, got %d", dynamo.ErrParameterBounds, cfg.MaxSteps)
	}
	return nil
}

// Run plays cfg.Episodes episodes. On cancellation the episodes finished
// so far are returned with the error.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := r.validate(cfg); err != nil {
		return nil, err
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	result := &Result{
		Episodes: make([]Episode, 0, cfg.Episodes),
		Metrics:  make(map[string]float64),
	}
	for _, m := range r.Metrics {
		m.Reset()
	}

	for i := 0; i < cfg.Episodes; i++ {
		ep, err := r.episode(ctx, i, cfg.Seed+uint64(i), cfg.MaxSteps)
		if err != nil {
			result.Metrics = metrics.Values(r.Metrics)
			return result, err
		}
		result.Episodes = append(result.Episodes, ep)
		log.Info("episode",
			zap.Int("episode", i),
			zap.Uint64("seed", ep.Seed),
			zap.Int("length", ep.Length),
			zap.Float64("return", ep.Return),
			zap.Bool("success", ep.Success),
			zap.Bool("collision", ep.Collision),
		)
	}

	result.Metrics = metrics.Values(r.Metrics)
	return result, nil
}

func (r *Runner) episode(ctx context.Context, index int, seed uint64, maxSteps int) (Episode, error) {
	ep := Episode{Index: index, Seed: seed}
	obs, _, err := r.Env.Reset(env.ResetOptions{Seed: &seed})
	if err != nil {
		return ep, err
	}
	ep.Goal = r.Env.Task().Goal()
	r.Policy.Reset()
	ep.Transitions = make([]env.Transition, 0, maxSteps)

	for step := 0; step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			return ep, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		action, err := r.Policy.Act(obs)
		if err != nil {
			return ep, fmt.Errorf("policy %s: %w", r.Policy.Name(), err)
		}
		next, reward, terminated, truncated, info, err := r.Env.Step(action)
		if err != nil {
			return ep, &dynamo.SimulationError{Step: step, Time: float64(step) * r.Env.Sim().Dt(), Wrapped: err}
		}
		if step == maxSteps-1 {
			truncated = true
		}
		tr := env.Transition{
			Episode:     index,
			Step:        step,
			Observation: next,
			Action:      action,
			Reward:      reward,
			Terminated:  terminated,
			Truncated:   truncated,
			Info:        info,
		}
		ep.Transitions = append(ep.Transitions, tr)
		ep.Return += reward
		ep.Length++
		for _, m := range r.Metrics {
			m.Observe(tr)
		}
		for _, o := range r.observers {
			o.OnStep(tr)
		}

		obs = next
		if tr.Done() {
			ep.Success = info.IsSuccess
			ep.Collision = info.IsCollision
			break
		}
	}
	return ep, nil
}
