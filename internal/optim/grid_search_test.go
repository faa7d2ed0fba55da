package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/experiment"
)

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid([]string{"kp=0.5,1,2", "damping=0.01, 0.05"})
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 6 {
		t.Errorf("expected 6 combinations, got %d", g.Size())
	}

	for _, bad := range [][]string{{"kp"}, {"=1"}, {"kp=a"}, {}} {
		if _, err := ParseGrid(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

func builder(t *testing.T, policy string) Builder {
	return func(params map[string]float64) (*experiment.Runner, error) {
		cfg := config.DefaultConfig()
		cfg.Policy = policy
		r, err := experiment.NewRunner(*cfg, experiment.NewRegistry(), nil)
		if err != nil {
			return nil, err
		}
		if err := ApplyParams(r, params); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	}
}

func TestSearchVisitsEveryCombination(t *testing.T) {
	g, err := ParseGrid([]string{"kp=0.5,1", "lift=0,0.05"})
	if err != nil {
		t.Fatal(err)
	}
	var seen int
	build := builder(t, "reacher")
	counting := func(params map[string]float64) (*experiment.Runner, error) {
		seen++
		return build(params)
	}

	g.Maximize = true
	params, best, err := g.Search(context.Background(), counting, experiment.Config{Episodes: 1, MaxSteps: 2}, "mean_return")
	if err != nil {
		t.Fatal(err)
	}
	if seen != 4 {
		t.Errorf("expected 4 runs, got %d", seen)
	}
	if len(params) != 2 {
		t.Errorf("expected 2 tuned params, got %v", params)
	}
	if best > 0 {
		t.Errorf("expected a non-positive dense return, got %v", best)
	}
}

func TestSearchErrors(t *testing.T) {
	g, _ := ParseGrid([]string{"kp=1"})
	run := experiment.Config{Episodes: 1, MaxSteps: 1}

	if _, _, err := g.Search(context.Background(), builder(t, "reacher"), run, "score"); err == nil {
		t.Error("expected error for unknown metric")
	}
	if _, _, err := g.Search(context.Background(), builder(t, "zero"), run, "mean_return"); err == nil {
		t.Error("expected error for an untunable policy")
	}

	neg, _ := ParseGrid([]string{"kp=-1"})
	if _, _, err := neg.Search(context.Background(), builder(t, "reacher"), run, "mean_return"); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.Search(ctx, builder(t, "reacher"), run, "mean_return"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
