package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/sim"
	"github.com/san-kum/reachenv/internal/task"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RenderMode != "rgb_array" {
		t.Errorf("expected render mode rgb_array, got %s", cfg.RenderMode)
	}
	if cfg.NSubsteps != 30 {
		t.Errorf("expected 30 substeps, got %d", cfg.NSubsteps)
	}
	if cfg.CollisionMargin != 0.022 {
		t.Errorf("expected margin 0.022, got %v", cfg.CollisionMargin)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"render mode", func(c *Config) { c.RenderMode = "ansi" }, ErrInvalidConfig},
		{"render mode sentinel", func(c *Config) { c.RenderMode = "ansi" }, sim.ErrInvalidRenderMode},
		{"renderer", func(c *Config) { c.Renderer = "Vulkan" }, sim.ErrInvalidRenderer},
		{"human ignores renderer", func(c *Config) { c.RenderMode = "human"; c.Renderer = "" }, nil},
		{"control type", func(c *Config) { c.ControlType = "torque" }, ErrInvalidConfig},
		{"margin too large", func(c *Config) { c.CollisionMargin = 0.03 }, dynamo.ErrParameterBounds},
		{"margin zero", func(c *Config) { c.CollisionMargin = 0 }, dynamo.ErrParameterBounds},
		{"substeps", func(c *Config) { c.NSubsteps = 0 }, dynamo.ErrParameterBounds},
		{"negative truncation", func(c *Config) { c.MaxEpisodeSteps = -1 }, dynamo.ErrParameterBounds},
		{"reward type", func(c *Config) { c.Task.RewardType = "shaped" }, task.ErrRewardType},
		{"threshold", func(c *Config) { c.Task.DistanceThreshold = 0 }, dynamo.ErrParameterBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.err == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reach.yaml")
	data := []byte("control_type: ee\ntask:\n  reward_type: sparse\n  goal_center: [0.5, 0.1, 0.2]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ControlType != "ee" || cfg.Task.RewardType != "sparse" {
		t.Errorf("expected overrides, got %+v", cfg)
	}
	if cfg.Task.GoalCenter != [3]float64{0.5, 0.1, 0.2} {
		t.Errorf("expected goal center override, got %v", cfg.Task.GoalCenter)
	}
	if cfg.NSubsteps != DefaultNSubsteps || cfg.Task.DistanceThreshold != 0.05 {
		t.Errorf("expected defaults kept, got %+v", cfg)
	}
}

func TestLoadIntoPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.yaml")
	if err := os.WriteFile(path, []byte("episodes: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := GetPreset("reach-ee")
	if err := LoadInto(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Episodes != 3 || cfg.ControlType != "ee" {
		t.Errorf("expected file on top of preset, got episodes=%d control=%s", cfg.Episodes, cfg.ControlType)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := GetPreset("reach-orientation")
	cfg.Seed = 42
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *cfg {
		t.Errorf("expected %+v, got %+v", cfg, loaded)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("episodes: [1, 2"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("reach-ee")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.ControlType != "ee" {
		t.Errorf("expected control type ee, got %s", cfg.ControlType)
	}
	cfg.ControlType = "joints"
	if GetPreset("reach-ee").ControlType != "ee" {
		t.Error("GetPreset should return a copy")
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	want := []string{"reach", "reach-ee", "reach-eval", "reach-orientation", "reach-sparse"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
		}
		if err := GetPreset(names[i]).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", names[i], err)
		}
	}
}

func TestParams(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.SetParam("goal_range", 0.2); err != nil {
		t.Fatal(err)
	}
	if cfg.GetParams()["goal_range"] != 0.2 {
		t.Errorf("expected goal_range 0.2, got %v", cfg.GetParams()["goal_range"])
	}
	if err := cfg.SetParam("mass", 1); !errors.Is(err, dynamo.ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, got %v", err)
	}
	if tp := cfg.TaskParams(); tp.GoalRange != 0.2 || tp.GoalCenter.X != 0.6 {
		t.Errorf("unexpected task params %+v", tp)
	}
}

func TestParamRangeBoundsValidate(t *testing.T) {
	for name := range DefaultConfig().GetParams() {
		lo, hi := ParamRange(name)
		if lo > hi {
			t.Errorf("%s: expected lo <= hi, got [%v, %v]", name, lo, hi)
		}
		if math.IsInf(hi, 1) {
			continue
		}
		cfg := DefaultConfig()
		if err := cfg.SetParam(name, hi); err != nil {
			t.Fatal(err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s=%v: expected upper bound to validate, got %v", name, hi, err)
		}
	}

	lo, hi := ParamRange("collision_margin")
	if lo != 0 || hi != MaxCollisionMargin {
		t.Errorf("expected collision_margin in [0, %v], got [%v, %v]", MaxCollisionMargin, lo, hi)
	}
	if lo, hi := ParamRange("unknown"); !math.IsInf(lo, -1) || !math.IsInf(hi, 1) {
		t.Errorf("expected unbounded range, got [%v, %v]", lo, hi)
	}
}
