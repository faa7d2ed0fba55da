package config

import "sort"

func preset(modify func(*Config)) *Config {
	cfg := DefaultConfig()
	modify(cfg)
	return cfg
}

var Presets = map[string]*Config{
	"reach": preset(func(c *Config) {}),
	"reach-orientation": preset(func(c *Config) {
		c.Task.OrientationTask = true
		c.Steps = 150
	}),
	"reach-sparse": preset(func(c *Config) {
		c.Task.RewardType = "sparse"
	}),
	"reach-ee": preset(func(c *Config) {
		c.ControlType = "ee"
	}),
	"reach-eval": preset(func(c *Config) {
		c.Episodes = 100
		c.MaxEpisodeSteps = 100
		c.Seed = 1
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
