package main

import (
	"fmt"
	"os"

	"github.com/san-kum/reachenv/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	dataDir  string
	logLevel string
	// Config sources, lowest priority first: preset, file, flags.
	preset      string
	configFile  string
	policy      string
	integrator  string
	controlType string
	episodes    int
	steps       int
	seed        uint64
	orientation bool
	rewardType  string
	// rollout
	runs    int
	workers int
	noSave  bool
	// export
	format  string
	plane   string
	outPath string
	// render
	width  int
	height int
	// sweep
	paramName string
	paramMin  float64
	paramMax  float64
	numSteps  int
	// montecarlo
	perturb float64
	trials  int
	// tune
	grid     []string
	metric   string
	minimize bool
)

// main registers the reachenv commands and executes the root command,
// exiting with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "reachenv",
		Short:        "panda reaching environment with an obstacle",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".reachenv", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rolloutCmd := &cobra.Command{
		Use:   "rollout",
		Short: "run a policy for a number of episodes and save the run",
		Args:  cobra.NoArgs,
		RunE:  runRollout,
	}
	envFlags(rolloutCmd)
	rolloutCmd.Flags().IntVar(&runs, "runs", 1, "number of seeds to run in parallel (not saved when > 1)")
	rolloutCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers for --runs (0 = GOMAXPROCS)")
	rolloutCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot per-step reward, distance and clearance of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON or an SVG trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "json or svg")
	exportCmd.Flags().StringVar(&plane, "plane", "xy", "svg projection plane (xy or xz)")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "-", "output path (- for stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run transitions to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "-", "output path (- for stdout)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch a policy in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	envFlags(liveCmd)

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "step a policy and save an rgb_array frame as PNG",
		Args:  cobra.NoArgs,
		RunE:  renderFrame,
	}
	envFlags(renderCmd)
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "frame.png", "output PNG path")
	renderCmd.Flags().IntVar(&width, "width", config.DefaultWidth, "image width")
	renderCmd.Flags().IntVar(&height, "height", config.DefaultHeight, "image height")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario of rollouts",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep a config parameter and report success and collision rates",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "reach", "preset to start from")
	sweepCmd.Flags().StringVar(&policy, "policy", "", "policy (zero, random, reacher)")
	sweepCmd.Flags().StringVar(&paramName, "param", "collision_penalty", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&paramMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&paramMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&numSteps, "n", 5, "number of values")
	sweepCmd.Flags().IntVar(&episodes, "episodes", 10, "episodes per value")
	sweepCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "max steps per episode")
	sweepCmd.Flags().Uint64Var(&seed, "seed", 0, "seed of the first episode")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "perturb a config parameter randomly and report the spread of a metric",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	monteCarloCmd.Flags().StringVar(&preset, "preset", "reach", "preset to start from")
	monteCarloCmd.Flags().StringVar(&policy, "policy", "", "policy (zero, random, reacher)")
	monteCarloCmd.Flags().StringVar(&paramName, "param", "collision_margin", "parameter to perturb")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturb", 0.1, "relative perturbation")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().StringVar(&metric, "metric", "success_rate", "metric to summarise")
	monteCarloCmd.Flags().IntVar(&episodes, "episodes", 5, "episodes per trial")
	monteCarloCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "max steps per episode")
	monteCarloCmd.Flags().Uint64Var(&seed, "seed", 0, "seed of the first trial")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search policy parameters",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	envFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", []string{"kp=0.5,1,2", "damping=0.01,0.05,0.1"}, "name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "success_rate", "metric to optimise")
	tuneCmd.Flags().BoolVar(&minimize, "minimize", false, "minimise the metric instead of maximising it")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark environment steps per integrator",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&steps, "steps", 200, "steps per integrator")

	rootCmd.AddCommand(rolloutCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, liveCmd, renderCmd, presetsCmd, scenarioCmd, sweepCmd, monteCarloCmd, tuneCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// envFlags registers the flags that build an environment configuration.
func envFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "reach", "preset configuration")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml), applied over the preset")
	cmd.Flags().StringVar(&policy, "policy", "reacher", "policy (zero, random, reacher)")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (euler, semi-euler, rk4, verlet)")
	cmd.Flags().StringVar(&controlType, "control", "joints", "control type (joints, ee)")
	cmd.Flags().IntVar(&episodes, "episodes", config.DefaultEpisodes, "episodes")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "max steps per episode")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed of the first episode")
	cmd.Flags().BoolVar(&orientation, "orientation", false, "add the orientation goal")
	cmd.Flags().StringVar(&rewardType, "reward", "dense", "reward type (dense, sparse)")
}

// resolveConfig applies preset, then config file, then changed flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = policy
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("control") {
		cfg.ControlType = controlType
	}
	if flags.Changed("episodes") {
		cfg.Episodes = episodes
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("orientation") {
		cfg.Task.OrientationTask = orientation
	}
	if flags.Changed("reward") {
		cfg.Task.RewardType = rewardType
	}
	if flags.Changed("width") {
		cfg.Render.Width = width
	}
	if flags.Changed("height") {
		cfg.Render.Height = height
	}
	return cfg, cfg.Validate()
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}
