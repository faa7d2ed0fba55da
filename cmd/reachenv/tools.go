package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/san-kum/reachenv/internal/automation"
	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/experiment"
	"github.com/san-kum/reachenv/internal/optim"
	"github.com/san-kum/reachenv/internal/render"
	"github.com/san-kum/reachenv/internal/storage"
	"github.com/san-kum/reachenv/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	r, err := experiment.NewRunner(*cfg, experiment.NewRegistry(), nil)
	if err != nil {
		return err
	}
	defer r.Close()
	return viz.Run(viz.NewModel(r.Env, r.Policy, cfg.Seed))
}

func renderFrame(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.RenderMode = "rgb_array"
	r, err := experiment.NewRunner(*cfg, experiment.NewRegistry(), nil)
	if err != nil {
		return err
	}
	defer r.Close()

	obs, _, err := r.Env.Reset(env.ResetOptions{Seed: &cfg.Seed})
	if err != nil {
		return err
	}
	for i := 0; i < cfg.Steps; i++ {
		action, err := r.Policy.Act(obs)
		if err != nil {
			return err
		}
		var terminated, truncated bool
		obs, _, terminated, truncated, _, err = r.Env.Step(action)
		if err != nil {
			return err
		}
		if terminated || truncated {
			break
		}
	}

	img, err := r.Env.Render()
	if err != nil {
		return err
	}
	if err := render.SavePNG(outPath, img); err != nil {
		return err
	}
	d, _ := r.Env.Distance()
	fmt.Printf("saved %s (%dx%d) after %d steps, distance %.3f m\n",
		outPath, cfg.Render.Width, cfg.Render.Height, r.Env.ElapsedSteps(), d)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCONTROL\tREWARD\tORIENTATION\tEPISODES\tSTEPS\tSEED")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\t%d\t%d\n",
			name, p.ControlType, p.Task.RewardType, p.Task.OrientationTask, p.Episodes, p.Steps, p.Seed)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("scenario %s: %s\n", sc.Name, sc.Description)
	results, err := automation.RunScenario(ctx, sc, automation.Options{Store: st, Logger: log})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tPRESET\tPOLICY\tSUCCESS\tCOLLISION\tRETURN\tRUN")
	for i, r := range results {
		cfg, _ := r.Step.Config()
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%.3f\t%s\n",
			i+1, r.Step.Preset, cfg.Policy,
			r.Result.Metrics["success_rate"], r.Result.Metrics["collision_rate"], r.Result.Metrics["mean_return"], r.RunID)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sweep := &automation.ParameterSweep{
		Preset:    preset,
		Policy:    policy,
		ParamName: paramName,
		ParamMin:  paramMin,
		ParamMax:  paramMax,
		NumSteps:  numSteps,
		Episodes:  episodes,
		MaxSteps:  steps,
		Seed:      seed,
	}
	results, err := automation.RunSweep(ctx, sweep, automation.Options{Logger: log})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSUCCESS\tCOLLISION\tRETURN\tMIN CLEARANCE\n", paramName)
	for _, r := range results {
		fmt.Fprintf(w, "%.4f\t%.2f\t%.2f\t%.3f\t%.4f\n", r.ParamValue, r.SuccessRate, r.CollisionRate, r.MeanReturn, r.MinClearance)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mc := &automation.MonteCarloConfig{
		Preset:       preset,
		Policy:       policy,
		ParamName:    paramName,
		Perturbation: perturb,
		NumTrials:    trials,
		Episodes:     episodes,
		MaxSteps:     steps,
		Seed:         seed,
	}
	results, runErr := automation.RunMonteCarlo(ctx, mc, automation.Options{Logger: log})
	if runErr != nil && len(results) == 0 {
		return runErr
	}
	if runErr != nil {
		log.Warn("monte carlo incomplete", zap.Int("completed", len(results)), zap.Error(runErr))
	}
	sum, err := automation.MonteCarloStats(results, metric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "param\t%s (±%g)\n", paramName, perturb)
	fmt.Fprintf(w, "trials\t%d of %d\n", sum.Trials, trials)
	fmt.Fprintf(w, "%s mean\t%.4f\n", metric, sum.Mean)
	fmt.Fprintf(w, "%s std\t%.4f\n", metric, sum.Std)
	fmt.Fprintf(w, "%s range\t[%.4f, %.4f]\n", metric, sum.Min, sum.Max)
	fmt.Fprintf(w, "collision-free trials\t%d\n", sum.Safe)
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	g, err := optim.ParseGrid(grid)
	if err != nil {
		return err
	}
	g.Maximize = !minimize

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry := experiment.NewRegistry()
	build := func(params map[string]float64) (*experiment.Runner, error) {
		r, err := experiment.NewRunner(*cfg, registry, log)
		if err != nil {
			return nil, err
		}
		if err := optim.ApplyParams(r, params); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	}

	log.Info("tuning", zap.Int("combinations", g.Size()), zap.String("metric", metric))
	best, value, err := g.Search(ctx, build, experiment.Config{Episodes: cfg.Episodes, MaxSteps: cfg.Steps, Seed: cfg.Seed}, metric)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(best))
	for k := range best {
		names = append(names, k)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range names {
		fmt.Fprintf(w, "%s\t%g\n", k, best[k])
	}
	fmt.Fprintf(w, "%s\t%.4f\n", metric, value)
	return w.Flush()
}

func runBench(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tTIME\tSTEPS/S")

	for _, name := range registry.ListIntegrators() {
		cfg := config.DefaultConfig()
		cfg.Integrator = name
		cfg.Policy = "random"
		r, err := experiment.NewRunner(*cfg, registry, nil)
		if err != nil {
			return err
		}

		start := time.Now()
		res, err := r.Run(context.Background(), experiment.Config{Episodes: 1, MaxSteps: steps})
		r.Close()
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		n := len(res.Transitions())
		fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\n", name, n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
	}
	return w.Flush()
}
