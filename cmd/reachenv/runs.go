package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/experiment"
	"github.com/san-kum/reachenv/internal/export"
	"github.com/san-kum/reachenv/internal/storage"
	"github.com/san-kum/reachenv/internal/viz"
	"github.com/spf13/cobra"
)

func runRollout(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry := experiment.NewRegistry()
	run := experiment.Config{Episodes: cfg.Episodes, MaxSteps: cfg.Steps, Seed: cfg.Seed}

	if runs > 1 {
		start := time.Now()
		results, err := experiment.NewEnsemble(*cfg, registry, runs, cfg.Seed).
			WithWorkers(workers).WithLogger(log).Run(ctx, run)
		if err != nil {
			return err
		}
		fmt.Printf("completed %d runs in %v\n", runs, time.Since(start))
		printMetrics(experiment.Mean(results))
		return nil
	}

	r, err := experiment.NewRunner(*cfg, registry, log)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("running %s on %s (%d episodes)...\n", cfg.Policy, preset, cfg.Episodes)
	start := time.Now()
	result, err := r.Run(ctx, run)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n", time.Since(start))

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(preset, *cfg, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	fmt.Printf("transitions: %d\n", len(result.Transitions()))
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, metrics[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tPOLICY\tEPISODES\tSUCCESS\tCOLLISION")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Policy,
			run.Episodes,
			run.Metrics["success_rate"],
			run.Metrics["collision_rate"],
		)
	}
	return w.Flush()
}

func distance(tr env.Transition) float64 {
	a, d := tr.Observation.AchievedGoal, tr.Observation.DesiredGoal
	if len(a) < 3 || len(d) < 3 {
		return 0
	}
	dx, dy, dz := float64(a[0]-d[0]), float64(a[1]-d[1]), float64(a[2]-d[2])
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trs, err := st.LoadTransitions(runID)
	if err != nil {
		return err
	}
	if len(trs) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s  policy: %s\n", meta.Preset, meta.Policy)
	fmt.Printf("transitions: %d\n\n", len(trs))

	series := []struct {
		caption string
		value   func(env.Transition) float64
	}{
		{"reward per step", func(tr env.Transition) float64 { return tr.Reward }},
		{"distance to goal (m)", distance},
		{"obstacle clearance (m)", env.Transition.Clearance},
	}
	for _, s := range series {
		data := make([]float64, len(trs))
		for i, tr := range trs {
			data[i] = s.value(tr)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		))
		fmt.Println()
	}
	return nil
}

// output opens path for writing; "-" is stdout.
func output(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	switch format {
	case "json":
		return st.ExportJSON(runID, outPath)
	case "svg":
		p, err := viz.ParsePlane(plane)
		if err != nil {
			return err
		}
		trs, err := st.LoadTransitions(runID)
		if err != nil {
			return err
		}
		svg := export.TrajectoryToSVG(trs, p, 800, 600)
		if svg == "" {
			return fmt.Errorf("run %s has no trajectory", runID)
		}
		w, err := output(outPath)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, svg); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}
	return fmt.Errorf("unknown format %q, want json or svg", format)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	trs, err := st.LoadTransitions(args[0])
	if err != nil {
		return err
	}
	w, err := output(outPath)
	if err != nil {
		return err
	}
	if err := storage.WriteTransitions(w, trs); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
