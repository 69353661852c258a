package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dampsim/internal/config"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/experiment"
	"github.com/san-kum/dampsim/internal/optim"
	"github.com/san-kum/dampsim/internal/sim"
	"github.com/san-kum/dampsim/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	defer exp.Close()

	fmt.Println(title(fmt.Sprintf("running %s-loop rollout...", cfg.Mode)))
	start := time.Now()

	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Preset:    preset,
		Mode:      cfg.Mode,
		Dt:        cfg.Dt,
		Duration:  cfg.Duration,
		Damping:   cfg.Damping,
		InitState: cfg.InitState.State(),
		MaxAccel:  cfg.Limits.MaxAccel,
		MaxSpeed:  cfg.Limits.MaxSpeed,
	}
	if cfg.Mode == config.ModeClosed {
		meta.Goal = cfg.Goal.State()
	}

	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}
	logger.Info("run saved", zap.String("run_id", runID), zap.Duration("elapsed", elapsed))

	final := result.Final()
	fmt.Println(field("completed in", elapsed.String()))
	fmt.Println(field("run id", runID))
	fmt.Println(field("steps", fmt.Sprint(len(result.States))))
	fmt.Println(field("final state", formatState(final)))
	if cfg.Mode == config.ModeClosed {
		clamps := fmt.Sprintf("accel %d, speed %d", result.AccelClamps, result.SpeedClamps)
		style := goodStyle
		if result.AccelClamps+result.SpeedClamps > 0 {
			style = warnStyle
		}
		fmt.Println(field("clamps", style.Render(clamps)))
	}
	printCacheStats(exp)
	printMetrics(result.Metrics)
	return nil
}

func printGains(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("mode") {
		if err := cmd.Flags().Set("mode", config.ModeClosed); err != nil {
			return err
		}
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Mode != config.ModeClosed {
		return fmt.Errorf("gains need a closed-loop configuration")
	}

	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	defer exp.Close()

	if purge, _ := cmd.Flags().GetBool("purge-cache"); purge {
		return purgeCache(exp)
	}

	goal := cfg.Goal.State()
	if iters, _ := cmd.Flags().GetInt("steady"); iters > 0 {
		k, err := exp.Solver().SteadyState(goal, iters)
		if err != nil {
			return err
		}
		fmt.Println(title(fmt.Sprintf("steady-state gain after %d iterations", iters)))
		fmt.Printf("%v\n", mat.Formatted(k, mat.Squeeze()))
		return nil
	}

	gains, err := exp.GainsFor()
	if err != nil {
		return err
	}
	steps, _ := cmd.Flags().GetIntSlice("step")
	fmt.Println(title(fmt.Sprintf("%d gains over %d steps, goal %s", gains.Len(), exp.Horizon().Steps, formatState(goal))))
	for _, t := range steps {
		if t < 0 || t >= gains.Len() {
			return fmt.Errorf("step %d outside [0, %d)", t, gains.Len())
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("K[%d] =", t)))
		fmt.Printf("%v\n\n", mat.Formatted(gains.At(t), mat.Prefix("  "), mat.Squeeze()))
	}
	return nil
}

func purgeCache(exp *experiment.Experiment) error {
	c := exp.Cache()
	if c == nil {
		return fmt.Errorf("no gain cache configured (use --cache)")
	}
	before, err := c.Len()
	if err != nil {
		return err
	}
	if err := c.Purge(); err != nil {
		return err
	}
	logger.Info("gain cache purged", zap.Int("dropped", before))
	fmt.Println(field("gain cache", goodStyle.Render(fmt.Sprintf("dropped %d sequences", before))))
	return nil
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
	fmt.Fprintln(w, "ID\tMODE\tPRESET\tTIME\tDURATION\tDT\tSTEPS\tFINAL ERR")

	for _, run := range runs {
		finalErr := "-"
		if v, ok := run.Metrics["final_error"]; ok {
			finalErr = fmt.Sprintf("%.4f", v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%s\n",
			run.ID[:8],
			run.Mode,
			run.Preset,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Steps,
			finalErr,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := st.Resolve(args[0])
	if err != nil {
		return err
	}

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(traj.States) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Println(field("run", meta.ID))
	fmt.Println(field("mode", meta.Mode))
	fmt.Println(field("samples", fmt.Sprint(len(traj.States))))
	fmt.Println()

	captions := map[string]string{
		"x":  "x position (px)",
		"vx": "x velocity (px/s)",
		"y":  "y position (px)",
		"vy": "y velocity (px/s)",
	}

	series, _ := cmd.Flags().GetStringSlice("series")
	for _, name := range series {
		data, err := traj.Series(name)
		if err != nil {
			return err
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(captions[name]),
		))
		fmt.Println()
	}

	if withControls, _ := cmd.Flags().GetBool("controls"); withControls && len(traj.Controls) > 0 {
		ux := make([]float64, len(traj.Controls))
		uy := make([]float64, len(traj.Controls))
		for i, u := range traj.Controls {
			ux[i], uy[i] = u[0], u[1]
		}
		fmt.Println(asciigraph.PlotMany([][]float64{ux, uy},
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Blue),
			asciigraph.Caption("commanded acceleration (ux red, uy blue)"),
		))
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := st.Resolve(args[0])
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return st.ExportJSON(runID, os.Stdout)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := st.ExportJSON(runID, f); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", out)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	fmt.Println(title("available presets"))
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		desc := fmt.Sprintf("%s, dt=%g, %gs, start %s", p.Mode, p.Dt, p.Duration, formatState(p.InitState.State()))
		if p.Mode == config.ModeClosed {
			desc += ", goal " + formatState(p.Goal.State())
		}
		fmt.Println("  " + field(name, desc))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	xs, _ := cmd.Flags().GetFloat64Slice("xs")
	ys, _ := cmd.Flags().GetFloat64Slice("ys")
	workers, _ := cmd.Flags().GetInt("workers")

	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	defer exp.Close()

	base := cfg.InitState.State()
	starts := make([]dynamo.State, 0, len(xs)*len(ys))
	for _, x := range xs {
		for _, y := range ys {
			starts = append(starts, dynamo.State{x, base[dynamo.VX], y, base[dynamo.VY]})
		}
	}

	start := time.Now()
	results, err := exp.Sweep(cmd.Context(), starts, workers)
	if err != nil {
		return err
	}
	logger.Info("sweep complete", zap.Int("cases", len(results)), zap.Duration("elapsed", time.Since(start)))
	printCacheStats(exp)

	names := metricNames(results)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "X0\tY0\tFINAL\t%s\n", strings.ToUpper(strings.Join(names, "\t")))
	for i, res := range results {
		row := []string{
			fmt.Sprintf("%g", starts[i][dynamo.X]),
			fmt.Sprintf("%g", starts[i][dynamo.Y]),
			formatState(res.Final()),
		}
		for _, n := range names {
			row = append(row, fmt.Sprintf("%.4f", res.Metrics[n]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func runTune(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("mode") {
		if err := cmd.Flags().Set("mode", config.ModeClosed); err != nil {
			return err
		}
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	fPos, _ := cmd.Flags().GetFloat64Slice("f-pos")
	fVel, _ := cmd.Flags().GetFloat64Slice("f-vel")
	r, _ := cmd.Flags().GetFloat64Slice("r")
	metric, _ := cmd.Flags().GetString("metric")

	grid := optim.NewGridSearch(
		[]string{optim.ParamFPos, optim.ParamFVel, optim.ParamR},
		[][]float64{fPos, fVel, r},
	)

	build := func(params map[string]float64) (*experiment.Experiment, error) {
		c, err := optim.ApplyCosts(cfg, params)
		if err != nil {
			return nil, err
		}
		return experiment.New(c, logger)
	}

	fmt.Println(title(fmt.Sprintf("searching %d cost settings for the lowest %s...", len(fPos)*len(fVel)*len(r), metric)))
	best, value, err := grid.Search(cmd.Context(), build, metric)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Println(field(k, fmt.Sprintf("%g", best[k])))
	}
	fmt.Println(field(metric, goodStyle.Render(fmt.Sprintf("%.6f", value))))
	return nil
}

func printMetrics(m map[string]float64) {
	fmt.Println()
	fmt.Println(title("metrics"))
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println("  " + field(name, fmt.Sprintf("%.6f", m[name])))
	}
}

func metricNames(results []*sim.Result) []string {
	seen := make(map[string]bool)
	for _, res := range results {
		for name := range res.Metrics {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatState(x dynamo.State) string {
	return fmt.Sprintf("(x=%.2f vx=%.2f y=%.2f vy=%.2f)", x[dynamo.X], x[dynamo.VX], x[dynamo.Y], x[dynamo.VY])
}
