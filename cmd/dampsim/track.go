package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dampsim/internal/config"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/experiment"
	"github.com/san-kum/dampsim/internal/sim"
	"github.com/san-kum/dampsim/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const trackMode = "track"

func runTrack(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("tracking needs a closed-loop configuration")
	}

	raw, _ := cmd.Flags().GetStringArray("waypoint")
	waypoints, err := parseWaypoints(raw)
	if err != nil {
		return err
	}
	every, _ := cmd.Flags().GetInt("every")

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	defer exp.Close()

	fmt.Println(title(fmt.Sprintf("tracking %d waypoints then goal %s...", len(waypoints), formatState(cfg.Goal.State()))))
	start := time.Now()

	result, err := exp.Track(cmd.Context(), waypoints)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Preset:    preset,
		Mode:      trackMode,
		Dt:        cfg.Dt,
		Duration:  cfg.Duration,
		Damping:   cfg.Damping,
		InitState: cfg.InitState.State(),
		Goal:      cfg.Goal.State(),
		MaxAccel:  cfg.Limits.MaxAccel,
		MaxSpeed:  cfg.Limits.MaxSpeed,
	}
	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}
	logger.Info("tracking run saved",
		zap.String("run_id", runID),
		zap.Int("plans", result.Plans),
		zap.Duration("elapsed", elapsed),
	)

	fmt.Println(field("completed in", elapsed.String()))
	fmt.Println(field("run id", runID))
	fmt.Println(field("plans", fmt.Sprint(result.Plans)))
	fmt.Println(field("final state", formatState(result.Final())))
	printCacheStats(exp)

	if every > 0 {
		fmt.Println()
		if err := printMultipliers(result, every); err != nil {
			return err
		}
	}

	mx := make([]float64, len(result.Multipliers))
	my := make([]float64, len(result.Multipliers))
	for i, m := range result.Multipliers {
		mx[i], my[i] = m[dynamo.UX], m[dynamo.UY]
	}
	if len(mx) > 0 {
		fmt.Println()
		fmt.Println(asciigraph.PlotMany([][]float64{mx, my},
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.LowerBound(-1),
			asciigraph.UpperBound(1),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Blue),
			asciigraph.Caption("acceleration multipliers (x red, y blue)"),
		))
	}
	printMetrics(result.Metrics)
	return nil
}

func printMultipliers(result *sim.Result, every int) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tTIME\tACC X\tACC Y")
	for t := 0; t < len(result.Multipliers); t += every {
		m := result.Multipliers[t]
		fmt.Fprintf(w, "%d\t%.2f\t%+.3f\t%+.3f\n", t, result.Times[t], m[dynamo.UX], m[dynamo.UY])
	}
	return w.Flush()
}

// parseWaypoints reads "x,y" pairs as resting goals.
func parseWaypoints(raw []string) ([]dynamo.State, error) {
	out := make([]dynamo.State, 0, len(raw))
	for _, s := range raw {
		parts := strings.Split(s, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("waypoint %q: want x,y", s)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", s, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", s, err)
		}
		out = append(out, dynamo.State{x, 0, y, 0})
	}
	return out, nil
}

// printCacheStats reports gain cache traffic when the experiment has a cache.
func printCacheStats(exp *experiment.Experiment) {
	c := exp.Cache()
	if c == nil {
		return
	}
	hits, misses := c.Stats()
	stored, err := c.Len()
	if err != nil {
		logger.Warn("count cached gains", zap.Error(err))
		stored = -1
	}
	fmt.Println(field("gain cache", fmt.Sprintf("%d hits, %d misses, %d stored", hits, misses, stored)))
}
