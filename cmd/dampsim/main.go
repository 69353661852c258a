package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/san-kum/dampsim/internal/config"
	"github.com/san-kum/dampsim/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFile    string

	mode     string
	dt       float64
	duration float64
	damping  float64
	x0, vx0  float64
	y0, vy0  float64
	goalX    float64
	goalY    float64
	maxAccel float64
	maxSpeed float64
	useCache bool
	cacheDir string

	logger   *zap.Logger
	closeLog func() error
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dampsim",
		Short: "damped point-mass simulator with finite-horizon LQR",
		Long:  "dampsim simulates a damped 2D point mass, solves finite-horizon LQR gains toward a goal and rolls out the saturated closed loop.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeLog != nil {
				_ = closeLog()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dampsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this rotated file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run an open- or closed-loop rollout and save it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addExperimentFlags(runCmd)

	gainsCmd := &cobra.Command{
		Use:   "gains",
		Short: "print the finite-horizon or steady-state gains",
		Args:  cobra.NoArgs,
		RunE:  printGains,
	}
	addExperimentFlags(gainsCmd)
	gainsCmd.Flags().IntSlice("step", []int{1}, "gain indices to print")
	gainsCmd.Flags().Int("steady", 0, "print the steady-state gain after this many iterations instead")
	gainsCmd.Flags().Bool("purge-cache", false, "drop every cached gain sequence and exit")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSlice("series", []string{"x", "vx", "y", "vy"}, "state columns to plot")
	plotCmd.Flags().Bool("controls", true, "also plot the commands of closed-loop runs")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	pathCmd := &cobra.Command{
		Use:   "path [run_id]",
		Short: "draw the (x, y) path of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  drawPath,
	}
	pathCmd.Flags().Int("width", 60, "canvas width in cells")
	pathCmd.Flags().Int("height", 20, "canvas height in cells")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export the (x, y) path of a saved run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list the named presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run the experiment from a grid of start positions",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addExperimentFlags(sweepCmd)
	sweepCmd.Flags().Float64Slice("xs", []float64{-200, 0, 200}, "start x positions")
	sweepCmd.Flags().Float64Slice("ys", []float64{-200, 0, 200}, "start y positions")
	sweepCmd.Flags().Int("workers", 0, "worker count (default GOMAXPROCS)")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search cost weights for a closed-loop experiment",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addExperimentFlags(tuneCmd)
	tuneCmd.Flags().Float64Slice("f-pos", []float64{600, 2000, 6000}, "terminal position weights")
	tuneCmd.Flags().Float64Slice("f-vel", []float64{200, 2000}, "terminal velocity weights")
	tuneCmd.Flags().Float64Slice("r", []float64{0.1, 1, 10}, "control weights")
	tuneCmd.Flags().String("metric", "final_error", "metric to minimise")

	trackCmd := &cobra.Command{
		Use:   "track",
		Short: "follow waypoints with a replanning controller and save the run",
		Args:  cobra.NoArgs,
		RunE:  runTrack,
	}
	addExperimentFlags(trackCmd)
	trackCmd.Flags().StringArray("waypoint", nil, "x,y goal visited before the final goal (repeatable)")
	trackCmd.Flags().Int("every", 30, "print the acceleration multipliers every n steps (0 to skip)")

	rootCmd.AddCommand(runCmd, gainsCmd, trackCmd, listCmd, plotCmd, pathCmd, exportJSONCmd, exportSVGCmd, presetsCmd, sweepCmd, tuneCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&mode, "mode", config.ModeOpen, "open or closed")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Float64Var(&damping, "damping", 0.5, "velocity damping coefficient")
	cmd.Flags().Float64Var(&x0, "x", 0, "initial x")
	cmd.Flags().Float64Var(&vx0, "vx", config.DefaultVX, "initial x velocity")
	cmd.Flags().Float64Var(&y0, "y", 0, "initial y")
	cmd.Flags().Float64Var(&vy0, "vy", config.DefaultVY, "initial y velocity")
	cmd.Flags().Float64Var(&goalX, "goal-x", 0, "goal x")
	cmd.Flags().Float64Var(&goalY, "goal-y", 0, "goal y")
	cmd.Flags().Float64Var(&maxAccel, "max-accel", 150, "acceleration limit per axis")
	cmd.Flags().Float64Var(&maxSpeed, "max-speed", 250, "speed limit per axis")
	cmd.Flags().BoolVar(&useCache, "cache", false, "cache gains in badger")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "gain cache directory (default <data>/gains)")
}

// resolveConfig layers defaults, the preset, the config file and finally any
// flags set on the command line.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("damping") {
		cfg.Damping = damping
	}
	if flags.Changed("x") {
		cfg.InitState.X = x0
	}
	if flags.Changed("vx") {
		cfg.InitState.VX = vx0
	}
	if flags.Changed("y") {
		cfg.InitState.Y = y0
	}
	if flags.Changed("vy") {
		cfg.InitState.VY = vy0
	}
	if flags.Changed("goal-x") {
		cfg.Goal.X = goalX
	}
	if flags.Changed("goal-y") {
		cfg.Goal.Y = goalY
	}
	if flags.Changed("max-accel") {
		cfg.Limits.MaxAccel = maxAccel
	}
	if flags.Changed("max-speed") {
		cfg.Limits.MaxSpeed = maxSpeed
	}
	if flags.Changed("cache") {
		cfg.Cache.Enabled = useCache
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = cacheDir
	}
	if cfg.Cache.Enabled && cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(dataDir, "gains")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cmd *cobra.Command) error {
	logCfg := config.DefaultConfig().Log
	if configFile != "" {
		if loaded, err := config.Load(configFile); err == nil {
			logCfg = loaded.Log
		}
	}
	if cmd.Flags().Changed("log-level") {
		logCfg.Level = logLevel
	}
	if cmd.Flags().Changed("log-file") {
		logCfg.File = logFile
	}

	l, closeFn, err := logging.NewStderr(logCfg)
	if err != nil {
		return err
	}
	logger, closeLog = l, closeFn
	return nil
}
