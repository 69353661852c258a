package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/dampsim/internal/config"
	"github.com/san-kum/dampsim/internal/control"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/gaincache"
	"github.com/san-kum/dampsim/internal/physics"
	"github.com/san-kum/dampsim/internal/sim"
	"go.uber.org/zap"
)

// Experiment is one configured rollout: the model, its solver, an optional
// gain cache and the simulator that drives them.
type Experiment struct {
	cfg       *config.Config
	horizon   dynamo.Horizon
	model     *physics.PointMass
	solver    *control.Solver
	gains     control.GainSource
	cache     *gaincache.Cache
	simulator *sim.Simulator
	registry  *Registry
	logger    *zap.Logger
}

// New validates cfg and builds the experiment. When the cache is enabled the
// caller must Close the experiment.
func New(cfg *config.Config, logger *zap.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h, err := cfg.Horizon()
	if err != nil {
		return nil, err
	}
	model, err := physics.NewPointMass(cfg.Dt, cfg.Damping)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:      cfg,
		horizon:  h,
		model:    model,
		registry: NewRegistry(),
		logger:   logger,
	}

	if cfg.Mode == config.ModeClosed {
		costs, err := cfg.ControlCosts()
		if err != nil {
			return nil, err
		}
		e.solver = control.NewSolver(model.A(), model.B(), costs)
		e.gains = e.solver

		if cfg.Cache.Enabled {
			c, err := gaincache.Open(cfg.Cache.Dir, e.solver, logger.Named("gaincache"))
			if err != nil {
				return nil, err
			}
			e.cache = c
			e.gains = c
		}
	}

	e.simulator = sim.New(model, sim.WithLimits(cfg.SimLimits()), sim.WithLogger(logger.Named("sim")))
	for _, m := range e.registry.DefaultMetrics(e.env()) {
		e.simulator.AddMetric(m)
	}
	return e, nil
}

func (e *Experiment) env() Env {
	env := Env{Limits: e.cfg.SimLimits()}
	if e.cfg.Mode == config.ModeClosed {
		env.Goal = e.cfg.Goal.State()
	}
	return env
}

// Run performs the configured rollout.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x0 := e.cfg.InitState.State()
	if e.cfg.Mode == config.ModeOpen {
		return e.simulator.RunOpenLoop(x0, e.horizon)
	}

	goal := e.cfg.Goal.State()
	gains, err := e.gains.Gains(goal, e.horizon.Steps)
	if err != nil {
		return nil, fmt.Errorf("solve gains: %w", err)
	}
	return e.simulator.RunClosedLoop(x0, goal, gains, e.horizon)
}

// Track visits waypoints in order and then the configured goal, replanning
// through the experiment's gain source whenever the goal changes. Every plan
// spans the configured horizon.
func (e *Experiment) Track(ctx context.Context, waypoints []dynamo.State) (*sim.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.gains == nil {
		return nil, fmt.Errorf("%w: open-loop experiments cannot track a goal", dynamo.ErrParameterBounds)
	}

	tracker, err := control.NewTracker(e.gains, e.horizon.Steps)
	if err != nil {
		return nil, err
	}

	goals := make([]dynamo.State, 0, len(waypoints)+1)
	for _, w := range waypoints {
		goals = append(goals, w.Clone())
	}
	goals = append(goals, e.cfg.Goal.State())

	return e.simulator.RunTracking(e.cfg.InitState.State(), sim.Waypoints(goals, e.horizon.Steps), tracker, e.horizon)
}

// Sweep runs the configured experiment from every start in starts on a
// bounded worker pool. Results are returned in the order of starts.
func (e *Experiment) Sweep(ctx context.Context, starts []dynamo.State, workers int) ([]*sim.Result, error) {
	var goal dynamo.State
	if e.cfg.Mode == config.ModeClosed {
		goal = e.cfg.Goal.State()
	}

	cases := make([]sim.Case, len(starts))
	for i, x0 := range starts {
		cases[i] = sim.Case{
			Name: fmt.Sprintf("x=%g y=%g", x0[dynamo.X], x0[dynamo.Y]),
			X0:   x0,
			Goal: goal,
		}
	}

	env := e.env()
	ens := sim.NewEnsemble(e.model, e.gains, workers,
		func() []sim.Metric { return e.registry.DefaultMetrics(env) },
		sim.WithLimits(e.cfg.SimLimits()),
		sim.WithLogger(e.logger.Named("sim")),
	)
	return ens.Run(ctx, cases, e.horizon)
}

// GainsFor returns the finite-horizon gains for the configured goal, or nil
// in open-loop mode.
func (e *Experiment) GainsFor() (*control.GainSequence, error) {
	if e.gains == nil {
		return nil, fmt.Errorf("%w: open-loop experiments have no gains", dynamo.ErrParameterBounds)
	}
	return e.gains.Gains(e.cfg.Goal.State(), e.horizon.Steps)
}

func (e *Experiment) Config() *config.Config       { return e.cfg }
func (e *Experiment) Horizon() dynamo.Horizon      { return e.horizon }
func (e *Experiment) Solver() *control.Solver      { return e.solver }
func (e *Experiment) Cache() *gaincache.Cache      { return e.cache }
func (e *Experiment) GetSimulator() *sim.Simulator { return e.simulator }

func (e *Experiment) Close() error {
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}
