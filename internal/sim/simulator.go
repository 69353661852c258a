package sim

import (
	"fmt"

	"github.com/san-kum/dampsim/internal/control"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/physics"
	"go.uber.org/zap"
)

type Simulator struct {
	model     *physics.PointMass
	limits    Limits
	logger    *zap.Logger
	metrics   []Metric
	observers []Observer
}

type Option func(*Simulator)

func WithLimits(l Limits) Option {
	return func(s *Simulator) { s.limits = l }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a simulator for model with the default limits and no metrics.
func New(model *physics.PointMass, opts ...Option) *Simulator {
	s := &Simulator{
		model:     model,
		limits:    DefaultLimits(),
		logger:    zap.NewNop(),
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Model() *physics.PointMass { return s.model }
func (s *Simulator) Limits() Limits            { return s.limits }

// RunOpenLoop propagates x0 under free motion for h.Steps samples.
func (s *Simulator) RunOpenLoop(x0 dynamo.State, h dynamo.Horizon) (*Result, error) {
	if err := s.validate(x0, h); err != nil {
		return nil, err
	}

	result := s.newResult(h, false)
	x := x0.Clone()
	result.States = append(result.States, x)

	for t := 0; t < h.Steps-1; t++ {
		s.observe(x, nil, t)

		next := s.model.Step(x, nil)
		if !next.IsValid() {
			return nil, &dynamo.SimulationError{Step: t + 1, Time: float64(t+1) * h.Dt, State: next, Wrapped: dynamo.ErrInvalidState}
		}
		result.States = append(result.States, next)
		x = next
	}

	s.finish(result)
	s.logger.Debug("open-loop rollout complete",
		zap.Int("steps", h.Steps),
		zap.Float64("dt", h.Dt),
	)
	return result, nil
}

// RunClosedLoop drives x0 toward goal with the supplied gains. Each step
// saturates the command per axis, propagates, then saturates the new velocity
// before it is fed back into the next command.
func (s *Simulator) RunClosedLoop(x0, goal dynamo.State, gains *control.GainSequence, h dynamo.Horizon) (*Result, error) {
	if err := s.validate(x0, h); err != nil {
		return nil, err
	}
	if err := s.limits.Validate(); err != nil {
		return nil, err
	}
	if len(goal) != dynamo.StateDim {
		return nil, fmt.Errorf("%w: goal has %d components, want %d", dynamo.ErrDimensionMismatch, len(goal), dynamo.StateDim)
	}
	if gains == nil {
		return nil, fmt.Errorf("%w: no gains supplied", dynamo.ErrDimensionMismatch)
	}
	if rows, cols := gains.Dims(); rows != dynamo.ControlDim || cols != dynamo.StateDim+1 {
		return nil, fmt.Errorf("%w: gains are %dx%d, want %dx%d",
			dynamo.ErrDimensionMismatch, rows, cols, dynamo.ControlDim, dynamo.StateDim+1)
	}
	if gains.Len() < h.Steps-1 {
		return nil, fmt.Errorf("%w: %d gains cannot drive %d steps", dynamo.ErrDimensionMismatch, gains.Len(), h.Steps)
	}

	ctrl := control.NewLQR(gains, goal)
	result := s.newResult(h, true)
	x := x0.Clone()
	result.States = append(result.States, x)

	for t := 0; t < h.Steps-1; t++ {
		u := ctrl.Compute(x, t)
		result.AccelClamps += s.limits.clampControl(u)
		s.observe(x, u, t)

		next := s.model.Step(x, u)
		result.SpeedClamps += s.limits.clampVelocity(next)
		if !next.IsValid() {
			return nil, &dynamo.SimulationError{Step: t + 1, Time: float64(t+1) * h.Dt, State: next, Wrapped: dynamo.ErrInvalidState}
		}

		result.Controls = append(result.Controls, u)
		result.States = append(result.States, next)
		x = next
	}

	s.finish(result)
	result.Metrics["final_error"] = result.Final().PositionError(goal)

	s.logger.Debug("closed-loop rollout complete",
		zap.Int("steps", h.Steps),
		zap.Float64("dt", h.Dt),
		zap.Int("accel_clamps", result.AccelClamps),
		zap.Int("speed_clamps", result.SpeedClamps),
		zap.Float64("final_error", result.Metrics["final_error"]),
	)
	return result, nil
}

func (s *Simulator) validate(x0 dynamo.State, h dynamo.Horizon) error {
	if len(x0) != dynamo.StateDim {
		return fmt.Errorf("%w: initial state has %d components, want %d", dynamo.ErrDimensionMismatch, len(x0), dynamo.StateDim)
	}
	if !x0.IsValid() {
		return &dynamo.SimulationError{State: x0, Wrapped: dynamo.ErrInvalidState}
	}
	if h.Steps < 1 {
		return fmt.Errorf("%w: horizon has %d steps", dynamo.ErrInvalidHorizon, h.Steps)
	}
	if h.Dt != s.model.Dt {
		return fmt.Errorf("%w: horizon dt %g does not match model dt %g", dynamo.ErrParameterBounds, h.Dt, s.model.Dt)
	}
	return nil
}

func (s *Simulator) newResult(h dynamo.Horizon, controlled bool) *Result {
	r := &Result{
		States:  make([]dynamo.State, 0, h.Steps),
		Times:   h.Times(),
		Metrics: make(map[string]float64),
	}
	if controlled {
		r.Controls = make([]dynamo.Control, 0, h.Steps-1)
	}
	for _, m := range s.metrics {
		m.Reset()
	}
	return r
}

func (s *Simulator) observe(x dynamo.State, u dynamo.Control, step int) {
	for _, m := range s.metrics {
		m.Observe(x, u, step)
	}
	for _, o := range s.observers {
		o.OnStep(x, u, step)
	}
}

func (s *Simulator) finish(r *Result) {
	for _, m := range s.metrics {
		r.Metrics[m.Name()] = m.Value()
	}
}

// SimulateOpenLoop returns the free-motion trajectory of x0 over duration.
func SimulateOpenLoop(x0 dynamo.State, duration, dt, damping float64) ([]dynamo.State, error) {
	h, err := dynamo.NewHorizon(duration, dt)
	if err != nil {
		return nil, err
	}
	model, err := physics.NewPointMass(dt, damping)
	if err != nil {
		return nil, err
	}

	result, err := New(model).RunOpenLoop(x0, h)
	if err != nil {
		return nil, err
	}
	return result.States, nil
}

// SimulateClosedLoop drives x0 to goal over duration with the default
// damping, costs and saturation limits.
func SimulateClosedLoop(x0, goal dynamo.State, duration, dt float64) ([]dynamo.State, []dynamo.Control, error) {
	h, err := dynamo.NewHorizon(duration, dt)
	if err != nil {
		return nil, nil, err
	}
	model, err := physics.NewPointMass(dt, physics.DefaultDamping)
	if err != nil {
		return nil, nil, err
	}

	gains, err := control.NewSolver(model.A(), model.B(), control.DefaultCosts()).Gains(goal, h.Steps)
	if err != nil {
		return nil, nil, err
	}

	result, err := New(model).RunClosedLoop(x0, goal, gains, h)
	if err != nil {
		return nil, nil, err
	}
	return result.States, result.Controls, nil
}
