package sim

import (
	"context"
	"fmt"
	"runtime"

	"github.com/san-kum/dampsim/internal/control"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/physics"
	"golang.org/x/sync/errgroup"
)

// Case is one run of an ensemble. A nil Goal runs open loop.
type Case struct {
	Name string
	X0   dynamo.State
	Goal dynamo.State
}

// Ensemble runs independent cases on a bounded pool of workers. Every case
// gets its own Simulator and its own metrics.
type Ensemble struct {
	model   *physics.PointMass
	gains   control.GainSource
	workers int
	metrics func() []Metric
	opts    []Option
}

// NewEnsemble builds an ensemble. gains may be nil when every case runs open
// loop; it must be safe for concurrent use otherwise. A non-positive worker
// count uses GOMAXPROCS.
func NewEnsemble(model *physics.PointMass, gains control.GainSource, workers int, metrics func() []Metric, opts ...Option) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{model: model, gains: gains, workers: workers, metrics: metrics, opts: opts}
}

// Run executes every case and returns results in case order. The first
// failure cancels the remaining cases.
func (e *Ensemble) Run(ctx context.Context, cases []Case, h dynamo.Horizon) ([]*Result, error) {
	results := make([]*Result, len(cases))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, c := range cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.runCase(c, h)
			if err != nil {
				return fmt.Errorf("case %d (%s): %w", i, c.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Ensemble) runCase(c Case, h dynamo.Horizon) (*Result, error) {
	s := New(e.model, e.opts...)
	if e.metrics != nil {
		for _, m := range e.metrics() {
			s.AddMetric(m)
		}
	}

	if c.Goal == nil {
		return s.RunOpenLoop(c.X0, h)
	}
	if e.gains == nil {
		return nil, fmt.Errorf("%w: closed-loop case without a gain source", dynamo.ErrParameterBounds)
	}

	gains, err := e.gains.Gains(c.Goal, h.Steps)
	if err != nil {
		return nil, err
	}
	return s.RunClosedLoop(c.X0, c.Goal, gains, h)
}
