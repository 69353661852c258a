package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/dampsim/internal/config"
	"github.com/san-kum/dampsim/internal/experiment"
)

// Cost weight parameters understood by ApplyCosts.
const (
	ParamQPos = "q_pos"
	ParamQVel = "q_vel"
	ParamFPos = "f_pos"
	ParamFVel = "f_vel"
	ParamR    = "r"
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search evaluates every point of the grid and returns the parameters with
// the smallest value of metricName. Points whose experiment fails to build or
// run are skipped; the search fails only when no point succeeds.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("grid has %d names but %d ranges", len(g.paramNames), len(g.ranges))
	}

	s := &search{
		build:  buildExperiment,
		metric: metricName,
		best:   math.Inf(1),
	}
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), s); err != nil {
		return nil, 0, err
	}
	if s.bestParams == nil {
		if s.lastErr == nil {
			return nil, 0, fmt.Errorf("empty grid")
		}
		return nil, 0, fmt.Errorf("no grid point produced metric %q: %w", metricName, s.lastErr)
	}
	return s.bestParams, s.best, nil
}

type search struct {
	build      func(map[string]float64) (*experiment.Experiment, error)
	metric     string
	best       float64
	bestParams map[string]float64
	lastErr    error
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, s *search) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		val, err := s.evaluate(ctx, current)
		if err != nil {
			s.lastErr = err
			return nil
		}
		if val < s.best {
			s.best = val
			s.bestParams = make(map[string]float64, len(current))
			for k, v := range current {
				s.bestParams[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *search) evaluate(ctx context.Context, params map[string]float64) (float64, error) {
	exp, err := s.build(params)
	if err != nil {
		return 0, err
	}
	defer exp.Close()

	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	val, ok := result.Metrics[s.metric]
	if !ok {
		return 0, fmt.Errorf("metric %q not reported", s.metric)
	}
	if math.IsNaN(val) {
		return 0, fmt.Errorf("metric %q is NaN", s.metric)
	}
	return val, nil
}

// ApplyCosts returns a copy of base with the named cost weights overridden.
// Position weights apply to x and y, velocity weights to vx and vy, and r to
// both control axes.
func ApplyCosts(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := *base
	cfg.Costs = config.CostsConfig{
		Q: append([]float64(nil), base.Costs.Q...),
		F: append([]float64(nil), base.Costs.F...),
		R: append([]float64(nil), base.Costs.R...),
	}
	if len(cfg.Costs.Q) != 4 || len(cfg.Costs.F) != 4 || len(cfg.Costs.R) != 2 {
		return nil, fmt.Errorf("base costs have lengths %d/%d/%d, want 4/4/2",
			len(cfg.Costs.Q), len(cfg.Costs.F), len(cfg.Costs.R))
	}

	for name, v := range params {
		switch name {
		case ParamQPos:
			cfg.Costs.Q[0], cfg.Costs.Q[2] = v, v
		case ParamQVel:
			cfg.Costs.Q[1], cfg.Costs.Q[3] = v, v
		case ParamFPos:
			cfg.Costs.F[0], cfg.Costs.F[2] = v, v
		case ParamFVel:
			cfg.Costs.F[1], cfg.Costs.F[3] = v, v
		case ParamR:
			cfg.Costs.R[0], cfg.Costs.R[1] = v, v
		default:
			return nil, fmt.Errorf("unknown cost parameter %q", name)
		}
	}
	return &cfg, nil
}
