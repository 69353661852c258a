package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/metrics"
	"github.com/san-kum/dampsim/internal/sim"
)

// Env is what a metric factory may depend on. Goal is nil for open-loop runs.
type Env struct {
	Goal   dynamo.State
	Limits sim.Limits
}

// SettleTolerance is the position error, in pixels, counted as settled.
const SettleTolerance = 1.0

type metricFactory struct {
	needsGoal bool
	build     func(Env) sim.Metric
}

type Registry struct {
	metrics map[string]metricFactory
}

func NewRegistry() *Registry {
	r := &Registry{metrics: make(map[string]metricFactory)}

	r.metrics["control_effort"] = metricFactory{build: func(Env) sim.Metric { return metrics.NewControlEffort() }}
	r.metrics["saturation"] = metricFactory{build: func(env Env) sim.Metric { return metrics.NewSaturation(env.Limits.MaxAccel) }}
	r.metrics["stability"] = metricFactory{build: func(env Env) sim.Metric { return metrics.NewStability(env.Limits.MaxSpeed) }}
	r.metrics["energy"] = metricFactory{build: func(Env) sim.Metric { return metrics.NewEnergy() }}
	r.metrics["settling_step"] = metricFactory{
		needsGoal: true,
		build:     func(env Env) sim.Metric { return metrics.NewSettling(env.Goal, SettleTolerance) },
	}

	return r
}

// GetMetric builds the named metric for env.
func (r *Registry) GetMetric(name string, env Env) (sim.Metric, error) {
	f, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	if f.needsGoal && env.Goal == nil {
		return nil, fmt.Errorf("metric %s needs a goal", name)
	}
	return f.build(env), nil
}

// ListMetrics returns every registered metric name, sorted. Closed-loop runs
// additionally report final_error.
func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics builds a fresh instance of every metric that applies to env.
func (r *Registry) DefaultMetrics(env Env) []sim.Metric {
	out := make([]sim.Metric, 0, len(r.metrics))
	for _, name := range r.ListMetrics() {
		if r.metrics[name].needsGoal && env.Goal == nil {
			continue
		}
		out = append(out, r.metrics[name].build(env))
	}
	return out
}
