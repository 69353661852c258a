package metrics

import (
	"math"

	"github.com/san-kum/dampsim/internal/dynamo"
)

// Stability is the fraction of observed states whose speed on both axes stays
// under threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, step int) {
	s.samples++
	if math.Abs(x[dynamo.VX]) > s.threshold || math.Abs(x[dynamo.VY]) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Settling is the first step after which the position stays within tolerance
// of goal. It reports -1 while the position is still outside.
type Settling struct {
	name      string
	goal      dynamo.State
	tolerance float64
	settled   int
}

func NewSettling(goal dynamo.State, tolerance float64) *Settling {
	return &Settling{name: "settling_step", goal: goal.Clone(), tolerance: tolerance, settled: -1}
}

func (s *Settling) Name() string { return s.name }

func (s *Settling) Observe(x dynamo.State, u dynamo.Control, step int) {
	if x.PositionError(s.goal) > s.tolerance {
		s.settled = -1
		return
	}
	if s.settled < 0 {
		s.settled = step
	}
}

func (s *Settling) Value() float64 { return float64(s.settled) }

func (s *Settling) Reset() { s.settled = -1 }
