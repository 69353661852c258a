package metrics

import (
	"math"

	"github.com/san-kum/dampsim/internal/dynamo"
)

// ControlEffort is the mean per-step sum of |u| over the commanded steps.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, step int) {
	if u == nil {
		return
	}
	for _, val := range u {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Saturation is the fraction of commanded steps with at least one axis
// pinned at the acceleration limit.
type Saturation struct {
	name    string
	limit   float64
	pinned  int
	samples int
}

func NewSaturation(limit float64) *Saturation {
	return &Saturation{name: "saturation", limit: limit}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(x dynamo.State, u dynamo.Control, step int) {
	if u == nil {
		return
	}
	s.samples++
	for _, val := range u {
		if math.Abs(val) >= s.limit {
			s.pinned++
			return
		}
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.pinned) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.pinned = 0
	s.samples = 0
}
