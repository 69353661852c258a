package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/dampsim/internal/dynamo"
)

// Default saturation limits, in pixels/s² and pixels/s.
const (
	DefaultMaxAccel = 150.0
	DefaultMaxSpeed = 250.0
)

type Controller interface {
	Compute(x dynamo.State, step int) dynamo.Control
}

type Metric interface {
	Name() string
	Observe(x dynamo.State, u dynamo.Control, step int)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x dynamo.State, u dynamo.Control, step int)
}

// Limits are the per-axis saturation bounds of a closed-loop rollout.
type Limits struct {
	MaxAccel float64
	MaxSpeed float64
}

func DefaultLimits() Limits {
	return Limits{MaxAccel: DefaultMaxAccel, MaxSpeed: DefaultMaxSpeed}
}

func (l Limits) Validate() error {
	if !(l.MaxAccel > 0) || math.IsInf(l.MaxAccel, 0) {
		return fmt.Errorf("%w: max accel must be positive, got %g", dynamo.ErrParameterBounds, l.MaxAccel)
	}
	if !(l.MaxSpeed > 0) || math.IsInf(l.MaxSpeed, 0) {
		return fmt.Errorf("%w: max speed must be positive, got %g", dynamo.ErrParameterBounds, l.MaxSpeed)
	}
	return nil
}

// Result is a finished rollout. States has one entry per horizon step;
// Controls has one fewer and is empty for open-loop runs.
type Result struct {
	States   []dynamo.State
	Controls []dynamo.Control
	Times    []float64
	Metrics  map[string]float64

	AccelClamps int
	SpeedClamps int

	// Set by tracking rollouts only.
	Multipliers []dynamo.Control
	Plans       int
}

// Final is the last state of the trajectory.
func (r *Result) Final() dynamo.State {
	return r.States[len(r.States)-1]
}
