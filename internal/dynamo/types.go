package dynamo

import (
	"fmt"
	"math"
)

// Layout of the planar state vector.
const (
	X = iota
	VX
	Y
	VY
	StateDim
)

// Layout of the control vector.
const (
	UX = iota
	UY
	ControlDim
)

// MaxSteps bounds the step count a Horizon may describe.
const MaxSteps = 1 << 24

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Equal reports whether both states hold identical values.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// PositionError is the planar distance between the positions of s and goal.
func (s State) PositionError(goal State) float64 {
	dx := s[X] - goal[X]
	dy := s[Y] - goal[Y]
	return math.Hypot(dx, dy)
}

type Control []float64

func (c Control) Clone() Control {
	out := make(Control, len(c))
	copy(out, c)
	return out
}

// Horizon is a validated number of discrete samples spaced Dt seconds apart.
type Horizon struct {
	Steps int
	Dt    float64
}

// NewHorizon converts a duration into a step count. The ratio duration/dt must
// be an exact integer; it is never rounded.
func NewHorizon(duration, dt float64) (Horizon, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return Horizon{}, fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidHorizon, dt)
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return Horizon{}, fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidHorizon, duration)
	}

	ratio := duration / dt
	if ratio != math.Trunc(ratio) {
		return Horizon{}, fmt.Errorf("%w: %g / %g = %v", ErrInvalidHorizon, duration, dt, ratio)
	}
	if ratio > MaxSteps {
		return Horizon{}, fmt.Errorf("%w: %v steps exceeds limit %d", ErrInvalidHorizon, ratio, MaxSteps)
	}

	return Horizon{Steps: int(ratio), Dt: dt}, nil
}

func (h Horizon) Duration() float64 {
	return float64(h.Steps) * h.Dt
}

// Times returns the sample time of every step in the horizon.
func (h Horizon) Times() []float64 {
	times := make([]float64, h.Steps)
	for i := range times {
		times[i] = float64(i) * h.Dt
	}
	return times
}
