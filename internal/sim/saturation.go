package sim

import (
	"math"

	"github.com/san-kum/dampsim/internal/dynamo"
)

// Clamp bounds v to [-limit, limit].
func Clamp(v, limit float64) float64 {
	return math.Max(math.Min(limit, v), -limit)
}

// clampControl saturates each axis of u in place and reports how many axes
// were clipped.
func (l Limits) clampControl(u dynamo.Control) int {
	clipped := 0
	for i, v := range u {
		c := Clamp(v, l.MaxAccel)
		if c != v {
			clipped++
		}
		u[i] = c
	}
	return clipped
}

// clampVelocity saturates both velocity components of x in place.
func (l Limits) clampVelocity(x dynamo.State) int {
	clipped := 0
	for _, i := range [...]int{dynamo.VX, dynamo.VY} {
		c := Clamp(x[i], l.MaxSpeed)
		if c != x[i] {
			clipped++
		}
		x[i] = c
	}
	return clipped
}
