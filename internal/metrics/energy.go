package metrics

import "github.com/san-kum/dampsim/internal/dynamo"

// Energy is the mean kinetic energy of a unit mass over the observed states.
type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(x dynamo.State, u dynamo.Control, step int) {
	vx, vy := x[dynamo.VX], x[dynamo.VY]
	e.totalEnergy += 0.5 * (vx*vx + vy*vy)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}
