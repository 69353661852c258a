package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dampsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// DefaultDamping is the fraction of velocity shed per second of coasting.
const DefaultDamping = 0.5

// PointMass is a damped point mass moving in the plane, discretised with a
// fixed time step. Each axis is an independent position/velocity pair:
//
//	x  += vx * dt
//	vx *= 1 - b*dt
//	vx += ux * dt   (controlled)
type PointMass struct {
	Dt      float64
	Damping float64

	a *mat.Dense
	b *mat.Dense
}

// NewPointMass builds the discrete model for step dt and velocity damping b.
func NewPointMass(dt, damping float64) (*PointMass, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrParameterBounds, dt)
	}
	if !(damping >= 0) || math.IsInf(damping, 0) {
		return nil, fmt.Errorf("%w: damping must be non-negative, got %g", dynamo.ErrParameterBounds, damping)
	}

	keep := 1 - damping*dt
	a := mat.NewDense(dynamo.StateDim, dynamo.StateDim, []float64{
		1, dt, 0, 0,
		0, keep, 0, 0,
		0, 0, 1, dt,
		0, 0, 0, keep,
	})
	b := mat.NewDense(dynamo.StateDim, dynamo.ControlDim, []float64{
		0, 0,
		dt, 0,
		0, 0,
		0, dt,
	})

	return &PointMass{Dt: dt, Damping: damping, a: a, b: b}, nil
}

func (p *PointMass) StateDim() int   { return dynamo.StateDim }
func (p *PointMass) ControlDim() int { return dynamo.ControlDim }

// A returns a copy of the state transition matrix.
func (p *PointMass) A() *mat.Dense { return mat.DenseCopyOf(p.a) }

// B returns a copy of the control input matrix.
func (p *PointMass) B() *mat.Dense { return mat.DenseCopyOf(p.b) }

// Step propagates x by one time step. A nil u is free motion.
func (p *PointMass) Step(x dynamo.State, u dynamo.Control) dynamo.State {
	var next mat.VecDense
	next.MulVec(p.a, mat.NewVecDense(dynamo.StateDim, x))

	if u != nil {
		var push mat.VecDense
		push.MulVec(p.b, mat.NewVecDense(dynamo.ControlDim, u))
		next.AddVec(&next, &push)
	}

	out := make(dynamo.State, dynamo.StateDim)
	for i := range out {
		out[i] = next.AtVec(i)
	}
	return out
}

// Speed is the magnitude of the planar velocity.
func (p *PointMass) Speed(x dynamo.State) float64 {
	return math.Hypot(x[dynamo.VX], x[dynamo.VY])
}

// Energy is the kinetic energy per unit mass.
func (p *PointMass) Energy(x dynamo.State) float64 {
	vx, vy := x[dynamo.VX], x[dynamo.VY]
	return 0.5 * (vx*vx + vy*vy)
}
