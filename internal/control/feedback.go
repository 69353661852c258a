package control

import (
	"github.com/san-kum/dampsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// LQR applies a precomputed gain sequence: u = −K[step] (x − goal, 1).
type LQR struct {
	Gains *GainSequence
	Goal  dynamo.State

	e *mat.VecDense
	u *mat.VecDense
}

// NewLQR copies goal and preallocates the feedback buffers.
func NewLQR(gains *GainSequence, goal dynamo.State) *LQR {
	rows, cols := gains.Dims()
	return &LQR{
		Gains: gains,
		Goal:  goal.Clone(),
		e:     mat.NewVecDense(cols, nil),
		u:     mat.NewVecDense(rows, nil),
	}
}

func (l *LQR) Compute(x dynamo.State, step int) dynamo.Control {
	return feedback(l.u, l.e, l.Gains.At(step), x, l.Goal)
}

// Feedback returns −K (x − goal, 1) for a single gain.
func Feedback(k mat.Matrix, x, goal dynamo.State) dynamo.Control {
	rows, cols := k.Dims()
	return feedback(mat.NewVecDense(rows, nil), mat.NewVecDense(cols, nil), k, x, goal)
}

func feedback(u, e *mat.VecDense, k mat.Matrix, x, goal dynamo.State) dynamo.Control {
	n := e.Len() - 1
	for i := 0; i < n; i++ {
		e.SetVec(i, x[i]-goal[i])
	}
	e.SetVec(n, 1)

	u.MulVec(k, e)
	out := make(dynamo.Control, u.Len())
	for i := range out {
		out[i] = -u.AtVec(i)
	}
	return out
}

// Multipliers expresses a command as a fraction of the actuator limit, each
// axis bounded to [-1, 1].
func Multipliers(u dynamo.Control, limit float64) dynamo.Control {
	out := make(dynamo.Control, len(u))
	for i, v := range u {
		r := v / limit
		if r > 1 {
			r = 1
		} else if r < -1 {
			r = -1
		}
		out[i] = r
	}
	return out
}
