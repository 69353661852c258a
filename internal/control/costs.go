package control

import (
	"fmt"
	"math"

	"github.com/san-kum/dampsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Costs are the quadratic weights of a tracking problem.
type Costs struct {
	Q mat.Matrix // stage state cost, n×n
	F mat.Matrix // terminal state cost, n×n
	R mat.Matrix // control cost, m×m
}

var (
	defaultStageCost    = []float64{0, 0, 0, 0}
	defaultTerminalCost = []float64{6000, 2000, 6000, 2000}
	defaultControlCost  = []float64{1, 1}
)

// DefaultCosts charge nothing along the way, weight the terminal position
// error three times the terminal velocity error, and use unit control cost.
func DefaultCosts() Costs {
	c, _ := DiagCosts(defaultStageCost, defaultTerminalCost, defaultControlCost)
	return c
}

// DiagCosts builds diagonal cost matrices. Q and F entries must be
// non-negative and R entries strictly positive.
func DiagCosts(q, f, r []float64) (Costs, error) {
	if len(q) != dynamo.StateDim || len(f) != dynamo.StateDim || len(r) != dynamo.ControlDim {
		return Costs{}, fmt.Errorf("%w: diagonals have lengths q=%d f=%d r=%d, want %d/%d/%d",
			dynamo.ErrDimensionMismatch, len(q), len(f), len(r),
			dynamo.StateDim, dynamo.StateDim, dynamo.ControlDim)
	}
	for i := range q {
		if !(q[i] >= 0) || !(f[i] >= 0) || math.IsInf(q[i], 0) || math.IsInf(f[i], 0) {
			return Costs{}, fmt.Errorf("%w: state costs must be non-negative (q[%d]=%g f[%d]=%g)",
				dynamo.ErrParameterBounds, i, q[i], i, f[i])
		}
	}
	for i := range r {
		if !(r[i] > 0) || math.IsInf(r[i], 0) {
			return Costs{}, fmt.Errorf("%w: control cost r[%d]=%g must be positive", dynamo.ErrParameterBounds, i, r[i])
		}
	}

	return Costs{
		Q: diag(q),
		F: diag(f),
		R: diag(r),
	}, nil
}

func diag(v []float64) *mat.DiagDense {
	d := make([]float64, len(v))
	copy(d, v)
	return mat.NewDiagDense(len(d), d)
}
