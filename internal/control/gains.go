package control

import (
	"fmt"

	"github.com/san-kum/dampsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// GainSequence stores one feedback matrix per time step in a single
// contiguous arena. Gain t occupies data[t*rows*cols : (t+1)*rows*cols] in
// row-major order.
type GainSequence struct {
	rows int
	cols int
	data []float64
}

func newGainSequence(steps, rows, cols int) *GainSequence {
	return &GainSequence{
		rows: rows,
		cols: cols,
		data: make([]float64, steps*rows*cols),
	}
}

// NewGainSequence wraps data as a sequence of rows×cols gains. The length of
// data must be a whole multiple of rows*cols.
func NewGainSequence(rows, cols int, data []float64) (*GainSequence, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: gain shape %dx%d", dynamo.ErrDimensionMismatch, rows, cols)
	}
	if len(data)%(rows*cols) != 0 {
		return nil, fmt.Errorf("%w: %d values do not form %dx%d gains", dynamo.ErrDimensionMismatch, len(data), rows, cols)
	}
	out := make([]float64, len(data))
	copy(out, data)
	return &GainSequence{rows: rows, cols: cols, data: out}, nil
}

// Len is the number of gains, one per step.
func (g *GainSequence) Len() int {
	return len(g.data) / (g.rows * g.cols)
}

// Dims returns the shape of every gain.
func (g *GainSequence) Dims() (rows, cols int) {
	return g.rows, g.cols
}

// At returns the gain for step t. The view shares the arena and exposes no
// setters, so callers cannot alter the sequence through it.
func (g *GainSequence) At(t int) mat.Matrix {
	size := g.rows * g.cols
	off := t * size
	return gainView{d: mat.NewDense(g.rows, g.cols, g.data[off:off+size:off+size])}
}

type gainView struct {
	d *mat.Dense
}

func (v gainView) Dims() (r, c int)    { return v.d.Dims() }
func (v gainView) At(i, j int) float64 { return v.d.At(i, j) }
func (v gainView) T() mat.Matrix       { return mat.Transpose{Matrix: v} }

// Raw returns a copy of the arena.
func (g *GainSequence) Raw() []float64 {
	out := make([]float64, len(g.data))
	copy(out, g.data)
	return out
}

// Equal reports whether both sequences hold bit-identical gains.
func (g *GainSequence) Equal(other *GainSequence) bool {
	if g.rows != other.rows || g.cols != other.cols || len(g.data) != len(other.data) {
		return false
	}
	for i := range g.data {
		if g.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

func (g *GainSequence) set(t int, k mat.Matrix) {
	size := g.rows * g.cols
	off := t * size
	dst := mat.NewDense(g.rows, g.cols, g.data[off:off+size:off+size])
	dst.Copy(k)
}
