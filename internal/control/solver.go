package control

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/san-kum/dampsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// GainSource produces the gain sequence that drives the system to goal over
// steps samples.
type GainSource interface {
	Gains(goal dynamo.State, steps int) (*GainSequence, error)
}

// Solver binds a model's matrices to a set of costs. It holds no mutable
// state and is safe for concurrent use.
type Solver struct {
	a     mat.Matrix
	b     mat.Matrix
	costs Costs
}

// NewSolver binds the model matrices a and b to costs.
func NewSolver(a, b mat.Matrix, costs Costs) *Solver {
	return &Solver{a: a, b: b, costs: costs}
}

func (s *Solver) Costs() Costs { return s.costs }

func (s *Solver) Gains(goal dynamo.State, steps int) (*GainSequence, error) {
	return SolveLQR(s.a, s.b, s.costs.Q, s.costs.F, s.costs.R, goal, steps)
}

// SteadyState returns the infinite-horizon gain for goal.
func (s *Solver) SteadyState(goal dynamo.State, iterations int) (*mat.Dense, error) {
	k, _, err := SolveSteadyState(s.a, s.b, s.costs.Q, s.costs.R, goal, iterations)
	return k, err
}

// Fingerprint identifies the solver's matrices. Two solvers with equal
// fingerprints produce identical gains.
func (s *Solver) Fingerprint() string {
	h := xxhash.New()
	var buf [8]byte
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}

	for _, m := range []mat.Matrix{s.a, s.b, s.costs.Q, s.costs.F, s.costs.R} {
		r, c := m.Dims()
		write(uint64(r))
		write(uint64(c))
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				write(math.Float64bits(m.At(i, j)))
			}
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
