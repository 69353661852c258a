package control

import (
	"fmt"

	"github.com/san-kum/dampsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// DefaultIterations is the number of Riccati updates used by SolveSteadyState.
const DefaultIterations = 1000

// augmented is a goal-tracking problem lifted into homogeneous coordinates.
// The extra state component is the constant 1, so the affine error dynamics
//
//	e[t+1] = A e[t] + B u[t] + (A g - g)
//
// become linear in (e, 1).
type augmented struct {
	a *mat.Dense // [A, A g - g; 0, 1]
	b *mat.Dense // [B; 0]
	q *mat.Dense // [Q, 0; 0, 0]
	f *mat.Dense // [F, 0; 0, 0]
}

func augment(A, B, Q, F mat.Matrix, goal dynamo.State) *augmented {
	n := len(goal)
	_, m := B.Dims()

	g := mat.NewVecDense(n, goal.Clone())
	var drift mat.VecDense
	drift.MulVec(A, g)
	drift.SubVec(&drift, g)

	a := mat.NewDense(n+1, n+1, nil)
	a.Slice(0, n, 0, n).(*mat.Dense).Copy(A)
	for i := 0; i < n; i++ {
		a.Set(i, n, drift.AtVec(i))
	}
	a.Set(n, n, 1)

	b := mat.NewDense(n+1, m, nil)
	b.Slice(0, n, 0, m).(*mat.Dense).Copy(B)

	return &augmented{a: a, b: b, q: pad(Q, n), f: pad(F, n)}
}

// pad embeds an n×n cost in the upper-left block of an (n+1)×(n+1) zero matrix.
func pad(cost mat.Matrix, n int) *mat.Dense {
	out := mat.NewDense(n+1, n+1, nil)
	out.Slice(0, n, 0, n).(*mat.Dense).Copy(cost)
	return out
}

// riccati holds the scratch matrices for one solve so the backward loop
// performs no per-step allocation.
type riccati struct {
	a, b, q, r *mat.Dense

	pa   *mat.Dense // P A
	pb   *mat.Dense // P B
	atpa *mat.Dense // Aᵗ P A
	atpb *mat.Dense // Aᵗ P B
	btpa *mat.Dense // Bᵗ P A
	btpb *mat.Dense // Bᵗ P B
	s    *mat.Dense // R + Bᵗ P B
	inv  *mat.Dense // (R + Bᵗ P B)⁻¹
	tmp  *mat.Dense // Aᵗ P B (R + Bᵗ P B)⁻¹
	corr *mat.Dense // Aᵗ P B (R + Bᵗ P B)⁻¹ Bᵗ P A
}

func newRiccati(aug *augmented, R mat.Matrix) *riccati {
	n, _ := aug.a.Dims()
	_, m := aug.b.Dims()
	return &riccati{
		a:    aug.a,
		b:    aug.b,
		q:    aug.q,
		r:    mat.DenseCopyOf(R),
		pa:   mat.NewDense(n, n, nil),
		pb:   mat.NewDense(n, m, nil),
		atpa: mat.NewDense(n, n, nil),
		atpb: mat.NewDense(n, m, nil),
		btpa: mat.NewDense(m, n, nil),
		btpb: mat.NewDense(m, m, nil),
		s:    mat.NewDense(m, m, nil),
		inv:  mat.NewDense(m, m, nil),
		tmp:  mat.NewDense(n, m, nil),
		corr: mat.NewDense(n, n, nil),
	}
}

// invert loads (R + BᵗPB)⁻¹ and BᵗPA for the cost-to-go p.
func (w *riccati) invert(p *mat.Dense) error {
	w.pa.Mul(p, w.a)
	w.pb.Mul(p, w.b)
	w.btpa.Mul(w.b.T(), w.pa)
	w.btpb.Mul(w.b.T(), w.pb)
	w.s.Add(w.r, w.btpb)
	if err := w.inv.Inverse(w.s); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrSingular, err)
	}
	return nil
}

// update writes AᵗPA − AᵗPB(R + BᵗPB)⁻¹BᵗPA + Q into dst.
func (w *riccati) update(dst, p *mat.Dense) error {
	if err := w.invert(p); err != nil {
		return err
	}
	w.atpa.Mul(w.a.T(), w.pa)
	w.atpb.Mul(w.a.T(), w.pb)
	w.tmp.Mul(w.atpb, w.inv)
	w.corr.Mul(w.tmp, w.btpa)
	dst.Sub(w.atpa, w.corr)
	dst.Add(dst, w.q)
	return nil
}

// gain writes (R + BᵗPB)⁻¹BᵗPA into dst.
func (w *riccati) gain(dst, p *mat.Dense) error {
	if err := w.invert(p); err != nil {
		return err
	}
	dst.Mul(w.inv, w.btpa)
	return nil
}

// SolveLQR computes the finite-horizon gains that drive the system x' = Ax + Bu
// to goal over steps samples, minimising Σ eᵗQe + uᵗRu + terminal eᵗFe where
// e = x − goal.
//
// The cost-to-go starts at the augmented F for step steps-1 and is swept
// backward to step 1; the gain for each step is derived from that step's
// cost-to-go. The returned sequence holds steps-1 gains of shape m×(n+1),
// each acting on the augmented error (x − goal, 1). Gain 0 lies outside the
// sweep and stays zero.
func SolveLQR(A, B, Q, F, R mat.Matrix, goal dynamo.State, steps int) (*GainSequence, error) {
	n, m, err := conformable(A, B, Q, F, R, goal)
	if err != nil {
		return nil, err
	}
	if steps < 2 {
		return nil, fmt.Errorf("%w: got %d", dynamo.ErrHorizonTooShort, steps)
	}

	aug := augment(A, B, Q, F, goal)
	w := newRiccati(aug, R)

	gains := newGainSequence(steps-1, m, n+1)
	next := mat.DenseCopyOf(aug.f)
	cur := mat.NewDense(n+1, n+1, nil)
	k := mat.NewDense(m, n+1, nil)

	for t := steps - 2; t >= 1; t-- {
		if err := w.update(cur, next); err != nil {
			return nil, &dynamo.SimulationError{Step: t, Wrapped: err}
		}
		if err := w.gain(k, cur); err != nil {
			return nil, &dynamo.SimulationError{Step: t, Wrapped: err}
		}
		gains.set(t, k)
		cur, next = next, cur
	}

	return gains, nil
}

// SolveSteadyState iterates the Riccati update from the augmented Q for a fixed
// number of iterations and returns the resulting steady-state gain and
// cost-to-go.
func SolveSteadyState(A, B, Q, R mat.Matrix, goal dynamo.State, iterations int) (k, p *mat.Dense, err error) {
	n, m, err := conformable(A, B, Q, Q, R, goal)
	if err != nil {
		return nil, nil, err
	}
	if iterations < 1 {
		return nil, nil, fmt.Errorf("%w: iterations must be positive, got %d", dynamo.ErrParameterBounds, iterations)
	}

	aug := augment(A, B, Q, Q, goal)
	w := newRiccati(aug, R)

	p = mat.DenseCopyOf(aug.q)
	next := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < iterations; i++ {
		if err := w.update(next, p); err != nil {
			return nil, nil, &dynamo.SimulationError{Step: i, Wrapped: err}
		}
		p, next = next, p
	}

	k = mat.NewDense(m, n+1, nil)
	if err := w.gain(k, p); err != nil {
		return nil, nil, &dynamo.SimulationError{Step: iterations, Wrapped: err}
	}
	return k, p, nil
}

func conformable(A, B, Q, F, R mat.Matrix, goal dynamo.State) (n, m int, err error) {
	n = len(goal)
	if n == 0 {
		return 0, 0, fmt.Errorf("%w: empty goal", dynamo.ErrDimensionMismatch)
	}
	if B == nil {
		return 0, 0, fmt.Errorf("%w: B is nil", dynamo.ErrDimensionMismatch)
	}
	_, m = B.Dims()

	for _, c := range []struct {
		name       string
		mtx        mat.Matrix
		rows, cols int
	}{
		{"A", A, n, n},
		{"B", B, n, m},
		{"Q", Q, n, n},
		{"F", F, n, n},
		{"R", R, m, m},
	} {
		if c.mtx == nil {
			return 0, 0, fmt.Errorf("%w: %s is nil", dynamo.ErrDimensionMismatch, c.name)
		}
		if r, cols := c.mtx.Dims(); r != c.rows || cols != c.cols {
			return 0, 0, fmt.Errorf("%w: %s is %dx%d, want %dx%d",
				dynamo.ErrDimensionMismatch, c.name, r, cols, c.rows, c.cols)
		}
	}
	return n, m, nil
}
