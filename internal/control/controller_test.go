package control

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dampsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

func TestFeedback(t *testing.T) {
	k := mat.NewDense(2, 5, []float64{
		1, 2, 0, 0, 3,
		0, 0, 4, 5, 6,
	})

	u := Feedback(k, dynamo.State{2, 2, 2, 2}, dynamo.State{1, 1, 1, 1})
	if len(u) != 2 {
		t.Fatalf("expected 2 controls, got %d", len(u))
	}
	if u[dynamo.UX] != -6 || u[dynamo.UY] != -15 {
		t.Errorf("expected (-6, -15), got %v", u)
	}
}

func TestLQR_AtGoal(t *testing.T) {
	a, b := planarModel(0.02, 0.5)
	costs := DefaultCosts()
	goal := dynamo.State{100, 0, -50, 0}

	gains, err := SolveLQR(a, b, costs.Q, costs.F, costs.R, goal, 100)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	ctrl := NewLQR(gains, goal)
	for step := 0; step < gains.Len(); step++ {
		u := ctrl.Compute(goal.Clone(), step)
		if math.Abs(u[0]) > 1e-9 || math.Abs(u[1]) > 1e-9 {
			t.Fatalf("step %d: expected no command at the goal, got %v", step, u)
		}
	}
}

func TestLQR_PushesTowardGoal(t *testing.T) {
	a, b := planarModel(0.02, 0.5)
	costs := DefaultCosts()
	goal := dynamo.State{100, 0, -50, 0}

	gains, err := SolveLQR(a, b, costs.Q, costs.F, costs.R, goal, 100)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	u := NewLQR(gains, goal).Compute(dynamo.State{0, 0, 0, 0}, 1)
	if u[dynamo.UX] <= 0 {
		t.Errorf("expected positive x command toward goal, got %f", u[dynamo.UX])
	}
	if u[dynamo.UY] >= 0 {
		t.Errorf("expected negative y command toward goal, got %f", u[dynamo.UY])
	}
}

func TestMultipliers(t *testing.T) {
	got := Multipliers(dynamo.Control{300, -75}, 150)
	if got[0] != 1 || got[1] != -0.5 {
		t.Errorf("expected (1, -0.5), got %v", got)
	}
	got = Multipliers(dynamo.Control{-1000, 0}, 150)
	if got[0] != -1 || got[1] != 0 {
		t.Errorf("expected (-1, 0), got %v", got)
	}
}

type countingSource struct {
	calls int
	steps []int
	inner GainSource
}

func (c *countingSource) Gains(goal dynamo.State, steps int) (*GainSequence, error) {
	c.calls++
	c.steps = append(c.steps, steps)
	return c.inner.Gains(goal, steps)
}

func TestTracker_Replans(t *testing.T) {
	a, b := planarModel(0.02, 0.5)
	src := &countingSource{inner: NewSolver(a, b, DefaultCosts())}

	tr, err := NewTracker(src, 5)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	goal := dynamo.State{10, 0, 10, 0}
	x := dynamo.State{0, 0, 0, 0}

	for i := 0; i < 3; i++ {
		if _, err := tr.Command(x, goal); err != nil {
			t.Fatalf("command %d: %v", i, err)
		}
	}
	if src.calls != 1 {
		t.Errorf("expected one plan for steps 1..3, got %d", src.calls)
	}
	if tr.Step() != 4 {
		t.Errorf("expected next step 4, got %d", tr.Step())
	}

	if _, err := tr.Command(x, goal); err != nil {
		t.Fatalf("command: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected replan once the sequence is exhausted, got %d plans", src.calls)
	}

	if _, err := tr.Command(x, dynamo.State{20, 0, 10, 0}); err != nil {
		t.Fatalf("command: %v", err)
	}
	if src.calls != 3 || tr.Plans() != 3 {
		t.Errorf("expected replan on goal change, got %d plans", src.calls)
	}
	if tr.Step() != 2 {
		t.Errorf("new plan should start from step 1, next step is %d", tr.Step())
	}
	for _, s := range src.steps {
		if s != 5 {
			t.Errorf("tracker requested horizon %d, want 5", s)
		}
	}

	tr.Reset()
	if _, err := tr.Command(x, dynamo.State{20, 0, 10, 0}); err != nil {
		t.Fatalf("command after reset: %v", err)
	}
	if src.calls != 4 {
		t.Errorf("expected replan after reset, got %d plans", src.calls)
	}
}

type failingSource struct{}

func (failingSource) Gains(dynamo.State, int) (*GainSequence, error) {
	return nil, dynamo.ErrSingular
}

func TestTracker_Errors(t *testing.T) {
	if _, err := NewTracker(failingSource{}, 2); !errors.Is(err, dynamo.ErrHorizonTooShort) {
		t.Errorf("expected ErrHorizonTooShort, got %v", err)
	}

	tr, _ := NewTracker(failingSource{}, 10)
	if _, err := tr.Command(dynamo.State{0, 0, 0, 0}, dynamo.State{1, 0, 1, 0}); !errors.Is(err, dynamo.ErrSingular) {
		t.Errorf("expected source error to surface, got %v", err)
	}
}

func TestDiagCosts(t *testing.T) {
	c, err := DiagCosts([]float64{10, 1, 10, 1}, []float64{1, 1, 1, 1}, []float64{2, 3})
	if err != nil {
		t.Fatalf("diag costs: %v", err)
	}
	if c.Q.At(0, 0) != 10 || c.Q.At(0, 1) != 0 || c.R.At(1, 1) != 3 {
		t.Error("diagonal entries not placed correctly")
	}

	tests := []struct {
		name    string
		q, f, r []float64
		want    error
	}{
		{"short q", []float64{1, 1, 1}, []float64{1, 1, 1, 1}, []float64{1, 1}, dynamo.ErrDimensionMismatch},
		{"long r", []float64{1, 1, 1, 1}, []float64{1, 1, 1, 1}, []float64{1, 1, 1}, dynamo.ErrDimensionMismatch},
		{"negative q", []float64{-1, 1, 1, 1}, []float64{1, 1, 1, 1}, []float64{1, 1}, dynamo.ErrParameterBounds},
		{"zero r", []float64{1, 1, 1, 1}, []float64{1, 1, 1, 1}, []float64{0, 1}, dynamo.ErrParameterBounds},
		{"nan f", []float64{1, 1, 1, 1}, []float64{1, math.NaN(), 1, 1}, []float64{1, 1}, dynamo.ErrParameterBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DiagCosts(tt.q, tt.f, tt.r); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSolverFingerprint(t *testing.T) {
	a, b := planarModel(0.02, 0.5)
	s1 := NewSolver(a, b, DefaultCosts())
	s2 := NewSolver(mat.DenseCopyOf(a), mat.DenseCopyOf(b), DefaultCosts())
	if s1.Fingerprint() != s2.Fingerprint() {
		t.Error("identical solvers should share a fingerprint")
	}

	other, _ := DiagCosts([]float64{0, 0, 0, 0}, []float64{6000, 2000, 6000, 2000}, []float64{2, 2})
	if s1.Fingerprint() == NewSolver(a, b, other).Fingerprint() {
		t.Error("different costs should change the fingerprint")
	}

	a2, b2 := planarModel(0.01, 0.5)
	if s1.Fingerprint() == NewSolver(a2, b2, DefaultCosts()).Fingerprint() {
		t.Error("different time steps should change the fingerprint")
	}
}

func TestSolverSteadyState(t *testing.T) {
	a, b := planarModel(0.1, 0.5)
	costs, _ := DiagCosts([]float64{10, 1, 10, 1}, []float64{10, 1, 10, 1}, []float64{1, 1})
	k, err := NewSolver(a, b, costs).SteadyState(dynamo.State{1, 0, 1, 0}, DefaultIterations)
	if err != nil {
		t.Fatalf("steady state: %v", err)
	}
	if r, c := k.Dims(); r != 2 || c != 5 {
		t.Errorf("expected 2x5 gain, got %dx%d", r, c)
	}
}

func TestGainSequence(t *testing.T) {
	g, err := NewGainSequence(2, 3, []float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	})
	if err != nil {
		t.Fatalf("new gain sequence: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 gains, got %d", g.Len())
	}
	if g.At(1).At(0, 2) != 9 || g.At(0).At(1, 0) != 4 {
		t.Error("gains not laid out row-major per step")
	}

	raw := g.Raw()
	raw[0] = 100
	if g.At(0).At(0, 0) != 1 {
		t.Error("Raw should return a copy")
	}

	if _, err := NewGainSequence(2, 3, make([]float64, 7)); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := NewGainSequence(0, 3, nil); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
