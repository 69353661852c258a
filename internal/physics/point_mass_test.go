package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dampsim/internal/dynamo"
)

func TestPointMassMatrices(t *testing.T) {
	pm, err := NewPointMass(0.1, 0.5)
	if err != nil {
		t.Fatalf("new point mass: %v", err)
	}

	a := pm.A()
	want := [4][4]float64{
		{1, 0.1, 0, 0},
		{0, 0.95, 0, 0},
		{0, 0, 1, 0.1},
		{0, 0, 0, 0.95},
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(a.At(i, j)-want[i][j]) > 1e-12 {
				t.Errorf("A[%d][%d] = %f, want %f", i, j, a.At(i, j), want[i][j])
			}
		}
	}

	b := pm.B()
	if r, c := b.Dims(); r != 4 || c != 2 {
		t.Fatalf("expected B to be 4x2, got %dx%d", r, c)
	}
	if b.At(dynamo.VX, dynamo.UX) != 0.1 || b.At(dynamo.VY, dynamo.UY) != 0.1 {
		t.Error("B should map each command into its own velocity")
	}
	if b.At(dynamo.X, dynamo.UX) != 0 || b.At(dynamo.VX, dynamo.UY) != 0 {
		t.Error("B should not couple into position or across axes")
	}
}

func TestPointMassMatricesAreCopies(t *testing.T) {
	pm, _ := NewPointMass(0.1, 0.5)
	a := pm.A()
	a.Set(0, 0, 42)
	if pm.A().At(0, 0) != 1 {
		t.Error("mutating A() leaked into the model")
	}
}

func TestPointMassStep_FreeMotion(t *testing.T) {
	pm, _ := NewPointMass(0.5, 0.5)
	next := pm.Step(dynamo.State{15, 8, 17, -4}, nil)

	want := dynamo.State{19, 6, 15, -3}
	for i := range want {
		if math.Abs(next[i]-want[i]) > 1e-12 {
			t.Errorf("next[%d] = %f, want %f", i, next[i], want[i])
		}
	}
}

func TestPointMassStep_Controlled(t *testing.T) {
	pm, _ := NewPointMass(0.5, 0.5)
	next := pm.Step(dynamo.State{0, 0, 0, 0}, dynamo.Control{150, -150})

	if next[dynamo.X] != 0 || next[dynamo.Y] != 0 {
		t.Errorf("command should not move position in one step, got %v", next)
	}
	if next[dynamo.VX] != 75 || next[dynamo.VY] != -75 {
		t.Errorf("expected velocity (75, -75), got (%f, %f)", next[dynamo.VX], next[dynamo.VY])
	}
}

func TestPointMassStep_Pure(t *testing.T) {
	pm, _ := NewPointMass(0.01, DefaultDamping)
	x := dynamo.State{1, 2, 3, 4}
	first := pm.Step(x, dynamo.Control{1, 1})
	second := pm.Step(x, dynamo.Control{1, 1})

	if !first.Equal(second) {
		t.Errorf("step is not a pure function: %v vs %v", first, second)
	}
	if !x.Equal(dynamo.State{1, 2, 3, 4}) {
		t.Errorf("step mutated its input: %v", x)
	}
}

func TestPointMassAxesDecoupled(t *testing.T) {
	pm, _ := NewPointMass(0.03, DefaultDamping)
	x := dynamo.State{0, 250, 0, 0}
	for i := 0; i < 100; i++ {
		x = pm.Step(x, dynamo.Control{10, 0})
		if x[dynamo.Y] != 0 || x[dynamo.VY] != 0 {
			t.Fatalf("step %d: x-axis motion leaked into y: %v", i, x)
		}
	}
}

func TestPointMassVelocityDecays(t *testing.T) {
	tests := []struct {
		dt      float64
		damping float64
	}{
		{0.01, 0.5},
		{0.03, 0.5},
		{0.1, 2.0},
		{0.5, 1.9},
		{0.2, 0},
	}

	for _, tt := range tests {
		pm, err := NewPointMass(tt.dt, tt.damping)
		if err != nil {
			t.Fatalf("dt=%g b=%g: %v", tt.dt, tt.damping, err)
		}

		x := dynamo.State{0, 250, 0, -100}
		for i := 0; i < 200; i++ {
			next := pm.Step(x, nil)
			if math.Abs(next[dynamo.VX]) > math.Abs(x[dynamo.VX]) ||
				math.Abs(next[dynamo.VY]) > math.Abs(x[dynamo.VY]) {
				t.Fatalf("dt=%g b=%g step %d: speed grew from %v to %v", tt.dt, tt.damping, i, x, next)
			}
			x = next
		}
	}
}

func TestPointMassEnergy(t *testing.T) {
	pm, _ := NewPointMass(0.1, DefaultDamping)
	x := dynamo.State{5, 3, -2, 4}
	if e := pm.Energy(x); math.Abs(e-12.5) > 1e-12 {
		t.Errorf("expected energy 12.5, got %f", e)
	}
	if s := pm.Speed(x); math.Abs(s-5) > 1e-12 {
		t.Errorf("expected speed 5, got %f", s)
	}
}

func TestNewPointMass_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		dt      float64
		damping float64
	}{
		{"zero dt", 0, 0.5},
		{"negative dt", -0.1, 0.5},
		{"negative damping", 0.1, -0.5},
		{"nan damping", 0.1, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPointMass(tt.dt, tt.damping); !errors.Is(err, dynamo.ErrParameterBounds) {
				t.Errorf("expected ErrParameterBounds, got %v", err)
			}
		})
	}
}
