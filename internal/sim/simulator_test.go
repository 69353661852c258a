package sim_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dampsim/internal/control"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/physics"
	"github.com/san-kum/dampsim/internal/sim"
)

type countingMetric struct {
	observed int
	withU    int
}

func (c *countingMetric) Name() string { return "count" }
func (c *countingMetric) Observe(x dynamo.State, u dynamo.Control, step int) {
	c.observed++
	if u != nil {
		c.withU++
	}
}
func (c *countingMetric) Value() float64 { return float64(c.observed) }
func (c *countingMetric) Reset()         { c.observed, c.withU = 0, 0 }

var _ = Describe("Clamp", func() {
	DescribeTable("bounds values symmetrically",
		func(v, limit, want float64) {
			Expect(sim.Clamp(v, limit)).To(Equal(want))
		},
		Entry("above", 200.0, 150.0, 150.0),
		Entry("below", -200.0, 150.0, -150.0),
		Entry("inside", 10.0, 150.0, 10.0),
		Entry("on the bound", -250.0, 250.0, -250.0),
	)
})

var _ = Describe("SimulateOpenLoop", func() {
	It("records exactly duration/dt states", func() {
		x0 := dynamo.State{0, 250, 0, 100}
		states, err := sim.SimulateOpenLoop(x0, 9.0, 0.03, physics.DefaultDamping)
		Expect(err).NotTo(HaveOccurred())
		Expect(states).To(HaveLen(300))
		Expect(states[0]).To(Equal(x0))
	})

	It("rejects a fractional step count", func() {
		_, err := sim.SimulateOpenLoop(dynamo.State{0, 250, 0, 100}, 9.0, 0.011, physics.DefaultDamping)
		Expect(err).To(MatchError(dynamo.ErrInvalidHorizon))
	})

	It("rejects negative damping", func() {
		_, err := sim.SimulateOpenLoop(dynamo.State{0, 250, 0, 100}, 9.0, 0.03, -1)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
	})

	It("never speeds up without input", func() {
		states, err := sim.SimulateOpenLoop(dynamo.State{0, 250, 0, -100}, 9.0, 0.01, physics.DefaultDamping)
		Expect(err).NotTo(HaveOccurred())
		for t := 1; t < len(states); t++ {
			Expect(math.Abs(states[t][dynamo.VX])).To(BeNumerically("<=", math.Abs(states[t-1][dynamo.VX])))
			Expect(math.Abs(states[t][dynamo.VY])).To(BeNumerically("<=", math.Abs(states[t-1][dynamo.VY])))
		}
	})

	It("follows x[t+1] = A x[t]", func() {
		pm, err := physics.NewPointMass(0.25, physics.DefaultDamping)
		Expect(err).NotTo(HaveOccurred())

		states, err := sim.SimulateOpenLoop(dynamo.State{3, 40, -2, -8}, 5, 0.25, physics.DefaultDamping)
		Expect(err).NotTo(HaveOccurred())
		Expect(states).To(HaveLen(20))
		for t := 0; t+1 < len(states); t++ {
			Expect(states[t+1]).To(Equal(pm.Step(states[t], nil)))
		}
	})
})

var _ = Describe("SimulateClosedLoop", func() {
	It("returns T states and T-1 controls", func() {
		states, controls, err := sim.SimulateClosedLoop(dynamo.State{0, 0, 0, 0}, dynamo.State{100, 0, -50, 0}, 5, 0.25)
		Expect(err).NotTo(HaveOccurred())
		Expect(states).To(HaveLen(20))
		Expect(controls).To(HaveLen(19))
	})

	It("needs no correction when starting at the goal", func() {
		goal := dynamo.State{100, 0, -50, 0}
		states, controls, err := sim.SimulateClosedLoop(goal.Clone(), goal, 5, 0.0625)
		Expect(err).NotTo(HaveOccurred())

		for _, u := range controls {
			Expect(u[dynamo.UX]).To(BeNumerically("~", 0, 1e-9))
			Expect(u[dynamo.UY]).To(BeNumerically("~", 0, 1e-9))
		}
		for _, x := range states {
			Expect(x.PositionError(goal)).To(BeNumerically("~", 0, 1e-9))
		}
	})

	It("reaches a nearby goal", func() {
		goal := dynamo.State{100, 0, -50, 0}
		states, _, err := sim.SimulateClosedLoop(dynamo.State{0, 0, 0, 0}, goal, 5, 0.0625)
		Expect(err).NotTo(HaveOccurred())
		Expect(states[len(states)-1].PositionError(goal)).To(BeNumerically("<", 1))
	})

	It("saturates commands at 150 and speed at 250", func() {
		goal := dynamo.State{1e5, 0, 0, 0}
		states, controls, err := sim.SimulateClosedLoop(dynamo.State{0, 0, 0, 0}, goal, 10, 0.5)
		Expect(err).NotTo(HaveOccurred())

		sawAccel := false
		for _, u := range controls {
			Expect(math.Abs(u[dynamo.UX])).To(BeNumerically("<=", sim.DefaultMaxAccel))
			Expect(u[dynamo.UY]).To(BeNumerically("~", 0, 1e-9))
			if u[dynamo.UX] == sim.DefaultMaxAccel {
				sawAccel = true
			}
		}
		Expect(sawAccel).To(BeTrue(), "expected a command clamped to exactly 150")

		sawSpeed := false
		for _, x := range states {
			Expect(math.Abs(x[dynamo.VX])).To(BeNumerically("<=", sim.DefaultMaxSpeed))
			if x[dynamo.VX] == sim.DefaultMaxSpeed {
				sawSpeed = true
			}
		}
		Expect(sawSpeed).To(BeTrue(), "expected a velocity clamped to exactly 250")
	})

	It("rejects a fractional step count", func() {
		_, _, err := sim.SimulateClosedLoop(dynamo.State{0, 0, 0, 0}, dynamo.State{1, 0, 1, 0}, 9.0, 0.011)
		Expect(err).To(MatchError(dynamo.ErrInvalidHorizon))
	})

	It("rejects a single-step horizon", func() {
		_, _, err := sim.SimulateClosedLoop(dynamo.State{0, 0, 0, 0}, dynamo.State{1, 0, 1, 0}, 0.5, 0.5)
		Expect(err).To(MatchError(dynamo.ErrHorizonTooShort))
	})
})

var _ = Describe("Simulator", func() {
	var (
		model  *physics.PointMass
		solver *control.Solver
		h      dynamo.Horizon
		goal   dynamo.State
	)

	BeforeEach(func() {
		var err error
		model, err = physics.NewPointMass(0.5, physics.DefaultDamping)
		Expect(err).NotTo(HaveOccurred())
		solver = control.NewSolver(model.A(), model.B(), control.DefaultCosts())
		h, err = dynamo.NewHorizon(10, 0.5)
		Expect(err).NotTo(HaveOccurred())
		goal = dynamo.State{1e5, 0, -2e4, 0}
	})

	It("feeds the clamped velocity back into the next command", func() {
		gains, err := solver.Gains(goal, h.Steps)
		Expect(err).NotTo(HaveOccurred())

		s := sim.New(model)
		res, err := s.RunClosedLoop(dynamo.State{0, 200, 0, -200}, goal, gains, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.AccelClamps).To(BeNumerically(">", 0))
		Expect(res.SpeedClamps).To(BeNumerically(">", 0))

		limits := s.Limits()
		for t, u := range res.Controls {
			raw := control.Feedback(gains.At(t), res.States[t], goal)
			Expect(u[dynamo.UX]).To(Equal(sim.Clamp(raw[dynamo.UX], limits.MaxAccel)))
			Expect(u[dynamo.UY]).To(Equal(sim.Clamp(raw[dynamo.UY], limits.MaxAccel)))

			next := model.Step(res.States[t], u)
			next[dynamo.VX] = sim.Clamp(next[dynamo.VX], limits.MaxSpeed)
			next[dynamo.VY] = sim.Clamp(next[dynamo.VY], limits.MaxSpeed)
			Expect(res.States[t+1]).To(Equal(next))
		}
	})

	It("honours custom limits", func() {
		gains, err := solver.Gains(goal, h.Steps)
		Expect(err).NotTo(HaveOccurred())

		s := sim.New(model, sim.WithLimits(sim.Limits{MaxAccel: 20, MaxSpeed: 30}))
		res, err := s.RunClosedLoop(dynamo.State{0, 0, 0, 0}, goal, gains, h)
		Expect(err).NotTo(HaveOccurred())
		for t := range res.Controls {
			Expect(math.Abs(res.Controls[t][dynamo.UX])).To(BeNumerically("<=", 20))
			Expect(math.Abs(res.States[t+1][dynamo.VX])).To(BeNumerically("<=", 30))
		}
		Expect(res.Metrics).To(HaveKey("final_error"))
	})

	It("reports metrics and observes every step", func() {
		gains, err := solver.Gains(goal, h.Steps)
		Expect(err).NotTo(HaveOccurred())

		metric := &countingMetric{}
		s := sim.New(model)
		s.AddMetric(metric)

		res, err := s.RunClosedLoop(dynamo.State{0, 0, 0, 0}, goal, gains, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics).To(HaveKeyWithValue("count", float64(h.Steps-1)))
		Expect(metric.withU).To(Equal(h.Steps - 1))

		res, err = s.RunOpenLoop(dynamo.State{0, 10, 0, 10}, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics).To(HaveKeyWithValue("count", float64(h.Steps-1)))
		Expect(metric.withU).To(Equal(0))
		Expect(res.Controls).To(BeEmpty())
		Expect(res.Times).To(HaveLen(h.Steps))
	})

	It("rejects a horizon built for another time step", func() {
		other, err := dynamo.NewHorizon(10, 0.25)
		Expect(err).NotTo(HaveOccurred())

		_, err = sim.New(model).RunOpenLoop(dynamo.State{0, 0, 0, 0}, other)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
	})

	It("rejects too few gains", func() {
		gains, err := solver.Gains(goal, 5)
		Expect(err).NotTo(HaveOccurred())

		_, err = sim.New(model).RunClosedLoop(dynamo.State{0, 0, 0, 0}, goal, gains, h)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("rejects malformed states and limits", func() {
		gains, err := solver.Gains(goal, h.Steps)
		Expect(err).NotTo(HaveOccurred())

		_, err = sim.New(model).RunClosedLoop(dynamo.State{0, 0, 0}, goal, gains, h)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

		_, err = sim.New(model).RunOpenLoop(dynamo.State{0, math.NaN(), 0, 0}, h)
		Expect(err).To(MatchError(dynamo.ErrInvalidState))

		_, err = sim.New(model, sim.WithLimits(sim.Limits{MaxAccel: 0, MaxSpeed: 250})).
			RunClosedLoop(dynamo.State{0, 0, 0, 0}, goal, gains, h)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
	})
})
