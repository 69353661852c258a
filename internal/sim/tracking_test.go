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

var _ = Describe("Waypoints", func() {
	It("splits the commands evenly and holds the last goal", func() {
		goals := []dynamo.State{{1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}}
		schedule := sim.Waypoints(goals, 7)

		want := []float64{1, 1, 2, 2, 3, 3, 3}
		for t, x := range want {
			Expect(schedule(t)[dynamo.X]).To(Equal(x), "step %d", t)
		}
	})
})

var _ = Describe("RunTracking", func() {
	var (
		model  *physics.PointMass
		solver *control.Solver
		h      dynamo.Horizon
	)

	BeforeEach(func() {
		var err error
		model, err = physics.NewPointMass(0.5, physics.DefaultDamping)
		Expect(err).NotTo(HaveOccurred())
		solver = control.NewSolver(model.A(), model.B(), control.DefaultCosts())
		h, err = dynamo.NewHorizon(10, 0.5)
		Expect(err).NotTo(HaveOccurred())
	})

	It("consumes each plan from step 1 and replans when it runs out", func() {
		goal := dynamo.State{300, 0, -100, 0}
		tracker, err := control.NewTracker(solver, h.Steps)
		Expect(err).NotTo(HaveOccurred())

		s := sim.New(model)
		res, err := s.RunTracking(dynamo.State{0, 0, 0, 0}, sim.Waypoints([]dynamo.State{goal}, h.Steps), tracker, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.States).To(HaveLen(h.Steps))
		Expect(res.Controls).To(HaveLen(h.Steps - 1))
		Expect(res.Plans).To(Equal(2))

		gains, err := solver.Gains(goal, h.Steps)
		Expect(err).NotTo(HaveOccurred())
		limits := s.Limits()
		for t, u := range res.Controls {
			k := t + 1
			if k >= h.Steps-1 {
				k -= h.Steps - 2
			}
			raw := control.Feedback(gains.At(k), res.States[t], goal)
			Expect(u[dynamo.UX]).To(Equal(sim.Clamp(raw[dynamo.UX], limits.MaxAccel)))
			Expect(u[dynamo.UY]).To(Equal(sim.Clamp(raw[dynamo.UY], limits.MaxAccel)))
		}
		Expect(res.Metrics).To(HaveKey("final_error"))
	})

	It("replans once per waypoint and reports acceleration multipliers", func() {
		goals := []dynamo.State{{1e5, 0, 0, 0}, {0, 0, -1e5, 0}}
		tracker, err := control.NewTracker(solver, h.Steps)
		Expect(err).NotTo(HaveOccurred())

		s := sim.New(model)
		res, err := s.RunTracking(dynamo.State{0, 0, 0, 0}, sim.Waypoints(goals, h.Steps), tracker, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Plans).To(Equal(2))
		Expect(res.AccelClamps).To(BeNumerically(">", 0))
		Expect(res.Multipliers).To(HaveLen(len(res.Controls)))

		limit := s.Limits().MaxAccel
		sawFull := false
		for t, m := range res.Multipliers {
			for i := range m {
				Expect(math.Abs(m[i])).To(BeNumerically("<=", 1))
				Expect(m[i]).To(Equal(res.Controls[t][i] / limit))
				if math.Abs(m[i]) == 1 {
					sawFull = true
				}
			}
		}
		Expect(sawFull).To(BeTrue())
		Expect(res.Multipliers[0][dynamo.UX]).To(BeNumerically(">", 0))
		Expect(res.Multipliers[len(res.Multipliers)-1][dynamo.UY]).To(BeNumerically("<", 0))
	})

	It("rejects a missing schedule and malformed goals", func() {
		tracker, err := control.NewTracker(solver, h.Steps)
		Expect(err).NotTo(HaveOccurred())

		_, err = sim.New(model).RunTracking(dynamo.State{0, 0, 0, 0}, nil, tracker, h)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

		bad := func(int) dynamo.State { return dynamo.State{1, 2} }
		_, err = sim.New(model).RunTracking(dynamo.State{0, 0, 0, 0}, bad, tracker, h)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})
