package sim

import (
	"fmt"

	"github.com/san-kum/dampsim/internal/control"
	"github.com/san-kum/dampsim/internal/dynamo"
	"go.uber.org/zap"
)

// GoalSchedule returns the goal in force at step t.
type GoalSchedule func(t int) dynamo.State

// Waypoints visits goals in order, giving each an equal share of the
// horizon's steps-1 commands. The last goal holds until the end.
func Waypoints(goals []dynamo.State, steps int) GoalSchedule {
	n := steps - 1
	if n < 1 {
		n = 1
	}
	return func(t int) dynamo.State {
		i := t * len(goals) / n
		if i >= len(goals) {
			i = len(goals) - 1
		}
		return goals[i]
	}
}

// RunTracking drives x0 through a goal schedule with a replanning tracker.
// Saturation follows RunClosedLoop. Result.Multipliers holds each applied
// command as a fraction of MaxAccel and Result.Plans the number of gain
// sequences the tracker requested.
func (s *Simulator) RunTracking(x0 dynamo.State, goals GoalSchedule, tracker *control.Tracker, h dynamo.Horizon) (*Result, error) {
	if err := s.validate(x0, h); err != nil {
		return nil, err
	}
	if err := s.limits.Validate(); err != nil {
		return nil, err
	}
	if goals == nil || tracker == nil {
		return nil, fmt.Errorf("%w: tracking needs a goal schedule and a tracker", dynamo.ErrDimensionMismatch)
	}

	result := s.newResult(h, true)
	result.Multipliers = make([]dynamo.Control, 0, h.Steps-1)
	plans := tracker.Plans()

	x := x0.Clone()
	result.States = append(result.States, x)

	var goal dynamo.State
	for t := 0; t < h.Steps-1; t++ {
		goal = goals(t)
		if len(goal) != dynamo.StateDim {
			return nil, fmt.Errorf("%w: goal at step %d has %d components, want %d",
				dynamo.ErrDimensionMismatch, t, len(goal), dynamo.StateDim)
		}

		u, err := tracker.Command(x, goal)
		if err != nil {
			return nil, fmt.Errorf("plan at step %d: %w", t, err)
		}
		result.Multipliers = append(result.Multipliers, control.Multipliers(u, s.limits.MaxAccel))
		result.AccelClamps += s.limits.clampControl(u)
		s.observe(x, u, t)

		next := s.model.Step(x, u)
		result.SpeedClamps += s.limits.clampVelocity(next)
		if !next.IsValid() {
			return nil, &dynamo.SimulationError{Step: t + 1, Time: float64(t+1) * h.Dt, State: next, Wrapped: dynamo.ErrInvalidState}
		}

		result.Controls = append(result.Controls, u)
		result.States = append(result.States, next)
		x = next
	}

	result.Plans = tracker.Plans() - plans
	s.finish(result)
	if goal != nil {
		result.Metrics["final_error"] = result.Final().PositionError(goal)
	}

	s.logger.Debug("tracking rollout complete",
		zap.Int("steps", h.Steps),
		zap.Int("plans", result.Plans),
		zap.Int("accel_clamps", result.AccelClamps),
		zap.Int("speed_clamps", result.SpeedClamps),
	)
	return result, nil
}
