package control

import (
	"fmt"

	"github.com/san-kum/dampsim/internal/dynamo"
)

// Tracker follows a moving goal one step at a time. It keeps the current gain
// sequence and its position in it, and replans whenever the goal changes or
// the sequence runs out. Each plan is consumed from step 1.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	source GainSource
	steps  int

	goal  dynamo.State
	gains *GainSequence
	step  int
	plans int
}

// NewTracker plans over steps samples each time it replans.
func NewTracker(source GainSource, steps int) (*Tracker, error) {
	if steps < 3 {
		return nil, fmt.Errorf("%w: tracker needs at least 3 steps, got %d", dynamo.ErrHorizonTooShort, steps)
	}
	return &Tracker{source: source, steps: steps}, nil
}

// Command returns the raw acceleration command for x.
func (t *Tracker) Command(x, goal dynamo.State) (dynamo.Control, error) {
	if t.gains == nil || !goal.Equal(t.goal) || t.step >= t.steps-1 {
		gains, err := t.source.Gains(goal, t.steps)
		if err != nil {
			return nil, err
		}
		t.gains = gains
		t.goal = goal.Clone()
		t.step = 1
		t.plans++
	}

	u := Feedback(t.gains.At(t.step), x, t.goal)
	t.step++
	return u, nil
}

// Step is the index of the gain the next Command will use.
func (t *Tracker) Step() int { return t.step }

// Plans counts how many gain sequences have been requested.
func (t *Tracker) Plans() int { return t.plans }

func (t *Tracker) Reset() {
	t.goal = nil
	t.gains = nil
	t.step = 0
}
