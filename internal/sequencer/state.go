package sequencer

import (
	"fmt"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

// RunState is the position of one run in the stage chain.
type RunState string

const (
	StateStage1Pending RunState = "stage1_pending"
	StateStage2Pending RunState = "stage2_pending"
	StateStage3Pending RunState = "stage3_pending"
	StateStage4Pending RunState = "stage4_pending"
	StateCompleted     RunState = "completed"
	StateFailed        RunState = "failed"
	StateSuperseded    RunState = "superseded"
)

// Event moves a run from one state to the next.
type Event string

const (
	// EventSucceeded means the pending stage's record was accepted and presented.
	EventSucceeded Event = "succeeded"

	// EventFailed means the pending stage's call failed while the run was still active.
	EventFailed Event = "failed"

	// EventSuperseded means a newer run took over before the pending stage's answer was used.
	EventSuperseded Event = "superseded"
)

var pendingOrder = []RunState{StateStage1Pending, StateStage2Pending, StateStage3Pending, StateStage4Pending}

// Terminal reports whether no further transition is allowed.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSuperseded
}

// Stage returns the stage a pending state waits on, or "" for terminal states.
func (s RunState) Stage() domain.StageName {
	for i, p := range pendingOrder {
		if p == s {
			return domain.Stages[i]
		}
	}
	return ""
}

// Next returns the state reached from s on ev. Terminal states accept no events.
func (s RunState) Next(ev Event) (RunState, error) {
	idx := -1
	for i, p := range pendingOrder {
		if p == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, fmt.Errorf("run state %q is terminal, cannot apply %q", s, ev)
	}

	switch ev {
	case EventSucceeded:
		if idx == len(pendingOrder)-1 {
			return StateCompleted, nil
		}
		return pendingOrder[idx+1], nil
	case EventFailed:
		return StateFailed, nil
	case EventSuperseded:
		return StateSuperseded, nil
	default:
		return s, fmt.Errorf("unknown run event %q", ev)
	}
}
