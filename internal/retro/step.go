package retro

import (
	"fmt"

	"github.com/chxlky/squadbooster/internal/models"
)

var stepOrder = []models.RetroStep{
	models.StepInput,
	models.StepGroup,
	models.StepVote,
	models.StepCompleted,
}

func stepIndex(s models.RetroStep) int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// NextStep returns the step after s. Completed has no successor.
func NextStep(s models.RetroStep) (models.RetroStep, bool) {
	i := stepIndex(s)
	if i < 0 || i == len(stepOrder)-1 {
		return "", false
	}
	return stepOrder[i+1], true
}

// CheckTransition reports whether a board may move from one step to another.
// Boards only move forward one step at a time; asking for the current step
// again is allowed and changes nothing.
func CheckTransition(from, to models.RetroStep) error {
	if !to.Valid() {
		return fmt.Errorf("unknown retro step %q", to)
	}
	if from == "" {
		from = models.StepInput
	}
	if from == to {
		return nil
	}
	next, ok := NextStep(from)
	if !ok {
		return fmt.Errorf("retro is already %s", from)
	}
	if to != next {
		if stepIndex(to) < stepIndex(from) {
			return fmt.Errorf("cannot move back from %s to %s", from, to)
		}
		return fmt.Errorf("cannot skip from %s to %s; next step is %s", from, to, next)
	}
	return nil
}
