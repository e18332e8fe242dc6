// Package phase derives a subject's cycle phase from its reference date.
//
// The phase is a pure function of the reference date, the cycle length, the
// evaluation date and the split day:
//
//	days_elapsed = (evaluation - reference) mod cycle_length
//	phase        = follicular if days_elapsed < min(split, cycle_length-1), else luteal
//
// Dates are compared as UTC calendar days. A reference date after the
// evaluation date wraps into the previous cycle.
package phase

import (
	"fmt"
	"time"

	"synth-cohort/internal/domain"
)

const day = 24 * time.Hour

// Result is the traceable output of one phase computation.
type Result struct {
	Phase       domain.Phase
	DaysElapsed int
	SplitDay    int       // effective split after clamping to the cycle length
	CycleStart  time.Time // first day of the cycle containing the evaluation date
	Boundary    time.Time // first luteal day of that cycle
}

// Engine computes phases for a fixed split day and cycle-length range.
type Engine struct {
	splitDay int
	minCycle int
	maxCycle int
}

// New creates an Engine. minCycle must be at least 2 so both phases exist.
func New(splitDay, minCycle, maxCycle int) (*Engine, error) {
	if minCycle < 2 {
		return nil, domain.NewConfigError("cycle_length_bounds", "minimum %d is below 2", minCycle)
	}
	if maxCycle < minCycle {
		return nil, domain.NewConfigError("cycle_length_bounds", "maximum %d below minimum %d", maxCycle, minCycle)
	}
	if splitDay < 1 {
		return nil, domain.NewConfigError("phase_split_day", "must be at least 1, got %d", splitDay)
	}
	return &Engine{splitDay: splitDay, minCycle: minCycle, maxCycle: maxCycle}, nil
}

// Compute returns the phase on evaluation for a cycle starting at reference.
func (e *Engine) Compute(reference, evaluation time.Time, cycleLength int) (Result, error) {
	if cycleLength < e.minCycle || cycleLength > e.maxCycle {
		return Result{}, domain.NewConfigError("cycle_length",
			"%d outside [%d, %d]", cycleLength, e.minCycle, e.maxCycle)
	}

	ref := truncateDay(reference)
	eval := truncateDay(evaluation)

	diff := int(eval.Sub(ref) / day)
	elapsed := ((diff % cycleLength) + cycleLength) % cycleLength

	split := e.splitDay
	if split > cycleLength-1 {
		split = cycleLength - 1
	}

	p := domain.PhaseLuteal
	if elapsed < split {
		p = domain.PhaseFollicular
	}

	start := eval.AddDate(0, 0, -elapsed)
	return Result{
		Phase:       p,
		DaysElapsed: elapsed,
		SplitDay:    split,
		CycleStart:  start,
		Boundary:    start.AddDate(0, 0, split),
	}, nil
}

// SplitDay returns the configured split day before clamping.
func (e *Engine) SplitDay() int {
	return e.splitDay
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// String describes the engine for logs.
func (e *Engine) String() string {
	return fmt.Sprintf("phase.Engine{split=%d cycle=[%d,%d]}", e.splitDay, e.minCycle, e.maxCycle)
}
