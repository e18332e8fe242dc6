package reporting

import (
	"fmt"
	"math"
	"time"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/domain"
)

// Report is the cohort verification report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	CohortID    string

	Summary domain.Summary

	// Target checks in fixed order: glucose delta, insulin increase, pump share
	Checks          []TargetCheckRow
	AllChecksPassed bool
}

// TargetCheckRow compares one population statistic to its design target.
type TargetCheckRow struct {
	Name      string
	Target    string
	Actual    string
	Deviation float64 // |actual - target|
	Pass      bool
}

// Targets are the population-level expectations the cohort is checked against.
type Targets struct {
	GlucoseDelta          float64 // mg/dL, luteal minus follicular
	GlucoseDeltaTolerance float64

	InsulinIncreasePct          float64 // percent, luteal over follicular
	InsulinIncreaseTolerancePct float64

	PumpShare          float64 // fraction of subjects on a pump
	PumpShareTolerance float64
}

// DefaultTargets returns the targets of the default generation parameters.
func DefaultTargets() Targets {
	return Targets{
		GlucoseDelta:                8,
		GlucoseDeltaTolerance:       2,
		InsulinIncreasePct:          14,
		InsulinIncreaseTolerancePct: 5,
		PumpShare:                   0.65,
		PumpShareTolerance:          0.10,
	}
}

// Build summarizes rows and checks them against targets.
// Phase-comparison checks fail when either phase is empty.
func Build(rows []*domain.SubjectRow, targets Targets) *Report {
	cohortID := ""
	if len(rows) > 0 {
		cohortID = rows[0].CohortID
	}
	return FromSummary(cohortID, cohort.Summarize(subjectsFromRows(rows)), targets)
}

// FromSummary checks an existing summary against targets.
func FromSummary(cohortID string, summary domain.Summary, targets Targets) *Report {
	r := &Report{CohortID: cohortID, Summary: summary}

	bothPhases := summary.PhaseCounts[domain.PhaseFollicular] > 0 && summary.PhaseCounts[domain.PhaseLuteal] > 0

	r.Checks = append(r.Checks, check(
		"Glucose delta (mg/dL)",
		targets.GlucoseDelta, targets.GlucoseDeltaTolerance,
		summary.GlucoseDelta, bothPhases, "%+.2f",
	))

	increase := 0.0
	if summary.InsulinRatio > 0 {
		increase = (summary.InsulinRatio - 1) * 100
	}
	r.Checks = append(r.Checks, check(
		"Basal insulin increase (%)",
		targets.InsulinIncreasePct, targets.InsulinIncreaseTolerancePct,
		increase, bothPhases, "%+.1f",
	))

	pump := summary.DeliveryPercentages[domain.DeliveryPump] / 100
	r.Checks = append(r.Checks, check(
		"Pump share",
		targets.PumpShare, targets.PumpShareTolerance,
		pump, summary.Total > 0, "%.3f",
	))

	r.AllChecksPassed = true
	for _, c := range r.Checks {
		r.AllChecksPassed = r.AllChecksPassed && c.Pass
	}
	return r
}

func check(name string, target, tolerance, actual float64, measurable bool, format string) TargetCheckRow {
	row := TargetCheckRow{
		Name:   name,
		Target: fmt.Sprintf("%g ± %g", target, tolerance),
	}
	if !measurable {
		row.Actual = "n/a"
		row.Deviation = math.NaN()
		return row
	}
	row.Actual = fmt.Sprintf(format, actual)
	row.Deviation = math.Abs(actual - target)
	row.Pass = row.Deviation <= tolerance
	return row
}

// subjectsFromRows carries the summarized fields only.
func subjectsFromRows(rows []*domain.SubjectRow) []domain.Subject {
	subjects := make([]domain.Subject, len(rows))
	for i, r := range rows {
		subjects[i] = domain.Subject{
			Index:          r.Position,
			SubjectID:      r.SubjectID,
			Age:            r.Age,
			DeliveryMethod: r.DeliveryMethod,
			CycleLength:    r.CycleLength,
			Phase:          r.CyclePhase,
			NightGlucose:   r.NightGlucose,
			BasalInsulin:   r.BasalInsulin,
		}
	}
	return subjects
}
