package domain

import "time"

// Cohort is the result of one generation run. Subjects are in draw order.
type Cohort struct {
	Seed           int64
	EvaluationDate time.Time
	Subjects       []Subject
	Summary        Summary
}

// PhaseStats holds per-phase aggregates.
type PhaseStats struct {
	Count         int     `json:"count" yaml:"count"`
	MeanGlucose   float64 `json:"mean_glucose" yaml:"mean_glucose"`
	MeanInsulin   float64 `json:"mean_insulin" yaml:"mean_insulin"`
	MedianGlucose float64 `json:"median_glucose" yaml:"median_glucose"`
	MedianInsulin float64 `json:"median_insulin" yaml:"median_insulin"`
}

// AgeStats holds age aggregates.
type AgeStats struct {
	Min  int     `json:"min" yaml:"min"`
	Max  int     `json:"max" yaml:"max"`
	Mean float64 `json:"mean" yaml:"mean"`
}

// Summary holds aggregate statistics over exactly the subjects of a cohort.
// All fields are zero for an empty cohort.
type Summary struct {
	Total int `json:"total" yaml:"total"`

	PhaseCounts      map[Phase]int     `json:"phase_counts" yaml:"phase_counts"`
	PhasePercentages map[Phase]float64 `json:"phase_percentages" yaml:"phase_percentages"`

	DeliveryCounts      map[DeliveryMethod]int     `json:"delivery_counts" yaml:"delivery_counts"`
	DeliveryPercentages map[DeliveryMethod]float64 `json:"delivery_percentages" yaml:"delivery_percentages"`

	ByPhase map[Phase]PhaseStats `json:"by_phase" yaml:"by_phase"`

	// GlucoseDelta is luteal mean glucose minus follicular mean glucose.
	GlucoseDelta float64 `json:"glucose_delta" yaml:"glucose_delta"`
	// InsulinRatio is luteal mean insulin over follicular mean insulin.
	InsulinRatio float64 `json:"insulin_ratio" yaml:"insulin_ratio"`

	Age AgeStats `json:"age" yaml:"age"`
}
