package cohort

import (
	"math"
	"time"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/phase"
	"synth-cohort/internal/sampler"
)

// DefaultSize is the cohort size used when none is given.
const DefaultSize = 187

// MaxReferenceWindowDays caps how far back a reference date may be drawn.
const MaxReferenceWindowDays = 3650

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// FloatRange is an inclusive float range.
type FloatRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// DurationRange is an inclusive duration range.
type DurationRange struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// PhaseMeans holds one mean per cycle phase.
type PhaseMeans struct {
	Follicular float64 `yaml:"follicular" json:"follicular"`
	Luteal     float64 `yaml:"luteal" json:"luteal"`
}

// Config enumerates every generation parameter.
type Config struct {
	Seed int64 `yaml:"seed" json:"seed"`

	AgeBounds     IntRange `yaml:"age_bounds" json:"age_bounds"`
	DeliverySplit float64  `yaml:"delivery_split" json:"delivery_split"`

	PhaseSplitDay     int      `yaml:"phase_split_day" json:"phase_split_day"`
	CycleLengthBounds IntRange `yaml:"cycle_length_bounds" json:"cycle_length_bounds"`
	CycleLengthMean   float64  `yaml:"cycle_length_mean" json:"cycle_length_mean"`
	CycleLengthSpread float64  `yaml:"cycle_length_spread" json:"cycle_length_spread"`

	// ReferenceDateWindow is how many days before the evaluation date the
	// last period may have started.
	ReferenceDateWindow IntRange `yaml:"reference_date_window" json:"reference_date_window"`

	GlucoseMeansByPhase PhaseMeans `yaml:"glucose_means_by_phase" json:"glucose_means_by_phase"`
	GlucoseSpread       float64    `yaml:"glucose_spread" json:"glucose_spread"`
	GlucoseClamp        FloatRange `yaml:"glucose_clamp" json:"glucose_clamp"`

	InsulinMeanFollicular   float64 `yaml:"insulin_mean_phase_a" json:"insulin_mean_phase_a"`
	InsulinLutealMultiplier float64 `yaml:"insulin_luteal_multiplier" json:"insulin_luteal_multiplier"`
	InsulinSpread           float64 `yaml:"insulin_spread" json:"insulin_spread"`
	InsulinFloor            float64 `yaml:"insulin_floor" json:"insulin_floor"`

	// SubmissionWindow bounds how long before the evaluation date each
	// questionnaire was submitted.
	SubmissionWindow DurationRange `yaml:"submission_window" json:"submission_window"`

	Precision int `yaml:"precision" json:"precision"`

	// EvaluationDate is the day phases are computed for. Zero means today (UTC).
	EvaluationDate time.Time `yaml:"evaluation_date" json:"evaluation_date"`
}

// DefaultConfig returns the parameters of the reference cohort.
func DefaultConfig() Config {
	p := sampler.DefaultParams()
	return Config{
		Seed:                    42,
		AgeBounds:               IntRange{Min: p.AgeMin, Max: p.AgeMax},
		DeliverySplit:           p.DeliverySplit,
		PhaseSplitDay:           14,
		CycleLengthBounds:       IntRange{Min: 21, Max: 35},
		CycleLengthMean:         28,
		CycleLengthSpread:       3,
		ReferenceDateWindow:     IntRange{Min: 1, Max: 28},
		GlucoseMeansByPhase:     PhaseMeans{Follicular: p.GlucoseMeanFollicular, Luteal: p.GlucoseMeanLuteal},
		GlucoseSpread:           p.GlucoseSpread,
		GlucoseClamp:            FloatRange{Min: p.GlucoseMin, Max: p.GlucoseMax},
		InsulinMeanFollicular:   p.InsulinMeanFollicular,
		InsulinLutealMultiplier: p.InsulinLutealMultiplier,
		InsulinSpread:           p.InsulinSpread,
		InsulinFloor:            p.InsulinFloor,
		SubmissionWindow:        DurationRange{Min: 2 * time.Hour, Max: 90 * 24 * time.Hour},
		Precision:               p.Precision,
	}
}

// SamplerParams maps the config onto sampler parameters.
func (c Config) SamplerParams() sampler.Params {
	return sampler.Params{
		DeliverySplit:           c.DeliverySplit,
		AgeMin:                  c.AgeBounds.Min,
		AgeMax:                  c.AgeBounds.Max,
		GlucoseMeanFollicular:   c.GlucoseMeansByPhase.Follicular,
		GlucoseMeanLuteal:       c.GlucoseMeansByPhase.Luteal,
		GlucoseSpread:           c.GlucoseSpread,
		GlucoseMin:              c.GlucoseClamp.Min,
		GlucoseMax:              c.GlucoseClamp.Max,
		InsulinMeanFollicular:   c.InsulinMeanFollicular,
		InsulinLutealMultiplier: c.InsulinLutealMultiplier,
		InsulinSpread:           c.InsulinSpread,
		InsulinFloor:            c.InsulinFloor,
		Precision:               c.Precision,
	}
}

// PhaseEngine builds the phase engine for the config.
func (c Config) PhaseEngine() (*phase.Engine, error) {
	return phase.New(c.PhaseSplitDay, c.CycleLengthBounds.Min, c.CycleLengthBounds.Max)
}

// Validate reports the first invalid field as a *domain.ConfigError.
func (c Config) Validate() error {
	if err := c.SamplerParams().Validate(); err != nil {
		return err
	}
	if _, err := c.PhaseEngine(); err != nil {
		return err
	}

	switch {
	case math.IsNaN(c.CycleLengthMean) || math.IsInf(c.CycleLengthMean, 0) || c.CycleLengthMean <= 0:
		return domain.NewConfigError("cycle_length_mean", "must be positive, got %v", c.CycleLengthMean)
	case math.IsNaN(c.CycleLengthSpread) || math.IsInf(c.CycleLengthSpread, 0) || c.CycleLengthSpread < 0:
		return domain.NewConfigError("cycle_length_spread", "must be non-negative, got %v", c.CycleLengthSpread)
	case c.ReferenceDateWindow.Min < 0 || c.ReferenceDateWindow.Max < c.ReferenceDateWindow.Min:
		return domain.NewConfigError("reference_date_window", "invalid range [%d, %d]",
			c.ReferenceDateWindow.Min, c.ReferenceDateWindow.Max)
	case c.ReferenceDateWindow.Max > MaxReferenceWindowDays:
		return domain.NewConfigError("reference_date_window", "max %d exceeds %d days",
			c.ReferenceDateWindow.Max, MaxReferenceWindowDays)
	case c.SubmissionWindow.Min < 0 || c.SubmissionWindow.Max < c.SubmissionWindow.Min:
		return domain.NewConfigError("submission_window", "invalid range [%s, %s]",
			c.SubmissionWindow.Min, c.SubmissionWindow.Max)
	}
	return nil
}

// evaluationDay resolves the evaluation date to a UTC midnight.
func (c Config) evaluationDay(now func() time.Time) time.Time {
	t := c.EvaluationDate
	if t.IsZero() {
		t = now()
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
