package sampler

import (
	"math"

	"synth-cohort/internal/domain"
)

// MaxAge is the highest accepted upper age bound.
const MaxAge = 150

// Params configures attribute distributions.
type Params struct {
	DeliverySplit float64 // probability of DeliveryPump

	AgeMin int
	AgeMax int

	GlucoseMeanFollicular float64
	GlucoseMeanLuteal     float64
	GlucoseSpread         float64
	GlucoseMin            float64
	GlucoseMax            float64

	InsulinMeanFollicular   float64
	InsulinLutealMultiplier float64
	InsulinSpread           float64
	InsulinFloor            float64

	Precision int // decimals kept after sampling
}

// DefaultParams returns the distributions used for the reference cohort.
func DefaultParams() Params {
	return Params{
		DeliverySplit:           0.65,
		AgeMin:                  18,
		AgeMax:                  45,
		GlucoseMeanFollicular:   118,
		GlucoseMeanLuteal:       126,
		GlucoseSpread:           12,
		GlucoseMin:              70,
		GlucoseMax:              250,
		InsulinMeanFollicular:   14.0,
		InsulinLutealMultiplier: 1.14,
		InsulinSpread:           3.0,
		InsulinFloor:            5.0,
		Precision:               1,
	}
}

// GlucoseMean returns the glucose mean for phase.
func (p Params) GlucoseMean(phase domain.Phase) float64 {
	if phase == domain.PhaseLuteal {
		return p.GlucoseMeanLuteal
	}
	return p.GlucoseMeanFollicular
}

// Validate reports the first out-of-range parameter.
func (p Params) Validate() error {
	switch {
	case !(p.DeliverySplit > 0 && p.DeliverySplit <= 1):
		return domain.NewConfigError("delivery_split", "must be in (0, 1], got %v", p.DeliverySplit)
	case p.AgeMin < 0 || p.AgeMax < p.AgeMin:
		return domain.NewConfigError("age_bounds", "invalid range [%d, %d]", p.AgeMin, p.AgeMax)
	case p.AgeMax > MaxAge:
		return domain.NewConfigError("age_bounds", "max %d exceeds %d", p.AgeMax, MaxAge)
	case !positive(p.GlucoseMeanFollicular) || !positive(p.GlucoseMeanLuteal):
		return domain.NewConfigError("glucose_means_by_phase", "means must be positive")
	case p.GlucoseMeanLuteal <= p.GlucoseMeanFollicular:
		return domain.NewConfigError("glucose_means_by_phase", "luteal mean %v must exceed follicular mean %v",
			p.GlucoseMeanLuteal, p.GlucoseMeanFollicular)
	case !positive(p.GlucoseSpread):
		return domain.NewConfigError("glucose_spread", "must be positive, got %v", p.GlucoseSpread)
	case math.IsNaN(p.GlucoseMin) || math.IsNaN(p.GlucoseMax) || p.GlucoseMin < 0 || p.GlucoseMax <= p.GlucoseMin:
		return domain.NewConfigError("glucose_clamp", "invalid range [%v, %v]", p.GlucoseMin, p.GlucoseMax)
	case !positive(p.InsulinMeanFollicular):
		return domain.NewConfigError("insulin_mean_phase_a", "must be positive, got %v", p.InsulinMeanFollicular)
	case !(p.InsulinLutealMultiplier > 1) || math.IsInf(p.InsulinLutealMultiplier, 0):
		return domain.NewConfigError("insulin_luteal_multiplier", "must be greater than 1, got %v", p.InsulinLutealMultiplier)
	case !positive(p.InsulinSpread):
		return domain.NewConfigError("insulin_spread", "must be positive, got %v", p.InsulinSpread)
	case math.IsNaN(p.InsulinFloor) || p.InsulinFloor < 0:
		return domain.NewConfigError("insulin_floor", "must be non-negative, got %v", p.InsulinFloor)
	case p.Precision < 0 || p.Precision > 6:
		return domain.NewConfigError("precision", "must be in [0, 6], got %d", p.Precision)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
