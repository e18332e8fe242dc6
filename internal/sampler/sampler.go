// Package sampler draws subject attributes conditioned on cycle phase.
package sampler

import (
	"math"

	"synth-cohort/internal/domain"
)

// Source is the subset of the random stream the sampler draws from.
type Source interface {
	IntInclusive(lo, hi int) int
	Normal(mu, sigma float64) float64
	Bernoulli(p float64) bool
}

// Attributes are the phase-dependent and independent values drawn for one subject.
type Attributes struct {
	DeliveryMethod domain.DeliveryMethod
	Age            int
	BasalInsulin   float64
	NightGlucose   float64
}

// Sampler draws Attributes with fixed parameters.
type Sampler struct {
	params Params
}

// New validates params and creates a Sampler.
func New(params Params) (*Sampler, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{params: params}, nil
}

// Params returns the sampler parameters.
func (s *Sampler) Params() Params {
	return s.params
}

// Sample draws one subject's attributes for phase.
// Draw order is fixed: delivery, age, insulin, glucose.
func (s *Sampler) Sample(src Source, phase domain.Phase) Attributes {
	p := s.params

	delivery := domain.DeliveryInjection
	if src.Bernoulli(p.DeliverySplit) {
		delivery = domain.DeliveryPump
	}

	age := src.IntInclusive(p.AgeMin, p.AgeMax)

	insulinMean := p.InsulinMeanFollicular
	if phase == domain.PhaseLuteal {
		insulinMean *= p.InsulinLutealMultiplier
	}
	insulin := math.Max(src.Normal(insulinMean, p.InsulinSpread), p.InsulinFloor)

	glucose := src.Normal(p.GlucoseMean(phase), p.GlucoseSpread)
	glucose = math.Min(math.Max(glucose, p.GlucoseMin), p.GlucoseMax)

	return Attributes{
		DeliveryMethod: delivery,
		Age:            age,
		BasalInsulin:   Round(insulin, p.Precision),
		NightGlucose:   Round(glucose, p.Precision),
	}
}

// Round rounds v to the given number of decimals, halves away from zero.
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
