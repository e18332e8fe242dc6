package cohort

import (
	"time"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/phase"
	"synth-cohort/internal/sampler"
)

// Draw is everything drawn or derived for one subject.
type Draw struct {
	Index             int
	Credential        domain.Credential
	ReferenceDate     time.Time
	CycleLength       int
	Phase             phase.Result
	Attributes        sampler.Attributes
	CycleAuthoredAt   time.Time
	InsulinAuthoredAt time.Time
}

// Assemble combines a Draw into a Subject. It performs no draws.
func Assemble(d Draw) domain.Subject {
	return domain.Subject{
		Index:             d.Index,
		SubjectID:         d.Credential.SubjectID,
		Age:               d.Attributes.Age,
		DeliveryMethod:    d.Attributes.DeliveryMethod,
		ReferenceDate:     d.ReferenceDate,
		CycleLength:       d.CycleLength,
		Phase:             d.Phase.Phase,
		DaysElapsed:       d.Phase.DaysElapsed,
		PhaseBoundary:     d.Phase.Boundary,
		NightGlucose:      d.Attributes.NightGlucose,
		BasalInsulin:      d.Attributes.BasalInsulin,
		CycleAuthoredAt:   d.CycleAuthoredAt,
		InsulinAuthoredAt: d.InsulinAuthoredAt,
		Credential:        d.Credential,
	}
}
