package questionnaire

import (
	"fmt"
	"time"

	"synth-cohort/internal/domain"
)

// CycleAnswers are the values read from a cycle response.
type CycleAnswers struct {
	SubjectID   string
	ResponseID  string
	Authored    time.Time
	LMPDate     time.Time
	CycleLength int
}

// InsulinAnswers are the values read from an insulin response.
type InsulinAnswers struct {
	SubjectID      string
	ResponseID     string
	Authored       time.Time
	DeliveryMethod domain.DeliveryMethod
	BasalInsulin   float64
	NightGlucose   float64
	Age            int
}

// ParseCycle reads the answers of a cycle response.
func ParseCycle(r *Response) (CycleAnswers, error) {
	if err := r.check(CycleQuestionnaireID); err != nil {
		return CycleAnswers{}, err
	}
	authored, err := r.AuthoredAt()
	if err != nil {
		return CycleAnswers{}, err
	}

	lmp, err := r.answer(LinkLMP)
	if err != nil {
		return CycleAnswers{}, err
	}
	lmpDate, err := time.Parse(dateLayout, lmp.ValueDate)
	if err != nil {
		return CycleAnswers{}, fmt.Errorf("%w: item %s: %v", ErrMalformedResponse, LinkLMP, err)
	}

	cycle, err := r.integer(LinkCycleLength)
	if err != nil {
		return CycleAnswers{}, err
	}

	return CycleAnswers{
		SubjectID:   r.Subject.Reference,
		ResponseID:  r.ID,
		Authored:    authored,
		LMPDate:     lmpDate,
		CycleLength: cycle,
	}, nil
}

// ParseInsulin reads the answers of an insulin response.
func ParseInsulin(r *Response) (InsulinAnswers, error) {
	if err := r.check(InsulinQuestionnaireID); err != nil {
		return InsulinAnswers{}, err
	}
	authored, err := r.AuthoredAt()
	if err != nil {
		return InsulinAnswers{}, err
	}

	delivery, err := r.answer(LinkDeliveryMethod)
	if err != nil {
		return InsulinAnswers{}, err
	}
	method := domain.DeliveryMethod(delivery.ValueString)
	if !method.IsValid() {
		return InsulinAnswers{}, fmt.Errorf("%w: unknown delivery method %q", ErrMalformedResponse, delivery.ValueString)
	}

	basal, err := r.decimal(LinkBasalDose)
	if err != nil {
		return InsulinAnswers{}, err
	}
	glucose, err := r.decimal(LinkNightGlucose)
	if err != nil {
		return InsulinAnswers{}, err
	}
	age, err := r.integer(LinkAge)
	if err != nil {
		return InsulinAnswers{}, err
	}

	return InsulinAnswers{
		SubjectID:      r.Subject.Reference,
		ResponseID:     r.ID,
		Authored:       authored,
		DeliveryMethod: method,
		BasalInsulin:   basal,
		NightGlucose:   glucose,
		Age:            age,
	}, nil
}
