package questionnaire

import (
	"time"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/idhash"
)

// BuildCycle builds the cycle questionnaire response for s.
func BuildCycle(s domain.Subject) Response {
	return Response{
		ResourceType:  resourceType,
		ID:            idhash.ComputeResponseID(s.SubjectID, CycleQuestionnaireID),
		Questionnaire: CycleQuestionnaireID,
		Status:        statusCompleted,
		Subject:       Reference{Reference: s.SubjectID},
		Authored:      s.CycleAuthoredAt.UTC().Format(time.RFC3339),
		Item: []Item{
			{
				LinkID: LinkLMP,
				Text:   "When did your last menstrual period begin?",
				Answer: []Answer{{ValueDate: s.ReferenceDate.UTC().Format(dateLayout)}},
			},
			{
				LinkID: LinkCycleLength,
				Text:   "What is your typical cycle length (days)?",
				Answer: intAnswer(s.CycleLength),
			},
		},
	}
}

// BuildInsulin builds the insulin and CGM questionnaire response for s.
func BuildInsulin(s domain.Subject) Response {
	return Response{
		ResourceType:  resourceType,
		ID:            idhash.ComputeResponseID(s.SubjectID, InsulinQuestionnaireID),
		Questionnaire: InsulinQuestionnaireID,
		Status:        statusCompleted,
		Subject:       Reference{Reference: s.SubjectID},
		Authored:      s.InsulinAuthoredAt.UTC().Format(time.RFC3339),
		Item: []Item{
			{
				LinkID: LinkDeliveryMethod,
				Text:   "Which insulin delivery method do you use?",
				Answer: []Answer{{ValueString: s.DeliveryMethod.String()}},
			},
			{
				LinkID: LinkBasalDose,
				Text:   "What is your total basal insulin over 24 hours (units/day)?",
				Answer: decimalAnswer(s.BasalInsulin),
			},
			{
				LinkID: LinkNightGlucose,
				Text:   "What was your average CGM glucose from 00:00-06:00 (nighttime) over your usual reporting period?",
				Answer: decimalAnswer(s.NightGlucose),
			},
			{
				LinkID: LinkAge,
				Text:   "Age (years)",
				Answer: intAnswer(s.Age),
			},
		},
	}
}
