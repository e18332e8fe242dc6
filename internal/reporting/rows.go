package reporting

import (
	"fmt"
	"time"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/export"
	"synth-cohort/internal/phase"
	"synth-cohort/internal/questionnaire"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = time.RFC3339
)

// RowsFromRecords flattens exported records into analytics rows. The phase is
// recomputed from the answered LMP date and cycle length for evaluation, so
// rows from an old run still reflect that run's evaluation date.
func RowsFromRecords(cohortID string, records []export.Record, evaluation time.Time, engine *phase.Engine) ([]*domain.SubjectRow, error) {
	rows := make([]*domain.SubjectRow, 0, len(records))
	for i := range records {
		rec := &records[i]

		cycle, err := questionnaire.ParseCycle(&rec.Cycle)
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", rec.SubjectID, err)
		}
		insulin, err := questionnaire.ParseInsulin(&rec.Insulin)
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", rec.SubjectID, err)
		}
		if cycle.SubjectID != rec.SubjectID || insulin.SubjectID != rec.SubjectID {
			return nil, fmt.Errorf("subject %s: %w: response subject mismatch", rec.SubjectID, questionnaire.ErrMalformedResponse)
		}

		res, err := engine.Compute(cycle.LMPDate, evaluation, cycle.CycleLength)
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", rec.SubjectID, err)
		}

		rows = append(rows, &domain.SubjectRow{
			CohortID:        cohortID,
			Position:        i,
			SubjectID:       rec.SubjectID,
			Age:             insulin.Age,
			DeliveryMethod:  insulin.DeliveryMethod,
			LMPDate:         cycle.LMPDate.Format(dateLayout),
			CycleLength:     cycle.CycleLength,
			CyclePhase:      res.Phase,
			BasalInsulin:    insulin.BasalInsulin,
			NightGlucose:    insulin.NightGlucose,
			CycleResponseID: cycle.ResponseID,
			CycleAuthored:   cycle.Authored.UTC().Format(stampLayout),
			InsulinResponse: insulin.ResponseID,
			InsulinAuthored: insulin.Authored.UTC().Format(stampLayout),
		})
	}
	return rows, nil
}
