package clickhouse

import (
	"context"
	"fmt"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// SubjectStore implements storage.SubjectStore using ClickHouse.
type SubjectStore struct {
	conn *Conn
}

// NewSubjectStore creates a new SubjectStore.
func NewSubjectStore(conn *Conn) *SubjectStore {
	return &SubjectStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SubjectStore = (*SubjectStore)(nil)

const subjectColumns = `
	cohort_id, position, subject_id, age, delivery_method, lmp_date, cycle_length,
	cycle_phase, basal_insulin, night_glucose, cycle_response_id, cycle_authored,
	insulin_response_id, insulin_authored
`

// InsertBulk adds rows. Fails entire batch on duplicate (cohort_id, subject_id).
func (s *SubjectStore) InsertBulk(ctx context.Context, rows []*domain.SubjectRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		cohortID  string
		subjectID string
	}
	seen := make(map[key]struct{})
	for _, r := range rows {
		if err := storage.ValidateRow(r); err != nil {
			return err
		}
		k := key{r.CohortID, r.SubjectID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce keys, so check existing rows first
	for _, r := range rows {
		exists, err := s.exists(ctx, r.CohortID, r.SubjectID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO subject_rows (`+subjectColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.CohortID, int32(r.Position), r.SubjectID, int32(r.Age),
			string(r.DeliveryMethod), r.LMPDate, int32(r.CycleLength),
			string(r.CyclePhase), r.BasalInsulin, r.NightGlucose,
			r.CycleResponseID, r.CycleAuthored, r.InsulinResponse, r.InsulinAuthored,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByCohort retrieves all rows of a cohort, ordered by position ASC.
func (s *SubjectStore) GetByCohort(ctx context.Context, cohortID string) ([]*domain.SubjectRow, error) {
	query := `SELECT ` + subjectColumns + `
		FROM subject_rows FINAL
		WHERE cohort_id = ?
		ORDER BY position ASC
	`

	rows, err := s.conn.Query(ctx, query, cohortID)
	if err != nil {
		return nil, fmt.Errorf("query by cohort: %w", err)
	}
	defer rows.Close()

	return scanSubjectRows(rows)
}

// GetByPhase retrieves rows of a cohort in a given phase, ordered by position ASC.
func (s *SubjectStore) GetByPhase(ctx context.Context, cohortID string, phase domain.Phase) ([]*domain.SubjectRow, error) {
	query := `SELECT ` + subjectColumns + `
		FROM subject_rows FINAL
		WHERE cohort_id = ? AND cycle_phase = ?
		ORDER BY position ASC
	`

	rows, err := s.conn.Query(ctx, query, cohortID, string(phase))
	if err != nil {
		return nil, fmt.Errorf("query by phase: %w", err)
	}
	defer rows.Close()

	return scanSubjectRows(rows)
}

// exists checks if a row with the given key exists.
func (s *SubjectStore) exists(ctx context.Context, cohortID, subjectID string) (bool, error) {
	query := `
		SELECT count(*) FROM subject_rows
		WHERE cohort_id = ? AND subject_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, cohortID, subjectID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSubjectRows scans multiple rows.
func scanSubjectRows(rows chRows) ([]*domain.SubjectRow, error) {
	var result []*domain.SubjectRow

	for rows.Next() {
		var r domain.SubjectRow
		var position, age, cycleLength int32
		var delivery, phase string

		err := rows.Scan(
			&r.CohortID, &position, &r.SubjectID, &age,
			&delivery, &r.LMPDate, &cycleLength,
			&phase, &r.BasalInsulin, &r.NightGlucose,
			&r.CycleResponseID, &r.CycleAuthored, &r.InsulinResponse, &r.InsulinAuthored,
		)
		if err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}

		r.Position = int(position)
		r.Age = int(age)
		r.CycleLength = int(cycleLength)
		r.DeliveryMethod = domain.DeliveryMethod(delivery)
		r.CyclePhase = domain.Phase(phase)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject rows: %w", err)
	}

	return result, nil
}
