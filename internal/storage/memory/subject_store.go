package memory

import (
	"context"
	"sort"
	"sync"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// SubjectStore is an in-memory implementation of storage.SubjectStore.
type SubjectStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.SubjectRow // cohort_id -> subject_id -> row
}

// NewSubjectStore creates a new in-memory subject row store.
func NewSubjectStore() *SubjectStore {
	return &SubjectStore{
		data: make(map[string]map[string]*domain.SubjectRow),
	}
}

// Compile-time interface check.
var _ storage.SubjectStore = (*SubjectStore)(nil)

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
func (s *SubjectStore) InsertBulk(_ context.Context, rows []*domain.SubjectRow) error {
	for _, r := range rows {
		if err := storage.ValidateRow(r); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check duplicates against stored rows and within the batch
	seen := make(map[[2]string]struct{}, len(rows))
	for _, r := range rows {
		key := [2]string{r.CohortID, r.SubjectID}
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		if _, exists := s.data[r.CohortID][r.SubjectID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	for _, r := range rows {
		if s.data[r.CohortID] == nil {
			s.data[r.CohortID] = make(map[string]*domain.SubjectRow)
		}
		rowCopy := *r
		s.data[r.CohortID][r.SubjectID] = &rowCopy
	}
	return nil
}

// GetByCohort retrieves all rows of a cohort, ordered by position ASC.
func (s *SubjectStore) GetByCohort(_ context.Context, cohortID string) ([]*domain.SubjectRow, error) {
	return s.filter(cohortID, func(*domain.SubjectRow) bool { return true }), nil
}

// GetByPhase retrieves rows of a cohort in a given phase, ordered by position ASC.
func (s *SubjectStore) GetByPhase(_ context.Context, cohortID string, phase domain.Phase) ([]*domain.SubjectRow, error) {
	return s.filter(cohortID, func(r *domain.SubjectRow) bool { return r.CyclePhase == phase }), nil
}

func (s *SubjectStore) filter(cohortID string, keep func(*domain.SubjectRow) bool) []*domain.SubjectRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SubjectRow
	for _, r := range s.data[cohortID] {
		if keep(r) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result
}
