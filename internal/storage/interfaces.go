package storage

import (
	"context"

	"synth-cohort/internal/domain"
)

// DocumentStore provides access to uploaded questionnaire documents.
type DocumentStore interface {
	// Put adds a new document. Returns ErrDuplicateKey if (collection_id, document_id) exists.
	Put(ctx context.Context, doc *domain.StoredDocument) error

	// Get retrieves a document. Returns ErrNotFound if not exists.
	Get(ctx context.Context, collectionID, documentID string) (*domain.StoredDocument, error)

	// ListBySubject retrieves a subject's documents in a collection, ordered by schema then document_id.
	ListBySubject(ctx context.Context, collectionID, subjectID string) ([]*domain.StoredDocument, error)

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collectionID string) (int, error)
}

// SubjectStore provides access to flat analytics rows.
type SubjectStore interface {
	// InsertBulk adds rows for one or more cohorts. Fails entire batch on any duplicate (cohort_id, subject_id).
	InsertBulk(ctx context.Context, rows []*domain.SubjectRow) error

	// GetByCohort retrieves all rows of a cohort, ordered by position ASC.
	GetByCohort(ctx context.Context, cohortID string) ([]*domain.SubjectRow, error)

	// GetByPhase retrieves rows of a cohort in a given phase, ordered by position ASC.
	GetByPhase(ctx context.Context, cohortID string, phase domain.Phase) ([]*domain.SubjectRow, error)
}

// ValidateDocument checks the fields every store requires.
func ValidateDocument(doc *domain.StoredDocument) error {
	if doc == nil || doc.CollectionID == "" || doc.DocumentID == "" || doc.SubjectID == "" || len(doc.Body) == 0 {
		return ErrInvalidInput
	}
	return nil
}

// ValidateRow checks the fields every store requires.
func ValidateRow(row *domain.SubjectRow) error {
	if row == nil || row.CohortID == "" || row.SubjectID == "" {
		return ErrInvalidInput
	}
	return nil
}
