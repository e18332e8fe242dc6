package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// DocumentStore implements storage.DocumentStore using PostgreSQL.
type DocumentStore struct {
	pool *Pool
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(pool *Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DocumentStore = (*DocumentStore)(nil)

// Put adds a new document. Returns ErrDuplicateKey if (collection_id, document_id) exists.
func (s *DocumentStore) Put(ctx context.Context, doc *domain.StoredDocument) error {
	if err := storage.ValidateDocument(doc); err != nil {
		return err
	}

	query := `
		INSERT INTO stored_documents (
			collection_id, document_id, subject_id, schema_tag, body, stored_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		doc.CollectionID,
		doc.DocumentID,
		doc.SubjectID,
		doc.Schema,
		[]byte(doc.Body),
		doc.StoredAt,
	)
	if err != nil {
		return translate("insert document", err)
	}
	return nil
}

// Get retrieves a document. Returns ErrNotFound if not exists.
func (s *DocumentStore) Get(ctx context.Context, collectionID, documentID string) (*domain.StoredDocument, error) {
	query := `
		SELECT collection_id, document_id, subject_id, schema_tag, body, stored_at
		FROM stored_documents
		WHERE collection_id = $1 AND document_id = $2
	`

	doc, err := scanDocument(s.pool.QueryRow(ctx, query, collectionID, documentID))
	if err != nil {
		return nil, translate("get document", err)
	}
	return doc, nil
}

// ListBySubject retrieves a subject's documents, ordered by schema then document_id.
func (s *DocumentStore) ListBySubject(ctx context.Context, collectionID, subjectID string) ([]*domain.StoredDocument, error) {
	query := `
		SELECT collection_id, document_id, subject_id, schema_tag, body, stored_at
		FROM stored_documents
		WHERE collection_id = $1 AND subject_id = $2
		ORDER BY schema_tag ASC, document_id ASC
	`

	rows, err := s.pool.Query(ctx, query, collectionID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query documents by subject: %w", err)
	}
	defer rows.Close()

	var docs []*domain.StoredDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of documents in a collection.
func (s *DocumentStore) Count(ctx context.Context, collectionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM stored_documents WHERE collection_id = $1`,
		collectionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// scanDocument scans a single row.
func scanDocument(row pgx.Row) (*domain.StoredDocument, error) {
	var doc domain.StoredDocument
	var body []byte

	err := row.Scan(
		&doc.CollectionID,
		&doc.DocumentID,
		&doc.SubjectID,
		&doc.Schema,
		&body,
		&doc.StoredAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Body = body
	return &doc, nil
}
