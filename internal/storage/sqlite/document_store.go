// Package sqlite stores uploaded documents in a single-file SQLite database.
// It is the default local destination when no PostgreSQL DSN is configured.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS stored_documents (
	collection_id TEXT NOT NULL,
	document_id   TEXT NOT NULL,
	subject_id    TEXT NOT NULL,
	schema_name   TEXT NOT NULL,
	body          BLOB NOT NULL,
	stored_at     INTEGER NOT NULL,
	PRIMARY KEY (collection_id, document_id)
)`

// DocumentStore implements storage.DocumentStore on SQLite.
type DocumentStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ storage.DocumentStore = (*DocumentStore)(nil)

// Open opens (creating if needed) the database at path and ensures the table exists.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DocumentStore, error) {
	if path == "" {
		path = "documents.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create stored_documents table: %w", err)
	}
	return &DocumentStore{db: db}, nil
}

// Close releases the database handle.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

// Put adds a new document. Returns ErrDuplicateKey if (collection_id, document_id) exists.
func (s *DocumentStore) Put(ctx context.Context, doc *domain.StoredDocument) error {
	if err := storage.ValidateDocument(doc); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stored_documents (collection_id, document_id, subject_id, schema_name, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection_id, document_id) DO NOTHING
	`, doc.CollectionID, doc.DocumentID, doc.SubjectID, doc.Schema, []byte(doc.Body), doc.StoredAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// Get retrieves a document. Returns ErrNotFound if not exists.
func (s *DocumentStore) Get(ctx context.Context, collectionID, documentID string) (*domain.StoredDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection_id, document_id, subject_id, schema_name, body, stored_at
		FROM stored_documents
		WHERE collection_id = ? AND document_id = ?
	`, collectionID, documentID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListBySubject retrieves a subject's documents, ordered by schema then document_id.
func (s *DocumentStore) ListBySubject(ctx context.Context, collectionID, subjectID string) ([]*domain.StoredDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, document_id, subject_id, schema_name, body, stored_at
		FROM stored_documents
		WHERE collection_id = ? AND subject_id = ?
		ORDER BY schema_name ASC, document_id ASC
	`, collectionID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.StoredDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

// Count returns the number of documents in a collection.
func (s *DocumentStore) Count(ctx context.Context, collectionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stored_documents WHERE collection_id = ?`, collectionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.StoredDocument, error) {
	var doc domain.StoredDocument
	var body []byte
	if err := row.Scan(&doc.CollectionID, &doc.DocumentID, &doc.SubjectID, &doc.Schema, &body, &doc.StoredAt); err != nil {
		return nil, err
	}
	doc.Body = body
	return &doc, nil
}
