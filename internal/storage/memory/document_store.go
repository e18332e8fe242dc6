package memory

import (
	"context"
	"sort"
	"sync"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

type documentKey struct {
	collectionID string
	documentID   string
}

// DocumentStore is an in-memory implementation of storage.DocumentStore.
type DocumentStore struct {
	mu   sync.RWMutex
	data map[documentKey]*domain.StoredDocument
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		data: make(map[documentKey]*domain.StoredDocument),
	}
}

// Compile-time interface check.
var _ storage.DocumentStore = (*DocumentStore)(nil)

// Put adds a new document. Returns ErrDuplicateKey if (collection_id, document_id) exists.
func (s *DocumentStore) Put(_ context.Context, doc *domain.StoredDocument) error {
	if err := storage.ValidateDocument(doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := documentKey{doc.CollectionID, doc.DocumentID}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copyDocument(doc)
	return nil
}

// Get retrieves a document. Returns ErrNotFound if not exists.
func (s *DocumentStore) Get(_ context.Context, collectionID, documentID string) (*domain.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.data[documentKey{collectionID, documentID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyDocument(doc), nil
}

// ListBySubject retrieves a subject's documents, ordered by schema then document_id.
func (s *DocumentStore) ListBySubject(_ context.Context, collectionID, subjectID string) ([]*domain.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StoredDocument
	for key, doc := range s.data {
		if key.collectionID == collectionID && doc.SubjectID == subjectID {
			result = append(result, copyDocument(doc))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Schema != result[j].Schema {
			return result[i].Schema < result[j].Schema
		}
		return result[i].DocumentID < result[j].DocumentID
	})
	return result, nil
}

// Count returns the number of documents in a collection.
func (s *DocumentStore) Count(_ context.Context, collectionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.data {
		if key.collectionID == collectionID {
			n++
		}
	}
	return n, nil
}

func copyDocument(doc *domain.StoredDocument) *domain.StoredDocument {
	c := *doc
	c.Body = append([]byte(nil), doc.Body...)
	return &c
}
