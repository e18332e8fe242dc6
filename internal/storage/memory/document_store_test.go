package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

func testDocument(id, subject, schema string) *domain.StoredDocument {
	return &domain.StoredDocument{
		DocumentID:   id,
		CollectionID: "collection-1",
		SubjectID:    subject,
		Schema:       schema,
		Body:         json.RawMessage(`{"resourceType":"QuestionnaireResponse"}`),
		StoredAt:     1700000000000,
	}
}

func TestDocumentStore_PutAndGet(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := testDocument("doc-1", "did:key:zA", domain.SchemaCycle)
	require.NoError(t, store.Put(ctx, doc))

	got, err := store.Get(ctx, "collection-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDocumentStore_PutDuplicate(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := testDocument("doc-1", "did:key:zA", domain.SchemaCycle)
	require.NoError(t, store.Put(ctx, doc))

	err := store.Put(ctx, doc)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same id in another collection is a different key
	other := testDocument("doc-1", "did:key:zA", domain.SchemaCycle)
	other.CollectionID = "collection-2"
	assert.NoError(t, store.Put(ctx, other))
}

func TestDocumentStore_InvalidInput(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, nil), storage.ErrInvalidInput)

	noID := testDocument("", "did:key:zA", domain.SchemaCycle)
	assert.ErrorIs(t, store.Put(ctx, noID), storage.ErrInvalidInput)

	noBody := testDocument("doc-1", "did:key:zA", domain.SchemaCycle)
	noBody.Body = nil
	assert.ErrorIs(t, store.Put(ctx, noBody), storage.ErrInvalidInput)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	store := NewDocumentStore()

	_, err := store.Get(context.Background(), "collection-1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentStore_ListBySubject(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testDocument("b", "did:key:zA", domain.SchemaInsulin)))
	require.NoError(t, store.Put(ctx, testDocument("a", "did:key:zA", domain.SchemaCycle)))
	require.NoError(t, store.Put(ctx, testDocument("c", "did:key:zB", domain.SchemaCycle)))

	docs, err := store.ListBySubject(ctx, "collection-1", "did:key:zA")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, domain.SchemaInsulin, docs[0].Schema)
	assert.Equal(t, domain.SchemaCycle, docs[1].Schema)

	n, err := store.Count(ctx, "collection-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDocumentStore_ReturnsCopies(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := testDocument("doc-1", "did:key:zA", domain.SchemaCycle)
	require.NoError(t, store.Put(ctx, doc))
	doc.Body[0] = 'X'

	got, err := store.Get(ctx, "collection-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), got.Body[0])

	got.SubjectID = "mutated"
	again, err := store.Get(ctx, "collection-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "did:key:zA", again.SubjectID)
}
