package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
	"synth-cohort/internal/storage/migrations"
	"synth-cohort/internal/storage/postgres"
)

func testDocument(id, subject, schema string) *domain.StoredDocument {
	return &domain.StoredDocument{
		DocumentID:   id,
		CollectionID: "collection-1",
		SubjectID:    subject,
		Schema:       schema,
		Body:         json.RawMessage(`{"resourceType": "QuestionnaireResponse", "status": "completed"}`),
		StoredAt:     1700000000000,
	}
}

func TestDocumentStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDocumentStore(pool)
	ctx := context.Background()

	doc := testDocument("doc-1", "did:key:zA", domain.SchemaCycle)
	require.NoError(t, store.Put(ctx, doc))

	got, err := store.Get(ctx, "collection-1", "doc-1")
	require.NoError(t, err)

	assert.Equal(t, doc.DocumentID, got.DocumentID)
	assert.Equal(t, doc.CollectionID, got.CollectionID)
	assert.Equal(t, doc.SubjectID, got.SubjectID)
	assert.Equal(t, doc.Schema, got.Schema)
	assert.Equal(t, doc.StoredAt, got.StoredAt)
	assert.JSONEq(t, string(doc.Body), string(got.Body))
}

func TestDocumentStore_PutDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDocumentStore(pool)
	ctx := context.Background()

	doc := testDocument("doc-dup", "did:key:zA", domain.SchemaCycle)
	require.NoError(t, store.Put(ctx, doc))

	err := store.Put(ctx, doc)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDocumentStore(pool)

	_, err := store.Get(context.Background(), "collection-1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentStore_ListBySubjectAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewDocumentStore(pool)
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

func TestRunPostgresMigrations_Idempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, migrations.RunPostgresMigrations(context.Background(), pool))
}
