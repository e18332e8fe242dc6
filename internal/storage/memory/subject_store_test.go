package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

func testRow(cohort string, pos int, subject string, phase domain.Phase) *domain.SubjectRow {
	return &domain.SubjectRow{
		CohortID:       cohort,
		Position:       pos,
		SubjectID:      subject,
		Age:            30,
		DeliveryMethod: domain.DeliveryPump,
		LMPDate:        "2024-02-12",
		CycleLength:    28,
		CyclePhase:     phase,
		BasalInsulin:   14.2,
		NightGlucose:   121.3,
	}
}

func TestSubjectStore_InsertBulkAndGet(t *testing.T) {
	store := NewSubjectStore()
	ctx := context.Background()

	rows := []*domain.SubjectRow{
		testRow("c1", 2, "s2", domain.PhaseLuteal),
		testRow("c1", 0, "s0", domain.PhaseFollicular),
		testRow("c1", 1, "s1", domain.PhaseLuteal),
		testRow("c2", 0, "s0", domain.PhaseFollicular),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByCohort(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "s0", got[0].SubjectID)
	assert.Equal(t, "s1", got[1].SubjectID)
	assert.Equal(t, "s2", got[2].SubjectID)

	luteal, err := store.GetByPhase(ctx, "c1", domain.PhaseLuteal)
	require.NoError(t, err)
	require.Len(t, luteal, 2)
	assert.Equal(t, "s1", luteal[0].SubjectID)
}

func TestSubjectStore_InsertBulkDuplicate(t *testing.T) {
	store := NewSubjectStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.SubjectRow{testRow("c1", 0, "s0", domain.PhaseLuteal)}))

	// Batch with one existing row inserts nothing
	err := store.InsertBulk(ctx, []*domain.SubjectRow{
		testRow("c1", 1, "s1", domain.PhaseLuteal),
		testRow("c1", 0, "s0", domain.PhaseLuteal),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByCohort(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Duplicate within a batch
	err = store.InsertBulk(ctx, []*domain.SubjectRow{
		testRow("c3", 0, "s0", domain.PhaseLuteal),
		testRow("c3", 1, "s0", domain.PhaseLuteal),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSubjectStore_InvalidInput(t *testing.T) {
	store := NewSubjectStore()

	err := store.InsertBulk(context.Background(), []*domain.SubjectRow{testRow("", 0, "s0", domain.PhaseLuteal)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSubjectStore_EmptyCohort(t *testing.T) {
	store := NewSubjectStore()

	got, err := store.GetByCohort(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
