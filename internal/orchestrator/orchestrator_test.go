package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/domain"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/storage/memory"
)

func testConfig() cohort.Config {
	cfg := cohort.DefaultConfig()
	cfg.EvaluationDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	return cfg
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocumentStore()
	rows := memory.NewSubjectStore()
	metrics := observability.NewMetrics("", prometheus.NewRegistry())

	orch := New(Options{
		Config:        testConfig(),
		Size:          20,
		OutputDir:     filepath.Join(t.TempDir(), "output"),
		DocumentStore: docs,
		CollectionID:  "col-1",
		Destination:   "memory",
		SubjectStore:  rows,
		Logger:        zaptest.NewLogger(t),
		Metrics:       metrics,
	})

	result, err := orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 20, result.SubjectsGenerated)
	assert.NotEmpty(t, result.CohortID)

	require.NotNil(t, result.Verification)
	assert.Equal(t, 20, result.Verification.Matched)

	require.NotNil(t, result.Upload)
	assert.True(t, result.Upload.Succeeded())
	assert.Equal(t, "memory", result.Upload.Destination)
	n, err := docs.Count(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	stored, err := rows.GetByCohort(ctx, result.CohortID)
	require.NoError(t, err)
	assert.Len(t, stored, 20)

	require.NotNil(t, result.Report)
	assert.Equal(t, 20, result.Report.Summary.Total)
	assert.Equal(t, result.CohortID, result.Report.CohortID)

	assert.Equal(t, 20.0, testutil.ToFloat64(metrics.RowsStored))
}

func TestOrchestrator_Rerun(t *testing.T) {
	ctx := context.Background()
	opts := Options{
		Config:        testConfig(),
		Size:          6,
		OutputDir:     filepath.Join(t.TempDir(), "output"),
		DocumentStore: memory.NewDocumentStore(),
		CollectionID:  "col-1",
		SubjectStore:  memory.NewSubjectStore(),
	}

	first, err := New(opts).Run(ctx)
	require.NoError(t, err)

	// Same seed, same stores: uploads and rows already exist.
	second, err := New(opts).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.CohortID, second.CohortID)
	assert.True(t, second.Upload.Succeeded())
	assert.Equal(t, first.Upload.Uploads, second.Upload.Uploads)
	assert.Equal(t, first.Report.Summary, second.Report.Summary)
}

func TestOrchestrator_NoDocumentStore(t *testing.T) {
	result, err := New(Options{
		Config:           testConfig(),
		Size:             5,
		OutputDir:        filepath.Join(t.TempDir(), "output"),
		SkipVerification: true,
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, result.Upload)
	assert.Nil(t, result.Verification)
	assert.Equal(t, 5, result.Report.Summary.Total)
}

func TestOrchestrator_EmptyCohort(t *testing.T) {
	result, err := New(Options{
		Config:    testConfig(),
		Size:      0,
		OutputDir: filepath.Join(t.TempDir(), "output"),
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.SubjectsGenerated)
	assert.Zero(t, result.Report.Summary.Total)
	assert.False(t, result.Report.AllChecksPassed)
}

func TestOrchestrator_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DeliverySplit = 1.5
	dir := filepath.Join(t.TempDir(), "output")

	_, err := New(Options{Config: cfg, Size: 5, OutputDir: dir}).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	assert.NoDirExists(t, dir)
}
