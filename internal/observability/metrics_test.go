package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordSubject("luteal")
	m.RecordSubject("luteal")
	m.RecordSubject("follicular")
	m.RecordGeneration("ok", 0.01, 42)
	m.RecordFilesWritten(3)
	m.RecordDocumentUploaded("flo-cycle-v2")
	m.RecordUpload("memory", 0.2, errors.New("boom"))
	m.RecordUpload("memory", 0.1, nil)
	m.RecordRowsStored(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubjectsGenerated.WithLabelValues("luteal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubjectsGenerated.WithLabelValues("follicular")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRuns.WithLabelValues("ok")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.RandomDraws))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsUploaded.WithLabelValues("flo-cycle-v2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadErrors.WithLabelValues("memory")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsStored))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSubject("luteal")
		m.RecordGeneration("ok", 1, 1)
		m.RecordFilesWritten(1)
		m.RecordDocumentUploaded("x")
		m.RecordUpload("x", 1, nil)
		m.RecordRPCLatency("x", 1)
		m.RecordRowsStored(1)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("", reg)
	m.RecordSubject("follicular")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `synth_cohort_generation_subjects_total{phase="follicular"} 1`))
}
