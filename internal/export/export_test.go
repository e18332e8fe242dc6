package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/domain"
	"synth-cohort/internal/identity"
	"synth-cohort/internal/questionnaire"
)

func writeTestCohort(t *testing.T, size int) (string, *domain.Cohort, *RunManifest) {
	t.Helper()

	cfg := cohort.DefaultConfig()
	cfg.EvaluationDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	c, err := cohort.Generate(size, cfg)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "output")
	m, err := NewWriter(dir).WriteCohort(c, cfg)
	require.NoError(t, err)
	return dir, c, m
}

func TestWriteCohort_Files(t *testing.T) {
	dir, c, m := writeTestCohort(t, 5)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5*3+1)

	assert.Equal(t, 5, m.Size)
	assert.Equal(t, int64(42), m.Seed)
	assert.Equal(t, "2024-03-01", m.EvaluationDate)
	assert.Len(t, m.CohortID, 64)

	for i, s := range c.Subjects {
		assert.Equal(t, s.SubjectID, m.Subjects[i])

		paths, err := SubjectPaths(dir, s.SubjectID)
		require.NoError(t, err)
		for _, p := range []string{paths.Key, paths.Cycle, paths.Insulin} {
			_, err := os.Stat(p)
			assert.NoError(t, err)
		}
	}
}

func TestLoad_ManifestOrder(t *testing.T) {
	dir, c, _ := writeTestCohort(t, 8)

	m, records, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Len(t, records, len(c.Subjects))

	for i, rec := range records {
		s := c.Subjects[i]
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, s.SubjectID, rec.SubjectID)
		assert.Equal(t, s.Credential, rec.Key.Credential())

		cycle, err := questionnaire.ParseCycle(&rec.Cycle)
		require.NoError(t, err)
		assert.Equal(t, s.CycleLength, cycle.CycleLength)
		assert.Equal(t, s.ReferenceDate, cycle.LMPDate)

		insulin, err := questionnaire.ParseInsulin(&rec.Insulin)
		require.NoError(t, err)
		assert.Equal(t, s.NightGlucose, insulin.NightGlucose)
		assert.Equal(t, s.BasalInsulin, insulin.BasalInsulin)
		assert.NotEmpty(t, rec.CycleRaw)
		assert.NotEmpty(t, rec.InsulinRaw)
	}
}

func TestLoad_WithoutManifest(t *testing.T) {
	dir, c, _ := writeTestCohort(t, 4)
	require.NoError(t, os.Remove(filepath.Join(dir, ManifestFile)))

	m, records, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Len(t, records, len(c.Subjects))
}

func TestLoad_IncompleteRecord(t *testing.T) {
	dir, c, _ := writeTestCohort(t, 2)

	paths, err := SubjectPaths(dir, c.Subjects[1].SubjectID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(paths.Insulin))

	_, _, err = Load(dir)
	assert.True(t, errors.Is(err, ErrIncompleteRecord))
}

func TestVerifyKey(t *testing.T) {
	dir, c, _ := writeTestCohort(t, 3)

	key, err := VerifyKey(dir, c.Subjects[2].SubjectID)
	require.NoError(t, err)
	assert.Equal(t, KeyType, key.KeyType)
	assert.Equal(t, 2, key.Index)

	_, err = VerifyKey(dir, "did:nil:abc")
	assert.True(t, errors.Is(err, identity.ErrMalformedDID))

	other, err := identity.NewCredential(make([]byte, identity.SeedSize))
	require.NoError(t, err)
	_, err = VerifyKey(dir, other.SubjectID)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestVerifyKey_Tampered(t *testing.T) {
	dir, c, _ := writeTestCohort(t, 2)
	s := c.Subjects[0]

	paths, err := SubjectPaths(dir, s.SubjectID)
	require.NoError(t, err)

	tampered := KeyFile{SubjectID: s.SubjectID, KeyType: KeyType, Seed: c.Subjects[1].Credential.Seed, PublicKey: s.Credential.PublicKey}
	require.NoError(t, writeJSON(paths.Key, tampered, 0600))

	_, err = VerifyKey(dir, s.SubjectID)
	assert.True(t, errors.Is(err, identity.ErrKeyMismatch))
}

func TestClean(t *testing.T) {
	dir, _, _ := writeTestCohort(t, 1)

	existed, err := Clean(dir)
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	existed, err = Clean(dir)
	require.NoError(t, err)
	assert.False(t, existed)
}
