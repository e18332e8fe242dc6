package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/export"
)

// runCLI executes the cohort command with args and returns the exit code
// and both output streams.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cohort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGenerate_StatsWritesNoFiles(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")

	code, stdout, stderr := runCLI(t, "--stats", "--quiet", "--output-dir", out, "--as-of", "2024-03-01", "25")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Total Subjects: 25")
	assert.NoDirExists(t, out)
}

func TestGenerate_DefaultSize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")

	code, _, stderr := runCLI(t, "--quiet", "--output-dir", out, "--as-of", "2024-03-01")
	require.Equal(t, 0, code, stderr)

	manifest, err := export.LoadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, cohort.DefaultSize, manifest.Size)
	assert.Len(t, manifest.Subjects, cohort.DefaultSize)
	assert.Equal(t, int64(42), manifest.Seed)
	assert.Equal(t, "2024-03-01", manifest.EvaluationDate)
}

func TestGenerate_SeedOverride(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")

	code, _, stderr := runCLI(t, "--quiet", "--seed", "7", "--output-dir", out, "--as-of", "2024-03-01", "5")
	require.Equal(t, 0, code, stderr)

	manifest, err := export.LoadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, int64(7), manifest.Seed)
	assert.Equal(t, 5, manifest.Size)
}

func TestGenerate_CohortSizeFromConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	cfg := writeConfig(t, "cohort_size: 12\n")

	code, _, stderr := runCLI(t, "--quiet", "--config", cfg, "--output-dir", out, "--as-of", "2024-03-01")
	require.Equal(t, 0, code, stderr)

	manifest, err := export.LoadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, 12, manifest.Size)
}

func TestGenerate_SizeArgumentOverridesConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	cfg := writeConfig(t, "cohort_size: 12\n")

	code, _, stderr := runCLI(t, "--quiet", "--config", cfg, "--output-dir", out, "--as-of", "2024-03-01", "3")
	require.Equal(t, 0, code, stderr)

	manifest, err := export.LoadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, 3, manifest.Size)
}

func TestGenerate_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    func(t *testing.T) []string
		wantErr string
	}{
		{
			name:    "non-integer size",
			args:    func(*testing.T) []string { return []string{"many"} },
			wantErr: `size "many" is not an integer`,
		},
		{
			name:    "bad as-of date",
			args:    func(*testing.T) []string { return []string{"--as-of", "03/01/2024", "5"} },
			wantErr: "--as-of must be YYYY-MM-DD",
		},
		{
			name:    "negative size",
			args:    func(*testing.T) []string { return []string{"--", "-3"} },
			wantErr: "invalid configuration: cohort_size",
		},
		{
			name: "delivery split out of range",
			args: func(t *testing.T) []string {
				return []string{"--config", writeConfig(t, "generation:\n  delivery_split: 1.5\n"), "5"}
			},
			wantErr: "invalid configuration: delivery_split",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "output")
			args := append([]string{"--quiet", "--output-dir", out}, tt.args(t)...)

			code, stdout, stderr := runCLI(t, args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.wantErr)
			assert.Empty(t, stdout)
			assert.NoDirExists(t, out)
		})
	}
}

func TestClean(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")

	code, _, stderr := runCLI(t, "--quiet", "--output-dir", out, "--as-of", "2024-03-01", "4")
	require.Equal(t, 0, code, stderr)
	require.DirExists(t, out)

	code, stdout, stderr := runCLI(t, "clean", "--output-dir", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Removed "+out)
	assert.NoDirExists(t, out)

	code, stdout, _ = runCLI(t, "clean", "--output-dir", out)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Nothing to clean")
}

func TestVerifyAndVerifyKey(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")

	code, _, stderr := runCLI(t, "--quiet", "--output-dir", out, "--as-of", "2024-03-01", "6")
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := runCLI(t, "verify", "--quiet", "--output-dir", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Verified 6 subjects: 6 matched, 0 divergent")

	manifest, err := export.LoadManifest(out)
	require.NoError(t, err)

	code, stdout, stderr = runCLI(t, "verify-key", "--output-dir", out, manifest.Subjects[0])
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "OK  "+manifest.Subjects[0])

	code, _, stderr = runCLI(t, "verify-key", "--output-dir", out, "did:key:zUnknown")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "did:key:zUnknown")
}
