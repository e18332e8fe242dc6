package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/domain"
	"synth-cohort/internal/idhash"
	"synth-cohort/internal/identity"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/questionnaire"
)

// Writer writes cohorts into a directory.
type Writer struct {
	dir     string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// WriterOption configures Writer.
type WriterOption func(*Writer)

// WithLogger sets the writer logger.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithMetrics sets the writer metrics.
func WithMetrics(m *observability.Metrics) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, opts ...WriterOption) *Writer {
	w := &Writer{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteCohort writes every subject of c and the run manifest.
// cfg is the configuration c was generated with.
func (w *Writer) WriteCohort(c *domain.Cohort, cfg cohort.Config) (*RunManifest, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	cfg.Seed = c.Seed
	cfg.EvaluationDate = c.EvaluationDate

	manifest := &RunManifest{
		CohortID:       idhash.ComputeCohortID(c.Seed, len(c.Subjects), c.EvaluationDate),
		Seed:           c.Seed,
		Size:           len(c.Subjects),
		EvaluationDate: c.EvaluationDate.Format("2006-01-02"),
		Config:         cfg,
		Subjects:       make([]string, 0, len(c.Subjects)),
	}

	files := 0
	for _, s := range c.Subjects {
		if err := w.writeSubject(s); err != nil {
			return nil, fmt.Errorf("write subject %s: %w", s.SubjectID, err)
		}
		manifest.Subjects = append(manifest.Subjects, s.SubjectID)
		files += 3
	}

	if err := writeJSON(filepath.Join(w.dir, ManifestFile), manifest, 0644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	files++

	w.metrics.RecordFilesWritten(files)
	w.logger.Info("cohort exported",
		zap.String("dir", w.dir),
		zap.String("cohort_id", manifest.CohortID),
		zap.Int("subjects", manifest.Size),
		zap.Int("files", files),
	)
	return manifest, nil
}

func (w *Writer) writeSubject(s domain.Subject) error {
	paths, err := SubjectPaths(w.dir, s.SubjectID)
	if err != nil {
		return err
	}

	key := KeyFile{
		SubjectID: s.SubjectID,
		KeyType:   KeyType,
		Seed:      s.Credential.Seed,
		PublicKey: s.Credential.PublicKey,
		Index:     s.Index,
	}
	if err := writeJSON(paths.Key, key, 0600); err != nil {
		return fmt.Errorf("key file: %w", err)
	}
	if err := writeJSON(paths.Cycle, questionnaire.BuildCycle(s), 0644); err != nil {
		return fmt.Errorf("cycle response: %w", err)
	}
	if err := writeJSON(paths.Insulin, questionnaire.BuildInsulin(s), 0644); err != nil {
		return fmt.Errorf("insulin response: %w", err)
	}
	return nil
}

// Credential returns the credential stored in k.
func (k KeyFile) Credential() domain.Credential {
	return domain.Credential{SubjectID: k.SubjectID, Seed: k.Seed, PublicKey: k.PublicKey}
}

// VerifyKey loads the key file for did from dir and verifies it.
func VerifyKey(dir, did string) (*KeyFile, error) {
	paths, err := SubjectPaths(dir, did)
	if err != nil {
		return nil, err
	}
	var key KeyFile
	if err := readJSON(paths.Key, &key); err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if key.SubjectID != did {
		return nil, fmt.Errorf("%w: key file holds %s", identity.ErrKeyMismatch, key.SubjectID)
	}
	if err := identity.Verify(key.Credential()); err != nil {
		return nil, err
	}
	return &key, nil
}

// Clean removes dir and everything in it. It reports whether dir existed.
func Clean(dir string) (bool, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return true, fmt.Errorf("remove %s: %w", dir, err)
	}
	return true, nil
}

func writeJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), perm)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}
