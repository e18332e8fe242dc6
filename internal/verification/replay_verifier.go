package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/domain"
	"synth-cohort/internal/export"
	"synth-cohort/internal/phase"
	"synth-cohort/internal/questionnaire"
)

var (
	// ErrSubjectNotFound is returned when a subject is not part of the export.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrNoManifest is returned when the output directory has no run manifest.
	ErrNoManifest = errors.New("run manifest missing")
)

// ReplayVerifier implements Verifier over an output directory.
type ReplayVerifier struct {
	dir    string
	logger *zap.Logger
}

// Option configures a ReplayVerifier.
type Option func(*ReplayVerifier)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *ReplayVerifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewReplayVerifier creates a verifier for the cohort exported to dir.
func NewReplayVerifier(dir string, opts ...Option) *ReplayVerifier {
	v := &ReplayVerifier{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// replay holds what both verification entry points need.
type replay struct {
	manifest *export.RunManifest
	records  []export.Record
	engine   *phase.Engine
	subjects []domain.Subject
}

func (v *ReplayVerifier) load() (*replay, error) {
	manifest, records, err := export.Load(v.dir)
	if err != nil {
		return nil, fmt.Errorf("load export: %w", err)
	}
	if manifest == nil {
		return nil, ErrNoManifest
	}

	engine, err := manifest.Config.PhaseEngine()
	if err != nil {
		return nil, fmt.Errorf("manifest config: %w", err)
	}

	// Seed and evaluation date are carried inside the manifest config.
	c, err := cohort.Generate(manifest.Size, manifest.Config)
	if err != nil {
		return nil, fmt.Errorf("replay generation: %w", err)
	}

	return &replay{manifest: manifest, records: records, engine: engine, subjects: c.Subjects}, nil
}

// VerifySubject verifies a single subject by replaying the whole run.
func (v *ReplayVerifier) VerifySubject(ctx context.Context, subjectID string) (*VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := v.load()
	if err != nil {
		return nil, err
	}

	for i := range r.records {
		if r.records[i].SubjectID == subjectID {
			return r.verify(i), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
}

// VerifyAll verifies every subject of the export.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	r, err := v.load()
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		Total:   len(r.records),
		Results: make([]VerificationResult, 0, len(r.records)),
	}

	for i := range r.records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := r.verify(i)
		report.Results = append(report.Results, *result)
		if result.Match {
			report.Matched++
		} else {
			report.Divergent++
			v.logger.Warn("subject diverges from replay",
				zap.String("subject_id", result.SubjectID),
				zap.Int("fields", len(result.Divergences)),
			)
		}
	}

	v.logger.Info("replay verification finished",
		zap.String("cohort_id", r.manifest.CohortID),
		zap.Int("total", report.Total),
		zap.Int("divergent", report.Divergent),
	)
	return report, nil
}

// verify compares record i with replayed subject i. Read errors are
// recorded as a divergence, never returned.
func (r *replay) verify(i int) *VerificationResult {
	rec := &r.records[i]
	result := &VerificationResult{SubjectID: rec.SubjectID}

	if i >= len(r.subjects) {
		result.Divergences = []FieldDivergence{{Field: "Error", Actual: "no replayed subject at this position"}}
		return result
	}

	stored, err := SubjectFromRecord(rec, r.manifest.Config.EvaluationDate, r.engine)
	if err != nil {
		result.Divergences = []FieldDivergence{{Field: "Error", Actual: err.Error()}}
		return result
	}

	result.Divergences = CompareSubjects(&stored, &r.subjects[i])
	result.Match = len(result.Divergences) == 0
	return result
}

// SubjectFromRecord rebuilds the exported view of a subject from its files.
// The phase is recomputed for evaluation.
func SubjectFromRecord(rec *export.Record, evaluation time.Time, engine *phase.Engine) (domain.Subject, error) {
	cycle, err := questionnaire.ParseCycle(&rec.Cycle)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("subject %s: %w", rec.SubjectID, err)
	}
	insulin, err := questionnaire.ParseInsulin(&rec.Insulin)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("subject %s: %w", rec.SubjectID, err)
	}

	res, err := engine.Compute(cycle.LMPDate, evaluation, cycle.CycleLength)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("subject %s: %w", rec.SubjectID, err)
	}

	return domain.Subject{
		Index:             rec.Index,
		SubjectID:         rec.SubjectID,
		Age:               insulin.Age,
		DeliveryMethod:    insulin.DeliveryMethod,
		ReferenceDate:     cycle.LMPDate,
		CycleLength:       cycle.CycleLength,
		Phase:             res.Phase,
		DaysElapsed:       res.DaysElapsed,
		PhaseBoundary:     res.Boundary,
		NightGlucose:      insulin.NightGlucose,
		BasalInsulin:      insulin.BasalInsulin,
		CycleAuthoredAt:   cycle.Authored,
		InsulinAuthoredAt: insulin.Authored,
		Credential:        rec.Key.Credential(),
	}, nil
}
