// Package orchestrator runs a cohort end to end.
// It coordinates: generation → export → replay verification → upload → reporting
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/export"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/reporting"
	"synth-cohort/internal/storage"
	"synth-cohort/internal/storage/memory"
	"synth-cohort/internal/upload"
	"synth-cohort/internal/verification"
)

// ErrVerificationFailed is returned when exported subjects diverge from replay.
var ErrVerificationFailed = errors.New("replay verification failed")

// Orchestrator coordinates the end-to-end run.
type Orchestrator struct {
	// Generation
	config cohort.Config
	size   int

	outputDir string

	// Destinations
	documentStore storage.DocumentStore
	subjectStore  storage.SubjectStore
	collectionID  string
	destination   string
	concurrency   int

	targets    reporting.Targets
	skipVerify bool

	logger  *zap.Logger
	metrics *observability.Metrics
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Config    cohort.Config
	Size      int
	OutputDir string

	// Upload is skipped when DocumentStore is nil.
	DocumentStore storage.DocumentStore
	CollectionID  string
	Destination   string // label for metrics and the upload manifest
	Concurrency   int    // 0 uses upload.DefaultConcurrency

	// SubjectStore receives analytics rows. Nil uses an in-memory store.
	SubjectStore storage.SubjectStore
	Targets      *reporting.Targets // nil uses reporting.DefaultTargets

	SkipVerification bool

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		config:        opts.Config,
		size:          opts.Size,
		outputDir:     opts.OutputDir,
		documentStore: opts.DocumentStore,
		subjectStore:  opts.SubjectStore,
		collectionID:  opts.CollectionID,
		destination:   opts.Destination,
		concurrency:   opts.Concurrency,
		targets:       reporting.DefaultTargets(),
		skipVerify:    opts.SkipVerification,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if opts.Targets != nil {
		o.targets = *opts.Targets
	}
	if o.subjectStore == nil {
		o.subjectStore = memory.NewSubjectStore()
	}
	if o.concurrency <= 0 {
		o.concurrency = upload.DefaultConcurrency
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	CohortID          string
	SubjectsGenerated int

	Verification *verification.VerificationReport // nil when skipped
	Upload       *upload.Manifest                 // nil when no document store
	Report       *reporting.Report
}

// Run executes the full pipeline.
// Phases:
//  1. Generate the cohort
//  2. Export it to the output directory
//  3. Replay-verify the export
//  4. Upload both documents of every subject
//  5. Publish analytics rows and build the report
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	// Phase 1: Generation
	o.logger.Info("phase 1: generating cohort", zap.Int("size", o.size))
	gen, err := cohort.NewGenerator(o.config, cohort.Options{Logger: o.logger, Metrics: o.metrics})
	if err != nil {
		return nil, fmt.Errorf("phase 1 (generate) failed: %w", err)
	}
	c, err := gen.Generate(o.size)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (generate) failed: %w", err)
	}
	result.SubjectsGenerated = len(c.Subjects)

	// Phase 2: Export
	o.logger.Info("phase 2: exporting", zap.String("dir", o.outputDir))
	writer := export.NewWriter(o.outputDir, export.WithLogger(o.logger), export.WithMetrics(o.metrics))
	manifest, err := writer.WriteCohort(c, o.config)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (export) failed: %w", err)
	}
	result.CohortID = manifest.CohortID

	// Phase 3: Verification
	if !o.skipVerify {
		o.logger.Info("phase 3: replay verification")
		v := verification.NewReplayVerifier(o.outputDir, verification.WithLogger(o.logger))
		report, err := v.VerifyAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("phase 3 (verify) failed: %w", err)
		}
		result.Verification = report
		if report.Divergent > 0 {
			return result, fmt.Errorf("phase 3 (verify): %w: %d of %d subjects diverge",
				ErrVerificationFailed, report.Divergent, report.Total)
		}
	} else {
		o.logger.Info("phase 3: skipping verification")
	}

	_, records, err := export.Load(o.outputDir)
	if err != nil {
		return nil, fmt.Errorf("reload export: %w", err)
	}

	// Phase 4: Upload
	if o.documentStore != nil {
		o.logger.Info("phase 4: uploading", zap.String("collection_id", o.collectionID))
		uploader, err := upload.NewUploader(o.documentStore, o.collectionID,
			upload.WithConcurrency(o.concurrency),
			upload.WithLogger(o.logger),
			upload.WithMetrics(o.metrics),
			upload.WithDestination(o.destination),
		)
		if err != nil {
			return nil, fmt.Errorf("phase 4 (upload) failed: %w", err)
		}
		m, err := uploader.UploadAll(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("phase 4 (upload) failed: %w", err)
		}
		result.Upload = m
	} else {
		o.logger.Info("phase 4: no document store, skipping upload")
	}

	// Phase 5: Reporting
	o.logger.Info("phase 5: reporting")
	engine, err := o.config.PhaseEngine()
	if err != nil {
		return nil, fmt.Errorf("phase 5 (report) failed: %w", err)
	}
	rows, err := reporting.RowsFromRecords(manifest.CohortID, records, c.EvaluationDate, engine)
	if err != nil {
		return nil, fmt.Errorf("phase 5 (report) failed: %w", err)
	}
	reports := reporting.NewGenerator(o.subjectStore).WithTargets(o.targets)
	if len(rows) > 0 {
		switch err := reports.Publish(ctx, rows); {
		case err == nil:
			o.metrics.RecordRowsStored(len(rows))
		case errors.Is(err, storage.ErrDuplicateKey):
			o.logger.Info("cohort rows already published", zap.String("cohort_id", manifest.CohortID))
		default:
			return nil, fmt.Errorf("phase 5 (report) failed: %w", err)
		}
		if result.Report, err = reports.Generate(ctx, manifest.CohortID); err != nil {
			return nil, fmt.Errorf("phase 5 (report) failed: %w", err)
		}
	} else {
		result.Report = reporting.FromSummary(manifest.CohortID, c.Summary, o.targets)
	}

	o.logger.Info("pipeline completed",
		zap.String("cohort_id", result.CohortID),
		zap.Int("subjects", result.SubjectsGenerated),
		zap.Bool("checks_passed", result.Report.AllChecksPassed),
	)
	return result, nil
}
