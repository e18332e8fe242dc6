// Package upload sends exported questionnaire responses to a document store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/export"
	"synth-cohort/internal/identity"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/storage"
)

// DefaultConcurrency is the number of subjects uploaded in parallel.
const DefaultConcurrency = 4

// ErrUnknownSubject is returned by UploadSubject when no record carries the id.
var ErrUnknownSubject = errors.New("subject not found in records")

// Uploader writes both documents of each subject to one destination.
type Uploader struct {
	store        storage.DocumentStore
	collectionID string
	destination  string
	concurrency  int
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithConcurrency bounds parallel subject uploads. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n < 1 {
			n = 1
		}
		u.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithMetrics records upload counts and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(u *Uploader) {
		u.metrics = m
	}
}

// WithDestination labels metrics and the manifest, e.g. "vault-http".
func WithDestination(name string) Option {
	return func(u *Uploader) {
		u.destination = name
	}
}

// WithClock overrides the clock used for StoredAt and UploadedAt.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		u.now = now
	}
}

// NewUploader creates an uploader targeting collectionID in store.
func NewUploader(store storage.DocumentStore, collectionID string, opts ...Option) (*Uploader, error) {
	if store == nil {
		return nil, fmt.Errorf("upload: nil document store")
	}
	if collectionID == "" {
		return nil, fmt.Errorf("upload: collection id required")
	}
	u := &Uploader{
		store:        store,
		collectionID: collectionID,
		destination:  "unknown",
		concurrency:  DefaultConcurrency,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// UploadAll uploads every record. A subject that fails is listed in
// Manifest.Failures and does not stop the others. The returned error is
// non-nil only when ctx ends the run early.
func (u *Uploader) UploadAll(ctx context.Context, records []export.Record) (*Manifest, error) {
	results := make([]*Result, len(records))
	failures := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i := range records {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				failures[i] = gctx.Err()
				return nil
			}
			res, err := u.uploadRecord(gctx, &records[i])
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	m := u.newManifest(len(records))
	for i := range records {
		if failures[i] != nil {
			m.Failures = append(m.Failures, Failure{SubjectID: records[i].SubjectID, Error: failures[i].Error()})
			continue
		}
		m.Uploads = append(m.Uploads, *results[i])
	}

	u.logger.Info("upload finished",
		zap.String("collection_id", u.collectionID),
		zap.String("destination", u.destination),
		zap.Int("uploaded", len(m.Uploads)),
		zap.Int("failed", len(m.Failures)))

	return m, ctx.Err()
}

// UploadSubject uploads the single record carrying subjectID.
func (u *Uploader) UploadSubject(ctx context.Context, records []export.Record, subjectID string) (*Manifest, error) {
	for i := range records {
		if records[i].SubjectID != subjectID {
			continue
		}
		m := u.newManifest(1)
		res, err := u.uploadRecord(ctx, &records[i])
		if err != nil {
			m.Failures = append(m.Failures, Failure{SubjectID: subjectID, Error: err.Error()})
			return m, err
		}
		m.Uploads = append(m.Uploads, *res)
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSubject, subjectID)
}

func (u *Uploader) newManifest(total int) *Manifest {
	return &Manifest{
		CollectionID:  u.collectionID,
		Destination:   u.destination,
		UploadedAt:    u.now().UTC().Format(time.RFC3339),
		TotalSubjects: total,
		Uploads:       []Result{},
	}
}

// uploadRecord checks the subject's credential, then stores the cycle and
// insulin documents. A document already present counts as uploaded so a
// rerun after partial failure completes.
func (u *Uploader) uploadRecord(ctx context.Context, rec *export.Record) (*Result, error) {
	start := time.Now()
	log := u.logger.With(zap.String("subject_id", rec.SubjectID))

	if err := identity.Verify(rec.Key.Credential()); err != nil {
		u.metrics.RecordUpload(u.destination, time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("credential: %w", err)
	}

	docs := []*domain.StoredDocument{
		u.document(rec, domain.SchemaCycle, rec.Cycle.ID, rec.CycleRaw),
		u.document(rec, domain.SchemaInsulin, rec.Insulin.ID, rec.InsulinRaw),
	}

	for _, doc := range docs {
		err := u.store.Put(ctx, doc)
		switch {
		case err == nil:
			u.metrics.RecordDocumentUploaded(doc.Schema)
		case errors.Is(err, storage.ErrDuplicateKey):
			log.Debug("document already stored", zap.String("document_id", doc.DocumentID))
		default:
			u.metrics.RecordUpload(u.destination, time.Since(start).Seconds(), err)
			log.Warn("upload failed", zap.String("schema", doc.Schema), zap.Error(err))
			return nil, fmt.Errorf("put %s: %w", doc.Schema, err)
		}
	}

	u.metrics.RecordUpload(u.destination, time.Since(start).Seconds(), nil)
	log.Debug("subject uploaded")

	return &Result{
		SubjectID:         rec.SubjectID,
		CycleDocumentID:   docs[0].DocumentID,
		InsulinDocumentID: docs[1].DocumentID,
	}, nil
}

func (u *Uploader) document(rec *export.Record, schema, id string, body []byte) *domain.StoredDocument {
	return &domain.StoredDocument{
		DocumentID:   id,
		CollectionID: u.collectionID,
		SubjectID:    rec.SubjectID,
		Schema:       schema,
		Body:         body,
		StoredAt:     u.now().UnixMilli(),
	}
}
