package reporting

import (
	"context"
	"fmt"
	"time"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// Generator produces reports from rows held in an analytics store.
type Generator struct {
	store   storage.SubjectStore
	targets Targets
	now     func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator using DefaultTargets.
func NewGenerator(store storage.SubjectStore) *Generator {
	return &Generator{
		store:   store,
		targets: DefaultTargets(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTargets overrides the target values.
func (g *Generator) WithTargets(t Targets) *Generator {
	g.targets = t
	return g
}

// Publish stores rows. Rows already present make the whole batch fail with
// storage.ErrDuplicateKey.
func (g *Generator) Publish(ctx context.Context, rows []*domain.SubjectRow) error {
	if err := g.store.InsertBulk(ctx, rows); err != nil {
		return fmt.Errorf("publish rows: %w", err)
	}
	return nil
}

// Generate builds the report of one stored cohort.
func (g *Generator) Generate(ctx context.Context, cohortID string) (*Report, error) {
	rows, err := g.store.GetByCohort(ctx, cohortID)
	if err != nil {
		return nil, fmt.Errorf("load cohort %s: %w", cohortID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("cohort %s: %w", cohortID, storage.ErrNotFound)
	}

	r := Build(rows, g.targets)
	r.CohortID = cohortID
	r.GeneratedAt = g.now()
	return r, nil
}
