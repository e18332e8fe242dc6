// Package cohort generates reproducible synthetic cohorts.
// Flow: identifier → reference date → cycle length → phase → attributes → assemble
package cohort

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/identity"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/phase"
	"synth-cohort/internal/rng"
	"synth-cohort/internal/sampler"
)

// Generator produces cohorts for one validated Config.
type Generator struct {
	cfg     Config
	engine  *phase.Engine
	sampler *sampler.Sampler

	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Options for creating Generator.
type Options struct {
	Logger  *zap.Logger            // nil disables logging
	Metrics *observability.Metrics // nil disables metrics
	Now     func() time.Time       // clock used when Config.EvaluationDate is zero
}

// NewGenerator validates cfg and creates a Generator.
func NewGenerator(cfg Config, opts Options) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine, err := cfg.PhaseEngine()
	if err != nil {
		return nil, err
	}
	s, err := sampler.New(cfg.SamplerParams())
	if err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:     cfg,
		engine:  engine,
		sampler: s,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Generate creates a cohort of size subjects with the default generator options.
func Generate(size int, cfg Config) (*domain.Cohort, error) {
	g, err := NewGenerator(cfg, Options{})
	if err != nil {
		return nil, err
	}
	return g.Generate(size)
}

// Generate draws exactly size subjects from a fresh stream seeded with Config.Seed.
// Either every subject is produced or an error is returned and nothing is.
func (g *Generator) Generate(size int) (*domain.Cohort, error) {
	if size < 0 {
		return nil, domain.NewConfigError("cohort_size", "must be non-negative, got %d", size)
	}

	start := time.Now()
	eval := g.cfg.evaluationDay(g.now)
	stream := rng.New(g.cfg.Seed)
	minter := identity.NewMinter()

	g.logger.Debug("generating cohort",
		zap.Int("size", size),
		zap.Int64("seed", g.cfg.Seed),
		zap.Time("evaluation_date", eval),
		zap.Stringer("phase_engine", g.engine),
	)

	subjects := make([]domain.Subject, 0, size)
	for i := 0; i < size; i++ {
		subject, err := g.drawSubject(i, stream, minter, eval)
		if err != nil {
			g.metrics.RecordGeneration("error", time.Since(start).Seconds(), stream.Draws())
			return nil, fmt.Errorf("subject %d: %w", i, err)
		}
		subjects = append(subjects, subject)
	}

	for _, s := range subjects {
		g.metrics.RecordSubject(s.Phase.String())
	}
	g.metrics.RecordGeneration("ok", time.Since(start).Seconds(), stream.Draws())

	summary := Summarize(subjects)
	g.logger.Info("cohort generated",
		zap.Int("subjects", summary.Total),
		zap.Int("follicular", summary.PhaseCounts[domain.PhaseFollicular]),
		zap.Int("luteal", summary.PhaseCounts[domain.PhaseLuteal]),
		zap.Uint64("draws", stream.Draws()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &domain.Cohort{
		Seed:           g.cfg.Seed,
		EvaluationDate: eval,
		Subjects:       subjects,
		Summary:        summary,
	}, nil
}

// drawSubject performs one subject's draws in their fixed order.
func (g *Generator) drawSubject(index int, stream *rng.Stream, minter *identity.Minter, eval time.Time) (domain.Subject, error) {
	cred, err := minter.Mint(stream)
	if err != nil {
		return domain.Subject{}, err
	}

	daysAgo := stream.IntInclusive(g.cfg.ReferenceDateWindow.Min, g.cfg.ReferenceDateWindow.Max)
	reference := eval.AddDate(0, 0, -daysAgo)

	cycleLength := g.drawCycleLength(stream)

	result, err := g.engine.Compute(reference, eval, cycleLength)
	if err != nil {
		return domain.Subject{}, err
	}

	attrs := g.sampler.Sample(stream, result.Phase)

	cycleAuthored := g.drawSubmission(stream, eval)
	insulinAuthored := g.drawSubmission(stream, eval)

	return Assemble(Draw{
		Index:             index,
		Credential:        cred,
		ReferenceDate:     reference,
		CycleLength:       cycleLength,
		Phase:             result,
		Attributes:        attrs,
		CycleAuthoredAt:   cycleAuthored,
		InsulinAuthoredAt: insulinAuthored,
	}), nil
}

// drawCycleLength draws a normal cycle length, truncates it and clamps it to the bounds.
func (g *Generator) drawCycleLength(stream *rng.Stream) int {
	v := int(stream.Normal(g.cfg.CycleLengthMean, g.cfg.CycleLengthSpread))
	b := g.cfg.CycleLengthBounds
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// drawSubmission returns a second-resolution timestamp inside the submission window.
func (g *Generator) drawSubmission(stream *rng.Stream, eval time.Time) time.Time {
	w := g.cfg.SubmissionWindow
	offset := w.Min + time.Duration(stream.Float64()*float64(w.Max-w.Min))
	return eval.Add(-offset).Truncate(time.Second)
}
