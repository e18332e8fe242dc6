// Command cohort generates a synthetic phase-correlated cohort and exports it
// as questionnaire responses with one credential per subject.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"synth-cohort/internal/cli"
	"synth-cohort/internal/cohort"
	"synth-cohort/internal/config"
	"synth-cohort/internal/domain"
	"synth-cohort/internal/export"
	"synth-cohort/internal/idhash"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/orchestrator"
	"synth-cohort/internal/reporting"
	"synth-cohort/internal/verification"
)

// app holds the flag values and state shared by the cohort subcommands.
type app struct {
	stdout io.Writer

	// Global flags
	verbose    bool
	quiet      bool
	configPath string
	outputDir  string

	// Generation flags
	seed      int64
	statsOnly bool
	asOf      string

	// Pipeline flags
	pipelineDest       string
	pipelineCollection string
	pipelineNodes      []string
	skipVerify         bool

	settings *config.Settings
	logger   *zap.Logger
}

// newRootCmd builds the command tree writing human output to stdout.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout}

	rootCmd := &cobra.Command{
		Use:   "cohort [size]",
		Short: "Generate a synthetic menstrual-cycle / insulin cohort",
		Long: `Generates a reproducible cohort of synthetic subjects. Each subject's cycle
phase is derived from their last period date, and nighttime glucose and basal
insulin are drawn conditional on that phase.

Every subject is written as a key file plus two questionnaire responses,
together with a run manifest (cohort.json) that allows replay.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a.logger, err = cli.NewLogger(a.verbose, a.quiet)
			if err != nil {
				return err
			}

			a.settings, err = config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-dir") || a.settings.OutputDir == "" {
				a.settings.OutputDir = a.outputDir
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runGenerate,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Only log warnings and skip the summary")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML settings file")
	rootCmd.PersistentFlags().StringVar(&a.outputDir, "output-dir", "output", "Output directory")

	rootCmd.Flags().Int64Var(&a.seed, "seed", 42, "Random seed")
	rootCmd.Flags().BoolVar(&a.statsOnly, "stats", false, "Print cohort statistics without writing files")
	rootCmd.Flags().StringVar(&a.asOf, "as-of", "", "Evaluation date YYYY-MM-DD (default today, UTC)")

	rootCmd.AddCommand(a.cleanCmd(), a.verifyKeyCmd(), a.verifyCmd(), a.pipelineCmd())
	return rootCmd
}

func (a *app) cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			existed, err := export.Clean(a.settings.OutputDir)
			if err != nil {
				return err
			}
			if existed {
				fmt.Fprintf(a.stdout, "Removed %s\n", a.settings.OutputDir)
			} else {
				fmt.Fprintf(a.stdout, "Nothing to clean: %s does not exist\n", a.settings.OutputDir)
			}
			return nil
		},
	}
}

func (a *app) verifyKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-key <did>",
		Short: "Check that a subject's key file derives its identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := export.VerifyKey(a.settings.OutputDir, args[0])
			if err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			fmt.Fprintf(a.stdout, "OK  %s\n", key.SubjectID)
			fmt.Fprintf(a.stdout, "    public key: %s\n", key.PublicKey)
			fmt.Fprintf(a.stdout, "    index:      %d\n", key.Index)
			return nil
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the run manifest and compare every exported subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := verification.NewReplayVerifier(a.settings.OutputDir, verification.WithLogger(a.logger))
			report, err := v.VerifyAll(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Verified %d subjects: %d matched, %d divergent\n",
				report.Total, report.Matched, report.Divergent)
			for _, r := range report.Results {
				if r.Match {
					continue
				}
				fmt.Fprintf(a.stdout, "  %s\n", r.SubjectID)
				for _, d := range r.Divergences {
					fmt.Fprintf(a.stdout, "    %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
				}
			}
			if report.Divergent > 0 {
				return fmt.Errorf("%d subjects diverge from replay", report.Divergent)
			}
			return nil
		},
	}
}

func (a *app) pipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline [size]",
		Short: "Generate, export, verify, upload and report in one run",
		Long: `Runs every stage against one cohort. Without a collection id (--collection-id,
upload.collection_id or COHORT_COLLECTION_ID) the upload stage is skipped. Analytics rows go to
ClickHouse when clickhouse.dsn or COHORT_CLICKHOUSE_DSN is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runPipeline,
	}
	cmd.Flags().Int64Var(&a.seed, "seed", 42, "Random seed")
	cmd.Flags().StringVar(&a.asOf, "as-of", "", "Evaluation date YYYY-MM-DD (default today, UTC)")
	cmd.Flags().StringVar(&a.pipelineDest, "dest", "", "Upload destination")
	cmd.Flags().StringVar(&a.pipelineCollection, "collection-id", "", "Upload collection (skip upload when unset)")
	cmd.Flags().StringSliceVar(&a.pipelineNodes, "node", nil, "Vault node endpoint, repeatable")
	cmd.Flags().BoolVar(&a.skipVerify, "skip-verify", false, "Skip replay verification")
	return cmd
}

// generationParams resolves size and config from args, flags and settings.
// Without a size argument the configured cohort_size is used.
func (a *app) generationParams(cmd *cobra.Command, args []string) (int, cohort.Config, error) {
	size := a.settings.CohortSize
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, cohort.Config{}, fmt.Errorf("%w: size %q is not an integer", domain.ErrInvalidConfiguration, args[0])
		}
		size = n
	}

	cfg := a.settings.Generation
	if cmd.Flags().Changed("seed") {
		cfg.Seed = a.seed
	}
	if a.asOf != "" {
		day, err := time.Parse(time.DateOnly, a.asOf)
		if err != nil {
			return 0, cohort.Config{}, fmt.Errorf("%w: --as-of must be YYYY-MM-DD: %v", domain.ErrInvalidConfiguration, err)
		}
		cfg.EvaluationDate = day
	}
	return size, cfg, nil
}

func (a *app) runPipeline(cmd *cobra.Command, args []string) error {
	size, cfg, err := a.generationParams(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	metrics := observability.NewMetrics("", prometheus.NewRegistry())
	settings := a.settings

	opts := orchestrator.Options{
		Config:           cfg,
		Size:             size,
		OutputDir:        settings.OutputDir,
		SkipVerification: a.skipVerify,
		Logger:           a.logger,
		Metrics:          metrics,
	}

	if cmd.Flags().Changed("dest") {
		settings.Upload.Destination = a.pipelineDest
	}
	if cmd.Flags().Changed("collection-id") {
		settings.Upload.CollectionID = a.pipelineCollection
	}
	if cmd.Flags().Changed("node") {
		settings.Vault.Nodes = a.pipelineNodes
	}
	if settings.Upload.CollectionID != "" {
		if err := settings.Validate(); err != nil {
			return err
		}
		store, err := cli.OpenDocumentStore(ctx, settings, a.logger, metrics)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts.DocumentStore = store
		opts.CollectionID = settings.Upload.CollectionID
		opts.Destination = store.Name
		opts.Concurrency = settings.Upload.Concurrency
	}

	subjects, closeSubjects, err := cli.OpenSubjectStore(ctx, settings.ClickHouse.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = closeSubjects() }()
	opts.SubjectStore = subjects

	result, err := orchestrator.New(opts).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Cohort %s: %d subjects in %s\n", result.CohortID, result.SubjectsGenerated, settings.OutputDir)
	if result.Verification != nil {
		fmt.Fprintf(a.stdout, "Replay verification: %d/%d matched\n", result.Verification.Matched, result.Verification.Total)
	}
	if result.Upload != nil {
		fmt.Fprintf(a.stdout, "Uploaded %d/%d subjects to %s\n",
			len(result.Upload.Uploads), result.Upload.TotalSubjects, result.Upload.Destination)
	}
	if !a.quiet {
		fmt.Fprintln(a.stdout)
		fmt.Fprint(a.stdout, reporting.RenderText(result.Report))
	}
	if result.Upload != nil && !result.Upload.Succeeded() {
		return fmt.Errorf("%d subjects failed to upload", len(result.Upload.Failures))
	}
	return nil
}

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	size, cfg, err := a.generationParams(cmd, args)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics("", prometheus.NewRegistry())
	gen, err := cohort.NewGenerator(cfg, cohort.Options{Logger: a.logger, Metrics: metrics})
	if err != nil {
		return err
	}
	c, err := gen.Generate(size)
	if err != nil {
		return err
	}

	cohortID := idhash.ComputeCohortID(c.Seed, len(c.Subjects), c.EvaluationDate)
	report := reporting.FromSummary(cohortID, c.Summary, reporting.DefaultTargets())

	if a.statsOnly {
		fmt.Fprint(a.stdout, reporting.RenderText(report))
		return nil
	}

	w := export.NewWriter(a.settings.OutputDir, export.WithLogger(a.logger), export.WithMetrics(metrics))
	manifest, err := w.WriteCohort(c, cfg)
	if err != nil {
		return err
	}

	if !a.quiet {
		fmt.Fprintf(a.stdout, "Generated %d subjects (seed %d, evaluated %s)\n",
			manifest.Size, manifest.Seed, manifest.EvaluationDate)
		fmt.Fprintf(a.stdout, "Output written to %s (cohort %s)\n\n", a.settings.OutputDir, manifest.CohortID)
		fmt.Fprint(a.stdout, reporting.RenderText(report))
	}
	return nil
}

// execute runs the command tree and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "Error: invalid configuration: %s: %s\n", cfgErr.Field, cfgErr.Reason)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
