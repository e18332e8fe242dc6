// Command report flattens an exported cohort into CSV and checks its
// population statistics against the generation targets.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"synth-cohort/internal/cli"
	"synth-cohort/internal/cohort"
	"synth-cohort/internal/config"
	"synth-cohort/internal/domain"
	"synth-cohort/internal/export"
	"synth-cohort/internal/reporting"
	"synth-cohort/internal/storage"
)

var (
	verbose    bool
	quiet      bool
	configPath string

	dir           string
	csvPath       string
	stats         bool
	markdownPath  string
	clickhouseDSN string
)

var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "Export cohort rows to CSV and report population statistics",
	Long: `Reads the output directory written by the cohort command, recomputes every
subject's phase for the run's evaluation date, and writes one CSV row per
subject. With --clickhouse-dsn the rows are also stored in ClickHouse and the
report is computed from the stored rows.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVarP(&quiet, "quiet", "q", false, "Only log warnings")
	f.StringVar(&configPath, "config", "", "YAML settings file")

	f.StringVar(&dir, "dir", "", "Output directory of the cohort command")
	f.StringVar(&csvPath, "output", "cohort.csv", "CSV output path (empty to skip)")
	f.BoolVar(&stats, "stats", false, "Print population statistics and target checks")
	f.StringVar(&markdownPath, "markdown", "", "Write a markdown report to this path")
	f.StringVar(&clickhouseDSN, "clickhouse-dsn", "", "Store rows in ClickHouse (env COHORT_CLICKHOUSE_DSN)")
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := cli.NewLogger(verbose, quiet)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dir") {
		settings.OutputDir = dir
	}
	if cmd.Flags().Changed("clickhouse-dsn") {
		settings.ClickHouse.DSN = clickhouseDSN
	}

	ctx := cmd.Context()

	manifest, records, err := export.Load(settings.OutputDir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no subjects found in %s", settings.OutputDir)
	}

	// Without a manifest the phase is evaluated today with default bounds.
	cfg := cohort.DefaultConfig()
	cohortID := "adhoc-" + time.Now().UTC().Format("20060102T150405")
	evaluation := time.Now().UTC().Truncate(24 * time.Hour)
	if manifest != nil {
		cfg = manifest.Config
		cohortID = manifest.CohortID
		evaluation = manifest.Config.EvaluationDate
	} else {
		logger.Warn("run manifest missing, evaluating phases as of today", zap.String("dir", settings.OutputDir))
	}

	engine, err := cfg.PhaseEngine()
	if err != nil {
		return err
	}
	rows, err := reporting.RowsFromRecords(cohortID, records, evaluation, engine)
	if err != nil {
		return err
	}

	if csvPath != "" {
		if err := writeFile(csvPath, reporting.RenderCSV(rows)); err != nil {
			return err
		}
		fmt.Printf("Wrote %d rows to %s\n", len(rows), csvPath)
	}

	report, err := buildReport(ctx, settings.ClickHouse.DSN, cohortID, rows, logger)
	if err != nil {
		return err
	}

	if markdownPath != "" {
		if err := writeFile(markdownPath, reporting.RenderMarkdown(report)); err != nil {
			return err
		}
		fmt.Printf("Wrote report to %s\n", markdownPath)
	}
	if stats {
		fmt.Println()
		fmt.Print(reporting.RenderText(report))
	}
	return nil
}

// buildReport publishes rows to the analytics sink and reads them back.
// An already published cohort is reported from the stored rows.
func buildReport(ctx context.Context, dsn, cohortID string, rows []*domain.SubjectRow, logger *zap.Logger) (*reporting.Report, error) {
	store, closeStore, err := cli.OpenSubjectStore(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close subject store", zap.Error(err))
		}
	}()

	gen := reporting.NewGenerator(store)
	if err := gen.Publish(ctx, rows); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, err
		}
		logger.Info("cohort already published", zap.String("cohort_id", cohortID))
	}
	return gen.Generate(ctx, cohortID)
}

func writeFile(path, content string) error {
	if d := filepath.Dir(path); d != "." {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
