// Command upload stores an exported cohort's questionnaire responses in a
// document destination and writes an upload manifest.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"synth-cohort/internal/cli"
	"synth-cohort/internal/config"
	"synth-cohort/internal/export"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/upload"
)

var (
	verbose    bool
	quiet      bool
	configPath string

	collectionID string
	dest         string
	nodes        []string
	did          string
	dir          string
	manifestPath string
	concurrency  int
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload an exported cohort to a document store",
	Long: `Reads the output directory written by the cohort command and stores both
questionnaire responses of every subject in a collection.

Destinations: vault-http, vault-ws (JSON-RPC vault nodes; several --node flags
replicate every write), postgres, sqlite, s3, memory.`,
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

	f.StringVar(&collectionID, "collection-id", "", "Target collection (env COHORT_COLLECTION_ID)")
	f.StringVar(&dest, "dest", "", "Destination: vault-http, vault-ws, postgres, sqlite, s3, memory")
	f.StringSliceVar(&nodes, "node", nil, "Vault node endpoint, repeatable (env COHORT_VAULT_NODES)")
	f.StringVar(&did, "did", "", "Upload only this subject")
	f.StringVar(&dir, "dir", "", "Output directory of the cohort command")
	f.StringVar(&manifestPath, "save-manifest", "", "Write the upload manifest to this path")
	f.IntVar(&concurrency, "concurrency", 0, "Subjects uploaded in parallel")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while uploading")
}

// applyFlags overrides settings with explicitly set flags.
func applyFlags(cmd *cobra.Command, s *config.Settings) {
	f := cmd.Flags()
	if f.Changed("collection-id") {
		s.Upload.CollectionID = collectionID
	}
	if f.Changed("dest") {
		s.Upload.Destination = dest
	}
	if f.Changed("node") {
		s.Vault.Nodes = nodes
	}
	if f.Changed("dir") {
		s.OutputDir = dir
	}
	if f.Changed("save-manifest") {
		s.Upload.ManifestPath = manifestPath
	}
	if f.Changed("concurrency") {
		s.Upload.Concurrency = concurrency
	}
	if f.Changed("metrics-addr") {
		s.Upload.MetricsAddr = metricsAddr
	}
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
	applyFlags(cmd, settings)
	if err := settings.Validate(); err != nil {
		return err
	}
	if settings.Upload.CollectionID == "" {
		return errors.New("--collection-id is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("", reg)
	if addr := settings.Upload.MetricsAddr; addr != "" {
		srv := startMetricsServer(addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	_, records, err := export.Load(settings.OutputDir)
	if err != nil {
		return err
	}
	logger.Info("loaded export", zap.String("dir", settings.OutputDir), zap.Int("subjects", len(records)))

	store, err := cli.OpenDocumentStore(ctx, settings, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close document store", zap.Error(err))
		}
	}()

	uploader, err := upload.NewUploader(store, settings.Upload.CollectionID,
		upload.WithConcurrency(settings.Upload.Concurrency),
		upload.WithLogger(logger),
		upload.WithMetrics(metrics),
		upload.WithDestination(store.Name),
	)
	if err != nil {
		return err
	}

	manifest, err := uploadRecords(ctx, uploader, records, did, settings.Upload.ManifestPath, logger)
	if manifest != nil {
		printManifest(os.Stdout, manifest)
	}
	if err != nil {
		return err
	}
	if !manifest.Succeeded() {
		return fmt.Errorf("%d subjects failed to upload", len(manifest.Failures))
	}
	return nil
}

// uploadRecords uploads one subject when subjectID is set, otherwise all of
// them. Any manifest produced is saved to savePath, failed runs included.
func uploadRecords(ctx context.Context, uploader *upload.Uploader, records []export.Record,
	subjectID, savePath string, logger *zap.Logger) (*upload.Manifest, error) {
	var (
		manifest *upload.Manifest
		err      error
	)
	if subjectID != "" {
		manifest, err = uploader.UploadSubject(ctx, records, subjectID)
	} else {
		manifest, err = uploader.UploadAll(ctx, records)
	}

	if manifest != nil && savePath != "" {
		if werr := manifest.Write(savePath); werr != nil {
			return manifest, errors.Join(err, werr)
		}
		logger.Info("upload manifest written", zap.String("path", savePath))
	}
	return manifest, err
}

func printManifest(w io.Writer, m *upload.Manifest) {
	fmt.Fprintf(w, "Uploaded %d of %d subjects to %s collection %s\n",
		len(m.Uploads), m.TotalSubjects, m.Destination, m.CollectionID)
	for _, f := range m.Failures {
		fmt.Fprintf(w, "  FAILED %s: %s\n", f.SubjectID, f.Error)
	}
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return srv
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
