package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"synth-cohort/internal/config"
	"synth-cohort/internal/observability"
	"synth-cohort/internal/storage"
	chstore "synth-cohort/internal/storage/clickhouse"
	"synth-cohort/internal/storage/memory"
	"synth-cohort/internal/storage/migrations"
	pgstore "synth-cohort/internal/storage/postgres"
	s3store "synth-cohort/internal/storage/s3"
	"synth-cohort/internal/storage/sqlite"
	"synth-cohort/internal/vault"
)

// ErrNoVaultNodes is returned when a vault destination has no node endpoints.
var ErrNoVaultNodes = errors.New("no vault nodes configured")

// Store is an opened document destination.
type Store struct {
	storage.DocumentStore

	// Name is the destination label used in logs and metrics.
	Name string

	closers []func() error
}

// Close releases every connection held by the store.
func (s *Store) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenDocumentStore opens the destination named by settings.Upload.Destination.
func OpenDocumentStore(ctx context.Context, settings *config.Settings, logger *zap.Logger, metrics *observability.Metrics) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dest := settings.Upload.Destination
	store := &Store{Name: dest}

	switch dest {
	case config.DestMemory:
		store.DocumentStore = memory.NewDocumentStore()

	case config.DestPostgres:
		if settings.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres destination requires a dsn")
		}
		pool, err := pgstore.NewPool(ctx, settings.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		store.DocumentStore = pgstore.NewDocumentStore(pool)
		store.closers = append(store.closers, func() error { pool.Close(); return nil })

	case config.DestSQLite:
		db, err := sqlite.Open(ctx, settings.SQLite.Path)
		if err != nil {
			return nil, err
		}
		store.DocumentStore = db
		store.closers = append(store.closers, db.Close)

	case config.DestS3:
		s3, err := s3store.New(ctx, s3store.Config{
			Bucket:          settings.S3.Bucket,
			Region:          settings.S3.Region,
			Endpoint:        settings.S3.Endpoint,
			Prefix:          settings.S3.Prefix,
			AccessKeyID:     settings.S3.AccessKeyID,
			SecretAccessKey: settings.S3.SecretAccessKey,
			PathStyle:       settings.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		store.DocumentStore = s3

	case config.DestVaultHTTP, config.DestVaultWS:
		nodes, err := openVaultNodes(ctx, store, settings, logger, metrics)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if len(nodes) == 1 {
			store.DocumentStore = nodes[0]
			break
		}
		cluster, err := vault.NewCluster(logger, nodes...)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store.DocumentStore = cluster

	default:
		return nil, fmt.Errorf("unknown destination %q (want one of %s)", dest, strings.Join(config.Destinations, ", "))
	}

	logger.Debug("document store opened", zap.String("destination", dest))
	return store, nil
}

// openVaultNodes dials every configured node. Opened clients are registered
// on store so a partial failure can be unwound with store.Close.
func openVaultNodes(ctx context.Context, store *Store, settings *config.Settings, logger *zap.Logger, metrics *observability.Metrics) ([]vault.Node, error) {
	v := settings.Vault
	if len(v.Nodes) == 0 {
		return nil, ErrNoVaultNodes
	}

	nodes := make([]vault.Node, 0, len(v.Nodes))
	for _, endpoint := range v.Nodes {
		if settings.Upload.Destination == config.DestVaultHTTP {
			nodes = append(nodes, vault.NewHTTPClient(endpoint,
				vault.WithTimeout(v.Timeout),
				vault.WithMaxRetries(v.MaxRetries),
				vault.WithToken(v.Token),
				vault.WithMetrics(metrics),
			))
			continue
		}

		wsCfg := vault.DefaultWSConfig()
		wsCfg.Token = v.Token
		if v.Timeout > 0 {
			wsCfg.CallTimeout = v.Timeout
		}
		client, err := vault.NewWSClient(ctx, endpoint, &wsCfg, logger.With(zap.String("node", endpoint)))
		if err != nil {
			return nil, fmt.Errorf("connect vault node %s: %w", endpoint, err)
		}
		store.closers = append(store.closers, client.Close)
		nodes = append(nodes, client)
	}
	return nodes, nil
}

// OpenSubjectStore opens the analytics sink. An empty dsn yields an
// in-memory store. The returned function closes the connection.
func OpenSubjectStore(ctx context.Context, dsn string) (storage.SubjectStore, func() error, error) {
	if dsn == "" {
		return memory.NewSubjectStore(), func() error { return nil }, nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return chstore.NewSubjectStore(conn), conn.Close, nil
}
