// Package config loads run settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"synth-cohort/internal/cohort"
)

// Destination names accepted by Upload.Destination.
const (
	DestVaultHTTP = "vault-http"
	DestVaultWS   = "vault-ws"
	DestPostgres  = "postgres"
	DestSQLite    = "sqlite"
	DestS3        = "s3"
	DestMemory    = "memory"
)

// Destinations lists every supported upload destination.
var Destinations = []string{DestVaultHTTP, DestVaultWS, DestPostgres, DestSQLite, DestS3, DestMemory}

// Settings holds everything a command may need. Flags override it.
type Settings struct {
	// Generation parameters
	Generation cohort.Config `yaml:"generation"`

	// CohortSize is the subject count used when no size argument is given.
	CohortSize int `yaml:"cohort_size"`

	OutputDir string `yaml:"output_dir"`

	Upload     UploadConfig     `yaml:"upload"`
	Vault      VaultConfig      `yaml:"vault"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	S3         S3Config         `yaml:"s3"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// UploadConfig configures the uploader.
type UploadConfig struct {
	CollectionID string `yaml:"collection_id"`
	Destination  string `yaml:"destination"`
	Concurrency  int    `yaml:"concurrency"`
	ManifestPath string `yaml:"manifest_path"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// VaultConfig configures the vault JSON-RPC clients. More than one node
// replicates every write.
type VaultConfig struct {
	Nodes      []string      `yaml:"nodes"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// PostgresConfig configures the postgres document store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SQLiteConfig configures the sqlite document store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// S3Config configures the s3 document store. Empty credentials use the
// default AWS chain.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// ClickHouseConfig configures the analytics sink.
type ClickHouseConfig struct {
	DSN string `yaml:"dsn"`
}

// Default returns settings with default values.
func Default() *Settings {
	return &Settings{
		Generation: cohort.DefaultConfig(),
		CohortSize: cohort.DefaultSize,
		OutputDir:  "output",
		Upload: UploadConfig{
			Destination: DestVaultHTTP,
			Concurrency: 4,
		},
		Vault: VaultConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		SQLite: SQLiteConfig{Path: "documents.db"},
		S3:     S3Config{Region: "us-east-1"},
	}
}

// Load reads settings from path. A missing file yields defaults. Environment
// overrides apply in both cases.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := s.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes settings to a YAML file.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the upload section.
func (s *Settings) Validate() error {
	known := false
	for _, d := range Destinations {
		known = known || d == s.Upload.Destination
	}
	if !known {
		return fmt.Errorf("unknown destination %q (want one of %s)", s.Upload.Destination, strings.Join(Destinations, ", "))
	}
	if s.Upload.Concurrency < 1 {
		return fmt.Errorf("upload concurrency must be positive, got %d", s.Upload.Concurrency)
	}
	return nil
}

func (s *Settings) applyEnvOverrides() error {
	str := map[string]*string{
		"COHORT_OUTPUT_DIR":           &s.OutputDir,
		"COHORT_COLLECTION_ID":        &s.Upload.CollectionID,
		"COHORT_DEST":                 &s.Upload.Destination,
		"COHORT_METRICS_ADDR":         &s.Upload.MetricsAddr,
		"COHORT_VAULT_TOKEN":          &s.Vault.Token,
		"COHORT_POSTGRES_DSN":         &s.Postgres.DSN,
		"COHORT_SQLITE_PATH":          &s.SQLite.Path,
		"COHORT_S3_BUCKET":            &s.S3.Bucket,
		"COHORT_S3_REGION":            &s.S3.Region,
		"COHORT_S3_ENDPOINT":          &s.S3.Endpoint,
		"COHORT_S3_PREFIX":            &s.S3.Prefix,
		"COHORT_S3_ACCESS_KEY_ID":     &s.S3.AccessKeyID,
		"COHORT_S3_SECRET_ACCESS_KEY": &s.S3.SecretAccessKey,
		"COHORT_CLICKHOUSE_DSN":       &s.ClickHouse.DSN,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("COHORT_VAULT_NODES"); v != "" {
		s.Vault.Nodes = splitList(v)
	}

	if v := os.Getenv("COHORT_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("COHORT_SEED: %w", err)
		}
		s.Generation.Seed = seed
	}
	if v := os.Getenv("COHORT_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COHORT_SIZE: %w", err)
		}
		s.CohortSize = n
	}
	if v := os.Getenv("COHORT_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COHORT_CONCURRENCY: %w", err)
		}
		s.Upload.Concurrency = n
	}
	if v := os.Getenv("COHORT_VAULT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("COHORT_VAULT_TIMEOUT: %w", err)
		}
		s.Vault.Timeout = d
	}
	return nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
