// Package s3 stores uploaded documents in an S3-compatible bucket (AWS S3 or MinIO).
//
// Layout within the bucket:
//
//	<prefix><collection>/documents/<document_id>.json            full StoredDocument
//	<prefix><collection>/subjects/<subject_id>/<schema>/<document_id>   empty index key
//
// Objects are never overwritten: Put checks existence with HeadObject first.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// Config holds construction parameters. Empty credentials fall back to the
// default AWS credentials chain.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional; enables a custom endpoint such as MinIO
	Prefix          string // optional key prefix, e.g. "cohorts/"
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// DocumentStore implements storage.DocumentStore on S3.
type DocumentStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// Compile-time interface check.
var _ storage.DocumentStore = (*DocumentStore)(nil)

// New creates an S3 document store from cfg.
func New(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newStore(client, cfg.Bucket, cfg.Prefix), nil
}

func newStore(client *s3.Client, bucket, prefix string) *DocumentStore {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &DocumentStore{client: client, bucket: bucket, prefix: prefix}
}

// Put adds a new document. Returns ErrDuplicateKey if (collection_id, document_id) exists.
func (s *DocumentStore) Put(ctx context.Context, doc *domain.StoredDocument) error {
	if err := storage.ValidateDocument(doc); err != nil {
		return err
	}

	key := s.documentKey(doc.CollectionID, doc.DocumentID)
	exists, err := s.exists(ctx, key)
	if err != nil {
		return fmt.Errorf("head %s: %w", key, err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	indexKey := s.indexKey(doc.CollectionID, doc.SubjectID, doc.Schema, doc.DocumentID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &indexKey,
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("put index %s: %w", indexKey, err)
	}
	return nil
}

// Get retrieves a document. Returns ErrNotFound if not exists.
func (s *DocumentStore) Get(ctx context.Context, collectionID, documentID string) (*domain.StoredDocument, error) {
	key := s.documentKey(collectionID, documentID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var doc domain.StoredDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &doc, nil
}

// ListBySubject retrieves a subject's documents, ordered by schema then document_id.
func (s *DocumentStore) ListBySubject(ctx context.Context, collectionID, subjectID string) ([]*domain.StoredDocument, error) {
	prefix := s.prefix + collectionID + "/subjects/" + subjectID + "/"
	keys, err := s.list(ctx, prefix)
	if err != nil {
		return nil, err
	}

	type entry struct{ schema, documentID string }
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		parts := strings.SplitN(strings.TrimPrefix(k, prefix), "/", 2)
		if len(parts) != 2 {
			continue
		}
		entries = append(entries, entry{schema: parts[0], documentID: parts[1]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].schema != entries[j].schema {
			return entries[i].schema < entries[j].schema
		}
		return entries[i].documentID < entries[j].documentID
	})

	result := make([]*domain.StoredDocument, 0, len(entries))
	for _, e := range entries {
		doc, err := s.Get(ctx, collectionID, e.documentID)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, nil
}

// Count returns the number of documents in a collection.
func (s *DocumentStore) Count(ctx context.Context, collectionID string) (int, error) {
	keys, err := s.list(ctx, s.prefix+collectionID+"/documents/")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *DocumentStore) documentKey(collectionID, documentID string) string {
	return s.prefix + collectionID + "/documents/" + documentID + ".json"
}

func (s *DocumentStore) indexKey(collectionID, subjectID, schema, documentID string) string {
	return s.prefix + collectionID + "/subjects/" + subjectID + "/" + schema + "/" + documentID
}

func (s *DocumentStore) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *DocumentStore) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		return keys, nil
	}
}

// isNotFound reports whether err carries an HTTP 404 from the service.
func isNotFound(err error) bool {
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
