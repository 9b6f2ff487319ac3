package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/radbridge/studyflow/internal/logger"
)

// ErrNotFound reports a missing object.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the slice of object storage the pipeline needs: a
// bounded prefix read for SOP instances and a full read for the small
// template/mapping objects.
type ObjectStore interface {
	FetchPrefix(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
	FetchAll(ctx context.Context, bucket, key string) ([]byte, error)
}

type objectStore struct {
	log    *logger.Logger
	client *storage.Client
}

func NewObjectStore(ctx context.Context, log *logger.Logger) (ObjectStore, error) {
	opts := clientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &objectStore{
		log:    log.With("service", "ObjectStore"),
		client: client,
	}, nil
}

// FetchPrefix reads at most maxBytes from the start of the object. SOP
// instance pixel payloads can run to hundreds of megabytes; the header
// tags we need sit well inside the prefix.
func (s *objectStore) FetchPrefix(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("maxBytes must be positive, got %d", maxBytes)
	}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	r, err := s.client.Bucket(bucket).Object(key).NewRangeReader(ctx, 0, maxBytes)
	if err != nil {
		return nil, wrapStorageErr(bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *objectStore) FetchAll(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, wrapStorageErr(bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func wrapStorageErr(bucket, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrNotFound)
	}
	return fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	opts := []option.ClientOption{}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
