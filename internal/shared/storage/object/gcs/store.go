package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"intellidoc-backend/internal/shared/gcp"
	"intellidoc-backend/internal/shared/storage/object"
)

const (
	writeTimeout  = 2 * time.Minute
	deleteTimeout = 30 * time.Second
	readTimeout   = 2 * time.Minute
)

// Store implements ObjectStore on Google Cloud Storage.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed store using credentials from the environment.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	opts := append(gcp.ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(strings.TrimSpace(prefix), "/")}, nil
}

func (s *Store) Provider() string { return "gcs" }

// Save streams the reader into the bucket under the user's namespace.
func (s *Store) Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (object.Blob, error) {
	key, err := object.NewKey(userID, fileName)
	if err != nil {
		return object.Blob{}, err
	}
	body, contentType, err := object.Sniff(r, contentType)
	if err != nil {
		return object.Blob{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	objectKey := object.JoinPrefix(s.prefix, key)
	w := s.client.Bucket(s.bucket).Object(objectKey).NewWriter(ctx)
	w.ContentType = contentType
	written, err := io.Copy(w, body)
	if err != nil {
		_ = w.Close()
		return object.Blob{}, fmt.Errorf("gcs write bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	if err := w.Close(); err != nil {
		return object.Blob{}, fmt.Errorf("gcs close writer bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return object.Blob{Provider: s.Provider(), Key: key, Size: written, ContentType: contentType}, nil
}

// Open returns a reader whose Close also releases the read deadline.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	r, err := s.client.Bucket(s.bucket).Object(object.JoinPrefix(s.prefix, clean)).NewReader(ctx)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs open reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

// Delete removes the object. A missing object counts as deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	clean, err := object.CleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()
	objectKey := object.JoinPrefix(s.prefix, clean)
	if err := s.client.Bucket(s.bucket).Object(objectKey).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return nil
}

// URL returns the public storage.googleapis.com location of key.
func (s *Store) URL(key string) string {
	return publicURL(s.bucket, object.JoinPrefix(s.prefix, key))
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func publicURL(bucket, objectKey string) string {
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + objectKey}
	return u.String()
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}

var _ object.ObjectStore = (*Store)(nil)
