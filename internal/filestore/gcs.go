package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/JonMunkholm/royalties/internal/core"
	"google.golang.org/api/option"
)

// GCS stores files as objects in a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

var _ core.FileStore = (*GCS)(nil)

// NewGCS opens bucket. Empty credentialsJSON uses Application Default
// Credentials.
func NewGCS(ctx context.Context, bucket, credentialsJSON string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket)}, nil
}

func (g *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	w := g.bucket.Object(k).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (g *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	rc, err := g.bucket.Object(k).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, &core.NotFoundError{Resource: "file", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return rc, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := g.bucket.Object(k).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
