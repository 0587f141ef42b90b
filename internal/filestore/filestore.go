// Package filestore keeps uploaded CSVs and generated exports. Local stores
// them under a directory; GCS stores them in a Cloud Storage bucket.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/JonMunkholm/royalties/internal/core"
)

// Providers accepted by New.
const (
	ProviderLocal = "local"
	ProviderGCS   = "gcs"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid file key")

// Options selects and configures a provider.
type Options struct {
	Provider        string
	LocalDir        string
	Bucket          string
	CredentialsJSON string
}

// New creates the FileStore named by opts.Provider.
func New(ctx context.Context, opts Options) (core.FileStore, error) {
	switch opts.Provider {
	case "", ProviderLocal:
		return NewLocal(opts.LocalDir)
	case ProviderGCS:
		return NewGCS(ctx, opts.Bucket, opts.CredentialsJSON)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", opts.Provider)
	}
}

// cleanKey normalises a slash-separated key and rejects traversal.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	k := strings.TrimPrefix(path.Clean("/"+key), "/")
	if k == "" {
		return "", ErrInvalidKey
	}
	return k, nil
}
