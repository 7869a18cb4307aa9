package shield

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the object storage backend holding uploaded assets and
// derived artifacts such as thumbnails.
type ObjectStore interface {
	// Put stores size bytes read from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// SignedURL returns a short-lived URL granting read access to key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Fetch reads the object behind a URL returned by SignedURL.
	Fetch(ctx context.Context, signedURL string) (io.ReadCloser, error)

	// ValidateSetup verifies the backend is reachable and configured.
	ValidateSetup(ctx context.Context) error
}
