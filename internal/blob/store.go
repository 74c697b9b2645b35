package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrInvalidKey reports a blob key that is empty, absolute, or escapes the
// store root.
var ErrInvalidKey = errors.New("invalid blob key")

// Store is the blob persistence surface used by intake, workers, and the API.
type Store interface {
	// Upload writes data under key and returns the stored reference.
	Upload(ctx context.Context, key string, data []byte) (string, error)
	// UploadFile copies a local file under key and returns the stored reference.
	UploadFile(ctx context.Context, key, src string) (string, error)
	// Download returns the full contents of key.
	Download(ctx context.Context, key string) ([]byte, error)
	// Open streams the contents of key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Fetch copies key to a local file at dst.
	Fetch(ctx context.Context, key, dst string) error
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Sign returns a download URL for key valid for ttl.
	Sign(key string, ttl time.Duration) (string, error)
}
