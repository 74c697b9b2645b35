package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"reelsub/internal/services"
)

// FSStore keeps blobs under a root directory.
type FSStore struct {
	root    string
	baseURL string
	signer  *Signer
}

// NewFSStore creates the root directory if needed. baseURL prefixes signed
// download links, e.g. "http://127.0.0.1:7488".
func NewFSStore(root, baseURL string, signer *Signer) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), signer: signer}, nil
}

// Root returns the directory backing the store.
func (s *FSStore) Root() string {
	return s.root
}

// CleanKey normalizes a blob key, rejecting absolute keys and traversal.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if trimmed == "" || strings.HasPrefix(trimmed, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func (s *FSStore) resolve(operation, key string) (string, string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "blob", operation, "bad key", err)
	}
	return cleaned, filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Upload writes data under key atomically.
func (s *FSStore) Upload(ctx context.Context, key string, data []byte) (string, error) {
	return s.write(ctx, "upload", key, bytes.NewReader(data), int64(len(data)))
}

// UploadFile copies src under key, verifying size and checksum.
func (s *FSStore) UploadFile(ctx context.Context, key, src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "blob", "upload file", "open source", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "blob", "upload file", "stat source", err)
	}
	return s.write(ctx, "upload file", key, in, info.Size())
}

// write streams r into a temp file beside the target, checks that the bytes
// on disk match what was read, and renames into place.
func (s *FSStore) write(ctx context.Context, operation, key string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleaned, target, err := s.resolve(operation, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "blob", operation, "create directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "blob", operation, "create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	srcHasher := sha256.New()
	written, err := io.Copy(tmp, io.TeeReader(r, srcHasher))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "blob", operation, "write", err)
	}
	if written != size {
		return "", services.Wrap(services.ErrStorage, "blob", operation,
			fmt.Sprintf("size mismatch: expected %d bytes, wrote %d", size, written), nil)
	}
	if err := verifyChecksum(tmpName, srcHasher.Sum(nil)); err != nil {
		return "", services.Wrap(services.ErrStorage, "blob", operation, "verify", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", services.Wrap(services.ErrStorage, "blob", operation, "rename", err)
	}
	return cleaned, nil
}

func verifyChecksum(path string, want []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	if !bytes.Equal(h.Sum(nil), want) {
		return errors.New("hash mismatch: file corrupted during copy")
	}
	return nil
}

// Download returns the contents of key.
func (s *FSStore) Download(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "blob", "download", key, err)
	}
	return data, nil
}

// Open streams the contents of key.
func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, target, err := s.resolve("open", key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "blob", "open", key, err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "blob", "open", key, err)
	}
	return f, nil
}

// Fetch copies key to the local path dst.
func (s *FSStore) Fetch(ctx context.Context, key, dst string) error {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return services.Wrap(services.ErrStorage, "blob", "fetch", "create destination", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return services.Wrap(services.ErrStorage, "blob", "fetch", key, err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrStorage, "blob", "fetch", key, err)
	}
	return nil
}

// Delete removes key, reporting whether it existed.
func (s *FSStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, target, err := s.resolve("delete", key)
	if err != nil {
		return false, err
	}
	err = os.Remove(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "blob", "delete", key, err)
	}
	return true, nil
}

// Sign returns a download URL for key valid for ttl.
func (s *FSStore) Sign(key string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", services.Wrap(services.ErrConfiguration, "blob", "sign", "no signing key configured", nil)
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "blob", "sign", "bad key", err)
	}
	token, err := s.signer.Token(cleaned, ttl)
	if err != nil {
		return "", err
	}
	escaped := (&url.URL{Path: cleaned}).EscapedPath()
	return s.baseURL + "/blobs/" + escaped + "?token=" + url.QueryEscape(token), nil
}

// Verify checks a download token against key.
func (s *FSStore) Verify(token, key string) error {
	if s.signer == nil {
		return ErrInvalidToken
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	return s.signer.Verify(token, cleaned)
}
