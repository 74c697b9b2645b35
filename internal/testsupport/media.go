package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelsub/internal/blob"
	"reelsub/internal/config"
)

// mp4Header is an ftyp box that content sniffers recognize as video/mp4.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1',
}

// WriteMP4 writes a file that sniffs as MP4 followed by size bytes of padding.
func WriteMP4(t testing.TB, path string, size int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := append(append([]byte(nil), mp4Header...), make([]byte, size)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// NewBlobStore opens a filesystem blob store rooted at the config blob dir.
func NewBlobStore(t testing.TB, cfg *config.Config) *blob.FSStore {
	t.Helper()

	signer, err := blob.NewSigner(cfg.Export.SigningKey)
	if err != nil {
		t.Fatalf("blob.NewSigner: %v", err)
	}
	store, err := blob.NewFSStore(cfg.Paths.BlobDir, cfg.Paths.PublicBaseURL, signer)
	if err != nil {
		t.Fatalf("blob.NewFSStore: %v", err)
	}
	return store
}
