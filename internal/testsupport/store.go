package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"reelsub/internal/catalog"
	"reelsub/internal/database"
)

// MustOpenDatabase opens a fresh database for tests and registers cleanup.
func MustOpenDatabase(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "reelsub.db"))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// NewProject creates a project owned by owner using the provided catalog.
func NewProject(t testing.TB, store *catalog.Store, owner string) *catalog.Project {
	t.Helper()

	project, err := store.CreateProject(context.Background(), catalog.NewProject{
		Owner:         owner,
		MediaPath:     filepath.Join(owner, "uploads", "source.mp4"),
		MediaFilename: "source.mp4",
	})
	if err != nil {
		t.Fatalf("catalog.CreateProject: %v", err)
	}
	return project
}
