package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsub/internal/logging"
)

// CleanStaleResult contains the outcome of a sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes entries in dir whose name starts with prefix and whose
// mtime is older than maxAge. Files and directories are both removed. A
// failure on one entry is recorded and the sweep continues.
func CleanStale(ctx context.Context, dir, prefix string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result
	}

	entries, err := ListEntries(dir, prefix)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.Err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entry.Path, Error: entry.Err})
			continue
		}
		if !entry.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(entry.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entry.Path, Error: err})
			logger.Warn("failed to remove stale temp entry",
				logging.String("path", entry.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, entry.Path)
		logger.Info("removed stale temp entry",
			logging.String("path", entry.Path),
			logging.Duration("age", time.Since(entry.ModTime).Round(time.Second)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

// EntryInfo describes one temp-area entry.
type EntryInfo struct {
	Name    string
	Path    string
	IsDir   bool
	ModTime time.Time
	Size    int64
	// Err is set when the entry could not be stat'ed; it vanished or is
	// unreadable.
	Err error
}

// ListEntries returns the entries in dir whose name starts with prefix. A
// missing directory yields no entries.
func ListEntries(dir, prefix string) ([]EntryInfo, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []EntryInfo
	for _, entry := range entries {
		if prefix != "" && !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		entryPath := filepath.Join(dir, entry.Name())
		info := EntryInfo{Name: entry.Name(), Path: entryPath, IsDir: entry.IsDir()}
		stat, err := entry.Info()
		if err != nil {
			info.Err = err
			infos = append(infos, info)
			continue
		}
		info.ModTime = stat.ModTime()
		if entry.IsDir() {
			info.Size, _ = dirSize(entryPath)
		} else {
			info.Size = stat.Size()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Ignore errors, best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
