package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsub/internal/database"
	"reelsub/internal/services"
)

// Store is the SQLite-backed catalog.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore binds a catalog to an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const projectColumns = "id, owner, status, media_path, media_filename, export_ref, created_at, updated_at"

// CreateProject inserts a project in the uploading state.
func (s *Store) CreateProject(ctx context.Context, req NewProject) (*Project, error) {
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create project", "owner is required", nil)
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := database.FormatTime(s.now())
	if _, err := s.db.Exec(ctx,
		`INSERT INTO projects (id, owner, status, media_path, media_filename, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, owner, string(StatusUploading), req.MediaPath, req.MediaFilename, now, now,
	); err != nil {
		return nil, database.StorageError("catalog", "create project", err)
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get project", id, ErrProjectNotFound)
	}
	if err != nil {
		return nil, database.StorageError("catalog", "get project", err)
	}
	return project, nil
}

// ListProjects returns projects newest first, optionally for one owner.
func (s *Store) ListProjects(ctx context.Context, owner string) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if owner = strings.TrimSpace(owner); owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, database.StorageError("catalog", "list projects", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, database.StorageError("catalog", "list projects", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// SetMedia records where the uploaded source lives.
func (s *Store) SetMedia(ctx context.Context, id, mediaPath, filename string) error {
	return s.updateProject(ctx, "set media",
		`UPDATE projects SET media_path = ?, media_filename = ?, updated_at = ? WHERE id = ?`,
		id, mediaPath, filename, database.FormatTime(s.now()), id)
}

// SetExportRef records the blob reference of the latest export.
func (s *Store) SetExportRef(ctx context.Context, id, ref string) error {
	return s.updateProject(ctx, "set export ref",
		`UPDATE projects SET export_ref = ?, updated_at = ? WHERE id = ?`,
		id, database.NullableString(ref), database.FormatTime(s.now()), id)
}

// CompareAndSetStatus moves a project to next only if its current status is
// one of from. It reports whether the row changed and, when it did not, the
// status actually found.
func (s *Store) CompareAndSetStatus(ctx context.Context, id string, from []Status, next Status) (bool, Status, error) {
	if len(from) == 0 {
		return false, "", errors.New("compare and set: no source statuses")
	}
	args := []any{string(next), database.FormatTime(s.now()), id}
	for _, status := range from {
		args = append(args, string(status))
	}
	res, err := s.db.Exec(ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+database.Placeholders(len(from))+`)`,
		args...)
	if err != nil {
		return false, "", database.StorageError("catalog", "set status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, "", database.StorageError("catalog", "set status", err)
	}
	if affected == 1 {
		return true, next, nil
	}
	current, err := s.GetProject(ctx, id)
	if err != nil {
		return false, "", err
	}
	return false, current.Status, nil
}

// DeleteProject removes a project with its subtitle and jobs.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.updateProject(ctx, "delete project", `DELETE FROM projects WHERE id = ?`, id, id)
}

func (s *Store) updateProject(ctx context.Context, operation, query, id string, args ...any) error {
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return database.StorageError("catalog", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return database.StorageError("catalog", operation, err)
	}
	if affected == 0 {
		return notFound(operation, id, ErrProjectNotFound)
	}
	return nil
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		project    Project
		status     string
		exportRef  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&project.ID,
		&project.Owner,
		&status,
		&project.MediaPath,
		&project.MediaFilename,
		&exportRef,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	project.Status = Status(status)
	project.ExportRef = exportRef.String
	if t, err := database.ParseTime(createdRaw); err == nil {
		project.CreatedAt = t
	}
	if t, err := database.ParseTime(updatedRaw); err == nil {
		project.UpdatedAt = t
	}
	return &project, nil
}
