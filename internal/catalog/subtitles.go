package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"reelsub/internal/database"
	"reelsub/internal/services"
	"reelsub/internal/subtitles"
)

const subtitleColumns = "id, project_id, language, srt_text, json_payload, created_at, updated_at"

// ReplaceSubtitle deletes any existing subtitle for the project and inserts
// doc in its place, in one transaction.
func (s *Store) ReplaceSubtitle(ctx context.Context, projectID string, doc subtitles.Document) (*Subtitle, error) {
	if err := subtitles.Validate(doc.Segments); err != nil {
		return nil, services.Wrap(services.ErrPermanentInput, "catalog", "replace subtitle", "segments failed validation", err)
	}
	payload, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	srt := subtitles.Serialize(doc.Segments)
	now := database.FormatTime(s.now())
	id := uuid.NewString()

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtitles WHERE project_id = ?`, projectID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO subtitles (id, project_id, language, srt_text, json_payload, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, projectID, doc.Language, srt, string(payload), now, now)
		return err
	})
	if err != nil {
		return nil, database.StorageError("catalog", "replace subtitle", err)
	}
	return s.GetSubtitle(ctx, projectID)
}

// GetSubtitle returns the live subtitle of a project.
func (s *Store) GetSubtitle(ctx context.Context, projectID string) (*Subtitle, error) {
	row := s.db.QueryRow(ctx, `SELECT `+subtitleColumns+` FROM subtitles WHERE project_id = ?`, projectID)
	sub, err := scanSubtitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get subtitle", projectID, ErrSubtitleNotFound)
	}
	if err != nil {
		return nil, database.StorageError("catalog", "get subtitle", err)
	}
	return sub, nil
}

// HasSubtitle reports whether the project has a live subtitle.
func (s *Store) HasSubtitle(ctx context.Context, projectID string) (bool, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(1) FROM subtitles WHERE project_id = ?`, projectID).Scan(&count); err != nil {
		return false, database.StorageError("catalog", "has subtitle", err)
	}
	return count > 0, nil
}

// DeleteSubtitle removes the project's subtitle, reporting whether one existed.
func (s *Store) DeleteSubtitle(ctx context.Context, projectID string) (bool, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM subtitles WHERE project_id = ?`, projectID)
	if err != nil {
		return false, database.StorageError("catalog", "delete subtitle", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, database.StorageError("catalog", "delete subtitle", err)
	}
	return affected > 0, nil
}

// EditSubtitleText replaces segment texts by index, keeping every timing, and
// rewrites both cached forms.
func (s *Store) EditSubtitleText(ctx context.Context, projectID string, edits map[int]string) (*Subtitle, error) {
	if len(edits) == 0 {
		return s.GetSubtitle(ctx, projectID)
	}
	var notFoundErr error
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+subtitleColumns+` FROM subtitles WHERE project_id = ?`, projectID)
		current, err := scanSubtitle(row)
		if errors.Is(err, sql.ErrNoRows) {
			notFoundErr = notFound("edit subtitle", projectID, ErrSubtitleNotFound)
			return notFoundErr
		}
		if err != nil {
			return err
		}
		doc, err := current.Document()
		if err != nil {
			return err
		}
		edited, err := subtitles.ApplyTextEdits(doc.Segments, edits)
		if err != nil {
			return services.Wrap(services.ErrValidation, "catalog", "edit subtitle", "invalid edit", err)
		}
		updated := subtitles.NewDocument("", doc.Language, edited, doc.Duration)
		payload, err := updated.Marshal()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE subtitles SET srt_text = ?, json_payload = ?, updated_at = ? WHERE id = ?`,
			subtitles.Serialize(updated.Segments), string(payload), database.FormatTime(s.now()), current.ID)
		return err
	})
	if notFoundErr != nil {
		return nil, notFoundErr
	}
	if err != nil {
		var svcErr *services.Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, database.StorageError("catalog", "edit subtitle", fmt.Errorf("project %s: %w", projectID, err))
	}
	return s.GetSubtitle(ctx, projectID)
}

func scanSubtitle(scanner interface{ Scan(dest ...any) error }) (*Subtitle, error) {
	var (
		sub        Subtitle
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&sub.ID,
		&sub.ProjectID,
		&sub.Language,
		&sub.SRTText,
		&sub.JSONPayload,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	if t, err := database.ParseTime(createdRaw); err == nil {
		sub.CreatedAt = t
	}
	if t, err := database.ParseTime(updatedRaw); err == nil {
		sub.UpdatedAt = t
	}
	return &sub, nil
}
