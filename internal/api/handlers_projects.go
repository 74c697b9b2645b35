package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"reelsub/internal/dispatch"
	"reelsub/internal/logging"
	"reelsub/internal/queue"
)

// multipartOverhead allows for form fields and part headers on top of the
// media itself.
const multipartOverhead = 1 << 20

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Catalog.ListProjects(r.Context(), strings.TrimSpace(r.URL.Query().Get("owner")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ProjectListResponse{Items: FromProjects(projects)})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.deps.Catalog.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ProjectResponse{Item: FromProject(project)})
}

// handleUpload stages a multipart upload in the temp area and registers it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Intake == nil {
		s.writeMessage(w, http.StatusServiceUnavailable, "uploads are not enabled")
		return
	}
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeMessage(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.writeMessage(w, http.StatusBadRequest, fmt.Sprintf("missing file: %v", err))
		return
	}
	defer file.Close()

	staged, err := s.stageUpload(file, header.Filename)
	if staged != "" {
		defer func() {
			if rmErr := os.Remove(staged); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				s.logger.Warn("failed to remove staged upload",
					logging.String("path", staged),
					logging.Error(rmErr),
					logging.String(logging.FieldEventType, "upload_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "the cleanup sweeper will remove it later"),
					logging.String(logging.FieldImpact, "temp space is held until the next sweep"))
			}
		}()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeMessage(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.writeError(w, r, err)
		return
	}

	project, err := s.deps.Intake.Register(r.Context(), dispatch.Upload{
		Owner:    r.FormValue("owner"),
		Filename: header.Filename,
		Path:     staged,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ProjectResponse{Item: FromProject(project)})
}

func (s *Server) stageUpload(src io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.tempDir, s.uploadPrefix+"upload_"+uuid.NewString()+ext)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return path, err
	}
	if err := out.Close(); err != nil {
		return path, fmt.Errorf("stage upload: %w", err)
	}
	return path, nil
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	s.startTranscription(w, r, s.deps.Dispatcher.Transcribe)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	s.startTranscription(w, r, s.deps.Dispatcher.Regenerate)
}

func (s *Server) startTranscription(w http.ResponseWriter, r *http.Request, start func(context.Context, string, string) (*queue.Job, error)) {
	var req TranscribeRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := start(r.Context(), chi.URLParam(r, "id"), req.Language)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, JobResponse{Item: FromJob(job)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, multipartOverhead))
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	job, err := s.deps.Dispatcher.Export(r.Context(), chi.URLParam(r, "id"), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, JobResponse{Item: FromJob(job)})
}

// decodeOptionalJSON decodes a request body, treating an empty body as zero.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, multipartOverhead))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
