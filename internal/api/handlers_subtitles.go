package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reelsub/internal/subtitles"
)

func (s *Server) handleGetSubtitles(w http.ResponseWriter, r *http.Request) {
	format, err := subtitles.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	projectID := chi.URLParam(r, "id")
	sub, err := s.deps.Catalog.GetSubtitle(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body := sub.SRTText
	if format == subtitles.FormatJSON {
		body = sub.JSONPayload
	}
	w.Header().Set("Content-Type", format.ContentType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(projectID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleEditSubtitles(w http.ResponseWriter, r *http.Request) {
	var req SubtitleEditRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Edits) == 0 {
		s.writeMessage(w, http.StatusBadRequest, "no edits supplied")
		return
	}
	edits := make(map[int]string, len(req.Edits))
	for _, edit := range req.Edits {
		edits[edit.Index] = edit.Text
	}
	sub, err := s.deps.Catalog.EditSubtitleText(r.Context(), chi.URLParam(r, "id"), edits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := sub.Document()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}
