package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"reelsub/internal/blob"
	"reelsub/internal/logging"
	"reelsub/internal/textutil"
)

// handleBlob streams a stored artifact when the token was signed for its key.
func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Blobs == nil {
		s.writeMessage(w, http.StatusNotFound, "blob not found")
		return
	}
	key, err := url.PathUnescape(strings.TrimPrefix(chi.URLParam(r, "*"), "/"))
	if err != nil || key == "" {
		s.writeMessage(w, http.StatusBadRequest, "invalid blob key")
		return
	}
	if err := s.deps.Blobs.Verify(r.URL.Query().Get("token"), key); err != nil {
		if errors.Is(err, blob.ErrInvalidKey) {
			s.writeMessage(w, http.StatusBadRequest, "invalid blob key")
			return
		}
		s.writeMessage(w, http.StatusForbidden, "invalid or expired token")
		return
	}

	rc, err := s.deps.Blobs.Open(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": textutil.SanitizeFileName(path.Base(key))}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("blob download interrupted",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldEventType, "blob_download_interrupted"),
			logging.String(logging.FieldErrorHint, "client disconnected or storage read failed"),
			logging.String(logging.FieldImpact, "client received a truncated file"))
	}
}
