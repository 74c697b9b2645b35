package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"reelsub/internal/logging"
	"reelsub/internal/queue"
	"reelsub/internal/services"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

// writeError maps a service error to an HTTP status by classification.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	details := services.Details(err)
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.Error(err))
	}
	s.writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Kind:  string(details.Kind),
		Hint:  details.Hint,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, queue.ErrProjectBusy):
		return http.StatusConflict
	case errors.Is(err, queue.ErrJobNotFound):
		return http.StatusNotFound
	}
	switch services.Classify(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
