package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"reelsub/internal/logging"
	"reelsub/internal/queue"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		s.writeJSON(w, http.StatusOK, DaemonStatus{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Status(r.Context()))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := queue.ListFilter{ProjectID: strings.TrimSpace(query.Get("project"))}
	for _, value := range query["state"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			filter.States = append(filter.States, queue.State(trimmed))
		}
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	jobs, err := s.deps.Queue.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Items: FromJobs(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Item: FromJob(job)})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.deps.Logs
	if hub == nil {
		s.writeJSON(w, http.StatusOK, LogStreamResponse{Events: []LogEvent{}})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	projectID := strings.TrimSpace(query.Get("project"))
	component := strings.TrimSpace(query.Get("component"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		var err error
		events, next, err = hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && r.Context().Err() == nil {
			s.writeError(w, r, err)
			return
		}
	}

	filtered := events[:0]
	for _, evt := range events {
		if projectID != "" && evt.ProjectID != projectID {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, LogStreamResponse{Events: FromLogEvents(filtered), Next: next})
}
