package api

import (
	"time"

	"reelsub/internal/catalog"
	"reelsub/internal/deps"
	"reelsub/internal/logging"
	"reelsub/internal/queue"
	"reelsub/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:              job.ID,
		Kind:            string(job.Kind),
		ProjectID:       job.ProjectID,
		MediaPath:       job.MediaPath,
		State:           string(job.State),
		Attempt:         job.Attempt,
		MaxAttempts:     job.MaxAttempts,
		StorageFailures: job.StorageFailures,
		LastDelaySecs:   job.LastDelay.Seconds(),
		ErrorMessage:    job.ErrorMessage,
		ErrorKind:       job.ErrorKind,
		NotBefore:       formatTime(job.NotBefore),
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
	if len(job.Options) > 0 {
		dto.Options = job.Options
	}
	if job.LastHeartbeat != nil {
		dto.LastHeartbeat = formatTime(*job.LastHeartbeat)
	}
	if r := job.Result; r != nil {
		dto.Result = &JobResult{
			ProjectID:     r.ProjectID,
			Status:        r.Status,
			ArtifactRef:   r.ArtifactRef,
			ArtifactURL:   r.ArtifactURL,
			Error:         r.Error,
			SegmentsCount: r.SegmentsCount,
			Duration:      r.Duration,
		}
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromProject converts a catalog project to its API representation.
func FromProject(project *catalog.Project) Project {
	if project == nil {
		return Project{}
	}
	return Project{
		ID:            project.ID,
		Owner:         project.Owner,
		Status:        string(project.Status),
		MediaPath:     project.MediaPath,
		MediaFilename: project.MediaFilename,
		ExportRef:     project.ExportRef,
		CreatedAt:     formatTime(project.CreatedAt),
		UpdatedAt:     formatTime(project.UpdatedAt),
	}
}

// FromProjects converts a slice of catalog projects.
func FromProjects(projects []*catalog.Project) []Project {
	out := make([]Project, 0, len(projects))
	for _, project := range projects {
		out = append(out, FromProject(project))
	}
	return out
}

// FromStatusSummary converts a workflow summary into its API form.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		BusyWorkers: summary.BusyWorkers,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
	}
	if summary.LastJob != nil {
		job := FromJob(summary.LastJob)
		status.LastJob = &job
	}
	return status
}

// MergeQueueStats returns counts for every state, zero-filled.
func MergeQueueStats(stats queue.Stats) map[string]int {
	out := map[string]int{
		string(queue.StateQueued):    0,
		string(queue.StateRunning):   0,
		string(queue.StateCompleted): 0,
		string(queue.StateFailed):    0,
	}
	for state, count := range stats {
		out[string(state)] += count
	}
	return out
}

// FromDependencies converts binary checks into API DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromLogEvents converts retained log events into API DTOs.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:      evt.Sequence,
			Timestamp:     formatTime(evt.Timestamp),
			Level:         evt.Level,
			Message:       evt.Message,
			Component:     evt.Component,
			JobID:         evt.JobID,
			ProjectID:     evt.ProjectID,
			JobKind:       evt.JobKind,
			CorrelationID: evt.CorrelationID,
			Fields:        evt.Fields,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
