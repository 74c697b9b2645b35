package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelsub/internal/blob"
	"reelsub/internal/catalog"
	"reelsub/internal/config"
	"reelsub/internal/export"
	"reelsub/internal/logging"
	"reelsub/internal/notifications"
	"reelsub/internal/queue"
	"reelsub/internal/services"
	"reelsub/internal/status"
	"reelsub/internal/subtitles"
	"reelsub/internal/testsupport"
	"reelsub/internal/transcription"
)

type fakeTranscriber struct {
	mu       sync.Mutex
	calls    []transcription.Request
	staged   []bool
	err      error
	block    bool
	segments []subtitles.Segment
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req transcription.Request) (transcription.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	_, statErr := os.Stat(req.MediaPath)
	f.staged = append(f.staged, statErr == nil)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return transcription.Result{}, ctx.Err()
	}
	if f.err != nil {
		return transcription.Result{}, f.err
	}
	return transcription.Result{Text: "hello there", Language: "en", Segments: f.segments, Duration: 2}, nil
}

type fakeExporter struct {
	requests []export.Request
	err      error
}

func (f *fakeExporter) Render(_ context.Context, req export.Request) (export.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return export.Result{}, f.err
	}
	ref := req.Owner + "/exports/export_test.mp4"
	return export.Result{ArtifactRef: ref, URL: "http://reelsub.test/blobs/" + ref + "?token=t"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) has(event notifications.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type fixture struct {
	cfg         *config.Config
	catalog     *catalog.Store
	queue       *queue.Store
	tracker     *status.Tracker
	blobs       *blob.FSStore
	transcriber *fakeTranscriber
	exporter    *fakeExporter
	notifier    *recordingNotifier
	manager     *Manager
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDatabase(t)
	f := &fixture{
		cfg:      cfg,
		catalog:  catalog.NewStore(db),
		queue:    queue.NewStore(db),
		blobs:    testsupport.NewBlobStore(t, cfg),
		exporter: &fakeExporter{},
		notifier: &recordingNotifier{},
		now:      time.Now().UTC(),
		transcriber: &fakeTranscriber{segments: []subtitles.Segment{
			{Start: 0, End: 1, Text: "hello"},
			{Start: 1, End: 2, Text: "there"},
		}},
	}
	f.queue.SetClock(func() time.Time { return f.now })
	f.tracker = status.NewTracker(f.catalog, nil)
	f.manager = NewManager(cfg, Dependencies{
		Queue:      f.queue,
		Catalog:    f.catalog,
		Tracker:    f.tracker,
		Transcribe: NewTranscribeExecutor(f.catalog, f.blobs, f.transcriber, cfg.Paths.TempDir, nil),
		Export:     NewExportExecutor(f.catalog, f.exporter),
		Notifier:   f.notifier,
	}, nil)
	return f
}

// processingProject creates a project with stored media, moves it to
// processing, and enqueues a transcribe job.
func (f *fixture) processingProject(t *testing.T) *catalog.Project {
	t.Helper()
	ctx := context.Background()
	project := testsupport.NewProject(t, f.catalog, "alice")
	key := "alice/" + project.ID + ".mp4"
	if _, err := f.blobs.Upload(ctx, key, []byte("video bytes")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := f.catalog.SetMedia(ctx, project.ID, key, "clip.mp4"); err != nil {
		t.Fatalf("SetMedia: %v", err)
	}
	if err := f.tracker.BeginTranscription(ctx, project.ID); err != nil {
		t.Fatalf("BeginTranscription: %v", err)
	}
	if _, err := f.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:        queue.KindTranscribe,
		ProjectID:   project.ID,
		MediaPath:   key,
		Options:     []byte(`{"language":"en"}`),
		MaxAttempts: f.cfg.Retry.TranscribeMaxAttempts,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	project, _ = f.catalog.GetProject(ctx, project.ID)
	return project
}

func (f *fixture) runNext(t *testing.T, ctx context.Context) *queue.Job {
	t.Helper()
	job, err := f.queue.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil {
		t.Fatal("expected a due job")
	}
	f.manager.processJob(ctx, logging.NewNop(), job)
	back, err := f.queue.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return back
}

func (f *fixture) projectStatus(t *testing.T, id string) catalog.Status {
	t.Helper()
	project, err := f.catalog.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	return project.Status
}

func TestTranscribeJobCompletesProject(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)

	job := f.runNext(t, context.Background())
	if job.State != queue.StateCompleted || job.Result == nil || job.Result.SegmentsCount != 2 {
		t.Fatalf("unexpected job %#v", job)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusCompleted {
		t.Fatalf("expected completed project, got %s", got)
	}
	sub, err := f.catalog.GetSubtitle(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("GetSubtitle: %v", err)
	}
	if !strings.HasPrefix(sub.SRTText, "1\n00:00:00,000 --> 00:00:01,000\nhello\n\n") || sub.Language != "en" {
		t.Fatalf("unexpected subtitle %#v", sub)
	}
	if len(f.transcriber.calls) != 1 || !f.transcriber.staged[0] || f.transcriber.calls[0].Language != "en" {
		t.Fatalf("unexpected transcriber calls %#v staged=%v", f.transcriber.calls, f.transcriber.staged)
	}
	if _, err := os.Stat(f.transcriber.calls[0].MediaPath); !os.IsNotExist(err) {
		t.Fatalf("expected staged media to be removed, got %v", err)
	}
	if !f.notifier.has(notifications.EventJobCompleted) || !f.notifier.has(notifications.EventQueueCompleted) {
		t.Fatalf("unexpected notifications %v", f.notifier.events)
	}
}

func TestTransientFailuresBackOffThenFail(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)
	f.transcriber.err = services.Wrap(services.ErrTransientProvider, "transcription", "request", "provider unavailable", nil)

	for i, want := range []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second} {
		job := f.runNext(t, context.Background())
		if job.State != queue.StateQueued || job.Attempt != i+1 || job.LastDelay != want {
			t.Fatalf("attempt %d: unexpected job state=%s attempt=%d delay=%s", i, job.State, job.Attempt, job.LastDelay)
		}
		if got := f.projectStatus(t, project.ID); got != catalog.StatusProcessing {
			t.Fatalf("attempt %d: expected processing, got %s", i, got)
		}
		if due, _ := f.queue.Claim(context.Background()); due != nil {
			t.Fatalf("attempt %d: retry should not be due yet", i)
		}
		f.now = f.now.Add(want)
	}

	job := f.runNext(t, context.Background())
	if job.State != queue.StateFailed || job.ErrorKind != string(services.KindTransient) {
		t.Fatalf("expected terminal failure, got state=%s kind=%s", job.State, job.ErrorKind)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusFailed {
		t.Fatalf("expected failed project, got %s", got)
	}
	if has, _ := f.catalog.HasSubtitle(context.Background(), project.ID); has {
		t.Fatal("failed job must not leave a subtitle")
	}
	if len(f.transcriber.calls) != 4 {
		t.Fatalf("expected four attempts, got %d", len(f.transcriber.calls))
	}
	if !f.notifier.has(notifications.EventJobFailed) {
		t.Fatalf("expected failure notification, got %v", f.notifier.events)
	}
}

func TestPermanentFailureFailsImmediately(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)
	f.transcriber.err = services.Wrap(services.ErrPermanentInput, "transcription", "request", "unsupported media", nil)

	job := f.runNext(t, context.Background())
	if job.State != queue.StateFailed || job.Attempt != 0 || job.ErrorKind != string(services.KindPermanent) {
		t.Fatalf("unexpected job %#v", job)
	}
	if job.Result == nil || !strings.Contains(job.Result.Error, "unsupported media") {
		t.Fatalf("expected error in result, got %#v", job.Result)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusFailed {
		t.Fatalf("expected failed project, got %s", got)
	}
}

func TestMissingMediaIsPermanent(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)
	if _, err := f.blobs.Delete(context.Background(), project.MediaPath); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	job := f.runNext(t, context.Background())
	if job.State != queue.StateFailed || job.ErrorKind != string(services.KindPermanent) {
		t.Fatalf("expected permanent failure, got state=%s kind=%s", job.State, job.ErrorKind)
	}
	if len(f.transcriber.calls) != 0 {
		t.Fatal("transcriber must not run without media")
	}
}

func TestStorageFailureRetriesOnce(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)
	f.transcriber.err = services.Wrap(services.ErrStorage, "blob", "read", "disk error", errors.New("eio"))

	job := f.runNext(t, context.Background())
	if job.State != queue.StateQueued || job.StorageFailures != 1 {
		t.Fatalf("expected one storage retry, got %#v", job)
	}
	f.now = f.now.Add(time.Hour)
	job = f.runNext(t, context.Background())
	if job.State != queue.StateFailed || job.ErrorKind != string(services.KindStorage) {
		t.Fatalf("expected storage failure to become terminal, got %#v", job)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusFailed {
		t.Fatalf("expected failed project, got %s", got)
	}
}

func TestHardLimitSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)
	f.manager.hardLimit = 20 * time.Millisecond
	f.transcriber.block = true

	job := f.runNext(t, context.Background())
	if job.State != queue.StateQueued || job.Attempt != 1 || job.ErrorKind != string(services.KindTransient) {
		t.Fatalf("expected transient retry after hard limit, got state=%s attempt=%d kind=%s", job.State, job.Attempt, job.ErrorKind)
	}
	if !strings.Contains(job.ErrorMessage, "hard time limit") {
		t.Fatalf("unexpected error message %q", job.ErrorMessage)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusProcessing {
		t.Fatalf("expected processing, got %s", got)
	}
}

func TestShutdownReleasesJob(t *testing.T) {
	f := newFixture(t)
	f.processingProject(t)
	f.transcriber.block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	job := f.runNext(t, ctx)
	if job.State != queue.StateQueued || job.Attempt != 0 {
		t.Fatalf("expected released job without attempt, got state=%s attempt=%d", job.State, job.Attempt)
	}
}

func (f *fixture) completedProject(t *testing.T) *catalog.Project {
	t.Helper()
	project := f.processingProject(t)
	if job := f.runNext(t, context.Background()); job.State != queue.StateCompleted {
		t.Fatalf("setup transcription failed: %#v", job)
	}
	if _, err := f.queue.Enqueue(context.Background(), queue.EnqueueRequest{
		Kind:        queue.KindExport,
		ProjectID:   project.ID,
		MediaPath:   project.MediaPath,
		Options:     []byte(`{"font_size":30}`),
		MaxAttempts: f.cfg.Retry.ExportMaxAttempts,
	}); err != nil {
		t.Fatalf("Enqueue export: %v", err)
	}
	return project
}

func TestExportJobRecordsArtifact(t *testing.T) {
	f := newFixture(t)
	project := f.completedProject(t)

	job := f.runNext(t, context.Background())
	if job.State != queue.StateCompleted || job.Result == nil || job.Result.ArtifactURL == "" {
		t.Fatalf("unexpected export job %#v", job)
	}
	stored, _ := f.catalog.GetProject(context.Background(), project.ID)
	if stored.Status != catalog.StatusCompleted || stored.ExportRef != "alice/exports/export_test.mp4" {
		t.Fatalf("unexpected project after export %#v", stored)
	}
	req := f.exporter.requests[0]
	if req.Options.FontSize != 30 || req.Options.FontFamily != "Arial" || len(req.Segments) != 2 || req.MediaKey != project.MediaPath {
		t.Fatalf("unexpected render request %#v", req)
	}
}

func TestExportFailureLeavesProjectCompleted(t *testing.T) {
	f := newFixture(t)
	project := f.completedProject(t)
	f.exporter.err = services.Wrap(services.ErrPermanentInput, "export", "render", "bad codec", nil)

	job := f.runNext(t, context.Background())
	if job.State != queue.StateFailed {
		t.Fatalf("expected failed export, got %s", job.State)
	}
	stored, _ := f.catalog.GetProject(context.Background(), project.ID)
	if stored.Status != catalog.StatusCompleted || stored.ExportRef != "" {
		t.Fatalf("export failure must not touch the project, got %#v", stored)
	}
}

func TestCheckSoftLimit(t *testing.T) {
	ctx := context.Background()
	if err := CheckSoftLimit(ctx, "step"); err != nil {
		t.Fatalf("no deadline should pass, got %v", err)
	}
	if err := CheckSoftLimit(withSoftDeadline(ctx, time.Now().Add(time.Hour)), "step"); err != nil {
		t.Fatalf("future deadline should pass, got %v", err)
	}
	err := CheckSoftLimit(withSoftDeadline(ctx, time.Now().Add(-time.Second)), "step")
	if services.Classify(err) != services.KindTransient {
		t.Fatalf("expected transient soft-limit error, got %v", err)
	}
}

func TestStartRequiresExecutors(t *testing.T) {
	f := newFixture(t)
	empty := NewManager(f.cfg, Dependencies{Queue: f.queue, Catalog: f.catalog, Tracker: f.tracker, Notifier: f.notifier}, nil)
	if err := empty.Start(context.Background()); err == nil {
		t.Fatal("expected start without executors to fail")
	}
}

func TestWorkersDrainQueue(t *testing.T) {
	f := newFixture(t)
	f.manager.pollInterval = 10 * time.Millisecond
	f.queue.SetClock(time.Now)
	projects := []*catalog.Project{f.processingProject(t), f.processingProject(t), f.processingProject(t)}

	if err := f.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.manager.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err := f.queue.Stats(context.Background())
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats[queue.StateCompleted] == len(projects) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d jobs completed", stats[queue.StateCompleted], len(projects))
		}
		time.Sleep(10 * time.Millisecond)
	}
	for _, p := range projects {
		if got := f.projectStatus(t, p.ID); got != catalog.StatusCompleted {
			t.Fatalf("project %s: expected completed, got %s", p.ID, got)
		}
	}
	if summary := f.manager.Status(context.Background()); !summary.Running || summary.Workers != f.cfg.Workers.Count {
		t.Fatalf("unexpected summary %#v", summary)
	}
	entries, _ := os.ReadDir(f.cfg.Paths.TempDir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "temp_media_") {
			t.Fatalf("staged media left behind: %s", filepath.Join(f.cfg.Paths.TempDir, entry.Name()))
		}
	}
}

// flakyTracker fails the first completeFailures Complete calls with a
// storage error before delegating.
type flakyTracker struct {
	*status.Tracker
	completeFailures int
}

func (f *flakyTracker) Complete(ctx context.Context, projectID string) error {
	if f.completeFailures > 0 {
		f.completeFailures--
		return services.Wrap(services.ErrStorage, "catalog", "set status", "database operation failed", errors.New("database is locked"))
	}
	return f.Tracker.Complete(ctx, projectID)
}

func TestStatusWriteFailureRetriesJob(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)
	f.manager.tracker = &flakyTracker{Tracker: f.tracker, completeFailures: 1}

	job := f.runNext(t, context.Background())
	if job.State != queue.StateQueued || job.StorageFailures != 1 || job.ErrorKind != string(services.KindStorage) {
		t.Fatalf("expected storage retry after status write failure, got state=%s storage=%d kind=%s", job.State, job.StorageFailures, job.ErrorKind)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusProcessing {
		t.Fatalf("expected processing while the retry is pending, got %s", got)
	}

	f.now = f.now.Add(time.Hour)
	job = f.runNext(t, context.Background())
	if job.State != queue.StateCompleted {
		t.Fatalf("expected retried job to complete, got %s", job.State)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusCompleted {
		t.Fatalf("expected completed project, got %s", got)
	}
	if len(f.transcriber.calls) != 2 {
		t.Fatalf("expected two transcription attempts, got %d", len(f.transcriber.calls))
	}
}

func TestRetryBudgetComesFromJob(t *testing.T) {
	f := newFixture(t)
	f.processingProject(t)
	f.transcriber.err = services.Wrap(services.ErrTransientProvider, "transcription", "request", "provider unavailable", nil)
	policy := f.manager.policies[queue.KindTranscribe]
	policy.MaxAttempts = 0
	f.manager.policies[queue.KindTranscribe] = policy

	job := f.runNext(t, context.Background())
	if job.State != queue.StateQueued || job.Attempt != 1 || job.MaxAttempts != f.cfg.Retry.TranscribeMaxAttempts {
		t.Fatalf("expected enqueued retry budget to apply, got state=%s attempt=%d max=%d", job.State, job.Attempt, job.MaxAttempts)
	}
}

func TestLostClaimAbandonsAttempt(t *testing.T) {
	f := newFixture(t)
	project := f.processingProject(t)
	f.transcriber.block = true
	f.manager.heartbeat.heartbeatInterval = 10 * time.Millisecond

	first, err := f.queue.Claim(context.Background())
	if err != nil || first == nil {
		t.Fatalf("Claim: %v %v", first, err)
	}
	if _, err := f.queue.ReclaimStale(context.Background(), f.now.Add(time.Hour)); err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	second, err := f.queue.Claim(context.Background())
	if err != nil || second == nil || second.ID != first.ID {
		t.Fatalf("expected the job to be claimed again, got %v %v", second, err)
	}

	done := make(chan struct{})
	go func() {
		f.manager.processJob(context.Background(), logging.NewNop(), first)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stale attempt was not abandoned")
	}

	job, err := f.queue.Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.State != queue.StateRunning || job.Attempt != 0 || job.ClaimToken != second.ClaimToken {
		t.Fatalf("expected job to stay with the second claim, got state=%s attempt=%d", job.State, job.Attempt)
	}
	if got := f.projectStatus(t, project.ID); got != catalog.StatusProcessing {
		t.Fatalf("expected processing, got %s", got)
	}
}
