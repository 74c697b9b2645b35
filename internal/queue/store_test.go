package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reelsub/internal/catalog"
	"reelsub/internal/database"
	"reelsub/internal/queue"
	"reelsub/internal/testsupport"
)

type fixture struct {
	db      *database.DB
	catalog *catalog.Store
	store   *queue.Store
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.MustOpenDatabase(t)
	f := &fixture{
		db:      db,
		catalog: catalog.NewStore(db),
		store:   queue.NewStore(db),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) project(t *testing.T) string {
	t.Helper()
	return testsupport.NewProject(t, f.catalog, "alice").ID
}

func (f *fixture) enqueue(t *testing.T, projectID string) *queue.Job {
	t.Helper()
	job, err := f.store.Enqueue(context.Background(), queue.EnqueueRequest{
		Kind:        queue.KindTranscribe,
		ProjectID:   projectID,
		MediaPath:   "alice/uploads/source.mp4",
		Options:     []byte(`{"language":"en"}`),
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

func (f *fixture) claim(t *testing.T) *queue.Job {
	t.Helper()
	job, err := f.store.Claim(context.Background())
	if err != nil || job == nil {
		t.Fatalf("Claim: expected a job, got %#v %v", job, err)
	}
	return job
}

func TestEnqueueRejectsBusyProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	projectID := f.project(t)

	job := f.enqueue(t, projectID)
	if job.State != queue.StateQueued || job.Attempt != 0 || job.MaxAttempts != 3 {
		t.Fatalf("unexpected job %#v", job)
	}
	msg := job.Message()
	if msg.Kind != queue.KindTranscribe || msg.ProjectID != projectID || string(msg.Options) != `{"language":"en"}` {
		t.Fatalf("unexpected message %#v", msg)
	}

	_, err := f.store.Enqueue(ctx, queue.EnqueueRequest{Kind: queue.KindExport, ProjectID: projectID})
	if !errors.Is(err, queue.ErrProjectBusy) {
		t.Fatalf("expected ErrProjectBusy, got %v", err)
	}

	active, err := f.store.ActiveForProject(ctx, projectID)
	if err != nil || active == nil || active.ID != job.ID {
		t.Fatalf("expected active job %s, got %#v %v", job.ID, active, err)
	}

	other := f.project(t)
	if _, err := f.store.Enqueue(ctx, queue.EnqueueRequest{Kind: queue.KindExport, ProjectID: other}); err != nil {
		t.Fatalf("expected other project to accept a job: %v", err)
	}
}

func TestEnqueueAfterTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	projectID := f.project(t)

	f.enqueue(t, projectID)
	job := f.claim(t)
	if err := f.store.Complete(ctx, job, queue.Result{ProjectID: projectID, Status: "completed", SegmentsCount: 3}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	done, err := f.store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if done.State != queue.StateCompleted || done.Result == nil || done.Result.SegmentsCount != 3 {
		t.Fatalf("unexpected completed job %#v", done)
	}
	f.enqueue(t, projectID)
}

func TestClaimIsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.enqueue(t, f.project(t))
	}

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := f.store.Claim(ctx)
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if job == nil {
				return
			}
			mu.Lock()
			claimed[job.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(claimed) != 3 {
		t.Fatalf("expected 3 distinct claims, got %d", len(claimed))
	}
	for id, count := range claimed {
		if count != 1 {
			t.Fatalf("job %s claimed %d times", id, count)
		}
	}
	job, err := f.store.Claim(ctx)
	if err != nil || job != nil {
		t.Fatalf("expected empty queue, got %#v %v", job, err)
	}
}

func TestScheduleRetryDelaysClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	projectID := f.project(t)
	job := f.enqueue(t, projectID)

	claimed, err := f.store.Claim(ctx)
	if err != nil || claimed == nil || claimed.State != queue.StateRunning {
		t.Fatalf("expected running job, got %#v %v", claimed, err)
	}
	if claimed.LastHeartbeat == nil || claimed.ClaimToken == "" {
		t.Fatalf("expected heartbeat and claim token to be set on claim, got %#v", claimed)
	}

	if err := f.store.ScheduleRetry(ctx, claimed, queue.RetryRequest{
		Delay:        60 * time.Second,
		ErrorMessage: "provider timeout",
		ErrorKind:    "transient",
	}); err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}

	retried, err := f.store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if retried.State != queue.StateQueued || retried.Attempt != 1 || retried.LastDelay != time.Minute {
		t.Fatalf("unexpected retried job %#v", retried)
	}
	if retried.ClaimToken != "" {
		t.Fatalf("expected claim token to be cleared, got %q", retried.ClaimToken)
	}
	if retried.ErrorKind != "transient" || retried.ErrorMessage != "provider timeout" {
		t.Fatalf("expected error details to be kept, got %#v", retried)
	}

	if early, err := f.store.Claim(ctx); err != nil || early != nil {
		t.Fatalf("expected no claim before delay, got %#v %v", early, err)
	}

	f.now = f.now.Add(61 * time.Second)
	again, err := f.store.Claim(ctx)
	if err != nil || again == nil || again.ID != job.ID || again.Attempt != 1 {
		t.Fatalf("expected retried job to be claimable, got %#v %v", again, err)
	}

	if again.ClaimToken == claimed.ClaimToken {
		t.Fatal("expected a new claim token for the second claim")
	}
	if err := f.store.ScheduleRetry(ctx, again, queue.RetryRequest{Delay: time.Second, StorageFailure: true}); err != nil {
		t.Fatalf("ScheduleRetry storage: %v", err)
	}
	storage, _ := f.store.Get(ctx, job.ID)
	if storage.StorageFailures != 1 || storage.Attempt != 2 {
		t.Fatalf("expected storage failure counted, got %#v", storage)
	}
}

func TestTransitionsRequireRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.enqueue(t, f.project(t))

	if err := f.store.Complete(ctx, job, queue.Result{}); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for queued job, got %v", err)
	}
	if err := f.store.UpdateHeartbeat(ctx, job); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning heartbeat, got %v", err)
	}
	claimed := f.claim(t)
	if err := f.store.Complete(ctx, job, queue.Result{}); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning without the claim token, got %v", err)
	}
	if err := f.store.Fail(ctx, claimed, queue.Result{Status: "failed", Error: "bad media"}, "permanent"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	failed, _ := f.store.Get(ctx, job.ID)
	if failed.State != queue.StateFailed || failed.ErrorKind != "permanent" || failed.ErrorMessage != "bad media" {
		t.Fatalf("unexpected failed job %#v", failed)
	}
	if err := f.store.Fail(ctx, claimed, queue.Result{}, "permanent"); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected second fail to be rejected, got %v", err)
	}
	if _, err := f.store.Get(ctx, "missing"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestReclaimStaleKeepsAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enqueue(t, f.project(t))
	job := f.claim(t)

	f.now = f.now.Add(time.Minute)
	if err := f.store.UpdateHeartbeat(ctx, job); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}
	reclaimed, err := f.store.ReclaimStale(ctx, f.now.Add(-2*time.Minute))
	if err != nil || reclaimed != 0 {
		t.Fatalf("expected fresh job to stay running, got %d %v", reclaimed, err)
	}

	f.now = f.now.Add(10 * time.Minute)
	reclaimed, err = f.store.ReclaimStale(ctx, f.now.Add(-2*time.Minute))
	if err != nil || reclaimed != 1 {
		t.Fatalf("expected one reclaimed job, got %d %v", reclaimed, err)
	}
	back, _ := f.store.Get(ctx, job.ID)
	if back.State != queue.StateQueued || back.Attempt != 0 || back.LastHeartbeat != nil || back.ClaimToken != "" {
		t.Fatalf("unexpected reclaimed job %#v", back)
	}
}

func TestReclaimedClaimIsFenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enqueue(t, f.project(t))
	stale := f.claim(t)

	f.now = f.now.Add(10 * time.Minute)
	reclaimed, err := f.store.ReclaimStale(ctx, f.now.Add(-2*time.Minute))
	if err != nil || reclaimed != 1 {
		t.Fatalf("expected one reclaimed job, got %d %v", reclaimed, err)
	}
	current := f.claim(t)
	if current.ID != stale.ID {
		t.Fatalf("expected the reclaimed job to be claimed again, got %s", current.ID)
	}

	if err := f.store.UpdateHeartbeat(ctx, stale); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected stale heartbeat to be rejected, got %v", err)
	}
	if err := f.store.Complete(ctx, stale, queue.Result{Status: "completed"}); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected stale complete to be rejected, got %v", err)
	}
	if err := f.store.ScheduleRetry(ctx, stale, queue.RetryRequest{Delay: time.Minute}); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected stale retry to be rejected, got %v", err)
	}
	if err := f.store.Release(ctx, stale); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected stale release to be rejected, got %v", err)
	}

	if err := f.store.UpdateHeartbeat(ctx, current); err != nil {
		t.Fatalf("UpdateHeartbeat current claim: %v", err)
	}
	if err := f.store.Complete(ctx, current, queue.Result{Status: "completed"}); err != nil {
		t.Fatalf("Complete current claim: %v", err)
	}
	done, _ := f.store.Get(ctx, current.ID)
	if done.State != queue.StateCompleted || done.Attempt != 0 {
		t.Fatalf("unexpected finished job %#v", done)
	}
}

func TestReleaseRequeuesWithoutAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enqueue(t, f.project(t))
	job := f.claim(t)
	if err := f.store.Release(ctx, job); err != nil {
		t.Fatalf("Release: %v", err)
	}
	back, _ := f.store.Get(ctx, job.ID)
	if back.State != queue.StateQueued || back.Attempt != 0 {
		t.Fatalf("unexpected released job %#v", back)
	}
	if err := f.store.Release(ctx, job); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for queued job, got %v", err)
	}
}

func TestStatsListAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.enqueue(t, f.project(t))
	f.now = f.now.Add(time.Second)
	second := f.enqueue(t, f.project(t))

	if claimed := f.claim(t); claimed.ID != first.ID {
		t.Fatalf("expected oldest job to be claimed first, got %s", claimed.ID)
	} else if err := f.store.Complete(ctx, claimed, queue.Result{Status: "completed"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	stats, err := f.store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StateCompleted] != 1 || stats[queue.StateQueued] != 1 || stats.Total() != 2 {
		t.Fatalf("unexpected stats %#v", stats)
	}

	jobs, err := f.store.List(ctx, queue.ListFilter{})
	if err != nil || len(jobs) != 2 || jobs[0].ID != second.ID {
		t.Fatalf("expected newest first, got %v %v", jobs, err)
	}
	queued, err := f.store.List(ctx, queue.ListFilter{States: []queue.State{queue.StateQueued}})
	if err != nil || len(queued) != 1 || queued[0].ID != second.ID {
		t.Fatalf("unexpected filtered list %v %v", queued, err)
	}

	cleared, err := f.store.ClearFinished(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("expected one cleared job, got %d %v", cleared, err)
	}
	if _, err := f.store.Get(ctx, first.ID); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected cleared job to be gone, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if kind, err := queue.ParseKind(" Export "); err != nil || kind != queue.KindExport {
		t.Fatalf("unexpected kind %q %v", kind, err)
	}
	if _, err := queue.ParseKind("rip"); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}
