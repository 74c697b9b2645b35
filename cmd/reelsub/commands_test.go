package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"reelsub/internal/api"
	"reelsub/internal/subtitles"
	"reelsub/internal/testsupport"
)

func addProject(t *testing.T, env *cliTestEnv, owner string) api.Project {
	t.Helper()
	out := env.mustRun(t, "project", "add", env.writeVideo(t, "clip.mp4"), "--owner", owner, "--json")
	var project api.Project
	if err := json.Unmarshal([]byte(out), &project); err != nil {
		t.Fatalf("decode project: %v\n%s", err, out)
	}
	return project
}

func TestProjectAddListShow(t *testing.T) {
	env := setupCLITestEnv(t)

	project := addProject(t, env, "alice")
	if project.ID == "" || project.Status != "uploading" || project.MediaFilename != "clip.mp4" {
		t.Fatalf("unexpected project %#v", project)
	}

	list := env.mustRun(t, "project", "list", "--owner", "alice")
	if !strings.Contains(list, project.ID) || !strings.Contains(list, "uploading") {
		t.Fatalf("project missing from list:\n%s", list)
	}
	if other := env.mustRun(t, "project", "list", "--owner", "bob"); !strings.Contains(other, "No projects") {
		t.Fatalf("expected empty list for other owner, got:\n%s", other)
	}

	show := env.mustRun(t, "project", "show", project.ID)
	for _, want := range []string{"Owner:     alice", "Subtitles: no", "File:      clip.mp4"} {
		if !strings.Contains(show, want) {
			t.Fatalf("show output missing %q:\n%s", want, show)
		}
	}
}

func TestProjectAddRejectsNonVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(testsupport.BaseDir(env.cfg), "notes.mp4")
	if err := os.WriteFile(path, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.run(t, "project", "add", path, "--owner", "alice"); err == nil {
		t.Fatal("expected text file to be rejected")
	}
}

func TestTranscribeQueuesOnceAndJobsListShows(t *testing.T) {
	env := setupCLITestEnv(t)
	project := addProject(t, env, "alice")

	out := env.mustRun(t, "transcribe", project.ID, "--json")
	var job api.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode job: %v\n%s", err, out)
	}
	if job.Kind != "transcribe" || job.State != "queued" || job.ProjectID != project.ID {
		t.Fatalf("unexpected job %#v", job)
	}

	if _, _, err := env.run(t, "transcribe", project.ID); err == nil {
		t.Fatal("expected second transcribe to be rejected")
	}

	list := env.mustRun(t, "jobs", "list", "--state", "queued")
	if !strings.Contains(list, job.ID) {
		t.Fatalf("queued job missing from list:\n%s", list)
	}
	if empty := env.mustRun(t, "jobs", "list", "--state", "failed"); !strings.Contains(empty, "No jobs") {
		t.Fatalf("expected no failed jobs, got:\n%s", empty)
	}
	if _, _, err := env.run(t, "jobs", "list", "--state", "bogus"); err == nil {
		t.Fatal("expected unknown state to be rejected")
	}

	show := env.mustRun(t, "jobs", "show", job.ID)
	if !strings.Contains(show, "State:     queued") || !strings.Contains(show, "Project:   "+project.ID) {
		t.Fatalf("unexpected job detail:\n%s", show)
	}

	projectShow := env.mustRun(t, "project", "show", project.ID)
	if !strings.Contains(projectShow, "Status:    processing") || !strings.Contains(projectShow, "Active:    transcribe job "+job.ID) {
		t.Fatalf("expected project to be processing with active job:\n%s", projectShow)
	}
}

func TestExportRequiresCompletedProject(t *testing.T) {
	env := setupCLITestEnv(t)
	project := addProject(t, env, "alice")

	_, _, err := env.run(t, "export", project.ID)
	if err == nil || !strings.Contains(err.Error(), "completed") {
		t.Fatalf("expected completed-status error, got %v", err)
	}
	if _, _, err := env.run(t, "export", project.ID, "--options", "{}", "--options-file", "x.json"); err == nil {
		t.Fatal("expected conflicting option flags to fail")
	}
}

func TestSubtitlesGetAndEdit(t *testing.T) {
	env := setupCLITestEnv(t)
	project := addProject(t, env, "alice")

	segments := []subtitles.Segment{
		{Start: 0, End: 1.5, Text: "helo"},
		{Start: 1.5, End: 3, Text: "world"},
	}
	svc := env.services(t)
	if _, err := svc.Catalog.ReplaceSubtitle(context.Background(), project.ID, subtitles.NewDocument("", "en", segments, 3)); err != nil {
		t.Fatalf("ReplaceSubtitle: %v", err)
	}

	srt := env.mustRun(t, "subtitles", "get", project.ID)
	if srt != subtitles.Serialize(subtitles.Reindex(subtitles.Clone(segments))) {
		t.Fatalf("unexpected srt:\n%q", srt)
	}

	env.mustRun(t, "subtitles", "edit", project.ID, "--segment", "0=hello")
	edited, err := subtitles.Parse(env.mustRun(t, "subtitles", "get", project.ID))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if edited[0].Text != "hello" || edited[0].Start != 0 || edited[0].End != 1.5 || edited[1].Text != "world" {
		t.Fatalf("unexpected edited segments %#v", edited)
	}

	target := filepath.Join(testsupport.BaseDir(env.cfg), "out.json")
	env.mustRun(t, "subtitles", "get", project.ID, "--format", "json", "--output", target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	doc, err := subtitles.UnmarshalDocument(data)
	if err != nil {
		t.Fatalf("UnmarshalDocument: %v", err)
	}
	if doc.Language != "en" || doc.Text != "hello world" {
		t.Fatalf("unexpected document %#v", doc)
	}

	if _, _, err := env.run(t, "subtitles", "edit", project.ID, "--segment", "9=nope"); err == nil {
		t.Fatal("expected out-of-range edit to fail")
	}
	if _, _, err := env.run(t, "subtitles", "get", project.ID, "--format", "vtt"); err == nil {
		t.Fatal("expected unsupported format to fail")
	}
}

func TestProjectRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	project := addProject(t, env, "alice")
	env.mustRun(t, "transcribe", project.ID)

	if _, _, err := env.run(t, "project", "remove", project.ID); err == nil {
		t.Fatal("expected removal of a busy project to fail")
	}

	other := addProject(t, env, "bob")
	out := env.mustRun(t, "project", "remove", other.ID)
	if !strings.Contains(out, "Removed project "+other.ID) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, _, err := env.run(t, "project", "show", other.ID); err == nil {
		t.Fatal("expected removed project to be gone")
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.BlobDir, "bob", other.ID+".mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected media blob removed, stat err %v", err)
	}
}

func TestJobsClearRequiresFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "jobs", "clear"); err == nil {
		t.Fatal("expected clear without --finished to fail")
	}
	out := env.mustRun(t, "jobs", "clear", "--finished")
	if !strings.Contains(out, "Cleared 0 finished job(s)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSweepRemovesStaleEntries(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := filepath.Join(env.cfg.Paths.TempDir, env.cfg.Cleanup.Prefix+"old.wav")
	testsupport.WriteFile(t, stale, 16)
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(env.cfg.Paths.TempDir, env.cfg.Cleanup.Prefix+"new.wav")
	testsupport.WriteFile(t, fresh, 16)

	list := env.mustRun(t, "sweep", "--list")
	if !strings.Contains(list, filepath.Base(stale)) || !strings.Contains(list, filepath.Base(fresh)) {
		t.Fatalf("expected both entries listed:\n%s", list)
	}

	out := env.mustRun(t, "sweep")
	if !strings.Contains(out, "1 removed") {
		t.Fatalf("unexpected sweep output:\n%s", out)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale entry still present: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh entry removed: %v", err)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.mustRun(t, "status")
	for _, want := range []string{"Daemon:", "Not running", "Transcription API:", "Reachable", "FFmpeg", "Queue is empty"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	if out := env.mustRun(t, "stop"); !strings.Contains(out, "Daemon is not running") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	if out := env.mustRun(t, "test-notify"); !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseSegmentEdits(t *testing.T) {
	edits, err := parseSegmentEdits([]string{"0=hi", "3=two\\nlines", "1=a=b"})
	if err != nil {
		t.Fatalf("parseSegmentEdits: %v", err)
	}
	want := map[int]string{0: "hi", 3: "two\nlines", 1: "a=b"}
	if !reflect.DeepEqual(edits, want) {
		t.Fatalf("got %#v want %#v", edits, want)
	}
	for _, bad := range [][]string{{"nope"}, {"-1=x"}, {"x=y"}, {"0=a", "0=b"}} {
		if _, err := parseSegmentEdits(bad); err == nil {
			t.Errorf("expected %v to fail", bad)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("a  long\nmessage here", 8); got != "a long …" {
		t.Fatalf("got %q", got)
	}
}

func TestLogsFallsBackToFileWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	// Nothing listens on the configured bind.
	env.cfg.Paths.APIBind = "127.0.0.1:1"
	writeTestConfig(t, env.configPath, env.cfg)

	logPath := filepath.Join(env.cfg.Paths.LogDir, "reelsub-current.log")
	if err := os.WriteFile(logPath, []byte("{\"msg\":\"first\"}\n{\"msg\":\"second\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := env.mustRun(t, "logs", "-n", "1")
	if strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("unexpected logs output:\n%s", out)
	}
	if _, _, err := env.run(t, "logs", "--follow"); err == nil {
		t.Fatal("expected follow without daemon to fail")
	}
}

func TestFormatLogEvent(t *testing.T) {
	got := formatLogEvent(api.LogEvent{
		Timestamp: "2026-01-02T03:04:05.000Z",
		Level:     "info",
		Message:   "job completed",
		Component: "workflow",
		ProjectID: "p1",
		JobID:     "j1",
		Fields:    map[string]string{"segments": "3", "attempt": "1"},
	})
	want := "2026-01-02T03:04:05.000Z INFO [workflow] job completed project=p1 job=j1 attempt=1 segments=3"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}
