package appctx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelsub/internal/api"
	"reelsub/internal/appctx"
	"reelsub/internal/catalog"
	"reelsub/internal/dispatch"
	"reelsub/internal/export"
	"reelsub/internal/media/ffprobe"
	"reelsub/internal/services"
	"reelsub/internal/subtitles"
	"reelsub/internal/testsupport"
	"reelsub/internal/transcription"
)

type scriptedTranscriber struct{}

func (scriptedTranscriber) Transcribe(context.Context, transcription.Request) (transcription.Result, error) {
	return transcription.Result{
		Language: "en",
		Segments: []subtitles.Segment{
			{Start: 0, End: 1, Text: "hello"},
			{Start: 1, End: 2, Text: "there"},
		},
		Duration: 2,
	}, nil
}

type videoProber struct{}

func (videoProber) Inspect(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Parse([]byte(`{"streams":[{"codec_type":"video"}],"format":{"duration":"2.0"}}`))
}

type unusedExporter struct{}

func (unusedExporter) Render(context.Context, export.Request) (export.Result, error) {
	return export.Result{}, errors.New("not expected")
}

func TestServicesRunUploadToSubtitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, err := appctx.New(cfg, nil,
		appctx.WithTranscriber(scriptedTranscriber{}),
		appctx.WithProber(videoProber{}),
		appctx.WithExporter(unusedExporter{}))
	if err != nil {
		t.Fatalf("appctx.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	ctx := context.Background()

	src := filepath.Join(cfg.Paths.TempDir, "temp_upload_talk.mp4")
	testsupport.WriteMP4(t, src, 64)
	project, err := svc.Intake.Register(ctx, dispatch.Upload{Owner: "frank", Filename: "talk.mp4", Path: src})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Dispatcher.Transcribe(ctx, project.ID, ""); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	mgr := svc.Workflow()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		current, err := svc.Catalog.GetProject(ctx, project.ID)
		if err != nil {
			t.Fatalf("GetProject: %v", err)
		}
		if current.Status == catalog.StatusCompleted {
			break
		}
		if current.Status == catalog.StatusFailed || time.Now().After(deadline) {
			t.Fatalf("project did not complete, status %s", current.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	router := svc.Router(func(context.Context) api.DaemonStatus { return api.DaemonStatus{} }, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects/"+project.ID+"/subtitles", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("subtitle download status %d: %s", rec.Code, rec.Body.String())
	}
	want := "1\n00:00:00,000 --> 00:00:01,000\nhello\n\n2\n00:00:01,000 --> 00:00:02,000\nthere\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected srt %q", rec.Body.String())
	}
}

func TestNewRequiresSigningKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Export.SigningKey = ""
	_, err := appctx.New(cfg, nil)
	if err == nil {
		t.Fatal("expected missing signing key to fail")
	}
	if services.Classify(err) != services.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "signing_key") {
		t.Fatalf("expected error to name the setting, got %v", err)
	}
}
