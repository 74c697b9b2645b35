package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"reelsub/internal/api"
	"reelsub/internal/appctx"
	"reelsub/internal/config"
	"reelsub/internal/daemon"
	"reelsub/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	svc, err := appctx.New(cfg, nil)
	if err != nil {
		t.Fatalf("appctx.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	d, err := daemon.New(cfg, daemon.Options{
		Workflow: svc.Workflow(),
		Sweeper:  svc.Sweeper(),
		API: func(d *daemon.Daemon) http.Handler {
			return svc.Router(d.APIStatus, nil)
		},
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || status.DatabasePath != cfg.DatabasePath() || status.APIAddress == "" {
		t.Fatalf("unexpected status %#v", status)
	}

	resp, err := http.Get("http://" + status.APIAddress + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	var payload api.DaemonStatus
	err = json.NewDecoder(resp.Body).Decode(&payload)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Running || !payload.Workflow.Running || payload.Workflow.Workers != cfg.Workers.Count {
		t.Fatalf("unexpected api status %#v", payload)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	cfg2 := *cfg
	cfg2.Paths.APIBind = ""
	second := newDaemon(t, &cfg2)
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to be rejected by the lock")
	}
}

func TestDaemonPreflightRejectsMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	cfg.Paths.LogDir = cfg.Paths.LogDir + "-missing"

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected preflight failure")
	}
	if d.Running() {
		t.Fatal("daemon should not run after preflight failure")
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d := newDaemon(t, testsupport.NewConfig(t))
	sent, message, err := d.TestNotification(context.Background())
	if err != nil || sent || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result %v %q %v", sent, message, err)
	}
}
