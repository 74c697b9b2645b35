package daemonctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"reelsub/internal/api"
	"reelsub/internal/daemonrun"
	"reelsub/internal/testsupport"
)

func TestProcessInfo(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	running, pid, err := ProcessInfo(cfg)
	if err != nil || running || pid != 0 {
		t.Fatalf("expected no daemon without pid file, got %v %d %v", running, pid, err)
	}

	if err := os.WriteFile(daemonrun.PIDPath(cfg), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	running, pid, err = ProcessInfo(cfg)
	if err != nil || !running || pid != os.Getpid() {
		t.Fatalf("expected own pid to be live, got %v %d %v", running, pid, err)
	}

	if err := os.WriteFile(daemonrun.PIDPath(cfg), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if running, _, err := ProcessInfo(cfg); err != nil || running {
		t.Fatalf("expected garbage pid file to read as stopped, got %v %v", running, err)
	}
}

func TestClientStatusSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
			return
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 7})
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = strings.TrimPrefix(srv.URL, "http://")
	cfg.Paths.APIToken = "tok"
	status, err := NewClient(cfg).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != 7 {
		t.Fatalf("unexpected status %#v", status)
	}

	cfg.Paths.APIToken = "wrong"
	if _, err := NewClient(cfg).Status(context.Background()); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch(" ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable")
	}
}
