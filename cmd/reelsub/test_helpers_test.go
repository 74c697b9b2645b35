package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelsub/internal/appctx"
	"reelsub/internal/config"
	"reelsub/internal/media/ffprobe"
	"reelsub/internal/testsupport"
)

type videoProber struct{}

func (videoProber) Inspect(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Parse([]byte(`{"streams":[{"codec_type":"video"}],"format":{"duration":"3.0"}}`))
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(provider.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithTranscriptionURL(provider.URL))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelsub.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// run executes the CLI against the env config and returns stdout, stderr.
func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	configFlag := ""
	ctx := newCommandContext(&configFlag)
	ctx.serviceOptions = []appctx.Option{appctx.WithProber(videoProber{})}
	root := buildRootCommand(ctx)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("reelsub %v: %v\nstdout: %s\nstderr: %s", args, err, out, errOut)
	}
	return out
}

// services opens a second service context on the same database.
func (e *cliTestEnv) services(t *testing.T) *appctx.Services {
	t.Helper()
	svc, err := appctx.New(e.cfg, nil, appctx.WithProber(videoProber{}))
	if err != nil {
		t.Fatalf("appctx.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func (e *cliTestEnv) writeVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(e.cfg), "incoming", name)
	testsupport.WriteMP4(t, path, 256)
	return path
}
