package logs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"reelsub/internal/api"
)

func TestStreamClientFetchEncodesQuery(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Sequence: 4, Message: "job completed", ProjectID: "p1"}},
			Next:   5,
		})
	}))
	defer srv.Close()

	client, err := NewStreamClient(strings.TrimPrefix(srv.URL, "http://"), "secret")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	resp, err := client.Fetch(context.Background(), StreamQuery{Since: 3, Limit: 10, Follow: true, ProjectID: "p1", Component: "workflow"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Next != 5 || len(resp.Events) != 1 || resp.Events[0].Message != "job completed" {
		t.Fatalf("unexpected response %#v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	for _, want := range []string{"since=3", "limit=10", "follow=1", "project=p1", "component=workflow"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestStreamClientReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
	}))
	defer srv.Close()

	client, _ := NewStreamClient(srv.URL, "")
	_, err := client.Fetch(context.Background(), StreamQuery{})
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if IsAPIUnavailable(err) {
		t.Fatal("a rejected request is not an unavailable API")
	}
}

func TestNilClientIsUnavailable(t *testing.T) {
	client, err := NewStreamClient(" ", "")
	if err != nil || client != nil {
		t.Fatalf("expected nil client, got %v %v", client, err)
	}
	_, err = client.Fetch(context.Background(), StreamQuery{})
	if !errors.Is(err, ErrAPIUnavailable) || !IsAPIUnavailable(err) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
}

func TestClosedServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, _ := NewStreamClient(addr, "")
	if _, err := client.Fetch(context.Background(), StreamQuery{}); !IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestTail(t *testing.T) {
	dir := t.TempDir()
	path := CurrentLogPath(dir)
	if lines, err := Tail(path, 5); err != nil || lines != nil {
		t.Fatalf("expected nothing for missing file, got %v %v", lines, err)
	}

	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"three", "four"}) {
		t.Fatalf("unexpected lines %v", lines)
	}
	all, err := Tail(path, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("expected all lines, got %v %v", all, err)
	}

	if _, err := Tail(filepath.Dir(path), 1); err == nil {
		t.Fatal("expected directory to be rejected")
	}
}
