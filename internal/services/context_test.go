package services_test

import (
	"context"
	"testing"

	"reelsub/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithProjectID(ctx, "proj-9")
	ctx = services.WithJobKind(ctx, "transcribe")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if id, ok := services.ProjectIDFromContext(ctx); !ok || id != "proj-9" {
		t.Fatalf("unexpected project id: %v %v", id, ok)
	}
	if kind, ok := services.JobKindFromContext(ctx); !ok || kind != "transcribe" {
		t.Fatalf("unexpected kind: %v %v", kind, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected blank job id to be ignored")
	}
}
