package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelsub/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrStorage, "blob", "upload", "write failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"blob", "upload", "write failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"transient", services.Wrap(services.ErrTransientProvider, "stt", "post", "503", nil), services.KindTransient},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), services.KindTransient},
		{"permanent", services.Wrap(services.ErrPermanentInput, "stt", "post", "corrupt", nil), services.KindPermanent},
		{"storage", services.Wrap(services.ErrStorage, "blob", "download", "", errors.New("io")), services.KindStorage},
		{"validation", services.Wrap(services.ErrValidation, "intake", "", "too large", nil), services.KindValidation},
		{"transition", fmt.Errorf("x: %w", services.ErrInvalidTransition), services.KindInvalidTransition},
		{"plain", errors.New("mystery"), services.KindUnknown},
		{"nil", nil, services.KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPermanentWinsOverDeadline(t *testing.T) {
	err := services.Wrap(services.ErrPermanentInput, "ffmpeg", "burn", "invalid data", context.DeadlineExceeded)
	if got := services.Classify(err); got != services.KindPermanent {
		t.Fatalf("expected permanent, got %q", got)
	}
}

func TestDeadlineWinsOverStorage(t *testing.T) {
	write := services.Wrap(services.ErrStorage, "catalog", "replace subtitle", "database operation failed", context.DeadlineExceeded)
	if got := services.Classify(write); got != services.KindTransient {
		t.Fatalf("expected deadline during a storage call to be transient, got %q", got)
	}
	limit := services.Wrap(services.ErrTransientProvider, "workflow", "execute", "hard time limit reached",
		services.Wrap(services.ErrStorage, "blob", "fetch", "copy failed", errors.New("io")))
	if got := services.Classify(limit); got != services.KindTransient {
		t.Fatalf("expected hard limit rewrap to be transient, got %q", got)
	}
}

func TestDetailsExtractsFields(t *testing.T) {
	cause := errors.New("disk full")
	err := services.WithHint(services.Wrap(services.ErrStorage, "blob", "upload", "write", cause), "check blob_dir space")
	details := services.Details(err)
	if details.Kind != services.KindStorage {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Component != "blob" || details.Operation != "upload" || details.Message != "write" {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.Hint != "check blob_dir space" {
		t.Fatalf("unexpected hint %q", details.Hint)
	}
	if !errors.Is(details.Cause, cause) {
		t.Fatalf("expected cause to be preserved")
	}
}
