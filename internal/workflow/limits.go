package workflow

import (
	"context"
	"time"

	"reelsub/internal/services"
)

type softDeadlineKey struct{}

// withSoftDeadline records the point after which an attempt should not start
// new steps.
func withSoftDeadline(ctx context.Context, deadline time.Time) context.Context {
	return context.WithValue(ctx, softDeadlineKey{}, deadline)
}

// CheckSoftLimit returns a transient error once the attempt has passed its
// soft deadline, or the context error if it was cancelled. Executors call it
// between steps.
func CheckSoftLimit(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Value(softDeadlineKey{}).(time.Time)
	if !ok || deadline.IsZero() {
		return nil
	}
	if time.Now().After(deadline) {
		return services.Wrap(services.ErrTransientProvider, "workflow", step, "soft time limit reached", nil)
	}
	return nil
}
