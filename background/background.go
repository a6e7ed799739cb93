// Package background launches detached fire-and-forget tasks.
package background

import (
	"context"
	"log/slog"
	"time"
)

const DefaultTimeout = 5 * time.Second

// Go runs fn on its own goroutine with a fresh context, so it outlives the
// request that started it. Nobody waits for it; errors and panics are logged
// and dropped.
func Go(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "task", name, "panic", r)
			}
		}()

		if err := fn(ctx); err != nil {
			slog.Warn("background task failed", "task", name, "error", err)
		}
	}()
}
