package source

import (
	"context"
	"time"
)

// Backoff is the single-retry rate-limit policy. No exponential growth, no
// jitter, no memory across operations: worst-case added latency per
// operation is exactly one Wait.
type Backoff struct {
	Wait time.Duration
}

// Sleep blocks for the fixed delay, or returns early with the context error.
func (b Backoff) Sleep(ctx context.Context) error {
	if b.Wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.Wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
