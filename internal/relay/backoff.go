package relay

import (
	"context"
	"math/rand/v2"
	"time"
)

const jitterWindow = 250 * time.Millisecond

// backoff doubles from base up to limit.
type backoff struct {
	base, limit, cur time.Duration
}

func newBackoff(base, limit time.Duration) *backoff {
	return &backoff{base: base, limit: limit, cur: base}
}

// next returns the wait for this failure, with jitter, and doubles the
// wait for the following one.
func (b *backoff) next() time.Duration {
	b.cur = min(b.cur*2, b.limit)
	return jitter(b.cur)
}

func (b *backoff) reset() { b.cur = b.base }

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
