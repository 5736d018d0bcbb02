package realtime

import (
	"context"
	"time"
)

// FrameClock paces the poll loop at a fixed frame interval on the wall clock. Now is
// monotonic milliseconds since the clock was created.
type FrameClock struct {
	start  time.Time
	ticker *time.Ticker
}

// NewFrameClock starts a clock ticking every interval
func NewFrameClock(interval time.Duration) *FrameClock {
	return &FrameClock{start: time.Now(), ticker: time.NewTicker(interval)}
}

func (c *FrameClock) Now() int64 {
	return time.Since(c.start).Milliseconds()
}

// NextFrame blocks until the next tick. Ticks missed while the caller was busy are
// dropped, not queued.
func (c *FrameClock) NextFrame(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Stop releases the ticker
func (c *FrameClock) Stop() {
	c.ticker.Stop()
}
