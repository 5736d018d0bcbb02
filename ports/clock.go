package ports

import "context"

// Clock drives the poll loop. Now is milliseconds since the session started.
type Clock interface {
	Now() int64
	// NextFrame returns at the next frame boundary, or with ctx's error
	NextFrame(ctx context.Context) error
}
