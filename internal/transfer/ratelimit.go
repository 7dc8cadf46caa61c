package transfer

import (
	"context"
	"io"
	"time"
)

// rateLimitedWriter paces writes to at most limit bytes per second. After
// each write it sleeps until the cumulative byte count falls back under the
// configured rate, so bursts above the cap never build up.
type rateLimitedWriter struct {
	ctx   context.Context
	w     io.Writer
	limit int64 // bytes per second

	start   time.Time
	written int64
}

func newRateLimitedWriter(ctx context.Context, w io.Writer, limit int64) *rateLimitedWriter {
	return &rateLimitedWriter{
		ctx:   ctx,
		w:     w,
		limit: limit,
		start: time.Now(),
	}
}

func (r *rateLimitedWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	r.written += int64(n)
	if err != nil {
		return n, err
	}

	expected := time.Duration(float64(r.written) / float64(r.limit) * float64(time.Second))
	wait := expected - time.Since(r.start)
	if wait <= 0 {
		return n, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return n, nil
	case <-r.ctx.Done():
		// Bytes are already flushed; the copy loop turns this into a
		// cancellation with resumable on-disk state.
		return n, r.ctx.Err()
	}
}
