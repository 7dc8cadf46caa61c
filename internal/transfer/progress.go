package transfer

import (
	"io"
	"time"

	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/util/ratelimiter"
)

// ProgressFunc receives transfer snapshots. Callbacks run synchronously on
// the write path, so they must be cheap: a slow sink throttles the transfer.
type ProgressFunc func(domain.ProgressSnapshot)

// BatchProgressFunc receives aggregate batch snapshots.
type BatchProgressFunc func(domain.BatchProgress)

// progressWriter decorates a write sink with byte counting and throttled
// snapshot emission. No timer goroutine is involved: emission happens on the
// write path, gated to one callback per interval of wall-clock time.
type progressWriter struct {
	w          io.Writer
	objectName string
	total      int64
	retryCount int
	onProgress ProgressFunc
	gate       *ratelimiter.Limiter

	written    int64 // includes the resume offset
	speedMark  time.Time
	speedBytes int64
}

func newProgressWriter(w io.Writer, sess domain.DownloadSession, interval time.Duration, onProgress ProgressFunc) *progressWriter {
	return &progressWriter{
		w:          w,
		objectName: sess.ObjectName,
		total:      sess.TotalBytes,
		retryCount: sess.RetryCount,
		onProgress: onProgress,
		gate:       ratelimiter.New(interval),
		written:    sess.StartOffset(),
		speedMark:  time.Now(),
	}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if err == nil && p.onProgress != nil && p.gate.Allow() {
		p.emit()
	}
	return n, err
}

func (p *progressWriter) emit() {
	now := time.Now()
	elapsed := now.Sub(p.speedMark).Seconds()
	if elapsed < 0.001 {
		elapsed = 0.001
	}
	speed := int64(float64(p.written-p.speedBytes) / elapsed)
	p.speedMark = now
	p.speedBytes = p.written

	p.onProgress(domain.NewProgressSnapshot(
		p.objectName, p.total, p.written, speed, p.retryCount, domain.StageDownloading))
}
