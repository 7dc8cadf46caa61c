package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/port"
)

const copyBufferSize = 32 * 1024

// Executor performs one transfer attempt: open the local file fresh or at
// the resume offset, fetch the byte stream, and copy it through the
// rate-limit and progress decorators.
type Executor struct {
	remote           port.RemoteObjectReader
	logger           *zap.Logger
	progressInterval time.Duration
}

// NewExecutor creates a new Executor.
func NewExecutor(remote port.RemoteObjectReader, logger *zap.Logger, progressInterval time.Duration) *Executor {
	if progressInterval <= 0 {
		progressInterval = 250 * time.Millisecond
	}
	return &Executor{
		remote:           remote,
		logger:           logger,
		progressInterval: progressInterval,
	}
}

// Attempt runs a single attempt for the session and returns the on-disk byte
// count. The file size on disk is authoritative, not the sum of write calls,
// so a partial flush is never double counted. On failure the returned count
// is the candidate DownloadedBytes for the next attempt.
func (e *Executor) Attempt(ctx context.Context, sess domain.DownloadSession, opts domain.DownloadOptions, onProgress ProgressFunc) (int64, error) {
	var offset int64
	if opts.EnableResumption {
		offset = sess.StartOffset()
	}

	f, err := e.openLocal(sess.LocalFilePath, offset)
	if err != nil {
		return 0, domain.NewTransientError(fmt.Errorf("open local file: %w", err))
	}

	var w io.Writer = f
	if opts.BandwidthLimitBytesPerSecond > 0 {
		w = newRateLimitedWriter(ctx, w, opts.BandwidthLimitBytesPerSecond)
	}
	w = newProgressWriter(w, sess, e.progressInterval, onProgress)

	body, err := e.openRemote(ctx, sess, offset)
	if err != nil {
		f.Close()
		if ctx.Err() != nil {
			return e.diskSize(sess.LocalFilePath), fmt.Errorf("open remote: %w", domain.ErrCancelled)
		}
		return e.diskSize(sess.LocalFilePath), domain.NewTransientError(fmt.Errorf("open remote: %w", err))
	}
	defer body.Close()

	e.logger.Debug("transfer attempt started",
		zap.String("object", sess.ObjectName),
		zap.Int64("offset", offset),
		zap.Int64("total", sess.TotalBytes),
		zap.Int("retry", sess.RetryCount))

	copyErr := copyWithContext(ctx, w, body)
	closeErr := f.Close()
	size := e.diskSize(sess.LocalFilePath)

	if copyErr != nil {
		return size, copyErr
	}
	if closeErr != nil {
		return size, domain.NewTransientError(fmt.Errorf("close local file: %w", closeErr))
	}
	return size, nil
}

// openLocal opens the destination file. A fresh transfer truncates; a resumed
// one opens without truncation and seeks to the offset.
func (e *Executor) openLocal(path string, offset int64) (*os.File, error) {
	if offset <= 0 {
		return os.Create(path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (e *Executor) openRemote(ctx context.Context, sess domain.DownloadSession, offset int64) (io.ReadCloser, error) {
	if offset > 0 {
		return e.remote.OpenReadRange(ctx, sess.ObjectName, offset, sess.TotalBytes-offset)
	}
	return e.remote.OpenRead(ctx, sess.ObjectName)
}

func (e *Executor) diskSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// copyWithContext copies src into dst, honoring cancellation between chunks.
// Bytes already flushed remain on disk so a cancelled transfer stays
// resumable.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, copyBufferSize)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("copy: %w", domain.ErrCancelled)
		default:
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("copy: %w", domain.ErrCancelled)
				}
				return domain.NewTransientError(fmt.Errorf("write: %w", werr))
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("copy: %w", domain.ErrCancelled)
			}
			return domain.NewTransientError(fmt.Errorf("read: %w", rerr))
		}
	}
}
