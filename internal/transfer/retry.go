package transfer

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/port"
)

// externalTouchGrace is how much newer than the session's last update a
// file's mtime may be before the file counts as touched by another writer.
const externalTouchGrace = time.Minute

// RetryCoordinator wraps the executor with bounded retry, exponential
// backoff, and session validation between attempts. Only transient errors
// consume retry budget; cancellation, skips, and integrity failures end the
// download immediately.
type RetryCoordinator struct {
	executor *Executor
	sessions port.SessionStore // optional checkpoint store, may be nil
	logger   *zap.Logger

	// sleep is replaced in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryCoordinator creates a new RetryCoordinator. sessions may be nil.
func NewRetryCoordinator(executor *Executor, sessions port.SessionStore, logger *zap.Logger) *RetryCoordinator {
	return &RetryCoordinator{
		executor: executor,
		sessions: sessions,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Run drives attempts 0..MaxRetryAttempts for the session. It returns the
// final session state alongside the outcome; on failure the session's byte
// count reflects what is on disk for a later resume.
func (c *RetryCoordinator) Run(ctx context.Context, sess domain.DownloadSession, opts domain.DownloadOptions, onProgress ProgressFunc) (domain.DownloadSession, error) {
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Info("retrying download",
				zap.String("object", sess.ObjectName),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			if err := c.sleep(ctx, backoff); err != nil {
				return sess, fmt.Errorf("backoff: %w", domain.ErrCancelled)
			}

			if opts.EnableResumption {
				sess = c.Revalidate(sess)
			} else {
				sess = sess.WithProgress(0)
			}
			sess = sess.WithRetryIncrement()
			c.checkpoint(sess)

			if onProgress != nil {
				onProgress(domain.NewProgressSnapshot(
					sess.ObjectName, sess.TotalBytes, sess.DownloadedBytes,
					0, sess.RetryCount, domain.StageStarting))
			}
		}

		if ctx.Err() != nil {
			return sess, fmt.Errorf("before attempt: %w", domain.ErrCancelled)
		}

		written, err := c.executor.Attempt(ctx, sess, opts, onProgress)
		sess = sess.WithProgress(written)
		if err == nil {
			return sess, nil
		}
		c.checkpoint(sess)

		if !domain.IsTransient(err) {
			return sess, err
		}

		lastErr = err
		c.logger.Warn("transfer attempt failed",
			zap.String("object", sess.ObjectName),
			zap.Int("attempt", attempt),
			zap.Int64("bytes_on_disk", written),
			zap.Error(err))
	}

	return sess, lastErr
}

// Revalidate reconciles the session with actual on-disk state before a
// resume. Disk state is trusted over stale in-memory state; any ambiguity
// forces a clean re-download rather than risking silent corruption.
func (c *RetryCoordinator) Revalidate(sess domain.DownloadSession) domain.DownloadSession {
	fi, err := os.Stat(sess.LocalFilePath)
	if err != nil {
		// Local file is gone; nothing to resume from.
		c.logger.Debug("local file missing, starting fresh",
			zap.String("object", sess.ObjectName))
		return sess.WithProgress(0)
	}

	size := fi.Size()
	touched := fi.ModTime().After(sess.LastUpdatedAt.Add(externalTouchGrace))

	if size == sess.DownloadedBytes && !touched {
		return sess
	}

	if size < sess.TotalBytes {
		c.logger.Info("repairing session from on-disk state",
			zap.String("object", sess.ObjectName),
			zap.Int64("recorded", sess.DownloadedBytes),
			zap.Int64("on_disk", size),
			zap.Bool("touched_externally", touched))
		return sess.WithProgress(size)
	}

	c.logger.Info("on-disk state suspect, starting fresh",
		zap.String("object", sess.ObjectName),
		zap.Int64("on_disk", size),
		zap.Int64("total", sess.TotalBytes),
		zap.Error(domain.ErrResumeStateInvalid))
	return sess.WithProgress(0)
}

// checkpoint persists the session so a later process can resume. Store
// failures are logged and swallowed: bookkeeping must never fail a transfer.
func (c *RetryCoordinator) checkpoint(sess domain.DownloadSession) {
	if c.sessions == nil {
		return
	}
	if err := c.sessions.Save(sess); err != nil {
		c.logger.Warn("failed to checkpoint session",
			zap.String("object", sess.ObjectName),
			zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
