package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/port"
)

// Config contains engine configuration.
type Config struct {
	// Container is the remote container/bucket label recorded in sessions.
	Container string

	// Prefix scopes batch listings to a remote key prefix.
	Prefix string

	// ProgressInterval is the minimum wall-clock time between progress
	// callbacks on the write path.
	ProgressInterval time.Duration
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		ProgressInterval: 250 * time.Millisecond,
	}
}

// Engine is the download pipeline: conflict resolution, bounded retry around
// single transfer attempts, and post-transfer integrity verification. One
// engine serves one remote account; the remote reader is constructed by the
// caller and passed in, never built lazily inside.
type Engine struct {
	cfg         *Config
	remote      port.RemoteObjectReader
	lister      port.ObjectLister
	paths       port.PathResolver
	sessions    port.SessionStore
	interactive port.InteractiveConflictResolver
	logger      *zap.Logger

	resolver *ConflictResolver
	verifier *IntegrityVerifier
	retrier  *RetryCoordinator
}

// New creates an Engine. lister, paths, sessions, and interactive may each
// be nil; the corresponding features degrade gracefully.
func New(
	cfg *Config,
	remote port.RemoteObjectReader,
	lister port.ObjectLister,
	paths port.PathResolver,
	sessions port.SessionStore,
	interactive port.InteractiveConflictResolver,
	logger *zap.Logger,
) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 250 * time.Millisecond
	}

	e := &Engine{
		cfg:         cfg,
		remote:      remote,
		lister:      lister,
		paths:       paths,
		sessions:    sessions,
		interactive: interactive,
		logger:      logger,
	}

	e.resolver = NewConflictResolver(interactive)
	e.verifier = NewIntegrityVerifier(logger)
	e.retrier = NewRetryCoordinator(NewExecutor(remote, logger, cfg.ProgressInterval), sessions, logger)

	return e
}

// StartDownload transfers one object to localPath and returns its terminal
// outcome. The result covers all retries; DownloadResult.Err carries the
// human-readable cause whenever Success is false.
func (e *Engine) StartDownload(ctx context.Context, objectName, localPath string, opts domain.DownloadOptions, onProgress ProgressFunc) domain.DownloadResult {
	result, _ := e.downloadObject(ctx, objectName, localPath, opts, onProgress)
	return result
}

// ResumeDownload continues a previously persisted session. Remote metadata
// is refreshed first; if the object changed size or checksum the session is
// discarded and the download starts fresh.
func (e *Engine) ResumeDownload(ctx context.Context, sess domain.DownloadSession, opts domain.DownloadOptions, onProgress ProgressFunc) domain.DownloadResult {
	meta, err := e.remote.Metadata(ctx, sess.ObjectName)
	if err != nil {
		return domain.DownloadResult{
			ObjectName:    sess.ObjectName,
			LocalFilePath: sess.LocalFilePath,
			Err:           fmt.Errorf("refresh metadata: %w", err),
		}
	}

	if meta.Size != sess.TotalBytes || (meta.Checksum != "" && meta.Checksum != sess.ExpectedChecksum) {
		e.logger.Info("remote object changed, starting fresh",
			zap.String("object", sess.ObjectName),
			zap.Int64("old_size", sess.TotalBytes),
			zap.Int64("new_size", meta.Size))
		sess = domain.NewSession(sess.ObjectName, sess.ContainerName, sess.LocalFilePath, meta.Size, meta.Checksum)
	} else if opts.EnableResumption {
		sess = e.retrier.Revalidate(sess)
	} else {
		sess = sess.WithProgress(0)
	}

	return e.run(ctx, sess, opts, onProgress)
}

// downloadObject resolves conflicts for one object and runs the pipeline.
// The decision is returned so the batch coordinator can honor ApplyToAll.
func (e *Engine) downloadObject(ctx context.Context, objectName, localPath string, opts domain.DownloadOptions, onProgress ProgressFunc) (domain.DownloadResult, domain.FileConflictDecision) {
	// A Skip policy with an existing local file needs no remote state at
	// all: decide before touching the network.
	if opts.ConflictMode == domain.ConflictSkip {
		if _, err := os.Stat(localPath); err == nil {
			e.logger.Debug("skipping existing file", zap.String("path", localPath))
			return skipResult(objectName, localPath), domain.SkipDecision()
		}
	}

	meta, err := e.remote.Metadata(ctx, objectName)
	if err != nil {
		return domain.DownloadResult{
			ObjectName:    objectName,
			LocalFilePath: localPath,
			Err:           fmt.Errorf("fetch metadata: %w", err),
		}, domain.FileConflictDecision{}
	}

	info := e.buildConflictInfo(localPath, meta, opts.ConflictMode)
	decision, err := e.resolver.Resolve(localPath, opts.ConflictMode, info)
	if err != nil {
		return domain.DownloadResult{
			ObjectName:    objectName,
			LocalFilePath: localPath,
			Err:           err,
		}, decision
	}
	if decision.Skip {
		return skipResult(objectName, localPath), decision
	}

	sess := domain.NewSession(objectName, e.cfg.Container, decision.ResolvedPath, meta.Size, meta.Checksum)
	return e.run(ctx, sess, opts, onProgress), decision
}

// run drives one session to its single terminal outcome.
func (e *Engine) run(ctx context.Context, sess domain.DownloadSession, opts domain.DownloadOptions, onProgress ProgressFunc) domain.DownloadResult {
	emit(onProgress, domain.NewProgressSnapshot(
		sess.ObjectName, sess.TotalBytes, sess.DownloadedBytes, 0, sess.RetryCount, domain.StageStarting))

	if opts.CreateDirectories {
		e.ensureDirectory(sess.LocalFilePath)
	}

	if !sess.Complete() {
		var err error
		sess, err = e.retrier.Run(ctx, sess, opts, onProgress)
		if err != nil {
			// Failed but possibly resumable: the checkpoint stays.
			return domain.DownloadResult{
				ObjectName:      sess.ObjectName,
				LocalFilePath:   sess.LocalFilePath,
				BytesDownloaded: sess.DownloadedBytes,
				Err:             err,
			}
		}
	}

	if opts.VerifyChecksum {
		emit(onProgress, domain.NewProgressSnapshot(
			sess.ObjectName, sess.TotalBytes, sess.DownloadedBytes, 0, sess.RetryCount, domain.StageVerifying))

		if err := e.verifier.Verify(sess.LocalFilePath, sess.ExpectedChecksum); err != nil {
			// Terminal: the session is discarded, the file retained.
			e.discardSession(sess)
			return domain.DownloadResult{
				ObjectName:      sess.ObjectName,
				LocalFilePath:   sess.LocalFilePath,
				BytesDownloaded: sess.DownloadedBytes,
				Err:             err,
			}
		}
	}

	e.discardSession(sess)
	emit(onProgress, domain.NewProgressSnapshot(
		sess.ObjectName, sess.TotalBytes, sess.DownloadedBytes, 0, sess.RetryCount, domain.StageCompleted))

	e.logger.Info("download complete",
		zap.String("object", sess.ObjectName),
		zap.String("path", sess.LocalFilePath),
		zap.Int64("bytes", sess.DownloadedBytes),
		zap.Int("retries", sess.RetryCount))

	return domain.DownloadResult{
		ObjectName:      sess.ObjectName,
		LocalFilePath:   sess.LocalFilePath,
		BytesDownloaded: sess.DownloadedBytes,
		Success:         true,
	}
}

func (e *Engine) buildConflictInfo(localPath string, meta *port.ObjectMeta, mode domain.ConflictMode) domain.FileConflictInfo {
	info := domain.FileConflictInfo{
		RemoteSize:        meta.Size,
		RemoteModifiedUTC: meta.ModifiedAt,
		RemoteChecksum:    meta.Checksum,
	}

	fi, err := os.Stat(localPath)
	if err != nil {
		return info
	}

	info.LocalExists = true
	info.LocalSize = fi.Size()
	mod := fi.ModTime().UTC()
	info.LocalModifiedUTC = &mod

	// The local checksum is only worth computing when a human will see it.
	if mode == domain.ConflictAsk && e.interactive != nil {
		if sum, err := fileMD5(localPath); err == nil {
			info.LocalChecksum = sum
		}
	}
	return info
}

func (e *Engine) ensureDirectory(path string) {
	if e.paths != nil {
		if !e.paths.EnsureDirectory(path) {
			e.logger.Warn("failed to create destination directory", zap.String("path", path))
		}
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.logger.Warn("failed to create destination directory",
			zap.String("path", path), zap.Error(err))
	}
}

// discardSession drops the persisted checkpoint once a transfer reaches a
// terminal outcome.
func (e *Engine) discardSession(sess domain.DownloadSession) {
	if e.sessions == nil {
		return
	}
	if err := e.sessions.Delete(sess.ContainerName, sess.ObjectName); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		e.logger.Warn("failed to delete session checkpoint",
			zap.String("object", sess.ObjectName),
			zap.Error(err))
	}
}

func skipResult(objectName, localPath string) domain.DownloadResult {
	return domain.DownloadResult{
		ObjectName:    objectName,
		LocalFilePath: localPath,
		Err:           domain.ErrSkippedByPolicy,
	}
}

func emit(onProgress ProgressFunc, snap domain.ProgressSnapshot) {
	if onProgress != nil {
		onProgress(snap)
	}
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
