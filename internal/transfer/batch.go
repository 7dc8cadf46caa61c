package transfer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mkarpin/blobfetch/internal/domain"
)

// StartBatchDownload resolves the objects matching pattern up front, then
// transfers them one at a time, continuing past per-object failures. One
// DownloadResult is returned per started object; cancellation stops before
// the next object begins while the in-flight one cancels at its own
// checkpoint.
func (e *Engine) StartBatchDownload(ctx context.Context, pattern, localDir string, opts domain.DownloadOptions, onProgress ProgressFunc, onBatch BatchProgressFunc) []domain.DownloadResult {
	if e.lister == nil {
		return []domain.DownloadResult{{
			ObjectName: pattern,
			Err:        fmt.Errorf("no object lister configured"),
		}}
	}

	names, err := e.lister.List(ctx, pattern, e.cfg.Prefix)
	if err != nil {
		return []domain.DownloadResult{{
			ObjectName: pattern,
			Err:        fmt.Errorf("list objects: %w", err),
		}}
	}

	tracker := &batchTracker{totalObjects: len(names)}
	for _, name := range names {
		if meta, err := e.remote.Metadata(ctx, name); err == nil {
			tracker.totalBytes += meta.Size
		}
	}

	e.logger.Info("batch download started",
		zap.String("pattern", pattern),
		zap.Int("objects", len(names)),
		zap.Int64("total_bytes", tracker.totalBytes))

	results := make([]domain.DownloadResult, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			e.logger.Info("batch cancelled",
				zap.Int("completed", len(results)),
				zap.Int("remaining", len(names)-len(results)))
			break
		}

		target := e.resolveTarget(localDir, name)
		wrapped := func(snap domain.ProgressSnapshot) {
			emit(onProgress, snap)
			if onBatch != nil {
				onBatch(tracker.aggregate(snap))
			}
		}

		result, decision := e.downloadObject(ctx, name, target, opts, wrapped)
		results = append(results, result)
		tracker.finish(result)

		if onBatch != nil {
			onBatch(tracker.aggregate(domain.NewProgressSnapshot(
				name, result.BytesDownloaded, result.BytesDownloaded, 0, 0, domain.StageCompleted)))
		}

		// A human's "apply to all" answer fixes the policy for the rest
		// of the batch.
		if decision.ApplyToAll {
			opts.ConflictMode = modeFromDecision(decision, target)
		}

		if !result.Success {
			e.logger.Warn("batch object failed",
				zap.String("object", name),
				zap.Bool("skipped", result.Skipped()),
				zap.Error(result.Err))
		}
	}

	return results
}

// batchTracker recomputes aggregate progress from completed-object state
// plus the in-flight snapshot. Nothing is accumulated from callbacks, so a
// retried or restarted object never double counts.
type batchTracker struct {
	totalObjects     int
	totalBytes       int64
	completedObjects int
	failedObjects    int
	completedBytes   int64
}

func (t *batchTracker) finish(result domain.DownloadResult) {
	if result.Success {
		t.completedObjects++
		t.completedBytes += result.BytesDownloaded
	} else {
		t.failedObjects++
	}
}

func (t *batchTracker) aggregate(current domain.ProgressSnapshot) domain.BatchProgress {
	downloaded := t.completedBytes
	if current.Stage == domain.StageDownloading || current.Stage == domain.StageStarting {
		downloaded += current.DownloadedBytes
	}
	return domain.BatchProgress{
		TotalObjects:     t.totalObjects,
		CompletedObjects: t.completedObjects,
		FailedObjects:    t.failedObjects,
		TotalBytes:       t.totalBytes,
		DownloadedBytes:  downloaded,
		Current:          current,
	}
}

func (e *Engine) resolveTarget(localDir, objectName string) string {
	if e.paths != nil {
		return e.paths.Resolve(localDir, objectName)
	}
	return localDir + "/" + objectName
}

// modeFromDecision maps an interactive decision onto the conflict mode that
// would reproduce it for subsequent objects.
func modeFromDecision(d domain.FileConflictDecision, desiredPath string) domain.ConflictMode {
	switch {
	case d.Skip:
		return domain.ConflictSkip
	case d.ResolvedPath == desiredPath:
		return domain.ConflictOverwrite
	default:
		return domain.ConflictRename
	}
}
