package domain

// Stage identifies where a transfer is in its lifecycle.
type Stage int

const (
	StageStarting Stage = iota
	StageDownloading
	StageVerifying
	StageCompleted
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageStarting:
		return "starting"
	case StageDownloading:
		return "downloading"
	case StageVerifying:
		return "verifying"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ProgressSnapshot is an ephemeral view of a transfer handed to progress
// sinks. The engine never retains one after the callback returns.
type ProgressSnapshot struct {
	ObjectName      string
	TotalBytes      int64
	DownloadedBytes int64
	Percentage      float64
	BytesPerSecond  int64
	RetryCount      int
	Stage           Stage
}

// NewProgressSnapshot builds a snapshot with the percentage derived from the
// byte counts, clamped to [0, 100].
func NewProgressSnapshot(objectName string, total, downloaded, speed int64, retries int, stage Stage) ProgressSnapshot {
	var pct float64
	if total > 0 {
		pct = float64(downloaded) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
	}
	return ProgressSnapshot{
		ObjectName:      objectName,
		TotalBytes:      total,
		DownloadedBytes: downloaded,
		Percentage:      pct,
		BytesPerSecond:  speed,
		RetryCount:      retries,
		Stage:           stage,
	}
}

// BatchProgress aggregates progress across a batch. It is recomputed from
// scratch on every per-object callback rather than accumulated in place.
type BatchProgress struct {
	TotalObjects     int
	CompletedObjects int
	FailedObjects    int
	TotalBytes       int64
	DownloadedBytes  int64
	Current          ProgressSnapshot
}
