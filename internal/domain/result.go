package domain

// DownloadResult is the single terminal outcome of one logical download,
// covering every retry attempt.
type DownloadResult struct {
	ObjectName      string
	LocalFilePath   string
	BytesDownloaded int64
	Success         bool
	Err             error
}

// ErrorMessage returns the human-readable cause for a failed result, or the
// empty string on success.
func (r DownloadResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Skipped reports whether the result came from a conflict-policy skip rather
// than a transfer failure.
func (r DownloadResult) Skipped() bool {
	return IsSkipped(r.Err)
}
