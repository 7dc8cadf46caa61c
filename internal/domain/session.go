package domain

import "time"

// DownloadSession is the transfer state carried across retry attempts and
// process restarts. Values are immutable: every update returns a new session,
// so a caller may inspect one while the next is being computed.
type DownloadSession struct {
	ObjectName       string
	ContainerName    string
	LocalFilePath    string
	TotalBytes       int64
	DownloadedBytes  int64
	ExpectedChecksum string
	RetryCount       int
	LastUpdatedAt    time.Time
}

// NewSession creates a fresh session for a transfer that has not moved any
// bytes yet.
func NewSession(objectName, containerName, localFilePath string, totalBytes int64, checksum string) DownloadSession {
	return DownloadSession{
		ObjectName:       objectName,
		ContainerName:    containerName,
		LocalFilePath:    localFilePath,
		TotalBytes:       totalBytes,
		ExpectedChecksum: checksum,
		LastUpdatedAt:    time.Now(),
	}
}

// WithProgress returns a copy of the session with the downloaded byte count
// set to bytes, clamped to [0, TotalBytes].
func (s DownloadSession) WithProgress(bytes int64) DownloadSession {
	if bytes < 0 {
		bytes = 0
	}
	if bytes > s.TotalBytes {
		bytes = s.TotalBytes
	}
	s.DownloadedBytes = bytes
	s.LastUpdatedAt = time.Now()
	return s
}

// WithRetryIncrement returns a copy of the session with the retry count
// increased by one.
func (s DownloadSession) WithRetryIncrement() DownloadSession {
	s.RetryCount++
	s.LastUpdatedAt = time.Now()
	return s
}

// StartOffset returns the byte offset a resumed transfer should continue
// from. Zero means a full download.
func (s DownloadSession) StartOffset() int64 {
	return s.DownloadedBytes
}

// Complete reports whether every byte of the object is on disk.
func (s DownloadSession) Complete() bool {
	return s.TotalBytes > 0 && s.DownloadedBytes >= s.TotalBytes
}
