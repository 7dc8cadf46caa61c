package domain

import "fmt"

// ConflictMode selects the policy applied when the destination path already
// holds a file.
type ConflictMode int

const (
	// ConflictOverwrite replaces the existing file.
	ConflictOverwrite ConflictMode = iota
	// ConflictSkip leaves the existing file alone and skips the download.
	ConflictSkip
	// ConflictRename writes to a unique " (n)"-suffixed sibling path.
	ConflictRename
	// ConflictAsk delegates to an interactive resolver when one is wired,
	// and falls back to ConflictRename otherwise.
	ConflictAsk
)

// String returns the mode's configuration name.
func (m ConflictMode) String() string {
	switch m {
	case ConflictOverwrite:
		return "overwrite"
	case ConflictSkip:
		return "skip"
	case ConflictRename:
		return "rename"
	case ConflictAsk:
		return "ask"
	default:
		return fmt.Sprintf("ConflictMode(%d)", int(m))
	}
}

// ParseConflictMode converts a configuration string to a ConflictMode.
func ParseConflictMode(s string) (ConflictMode, error) {
	switch s {
	case "overwrite":
		return ConflictOverwrite, nil
	case "skip":
		return ConflictSkip, nil
	case "rename":
		return ConflictRename, nil
	case "ask":
		return ConflictAsk, nil
	default:
		return 0, fmt.Errorf("invalid conflict mode: %s", s)
	}
}

// DownloadOptions configures one logical download. Constructed once per call
// and never modified afterwards.
type DownloadOptions struct {
	// MaxRetryAttempts is the number of retries after the initial attempt.
	MaxRetryAttempts int

	// EnableResumption resumes partial files instead of restarting at zero.
	EnableResumption bool

	// VerifyChecksum compares the local file against the remote checksum
	// after a successful transfer.
	VerifyChecksum bool

	// ConflictMode is the policy for existing destination files.
	ConflictMode ConflictMode

	// BandwidthLimitBytesPerSecond caps write throughput. Zero means
	// unlimited.
	BandwidthLimitBytesPerSecond int64

	// CreateDirectories creates missing parent directories for the
	// destination path.
	CreateDirectories bool
}

// DefaultOptions returns the options used when the caller specifies nothing.
func DefaultOptions() DownloadOptions {
	return DownloadOptions{
		MaxRetryAttempts:  3,
		EnableResumption:  true,
		VerifyChecksum:    true,
		ConflictMode:      ConflictRename,
		CreateDirectories: true,
	}
}
