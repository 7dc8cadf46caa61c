package domain

import "time"

// FileConflictInfo is the read-only snapshot of local and remote state given
// to a conflict resolver.
type FileConflictInfo struct {
	LocalExists      bool
	LocalSize        int64
	LocalModifiedUTC *time.Time
	LocalChecksum    string

	RemoteSize        int64
	RemoteModifiedUTC *time.Time
	RemoteChecksum    string
}

// FileConflictDecision is a resolver's answer: either skip the object or
// write to ResolvedPath.
type FileConflictDecision struct {
	Skip         bool
	ResolvedPath string

	// ApplyToAll asks the caller to reuse this decision's mode for the
	// remaining objects in the current batch.
	ApplyToAll bool

	// RememberForSession asks the resolver to reuse the decision for this
	// object for the rest of the process lifetime.
	RememberForSession bool
}

// SkipDecision returns a decision that skips the object.
func SkipDecision() FileConflictDecision {
	return FileConflictDecision{Skip: true}
}

// WriteDecision returns a decision that writes to path.
func WriteDecision(path string) FileConflictDecision {
	return FileConflictDecision{ResolvedPath: path}
}
