package port

import "github.com/mkarpin/blobfetch/internal/domain"

// InteractiveConflictResolver presents local-vs-remote metadata to a human
// and returns their decision. Wired only for ConflictAsk; the engine falls
// back to rename resolution when none is provided.
type InteractiveConflictResolver interface {
	ResolveConflict(desiredPath string, info domain.FileConflictInfo) (domain.FileConflictDecision, error)
}
