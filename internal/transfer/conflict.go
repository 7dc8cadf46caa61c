package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/port"
)

// renameSuffix matches a file stem that already carries a " (n)" suffix.
var renameSuffix = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// ConflictResolver decides whether and where to write when the destination
// path already holds a file. An optional interactive strategy handles
// ConflictAsk; without one, Ask behaves like Rename so nothing is ever
// overwritten without explicit instruction.
type ConflictResolver struct {
	interactive port.InteractiveConflictResolver

	mu         sync.Mutex
	remembered map[string]domain.FileConflictDecision
}

// NewConflictResolver creates a resolver. interactive may be nil.
func NewConflictResolver(interactive port.InteractiveConflictResolver) *ConflictResolver {
	return &ConflictResolver{
		interactive: interactive,
		remembered:  make(map[string]domain.FileConflictDecision),
	}
}

// Resolve applies the conflict policy for desiredPath.
func (r *ConflictResolver) Resolve(desiredPath string, mode domain.ConflictMode, info domain.FileConflictInfo) (domain.FileConflictDecision, error) {
	if !info.LocalExists {
		return domain.WriteDecision(desiredPath), nil
	}

	if d, ok := r.recall(desiredPath); ok {
		return d, nil
	}

	switch mode {
	case domain.ConflictOverwrite:
		return domain.WriteDecision(desiredPath), nil
	case domain.ConflictSkip:
		return domain.SkipDecision(), nil
	case domain.ConflictRename:
		return domain.WriteDecision(r.uniquePath(desiredPath)), nil
	case domain.ConflictAsk:
		return r.ask(desiredPath, info)
	default:
		return domain.FileConflictDecision{}, fmt.Errorf("unknown conflict mode: %v", mode)
	}
}

func (r *ConflictResolver) ask(desiredPath string, info domain.FileConflictInfo) (domain.FileConflictDecision, error) {
	if r.interactive == nil {
		return domain.WriteDecision(r.uniquePath(desiredPath)), nil
	}

	decision, err := r.interactive.ResolveConflict(desiredPath, info)
	if err != nil {
		return domain.FileConflictDecision{}, fmt.Errorf("interactive conflict resolution: %w", err)
	}
	if !decision.Skip && decision.ResolvedPath == "" {
		decision.ResolvedPath = r.uniquePath(desiredPath)
	}
	if decision.RememberForSession {
		r.remember(desiredPath, decision)
	}
	return decision, nil
}

func (r *ConflictResolver) recall(desiredPath string) (domain.FileConflictDecision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.remembered[desiredPath]
	return d, ok
}

func (r *ConflictResolver) remember(desiredPath string, d domain.FileConflictDecision) {
	r.mu.Lock()
	r.remembered[desiredPath] = d
	r.mu.Unlock()
}

// uniquePath appends " (n)" before the extension, incrementing n until no
// file exists at the candidate path. An existing " (n)" suffix is normalized
// first, so re-resolving "a (1).txt" yields "a (2).txt", never
// "a (1) (1).txt".
func (r *ConflictResolver) uniquePath(desiredPath string) string {
	dir := filepath.Dir(desiredPath)
	ext := filepath.Ext(desiredPath)
	stem := strings.TrimSuffix(filepath.Base(desiredPath), ext)

	n := 0
	if m := renameSuffix.FindStringSubmatch(stem); m != nil {
		if prev, err := strconv.Atoi(m[2]); err == nil {
			stem = m[1]
			n = prev
		}
	}

	for {
		n++
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
