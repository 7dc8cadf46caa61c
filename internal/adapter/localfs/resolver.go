// Package localfs resolves remote object names to safe local paths.
package localfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mkarpin/blobfetch/internal/port"
)

// Resolver implements port.PathResolver with a flat mapping from object key
// segments to directories under the base path.
type Resolver struct{}

var _ port.PathResolver = (*Resolver)(nil)

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve maps an object name under baseDir. Empty, ".", and ".." segments
// are dropped so the result can never escape baseDir.
func (r *Resolver) Resolve(baseDir, objectName string) string {
	segments := strings.Split(objectName, "/")
	clean := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".", "..":
			continue
		}
		clean = append(clean, seg)
	}
	if len(clean) == 0 {
		clean = []string{"unnamed"}
	}
	return filepath.Join(append([]string{baseDir}, clean...)...)
}

// EnsureDirectory creates the parent directory for path.
func (r *Resolver) EnsureDirectory(path string) bool {
	return os.MkdirAll(filepath.Dir(path), 0o755) == nil
}
