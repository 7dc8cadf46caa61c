package port

// PathResolver maps remote object names to local destination paths.
type PathResolver interface {
	// Resolve returns the local path for an object rooted at baseDir.
	// Implementations sanitize the object name so the result never
	// escapes baseDir.
	Resolve(baseDir, objectName string) string

	// EnsureDirectory creates the parent directory for path.
	// Returns true when the directory exists after the call.
	EnsureDirectory(path string) bool
}
