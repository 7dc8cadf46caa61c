package port

import (
	"context"
	"io"
	"time"
)

// ObjectMeta describes a remote object.
type ObjectMeta struct {
	Name string
	Size int64

	// Checksum is the store-published content checksum (hex-encoded MD5),
	// empty when the store does not publish one.
	Checksum string

	ModifiedAt *time.Time
}

// RemoteObjectReader is the bound remote-read capability the transfer engine
// consumes. Implementations are constructed once per remote account with
// explicit ownership and passed in; the engine never builds one itself.
type RemoteObjectReader interface {
	// Metadata returns size and checksum information for an object.
	// Returns domain.ErrObjectNotFound when the object does not exist.
	Metadata(ctx context.Context, name string) (*ObjectMeta, error)

	// OpenRead opens the full object for reading.
	OpenRead(ctx context.Context, name string) (io.ReadCloser, error)

	// OpenReadRange opens bytes [offset, offset+length) of the object.
	// length < 0 reads to the end of the object.
	OpenReadRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error)
}

// ObjectLister resolves a name-matching pattern to object names. Used only
// by the batch coordinator.
type ObjectLister interface {
	// List returns the names of objects under prefix whose base name
	// matches pattern.
	List(ctx context.Context, pattern, prefix string) ([]string, error)
}
