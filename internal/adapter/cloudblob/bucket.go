// Package cloudblob adapts a gocloud.dev blob bucket to the transfer
// engine's remote-read and listing ports. One Bucket is created per remote
// account and shared by every download rooted there.
package cloudblob

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/port"
)

// Bucket implements port.RemoteObjectReader and port.ObjectLister over a
// *blob.Bucket.
type Bucket struct {
	bucket *blob.Bucket
	logger *zap.Logger
}

var (
	_ port.RemoteObjectReader = (*Bucket)(nil)
	_ port.ObjectLister       = (*Bucket)(nil)
)

// New wraps an already opened bucket. The caller keeps ownership and closes
// it when done.
func New(bucket *blob.Bucket, logger *zap.Logger) *Bucket {
	return &Bucket{
		bucket: bucket,
		logger: logger,
	}
}

// Open opens a bucket by URL (s3://, gs://, file://, mem://; the shell
// registers the drivers it supports via blank imports).
func Open(ctx context.Context, urlstr string, logger *zap.Logger) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", urlstr, err)
	}
	return New(bucket, logger), nil
}

// Close releases the underlying bucket.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}

// Metadata returns size and checksum information for an object.
func (b *Bucket) Metadata(ctx context.Context, name string) (*port.ObjectMeta, error) {
	attrs, err := b.bucket.Attributes(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, name)
		}
		return nil, fmt.Errorf("attributes %s: %w", name, err)
	}

	meta := &port.ObjectMeta{
		Name: name,
		Size: attrs.Size,
	}
	// Stores omit the MD5 for multipart uploads; verification then passes
	// trivially downstream.
	if len(attrs.MD5) > 0 {
		meta.Checksum = hex.EncodeToString(attrs.MD5)
	}
	if !attrs.ModTime.IsZero() {
		mod := attrs.ModTime.UTC()
		meta.ModifiedAt = &mod
	}
	return meta, nil
}

// OpenRead opens the full object for reading.
func (b *Bucket) OpenRead(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := b.bucket.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return r, nil
}

// OpenReadRange opens bytes [offset, offset+length) of the object.
func (b *Bucket) OpenReadRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	r, err := b.bucket.NewRangeReader(ctx, name, offset, length, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, name)
		}
		return nil, fmt.Errorf("open range %s [%d,+%d): %w", name, offset, length, err)
	}
	return r, nil
}

// List returns the object keys under prefix whose base name matches
// pattern. An empty pattern matches everything.
func (b *Bucket) List(ctx context.Context, pattern, prefix string) ([]string, error) {
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})

	var names []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		if pattern != "" {
			ok, err := path.Match(pattern, path.Base(obj.Key))
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		names = append(names, obj.Key)
	}

	b.logger.Debug("listed objects",
		zap.String("pattern", pattern),
		zap.String("prefix", prefix),
		zap.Int("matches", len(names)))
	return names, nil
}
