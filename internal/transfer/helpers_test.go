package transfer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/mkarpin/blobfetch/internal/domain"
	"github.com/mkarpin/blobfetch/internal/port"
)

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// fakeRemote is an in-memory port.RemoteObjectReader / port.ObjectLister
// with scriptable failures.
type fakeRemote struct {
	mu        sync.Mutex
	objects   map[string][]byte
	checksums map[string]string

	// failOpens makes the next n open calls fail before any succeeds.
	failOpens int

	// failAfter, when positive, makes every returned stream error out
	// after that many bytes.
	failAfter int64

	metadataCalls int
	openCalls     int
	rangeCalls    int
	rangeOffsets  []int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		objects:   make(map[string][]byte),
		checksums: make(map[string]string),
	}
}

func (f *fakeRemote) put(name string, data []byte) {
	f.objects[name] = data
	f.checksums[name] = md5hex(data)
}

// putCorrupt stores data but publishes a checksum that does not match it.
func (f *fakeRemote) putCorrupt(name string, data []byte) {
	f.objects[name] = data
	f.checksums[name] = md5hex(append([]byte("x"), data...))
}

func (f *fakeRemote) Metadata(ctx context.Context, name string) (*port.ObjectMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataCalls++

	data, ok := f.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, name)
	}
	return &port.ObjectMeta{
		Name:     name,
		Size:     int64(len(data)),
		Checksum: f.checksums[name],
	}, nil
}

func (f *fakeRemote) OpenRead(ctx context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++

	if f.failOpens > 0 {
		f.failOpens--
		return nil, errors.New("connection refused")
	}
	data, ok := f.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, name)
	}
	return f.stream(data), nil
}

func (f *fakeRemote) OpenReadRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rangeCalls++
	f.rangeOffsets = append(f.rangeOffsets, offset)

	if f.failOpens > 0 {
		f.failOpens--
		return nil, errors.New("connection refused")
	}
	data, ok := f.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, name)
	}
	if offset < 0 || offset > int64(len(data)) {
		return nil, fmt.Errorf("range out of bounds: %d", offset)
	}
	end := int64(len(data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return f.stream(data[offset:end]), nil
}

func (f *fakeRemote) List(ctx context.Context, pattern, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var names []string
	for name := range f.objects {
		names = append(names, name)
	}
	sortStrings(names)
	return names, nil
}

func (f *fakeRemote) stream(data []byte) io.ReadCloser {
	if f.failAfter > 0 && f.failAfter < int64(len(data)) {
		return io.NopCloser(io.MultiReader(
			bytes.NewReader(data[:f.failAfter]),
			&failingReader{},
		))
	}
	return io.NopCloser(bytes.NewReader(data))
}

type failingReader struct{}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// fakeSessionStore is an in-memory port.SessionStore.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.DownloadSession
	saves    int
	deletes  int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]domain.DownloadSession)}
}

func (s *fakeSessionStore) key(container, object string) string {
	return container + "/" + object
}

func (s *fakeSessionStore) Save(sess domain.DownloadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.sessions[s.key(sess.ContainerName, sess.ObjectName)] = sess
	return nil
}

func (s *fakeSessionStore) Get(container, object string) (domain.DownloadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[s.key(container, object)]
	if !ok {
		return domain.DownloadSession{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *fakeSessionStore) Delete(container, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.sessions, s.key(container, object))
	return nil
}

func (s *fakeSessionStore) ListPending() ([]domain.DownloadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DownloadSession
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

var _ port.RemoteObjectReader = (*fakeRemote)(nil)
var _ port.ObjectLister = (*fakeRemote)(nil)
var _ port.SessionStore = (*fakeSessionStore)(nil)

func testLogger() *zap.Logger {
	return zap.NewNop()
}
