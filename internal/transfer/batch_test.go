package transfer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkarpin/blobfetch/internal/domain"
)

func TestEngine_StartBatchDownload(t *testing.T) {
	remote := newFakeRemote()
	objects := map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.txt": []byte("bravo bravo"),
		"c.txt": []byte("charlie"),
		"d.txt": []byte("delta delta delta"),
		"e.txt": []byte("echo"),
	}
	var totalBytes int64
	for name, data := range objects {
		remote.put(name, data)
		totalBytes += int64(len(data))
	}
	remote.putCorrupt("c.txt", objects["c.txt"]) // checksum will not match

	e := newTestEngine(remote, newFakeSessionStore(), nil)

	dir := t.TempDir()
	opts := testOptions()
	opts.VerifyChecksum = true

	var lastBatch domain.BatchProgress
	results := e.StartBatchDownload(context.Background(), "*.txt", dir, opts, nil,
		func(p domain.BatchProgress) { lastBatch = p })

	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}

	var ok, failed int
	for _, r := range results {
		if r.Success {
			ok++
			got, err := os.ReadFile(r.LocalFilePath)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, objects[r.ObjectName]) {
				t.Errorf("%s: content mismatch", r.ObjectName)
			}
			continue
		}
		failed++
		if r.ObjectName != "c.txt" {
			t.Errorf("unexpected failure for %s: %v", r.ObjectName, r.Err)
		}
		if !domain.IsIntegrityFailure(r.Err) {
			t.Errorf("c.txt: Err = %v, want integrity failure", r.Err)
		}
	}
	if ok != 4 || failed != 1 {
		t.Errorf("ok = %d failed = %d, want 4 and 1; one bad object must not abort the batch", ok, failed)
	}

	if lastBatch.TotalObjects != 5 || lastBatch.CompletedObjects != 4 || lastBatch.FailedObjects != 1 {
		t.Errorf("final aggregate = %+v, want 4 completed and 1 failed of 5", lastBatch)
	}
	if lastBatch.TotalBytes != totalBytes {
		t.Errorf("TotalBytes = %d, want %d", lastBatch.TotalBytes, totalBytes)
	}
}

func TestEngine_BatchSkipsDoNotAbort(t *testing.T) {
	remote := newFakeRemote()
	remote.put("a.txt", []byte("alpha"))
	remote.put("b.txt", []byte("bravo"))
	remote.put("c.txt", []byte("charlie"))

	e := newTestEngine(remote, nil, nil)

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.txt"))

	opts := testOptions()
	opts.ConflictMode = domain.ConflictSkip

	results := e.StartBatchDownload(context.Background(), "*.txt", dir, opts, nil, nil)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	for _, r := range results {
		if r.ObjectName == "b.txt" {
			if !r.Skipped() {
				t.Errorf("b.txt: %+v, want skipped", r)
			}
			continue
		}
		if !r.Success {
			t.Errorf("%s failed: %s", r.ObjectName, r.ErrorMessage())
		}
	}
}

func TestEngine_BatchCancellationStopsBeforeNextObject(t *testing.T) {
	remote := newFakeRemote()
	remote.put("a.txt", []byte("alpha"))
	remote.put("b.txt", []byte("bravo"))
	remote.put("c.txt", []byte("charlie"))

	e := newTestEngine(remote, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel as soon as the first object reaches its terminal stage.
	onProgress := func(s domain.ProgressSnapshot) {
		if s.Stage == domain.StageCompleted {
			cancel()
		}
	}

	results := e.StartBatchDownload(ctx, "*.txt", t.TempDir(), testOptions(), onProgress, nil)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (remaining objects never start)", len(results))
	}
	if !results[0].Success {
		t.Errorf("first object failed: %s", results[0].ErrorMessage())
	}
}

func TestEngine_BatchApplyToAll(t *testing.T) {
	remote := newFakeRemote()
	remote.put("a.txt", []byte("alpha"))
	remote.put("b.txt", []byte("bravo"))
	remote.put("c.txt", []byte("charlie"))

	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		touch(t, filepath.Join(dir, name))
	}

	answer := domain.SkipDecision()
	answer.ApplyToAll = true
	human := &fakeInteractive{decision: answer}

	e := newTestEngine(remote, nil, human)

	opts := testOptions()
	opts.ConflictMode = domain.ConflictAsk

	results := e.StartBatchDownload(context.Background(), "*.txt", dir, opts, nil, nil)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for _, r := range results {
		if !r.Skipped() {
			t.Errorf("%s: %+v, want skipped", r.ObjectName, r)
		}
	}
	if human.calls != 1 {
		t.Errorf("interactive calls = %d, want 1 (apply-to-all answers the rest)", human.calls)
	}
}

// errLister always fails to enumerate.
type errLister struct{}

func (errLister) List(ctx context.Context, pattern, prefix string) ([]string, error) {
	return nil, errors.New("store unavailable")
}

func TestEngine_BatchListFailure(t *testing.T) {
	remote := newFakeRemote()
	e := New(&Config{Container: "media"}, remote, errLister{}, nil, nil, nil, testLogger())

	results := e.StartBatchDownload(context.Background(), "*.txt", t.TempDir(), testOptions(), nil, nil)
	if len(results) != 1 {
		t.Fatalf("results = %d, want a single failure entry", len(results))
	}
	if results[0].Success || results[0].Err == nil {
		t.Errorf("result = %+v, want listing failure", results[0])
	}
}

func TestEngine_BatchWithoutLister(t *testing.T) {
	e := New(&Config{Container: "media"}, newFakeRemote(), nil, nil, nil, nil, testLogger())

	results := e.StartBatchDownload(context.Background(), "*.txt", t.TempDir(), testOptions(), nil, nil)
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("results = %+v, want a single configuration error", results)
	}
}
