package transfer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkarpin/blobfetch/internal/domain"
)

func newTestExecutor(remote *fakeRemote) *Executor {
	return NewExecutor(remote, testLogger(), time.Millisecond)
}

func TestExecutor_FreshTransfer(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	remote := newFakeRemote()
	remote.put("fox.txt", data)

	path := filepath.Join(t.TempDir(), "fox.txt")
	sess := domain.NewSession("fox.txt", "media", path, int64(len(data)), "")

	written, err := newTestExecutor(remote).Attempt(context.Background(), sess, testOptions(), nil)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if written != int64(len(data)) {
		t.Errorf("written = %d, want %d", written, len(data))
	}
	if remote.openCalls != 1 || remote.rangeCalls != 0 {
		t.Errorf("openCalls = %d, rangeCalls = %d, want full read only", remote.openCalls, remote.rangeCalls)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("file = %q, want %q", got, data)
	}
}

func TestExecutor_ResumeUsesRangeRead(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 100)
	const offset = 300

	remote := newFakeRemote()
	remote.put("big.bin", data)

	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	if err := os.WriteFile(path, data[:offset], 0o644); err != nil {
		t.Fatal(err)
	}

	sess := domain.NewSession("big.bin", "media", path, int64(len(data)), "")
	sess = sess.WithProgress(offset)

	written, err := newTestExecutor(remote).Attempt(context.Background(), sess, testOptions(), nil)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if written != int64(len(data)) {
		t.Errorf("written = %d, want %d", written, len(data))
	}

	if remote.openCalls != 0 {
		t.Errorf("openCalls = %d, want 0 (bytes before the offset must not be re-read)", remote.openCalls)
	}
	if remote.rangeCalls != 1 || remote.rangeOffsets[0] != offset {
		t.Errorf("rangeCalls = %d offsets = %v, want one range read at %d",
			remote.rangeCalls, remote.rangeOffsets, offset)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("resumed file does not match remote object")
	}
}

func TestExecutor_ResumptionDisabledIgnoresOffset(t *testing.T) {
	data := []byte("abcdefghij")

	remote := newFakeRemote()
	remote.put("a.bin", data)

	path := filepath.Join(t.TempDir(), "a.bin")
	sess := domain.NewSession("a.bin", "media", path, int64(len(data)), "")
	sess = sess.WithProgress(4)

	opts := testOptions()
	opts.EnableResumption = false

	written, err := newTestExecutor(remote).Attempt(context.Background(), sess, opts, nil)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if written != int64(len(data)) {
		t.Errorf("written = %d, want %d", written, len(data))
	}
	if remote.rangeCalls != 0 {
		t.Errorf("rangeCalls = %d, want 0", remote.rangeCalls)
	}
}

func TestExecutor_MidStreamFailureReportsDiskSize(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100*1024)

	remote := newFakeRemote()
	remote.put("big.bin", data)
	remote.failAfter = 40000

	path := filepath.Join(t.TempDir(), "big.bin")
	sess := domain.NewSession("big.bin", "media", path, int64(len(data)), "")

	written, err := newTestExecutor(remote).Attempt(context.Background(), sess, testOptions(), nil)
	if err == nil {
		t.Fatal("Attempt succeeded, want mid-stream failure")
	}
	if !domain.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}

	fi, statErr := os.Stat(path)
	if statErr != nil {
		t.Fatal(statErr)
	}
	if written != fi.Size() {
		t.Errorf("written = %d, disk = %d; the on-disk size is authoritative", written, fi.Size())
	}
	if written == 0 || written > 40000 {
		t.Errorf("written = %d, want the flushed prefix (0 < written <= 40000)", written)
	}
}

func TestExecutor_OpenFailureIsTransient(t *testing.T) {
	remote := newFakeRemote()
	remote.put("a.txt", []byte("hello"))
	remote.failOpens = 1

	path := filepath.Join(t.TempDir(), "a.txt")
	sess := domain.NewSession("a.txt", "media", path, 5, "")

	_, err := newTestExecutor(remote).Attempt(context.Background(), sess, testOptions(), nil)
	if !domain.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestExecutor_CancellationKeepsPartialFile(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 100*1024)

	remote := newFakeRemote()
	remote.put("big.bin", data)

	path := filepath.Join(t.TempDir(), "big.bin")
	sess := domain.NewSession("big.bin", "media", path, int64(len(data)), "")

	ctx, cancel := context.WithCancel(context.Background())

	var once bool
	onProgress := func(domain.ProgressSnapshot) {
		if !once {
			once = true
			cancel()
		}
	}

	written, err := newTestExecutor(remote).Attempt(ctx, sess, testOptions(), onProgress)
	if !domain.IsCancelled(err) {
		t.Fatalf("err = %v, want cancellation", err)
	}
	if domain.IsTransient(err) {
		t.Error("cancellation must not count as transient")
	}

	fi, statErr := os.Stat(path)
	if statErr != nil {
		t.Fatalf("partial file removed: %v", statErr)
	}
	if written != fi.Size() {
		t.Errorf("written = %d, disk = %d", written, fi.Size())
	}
}
