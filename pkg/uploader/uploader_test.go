package uploader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransfer records every remote operation and can be programmed to
// fail specific files, mkdir commands, or to block until released.
type fakeTransfer struct {
	mu        sync.Mutex
	commands  []string
	uploads   []string
	failFiles map[string]error
	failMkdir bool
	gate      chan struct{}
}

func (f *fakeTransfer) Exec(command string) (string, string, int, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()

	if f.failMkdir && strings.HasPrefix(command, "mkdir") {
		return "", "permission denied", 1, nil
	}

	return "", "", 0, nil
}

func (f *fakeTransfer) UploadFile(localPath, remotePath string) error {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failFiles[filepath.Base(localPath)]; ok {
		return err
	}
	f.uploads = append(f.uploads, remotePath)

	return nil
}

func (f *fakeTransfer) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.uploads))
	copy(out, f.uploads)

	return out
}

// writeTree lays out a small dataset: two files at the root, one nested.
func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := []string{"data.yaml", "images/train/a.jpg", "images/train/b.jpg"}
	for _, f := range files {
		full := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(f), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return root
}

func collect(t *testing.T, u *Uploader) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-u.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out draining events")
		}
	}
}

func TestUploadMirrorsTree(t *testing.T) {
	root := writeTree(t)
	transfer := &fakeTransfer{}
	u := New(transfer, root, "/srv/train", testLogger())

	u.Start()
	events := collect(t, u)

	var progress []int
	var completed *Event
	for i := range events {
		switch events[i].Kind {
		case EventProgress:
			progress = append(progress, events[i].Uploaded)
		case EventCompleted:
			completed = &events[i]
		case EventError:
			t.Fatalf("unexpected error event: %v", events[i].Err)
		}
	}

	// One progress event per file, counts 1..N in order.
	if len(progress) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(progress))
	}
	for i, p := range progress {
		if p != i+1 {
			t.Errorf("progress[%d] = %d, expected %d", i, p, i+1)
		}
	}

	if completed == nil {
		t.Fatal("no completed event")
	}
	if completed.Uploaded != 3 || completed.Total != 3 {
		t.Errorf("completed %d/%d, expected 3/3", completed.Uploaded, completed.Total)
	}
	if len(completed.FailedFiles) != 0 {
		t.Errorf("unexpected failed files: %v", completed.FailedFiles)
	}

	uploads := transfer.uploaded()
	want := map[string]bool{
		"/srv/train/data.yaml":          true,
		"/srv/train/images/train/a.jpg": true,
		"/srv/train/images/train/b.jpg": true,
	}
	if len(uploads) != len(want) {
		t.Fatalf("uploaded %v", uploads)
	}
	for _, up := range uploads {
		if !want[up] {
			t.Errorf("unexpected remote path %s", up)
		}
	}
}

func TestUploadToleratesFileFailures(t *testing.T) {
	root := writeTree(t)
	transfer := &fakeTransfer{
		failFiles: map[string]error{"a.jpg": errors.New("sftp: connection reset")},
	}
	u := New(transfer, root, "/srv/train", testLogger())

	u.Start()
	events := collect(t, u)

	var completed *Event
	lastProgress := 0
	for i := range events {
		switch events[i].Kind {
		case EventProgress:
			lastProgress = events[i].Uploaded
		case EventCompleted:
			completed = &events[i]
		case EventError:
			t.Fatalf("per-file failure must not be terminal: %v", events[i].Err)
		}
	}

	if completed == nil {
		t.Fatal("no completed event")
	}
	// The failed file still advances the counter.
	if lastProgress != 3 || completed.Uploaded != 3 {
		t.Errorf("expected count to reach 3, got progress=%d completed=%d", lastProgress, completed.Uploaded)
	}
	if len(completed.FailedFiles) != 1 || filepath.Base(completed.FailedFiles[0]) != "a.jpg" {
		t.Errorf("expected a.jpg in failed files, got %v", completed.FailedFiles)
	}

	var sawWarning bool
	for _, ev := range events {
		if ev.Kind == EventLog && strings.Contains(ev.Line, "[WARNING] upload failed") {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Error("expected a warning log line for the failed file")
	}
}

func TestUploadRemoteRootFailureIsTerminal(t *testing.T) {
	root := writeTree(t)
	transfer := &fakeTransfer{failMkdir: true}
	u := New(transfer, root, "/srv/train", testLogger())

	u.Start()
	events := collect(t, u)

	var sawError, sawCompleted bool
	for _, ev := range events {
		switch ev.Kind {
		case EventError:
			sawError = true
		case EventCompleted:
			sawCompleted = true
		}
	}

	if !sawError {
		t.Error("expected a terminal error event")
	}
	if sawCompleted {
		t.Error("completed must not follow a terminal error")
	}
	if got := transfer.uploaded(); len(got) != 0 {
		t.Errorf("no files should upload after root mkdir failure, got %v", got)
	}
}

func TestStopCancelsWithoutTerminalEvent(t *testing.T) {
	root := writeTree(t)
	transfer := &fakeTransfer{gate: make(chan struct{})}
	u := New(transfer, root, "/srv/train", testLogger())

	u.Start()

	// Let the first transfer begin, then cancel and release the worker.
	done := make(chan struct{})
	go func() {
		u.Stop()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	close(transfer.gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	for ev := range u.Events() {
		if ev.Kind == EventCompleted || ev.Kind == EventError {
			t.Errorf("stopped run emitted terminal event %v", ev.Kind)
		}
	}

	if got := transfer.uploaded(); len(got) > 1 {
		t.Errorf("expected at most the in-flight file to finish, got %v", got)
	}
}

func TestStartTwiceIsNoOp(t *testing.T) {
	root := writeTree(t)
	transfer := &fakeTransfer{}
	u := New(transfer, root, "/srv/train", testLogger())

	u.Start()
	u.Start()

	events := collect(t, u)

	completed := 0
	for _, ev := range events {
		if ev.Kind == EventCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Errorf("expected exactly one completed event, got %d", completed)
	}
	if got := transfer.uploaded(); len(got) != 3 {
		t.Errorf("expected 3 uploads, got %d", len(got))
	}
}

func TestRemotePathMapping(t *testing.T) {
	u := New(&fakeTransfer{}, filepath.FromSlash("/data/set"), "/srv/train", testLogger())

	tests := []struct {
		local    string
		expected string
	}{
		{"/data/set", "/srv/train"},
		{"/data/set/a.txt", "/srv/train/a.txt"},
		{"/data/set/images/a.jpg", "/srv/train/images/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.local, func(t *testing.T) {
			got, err := u.remotePathFor(filepath.FromSlash(tt.local))
			if err != nil {
				t.Fatalf("remotePathFor: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestEventOrderingEndsWithCompleted(t *testing.T) {
	root := writeTree(t)
	transfer := &fakeTransfer{}
	u := New(transfer, root, fmt.Sprintf("/srv/run-%d", os.Getpid()), testLogger())

	u.Start()
	events := collect(t, u)

	if len(events) == 0 {
		t.Fatal("no events")
	}
	if last := events[len(events)-1]; last.Kind != EventCompleted {
		t.Errorf("expected final event to be Completed, got kind %d", last.Kind)
	}
}
