// Package uploader mirrors a local directory tree to a remote directory on
// a background worker, reporting progress through an event channel so the
// invoking thread is never blocked by transfer I/O.
package uploader

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"
)

type EventKind uint8

const (
	EventProgress EventKind = iota
	EventLog
	EventCompleted
	EventError
)

// Event is one notification from the upload worker. Progress events carry
// non-decreasing Uploaded counts, one per processed file; exactly one of
// Completed or Error terminates a run that was not stopped. Completed
// carries the files whose individual transfers failed (the walk tolerates
// them, but the information is not dropped).
type Event struct {
	Kind        EventKind
	Uploaded    int
	Total       int
	Line        string
	FailedFiles []string
	Err         error
}

// FileTransfer is the per-file capability the worker needs; satisfied by
// remote.Executor.
type FileTransfer interface {
	Exec(command string) (stdout, stderr string, exitStatus int, err error)
	UploadFile(localPath, remotePath string) error
}

const stopWait = 5 * time.Second

// Uploader runs at most one upload in its lifetime; the orchestrator builds
// a fresh instance per run attempt.
type Uploader struct {
	transfer   FileTransfer
	localRoot  string
	remoteRoot string
	logger     *slog.Logger

	events   chan Event
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool

	uploaded int
	failed   []string
}

func New(transfer FileTransfer, localRoot, remoteRoot string, logger *slog.Logger) *Uploader {
	return &Uploader{
		transfer:   transfer,
		localRoot:  localRoot,
		remoteRoot: remoteRoot,
		logger:     logger,
		events:     make(chan Event, 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Events is closed when the worker exits, whether it completed, failed or
// was stopped.
func (u *Uploader) Events() <-chan Event {
	return u.events
}

// Start spins up the background worker. Starting an uploader that already
// ran (or is running) is a warned no-op.
func (u *Uploader) Start() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.started {
		u.logger.Warn("upload already in flight", slog.String("local", u.localRoot))

		return
	}
	u.started = true

	go u.worker()
}

// Stop requests cooperative cancellation and waits up to stopWait for the
// worker to exit. The worker checks the flag between directories and
// between files; a single in-progress file transfer is not interrupted, so
// side effects may continue briefly after Stop returns.
func (u *Uploader) Stop() {
	u.mu.Lock()
	started := u.started
	u.mu.Unlock()

	u.stopOnce.Do(func() { close(u.stop) })
	if !started {
		return
	}

	select {
	case <-u.done:
	case <-time.After(stopWait):
		u.logger.Warn("upload worker did not exit in time", slog.String("local", u.localRoot))
	}
}

func (u *Uploader) stopped() bool {
	select {
	case <-u.stop:
		return true
	default:
		return false
	}
}

// emit never blocks past cancellation: a stopped run may drop events.
func (u *Uploader) emit(ev Event) {
	select {
	case u.events <- ev:
	case <-u.stop:
	}
}

func (u *Uploader) worker() {
	defer close(u.done)
	defer close(u.events)

	u.emit(Event{Kind: EventLog, Line: "[INFO] starting background upload"})

	total, err := countFiles(u.localRoot)
	if err != nil {
		u.fail(fmt.Errorf("error scanning %s: %w", u.localRoot, err))

		return
	}
	u.emit(Event{Kind: EventLog, Line: fmt.Sprintf("[INFO] %d files to upload", total)})

	// The remote root must exist before anything beneath it; inability to
	// create it aborts the whole transfer.
	if err := u.ensureRemoteDir(u.remoteRoot); err != nil {
		u.fail(err)

		return
	}

	if err := u.mirror(total); err != nil {
		if !u.stopped() {
			u.fail(err)
		}

		return
	}

	if u.stopped() {
		return
	}

	u.emit(Event{Kind: EventLog, Line: "[INFO] upload finished"})
	u.emit(Event{Kind: EventCompleted, Uploaded: u.uploaded, Total: total, FailedFiles: u.failed})
}

func (u *Uploader) fail(err error) {
	u.emit(Event{Kind: EventLog, Line: fmt.Sprintf("[ERROR] upload failed: %v", err)})
	u.emit(Event{Kind: EventError, Err: err})
}

// mirror walks the local tree in lexical order, so every directory is
// ensured remotely before the files beneath it are attempted. Per-file and
// per-directory failures are logged and counted but do not stop the walk.
func (u *Uploader) mirror(total int) error {
	return filepath.WalkDir(u.localRoot, func(localPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if u.stopped() {
			return fs.SkipAll
		}

		remotePath, err := u.remotePathFor(localPath)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if localPath == u.localRoot {
				return nil
			}
			if err := u.ensureRemoteDir(remotePath); err != nil {
				u.emit(Event{Kind: EventLog, Line: fmt.Sprintf("[WARNING] creating remote directory %s: %v", remotePath, err)})
			}

			return nil
		}

		if err := u.transfer.UploadFile(localPath, remotePath); err != nil {
			u.emit(Event{Kind: EventLog, Line: fmt.Sprintf("[WARNING] upload failed %s: %v", localPath, err)})
			u.failed = append(u.failed, localPath)
		} else {
			u.emit(Event{Kind: EventLog, Line: fmt.Sprintf("[INFO] uploaded %s -> %s", localPath, remotePath)})
		}

		// Failed files still advance the count so the progress ratio stays
		// meaningful over the full walk.
		u.uploaded++
		u.emit(Event{Kind: EventProgress, Uploaded: u.uploaded, Total: total})

		return nil
	})
}

// remotePathFor maps the relative sub-path under the local root onto the
// remote root, always with forward slashes.
func (u *Uploader) remotePathFor(localPath string) (string, error) {
	rel, err := filepath.Rel(u.localRoot, localPath)
	if err != nil {
		return "", fmt.Errorf("error resolving %s: %w", localPath, err)
	}
	if rel == "." {
		return u.remoteRoot, nil
	}

	return path.Join(u.remoteRoot, filepath.ToSlash(rel)), nil
}

func (u *Uploader) ensureRemoteDir(remoteDir string) error {
	_, stderr, status, err := u.transfer.Exec(fmt.Sprintf("mkdir -p '%s'", remoteDir))
	if err != nil {
		return fmt.Errorf("error creating remote directory %s: %w", remoteDir, err)
	}
	if status != 0 {
		return fmt.Errorf("error creating remote directory %s: %s", remoteDir, stderr)
	}

	return nil
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}

		return nil
	})

	return count, err
}
