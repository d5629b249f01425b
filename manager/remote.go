package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyqf98/trainhub/manager/metrics"
	"github.com/hyqf98/trainhub/pkg/envs"
	"github.com/hyqf98/trainhub/pkg/orchestration"
	"github.com/hyqf98/trainhub/pkg/remote"
	"github.com/hyqf98/trainhub/pkg/template"
	"github.com/hyqf98/trainhub/pkg/uploader"
	"github.com/hyqf98/trainhub/task"
)

// startRemote moves the task to UPLOADING, persists immediately so the UI
// reflects the in-progress upload, then hands the bulk transfer to a
// background uploader and returns. Environment preparation and the remote
// launch happen in the upload-completion handler.
func (svc *service) startRemote(_ context.Context, t task.Task) error {
	t.AppendLog("[INFO] starting remote training task")

	if err := svc.sm.MarkUploading(&t); err != nil {
		return err
	}
	if err := svc.tasks.Update(t); err != nil {
		return err
	}

	if t.ServerID == nil {
		failErr := fmt.Errorf("%w: task has no server reference", remote.ErrServerNotFound)
		svc.persistFailure(&t, failErr)

		return failErr
	}
	srv, err := svc.servers.GetByID(*t.ServerID)
	if err != nil {
		failErr := fmt.Errorf("%w: id %d", remote.ErrServerNotFound, *t.ServerID)
		svc.persistFailure(&t, failErr)

		return failErr
	}

	t.AppendLog("[INFO] connecting to server: %s (%s)", srv.Name, srv.Host)
	executor := svc.dial(srv)
	if err := executor.Connect(); err != nil {
		failErr := fmt.Errorf("%w: %v", orchestration.ErrConnectionFailed, err)
		svc.persistFailure(&t, failErr)

		return failErr
	}
	t.AppendLog("[INFO] server connection established")
	if err := svc.tasks.Update(t); err != nil {
		svc.logger.Warn("failed to persist task", slog.Int("id", t.ID), slog.String("error", err.Error()))
	}

	up := uploader.New(executor, t.DatasetPath, t.RemotePath, svc.logger)

	svc.mu.Lock()
	svc.uploads[t.ID] = up
	svc.mu.Unlock()

	go svc.consumeUpload(t.ID, executor, up)
	up.Start()

	return nil
}

// consumeUpload is the single consumer of one upload's event stream. It
// relays log lines into the execution log, and on the terminal event either
// drives the remote training start or records the failure.
func (svc *service) consumeUpload(taskID int, executor remote.Executor, up *uploader.Uploader) {
	began := time.Now()

	defer func() {
		svc.mu.Lock()
		if svc.uploads[taskID] == up {
			delete(svc.uploads, taskID)
		}
		svc.mu.Unlock()

		if err := executor.Disconnect(); err != nil {
			svc.logger.Warn("error disconnecting from server", slog.Int("id", taskID), slog.String("error", err.Error()))
		}
	}()

	for ev := range up.Events() {
		switch ev.Kind {
		case uploader.EventLog:
			svc.appendTaskLog(taskID, ev.Line)
		case uploader.EventProgress:
			svc.logger.Debug("upload progress",
				slog.Int("id", taskID), slog.Int("uploaded", ev.Uploaded), slog.Int("total", ev.Total))
		case uploader.EventCompleted:
			metrics.UploadDuration.Observe(time.Since(began).Seconds())
			failed := len(ev.FailedFiles)
			metrics.UploadFilesTotal.WithLabelValues("ok").Add(float64(ev.Uploaded - failed))
			metrics.UploadFilesTotal.WithLabelValues("failed").Add(float64(failed))
			if err := svc.launchRemote(taskID, executor, ev.FailedFiles); err != nil {
				svc.failTask(taskID, err)
			}
		case uploader.EventError:
			metrics.UploadDuration.Observe(time.Since(began).Seconds())
			svc.failTask(taskID, ev.Err)
		}
	}
}

// launchRemote runs the post-upload start sequence: environment bootstrap,
// remote script generation and the detached launch command. Phase markers
// are persisted before each fallible step, so a mid-sequence failure leaves
// a log trail naming the phase that failed.
func (svc *service) launchRemote(taskID int, executor remote.Executor, failedFiles []string) error {
	if len(failedFiles) > 0 {
		svc.appendTaskLog(taskID, fmt.Sprintf("[WARNING] %d files failed to upload", len(failedFiles)))
	}

	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		return err
	}

	if t.EnvironmentName != "" {
		svc.appendTaskLog(taskID, fmt.Sprintf("[INFO] preparing remote environment: %s", t.EnvironmentName))
		boot := envs.NewCondaBootstrap(executor, svc.logger)
		if err := boot.Ensure(t.EnvironmentName); err != nil {
			return err
		}
	}

	if _, stderr, status, err := executor.Exec(fmt.Sprintf("mkdir -p '%s'", t.RemotePath)); err != nil {
		return fmt.Errorf("error creating remote directory: %w", err)
	} else if status != 0 {
		return fmt.Errorf("error creating remote directory: %s", stderr)
	}

	remoteScript := path.Join(t.RemotePath, template.ScriptName)
	svc.appendTaskLog(taskID, fmt.Sprintf("[INFO] generating remote run script: %s", remoteScript))
	if err := svc.stageRemoteScript(executor, remoteScript); err != nil {
		return err
	}

	launch := svc.commands.Background(t.RemotePath, t.EnvironmentName)
	svc.appendTaskLog(taskID, fmt.Sprintf("[INFO] executing: %s", launch.Command))

	stdout, stderr, _, err := executor.Exec(launch.Command)
	if err != nil {
		return fmt.Errorf("error launching remote training: %w", err)
	}
	if out := strings.TrimSpace(stdout); out != "" {
		svc.appendTaskLog(taskID, fmt.Sprintf("[OUTPUT] %s", out))
	}
	if errOut := strings.TrimSpace(stderr); errOut != "" {
		svc.appendTaskLog(taskID, fmt.Sprintf("[ERROR] %s", errOut))
	}

	// Re-read so the phase lines persisted above are not clobbered by this
	// final write.
	t, err = svc.tasks.GetByID(taskID)
	if err != nil {
		return err
	}
	t.ResultsPath = path.Join(t.RemotePath, "runs", "detect")
	if err := svc.sm.MarkRunning(&t); err != nil {
		return err
	}
	t.AppendLog("[INFO] training task started")
	svc.logger.Info("remote training task started", slog.Int("id", t.ID), slog.String("log", launch.LogPath))

	return svc.tasks.Update(t)
}

// stageRemoteScript writes the script body to a local staging file and
// uploads it; the executor boundary has no write-remote-content call.
func (svc *service) stageRemoteScript(executor remote.Executor, remoteScript string) error {
	staging := filepath.Join(os.TempDir(), "trainhub-"+uuid.NewString()+".py")
	if err := os.WriteFile(staging, []byte(svc.script.Script()), 0o755); err != nil {
		return fmt.Errorf("error staging run script: %w", err)
	}
	defer os.Remove(staging)

	if err := executor.UploadFile(staging, remoteScript); err != nil {
		return fmt.Errorf("error uploading run script: %w", err)
	}

	return nil
}

// stopRemote issues a best-effort pattern kill scoped to the task's remote
// path. Connection failure is tolerated: the task is still marked STOPPED
// locally, since the remote state is not re-verified either way.
func (svc *service) stopRemote(_ context.Context, t *task.Task) {
	if t.ServerID == nil {
		return
	}
	srv, err := svc.servers.GetByID(*t.ServerID)
	if err != nil {
		svc.logger.Warn("server configuration missing during stop", slog.Int("id", t.ID))
		t.AppendLog("[WARNING] server configuration missing, skipping remote kill")

		return
	}

	executor := svc.dial(srv)
	if err := executor.Connect(); err != nil {
		svc.logger.Warn("failed to connect during stop", slog.Int("id", t.ID), slog.String("error", err.Error()))
		t.AppendLog("[WARNING] could not connect to stop remote process: %v", err)

		return
	}
	defer executor.Disconnect()

	pattern := fmt.Sprintf("python.*%s", path.Join(t.RemotePath, template.ScriptName))
	if _, _, _, err := executor.Exec(fmt.Sprintf("pkill -f '%s'", pattern)); err != nil {
		svc.logger.Warn("remote kill failed", slog.Int("id", t.ID), slog.String("error", err.Error()))
		t.AppendLog("[WARNING] remote kill failed: %v", err)

		return
	}
	t.AppendLog("[INFO] issued remote kill for pattern: %s", pattern)
}
