package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hyqf98/trainhub/pkg/orchestration"
	"github.com/hyqf98/trainhub/task"
)

// startLocal validates, materializes the run script, checks the named
// environment and spawns the training process. Validation failures happen
// before any side effect; the task ends RUNNING or ERROR, persisted either
// way.
func (svc *service) startLocal(ctx context.Context, t task.Task) error {
	t.AppendLog("[INFO] starting local training task")

	if _, err := os.Stat(t.DatasetPath); err != nil {
		failErr := fmt.Errorf("%w: %s", orchestration.ErrDatasetMissing, t.DatasetPath)
		svc.persistFailure(&t, failErr)

		return failErr
	}
	t.AppendLog("[INFO] dataset path: %s", t.DatasetPath)

	scriptPath, err := svc.writeRunScript(t.DatasetPath)
	if err != nil {
		svc.persistFailure(&t, err)

		return err
	}
	t.AppendLog("[INFO] generated run script: %s", scriptPath)

	if t.EnvironmentName != "" {
		t.AppendLog("[INFO] checking environment: %s", t.EnvironmentName)
		exists, err := svc.probe.Exists(ctx, t.EnvironmentName)
		if err != nil {
			err = fmt.Errorf("error checking environment %s: %w", t.EnvironmentName, err)
			svc.persistFailure(&t, err)

			return err
		}
		if !exists {
			failErr := fmt.Errorf("%w: %s", orchestration.ErrEnvironmentMissing, t.EnvironmentName)
			svc.persistFailure(&t, failErr)

			return failErr
		}
	} else {
		t.AppendLog("[INFO] running without a named environment")
	}

	proc, err := svc.launcher.Launch(t.DatasetPath, t.EnvironmentName)
	if err != nil {
		err = fmt.Errorf("error launching training process: %w", err)
		svc.persistFailure(&t, err)

		return err
	}

	pid := proc.PID()
	t.ProcessID = &pid
	t.ResultsPath = filepath.Join(t.DatasetPath, "runs", "detect")
	t.AppendLog("[INFO] training task started: PID=%d", pid)

	if err := svc.sm.MarkRunning(&t); err != nil {
		_ = proc.Kill()
		svc.persistFailure(&t, err)

		return err
	}

	svc.mu.Lock()
	svc.procs[t.ID] = proc
	svc.mu.Unlock()

	go svc.reap(t.ID, proc)

	return svc.tasks.Update(t)
}

// persistFailure is the synchronous-path variant of failTask: the caller
// already holds the record with the log built up so far.
func (svc *service) persistFailure(t *task.Task, cause error) {
	if err := svc.sm.MarkFailed(t, cause.Error()); err != nil {
		t.Status = task.StatusError
		t.AppendLog("[ERROR] %s", cause.Error())
	}
	if err := svc.tasks.Update(*t); err != nil {
		svc.logger.Error("failed to persist task error", slog.Int("id", t.ID), slog.String("error", err.Error()))
	}
}

// reap waits for a spawned process so it does not linger as a zombie and
// releases the handle. Completion is observed externally, so the task
// status is left alone here.
func (svc *service) reap(taskID int, proc Process) {
	err := proc.Wait()

	svc.mu.Lock()
	if svc.procs[taskID] == proc {
		delete(svc.procs, taskID)
	}
	svc.mu.Unlock()

	if err != nil {
		svc.logger.Info("local training process exited", slog.Int("id", taskID), slog.String("error", err.Error()))

		return
	}
	svc.logger.Info("local training process exited", slog.Int("id", taskID))
}

// stopLocal terminates by the tracked handle when available, falling back
// to the recorded PID. Neither being available just means stop-by-process
// is unavailable.
func (svc *service) stopLocal(t *task.Task, proc Process) {
	switch {
	case proc != nil:
		if err := proc.Kill(); err != nil {
			svc.logger.Warn("failed to kill training process", slog.Int("id", t.ID), slog.String("error", err.Error()))
			t.AppendLog("[WARNING] failed to terminate process: %v", err)
		} else {
			t.AppendLog("[INFO] terminated training process")
		}
	case t.ProcessID != nil:
		p, err := os.FindProcess(*t.ProcessID)
		if err == nil {
			err = p.Kill()
		}
		if err != nil {
			svc.logger.Warn("failed to kill training process by pid",
				slog.Int("id", t.ID), slog.Int("pid", *t.ProcessID), slog.String("error", err.Error()))
			t.AppendLog("[WARNING] failed to terminate PID %d: %v", *t.ProcessID, err)
		} else {
			t.AppendLog("[INFO] terminated training process PID=%d", *t.ProcessID)
		}
	default:
		t.AppendLog("[INFO] no tracked process to terminate")
	}
}
