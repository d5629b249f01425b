// Package manager drives the training-task lifecycle: task CRUD over the
// persistent store, local process launch, and the asynchronous
// upload-then-start flow for remote runs.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/0x6flab/namegenerator"
	"github.com/hyqf98/trainhub/pkg/orchestration"
	"github.com/hyqf98/trainhub/pkg/remote"
	"github.com/hyqf98/trainhub/pkg/template"
	"github.com/hyqf98/trainhub/pkg/uploader"
	"github.com/hyqf98/trainhub/task"

	"github.com/hyqf98/trainhub/manager/metrics"
)

var namegen = namegenerator.NewGenerator()

// Service is the produced interface the UI layer consumes.
type Service interface {
	CreateTask(t task.Task) (task.Task, error)
	GetTask(taskID int) (task.Task, error)
	ListTasks() []task.Task
	UpdateTask(t task.Task) (task.Task, error)
	DeleteTask(ctx context.Context, taskID int) error

	StartTask(ctx context.Context, taskID int) error
	StopTask(ctx context.Context, taskID int) error
	MarkCompleted(taskID int) error
	TaskLog(taskID int) (string, error)
}

type service struct {
	tasks    *task.Store
	servers  remote.Directory
	dial     remote.Dialer
	probe    EnvironmentProber
	script   template.Provider
	launcher Launcher
	commands CommandBuilder
	sm       *orchestration.StateMachine
	logger   *slog.Logger

	mu      sync.Mutex
	procs   map[int]Process
	uploads map[int]*uploader.Uploader
}

// EnvironmentProber answers existence checks for local named environments.
type EnvironmentProber interface {
	Exists(ctx context.Context, name string) (bool, error)
}

func NewService(
	tasks *task.Store, servers remote.Directory, dial remote.Dialer,
	probe EnvironmentProber, script template.Provider,
	launcher Launcher, commands CommandBuilder, logger *slog.Logger,
) Service {
	return &service{
		tasks:    tasks,
		servers:  servers,
		dial:     dial,
		probe:    probe,
		script:   script,
		launcher: launcher,
		commands: commands,
		sm:       orchestration.NewStateMachine(),
		logger:   logger,
		procs:    make(map[int]Process),
		uploads:  make(map[int]*uploader.Uploader),
	}
}

func (svc *service) CreateTask(t task.Task) (task.Task, error) {
	if t.Name == "" {
		t.Name = namegen.Generate()
	}
	if err := validateTask(t); err != nil {
		return task.Task{}, err
	}

	t.Status = task.Stopped
	t.ProcessID = nil
	t.ExecutionLog = ""

	return svc.tasks.Add(t)
}

func validateTask(t task.Task) error {
	if t.DatasetPath == "" {
		return errors.New("dataset path is required")
	}
	switch t.ExecutionMode {
	case task.Local:
		if t.SavePath == "" {
			return errors.New("save path is required for local tasks")
		}
	case task.Remote:
		if t.ServerID == nil {
			return fmt.Errorf("%w: remote task has no server reference", remote.ErrServerNotFound)
		}
		if t.RemotePath == "" {
			return errors.New("remote path is required for remote tasks")
		}
	}

	return nil
}

func (svc *service) GetTask(taskID int) (task.Task, error) {
	return svc.tasks.GetByID(taskID)
}

func (svc *service) ListTasks() []task.Task {
	return svc.tasks.GetAll()
}

// UpdateTask replaces the editable fields of a task. Editing a task with an
// outstanding run attempt is disallowed; runtime state (status, process
// handle, log) always survives from the stored record.
func (svc *service) UpdateTask(t task.Task) (task.Task, error) {
	dbT, err := svc.tasks.GetByID(t.ID)
	if err != nil {
		return task.Task{}, err
	}
	if dbT.Status.Active() {
		return task.Task{}, orchestration.ErrTaskActive
	}
	if err := validateTask(t); err != nil {
		return task.Task{}, err
	}

	t.Status = dbT.Status
	t.ProcessID = dbT.ProcessID
	t.ExecutionLog = dbT.ExecutionLog
	t.ResultsPath = dbT.ResultsPath

	if err := svc.tasks.Update(t); err != nil {
		return task.Task{}, err
	}

	return t, nil
}

// DeleteTask removes a task, stopping it first if a run attempt is
// outstanding. Deleting an unknown id is a no-op.
func (svc *service) DeleteTask(ctx context.Context, taskID int) error {
	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return svc.tasks.Delete(taskID)
		}

		return err
	}

	if t.Status.Active() {
		if err := svc.StopTask(ctx, taskID); err != nil {
			return fmt.Errorf("error stopping task before delete: %w", err)
		}
	}

	svc.logger.Info("deleting training task", slog.Int("id", taskID), slog.String("name", t.Name))

	return svc.tasks.Delete(taskID)
}

// StartTask begins a run attempt. The execution log is cleared per attempt.
// LOCAL runs are fully started on return; REMOTE runs return once the
// background upload is in flight, with the rest of the flow driven by
// upload events.
func (svc *service) StartTask(ctx context.Context, taskID int) error {
	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		return err
	}
	if t.Status.Active() {
		return orchestration.ErrTaskActive
	}

	t.ExecutionLog = ""

	switch t.ExecutionMode {
	case task.Remote:
		err = svc.startRemote(ctx, t)
	default:
		err = svc.startLocal(ctx, t)
	}

	if err != nil {
		metrics.TaskStartsTotal.WithLabelValues(t.ExecutionMode.String(), "error").Inc()

		return err
	}
	metrics.TaskStartsTotal.WithLabelValues(t.ExecutionMode.String(), "ok").Inc()

	return nil
}

// failTask re-reads the record so concurrent log appends are not lost,
// marks it failed and persists.
func (svc *service) failTask(taskID int, cause error) {
	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		svc.logger.Error("failed to load task for error transition", slog.Int("id", taskID), slog.String("error", err.Error()))

		return
	}

	if err := svc.sm.MarkFailed(&t, cause.Error()); err != nil {
		svc.logger.Warn("invalid error transition", slog.Int("id", taskID), slog.String("from", t.Status.String()))
		t.Status = task.StatusError
		t.AppendLog("[ERROR] %s", cause.Error())
	}
	if err := svc.tasks.Update(t); err != nil {
		svc.logger.Error("failed to persist task error", slog.Int("id", taskID), slog.String("error", err.Error()))
	}
}

// StopTask terminates a run attempt: local processes are killed, remote
// runs are killed best-effort by command pattern, in-flight uploads are
// cancelled. The task always ends STOPPED locally; the remote process state
// is not re-verified.
func (svc *service) StopTask(ctx context.Context, taskID int) error {
	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	up := svc.uploads[taskID]
	proc := svc.procs[taskID]
	delete(svc.uploads, taskID)
	delete(svc.procs, taskID)
	svc.mu.Unlock()

	if up != nil {
		up.Stop()
	}

	switch t.ExecutionMode {
	case task.Local:
		svc.stopLocal(&t, proc)
	case task.Remote:
		svc.stopRemote(ctx, &t)
	}

	if err := svc.sm.MarkStopped(&t); err != nil {
		t.Status = task.Stopped
		t.ProcessID = nil
	}
	t.AppendLog("[INFO] task stopped")
	metrics.TaskStopsTotal.Inc()

	return svc.tasks.Update(t)
}

// MarkCompleted records an externally-observed completion; the orchestrator
// does not track training progress itself.
func (svc *service) MarkCompleted(taskID int) error {
	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		return err
	}
	if err := svc.sm.MarkCompleted(&t); err != nil {
		return err
	}
	t.AppendLog("[INFO] training completed")

	return svc.tasks.Update(t)
}

func (svc *service) TaskLog(taskID int) (string, error) {
	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		return "", err
	}

	return t.ExecutionLog, nil
}

// appendTaskLog appends one line against the freshest stored record, so
// interleaved status writes from other goroutines are preserved.
func (svc *service) appendTaskLog(taskID int, line string) {
	t, err := svc.tasks.GetByID(taskID)
	if err != nil {
		return
	}
	t.ExecutionLog += line + "\n"
	if err := svc.tasks.Update(t); err != nil {
		svc.logger.Warn("failed to persist log line", slog.Int("id", taskID), slog.String("error", err.Error()))
	}
}

func (svc *service) writeRunScript(dir string) (string, error) {
	scriptPath := filepath.Join(dir, template.ScriptName)
	if err := os.WriteFile(scriptPath, []byte(svc.script.Script()), 0o755); err != nil {
		return "", fmt.Errorf("error writing run script: %w", err)
	}

	return scriptPath, nil
}
