package orchestration

import (
	"errors"
	"testing"

	"github.com/hyqf98/trainhub/task"
)

func TestValidateTransition(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		name    string
		from    task.Status
		to      task.Status
		allowed bool
	}{
		{"stopped to uploading", task.Stopped, task.Uploading, true},
		{"stopped to running", task.Stopped, task.Running, true},
		{"stopped to completed", task.Stopped, task.Completed, false},
		{"uploading to running", task.Uploading, task.Running, true},
		{"uploading to stopped", task.Uploading, task.Stopped, true},
		{"uploading to completed", task.Uploading, task.Completed, false},
		{"running to completed", task.Running, task.Completed, true},
		{"running to stopped", task.Running, task.Stopped, true},
		{"running to uploading", task.Running, task.Uploading, false},
		{"error to uploading", task.StatusError, task.Uploading, true},
		{"error to running", task.StatusError, task.Running, true},
		{"completed to uploading", task.Completed, task.Uploading, true},
		{"completed to running", task.Completed, task.Running, true},
		{"anything to error", task.Uploading, task.StatusError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sm.ValidateTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("ValidateTransition(%s, %s) = %v, expected %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestTransitionClearsProcessID(t *testing.T) {
	sm := NewStateMachine()

	pid := 1234
	tk := task.Task{Status: task.Running, ProcessID: &pid}

	if err := sm.MarkStopped(&tk); err != nil {
		t.Fatalf("MarkStopped: %v", err)
	}
	if tk.ProcessID != nil {
		t.Error("process id must be cleared when leaving RUNNING")
	}

	tk = task.Task{Status: task.Stopped, ProcessID: &pid}
	if err := sm.MarkRunning(&tk); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if tk.ProcessID == nil {
		t.Error("process id must survive a transition into RUNNING")
	}
}

func TestInvalidTransitionLeavesTaskUntouched(t *testing.T) {
	sm := NewStateMachine()

	tk := task.Task{Status: task.Stopped}
	err := sm.MarkCompleted(&tk)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if tk.Status != task.Stopped {
		t.Errorf("status changed on rejected transition: %s", tk.Status)
	}
}

func TestMarkFailedAppendsLog(t *testing.T) {
	sm := NewStateMachine()

	tk := task.Task{Status: task.Running}
	if err := sm.MarkFailed(&tk, "dataset path does not exist"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if tk.Status != task.StatusError {
		t.Errorf("expected ERROR, got %s", tk.Status)
	}
	if tk.ExecutionLog != "[ERROR] dataset path does not exist\n" {
		t.Errorf("unexpected log: %q", tk.ExecutionLog)
	}
}

func TestIsTerminalState(t *testing.T) {
	sm := NewStateMachine()

	if !sm.IsTerminalState(task.Completed) || !sm.IsTerminalState(task.StatusError) {
		t.Error("COMPLETED and ERROR are terminal per run attempt")
	}
	if sm.IsTerminalState(task.Running) || sm.IsTerminalState(task.Uploading) || sm.IsTerminalState(task.Stopped) {
		t.Error("non-terminal status reported terminal")
	}
}
