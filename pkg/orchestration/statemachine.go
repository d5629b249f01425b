package orchestration

import (
	"slices"

	"github.com/hyqf98/trainhub/task"
)

type StateMachine struct{}

func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

// ValidateTransition reports whether a task may move between the two
// statuses. UPLOADING is only entered from a fresh start attempt; ERROR is
// reachable from every non-terminal point of a run. ERROR and COMPLETED are
// terminal per run attempt but a new start attempt may leave them again.
func (sm *StateMachine) ValidateTransition(from, to task.Status) bool {
	validTransitions := map[task.Status][]task.Status{
		task.Stopped:     {task.Uploading, task.Running, task.StatusError},
		task.Uploading:   {task.Running, task.Stopped, task.StatusError},
		task.Running:     {task.Completed, task.Stopped, task.StatusError},
		task.StatusError: {task.Uploading, task.Running, task.Stopped, task.StatusError},
		task.Completed:   {task.Uploading, task.Running, task.Stopped, task.StatusError},
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	return slices.Contains(allowed, to)
}

func (sm *StateMachine) Transition(t *task.Task, newStatus task.Status) error {
	if !sm.ValidateTransition(t.Status, newStatus) {
		return ErrInvalidStateTransition
	}

	t.Status = newStatus
	if newStatus != task.Running {
		t.ProcessID = nil
	}

	return nil
}

func (sm *StateMachine) MarkUploading(t *task.Task) error {
	return sm.Transition(t, task.Uploading)
}

func (sm *StateMachine) MarkRunning(t *task.Task) error {
	return sm.Transition(t, task.Running)
}

func (sm *StateMachine) MarkStopped(t *task.Task) error {
	return sm.Transition(t, task.Stopped)
}

func (sm *StateMachine) MarkCompleted(t *task.Task) error {
	return sm.Transition(t, task.Completed)
}

func (sm *StateMachine) MarkFailed(t *task.Task, errorMsg string) error {
	if err := sm.Transition(t, task.StatusError); err != nil {
		return err
	}
	t.AppendLog("[ERROR] %s", errorMsg)

	return nil
}

func (sm *StateMachine) IsTerminalState(status task.Status) bool {
	return status == task.Completed || status == task.StatusError
}
