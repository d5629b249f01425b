package task

import "fmt"

type ExecutionMode uint8

const (
	Local ExecutionMode = iota
	Remote
)

func (m ExecutionMode) String() string {
	switch m {
	case Local:
		return "LOCAL"
	case Remote:
		return "REMOTE"
	default:
		return "Unknown"
	}
}

func (m ExecutionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ExecutionMode) UnmarshalText(data []byte) error {
	switch string(data) {
	case "LOCAL", "":
		*m = Local
	case "REMOTE":
		*m = Remote
	default:
		return fmt.Errorf("unknown execution mode %q", string(data))
	}

	return nil
}

type Status uint8

const (
	Stopped Status = iota
	Uploading
	Running
	StatusError
	Completed
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Uploading:
		return "UPLOADING"
	case Running:
		return "RUNNING"
	case StatusError:
		return "ERROR"
	case Completed:
		return "COMPLETED"
	default:
		return "Unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(data []byte) error {
	switch string(data) {
	case "STOPPED", "":
		*s = Stopped
	case "UPLOADING":
		*s = Uploading
	case "RUNNING":
		*s = Running
	case "ERROR":
		*s = StatusError
	case "COMPLETED":
		*s = Completed
	default:
		return fmt.Errorf("unknown task status %q", string(data))
	}

	return nil
}

// Active reports whether a run attempt is outstanding for the task.
func (s Status) Active() bool {
	return s == Uploading || s == Running
}

// Task describes one training task and its mutable runtime state.
// SavePath is the destination for LOCAL tasks, RemotePath for REMOTE ones;
// which of the two is meaningful follows ExecutionMode.
type Task struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	ExecutionMode   ExecutionMode `json:"execution_mode"`
	DatasetPath     string        `json:"dataset_path"`
	SavePath        string        `json:"save_path,omitempty"`
	ServerID        *int          `json:"server_id,omitempty"`
	RemotePath      string        `json:"remote_path,omitempty"`
	EnvironmentName string        `json:"environment_name,omitempty"`
	Status          Status        `json:"status"`
	ProcessID       *int          `json:"process_id,omitempty"`
	ResultsPath     string        `json:"results_path,omitempty"`
	ExecutionLog    string        `json:"execution_log,omitempty"`
}

// AppendLog adds one chronological line to the execution log.
func (t *Task) AppendLog(format string, args ...any) {
	t.ExecutionLog += fmt.Sprintf(format, args...) + "\n"
}

func FilterRunningTasks(tasks []Task) []Task {
	var runningTasks []Task
	for _, t := range tasks {
		if t.Status == Running {
			runningTasks = append(runningTasks, t)
		}
	}

	return runningTasks
}

func FilterActiveTasks(tasks []Task) []Task {
	var activeTasks []Task
	for _, t := range tasks {
		if t.Status.Active() {
			activeTasks = append(activeTasks, t)
		}
	}

	return activeTasks
}

func FilterErroredTasks(tasks []Task) []Task {
	var erroredTasks []Task
	for _, t := range tasks {
		if t.Status == StatusError {
			erroredTasks = append(erroredTasks, t)
		}
	}

	return erroredTasks
}
