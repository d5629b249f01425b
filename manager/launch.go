package manager

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/hyqf98/trainhub/pkg/template"
)

// Process is a handle to a spawned local training process, sufficient for
// later termination.
type Process interface {
	PID() int
	Kill() error
	Wait() error
}

// Launcher spawns a local training run in dir without blocking: output is
// redirected to the training log and the handle is obtained at spawn time
// rather than scanned for afterwards.
type Launcher interface {
	Launch(dir, environmentName string) (Process, error)
}

type execLauncher struct {
	logger *slog.Logger
}

func NewExecLauncher(logger *slog.Logger) Launcher {
	return &execLauncher{logger: logger}
}

func trainArgv(environmentName string) []string {
	if environmentName != "" {
		return []string{"conda", "run", "-n", environmentName, "python", template.ScriptName, "train"}
	}

	return []string{"python", template.ScriptName, "train"}
}

func (l *execLauncher) Launch(dir, environmentName string) (Process, error) {
	logPath := filepath.Join(dir, template.LogName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", logPath, err)
	}

	argv := trainArgv(environmentName)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()

		return nil, fmt.Errorf("error starting %q: %w", strings.Join(argv, " "), err)
	}

	// The child holds its own copy of the descriptor.
	_ = logFile.Close()

	l.logger.Info("spawned local training process",
		slog.String("dir", dir),
		slog.Int("pid", cmd.Process.Pid),
	)

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

// LaunchCommand is an OS-specific backgrounding command plus the log path
// it redirects training output to.
type LaunchCommand struct {
	Command string
	LogPath string
}

// CommandBuilder formats the detached launch command executed over SSH on
// a training server. Training servers are assumed to run a POSIX shell:
// the stop path kills by pkill pattern, which carries the same assumption,
// so the launch form must never depend on the manager host's platform.
type CommandBuilder interface {
	Background(dir, environmentName string) LaunchCommand
}

type shellCommandBuilder struct{}

func NewCommandBuilder() CommandBuilder {
	return shellCommandBuilder{}
}

func (shellCommandBuilder) Background(dir, environmentName string) LaunchCommand {
	run := strings.Join(trainArgv(environmentName), " ")

	return LaunchCommand{
		Command: fmt.Sprintf("cd %s && nohup %s > %s 2>&1 &", dir, run, template.LogName),
		LogPath: path.Join(dir, template.LogName),
	}
}
