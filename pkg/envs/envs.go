// Package envs answers "does named runtime environment X exist" and, for
// remote hosts, bootstraps missing environments before a training run.
package envs

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"
)

const probeTimeout = 30 * time.Second

// trainingPackage is the dependency every bootstrapped environment needs.
const trainingPackage = "ultralytics"

// Prober is the environment-existence collaborator for local runs.
type Prober interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// CommandRunner runs a shell command somewhere; satisfied by
// remote.Executor.
type CommandRunner interface {
	Exec(command string) (stdout, stderr string, exitStatus int, err error)
}

// ParseEnvList extracts environment names from `conda env list` output.
// Comment and blank lines are skipped, as are bare prefix-path rows; the
// base environment is kept.
func ParseEnvList(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		if strings.HasPrefix(name, "/") && name != "base" {
			continue
		}
		names = append(names, name)
	}

	return names
}

// CondaProber checks local conda environments by listing them.
type CondaProber struct {
	logger *slog.Logger
}

func NewCondaProber(logger *slog.Logger) *CondaProber {
	return &CondaProber{logger: logger}
}

func (p *CondaProber) Exists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "conda", "env", "list").Output()
	if err != nil {
		return false, fmt.Errorf("error listing conda environments: %w", err)
	}

	return slices.Contains(ParseEnvList(string(out)), name), nil
}

// CondaBootstrap prepares conda environments on a remote host through a
// CommandRunner. Ensure is idempotent: an existing, fully-provisioned
// environment is left untouched.
type CondaBootstrap struct {
	runner CommandRunner
	logger *slog.Logger
}

func NewCondaBootstrap(runner CommandRunner, logger *slog.Logger) *CondaBootstrap {
	return &CondaBootstrap{
		runner: runner,
		logger: logger,
	}
}

func (b *CondaBootstrap) Exists(name string) (bool, error) {
	out, stderr, status, err := b.runner.Exec("conda env list")
	if err != nil {
		return false, fmt.Errorf("error listing remote environments: %w", err)
	}
	if status != 0 {
		return false, fmt.Errorf("error listing remote environments: %s", stderr)
	}

	return slices.Contains(ParseEnvList(out), name), nil
}

func (b *CondaBootstrap) Create(name string) error {
	cmd := fmt.Sprintf("conda create -n %s python=3.9 -y", name)
	_, stderr, status, err := b.runner.Exec(cmd)
	if err != nil {
		return fmt.Errorf("error creating environment %s: %w", name, err)
	}
	if status != 0 {
		return fmt.Errorf("error creating environment %s: %s", name, stderr)
	}
	b.logger.Info("created remote environment", slog.String("name", name))

	return nil
}

func (b *CondaBootstrap) Install(name, pkg string) error {
	cmd := fmt.Sprintf("conda run -n %s pip install %s", name, pkg)
	_, stderr, status, err := b.runner.Exec(cmd)
	if err != nil {
		return fmt.Errorf("error installing %s into %s: %w", pkg, name, err)
	}
	if status != 0 {
		return fmt.Errorf("error installing %s into %s: %s", pkg, name, stderr)
	}
	b.logger.Info("installed package", slog.String("env", name), slog.String("package", pkg))

	return nil
}

// Ensure makes the named environment usable for training: create it if
// absent, then verify the training dependency imports and install it if
// not.
func (b *CondaBootstrap) Ensure(name string) error {
	exists, err := b.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		if err := b.Create(name); err != nil {
			return err
		}
	}

	check := fmt.Sprintf("conda run -n %s python -c 'import %s'", name, trainingPackage)
	if _, _, status, err := b.runner.Exec(check); err != nil {
		return fmt.Errorf("error checking %s in %s: %w", trainingPackage, name, err)
	} else if status != 0 {
		return b.Install(name, trainingPackage)
	}

	return nil
}
