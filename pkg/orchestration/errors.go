package orchestration

import "errors"

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrTaskActive             = errors.New("task has an outstanding run attempt")
	ErrConnectionFailed       = errors.New("failed to connect to server")
	ErrEnvironmentMissing     = errors.New("named environment does not exist")
	ErrDatasetMissing         = errors.New("dataset path does not exist")
)
