// Package remote provides the execution boundary to a training server:
// a command/transfer capability plus the persistent server directory the
// orchestrator resolves task server references against.
package remote

import "errors"

var ErrServerNotFound = errors.New("server configuration not found")

// Executor is the capability a connected remote host offers. Exec and the
// transfer calls are synchronous; bulk transfers belong on a background
// worker, not the caller's thread.
type Executor interface {
	Connect() error
	Exec(command string) (stdout, stderr string, exitStatus int, err error)
	UploadFile(localPath, remotePath string) error
	DownloadFile(remotePath, localPath string) error
	Disconnect() error
}

// Dialer builds an unconnected Executor for a server record.
type Dialer func(Server) Executor

// Server is one configured training server.
type Server struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"password,omitempty"`
	PrivateKeyPath string `json:"private_key_path,omitempty"`
}

// Directory resolves server references held by tasks. Lookup only, no
// ownership.
type Directory interface {
	GetByID(id int) (Server, error)
}
