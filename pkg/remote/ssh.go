package remote

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const dialTimeout = 15 * time.Second

// SSHExecutor implements Executor over an SSH connection with SFTP file
// transfer. Private-key auth is preferred when a key path is configured and
// readable, password auth otherwise.
type SSHExecutor struct {
	server Server
	logger *slog.Logger

	client *ssh.Client
	sftp   *sftp.Client
}

func NewSSHExecutor(server Server, logger *slog.Logger) *SSHExecutor {
	return &SSHExecutor{
		server: server,
		logger: logger,
	}
}

// NewDialer returns a Dialer producing SSH executors, the production wiring
// for the orchestrator.
func NewDialer(logger *slog.Logger) Dialer {
	return func(server Server) Executor {
		return NewSSHExecutor(server, logger)
	}
}

func (e *SSHExecutor) Connect() error {
	auth, err := e.authMethods()
	if err != nil {
		return err
	}

	cfg := &ssh.ClientConfig{
		User:            e.server.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // servers are user-configured
		Timeout:         dialTimeout,
	}

	addr := net.JoinHostPort(e.server.Host, strconv.Itoa(e.server.Port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()

		return fmt.Errorf("error opening sftp session: %w", err)
	}

	e.client = client
	e.sftp = sftpClient
	e.logger.Info("connected to server", slog.String("name", e.server.Name), slog.String("host", e.server.Host))

	return nil
}

func (e *SSHExecutor) authMethods() ([]ssh.AuthMethod, error) {
	if e.server.PrivateKeyPath != "" {
		keyData, err := os.ReadFile(e.server.PrivateKeyPath)
		if err == nil {
			signer, err := ssh.ParsePrivateKey(keyData)
			if err != nil {
				return nil, fmt.Errorf("error parsing private key: %w", err)
			}

			return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
		}
	}
	if e.server.Password != "" {
		return []ssh.AuthMethod{ssh.Password(e.server.Password)}, nil
	}

	return nil, errors.New("no usable credentials: need a password or a readable private key")
}

func (e *SSHExecutor) Exec(command string) (string, string, int, error) {
	if e.client == nil {
		return "", "", -1, errors.New("not connected")
	}

	session, err := e.client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("error opening session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitStatus(), nil
		}

		return stdout.String(), stderr.String(), -1, fmt.Errorf("error running %q: %w", command, err)
	}

	return stdout.String(), stderr.String(), 0, nil
}

func (e *SSHExecutor) UploadFile(localPath, remotePath string) error {
	if e.sftp == nil {
		return errors.New("not connected")
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", localPath, err)
	}
	defer src.Close()

	if err := e.sftp.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("error creating remote directory %s: %w", path.Dir(remotePath), err)
	}

	dst, err := e.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", remotePath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()

		return fmt.Errorf("error uploading %s: %w", localPath, err)
	}

	return dst.Close()
}

func (e *SSHExecutor) DownloadFile(remotePath, localPath string) error {
	if e.sftp == nil {
		return errors.New("not connected")
	}

	src, err := e.sftp.Open(remotePath)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", localPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()

		return fmt.Errorf("error downloading %s: %w", remotePath, err)
	}

	return dst.Close()
}

func (e *SSHExecutor) Disconnect() error {
	var errs []error
	if e.sftp != nil {
		errs = append(errs, e.sftp.Close())
		e.sftp = nil
	}
	if e.client != nil {
		errs = append(errs, e.client.Close())
		e.client = nil
	}

	return errors.Join(errs...)
}
