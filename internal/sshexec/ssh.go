package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"siteman/internal/types"
)

const dialTimeout = 10 * time.Second

type sshChannel struct {
	client *ssh.Client
}

// Dial opens the single SSH connection a manager instance drives all its
// commands through. Inability to connect is fatal to the process, so the
// error is returned as-is for main to report.
func Dial(host string, port int, user, keyFile string) (Channel, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "read ssh key")
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse ssh key")
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, &types.ConnectionError{Op: "ssh dial " + addr, Err: err}
	}

	return &sshChannel{client: client}, nil
}

func (c *sshChannel) Execute(ctx context.Context, cmd Command) (Result, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return Result{}, &types.ConnectionError{Op: "open session", Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if len(cmd.Stdin) > 0 {
		session.Stdin = bytes.NewReader(cmd.Stdin)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd.Render())
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()
	case err = <-done:
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, &types.ConnectionError{Op: "run command", Err: err}
	}
	return result, nil
}

func (c *sshChannel) WriteFile(ctx context.Context, path string, content []byte, sudo bool) error {
	_, err := Run(ctx, c, writeFileCommand(path, content, sudo))
	return err
}

func (c *sshChannel) Close() error {
	return c.client.Close()
}
