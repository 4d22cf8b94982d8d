package sshexec

import (
	"context"
	"encoding/base64"

	"al.essio.dev/pkg/shellescape"

	"siteman/internal/types"
)

// Result carries everything a remote command produced. A non-zero exit code
// is not an error at this layer: callers decide what it means.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (r Result) Ok() bool { return r.ExitCode == 0 }

// Channel is the remote execution primitive everything above is built on:
// one blocking shell command at a time over a single connection.
type Channel interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
	WriteFile(ctx context.Context, path string, content []byte, sudo bool) error
	Close() error
}

// Run executes the command and converts a non-zero exit into a
// RemoteCommandError, for the call sites where failure is failure.
func Run(ctx context.Context, ch Channel, cmd Command) (Result, error) {
	res, err := ch.Execute(ctx, cmd)
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, &types.RemoteCommandError{
			Command:  cmd.Render(),
			Stderr:   res.Stderr,
			ExitCode: res.ExitCode,
		}
	}
	return res, nil
}

// FileExists tests for a regular file on the remote host.
func FileExists(ctx context.Context, ch Channel, path string, sudo bool) (bool, error) {
	cmd := NewCommand("test", "-f", path)
	if sudo {
		cmd = cmd.WithSudo()
	}
	res, err := ch.Execute(ctx, cmd)
	if err != nil {
		return false, err
	}
	return res.Ok(), nil
}

// DirExists tests for a directory on the remote host.
func DirExists(ctx context.Context, ch Channel, path string, sudo bool) (bool, error) {
	cmd := NewCommand("test", "-d", path)
	if sudo {
		cmd = cmd.WithSudo()
	}
	res, err := ch.Execute(ctx, cmd)
	if err != nil {
		return false, err
	}
	return res.Ok(), nil
}

// writeFileCommand builds the transfer command for WriteFile
// implementations: the payload travels base64-encoded on stdin and is
// decoded into place on the far side, so content never touches the command
// line.
func writeFileCommand(path string, content []byte, sudo bool) Command {
	encoded := base64.StdEncoding.EncodeToString(content)
	cmd := Script("base64 -d > " + shellescape.Quote(path)).WithStdin([]byte(encoded))
	if sudo {
		cmd.Sudo = true
	}
	return cmd
}
