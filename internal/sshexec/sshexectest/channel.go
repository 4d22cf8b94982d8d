// Package sshexectest provides an in-memory Channel for tests: commands are
// answered by a handler function and file writes land in a map.
package sshexectest

import (
	"context"
	"sync"

	"siteman/internal/sshexec"
)

type Call struct {
	Cmd sshexec.Command
}

type Channel struct {
	mu sync.Mutex

	// Handler answers every Execute call. Nil handler means every command
	// succeeds with empty output.
	Handler func(cmd sshexec.Command) (sshexec.Result, error)

	// Files records WriteFile payloads keyed by path.
	Files map[string][]byte

	Calls []Call
}

func New() *Channel {
	return &Channel{Files: make(map[string][]byte)}
}

func (c *Channel) Execute(_ context.Context, cmd sshexec.Command) (sshexec.Result, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, Call{Cmd: cmd})
	c.mu.Unlock()

	if c.Handler == nil {
		return sshexec.Result{}, nil
	}
	return c.Handler(cmd)
}

func (c *Channel) WriteFile(_ context.Context, path string, content []byte, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Files[path] = append([]byte(nil), content...)
	return nil
}

func (c *Channel) Close() error { return nil }

// Executed reports whether any call used the given program with the given
// first argument.
func (c *Channel) Executed(program string, firstArg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.Calls {
		if call.Cmd.Program != program {
			continue
		}
		if firstArg == "" || (len(call.Cmd.Args) > 0 && call.Cmd.Args[0] == firstArg) {
			return true
		}
	}
	return false
}
