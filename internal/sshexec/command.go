package sshexec

import (
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// Command is a structured remote command. Arguments are kept separate from
// the program and quoted at render time, so domain names, ports and paths
// can never break out of their argument position.
type Command struct {
	Program string
	Args    []string

	Sudo     bool
	SudoUser string

	// Stdin is streamed to the remote process. File payloads travel here
	// (base64-encoded), never inline in the command line.
	Stdin []byte
}

func NewCommand(program string, args ...string) Command {
	return Command{Program: program, Args: args}
}

func (c Command) WithSudo() Command {
	c.Sudo = true
	return c
}

// WithSudoUser runs the command as another user via sudo -u.
func (c Command) WithSudoUser(user string) Command {
	c.Sudo = true
	c.SudoUser = user
	return c
}

func (c Command) WithStdin(in []byte) Command {
	c.Stdin = in
	return c
}

// Render produces the final shell line sent over the channel.
func (c Command) Render() string {
	args := append([]string{c.Program}, c.Args...)
	line := shellescape.QuoteCommand(args)

	if !c.Sudo {
		return line
	}
	if c.SudoUser != "" {
		return strings.Join([]string{"sudo", "-u", shellescape.Quote(c.SudoUser), "--", "bash", "-c", shellescape.Quote(line)}, " ")
	}
	return "sudo " + line
}

// Script wraps a shell fragment in bash -c. The fragment itself must already
// be assembled from quoted parts; prefer NewCommand wherever possible.
func Script(fragment string) Command {
	return Command{Program: "bash", Args: []string{"-c", fragment}}
}
