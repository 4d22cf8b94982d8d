package supervisor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"siteman/internal/sshexec"
	"siteman/internal/types"
)

// Supervisor manages long-running app processes on the remote host. All
// commands run as the deploy user, because that user owns the process
// daemon's state.
type Supervisor interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	RestartAll(ctx context.Context) error
	List(ctx context.Context) ([]types.Process, error)
	IsRunning(ctx context.Context, name string) (bool, error)
}

type pm2Supervisor struct {
	ch   sshexec.Channel
	user string
}

func NewSupervisor(ch sshexec.Channel, deployUser string) Supervisor {
	return &pm2Supervisor{ch: ch, user: deployUser}
}

func (s *pm2Supervisor) run(ctx context.Context, args ...string) (sshexec.Result, error) {
	return s.ch.Execute(ctx, sshexec.NewCommand("pm2", args...).WithSudoUser(s.user))
}

func (s *pm2Supervisor) Start(ctx context.Context, name string) error {
	return s.simple(ctx, "start", name)
}

// Stop is tolerant of the process not existing: parking a site that never
// ran an app must not fail on the supervisor step.
func (s *pm2Supervisor) Stop(ctx context.Context, name string) error {
	res, err := s.run(ctx, "stop", name)
	if err != nil {
		return err
	}
	if !res.Ok() && !notFound(res.Stderr) && !notFound(res.Stdout) {
		return &types.RemoteCommandError{Command: "pm2 stop " + name, Stderr: res.Stderr, ExitCode: res.ExitCode}
	}
	return nil
}

func (s *pm2Supervisor) Restart(ctx context.Context, name string) error {
	return s.simple(ctx, "restart", name)
}

// Delete removes the process from the supervisor entirely. Like Stop it
// treats an unknown process as already deleted.
func (s *pm2Supervisor) Delete(ctx context.Context, name string) error {
	res, err := s.run(ctx, "delete", name)
	if err != nil {
		return err
	}
	if !res.Ok() && !notFound(res.Stderr) && !notFound(res.Stdout) {
		return &types.RemoteCommandError{Command: "pm2 delete " + name, Stderr: res.Stderr, ExitCode: res.ExitCode}
	}
	return nil
}

func (s *pm2Supervisor) RestartAll(ctx context.Context) error {
	return s.simple(ctx, "restart", "all")
}

func (s *pm2Supervisor) simple(ctx context.Context, args ...string) error {
	res, err := s.run(ctx, args...)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return &types.RemoteCommandError{
			Command:  "pm2 " + strings.Join(args, " "),
			Stderr:   res.Stderr,
			ExitCode: res.ExitCode,
		}
	}
	return nil
}

// pm2Process is the slice of the jlist document we care about.
type pm2Process struct {
	Name   string `json:"name"`
	PM2Env struct {
		Status string `json:"status"`
	} `json:"pm2_env"`
}

// List returns the supervisor's process table from its JSON listing.
func (s *pm2Supervisor) List(ctx context.Context) ([]types.Process, error) {
	res, err := s.run(ctx, "jlist")
	if err != nil {
		return nil, err
	}
	if !res.Ok() {
		return nil, &types.RemoteCommandError{Command: "pm2 jlist", Stderr: res.Stderr, ExitCode: res.ExitCode}
	}

	return ParseProcessList(res.Stdout)
}

// ParseProcessList decodes the jlist output. pm2 sometimes prints daemon
// startup chatter first; the JSON array is always the last line.
func ParseProcessList(output string) ([]types.Process, error) {
	if strings.TrimSpace(output) == "" {
		return nil, nil
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(last, "[") {
		return nil, &types.ParseError{Input: last, Reason: "no JSON array in process list"}
	}

	var raw []pm2Process
	if err := json.Unmarshal([]byte(last), &raw); err != nil {
		return nil, errors.Wrap(err, "decode process list")
	}

	return lo.Map(raw, func(p pm2Process, _ int) types.Process {
		return types.Process{Name: p.Name, Status: p.PM2Env.Status}
	}), nil
}

func (s *pm2Supervisor) IsRunning(ctx context.Context, name string) (bool, error) {
	processes, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	proc, found := lo.Find(processes, func(p types.Process) bool { return p.Name == name })
	return found && proc.Online(), nil
}

func notFound(output string) bool {
	out := strings.ToLower(output)
	return strings.Contains(out, "not found") || strings.Contains(out, "doesn't exist")
}
