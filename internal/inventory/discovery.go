package inventory

import (
	"context"
	"path"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"siteman/internal/sshexec"
	"siteman/internal/supervisor"
	"siteman/internal/types"
	"siteman/logger"
)

// Discovery enumerates what is actually deployed on the host: enabled sites
// and app directories with their repository bindings. The filesystem is the
// only source of truth; nothing is cached between calls.
type Discovery struct {
	ch         sshexec.Channel
	sup        supervisor.Supervisor
	appsRoot   string
	enabledDir string
}

func NewDiscovery(ch sshexec.Channel, sup supervisor.Supervisor, appsRoot, enabledDir string) *Discovery {
	return &Discovery{ch: ch, sup: sup, appsRoot: appsRoot, enabledDir: enabledDir}
}

// Domains lists the enabled site names, excluding the distribution default.
func (d *Discovery) Domains(ctx context.Context) ([]string, error) {
	res, err := sshexec.Run(ctx, d.ch, sshexec.NewCommand("ls", "-1", d.enabledDir).WithSudo())
	if err != nil {
		return nil, err
	}

	return lo.Filter(splitLines(res.Stdout), func(name string, _ int) bool {
		return name != "default"
	}), nil
}

// DeployedApps inspects each app directory for a git remote and a running
// process. Apps without a usable remote are still returned; the pipeline
// detector classifies them.
func (d *Discovery) DeployedApps(ctx context.Context) ([]types.DeployedApp, error) {
	res, err := sshexec.Run(ctx, d.ch, sshexec.NewCommand("ls", "-1", d.appsRoot).WithSudo())
	if err != nil {
		return nil, err
	}

	processes, err := d.sup.List(ctx)
	if err != nil {
		logger.Warn("process listing failed, running state unknown", zap.Error(err))
		processes = nil
	}
	online := lo.SliceToMap(processes, func(p types.Process) (string, bool) {
		return p.Name, p.Online()
	})

	apps := make([]types.DeployedApp, 0)
	for _, name := range splitLines(res.Stdout) {
		app, err := d.inspectApp(ctx, name)
		if err != nil {
			return nil, err
		}
		app.Running = online[name]
		apps = append(apps, app)
	}
	return apps, nil
}

func (d *Discovery) inspectApp(ctx context.Context, name string) (types.DeployedApp, error) {
	appPath := path.Join(d.appsRoot, name)
	app := types.DeployedApp{Name: name, Path: appPath}

	hasGit, err := sshexec.DirExists(ctx, d.ch, path.Join(appPath, ".git"), true)
	if err != nil {
		return app, err
	}
	app.HasGitDir = hasGit
	if !hasGit {
		return app, nil
	}

	res, err := d.ch.Execute(ctx,
		sshexec.NewCommand("git", "-C", appPath, "config", "--get", "remote.origin.url").WithSudo())
	if err != nil {
		return app, err
	}
	if !res.Ok() {
		// No origin remote configured. Not an error.
		return app, nil
	}

	app.RemoteURL = strings.TrimSpace(res.Stdout)
	if owner, repo, ok := ParseRemote(app.RemoteURL); ok {
		app.RepoOwner = owner
		app.RepoName = repo
	}
	return app, nil
}

// ParseRemote extracts owner and repository from a GitHub remote URL in
// either the SSH ("git@github.com:owner/repo.git") or HTTPS
// ("https://github.com/owner/repo") form.
func ParseRemote(url string) (owner, repo string, ok bool) {
	url = strings.TrimSpace(url)

	var ref string
	switch {
	case strings.HasPrefix(url, "git@github.com:"):
		ref = strings.TrimPrefix(url, "git@github.com:")
	case strings.HasPrefix(url, "https://github.com/"):
		ref = strings.TrimPrefix(url, "https://github.com/")
	case strings.HasPrefix(url, "http://github.com/"):
		ref = strings.TrimPrefix(url, "http://github.com/")
	default:
		return "", "", false
	}

	ref = strings.TrimSuffix(strings.TrimSuffix(ref, "/"), ".git")
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func splitLines(s string) []string {
	return lo.FilterMap(strings.Split(s, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
}
