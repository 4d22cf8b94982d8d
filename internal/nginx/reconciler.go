package nginx

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"siteman/internal/sshexec"
	"siteman/internal/types"
	"siteman/logger"
)

// defaultSite is the distribution's default vhost; it is never touched.
const defaultSite = "default"

// quarantineDirName is a sibling of the enabled directory.
const quarantineDirName = ".disabled"

var brokenSuffixes = []string{".backup", ".bak", ".old", ".save", "~"}

// Reconciler owns the reverse proxy's on-disk state: writing and enabling
// vhosts, syntax validation, service control, and the quarantine protocol
// that keeps one site's broken leftovers from blocking work on another.
type Reconciler struct {
	ch  sshexec.Channel
	gen *Generator

	availableDir  string
	enabledDir    string
	quarantineDir string
}

func NewReconciler(ch sshexec.Channel, gen *Generator, availableDir, enabledDir string) *Reconciler {
	return &Reconciler{
		ch:            ch,
		gen:           gen,
		availableDir:  availableDir,
		enabledDir:    enabledDir,
		quarantineDir: path.Join(path.Dir(enabledDir), quarantineDirName),
	}
}

func (r *Reconciler) availablePath(name string) string { return path.Join(r.availableDir, name) }
func (r *Reconciler) enabledPath(name string) string   { return path.Join(r.enabledDir, name) }

// WriteConfig writes the vhost into the available directory and (re)creates
// the enabled symlink. Overwriting with identical content is safe, which is
// what makes provisioning re-runnable.
func (r *Reconciler) WriteConfig(ctx context.Context, domain, content string) error {
	if err := r.ch.WriteFile(ctx, r.availablePath(domain), []byte(content), true); err != nil {
		return errors.Wrap(err, "write vhost")
	}

	_, err := sshexec.Run(ctx, r.ch,
		sshexec.NewCommand("ln", "-sf", r.availablePath(domain), r.enabledPath(domain)).WithSudo())
	return errors.Wrap(err, "enable vhost")
}

// RemoveConfig deletes both the enabled link and the available file.
func (r *Reconciler) RemoveConfig(ctx context.Context, domain string) error {
	if _, err := sshexec.Run(ctx, r.ch, sshexec.NewCommand("rm", "-f", r.enabledPath(domain)).WithSudo()); err != nil {
		return err
	}
	_, err := sshexec.Run(ctx, r.ch, sshexec.NewCommand("rm", "-f", r.availablePath(domain)).WithSudo())
	return err
}

// Validate runs the proxy's syntax test. When the failure is an unreadable
// certificate path, the offending domains' vhosts are regenerated in
// HTTP-only form and validation is retried exactly once.
func (r *Reconciler) Validate(ctx context.Context) error {
	res, err := r.ch.Execute(ctx, sshexec.NewCommand("nginx", "-t").WithSudo())
	if err != nil {
		return err
	}
	if res.Ok() {
		return nil
	}

	healed, healErr := r.healCertificateReferences(ctx, res.Stderr)
	if healErr != nil {
		logger.Warn("self-heal attempt failed", zap.Error(healErr))
	}
	if healed {
		res, err = r.ch.Execute(ctx, sshexec.NewCommand("nginx", "-t").WithSudo())
		if err != nil {
			return err
		}
		if res.Ok() {
			return nil
		}
	}

	return &types.ConfigValidationError{Output: res.Stderr}
}

// healCertificateReferences parses domain names out of unreadable-cert
// errors and rewrites those vhosts without the certificate reference.
func (r *Reconciler) healCertificateReferences(ctx context.Context, output string) (bool, error) {
	domains := r.brokenCertDomains(output)
	if len(domains) == 0 {
		return false, nil
	}

	for _, domain := range domains {
		site := ParseConfig(domain, "")
		existing, err := r.ch.Execute(ctx, sshexec.NewCommand("cat", r.availablePath(domain)).WithSudo())
		if err == nil && existing.Ok() {
			site = ParseConfig(domain, existing.Stdout)
		}

		content, err := r.gen.VHost(site, false)
		if err != nil {
			return false, err
		}
		if err := r.WriteConfig(ctx, domain, content); err != nil {
			return false, err
		}
		logger.Info("regenerated vhost without certificate reference", zap.String("domain", domain))
	}
	return true, nil
}

func (r *Reconciler) brokenCertDomains(output string) []string {
	pattern := regexp.MustCompile(regexp.QuoteMeta(r.gen.CertDir()) + `/([^/"\s]+)/`)
	matches := pattern.FindAllStringSubmatch(output, -1)
	domains := lo.Uniq(lo.Map(matches, func(m []string, _ int) string { return m[1] }))
	return lo.Filter(domains, func(d string, _ int) bool { return d != "" })
}

// Reload asks the proxy to re-read its configuration.
func (r *Reconciler) Reload(ctx context.Context) error {
	_, err := sshexec.Run(ctx, r.ch, sshexec.NewCommand("systemctl", "reload", "nginx").WithSudo())
	return err
}

func (r *Reconciler) Restart(ctx context.Context) error {
	_, err := sshexec.Run(ctx, r.ch, sshexec.NewCommand("systemctl", "restart", "nginx").WithSudo())
	return err
}

// Stop halts the proxy entirely, freeing port 80 for standalone issuance.
func (r *Reconciler) Stop(ctx context.Context) error {
	_, err := sshexec.Run(ctx, r.ch, sshexec.NewCommand("systemctl", "stop", "nginx").WithSudo())
	return err
}

func (r *Reconciler) Start(ctx context.Context) error {
	_, err := sshexec.Run(ctx, r.ch, sshexec.NewCommand("systemctl", "start", "nginx").WithSudo())
	return err
}

// Quarantine moves known-broken enabled entries (backup/legacy suffixes)
// into the quarantine directory so they cannot block an operation on the
// target site. The returned list is the restore record: Restore must be
// called with it on every exit path of the surrounding operation.
func (r *Reconciler) Quarantine(ctx context.Context, target string) ([]string, error) {
	res, err := r.ch.Execute(ctx, sshexec.NewCommand("ls", "-1", r.enabledDir).WithSudo())
	if err != nil {
		return nil, err
	}
	if !res.Ok() {
		return nil, &types.RemoteCommandError{Command: "ls " + r.enabledDir, Stderr: res.Stderr, ExitCode: res.ExitCode}
	}

	candidates := lo.Filter(strings.Split(res.Stdout, "\n"), func(name string, _ int) bool {
		name = strings.TrimSpace(name)
		return name != "" && name != defaultSite && name != target && looksBroken(name)
	})
	if len(candidates) == 0 {
		return nil, nil
	}

	if _, err := sshexec.Run(ctx, r.ch, sshexec.NewCommand("mkdir", "-p", r.quarantineDir).WithSudo()); err != nil {
		return nil, err
	}

	moved := make([]string, 0, len(candidates))
	for _, name := range candidates {
		name = strings.TrimSpace(name)
		_, err := sshexec.Run(ctx, r.ch,
			sshexec.NewCommand("mv", r.enabledPath(name), path.Join(r.quarantineDir, name)).WithSudo())
		if err != nil {
			// Put back what we already took out before giving up.
			if restoreErr := r.Restore(ctx, moved); restoreErr != nil {
				logger.Error("restore after partial quarantine failed", zap.Error(restoreErr))
			}
			return nil, errors.Wrapf(err, "quarantine %s", name)
		}
		moved = append(moved, name)
	}

	logger.Info("quarantined configs", zap.Strings("entries", moved))
	return moved, nil
}

// Restore moves every quarantined entry back. It attempts all entries even
// when one fails, and returns the first error encountered.
func (r *Reconciler) Restore(ctx context.Context, moved []string) error {
	var firstErr error
	for _, name := range moved {
		_, err := sshexec.Run(ctx, r.ch,
			sshexec.NewCommand("mv", path.Join(r.quarantineDir, name), r.enabledPath(name)).WithSudo())
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "restore %s", name)
		}
	}
	if len(moved) > 0 && firstErr == nil {
		logger.Info("restored quarantined configs", zap.Strings("entries", moved))
	}
	return firstErr
}

func looksBroken(name string) bool {
	return lo.SomeBy(brokenSuffixes, func(suffix string) bool {
		return strings.HasSuffix(name, suffix)
	})
}
