package certs

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"siteman/internal/nginx"
	"siteman/internal/sshexec"
	"siteman/internal/types"
	"siteman/logger"
)

// Orchestrator drives standalone certificate issuance. Standalone mode needs
// port 80 to itself, so issuance brackets the ACME exchange with a proxy
// stop/restart and quarantines broken neighbour configs so the restart
// cannot fail on someone else's leftovers.
type Orchestrator struct {
	ch      sshexec.Channel
	proxy   *nginx.Reconciler
	gen     *nginx.Generator
	liveDir string
}

func NewOrchestrator(ch sshexec.Channel, proxy *nginx.Reconciler, gen *nginx.Generator, liveDir string) *Orchestrator {
	return &Orchestrator{ch: ch, proxy: proxy, gen: gen, liveDir: liveDir}
}

func (o *Orchestrator) certPath(domain, file string) string {
	return path.Join(o.liveDir, domain, file)
}

// HasCertificate reports whether live certificate material exists for the
// domain.
func (o *Orchestrator) HasCertificate(ctx context.Context, domain string) (bool, error) {
	return sshexec.FileExists(ctx, o.ch, o.certPath(domain, "fullchain.pem"), true)
}

// Issue obtains a certificate for the site and rewrites its vhost for TLS.
// Quarantined configs are restored and the proxy restarted no matter how the
// attempt ends.
func (o *Orchestrator) Issue(ctx context.Context, site types.Site) (err error) {
	moved, err := o.proxy.Quarantine(ctx, site.Domain)
	if err != nil {
		return errors.Wrap(err, "quarantine before issuance")
	}

	if err := o.proxy.Stop(ctx); err != nil {
		if restoreErr := o.proxy.Restore(ctx, moved); restoreErr != nil {
			logger.Error("restore after failed proxy stop", zap.Error(restoreErr))
		}
		return errors.Wrap(err, "stop proxy for standalone issuance")
	}

	defer func() {
		if restartErr := o.proxy.Restart(ctx); restartErr != nil {
			logger.Error("proxy restart after issuance failed", zap.Error(restartErr))
			if err == nil {
				err = restartErr
			}
		}
		if restoreErr := o.proxy.Restore(ctx, moved); restoreErr != nil {
			logger.Error("restore after issuance failed", zap.Error(restoreErr))
			if err == nil {
				err = restoreErr
			}
		}
	}()

	args := []string{"certonly", "--standalone", "-d", site.Domain}
	if site.EnableWww {
		args = append(args, "-d", "www."+site.Domain)
	}
	args = append(args, "--non-interactive", "--agree-tos", "--register-unsafely-without-email")

	res, execErr := o.ch.Execute(ctx, sshexec.NewCommand("certbot", args...).WithSudo())
	if execErr != nil {
		return execErr
	}
	if !res.Ok() {
		return &types.CertificateIssuanceError{Domain: site.Domain, Reason: strings.TrimSpace(res.Stderr)}
	}

	// Exit code alone is not trusted; the material must actually be there.
	for _, file := range []string{"fullchain.pem", "privkey.pem"} {
		exists, checkErr := sshexec.FileExists(ctx, o.ch, o.certPath(site.Domain, file), true)
		if checkErr != nil {
			return checkErr
		}
		if !exists {
			return &types.CertificateIssuanceError{Domain: site.Domain, Reason: file + " missing after issuance"}
		}
	}

	site.HasCertificate = true
	content, genErr := o.gen.VHost(site, true)
	if genErr != nil {
		return genErr
	}
	if writeErr := o.proxy.WriteConfig(ctx, site.Domain, content); writeErr != nil {
		return writeErr
	}
	if valErr := o.proxy.Validate(ctx); valErr != nil {
		return errors.Wrap(valErr, "validate after certificate install")
	}

	logger.Info("certificate issued", zap.String("domain", site.Domain))
	return nil
}

// Renew runs the renewer across all certificates due for renewal.
func (o *Orchestrator) Renew(ctx context.Context) error {
	_, err := sshexec.Run(ctx, o.ch, sshexec.NewCommand("certbot", "renew").WithSudo())
	return err
}

// ForceRenew renews a single certificate regardless of expiry.
func (o *Orchestrator) ForceRenew(ctx context.Context, domain string) error {
	_, err := sshexec.Run(ctx, o.ch,
		sshexec.NewCommand("certbot", "renew", "--cert-name", domain, "--force-renewal").WithSudo())
	return err
}

// DryRun exercises the renewal path without touching real certificates.
func (o *Orchestrator) DryRun(ctx context.Context) (string, error) {
	res, err := sshexec.Run(ctx, o.ch, sshexec.NewCommand("certbot", "renew", "--dry-run").WithSudo())
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Revoke revokes and deletes the certificate for the domain. A missing
// certificate is not an error.
func (o *Orchestrator) Revoke(ctx context.Context, domain string) error {
	exists, err := o.HasCertificate(ctx, domain)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	_, err = sshexec.Run(ctx, o.ch, sshexec.NewCommand("certbot", "revoke",
		"--cert-path", o.certPath(domain, "fullchain.pem"),
		"--non-interactive").WithSudo())
	if err != nil {
		logger.Warn("certificate revoke failed, deleting anyway", zap.String("domain", domain), zap.Error(err))
	}

	_, err = sshexec.Run(ctx, o.ch,
		sshexec.NewCommand("certbot", "delete", "--cert-name", domain, "--non-interactive").WithSudo())
	return err
}

// List returns the renewer's own certificate inventory text.
func (o *Orchestrator) List(ctx context.Context) (string, error) {
	res, err := sshexec.Run(ctx, o.ch, sshexec.NewCommand("certbot", "certificates").WithSudo())
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// ExpiryDays reads the certificate's notAfter and returns whole days until
// expiry. Negative means already expired.
func (o *Orchestrator) ExpiryDays(ctx context.Context, domain string) (int, error) {
	res, err := sshexec.Run(ctx, o.ch, sshexec.NewCommand("openssl", "x509",
		"-enddate", "-noout", "-in", o.certPath(domain, "fullchain.pem")).WithSudo())
	if err != nil {
		return 0, err
	}
	return DaysUntilExpiry(res.Stdout, time.Now())
}

// DaysUntilExpiry parses openssl's "notAfter=..." line.
func DaysUntilExpiry(output string, now time.Time) (int, error) {
	line := strings.TrimSpace(output)
	value, found := strings.CutPrefix(line, "notAfter=")
	if !found {
		return 0, &types.ParseError{Input: line, Reason: "expected notAfter= prefix"}
	}

	// openssl pads single-digit days with an extra space.
	value = strings.Join(strings.Fields(value), " ")
	expiry, err := time.Parse("Jan 2 15:04:05 2006 MST", value)
	if err != nil {
		return 0, &types.ParseError{Input: value, Reason: "unparsable expiry timestamp"}
	}

	days := int(expiry.Sub(now).Hours() / 24)
	return days, nil
}
