package lifecycle

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"siteman/internal/certs"
	"siteman/internal/dns"
	"siteman/internal/nginx"
	"siteman/internal/sshexec"
	"siteman/internal/supervisor"
	"siteman/internal/types"
	"siteman/logger"
)

// Step names a provisioning stage for run reporting.
type Step string

const (
	StepDNS         Step = "dns"
	StepDirectories Step = "directories"
	StepPlaceholder Step = "placeholder"
	StepProxyConfig Step = "proxy-config"
	StepValidate    Step = "validate"
	StepReload      Step = "reload"
	StepCertificate Step = "certificate"
)

// RunResult reports how far a provisioning run got. Warnings carry the
// degraded (non-fatal) outcomes, FailedStep is empty on full success.
type RunResult struct {
	RunID      uuid.UUID
	Domain     string
	FailedStep Step
	Warnings   []string
	Err        error
}

func (r RunResult) Success() bool { return r.Err == nil }

// Confirmer asks the operator a yes/no question. Destructive operations take
// one so tests can script the answers.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ErrCloneDeclined reports that the operator rejected the recovered
// parameters before the target was provisioned.
var ErrCloneDeclined = errors.New("clone declined")

// Orchestrator sequences the full site lifecycle: DNS, filesystem, proxy
// configuration, certificate. Every step is idempotent, so a failed run is
// retried by simply running it again.
type Orchestrator struct {
	ch         sshexec.Channel
	dnsRec     *dns.Reconciler
	verifier   *dns.Verifier
	gen        *nginx.Generator
	proxy      *nginx.Reconciler
	detector   *nginx.Detector
	certs      *certs.Orchestrator
	sup        supervisor.Supervisor
	serverIP   string
	deployUser string
	appsRoot   string

	propagationTimeout time.Duration
}

type Deps struct {
	Channel    sshexec.Channel
	DNS        *dns.Reconciler
	Verifier   *dns.Verifier
	Generator  *nginx.Generator
	Proxy      *nginx.Reconciler
	Detector   *nginx.Detector
	Certs      *certs.Orchestrator
	Supervisor supervisor.Supervisor

	ServerIP           string
	DeployUser         string
	AppsRoot           string
	PropagationTimeout time.Duration
}

func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		ch:                 deps.Channel,
		dnsRec:             deps.DNS,
		verifier:           deps.Verifier,
		gen:                deps.Generator,
		proxy:              deps.Proxy,
		detector:           deps.Detector,
		certs:              deps.Certs,
		sup:                deps.Supervisor,
		serverIP:           deps.ServerIP,
		deployUser:         deps.DeployUser,
		appsRoot:           deps.AppsRoot,
		propagationTimeout: deps.PropagationTimeout,
	}
}

func (o *Orchestrator) appDir(domain string) string {
	return path.Join(o.appsRoot, domain)
}

// Provision creates or converges a site end to end. DNS problems degrade to
// warnings (the server-side setup is still worth completing); everything
// from the filesystem step on is fatal.
func (o *Orchestrator) Provision(ctx context.Context, params types.ProvisionParams) RunResult {
	result := RunResult{RunID: uuid.New(), Domain: params.Domain}
	site := params.Site()

	logger.Info("provisioning site",
		zap.String("runId", result.RunID.String()),
		zap.String("site", site.String()))

	o.ensureDNS(ctx, &result, site, params.Proxied)

	if err := o.ensureDirectories(ctx, site.Domain); err != nil {
		return result.fail(StepDirectories, err)
	}

	if err := o.writePlaceholder(ctx, site.Domain); err != nil {
		return result.fail(StepPlaceholder, err)
	}

	// Re-runs keep an already-issued certificate wired into the vhost.
	hasCert, err := o.certs.HasCertificate(ctx, site.Domain)
	if err != nil {
		return result.fail(StepProxyConfig, err)
	}
	site.HasCertificate = hasCert

	content, err := o.gen.VHost(site, hasCert)
	if err != nil {
		return result.fail(StepProxyConfig, err)
	}
	if err := o.proxy.WriteConfig(ctx, site.Domain, content); err != nil {
		return result.fail(StepProxyConfig, err)
	}

	if err := o.proxy.Validate(ctx); err != nil {
		return result.fail(StepValidate, err)
	}
	if err := o.proxy.Reload(ctx); err != nil {
		return result.fail(StepReload, err)
	}

	if params.IssueCertificate && !hasCert {
		if err := o.certs.Issue(ctx, site); err != nil {
			return result.fail(StepCertificate, err)
		}
	}

	logger.Info("site provisioned",
		zap.String("runId", result.RunID.String()),
		zap.String("domain", site.Domain),
		zap.Int("warnings", len(result.Warnings)))
	return result
}

func (o *Orchestrator) ensureDNS(ctx context.Context, result *RunResult, site types.Site, proxied bool) {
	for _, name := range site.Names() {
		if err := o.dnsRec.EnsureARecord(ctx, name, o.serverIP, proxied); err != nil {
			result.warn(fmt.Sprintf("dns record for %s not converged: %v", name, err))
		}
	}

	if len(result.Warnings) == 0 && !proxied {
		if ok := o.verifier.VerifyPropagation(ctx, site.Domain, o.serverIP, o.propagationTimeout); !ok {
			result.warn("dns propagation not confirmed before timeout")
		}
	}
}

func (o *Orchestrator) ensureDirectories(ctx context.Context, domain string) error {
	dir := o.appDir(domain)
	for _, sub := range []string{"public", "logs"} {
		if _, err := sshexec.Run(ctx, o.ch, sshexec.NewCommand("mkdir", "-p", path.Join(dir, sub)).WithSudo()); err != nil {
			return errors.Wrap(err, "create app directories")
		}
	}
	_, err := sshexec.Run(ctx, o.ch,
		sshexec.NewCommand("chown", "-R", o.deployUser+":"+o.deployUser, dir).WithSudo())
	return errors.Wrap(err, "set directory ownership")
}

func (o *Orchestrator) writePlaceholder(ctx context.Context, domain string) error {
	page := o.gen.ComingSoonPage(domain)
	target := path.Join(o.appDir(domain), "public", "index.html")
	if err := o.ch.WriteFile(ctx, target, []byte(page), true); err != nil {
		return errors.Wrap(err, "write placeholder page")
	}
	_, err := sshexec.Run(ctx, o.ch,
		sshexec.NewCommand("chown", o.deployUser+":"+o.deployUser, target).WithSudo())
	return err
}

// TakeOffline parks a site: its vhost is rewritten to serve the placeholder
// and its app process is stopped. The certificate, DNS records and app
// directory are untouched, so bringing the site back is a re-provision.
func (o *Orchestrator) TakeOffline(ctx context.Context, domain string) error {
	site, err := o.detector.Detect(ctx, domain)
	if err != nil {
		return err
	}

	if err := o.writePlaceholder(ctx, domain); err != nil {
		return err
	}

	site.Mode = types.ModeComingSoon
	content, err := o.gen.VHost(site, site.HasCertificate)
	if err != nil {
		return err
	}
	if err := o.proxy.WriteConfig(ctx, domain, content); err != nil {
		return err
	}
	if err := o.proxy.Validate(ctx); err != nil {
		return err
	}
	if err := o.proxy.Reload(ctx); err != nil {
		return err
	}

	if err := o.sup.Stop(ctx, domain); err != nil {
		logger.Warn("app process stop failed", zap.String("domain", domain), zap.Error(err))
	}

	logger.Info("site parked", zap.String("domain", domain))
	return nil
}

// Remove tears a site down. The proxy configuration, certificate and app
// process go behind the first confirmation; the app directory deletion is
// gated separately because it destroys user data.
func (o *Orchestrator) Remove(ctx context.Context, domain string, confirm Confirmer) error {
	if !confirm.Confirm(fmt.Sprintf("remove site %s (config, certificate, process)", domain)) {
		return nil
	}

	if err := o.sup.Delete(ctx, domain); err != nil {
		logger.Warn("app process delete failed", zap.String("domain", domain), zap.Error(err))
	}

	if err := o.proxy.RemoveConfig(ctx, domain); err != nil {
		return err
	}
	if err := o.proxy.Reload(ctx); err != nil {
		return err
	}

	if err := o.certs.Revoke(ctx, domain); err != nil {
		logger.Warn("certificate revoke failed", zap.String("domain", domain), zap.Error(err))
	}

	if err := o.dnsRec.DeleteARecord(ctx, domain); err != nil {
		logger.Warn("dns record delete failed", zap.String("domain", domain), zap.Error(err))
	}
	if err := o.dnsRec.DeleteARecord(ctx, "www."+domain); err != nil {
		logger.Warn("dns record delete failed", zap.String("domain", "www."+domain), zap.Error(err))
	}

	if !confirm.Confirm(fmt.Sprintf("also delete app directory %s", o.appDir(domain))) {
		logger.Info("site removed, app directory kept", zap.String("domain", domain))
		return nil
	}

	if _, err := sshexec.Run(ctx, o.ch, sshexec.NewCommand("rm", "-rf", o.appDir(domain)).WithSudo()); err != nil {
		return err
	}

	logger.Info("site removed", zap.String("domain", domain))
	return nil
}

// Clone provisions a new domain with the source site's detected shape. The
// recovered parameters are confirmed by the operator first; the app
// directory contents are not copied, only the serving parameters carry over.
func (o *Orchestrator) Clone(ctx context.Context, sourceDomain, targetDomain string, proxied, issueCert bool, confirm Confirmer) RunResult {
	source, err := o.detector.Detect(ctx, sourceDomain)
	if err != nil {
		return RunResult{RunID: uuid.New(), Domain: targetDomain, Err: err}
	}

	if !confirm.Confirm(fmt.Sprintf("provision %s as %s", targetDomain, source.String())) {
		return RunResult{RunID: uuid.New(), Domain: targetDomain, Err: ErrCloneDeclined}
	}

	params := types.ProvisionParams{
		Domain:           targetDomain,
		EnableWww:        source.EnableWww,
		Mode:             source.Mode,
		AppPort:          source.AppPort,
		Proxied:          proxied,
		IssueCertificate: issueCert,
	}
	logger.Info("cloning site parameters",
		zap.String("source", sourceDomain),
		zap.String("target", targetDomain))
	return o.Provision(ctx, params)
}

// RestartService restarts one managed service, every app process ("apps"),
// or a single app process by name.
func (o *Orchestrator) RestartService(ctx context.Context, target string) error {
	switch target {
	case "nginx":
		return o.proxy.Restart(ctx)
	case "postgresql":
		_, err := sshexec.Run(ctx, o.ch, sshexec.NewCommand("systemctl", "restart", "postgresql").WithSudo())
		return errors.Wrap(err, "restart postgresql")
	case "apps":
		return o.sup.RestartAll(ctx)
	default:
		return o.sup.Restart(ctx, target)
	}
}

// RestartAllServices restarts nginx, postgresql and every app process behind
// a single confirmation gate.
func (o *Orchestrator) RestartAllServices(ctx context.Context, confirm Confirmer) error {
	if !confirm.Confirm("restart nginx, postgresql and all app processes") {
		return nil
	}
	for _, target := range []string{"nginx", "postgresql", "apps"} {
		if err := o.RestartService(ctx, target); err != nil {
			return err
		}
		logger.Info("service restarted", zap.String("target", target))
	}
	return nil
}

func (r *RunResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	logger.Warn(msg, zap.String("runId", r.RunID.String()), zap.String("domain", r.Domain))
}

func (r RunResult) fail(step Step, err error) RunResult {
	r.FailedStep = step
	r.Err = err
	logger.Error("provisioning step failed",
		zap.String("runId", r.RunID.String()),
		zap.String("domain", r.Domain),
		zap.String("step", string(step)),
		zap.Error(err))
	return r
}
