package cli

import (
	"github.com/spf13/cobra"

	"siteman/internal/certs"
	"siteman/internal/config"
	"siteman/internal/dns"
	"siteman/internal/integrations/cloudflare"
	"siteman/internal/integrations/github"
	"siteman/internal/inventory"
	"siteman/internal/lifecycle"
	"siteman/internal/monitor"
	"siteman/internal/nginx"
	"siteman/internal/pipeline"
	"siteman/internal/sshexec"
	"siteman/internal/supervisor"
)

// App wires the command tree to the remote host. The SSH channel is dialed
// on first use so commands that never touch the server (help, completion)
// work without one.
type App struct {
	cfg config.Config
	ch  sshexec.Channel
}

func New(cfg config.Config) *cobra.Command {
	app := &App{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "siteman",
		Short: "siteman - site lifecycle and deploy pipeline manager",
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	cmd.AddCommand(newProvisionCmd(app))
	cmd.AddCommand(newCloneCmd(app))
	cmd.AddCommand(newOfflineCmd(app))
	cmd.AddCommand(newRemoveCmd(app))
	cmd.AddCommand(newSitesCmd(app))
	cmd.AddCommand(newRestartCmd(app))
	cmd.AddCommand(newCertsCmd(app))
	cmd.AddCommand(newPipelinesCmd(app))
	cmd.AddCommand(newSecretsCmd(app))
	cmd.AddCommand(newDashboardCmd(app))
	return cmd
}

func (a *App) channel() (sshexec.Channel, error) {
	if a.ch != nil {
		return a.ch, nil
	}
	ch, err := sshexec.Dial(a.cfg.SSHHost, a.cfg.SSHPort, a.cfg.SSHUser, a.cfg.SSHKeyFile)
	if err != nil {
		return nil, err
	}
	a.ch = ch
	return ch, nil
}

func (a *App) close() {
	if a.ch != nil {
		_ = a.ch.Close()
		a.ch = nil
	}
}

func (a *App) generator() *nginx.Generator {
	return nginx.NewGenerator(a.cfg.AppsRoot, a.cfg.LetsEncryptLiveDir)
}

func (a *App) proxy(ch sshexec.Channel) *nginx.Reconciler {
	return nginx.NewReconciler(ch, a.generator(), a.cfg.NginxAvailableDir, a.cfg.NginxEnabledDir)
}

func (a *App) detector(ch sshexec.Channel) *nginx.Detector {
	return nginx.NewDetector(ch, a.cfg.NginxAvailableDir)
}

func (a *App) supervisor(ch sshexec.Channel) supervisor.Supervisor {
	return supervisor.NewSupervisor(ch, a.cfg.DeployUser)
}

func (a *App) certOrchestrator(ch sshexec.Channel) *certs.Orchestrator {
	return certs.NewOrchestrator(ch, a.proxy(ch), a.generator(), a.cfg.LetsEncryptLiveDir)
}

func (a *App) discovery(ch sshexec.Channel) *inventory.Discovery {
	return inventory.NewDiscovery(ch, a.supervisor(ch), a.cfg.AppsRoot, a.cfg.NginxEnabledDir)
}

func (a *App) github() github.Client {
	return github.NewClient(a.cfg.GithubBaseURL, a.cfg.GithubToken)
}

func (a *App) pipelineDetector(ch sshexec.Channel) *pipeline.Detector {
	return pipeline.NewDetector(a.discovery(ch), a.github(), a.cfg.PipelineKeywords)
}

func (a *App) collector(ch sshexec.Channel) *monitor.Collector {
	return monitor.NewCollector(ch, a.supervisor(ch), a.discovery(ch))
}

func (a *App) orchestrator() (*lifecycle.Orchestrator, error) {
	ch, err := a.channel()
	if err != nil {
		return nil, err
	}

	dnsAPI := cloudflare.NewClient(a.cfg.DNSAPIBaseURL, a.cfg.DNSAPIToken)
	return lifecycle.NewOrchestrator(lifecycle.Deps{
		Channel:            ch,
		DNS:                dns.NewReconciler(dnsAPI),
		Verifier:           dns.NewVerifier(a.cfg.Resolver),
		Generator:          a.generator(),
		Proxy:              a.proxy(ch),
		Detector:           a.detector(ch),
		Certs:              a.certOrchestrator(ch),
		Supervisor:         a.supervisor(ch),
		ServerIP:           a.cfg.ServerIP,
		DeployUser:         a.cfg.DeployUser,
		AppsRoot:           a.cfg.AppsRoot,
		PropagationTimeout: a.cfg.PropagationTimeout,
	}), nil
}
