package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
	"siteman/internal/types"
)

const provisionTimeout = 15 * time.Minute

func newProvisionCmd(app *App) *cobra.Command {
	var (
		www     bool
		proxied bool
		port    int
		appMode bool
		ssl     bool
	)

	cmd := &cobra.Command{
		Use:     "provision <domain>",
		Short:   "Provision a site end to end",
		Long:    "Create DNS records, app directories, a placeholder page and the web server configuration for a domain, optionally issuing a TLS certificate. Safe to re-run: already-converged steps are no-ops.",
		Example: "siteman provision example.com --www --app --port 4000 --ssl",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			params := types.ProvisionParams{
				Domain:           args[0],
				EnableWww:        www,
				Mode:             types.ModeComingSoon,
				AppPort:          port,
				Proxied:          proxied,
				IssueCertificate: ssl,
			}
			if appMode {
				params.Mode = types.ModeProxied
			}

			runProvision(app, params)
		},
	}

	cmd.Flags().BoolVar(&www, "www", false, "Also serve www.<domain>")
	cmd.Flags().BoolVar(&proxied, "proxied", false, "Put the DNS records behind the provider's edge proxy")
	cmd.Flags().BoolVar(&appMode, "app", false, "Reverse-proxy to an app process instead of serving the placeholder")
	cmd.Flags().IntVar(&port, "port", types.DefaultAppPort, "Local port the app process listens on")
	cmd.Flags().BoolVar(&ssl, "ssl", false, "Issue a TLS certificate after the site is reachable")
	return cmd
}

func runProvision(app *App, params types.ProvisionParams) {
	cmdutil.StartLoading("Provisioning " + params.Domain + "...")
	defer cmdutil.StopLoading()

	orch, err := app.orchestrator()
	if err != nil {
		cmdutil.PrintE(err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
	defer cancel()

	result := orch.Provision(ctx, params)
	cmdutil.StopLoading()

	for _, warning := range result.Warnings {
		cmdutil.PrintW(warning)
	}
	if !result.Success() {
		cmdutil.PrintE(fmt.Sprintf("provisioning failed at step %q: %v", result.FailedStep, result.Err))
		return
	}
	cmdutil.PrintS(fmt.Sprintf("Site %s provisioned (run %s)", result.Domain, result.RunID))
}
