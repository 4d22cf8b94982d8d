package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"siteman/internal/certs"
	"siteman/internal/cmdutil"
	"siteman/internal/sshexec"
)

const certTimeout = 10 * time.Minute

func newCertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "certs <command>",
		Short:   "Manage TLS certificates",
		Aliases: []string{"cert"},
	}

	cmd.AddCommand(newCertsIssueCmd(app))
	cmd.AddCommand(newCertsRenewCmd(app))
	cmd.AddCommand(newCertsRevokeCmd(app))
	cmd.AddCommand(newCertsListCmd(app))
	cmd.AddCommand(newCertsTestCmd(app))
	return cmd
}

func (a *App) withCerts(run func(ctx context.Context, orch *certs.Orchestrator, ch sshexec.Channel) error) {
	ch, err := a.channel()
	if err != nil {
		cmdutil.PrintE(err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), certTimeout)
	defer cancel()

	if err := run(ctx, a.certOrchestrator(ch), ch); err != nil {
		cmdutil.StopLoading()
		cmdutil.PrintE(err.Error())
		return
	}
}

func newCertsIssueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "issue <domain>",
		Short:   "Issue a certificate for an existing site",
		Example: "siteman certs issue example.com",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Issuing certificate for " + args[0] + "...")
			defer cmdutil.StopLoading()

			app.withCerts(func(ctx context.Context, orch *certs.Orchestrator, ch sshexec.Channel) error {
				site, err := app.detector(ch).Detect(ctx, args[0])
				if err != nil {
					return err
				}
				if err := orch.Issue(ctx, site); err != nil {
					return err
				}
				if err := app.proxy(ch).Reload(ctx); err != nil {
					return err
				}
				cmdutil.StopLoading()
				cmdutil.PrintS("Certificate issued for " + args[0])
				return nil
			})
		},
	}
}

func newCertsRenewCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "renew [domain]",
		Short: "Renew certificates that are due (or one domain with --force)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Renewing...")
			defer cmdutil.StopLoading()

			app.withCerts(func(ctx context.Context, orch *certs.Orchestrator, ch sshexec.Channel) error {
				var err error
				if force && len(args) == 1 {
					err = orch.ForceRenew(ctx, args[0])
				} else {
					err = orch.Renew(ctx)
				}
				if err != nil {
					return err
				}
				cmdutil.StopLoading()
				cmdutil.PrintS("Renewal completed")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Force renewal of the named certificate even if not due")
	return cmd
}

func newCertsRevokeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <domain>",
		Short: "Revoke and delete a domain's certificate",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if !(cmdutil.PromptConfirmer{}).Confirm("Revoke certificate for " + args[0]) {
				return
			}

			app.withCerts(func(ctx context.Context, orch *certs.Orchestrator, ch sshexec.Channel) error {
				if err := orch.Revoke(ctx, args[0]); err != nil {
					return err
				}
				cmdutil.PrintS("Certificate revoked for " + args[0])
				return nil
			})
		},
	}
}

func newCertsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List certificates known to the renewer",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			app.withCerts(func(ctx context.Context, orch *certs.Orchestrator, ch sshexec.Channel) error {
				out, err := orch.List(ctx)
				if err != nil {
					return err
				}
				cmdutil.StopLoading()
				cmdutil.Print(out)
				return nil
			})
		},
	}
}

func newCertsTestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Dry-run the renewal path without touching real certificates",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Running renewal dry run...")
			defer cmdutil.StopLoading()

			app.withCerts(func(ctx context.Context, orch *certs.Orchestrator, ch sshexec.Channel) error {
				out, err := orch.DryRun(ctx)
				if err != nil {
					return err
				}
				cmdutil.StopLoading()
				cmdutil.Print(out)
				cmdutil.PrintS("Dry run succeeded")
				return nil
			})
		},
	}
}
