package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
	"siteman/internal/lifecycle"
)

func newCloneCmd(app *App) *cobra.Command {
	var (
		proxied bool
		ssl     bool
	)

	cmd := &cobra.Command{
		Use:     "clone <source-domain> <target-domain>",
		Short:   "Provision a new domain with an existing site's parameters",
		Long:    "Read the source site's live configuration (www alias, serving mode, app port), confirm the recovered parameters, and provision the target domain with the same shape. App directory contents are not copied.",
		Example: "siteman clone example.com staging.example.com --ssl",
		Args:    cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			orch, err := app.orchestrator()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
			defer cancel()

			result := orch.Clone(ctx, args[0], args[1], proxied, ssl, cmdutil.PromptConfirmer{})

			for _, warning := range result.Warnings {
				cmdutil.PrintW(warning)
			}
			if errors.Is(result.Err, lifecycle.ErrCloneDeclined) {
				cmdutil.PrintW("Clone aborted")
				return
			}
			if !result.Success() {
				cmdutil.PrintE(result.Err.Error())
				return
			}
			cmdutil.PrintS(fmt.Sprintf("Site %s provisioned from %s", args[1], args[0]))
		},
	}

	cmd.Flags().BoolVar(&proxied, "proxied", false, "Put the DNS records behind the provider's edge proxy")
	cmd.Flags().BoolVar(&ssl, "ssl", false, "Issue a TLS certificate for the new domain")
	return cmd
}
