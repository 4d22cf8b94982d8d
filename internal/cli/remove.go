package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
)

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <domain>",
		Short:   "Tear a site down",
		Long:    "Delete the site's web server configuration, certificate, DNS records and app process. Deleting the app directory is confirmed separately because it destroys data.",
		Example: "siteman remove example.com",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			orch, err := app.orchestrator()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			if err := orch.Remove(ctx, args[0], cmdutil.PromptConfirmer{}); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS("Done")
		},
	}
}
