package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
)

func newOfflineCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "offline <domain>",
		Short:   "Park a site behind its placeholder page",
		Long:    "Rewrite the site's configuration to serve the placeholder page and stop its app process. The certificate, DNS records and app directory are kept; re-provision to bring the site back.",
		Example: "siteman offline example.com",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Parking " + args[0] + "...")
			defer cmdutil.StopLoading()

			orch, err := app.orchestrator()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if err := orch.TakeOffline(ctx, args[0]); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS("Site " + args[0] + " is now parked")
		},
	}
}
