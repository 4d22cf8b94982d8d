package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
)

func newRestartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <target>",
		Short: "Restart a managed service or app process",
		Long:  "Restart nginx or postgresql, an app process by name, every app process with 'apps', or everything with 'all'. Restarting everything asks for confirmation first.",
		Example: "siteman restart nginx\n" +
			"siteman restart postgresql\n" +
			"siteman restart apps\n" +
			"siteman restart all\n" +
			"siteman restart example.com",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			orch, err := app.orchestrator()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			if args[0] == "all" {
				if err := orch.RestartAllServices(ctx, cmdutil.PromptConfirmer{}); err != nil {
					cmdutil.PrintE(err.Error())
					return
				}
				cmdutil.PrintS("Restarted all services")
				return
			}

			cmdutil.StartLoading("Restarting " + args[0] + "...")
			err = orch.RestartService(ctx, args[0])
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS("Restarted " + args[0])
		},
	}
	return cmd
}
