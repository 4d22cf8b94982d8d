package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
)

func newSitesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List enabled sites and their live status",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ch, err := app.channel()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			statuses, err := app.collector(ch).SiteStatuses(ctx)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			tw := table.NewWriter()
			tw.AppendHeader(table.Row{"Domain", "HTTPS", "SSL Days Left", "Process"})
			for _, s := range statuses {
				ssl := "none"
				if s.HasSSL {
					ssl = fmt.Sprintf("%d", s.SSLDaysLeft)
				}
				proc := "stopped"
				if s.ProcessRunning {
					proc = "online"
				}
				tw.AppendRow(table.Row{s.Domain, s.HTTPSStatus, ssl, proc})
				tw.AppendSeparator()
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
}
