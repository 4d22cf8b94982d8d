package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"siteman/internal/certs"
	"siteman/internal/cmdutil"
	"siteman/internal/monitor"
	"siteman/logger"
)

func newDashboardCmd(app *App) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Continuously display server and site status",
		Long:  "Poll system stats and per-site status on an interval until interrupted. While the dashboard runs, certificate renewal is also scheduled in the background.",
		Run: func(cmd *cobra.Command, args []string) {
			ch, err := app.channel()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			scheduler, err := certs.NewRenewalScheduler(app.certOrchestrator(ch), app.cfg.RenewInterval)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			if err := scheduler.Start(ctx); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			defer func() {
				if err := scheduler.Stop(); err != nil {
					logger.Warn("renewal scheduler shutdown failed", zap.Error(err))
				}
			}()

			collector := app.collector(ch)
			for {
				renderDashboard(ctx, app, collector)

				select {
				case <-ctx.Done():
					cmdutil.Print("")
					return
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Refresh interval")
	return cmd
}

func renderDashboard(ctx context.Context, app *App, collector *monitor.Collector) {
	stats, err := collector.SystemStats(ctx)
	if err != nil {
		cmdutil.PrintW("stats collection failed: " + err.Error())
		return
	}

	cmdutil.Print("")
	cmdutil.Print(fmt.Sprintf("[%s] CPU %.1f%%  Mem %.1f%%  Disk %.1f%%  nginx=%s  postgresql=%s  apps %d/%d online",
		time.Now().Format("15:04:05"),
		stats.CPUUsage, stats.MemoryUsage, stats.DiskUsage,
		activeLabel(stats.NginxRunning), activeLabel(stats.PostgresqlRunning),
		stats.ProcessOnline, stats.ProcessCount))

	statuses, err := collector.SiteStatuses(ctx)
	if err != nil {
		cmdutil.PrintW("site status collection failed: " + err.Error())
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
	}
	cmdutil.Print(tw.Render())
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
