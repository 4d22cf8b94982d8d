package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
	"siteman/internal/pipeline"
	"siteman/internal/types"
)

func newPipelinesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipelines <command>",
		Short:   "Inspect deploy pipelines",
		Aliases: []string{"pipeline"},
	}

	cmd.AddCommand(newPipelinesListCmd(app))
	cmd.AddCommand(newPipelinesStatsCmd(app))
	return cmd
}

func (a *App) detectPipelines(ctx context.Context) ([]types.Pipeline, []types.UnconfiguredApp, error) {
	ch, err := a.channel()
	if err != nil {
		return nil, nil, err
	}
	return a.pipelineDetector(ch).Detect(ctx)
}

func newPipelinesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Cross-reference deployed apps with their repos' deploy workflows",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Detecting pipelines...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			pipelines, unconfigured, err := app.detectPipelines(ctx)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.StopLoading()

			// One secrets lookup per repository, not per pipeline.
			secretsByRepo := make(map[string]string)
			deploySecrets := func(p types.Pipeline) string {
				ref := p.RepoOwner + "/" + p.RepoName
				if label, ok := secretsByRepo[ref]; ok {
					return label
				}
				label := "missing"
				has, err := app.github().HasDeploySecrets(ctx, p.RepoOwner, p.RepoName)
				if err != nil {
					label = "unknown"
				} else if has {
					label = "configured"
				}
				secretsByRepo[ref] = label
				return label
			}

			tw := table.NewWriter()
			tw.AppendHeader(table.Row{"App", "Repository", "Workflow", "Status", "Deploy Secrets"})
			for _, p := range pipelines {
				tw.AppendRow(table.Row{p.AppName, p.RepoOwner + "/" + p.RepoName, p.WorkflowName, p.VPSStatus, deploySecrets(p)})
				tw.AppendSeparator()
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())

			if len(unconfigured) > 0 {
				cmdutil.Print("")
				cmdutil.Print("Apps without a deploy pipeline:")
				for _, u := range unconfigured {
					cmdutil.Print(fmt.Sprintf("  %s: %s", u.AppName, u.Reason))
				}
			}
		},
	}
}

func newPipelinesStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "stats [app]",
		Short:   "Show recent run statistics per pipeline",
		Example: "siteman pipelines stats blog",
		Args:    cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Collecting run statistics...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			pipelines, _, err := app.detectPipelines(ctx)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			if len(args) == 1 {
				pipelines = lo.Filter(pipelines, func(p types.Pipeline, _ int) bool {
					return p.AppName == args[0]
				})
			}

			collector := pipeline.NewStatsCollector(app.github())
			tw := table.NewWriter()
			tw.AppendHeader(table.Row{"App", "Runs", "Success Rate", "Avg Duration", "Health", "Active", "Queued", "Last Run"})
			for _, p := range pipelines {
				stats, err := collector.Collect(ctx, p)
				if err != nil {
					cmdutil.PrintW(fmt.Sprintf("stats for %s unavailable: %v", p.AppName, err))
					continue
				}

				lastRun := "-"
				if stats.LastRun != nil {
					lastRun = fmt.Sprintf("%s (%s)", stats.LastRun.Conclusion, stats.LastRun.Timestamp.Format("02-01-2006 15:04"))
				}
				tw.AppendRow(table.Row{
					p.AppName,
					stats.RunCount,
					fmt.Sprintf("%.0f%%", stats.SuccessRate),
					stats.AvgDuration.Round(time.Second).String(),
					fmt.Sprintf("%d/100", stats.HealthScore),
					stats.ActiveRuns,
					stats.QueueLength,
					lastRun,
				})
				tw.AppendSeparator()
			}
			cmdutil.StopLoading()
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
}
