package pipeline

import (
	"context"
	"time"

	"github.com/samber/lo"

	"siteman/internal/integrations/github"
	"siteman/internal/types"
)

const statsRunLimit = 10

// RunSource is the slice of the source-control API stats collection needs.
type RunSource interface {
	ListWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, limit int) ([]github.WorkflowRun, error)
}

// StatsCollector summarizes a pipeline's recent workflow runs into a small
// health report.
type StatsCollector struct {
	source RunSource
}

func NewStatsCollector(source RunSource) *StatsCollector {
	return &StatsCollector{source: source}
}

// Collect fetches the pipeline's most recent runs and computes its stats.
func (c *StatsCollector) Collect(ctx context.Context, p types.Pipeline) (types.PipelineStats, error) {
	runs, err := c.source.ListWorkflowRuns(ctx, p.RepoOwner, p.RepoName, p.WorkflowID, statsRunLimit)
	if err != nil {
		return types.PipelineStats{}, err
	}
	return ComputeStats(runs), nil
}

// ComputeStats derives the stats from a run listing, newest first. The
// success rate counts successes over all fetched runs; average duration is
// over completed runs only. The health score rewards a high success rate and
// penalizes slow pipelines, clamped to 0..100.
func ComputeStats(runs []github.WorkflowRun) types.PipelineStats {
	stats := types.PipelineStats{RunCount: len(runs)}
	if len(runs) == 0 {
		return stats
	}

	successCount := 0
	completedCount := 0
	var totalDuration time.Duration

	for _, run := range runs {
		switch {
		case run.Completed():
			completedCount++
			totalDuration += run.Duration()
			if run.Conclusion == "success" {
				successCount++
			}
			if stats.LastRun == nil {
				stats.LastRun = &types.RunSummary{
					Timestamp:  run.CreatedAt,
					Conclusion: run.Conclusion,
					Duration:   run.Duration(),
					Branch:     run.HeadBranch,
				}
			}
		case run.InProgress():
			stats.ActiveRuns++
		case run.Queued():
			stats.QueueLength++
		}
	}

	stats.SuccessRate = float64(successCount) / float64(len(runs)) * 100

	var avgSeconds float64
	if completedCount > 0 {
		stats.AvgDuration = totalDuration / time.Duration(completedCount)
		avgSeconds = stats.AvgDuration.Seconds()
	}

	score := int(stats.SuccessRate + (100 - avgSeconds/10))
	stats.HealthScore = lo.Clamp(score, 0, 100)
	return stats
}
