package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"siteman/internal/integrations/github"
)

func run(status, conclusion, branch string, created time.Time, duration time.Duration) github.WorkflowRun {
	return github.WorkflowRun{
		Status:     status,
		Conclusion: conclusion,
		HeadBranch: branch,
		CreatedAt:  created,
		UpdatedAt:  created.Add(duration),
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Equal(t, 0, stats.RunCount)
	assert.Equal(t, float64(0), stats.SuccessRate)
	assert.Nil(t, stats.LastRun)
}

func TestComputeStats(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []github.WorkflowRun{
		run("in_progress", "", "main", base.Add(3*time.Hour), 0),
		run("queued", "", "main", base.Add(2*time.Hour), 0),
		run("completed", "success", "main", base.Add(time.Hour), 100*time.Second),
		run("completed", "failure", "develop", base, 300*time.Second),
	}

	stats := ComputeStats(runs)
	assert.Equal(t, 4, stats.RunCount)
	// 1 success out of 4 fetched runs.
	assert.InDelta(t, 25.0, stats.SuccessRate, 0.01)
	// (100s + 300s) / 2 completed runs.
	assert.Equal(t, 200*time.Second, stats.AvgDuration)
	assert.Equal(t, 1, stats.ActiveRuns)
	assert.Equal(t, 1, stats.QueueLength)

	// 25 + (100 - 200/10) = 105, clamped.
	assert.Equal(t, 100, stats.HealthScore)

	// Last run is the newest completed run in the listing.
	assert.NotNil(t, stats.LastRun)
	assert.Equal(t, "success", stats.LastRun.Conclusion)
	assert.Equal(t, "main", stats.LastRun.Branch)
	assert.Equal(t, 100*time.Second, stats.LastRun.Duration)
}

func TestComputeStatsHealthPenalizesSlowRuns(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []github.WorkflowRun{
		run("completed", "failure", "main", base, 1500*time.Second),
		run("completed", "success", "main", base, 1500*time.Second),
	}

	stats := ComputeStats(runs)
	// 50 + (100 - 1500/10) = 0.
	assert.Equal(t, 0, stats.HealthScore)
}
