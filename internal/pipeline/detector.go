package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"siteman/internal/integrations/github"
	"siteman/internal/inventory"
	"siteman/internal/types"
	"siteman/logger"
)

// WorkflowSource is the slice of the source-control API detection needs.
type WorkflowSource interface {
	ListWorkflows(ctx context.Context, owner, repo string) ([]github.Workflow, error)
}

// Detector cross-references deployed apps against their repositories'
// workflows and reports which apps have a deploy pipeline.
type Detector struct {
	inv      *inventory.Discovery
	source   WorkflowSource
	keywords []string
}

func NewDetector(inv *inventory.Discovery, source WorkflowSource, keywords []string) *Detector {
	return &Detector{inv: inv, source: source, keywords: keywords}
}

// Detect classifies every deployed app: each workflow matching a keyword
// yields one pipeline, apps without any are reported with the reason they
// were skipped. A repository whose workflow listing fails is reported as
// unconfigured rather than aborting the whole pass.
func (d *Detector) Detect(ctx context.Context) ([]types.Pipeline, []types.UnconfiguredApp, error) {
	apps, err := d.inv.DeployedApps(ctx)
	if err != nil {
		return nil, nil, err
	}

	pipelines := make([]types.Pipeline, 0)
	unconfigured := make([]types.UnconfiguredApp, 0)
	now := time.Now()

	for _, app := range apps {
		switch {
		case !app.HasGitDir:
			unconfigured = append(unconfigured, types.UnconfiguredApp{AppName: app.Name, Reason: types.ReasonNoGitRepository})
			continue
		case app.RemoteURL == "":
			unconfigured = append(unconfigured, types.UnconfiguredApp{AppName: app.Name, Reason: types.ReasonNoRemote})
			continue
		case !app.HasRepoRef():
			unconfigured = append(unconfigured, types.UnconfiguredApp{AppName: app.Name, Reason: types.ReasonInvalidRepoRef})
			continue
		}

		workflows, err := d.source.ListWorkflows(ctx, app.RepoOwner, app.RepoName)
		if err != nil {
			logger.Warn("workflow listing failed",
				zap.String("app", app.Name),
				zap.String("repo", app.RepoRef()),
				zap.Error(err))
			unconfigured = append(unconfigured, types.UnconfiguredApp{AppName: app.Name, Reason: types.ReasonWorkflowListingFailed})
			continue
		}

		matching := lo.Filter(workflows, func(w github.Workflow, _ int) bool {
			return d.matchesKeyword(w.Name) || d.matchesKeyword(w.Path)
		})
		if len(matching) == 0 {
			unconfigured = append(unconfigured, types.UnconfiguredApp{AppName: app.Name, Reason: types.ReasonNoDeployWorkflow})
			continue
		}

		status := "stopped"
		if app.Running {
			status = "online"
		}
		for _, workflow := range matching {
			pipelines = append(pipelines, types.Pipeline{
				AppName:      app.Name,
				RepoOwner:    app.RepoOwner,
				RepoName:     app.RepoName,
				WorkflowName: workflow.Name,
				WorkflowID:   workflow.ID,
				WorkflowPath: workflow.Path,
				VPSStatus:    status,
				DetectedAt:   now,
			})
		}
	}

	return pipelines, unconfigured, nil
}

// matchesKeyword tokenizes the candidate on non-alphanumeric boundaries and
// requires an exact token match, so "cd" matches "CD Pipeline" but not
// "Code Quality".
func (d *Detector) matchesKeyword(candidate string) bool {
	tokens := tokenize(candidate)
	return lo.SomeBy(d.keywords, func(keyword string) bool {
		return lo.Contains(tokens, strings.ToLower(keyword))
	})
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		return !alnum
	})
	return fields
}
