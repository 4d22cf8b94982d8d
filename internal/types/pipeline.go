package types

import "time"

// DeployedApp is one application directory found under the apps root on the
// managed server.
type DeployedApp struct {
	Name      string
	Path      string
	HasGitDir bool
	RemoteURL string

	// RepoOwner/RepoName are populated only when RemoteURL parses into
	// exactly an owner/repo pair on the source-control host.
	RepoOwner string
	RepoName  string

	Running bool
}

// HasRepoRef reports whether the app carries a usable owner/repo reference.
func (a DeployedApp) HasRepoRef() bool {
	return a.RepoOwner != "" && a.RepoName != ""
}

func (a DeployedApp) RepoRef() string {
	return a.RepoOwner + "/" + a.RepoName
}

// Pipeline is one detected build/deploy automation pipeline: a deployed app
// paired with a matching workflow on the source-control host. Ephemeral,
// recomputed on every detection pass.
type Pipeline struct {
	AppName      string
	RepoOwner    string
	RepoName     string
	WorkflowName string
	WorkflowID   int64
	WorkflowPath string
	VPSStatus    string
	DetectedAt   time.Time
}

// Reasons an app is reported as unconfigured.
const (
	ReasonNoGitRepository       = "No git repository"
	ReasonNoRemote              = "No remote"
	ReasonInvalidRepoRef        = "Invalid repo reference"
	ReasonNoDeployWorkflow      = "No deploy workflow"
	ReasonWorkflowListingFailed = "Workflow listing failed"
)

type UnconfiguredApp struct {
	AppName string
	Reason  string
}

// PipelineStats summarizes a pipeline's recent workflow runs.
type PipelineStats struct {
	RunCount    int
	SuccessRate float64
	AvgDuration time.Duration
	HealthScore int
	ActiveRuns  int
	QueueLength int
	LastRun     *RunSummary
}

type RunSummary struct {
	Timestamp  time.Time
	Conclusion string
	Duration   time.Duration
	Branch     string
}
