package github

import "time"

type Workflow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}

type workflowList struct {
	TotalCount int        `json:"total_count"`
	Workflows  []Workflow `json:"workflows"`
}

type WorkflowRun struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HeadBranch string    `json:"head_branch"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r WorkflowRun) Completed() bool  { return r.Status == "completed" }
func (r WorkflowRun) InProgress() bool { return r.Status == "in_progress" }
func (r WorkflowRun) Queued() bool     { return r.Status == "queued" }

func (r WorkflowRun) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.CreatedAt)
}

type workflowRunList struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

type Secret struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

type secretList struct {
	TotalCount int      `json:"total_count"`
	Secrets    []Secret `json:"secrets"`
}

type publicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

type putSecretRequest struct {
	EncryptedValue string `json:"encrypted_value"`
	KeyID          string `json:"key_id"`
}

type user struct {
	Login string `json:"login"`
}
