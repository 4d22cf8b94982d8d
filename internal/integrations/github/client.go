package github

import (
	"context"
	"fmt"
	"net/url"

	"siteman/internal/integrations"
)

const serviceName = "github"

type Client interface {
	// Viewer returns the login of the token's owner; used to verify
	// credentials at startup.
	Viewer(ctx context.Context) (string, error)

	ListWorkflows(ctx context.Context, owner, repo string) ([]Workflow, error)
	ListWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, limit int) ([]WorkflowRun, error)

	ListSecrets(ctx context.Context, owner, repo string) ([]Secret, error)
	HasDeploySecrets(ctx context.Context, owner, repo string) (bool, error)
	PutSecret(ctx context.Context, owner, repo, name, value string) error
	DeleteSecret(ctx context.Context, owner, repo, name string) error
}

type client struct {
	httpClient integrations.HttpClient
}

func NewClient(baseURL, token string) Client {
	headers := map[string]string{
		"Authorization": "token " + token,
		"Accept":        "application/vnd.github.v3+json",
	}
	return &client{httpClient: integrations.NewHttpClient(serviceName, baseURL, headers)}
}

func (c *client) Viewer(ctx context.Context) (string, error) {
	var u user
	if err := c.httpClient.Do(ctx, "GET", "/user", nil, &u); err != nil {
		return "", err
	}
	return u.Login, nil
}

func (c *client) ListWorkflows(ctx context.Context, owner, repo string) ([]Workflow, error) {
	var resp workflowList
	requestUrl := fmt.Sprintf("/repos/%s/%s/actions/workflows", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.httpClient.Do(ctx, "GET", requestUrl, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Workflows, nil
}

func (c *client) ListWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, limit int) ([]WorkflowRun, error) {
	var resp workflowRunList
	requestUrl := fmt.Sprintf("/repos/%s/%s/actions/workflows/%d/runs?per_page=%d",
		url.PathEscape(owner), url.PathEscape(repo), workflowID, limit)
	if err := c.httpClient.Do(ctx, "GET", requestUrl, nil, &resp); err != nil {
		return nil, err
	}
	return resp.WorkflowRuns, nil
}
