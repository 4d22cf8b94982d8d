package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"siteman/internal/types"
)

type HttpClient interface {
	Do(ctx context.Context, method, requestUrl string, body, response interface{}) error
}

type impl struct {
	client  *http.Client
	baseUrl string
	service string
	headers map[string]string
}

// NewHttpClient returns a JSON-over-HTTP client for one external service.
// Every call carries the fixed headers (auth) and a 30s transport timeout;
// non-2xx responses come back as *types.APIError.
func NewHttpClient(service, baseUrl string, headers map[string]string) HttpClient {
	return impl{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseUrl: baseUrl,
		service: service,
		headers: headers,
	}
}

func (c impl) Do(ctx context.Context, method, requestUrl string, body, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+requestUrl, nil)
	if err != nil {
		return err
	}
	if body != nil {
		bodyBin, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Body = io.NopCloser(bytes.NewBuffer(bodyBin))
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &types.ConnectionError{Op: c.service + " " + method + " " + requestUrl, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &types.APIError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Body:       string(responseBody),
		}
	}

	if response != nil {
		if err := json.Unmarshal(responseBody, &response); err != nil {
			return err
		}
	}
	return nil
}
