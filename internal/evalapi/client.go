// Package evalapi is a thin REST client for the hosted evaluation platform.
// Scoring happens on the platform; we only read runs, feedback, and dataset
// examples, and record runs executed from CI.
package evalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
	}
}

// Run is one execution of the system under test recorded on the platform.
type Run struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Project string          `json:"session_name,omitempty"`
	Inputs  json.RawMessage `json:"inputs,omitempty"`
	Outputs json.RawMessage `json:"outputs,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Feedback is one score a judge attached to a run.
type Feedback struct {
	RunID   string   `json:"run_id"`
	Key     string   `json:"key"`
	Score   *float64 `json:"score"`
	Comment string   `json:"comment,omitempty"`
}

// Example is one input/reference pair from a dataset.
type Example struct {
	ID      string          `json:"id"`
	Inputs  json.RawMessage `json:"inputs"`
	Outputs json.RawMessage `json:"outputs,omitempty"`
}

// ListRuns returns every run recorded under the named project/experiment.
func (client *Client) ListRuns(ctx context.Context, project string) ([]Run, error) {
	query := url.Values{"project": {project}}
	var result struct {
		Runs []Run `json:"runs"`
	}
	if err := client.get(ctx, "/api/runs", query, &result); err != nil {
		return nil, fmt.Errorf("list runs for %q: %w", project, err)
	}
	return result.Runs, nil
}

// ListFeedback returns the feedback attached to the given runs.
func (client *Client) ListFeedback(ctx context.Context, runIDs []string) ([]Feedback, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}

	query := url.Values{"run_ids": {strings.Join(runIDs, ",")}}
	var result struct {
		Feedback []Feedback `json:"feedback"`
	}
	if err := client.get(ctx, "/api/feedback", query, &result); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return result.Feedback, nil
}

// ListExamples returns the examples of the named dataset.
func (client *Client) ListExamples(ctx context.Context, dataset string) ([]Example, error) {
	query := url.Values{"dataset": {dataset}}
	var result struct {
		Examples []Example `json:"examples"`
	}
	if err := client.get(ctx, "/api/examples", query, &result); err != nil {
		return nil, fmt.Errorf("list examples for %q: %w", dataset, err)
	}
	return result.Examples, nil
}

// CreateRun records a run on the platform and returns it with its assigned ID.
func (client *Client) CreateRun(ctx context.Context, run Run) (Run, error) {
	var created Run
	if err := client.post(ctx, "/api/runs", run, &created); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return created, nil
}

// CreateFeedback attaches a score to a run.
func (client *Client) CreateFeedback(ctx context.Context, feedback Feedback) error {
	if err := client.post(ctx, "/api/feedback", feedback, nil); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (client *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := client.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return client.do(request, out)
}

func (client *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	return client.do(request, out)
}

func (client *Client) do(request *http.Request, out any) error {
	if client.apiKey != "" {
		request.Header.Set("x-api-key", client.apiKey)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("call platform: %w", err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(response.Body)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("platform status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
