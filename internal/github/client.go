package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gordonpn/prompthook/internal/domain"
)

const defaultBaseURL = "https://api.github.com"

// ErrUnavailable wraps network-level failures reaching the GitHub API.
var ErrUnavailable = errors.New("github api unreachable")

// APIError is a non-2xx answer from the GitHub API. The status code is kept
// so the webhook handler can relay it to the sender.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github status %d: %s", e.StatusCode, e.Body)
}

// Client commits prompt manifests to a single file in a GitHub repository
// through the contents API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
	filePath   string
	branch     string
}

type Config struct {
	BaseURL  string
	Token    string
	Owner    string
	Repo     string
	FilePath string
	Branch   string
}

func NewClient(httpClient *http.Client, config Config) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      config.Token,
		owner:      config.Owner,
		repo:       config.Repo,
		filePath:   config.FilePath,
		branch:     config.Branch,
	}
}

// CommitResult reports where the manifest landed.
type CommitResult struct {
	CommitSHA  string `json:"commit_sha"`
	CommitURL  string `json:"commit_url"`
	ContentSHA string `json:"content_sha"`
}

type contentsResponse struct {
	SHA     string `json:"sha"`
	Commit  struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// CommitManifest writes the event's manifest JSON to the configured file on
// the configured branch. Existing files need their current SHA on the PUT;
// a 404 on the read means the file is new. No retry here, the sender owns
// redelivery.
func (client *Client) CommitManifest(ctx context.Context, event domain.CommitEvent) (CommitResult, error) {
	currentSHA, err := client.fileSHA(ctx)
	if err != nil {
		return CommitResult{}, err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, event.Manifest, "", "  "); err != nil {
		return CommitResult{}, fmt.Errorf("indent manifest: %w", err)
	}

	body := map[string]string{
		"message": fmt.Sprintf("feat: Update %s via webhook - commit %s", client.filePath, event.CommitHash),
		"content": base64.StdEncoding.EncodeToString(pretty.Bytes()),
		"branch":  client.branch,
	}
	if currentSHA != "" {
		body["sha"] = currentSHA
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return CommitResult{}, fmt.Errorf("marshal commit body: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPut, client.contentsURL(""), bytes.NewReader(payload))
	if err != nil {
		return CommitResult{}, fmt.Errorf("build commit request: %w", err)
	}
	client.setHeaders(request)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()

	responseBody, _ := io.ReadAll(response.Body)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return CommitResult{}, &APIError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(responseBody))}
	}

	var parsed contentsResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return CommitResult{}, fmt.Errorf("decode commit response: %w", err)
	}

	return CommitResult{
		CommitSHA:  parsed.Commit.SHA,
		CommitURL:  parsed.Commit.HTMLURL,
		ContentSHA: parsed.Content.SHA,
	}, nil
}

// fileSHA returns the blob SHA of the manifest file on the target branch,
// or "" when the file does not exist yet.
func (client *Client) fileSHA(ctx context.Context) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.contentsURL("ref="+url.QueryEscape(client.branch)), nil)
	if err != nil {
		return "", fmt.Errorf("build sha request: %w", err)
	}
	client.setHeaders(request)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(response.Body)
	switch {
	case response.StatusCode == http.StatusOK:
		var parsed contentsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("decode sha response: %w", err)
		}
		return parsed.SHA, nil
	case response.StatusCode == http.StatusNotFound:
		return "", nil
	default:
		return "", &APIError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

func (client *Client) contentsURL(query string) string {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", client.baseURL, client.owner, client.repo, client.filePath)
	if query != "" {
		endpoint += "?" + query
	}
	return endpoint
}

func (client *Client) setHeaders(request *http.Request) {
	request.Header.Set("Authorization", "Bearer "+client.token)
	request.Header.Set("Accept", "application/vnd.github.v3+json")
	request.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}
