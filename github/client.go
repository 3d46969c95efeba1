package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
)

const (
	defaultBaseURL = "https://api.github.com"

	// perPage is the page size used for paginated list endpoints.
	perPage = 100

	// maxPages bounds pagination loops against runaway list endpoints.
	maxPages = 50
)

// Client provides methods to interact with the GitHub API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewAppClient creates a client authenticated as a GitHub App installation.
// The privateKey should be the PEM-encoded private key of the GitHub App.
func NewAppClient(appID, installationID int64, privateKey []byte) (*Client, error) {
	transport, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation transport: %w", err)
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}, nil
}

// NewTokenClient creates a client authenticated with a personal or Actions token.
func NewTokenClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &tokenTransport{token: token, base: http.DefaultTransport},
			Timeout:   30 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

// newTestClient is used by tests to point the client at a test server.
func newTestClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// tokenTransport adds a bearer token to every request.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, url, what string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to fetch %s: status %d, body: %s", what, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return nil
}

// GetPullRequest fetches a pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, prNumber int) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, prNumber)
	var pr PullRequest
	if err := c.get(ctx, url, "pull request", &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListPullRequestFiles fetches the list of files changed in a pull request,
// following pagination until the last page.
func (c *Client) ListPullRequestFiles(ctx context.Context, owner, repo string, prNumber int) ([]PullRequestFile, error) {
	var all []PullRequestFile
	for page := 1; page <= maxPages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d", c.baseURL, owner, repo, prNumber, perPage, page)
		var files []PullRequestFile
		if err := c.get(ctx, url, "files", &files); err != nil {
			return nil, err
		}
		all = append(all, files...)
		if len(files) < perPage {
			break
		}
	}
	return all, nil
}

// GetTree fetches a commit's file tree. When recursive is true the full tree
// is returned in a single response.
func (c *Client) GetTree(ctx context.Context, owner, repo, treeSHA string, recursive bool) (*Tree, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s", c.baseURL, owner, repo, treeSHA)
	if recursive {
		url += "?recursive=true"
	}
	var tree Tree
	if err := c.get(ctx, url, "tree", &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// ListReviewComments fetches all inline review comments for a pull request,
// following pagination until the last page.
func (c *Client) ListReviewComments(ctx context.Context, owner, repo string, prNumber int) ([]PullRequestComment, error) {
	var all []PullRequestComment
	for page := 1; page <= maxPages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments?per_page=%d&page=%d", c.baseURL, owner, repo, prNumber, perPage, page)
		var comments []PullRequestComment
		if err := c.get(ctx, url, "comments", &comments); err != nil {
			return nil, err
		}
		all = append(all, comments...)
		if len(comments) < perPage {
			break
		}
	}
	return all, nil
}

// CreateReviewComment posts an inline review comment on a pull request.
func (c *Client) CreateReviewComment(ctx context.Context, owner, repo string, prNumber int, comment *ReviewCommentRequest) (*PullRequestComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", c.baseURL, owner, repo, prNumber)

	body, err := json.Marshal(comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create comment: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var created PullRequestComment
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode comment response: %w", err)
	}
	return &created, nil
}

// DeleteReviewComment deletes an inline review comment by id.
func (c *Client) DeleteReviewComment(ctx context.Context, owner, repo string, commentID int64) error {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/comments/%d", c.baseURL, owner, repo, commentID)

	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete comment %d: status %d, body: %s", commentID, resp.StatusCode, string(body))
	}
	return nil
}

// ListPullRequestCommits fetches the commits on a pull request.
func (c *Client) ListPullRequestCommits(ctx context.Context, owner, repo string, prNumber int) ([]Commit, error) {
	var all []Commit
	for page := 1; page <= maxPages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/commits?per_page=%d&page=%d", c.baseURL, owner, repo, prNumber, perPage, page)
		var commits []Commit
		if err := c.get(ctx, url, "commits", &commits); err != nil {
			return nil, err
		}
		all = append(all, commits...)
		if len(commits) < perPage {
			break
		}
	}
	return all, nil
}

// ListIssueComments fetches the issue-level comments on a PR.
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, prNumber int) ([]IssueComment, error) {
	var all []IssueComment
	for page := 1; page <= maxPages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=%d&page=%d", c.baseURL, owner, repo, prNumber, perPage, page)
		var comments []IssueComment
		if err := c.get(ctx, url, "issue comments", &comments); err != nil {
			return nil, err
		}
		all = append(all, comments...)
		if len(comments) < perPage {
			break
		}
	}
	return all, nil
}

// CreateIssueComment posts a comment on a PR (via the issues API).
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) (*IssueComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, owner, repo, prNumber)
	return c.postIssueComment(ctx, url, "POST", body)
}

// UpdateIssueComment replaces the body of an existing issue comment.
func (c *Client) UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) (*IssueComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.baseURL, owner, repo, commentID)
	return c.postIssueComment(ctx, url, "PATCH", body)
}

func (c *Client) postIssueComment(ctx context.Context, url, method, body string) (*IssueComment, error) {
	reqBody, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to write comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to write comment: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var comment IssueComment
	if err := json.NewDecoder(resp.Body).Decode(&comment); err != nil {
		return nil, fmt.Errorf("failed to decode comment response: %w", err)
	}
	return &comment, nil
}

// FetchFileContent fetches the content of a file from a repository.
// Returns an empty string if the file does not exist at the given ref.
func (c *Client) FetchFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", c.baseURL, owner, repo, path, url.QueryEscape(ref))
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil // File doesn't exist
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to fetch file: status %d, body: %s", resp.StatusCode, string(body))
	}

	var content FileContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return "", fmt.Errorf("failed to decode file content: %w", err)
	}

	if content.Encoding != "base64" {
		return "", fmt.Errorf("unsupported encoding: %s", content.Encoding)
	}

	decoded, err := base64.StdEncoding.DecodeString(content.Content)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 content: %w", err)
	}

	return string(decoded), nil
}
