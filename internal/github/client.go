// Package github provides the authenticated GitHub REST client and the
// recursive directory tree fetcher used by the sync and commit engines.
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
	"os"
	"strings"
	"time"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/logging"
)

const (
	GitHubAPIURL = "https://api.github.com"
	AcceptHeader = "application/vnd.github.v3+json"
)

// Client represents a GitHub API client.
//
// The client normalizes HTTP failures into the typed errors in errors.go and
// tracks rate-limit headers, but never retries internally; backoff is the
// caller's concern.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	rateLimiter *RateLimiter
}

// RateLimiter tracks API rate limits reported by response headers.
type RateLimiter struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// User represents the authenticated GitHub identity.
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Repository represents a GitHub repository.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
}

// Branch represents a GitHub branch with its head revision marker.
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Commit    struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// DirEntry is one immediate child of a directory as reported by the
// contents API. Type is "file" or "dir".
type DirEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int    `json:"size"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
}

// fileContent is a single file from the contents API.
type fileContent struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

// TokenSource supplies a stored GitHub credential for a user.
type TokenSource interface {
	GetToken(ctx context.Context, user string) (token, username string, err error)
}

// ResolveToken finds a GitHub token: the GITHUB_TOKEN environment variable
// takes priority, then the stored credential for the user.
func ResolveToken(ctx context.Context, ts TokenSource, user string) (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	if ts != nil {
		if token, _, err := ts.GetToken(ctx, user); err == nil && token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("no GitHub token found: set GITHUB_TOKEN or run 'travis auth set'")
}

// NewClient creates a new GitHub API client with the given token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     GitHubAPIURL,
		token:       token,
		rateLimiter: &RateLimiter{},
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimSuffix(base, "/")
	return c
}

// doRequest performs an authenticated API request and maps error status
// codes onto the typed error taxonomy.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, path)

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", AcceptHeader)
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", c.token))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.updateRateLimits(resp)

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := readErrorMessage(resp.Body)
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, &AuthError{Status: resp.StatusCode, Message: msg}
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusForbidden && c.rateLimiter.Remaining == 0:
			return nil, &RateLimitError{Reset: c.rateLimiter.Reset}
		case resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{Status: resp.StatusCode, Message: msg}
		case resp.StatusCode == http.StatusNotFound:
			return nil, &NotFoundError{Resource: path}
		case resp.StatusCode == http.StatusConflict,
			resp.StatusCode == http.StatusUnprocessableEntity:
			return nil, &ConflictError{Path: path, Message: msg}
		default:
			return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, msg)
		}
	}

	return resp, nil
}

// readErrorMessage extracts the message field from an API error body.
func readErrorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return strings.TrimSpace(string(data))
}

// updateRateLimits updates rate limit information from response headers.
func (c *Client) updateRateLimits(resp *http.Response) {
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		fmt.Sscanf(remaining, "%d", &c.rateLimiter.Remaining)
	}
	if limit := resp.Header.Get("X-RateLimit-Limit"); limit != "" {
		fmt.Sscanf(limit, "%d", &c.rateLimiter.Limit)
	}
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		var timestamp int64
		fmt.Sscanf(reset, "%d", &timestamp)
		c.rateLimiter.Reset = time.Unix(timestamp, 0)
	}
}

// GetRateLimit returns current rate limit status.
func (c *Client) GetRateLimit() *RateLimiter {
	return c.rateLimiter
}

// IsRateLimited checks if we're currently rate limited.
func (c *Client) IsRateLimited() bool {
	return c.rateLimiter.Remaining == 0 && time.Now().Before(c.rateLimiter.Reset)
}

// FetchUserInfo returns the authenticated identity.
func (c *Client) FetchUserInfo(ctx context.Context) (*User, error) {
	resp, err := c.doRequest(ctx, "GET", "/user", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// FetchRepositories returns every repository visible to the credential,
// following pagination. An empty list is a valid result.
func (c *Client) FetchRepositories(ctx context.Context) ([]Repository, error) {
	const perPage = 100
	var all []Repository
	for page := 1; ; page++ {
		path := fmt.Sprintf("/user/repos?per_page=%d&page=%d", perPage, page)
		resp, err := c.doRequest(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}

		var repos []Repository
		err = json.NewDecoder(resp.Body).Decode(&repos)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode repositories: %w", err)
		}

		all = append(all, repos...)
		if len(repos) < perPage {
			break
		}
	}
	return all, nil
}

// FetchBranches returns branch names and head revision markers for a
// repository, following pagination.
func (c *Client) FetchBranches(ctx context.Context, repoFullName string) ([]Branch, error) {
	const perPage = 100
	var all []Branch
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/branches?per_page=%d&page=%d", repoFullName, perPage, page)
		resp, err := c.doRequest(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}

		var branches []Branch
		err = json.NewDecoder(resp.Body).Decode(&branches)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode branches: %w", err)
		}

		all = append(all, branches...)
		if len(branches) < perPage {
			break
		}
	}
	return all, nil
}

// contentsPath builds a contents API path for the given repo-relative path.
func contentsPath(repoFullName, path, ref string) string {
	apiPath := fmt.Sprintf("/repos/%s/contents/%s", repoFullName, escapePath(path))
	if ref != "" {
		apiPath += "?ref=" + url.QueryEscape(ref)
	}
	return apiPath
}

// escapePath escapes each segment of a repo-relative path, preserving the
// slashes between segments.
func escapePath(p string) string {
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// FetchDirectoryListing returns the immediate children of a path at a given
// revision. It does not recurse. Listing a path that resolves to a file
// yields a NotFoundError: the resource asked for (a directory) is not there.
func (c *Client) FetchDirectoryListing(ctx context.Context, repoFullName, path, ref string) ([]DirEntry, error) {
	resp, err := c.doRequest(ctx, "GET", contentsPath(repoFullName, path, ref), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory listing: %w", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &NotFoundError{Resource: fmt.Sprintf("directory %s in %s", path, repoFullName)}
	}

	var entries []DirEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode directory listing: %w", err)
	}
	return entries, nil
}

// FetchFileContent returns the decoded text content of a single file. ok is
// false when the path exists but is not a regular file (a directory,
// symlink or submodule). A missing path yields a NotFoundError.
func (c *Client) FetchFileContent(ctx context.Context, repoFullName, path, ref string) (content string, ok bool, err error) {
	resp, err := c.doRequest(ctx, "GET", contentsPath(repoFullName, path, ref), nil)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read file content: %w", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// Directory listing, not a file.
		return "", false, nil
	}

	var fc fileContent
	if err := json.Unmarshal(data, &fc); err != nil {
		return "", false, fmt.Errorf("failed to decode file content: %w", err)
	}
	if fc.Type != "" && fc.Type != "file" {
		return "", false, nil
	}

	if fc.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(fc.Content, "\n", ""))
		if err != nil {
			return "", false, fmt.Errorf("failed to decode base64 content: %w", err)
		}
		return string(decoded), true, nil
	}
	return fc.Content, true, nil
}

// GetFileSHA returns the current revision marker for a file, for use as the
// priorRevisionMarker of a conditional update.
func (c *Client) GetFileSHA(ctx context.Context, repoFullName, path, ref string) (string, error) {
	resp, err := c.doRequest(ctx, "GET", contentsPath(repoFullName, path, ref), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var fc fileContent
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return "", fmt.Errorf("failed to decode file metadata: %w", err)
	}
	return fc.SHA, nil
}

// fetchRaw downloads file content from a direct-download URL, bypassing the
// JSON contents envelope.
func (c *Client) fetchRaw(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("download error %d for %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read download: %w", err)
	}
	return string(data), nil
}

// fileUploadRequest is the contents API commit payload.
type fileUploadRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// fileUploadResponse carries the new revision marker after a commit.
type fileUploadResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// CreateOrUpdateFile commits a single file. When priorSHA is supplied the
// call is conditional and fails with a ConflictError if the remote file has
// moved past that marker; when omitted the call assumes creation and fails
// with a ConflictError if the file already exists. Returns the new revision
// marker on success.
func (c *Client) CreateOrUpdateFile(ctx context.Context, repoFullName, path, content, message, branch, priorSHA string) (string, error) {
	req := fileUploadRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:     priorSHA,
		Branch:  branch,
	}

	resp, err := c.doRequest(ctx, "PUT", contentsPath(repoFullName, path, ""), req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out fileUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode commit response: %w", err)
	}

	logging.Debug("committed file",
		logging.String("repo", repoFullName),
		logging.String("path", path))
	return out.Content.SHA, nil
}
