package repo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GitHubClient implements Client against the GitHub contents API. The file's
// blob SHA serves as the revision token.
type GitHubClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
}

// GitHubConfig holds settings for a GitHubClient.
type GitHubConfig struct {
	Token   string
	Owner   string
	Repo    string
	BaseURL string // override for tests / GitHub Enterprise
}

func NewGitHubClient(cfg GitHubConfig) *GitHubClient {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    base,
		token:      cfg.Token,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
	}
}

func (c *GitHubClient) contentsURL(path, query string) string {
	// Escape per segment: the contents API wants nested paths with literal
	// slashes, not one %2F-joined segment.
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, strings.Join(segments, "/"))
	if query != "" {
		u += "?" + query
	}
	return u
}

func (c *GitHubClient) GetFileRevision(ctx context.Context, path, branch string) (string, error) {
	query := ""
	if branch != "" {
		query = "ref=" + url.QueryEscape(branch)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL(path, query), nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("decode contents response: %w", err)
		}
		return body.SHA, nil
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("get %s: %s", path, readAPIError(resp))
	}
}

func (c *GitHubClient) WriteFile(ctx context.Context, path, content, commitMessage, branch, revision string) error {
	payload := map[string]any{
		"message": commitMessage,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if branch != "" {
		payload["branch"] = branch
	}
	if revision != "" {
		payload["sha"] = revision
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(path, ""), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("write %s: %s", path, readAPIError(resp))
	}
	return nil
}

func (c *GitHubClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readAPIError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ghErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &ghErr) == nil && ghErr.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, ghErr.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
