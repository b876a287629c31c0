// Package github is a minimal GitHub API client for querying repository
// tags. Only the unauthenticated endpoints the ebuild bumper needs are
// implemented.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://api.github.com"

// Client queries the GitHub REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Tag is one entry of a repository's tag list.
type Tag struct {
	Name string `json:"name"`
}

// NewClient creates a client against the public GitHub API.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
}

// LatestTag returns the most recent tag of repo ("owner/name"), with any
// leading "v" stripped. A repository without tags returns ("", nil).
func (c *Client) LatestTag(ctx context.Context, repo string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/tags", c.baseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query tags for %s: %w", repo, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API error for %s (status %d): %s", repo, resp.StatusCode, string(body))
	}

	var tags []Tag
	if err := json.Unmarshal(body, &tags); err != nil {
		return "", fmt.Errorf("parse tags for %s: %w", repo, err)
	}

	if len(tags) == 0 {
		return "", nil
	}
	return strings.TrimPrefix(tags[0].Name, "v"), nil
}
