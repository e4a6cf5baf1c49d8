// Package orderlog appends paid-order rows to a CSV file kept in a GitHub
// repository, using the contents API so no git checkout is needed.
package orderlog

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
	"time"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

type Client struct {
	Token  string
	Owner  string
	Repo   string
	Path   string
	Branch string

	APIBaseURL string
	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		Token:      strings.TrimSpace(env.GetEnv("GH_TOKEN", "")),
		Owner:      strings.TrimSpace(env.GetEnv("GH_OWNER", "")),
		Repo:       strings.TrimSpace(env.GetEnv("GH_REPO", "")),
		Path:       strings.TrimSpace(env.GetEnv("GH_CSV_PATH", "")),
		Branch:     strings.TrimSpace(env.GetEnv("GH_BRANCH", "main")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("GH_API_BASE_URL", defaultGitHubAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether the order log has everything it needs; the
// log is an optional integration and callers skip it when unconfigured.
func (c *Client) Configured() bool {
	return c.Token != "" && c.Owner != "" && c.Repo != "" && c.Path != ""
}

// AppendRow fetches the current CSV, appends one escaped row and writes
// the file back. Concurrent writers can race on the sha; the caller's
// retry policy (if any) lives above this package.
func (c *Client) AppendRow(ctx context.Context, row []string) error {
	if !c.Configured() {
		return errors.New("order log is not configured: missing GH_TOKEN, GH_OWNER, GH_REPO or GH_CSV_PATH")
	}
	if len(row) == 0 {
		return errors.New("row must have at least one column")
	}

	content, sha, err := c.getFile(ctx)
	if err != nil {
		return err
	}

	line := make([]string, len(row))
	for i, col := range row {
		line[i] = csvEscape(col)
	}
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, '\n')
	}
	content = append(content, []byte(strings.Join(line, ",")+"\n")...)

	return c.putFile(ctx, content, sha)
}

func (c *Client) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(c.APIBaseURL, "/"), c.Owner, c.Repo, url.PathEscape(c.Path))
}

func (c *Client) getFile(ctx context.Context) ([]byte, string, error) {
	u := c.contentsURL()
	if c.Branch != "" {
		u += "?ref=" + url.QueryEscape(c.Branch)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// First append creates the file.
		return nil, "", nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("github get failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		SHA      string `json:"sha"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", err
	}
	if raw.Encoding != "base64" {
		return nil, "", fmt.Errorf("unexpected github content encoding %q", raw.Encoding)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw.Content, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("undecodable github content: %w", err)
	}
	return decoded, raw.SHA, nil
}

func (c *Client) putFile(ctx context.Context, content []byte, sha string) error {
	payload := map[string]interface{}{
		"message": "chore: append order row",
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.Branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("github put failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
}

// csvEscape quotes a value when it contains a comma, quote or newline.
func csvEscape(val string) string {
	if !strings.ContainsAny(val, "\",\n") {
		return val
	}
	return `"` + strings.ReplaceAll(val, `"`, `""`) + `"`
}
