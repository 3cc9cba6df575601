package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// Release lookup defaults.
const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 10 * time.Second

	Owner = "mrz1836"
	Repo  = "vigil"

	maxErrorBodySize    = 1024
	maxResponseBodySize = 64 * 1024
)

// Release is the part of a GitHub release vigil reads.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// Check is the result of comparing the running version with the latest release.
type Check struct {
	Current string `json:"current"`
	Latest  string `json:"latest"`
	IsNewer bool   `json:"update_available"`
	URL     string `json:"url,omitempty"`
}

// Client fetches releases from the GitHub API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a release client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  fmt.Sprintf("vigil/%s (%s/%s)", NormalizeVersion(Version), runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease fetches the latest published release of vigil.
func (c *Client) LatestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, Owner, Repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, vigilerr.WithCause(vigilerr.ErrGeneral, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL is built from the fixed releases endpoint
	if err != nil {
		return nil, vigilerr.WithCause(vigilerr.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, vigilerr.WithDetails(vigilerr.ErrAPI, map[string]string{
			"endpoint": "github releases",
			"status":   strconv.Itoa(resp.StatusCode),
			"body":     strings.TrimSpace(string(body)),
		})
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&release); err != nil {
		return nil, vigilerr.WithCause(vigilerr.ErrAPI, err)
	}
	return &release, nil
}

// CheckLatest compares current against the latest release.
func (c *Client) CheckLatest(ctx context.Context, current string) (*Check, error) {
	release, err := c.LatestRelease(ctx)
	if err != nil {
		return nil, err
	}

	latest := NormalizeVersion(release.TagName)
	return &Check{
		Current: current,
		Latest:  latest,
		IsNewer: IsNewerVersion(current, latest),
		URL:     release.HTMLURL,
	}, nil
}
