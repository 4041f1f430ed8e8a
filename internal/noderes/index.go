// SPDX-License-Identifier: MPL-2.0

package noderes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// defaultDistBaseURL is the official Node.js distribution server.
	defaultDistBaseURL = "https://nodejs.org/dist"

	// indexCacheTTL is how long a cached release index is trusted before it
	// is fetched again. New Node releases appear at most a few times a week.
	indexCacheTTL = 24 * time.Hour

	// indexCacheName is the cached index file under the client's cache dir.
	indexCacheName = "index.json"

	// maxIndexResponseBytes bounds the release index response size (32 MB).
	// The real index is around 2 MB; the cap only guards against a
	// misconfigured mirror.
	maxIndexResponseBytes = 32 << 20
)

// ErrVersionNotFound is returned when no published release satisfies a spec.
var ErrVersionNotFound = errors.New("no matching node version")

type (
	// indexEntry is the JSON wire format of one release in the dist index.
	indexEntry struct {
		Version string `json:"version"`
	}

	// Client queries a Node.js distribution server for release information
	// and runtime archives.
	Client struct {
		httpClient *http.Client
		baseURL    string // dist server base URL, overridable for mirrors and tests
		cacheDir   string // directory for the cached release index; empty disables caching
		userAgent  string
		ttl        time.Duration
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the distribution server, for mirrors and test servers.
func WithBaseURL(base string) ClientOption {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(base, "/")
	}
}

// WithCacheDir enables on-disk caching of the release index in dir.
func WithCacheDir(dir string) ClientOption {
	return func(cl *Client) {
		cl.cacheDir = dir
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithIndexTTL overrides how long the cached release index stays fresh.
func WithIndexTTL(ttl time.Duration) ClientOption {
	return func(cl *Client) {
		cl.ttl = ttl
	}
}

// NewClient creates a Client with sensible defaults: the official
// nodejs.org dist server, http.DefaultClient and a 24h index TTL.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    defaultDistBaseURL,
		userAgent:  "banderole/dev",
		ttl:        indexCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListVersions returns all published versions, newest first, without the
// "v" prefix. A fresh on-disk index is used without touching the network.
func (c *Client) ListVersions(ctx context.Context) ([]string, error) {
	if data, ok := c.readCachedIndex(); ok {
		if versions, err := parseIndex(data); err == nil {
			return versions, nil
		}
		// A corrupt cache file falls through to a refetch.
	}

	data, err := c.fetch(ctx, c.baseURL+"/index.json", maxIndexResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("fetching release index: %w", err)
	}

	versions, err := parseIndex(data)
	if err != nil {
		return nil, fmt.Errorf("parsing release index: %w", err)
	}

	c.writeCachedIndex(data)
	return versions, nil
}

// Resolve returns the newest published version matching spec. Full X.Y.Z
// specs short-circuit without consulting the index at all.
func (c *Client) Resolve(ctx context.Context, spec string) (string, error) {
	if IsExact(spec) {
		return spec, nil
	}

	versions, err := c.ListVersions(ctx)
	if err != nil {
		return "", err
	}

	best := ""
	for _, v := range versions {
		if !Matches(spec, v) {
			continue
		}
		if best == "" || Compare(v, best) > 0 {
			best = v
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: spec %q", ErrVersionNotFound, spec)
	}
	return best, nil
}

func (c *Client) readCachedIndex() ([]byte, bool) {
	if c.cacheDir == "" {
		return nil, false
	}
	path := filepath.Join(c.cacheDir, indexCacheName)
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// writeCachedIndex stores the index best-effort; a read-only cache dir only
// costs a refetch next time.
func (c *Client) writeCachedIndex(data []byte) {
	if c.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(c.cacheDir, indexCacheName), data, 0o644)
}

// fetch performs one GET and returns the size-limited body.
func (c *Client) fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

func parseIndex(data []byte) ([]string, error) {
	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		v := strings.TrimPrefix(e.Version, "v")
		if v != "" {
			versions = append(versions, v)
		}
	}
	// The official index is newest first already; enforce it for mirrors.
	slices.SortStableFunc(versions, func(a, b string) int {
		return Compare(b, a)
	})
	return versions, nil
}
