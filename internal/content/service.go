// Package content talks to the remote content service that serves manifests
// and posts. Read progress never depends on it beyond the response shapes.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Service is the read-only content API.
type Service interface {
	RootManifest(ctx context.Context) (*RootManifest, error)
	DomainManifest(ctx context.Context, domain string) (*DomainManifest, error)
	Post(ctx context.Context, domain, slug string) (*Post, error)
	Search(ctx context.Context, p SearchParams) (*SearchResult, error)
	Domains(ctx context.Context) (*DomainList, error)
}

var (
	_ Service = (*HTTPClient)(nil)
	_ Service = (*StubService)(nil)
	_ Service = (*CachedService)(nil)
)

// maxResponseSize caps content responses (posts are markdown, manifests JSON).
const maxResponseSize = 10 * 1024 * 1024

// HTTPError is a non-2xx reply from the content service.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("content service: HTTP %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("content service: HTTP %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// HTTPClient calls the content service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for baseURL with the given request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// RootManifest fetches the manifest of every document.
func (c *HTTPClient) RootManifest(ctx context.Context) (*RootManifest, error) {
	var m RootManifest
	if err := c.get(ctx, "/api/service/content/manifest", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DomainManifest fetches the manifest of one domain.
func (c *HTTPClient) DomainManifest(ctx context.Context, domain string) (*DomainManifest, error) {
	var m DomainManifest
	path := "/api/service/content/domains/" + url.PathEscape(domain) + "/manifest"
	if err := c.get(ctx, path, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Post fetches one post with its markdown body.
func (c *HTTPClient) Post(ctx context.Context, domain, slug string) (*Post, error) {
	var p Post
	path := "/api/service/content/posts/" + url.PathEscape(domain) + "/" + url.PathEscape(slug)
	if err := c.get(ctx, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Search queries posts. Unset sort and paging use the service defaults.
func (c *HTTPClient) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	p = p.withDefaults()
	q := url.Values{}
	q.Set("domain", p.Domain)
	q.Set("q", p.Query)
	for _, t := range p.Tags {
		q.Add("tags[]", t)
	}
	q.Set("sort", p.Sort)
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("pageSize", strconv.Itoa(p.PageSize))

	var res SearchResult
	if err := c.get(ctx, "/content/posts", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Domains fetches the domain list.
func (c *HTTPClient) Domains(ctx context.Context) (*DomainList, error) {
	var d DomainList
	if err := c.get(ctx, "/api/service/content/domains", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &HTTPError{StatusCode: resp.StatusCode, URL: u, Body: snippet}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
