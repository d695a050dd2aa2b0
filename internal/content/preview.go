package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/yangwenmai/readtrack/internal/model"
)

const (
	// maxExcerptLength caps the excerpt in runes.
	maxExcerptLength = 280
	// maxPreviewRetries is the number of fetch attempts before giving up.
	maxPreviewRetries = 3
	// maxPageSize is the maximum page body size (5MB).
	maxPageSize = 5 * 1024 * 1024
)

// ReferencePreview summarises the page behind a post reference link.
type ReferencePreview struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Byline        string `json:"byline,omitempty"`
	SiteName      string `json:"site_name,omitempty"`
	Excerpt       string `json:"excerpt"`
	PublishedTime string `json:"published_time,omitempty"`
	WordCount     int    `json:"word_count"`
}

// ReferencePreviewer fetches reference pages and extracts a preview using go-readability.
type ReferencePreviewer struct {
	client  *http.Client
	backoff time.Duration
}

// NewReferencePreviewer creates a previewer whose requests time out after timeout.
func NewReferencePreviewer(timeout time.Duration) *ReferencePreviewer {
	return &ReferencePreviewer{
		client:  &http.Client{Timeout: timeout},
		backoff: 2 * time.Second,
	}
}

// Preview fetches rawURL and extracts its title and excerpt, retrying
// transient failures. Only http and https URLs are accepted.
func (p *ReferencePreviewer) Preview(ctx context.Context, rawURL string) (*ReferencePreview, error) {
	u, err := nurl.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url must be an absolute http(s) URL", model.ErrValidation)
	}

	var lastErr error
	for attempt := 0; attempt < maxPreviewRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * p.backoff):
			}
		}

		preview, err := p.fetch(ctx, u)
		if err == nil {
			return preview, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A 4xx will not change on retry.
		var he *HTTPError
		if errors.As(err, &he) && he.StatusCode >= 400 && he.StatusCode < 500 {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxPreviewRetries, lastErr)
}

func (p *ReferencePreviewer) fetch(ctx context.Context, u *nurl.URL) (*ReferencePreview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: u.String()}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	text := normalizeText(article.TextContent)
	excerpt := normalizeText(article.Excerpt)
	if excerpt == "" {
		excerpt = text
	}
	if utf8.RuneCountInString(excerpt) > maxExcerptLength {
		runes := []rune(excerpt)
		excerpt = strings.TrimSpace(string(runes[:maxExcerptLength])) + "…"
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = u.Host
	}

	var published string
	if article.PublishedTime != nil && !article.PublishedTime.IsZero() {
		published = article.PublishedTime.Format(time.RFC3339)
	}

	return &ReferencePreview{
		URL:           u.String(),
		Title:         title,
		Byline:        strings.TrimSpace(article.Byline),
		SiteName:      strings.TrimSpace(article.SiteName),
		Excerpt:       excerpt,
		PublishedTime: published,
		WordCount:     len(strings.Fields(text)),
	}, nil
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
