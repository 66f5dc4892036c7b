package augment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"coolcar/internal/text"
)

const fetchMaxBytes = 256 * 1024

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// PageRenderer returns the HTML of a page after its scripts have run.
type PageRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Fetcher downloads forum pages and keeps their automotive sentences.
type Fetcher struct {
	client   *Client
	renderer PageRenderer
}

func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// WithRenderer makes Fetch try r first and fall back to a plain GET when
// rendering fails.
func (f *Fetcher) WithRenderer(r PageRenderer) *Fetcher {
	f.renderer = r
	return f
}

// Fetch returns the automotive text of the page at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	if f.renderer != nil {
		page, err := f.renderer.Render(ctx, rawURL)
		if err == nil {
			return text.ExtractAutomotive(StripHTML(page)), nil
		}
		f.client.logger.Debug("render failed, fetching plain page", "url", rawURL, "err", err)
	}

	var page string
	err = f.client.Do(ctx, "fetch", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, func(resp *http.Response) error {
		body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes))
		if err != nil {
			return err
		}
		page = string(body)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text.ExtractAutomotive(StripHTML(page)), nil
}

// StripHTML drops scripts, styles and tags and collapses whitespace.
func StripHTML(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
