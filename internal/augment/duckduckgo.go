package augment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"coolcar/internal/domain"
	"coolcar/internal/text"
)

const duckDuckGoEndpoint = "https://api.duckduckgo.com/"

// DuckDuckGo is the keyless Searcher backed by the Instant Answer API.
type DuckDuckGo struct {
	client       *Client
	endpoint     string
	minRelevance float64
	maxResults   int
}

func NewDuckDuckGo(client *Client, minRelevance float64, maxResults int) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &DuckDuckGo{client: client, endpoint: duckDuckGoEndpoint, minRelevance: minRelevance, maxResults: maxResults}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

type ddgResponse struct {
	Abstract       string     `json:"Abstract"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	Answer         string     `json:"Answer"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	params := url.Values{"q": {query}, "format": {"json"}, "no_html": {"1"}, "skip_disambig": {"1"}}

	var ddg ddgResponse
	err := d.client.Do(ctx, "duckduckgo", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	}, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&ddg)
	})
	if err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	add := func(content, source string) {
		if content == "" {
			return
		}
		if rel := text.Relevance(content, query); rel > d.minRelevance {
			results = append(results, domain.SearchResult{Content: content, Source: source, Relevance: rel})
		}
	}
	add(ddg.Answer, "duckduckgo.com")
	add(ddg.Abstract, hostOf(ddg.AbstractURL, ddg.AbstractSource))
	for _, t := range ddg.RelatedTopics {
		add(t.Text, hostOf(t.FirstURL, "duckduckgo.com"))
	}
	return rank(results, d.maxResults), nil
}

func hostOf(raw, fallback string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return fallback
}
