package augment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Hit is one raw web search result.
type Hit struct {
	Title   string
	Snippet string
	Link    string
	Host    string
}

// Google queries the Custom Search JSON API.
type Google struct {
	client   *Client
	apiKey   string
	engineID string
	endpoint string
}

func NewGoogle(client *Client, apiKey, engineID string) *Google {
	return &Google{client: client, apiKey: apiKey, engineID: engineID, endpoint: googleEndpoint}
}

// Configured reports whether both credentials are present.
func (g *Google) Configured() bool {
	return g.apiKey != "" && g.engineID != ""
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

// Query searches, restricted to sites when any are given.
func (g *Google) Query(ctx context.Context, query string, sites []string) ([]Hit, error) {
	if !g.Configured() {
		return nil, fmt.Errorf("google search: missing api key or engine id")
	}
	q := query
	if len(sites) > 0 {
		q = "site:(" + strings.Join(sites, " OR ") + ") " + query
	}
	params := url.Values{"key": {g.apiKey}, "cx": {g.engineID}, "q": {q}}

	var out googleResponse
	err := g.client.Do(ctx, "google", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(out.Items))
	for _, it := range out.Items {
		h := Hit{Title: it.Title, Snippet: it.Snippet, Link: it.Link}
		if u, err := url.Parse(it.Link); err == nil {
			h.Host = u.Hostname()
		}
		hits = append(hits, h)
	}
	return hits, nil
}
