// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// duckBase is the DuckDuckGo HTML search endpoint. Declared as a var so
// tests can substitute an httptest server.
var duckBase = "https://html.duckduckgo.com/html/"

// DuckDuckGoBackend scrapes the DuckDuckGo HTML interface. No API key
// required.
type DuckDuckGoBackend struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the backend identifier.
func (b *DuckDuckGoBackend) Name() string { return "duckduckgo" }

// Search fetches and parses one DuckDuckGo HTML results page.
func (b *DuckDuckGoBackend) Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	reqURL := duckBase + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("DuckDuckGo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DuckDuckGo returned HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing DuckDuckGo response: %w", err)
	}

	hits := parseDuckResults(doc, maxResults)
	return hits, nil
}

// parseDuckResults walks the document collecting result anchors. Result rows
// carry class "result__a" on the title link and "result__snippet" on the
// snippet.
func parseDuckResults(doc *html.Node, maxResults int) []types.SearchHit {
	var hits []types.SearchHit
	var current *types.SearchHit

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				if current != nil && current.URL != "" {
					hits = append(hits, *current)
				}
				current = &types.SearchHit{
					URL:   cleanDuckURL(attr(n, "href")),
					Title: textContent(n),
				}
			case strings.Contains(class, "result__snippet"):
				if current != nil {
					current.Snippet = textContent(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if current != nil && current.URL != "" && len(hits) < maxResults {
		hits = append(hits, *current)
	}
	return hits
}

// cleanDuckURL unwraps DuckDuckGo redirect links of the form
// //duckduckgo.com/l/?uddg=<escaped target>&rut=...
func cleanDuckURL(raw string) string {
	const marker = "duckduckgo.com/l/?"
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return raw
	}
	q, err := url.ParseQuery(raw[idx+len(marker):])
	if err != nil {
		return raw
	}
	if target := q.Get("uddg"); target != "" {
		return target
	}
	return raw
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
