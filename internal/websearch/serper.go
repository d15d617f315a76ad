// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// serperAPIBase is the Serper search endpoint. Declared as a var so tests
// can substitute an httptest server.
var serperAPIBase = "https://google.serper.dev/search"

// serperMaxNum is the largest result count the Serper API accepts.
const serperMaxNum = 100

// SerperBackend queries the Serper.dev Google search API.
type SerperBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// Name returns the backend identifier.
func (b *SerperBackend) Name() string { return "serper" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []serperOrganic `json:"organic"`
}

type serperOrganic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search posts the query to the Serper API and returns organic results.
func (b *SerperBackend) Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	num := maxResults
	if num > serperMaxNum {
		num = serperMaxNum
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: num})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperAPIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", b.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", b.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Serper API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Serper API returned HTTP %d", resp.StatusCode)
	}

	var sr serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Serper response: %w", err)
	}

	var hits []types.SearchHit
	for _, o := range sr.Organic {
		if o.Link == "" {
			continue
		}
		hits = append(hits, types.SearchHit{URL: o.Link, Title: o.Title, Snippet: o.Snippet})
		if len(hits) >= maxResults {
			break
		}
	}
	return hits, nil
}
