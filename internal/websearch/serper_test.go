// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

func serperTestServer(t *testing.T, handler http.HandlerFunc) *SerperBackend {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := serperAPIBase
	serperAPIBase = ts.URL
	t.Cleanup(func() { serperAPIBase = old })

	return &SerperBackend{Client: ts.Client(), APIKey: "test-key", UserAgent: "deep-research/test"}
}

func TestSerperSearch(t *testing.T) {
	b := serperTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req serperRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fusion energy milestones", req.Q)
		assert.Equal(t, 3, req.Num)

		json.NewEncoder(w).Encode(serperResponse{Organic: []serperOrganic{
			{Title: "NIF ignition", Link: "https://one.example", Snippet: "Ignition achieved."},
			{Title: "No link entry", Link: ""},
			{Title: "Tokamak record", Link: "https://two.example", Snippet: "Q over 1."},
		}})
	})

	hits, err := b.Search(context.Background(), "fusion energy milestones", 3)
	require.NoError(t, err)

	require.Len(t, hits, 2, "entries without a link are dropped")
	assert.Equal(t, types.SearchHit{URL: "https://one.example", Title: "NIF ignition", Snippet: "Ignition achieved."}, hits[0])
	assert.Equal(t, "https://two.example", hits[1].URL)
}

func TestSerperSearchCapsRequestedNum(t *testing.T) {
	b := serperTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req serperRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, serperMaxNum, req.Num)
		json.NewEncoder(w).Encode(serperResponse{})
	})

	_, err := b.Search(context.Background(), "q", 500)
	require.NoError(t, err)
}

func TestSerperSearchHTTPError(t *testing.T) {
	b := serperTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := b.Search(context.Background(), "q", 5)
	assert.ErrorContains(t, err, "401")
}

func TestSerperSearchBadJSON(t *testing.T) {
	b := serperTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	})

	_, err := b.Search(context.Background(), "q", 5)
	assert.ErrorContains(t, err, "parsing Serper response")
}

func TestNewSelectsBackend(t *testing.T) {
	b, err := New(types.SearchConfig{Backend: types.BackendDuckDuckGo})
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", b.Name())

	b, err = New(types.SearchConfig{})
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", b.Name(), "duckduckgo is the default backend")

	_, err = New(types.SearchConfig{Backend: types.BackendSerper})
	assert.Error(t, err, "serper without an API key is a configuration error")

	b, err = New(types.SearchConfig{Backend: types.BackendSerper, SerperAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "serper", b.Name())

	_, err = New(types.SearchConfig{Backend: "bing"})
	assert.Error(t, err)
}
