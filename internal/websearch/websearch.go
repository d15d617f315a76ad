// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch queries general web search backends and returns
// normalized result rows. Backends implement a shared interface per the
// Strategy pattern; selection is configuration-driven.
package websearch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Backend searches a single provider.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error)
}

// New returns the backend selected by cfg.
func New(cfg types.SearchConfig) (Backend, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Backend {
	case types.BackendDuckDuckGo, "":
		return &DuckDuckGoBackend{Client: client, UserAgent: cfg.UserAgent}, nil
	case types.BackendSerper:
		if cfg.SerperAPIKey == "" {
			return nil, fmt.Errorf("serper backend requires an API key")
		}
		return &SerperBackend{Client: client, APIKey: cfg.SerperAPIKey, UserAgent: cfg.UserAgent}, nil
	default:
		return nil, fmt.Errorf("unknown search backend %q: use duckduckgo or serper", cfg.Backend)
	}
}
