// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gather executes one query end to end: search, fetch each result,
// and condense the fetched content into learnings and follow-up questions.
//
// Failures below the query level are soft: a page that cannot be fetched or
// content that cannot be summarized is dropped and counted, never escalated.
// A query whose results all fail simply contributes nothing, which the epoch
// evaluator later reads as stagnation. Only context cancellation propagates
// as an error.
package gather

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/governor"
	"github.com/pdiddy/deep-research/pkg/types"
)

// SearchProvider issues one web search.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error)
}

// ContentFetcher retrieves readable text for one URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Summarizer condenses fetched page texts into learnings and follow-up
// questions, guided by the query and its rationale.
type Summarizer interface {
	Summarize(ctx context.Context, contents []string, query, rationale string, maxLearnings, maxFollowUps int) (learnings, followUps []string, err error)
}

// Result is one query's contribution.
type Result struct {
	Learnings []types.Learning
	Sources   []types.SourceRecord
	FollowUps []string

	// Fetched and Dropped count result pages, for progress reporting.
	Fetched int
	Dropped int
}

// Unit runs the search-fetch-summarize pipeline for single queries. All
// external calls go through the shared Governor; a ticket is held for the
// duration of one call, never across calls, so nested fan-outs cannot
// deadlock the pool.
type Unit struct {
	Provider   SearchProvider
	Fetcher    ContentFetcher
	Summarizer Summarizer
	Gov        *governor.Governor
	Log        *zap.Logger

	// MaxResults bounds the search; FetchTimeout bounds each page fetch.
	MaxResults   int
	FetchTimeout time.Duration

	// MaxLearnings and MaxFollowUps bound the summarizer's output.
	MaxLearnings int
	MaxFollowUps int
}

// Execute runs one query. depth is recorded on produced learnings. The only
// returned errors are context cancellations; every other failure is absorbed
// into a smaller Result.
func (u *Unit) Execute(ctx context.Context, query types.ResearchQuery, depth int) (Result, error) {
	log := u.logger().With(zap.String("query", query.Text))

	hits, err := u.search(ctx, query.Text)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Warn("search failed, branch contributes nothing", zap.Error(err))
		return Result{}, nil
	}
	if len(hits) == 0 {
		log.Info("search returned no results")
		return Result{}, nil
	}

	contents, sources, dropped, err := u.fetchAll(ctx, hits)
	if err != nil {
		return Result{}, err
	}

	res := Result{Sources: sources, Fetched: len(contents), Dropped: dropped}
	if len(contents) == 0 {
		log.Info("all result pages failed to fetch", zap.Int("dropped", dropped))
		return res, nil
	}

	learnings, followUps, err := u.summarize(ctx, contents, query)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Warn("summarization failed, dropping query output", zap.Error(err))
		return Result{Sources: sources, Fetched: len(contents), Dropped: dropped + len(contents)}, nil
	}

	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	now := time.Now().UTC()
	for _, text := range learnings {
		if text == "" {
			continue
		}
		res.Learnings = append(res.Learnings, types.Learning{
			Text:         text,
			SourceURLs:   urls,
			Depth:        depth,
			DiscoveredAt: now,
		})
	}
	res.FollowUps = followUps

	log.Info("query gathered",
		zap.Int("learnings", len(res.Learnings)),
		zap.Int("sources", len(res.Sources)),
		zap.Int("follow_ups", len(res.FollowUps)),
		zap.Int("dropped", res.Dropped))
	return res, nil
}

func (u *Unit) search(ctx context.Context, query string) ([]types.SearchHit, error) {
	if err := u.Gov.Acquire(ctx); err != nil {
		return nil, err
	}
	defer u.Gov.Release()
	return u.Provider.Search(ctx, query, u.MaxResults)
}

// fetchAll retrieves every hit concurrently, each under its own ticket and
// per-fetch timeout. Failed pages are dropped; the returned error is non-nil
// only when the run context is cancelled.
func (u *Unit) fetchAll(ctx context.Context, hits []types.SearchHit) ([]string, []types.SourceRecord, int, error) {
	var (
		mu       sync.Mutex
		contents []string
		sources  []types.SourceRecord
		dropped  int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, hit := range hits {
		g.Go(func() error {
			if err := u.Gov.Acquire(gctx); err != nil {
				return err
			}
			defer u.Gov.Release()

			fctx := gctx
			if u.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(gctx, u.FetchTimeout)
				defer cancel()
			}

			text, err := u.Fetcher.Fetch(fctx, hit.URL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				dropped++
				u.logger().Debug("page fetch dropped",
					zap.String("url", hit.URL), zap.Error(err))
				return nil
			}
			contents = append(contents, text)
			sources = append(sources, types.SourceRecord{
				URL:         hit.URL,
				Title:       hit.Title,
				RetrievedAt: time.Now().UTC(),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}
	return contents, sources, dropped, nil
}

func (u *Unit) summarize(ctx context.Context, contents []string, query types.ResearchQuery) ([]string, []string, error) {
	if err := u.Gov.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	defer u.Gov.Release()
	return u.Summarizer.Summarize(ctx, contents, query.Text, query.Rationale, u.MaxLearnings, u.MaxFollowUps)
}

func (u *Unit) logger() *zap.Logger {
	if u.Log == nil {
		return zap.NewNop()
	}
	return u.Log
}
