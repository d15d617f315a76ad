// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gather

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/internal/governor"
	"github.com/pdiddy/deep-research/pkg/types"
)

type fakeProvider struct {
	hits []types.SearchHit
	err  error
}

func (f *fakeProvider) Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error) {
	return f.hits, f.err
}

// fakeFetcher fails URLs containing "bad".
type fakeFetcher struct {
	calls int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if strings.Contains(url, "bad") {
		return "", fmt.Errorf("fetch %s: boom", url)
	}
	return "content of " + url, nil
}

type fakeSummarizer struct {
	learnings []string
	followUps []string
	err       error
	contents  []string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, contents []string, query, rationale string, maxLearnings, maxFollowUps int) ([]string, []string, error) {
	f.contents = contents
	return f.learnings, f.followUps, f.err
}

func hits(urls ...string) []types.SearchHit {
	out := make([]types.SearchHit, len(urls))
	for i, u := range urls {
		out[i] = types.SearchHit{URL: u, Title: "page " + u}
	}
	return out
}

func newUnit(t *testing.T, p SearchProvider, f ContentFetcher, s Summarizer) *Unit {
	t.Helper()
	gov, err := governor.New(2)
	require.NoError(t, err)
	return &Unit{
		Provider:     p,
		Fetcher:      f,
		Summarizer:   s,
		Gov:          gov,
		MaxResults:   5,
		MaxLearnings: 5,
		MaxFollowUps: 2,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	summ := &fakeSummarizer{
		learnings: []string{"finding one", "finding two"},
		followUps: []string{"what about x?"},
	}
	u := newUnit(t,
		&fakeProvider{hits: hits("https://a.example", "https://b.example")},
		&fakeFetcher{}, summ)

	res, err := u.Execute(context.Background(), types.ResearchQuery{Text: "q"}, 2)
	require.NoError(t, err)

	assert.Len(t, res.Sources, 2)
	assert.Len(t, summ.contents, 2, "all fetched pages go to one summarize call")
	require.Len(t, res.Learnings, 2)
	assert.Equal(t, 2, res.Learnings[0].Depth)
	assert.Len(t, res.Learnings[0].SourceURLs, 2, "learnings carry every fetched URL")
	assert.Equal(t, []string{"what about x?"}, res.FollowUps)
	assert.Equal(t, 0, res.Dropped)
}

func TestExecuteSearchFailureIsSoft(t *testing.T) {
	u := newUnit(t, &fakeProvider{err: fmt.Errorf("engine down")}, &fakeFetcher{}, &fakeSummarizer{})

	res, err := u.Execute(context.Background(), types.ResearchQuery{Text: "q"}, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Learnings)
	assert.Empty(t, res.Sources)
	assert.Empty(t, res.FollowUps)
}

func TestExecutePartialFetchFailures(t *testing.T) {
	summ := &fakeSummarizer{learnings: []string{"survived"}}
	u := newUnit(t,
		&fakeProvider{hits: hits("https://good.example", "https://bad.example", "https://also-bad.example")},
		&fakeFetcher{}, summ)

	res, err := u.Execute(context.Background(), types.ResearchQuery{Text: "q"}, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "https://good.example", res.Sources[0].URL)
	require.Len(t, res.Learnings, 1)
	assert.Equal(t, []string{"https://good.example"}, res.Learnings[0].SourceURLs)
}

func TestExecuteAllFetchesFail(t *testing.T) {
	summ := &fakeSummarizer{learnings: []string{"never produced"}}
	u := newUnit(t,
		&fakeProvider{hits: hits("https://bad.one", "https://bad.two")},
		&fakeFetcher{}, summ)

	res, err := u.Execute(context.Background(), types.ResearchQuery{Text: "q"}, 1)
	require.NoError(t, err)

	// No content reached the summarizer, so the branch contributes nothing.
	assert.Nil(t, summ.contents)
	assert.Empty(t, res.Learnings)
	assert.Empty(t, res.FollowUps)
	assert.Equal(t, 2, res.Dropped)
}

func TestExecuteSummarizeFailureKeepsSources(t *testing.T) {
	summ := &fakeSummarizer{err: fmt.Errorf("invalid json twice")}
	u := newUnit(t,
		&fakeProvider{hits: hits("https://a.example")},
		&fakeFetcher{}, summ)

	res, err := u.Execute(context.Background(), types.ResearchQuery{Text: "q"}, 1)
	require.NoError(t, err)

	assert.Empty(t, res.Learnings)
	assert.Len(t, res.Sources, 1, "fetched sources survive a failed summarization")
}

func TestExecuteGovernorBoundsFetches(t *testing.T) {
	fetcher := &fakeFetcher{}
	u := newUnit(t,
		&fakeProvider{hits: hits("https://1.example", "https://2.example", "https://3.example", "https://4.example", "https://5.example")},
		fetcher, &fakeSummarizer{learnings: []string{"x"}})

	_, err := u.Execute(context.Background(), types.ResearchQuery{Text: "q"}, 1)
	require.NoError(t, err)

	assert.Equal(t, int32(5), atomic.LoadInt32(&fetcher.calls))
	assert.LessOrEqual(t, u.Gov.Peak(), u.Gov.Limit())
}

func TestExecuteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := newUnit(t, &fakeProvider{hits: hits("https://a.example")}, &fakeFetcher{}, &fakeSummarizer{})
	_, err := u.Execute(ctx, types.ResearchQuery{Text: "q"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
