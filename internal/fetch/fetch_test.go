// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

const articlePage = `<!DOCTYPE html>
<html>
<head>
  <title>Quantum Error Correction</title>
  <style>body { margin: 0; }</style>
  <script>trackPageView();</script>
</head>
<body>
  <nav><a href="/home">Home</a><a href="/about">About</a></nav>
  <header>Site banner</header>
  <article>
    <h1>Surface codes</h1>
    <p>Surface codes are the leading approach to quantum error correction.</p>
    <p>They require only <b>nearest-neighbour</b> interactions.</p>
  </article>
  <footer>Copyright footer text</footer>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func testFetcher(timeout time.Duration) *Fetcher {
	return New(types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: "deep-research-test/0.1",
		},
		MaxBodyBytes: 2 << 20,
		MaxTextRunes: 25000,
	})
}

func TestFetchExtractsArticleText(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	text, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, "deep-research-test/0.1", gotUA)
	assert.Contains(t, text, "Surface codes are the leading approach")
	assert.Contains(t, text, "nearest-neighbour interactions")

	// Chrome and non-content elements are pruned.
	assert.NotContains(t, text, "trackPageView")
	assert.NotContains(t, text, "margin: 0")
	assert.NotContains(t, text, "Home")
	assert.NotContains(t, text, "Site banner")
	assert.NotContains(t, text, "Copyright footer")
	assert.NotContains(t, text, "Enable JavaScript")

	// Block elements keep paragraph boundaries.
	lines := strings.Split(text, "\n")
	assert.GreaterOrEqual(t, len(lines), 3)
}

func TestFetchAcceptsPlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("  raw notes, not HTML  "))
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	text, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "raw notes, not HTML", text)
}

func TestFetchRejectsUnsupportedContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchRejectsEmptyPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><script>only();</script></body></html>"))
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no readable text")
}

func TestFetchCapsBodyBytes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	f.Cfg.MaxBodyBytes = 100
	text, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Len(t, text, 100)
}

func TestFetchCapsTextRunes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>" + strings.Repeat("long text ", 100) + "</p></body></html>"))
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	f.Cfg.MaxTextRunes = 50
	text, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Len(t, []rune(text), 50)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte("too late"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := testFetcher(5 * time.Second)
	_, err := f.Fetch(ctx, ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractTextNormalizesWhitespace(t *testing.T) {
	page := "<html><body><div>first block</div><div></div><div>second block</div></body></html>"
	text := fetchFromString(t, page)
	assert.Equal(t, "first block\nsecond block", text)
}

func TestTrimRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"under limit", "short", 10, "short"},
		{"at limit", "exact", 5, "exact"},
		{"over limit", "truncated", 4, "trun"},
		{"multibyte safe", "héllo wörld", 7, "héllo w"},
		{"zero means unlimited", "anything", 0, "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimRunes(tt.in, tt.max))
		})
	}
}

func fetchFromString(t *testing.T, page string) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer ts.Close()

	f := testFetcher(5 * time.Second)
	text, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	return text
}
