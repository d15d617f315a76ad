// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves page content and extracts readable text from HTML.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// skipElements are pruned entirely during text extraction.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"svg": true, "nav": true, "footer": true, "header": true, "form": true,
}

// blockElements get a newline boundary so extracted text keeps paragraph
// structure.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true,
	"br": true, "tr": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "blockquote": true, "pre": true,
}

// Fetcher retrieves one page per call. Per-fetch timeouts are applied by
// the caller through ctx; a timeout or failure on one page is a soft
// failure at the gather level, never run-fatal.
type Fetcher struct {
	Client *http.Client
	Cfg    types.FetchConfig
}

// New creates a Fetcher. The HTTP client carries the configured transport
// timeout as a backstop; callers still bound each Fetch with a context.
func New(cfg types.FetchConfig) *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: cfg.Timeout},
		Cfg:    cfg,
	}
}

// Fetch downloads url and returns readable text. Non-HTML and non-text
// content types are rejected; the body read is capped at MaxBodyBytes and
// the extracted text at MaxTextRunes.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.Cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 0)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, pageURL)
	}

	ctype := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(ctype, "text/html") || strings.Contains(ctype, "application/xhtml")
	isText := strings.Contains(ctype, "text/plain")
	if ctype != "" && !isHTML && !isText {
		return "", fmt.Errorf("unsupported content type %q from %s", ctype, pageURL)
	}

	body := io.LimitReader(resp.Body, f.Cfg.MaxBodyBytes)

	var text string
	if isText {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", pageURL, err)
		}
		text = string(data)
	} else {
		doc, err := html.Parse(body)
		if err != nil {
			return "", fmt.Errorf("parsing %s: %w", pageURL, err)
		}
		text = ExtractText(doc)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", pageURL)
	}
	return trimRunes(text, f.Cfg.MaxTextRunes), nil
}

// ExtractText walks an HTML document and returns its readable text: script,
// style, and navigation chrome pruned, block elements newline-separated.
func ExtractText(doc *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				b.WriteString("\n")
			}
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// Collapse runs of blank lines left by nested block elements.
	lines := strings.Split(b.String(), "\n")
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// trimRunes truncates s to at most max runes.
func trimRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
