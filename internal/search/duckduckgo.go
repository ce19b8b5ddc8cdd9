// Package search implements the search-provider seat of the pipeline. The
// shipped adapter scrapes the DuckDuckGo HTML endpoint; tests and offline
// runs substitute canned providers.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/probelab/deepresearch/internal/research"
)

// DuckDuckGo queries the html.duckduckgo.com endpoint, which serves static
// markup and needs no API key.
type DuckDuckGo struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// NewDuckDuckGo builds the adapter. An empty endpoint falls back to the
// public HTML endpoint.
func NewDuckDuckGo(endpoint, userAgent string, timeout time.Duration) *DuckDuckGo {
	if endpoint == "" {
		endpoint = "https://html.duckduckgo.com/html/"
	}
	return &DuckDuckGo{
		client:    &http.Client{Timeout: timeout},
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

// Search returns up to limit hits ranked in the order the engine served
// them. Hits with URLs the normalizer rejects are dropped.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]research.SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	var hits []research.SearchHit
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if limit > 0 && len(hits) >= limit {
			return false
		}
		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		target, err := research.NormalizeURL(decodeRedirect(href))
		if err != nil {
			return true
		}
		hits = append(hits, research.SearchHit{
			URL:     target,
			Title:   strings.TrimSpace(anchor.Text()),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
			Rank:    len(hits) + 1,
		})
		return true
	})

	return hits, nil
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the real
// destination. Non-redirect hrefs pass through unchanged.
func decodeRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if !strings.HasSuffix(u.Hostname(), "duckduckgo.com") || !strings.HasPrefix(u.Path, "/l/") {
		return href
	}
	target := u.Query().Get("uddg")
	if target == "" {
		return href
	}
	return target
}
