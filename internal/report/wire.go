// Package report renders a research result for downstream consumers: the
// JSON wire shape that the PDF renderer ingests, and a human-readable
// Markdown report.
package report

import (
	"time"

	"github.com/probelab/deepresearch/internal/research"
	"github.com/probelab/deepresearch/internal/scorer"
)

// excerptLength bounds the text excerpt carried per page in the wire shape.
const excerptLength = 500

// Document is the serialized form of a research result.
type Document struct {
	Query                string               `json:"query"`
	RunID                string               `json:"run_id,omitempty"`
	StartedAt            string               `json:"started_at"`
	FinishedAt           string               `json:"finished_at"`
	ElapsedSeconds       float64              `json:"elapsed_seconds"`
	InitialHits          []research.SearchHit `json:"initial_hits"`
	Level1Pages          []Level1Page         `json:"level1_pages"`
	Level2Pages          []Level2Page         `json:"level2_pages"`
	Summary              string               `json:"summary"`
	KeyFindings          []string             `json:"key_findings"`
	TotalPagesCrawled    int                  `json:"total_pages_crawled"`
	TotalLinksDiscovered int                  `json:"total_links_discovered"`
	Failures             []research.Failure   `json:"failures"`
}

// Level1Page is the wire form of a direct search-hit page.
type Level1Page struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	TextExcerpt   string  `json:"text_excerpt"`
	OutlinksCount int     `json:"outlinks_count"`
	Relevance     float64 `json:"relevance"`
	FetchElapsed  int64   `json:"fetch_elapsed_ms"`
}

// Level2Page is the wire form of a page discovered via a Level-1 outlink.
type Level2Page struct {
	URL          string  `json:"url"`
	ParentURL    string  `json:"parent_url"`
	Title        string  `json:"title"`
	TextExcerpt  string  `json:"text_excerpt"`
	Relevance    float64 `json:"relevance"`
	FetchElapsed int64   `json:"fetch_elapsed_ms"`
}

// BuildDocument converts a result into its wire shape. Page lists keep the
// canonical scorer ordering; nil slices become empty so consumers always see
// arrays.
func BuildDocument(result research.ResearchResult) Document {
	doc := Document{
		Query:                result.Query.Raw,
		RunID:                result.RunID,
		StartedAt:            result.StartedAt.Format(time.RFC3339),
		FinishedAt:           result.FinishedAt.Format(time.RFC3339),
		ElapsedSeconds:       result.Elapsed().Seconds(),
		InitialHits:          result.InitialHits,
		Level1Pages:          make([]Level1Page, 0, len(result.Level1)),
		Level2Pages:          make([]Level2Page, 0, len(result.Level2)),
		Summary:              result.Summary,
		KeyFindings:          result.KeyFindings,
		TotalPagesCrawled:    result.TotalPagesCrawled,
		TotalLinksDiscovered: result.TotalLinksDiscovered,
		Failures:             result.Failures,
	}
	if doc.InitialHits == nil {
		doc.InitialHits = []research.SearchHit{}
	}
	if doc.KeyFindings == nil {
		doc.KeyFindings = []string{}
	}
	if doc.Failures == nil {
		doc.Failures = []research.Failure{}
	}

	for _, p := range result.Level1 {
		doc.Level1Pages = append(doc.Level1Pages, Level1Page{
			URL:           p.URL,
			Title:         p.Title,
			TextExcerpt:   excerpt(p.Text),
			OutlinksCount: len(p.Outlinks),
			Relevance:     p.Relevance,
			FetchElapsed:  p.FetchElapsed.Milliseconds(),
		})
	}
	for _, p := range result.Level2 {
		doc.Level2Pages = append(doc.Level2Pages, Level2Page{
			URL:          p.URL,
			ParentURL:    p.ParentURL,
			Title:        p.Title,
			TextExcerpt:  excerpt(p.Text),
			Relevance:    p.Relevance,
			FetchElapsed: p.FetchElapsed.Milliseconds(),
		})
	}
	return doc
}

// topSources returns up to n pages across both levels in canonical order,
// for the report's detailed-sources section.
func topSources(result research.ResearchResult, n int) []research.ScoredPage {
	pages := result.Pages()
	scorer.Order(pages)
	if len(pages) > n {
		pages = pages[:n]
	}
	return pages
}

func excerpt(text string) string {
	if len(text) <= excerptLength {
		return text
	}
	return text[:excerptLength]
}
