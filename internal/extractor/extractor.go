// Package extractor turns fetched HTML into pages: document title, visible
// text with boilerplate stripped, and resolved outlinks.
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/probelab/deepresearch/internal/research"
)

// DefaultMaxTextLength bounds extracted text when no limit is configured.
const DefaultMaxTextLength = 1_000_000

// Extractor parses fetched bodies with goquery's permissive HTML parser.
type Extractor struct {
	maxTextLen int
	logger     *zap.Logger
}

// New builds an Extractor. maxTextLen bounds Page.Text in characters.
func New(maxTextLen int, logger *zap.Logger) *Extractor {
	if maxTextLen <= 0 {
		maxTextLen = DefaultMaxTextLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{maxTextLen: maxTextLen, logger: logger}
}

// Extract produces a Page from a successful fetch. An empty body or markup
// the parser cannot handle returns an error; the caller records it as an
// extract failure and the run continues.
func (e *Extractor) Extract(task research.CrawlTask, out research.FetchOutcome) (research.Page, error) {
	if len(bytes.TrimSpace(out.Body)) == 0 {
		return research.Page{}, fmt.Errorf("empty body for %s", task.URL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out.Body))
	if err != nil {
		return research.Page{}, fmt.Errorf("parse html: %w", err)
	}

	title := collapseWhitespace(doc.Find("title").First().Text())

	// Outlinks come out before script/style/noscript/template removal, so
	// anchors inside those elements still count; selection preference
	// happens later in the planner.
	outlinks := e.collectOutlinks(task.URL, doc)

	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}
	text = collapseWhitespace(text)
	if len(text) > e.maxTextLen {
		if runes := []rune(text); len(runes) > e.maxTextLen {
			text = string(runes[:e.maxTextLen])
		}
	}

	return research.Page{
		URL:          task.URL,
		Level:        task.Level,
		ParentURL:    task.ParentURL,
		Rank:         task.Rank,
		Snippet:      task.OriginSnippet,
		Title:        title,
		Text:         text,
		Outlinks:     outlinks,
		FetchElapsed: out.Elapsed,
	}, nil
}

func (e *Extractor) collectOutlinks(baseURL string, doc *goquery.Document) []research.Outlink {
	var links []research.Outlink
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, err := research.ResolveLink(baseURL, href)
		if err != nil {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, research.Outlink{
			URL:    resolved,
			Anchor: collapseWhitespace(sel.Text()),
		})
	})
	return links
}

// collapseWhitespace trims and folds runs of whitespace (including newlines)
// into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
