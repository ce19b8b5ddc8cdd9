package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/probelab/deepresearch/internal/research"
)

// maxDetailedSources bounds the per-source section of the Markdown report.
const maxDetailedSources = 20

// MarkdownWriter renders the report sections the original PDF layout used:
// header, executive summary, statistics, key findings, and detailed sources.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders the full report.
func (w *MarkdownWriter) Write(result research.ResearchResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Deep Research Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Query", result.Query.Raw},
			{"Run ID", result.RunID},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", fmt.Sprintf("%.1fs", result.Elapsed().Seconds())},
			{"Pages crawled", strconv.Itoa(result.TotalPagesCrawled)},
			{"Links discovered", strconv.Itoa(result.TotalLinksDiscovered)},
			{"Failures", strconv.Itoa(len(result.Failures))},
		},
	})
	md.PlainText("")

	md.H2("Executive Summary")
	md.PlainText("")
	if result.Summary != "" {
		md.PlainText(result.Summary)
	} else {
		md.PlainText("No summary could be produced for this run.")
	}
	md.PlainText("")

	if len(result.KeyFindings) > 0 {
		md.H2("Key Findings")
		md.PlainText("")
		md.BulletList(result.KeyFindings...)
		md.PlainText("")
	}

	w.writeSources(md, result)
	w.writeFailures(md, result)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeSources(md *markdown.Markdown, result research.ResearchResult) {
	sources := topSources(result, maxDetailedSources)
	if len(sources) == 0 {
		return
	}
	md.H2("Detailed Sources")
	md.PlainText("")
	for i, page := range sources {
		title := page.Title
		if title == "" {
			title = research.Host(page.URL)
		}
		md.H3(fmt.Sprintf("Source %d: %s", i+1, title))
		md.PlainText(fmt.Sprintf("URL: %s", page.URL))
		md.PlainText(fmt.Sprintf("Level: %d | Relevance: %.2f", page.Level, page.Relevance))
		if text := excerpt(page.Text); text != "" {
			md.PlainText("")
			md.PlainText(text)
		}
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result research.ResearchResult) {
	if len(result.Failures) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		code := ""
		if f.HTTPCode != 0 {
			code = strconv.Itoa(f.HTTPCode)
		}
		rows = append(rows, []string{f.URL, strconv.Itoa(f.Level), string(f.Status), code, string(f.Kind)})
	}
	md.H2("Failures")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Level", "Status", "HTTP", "Kind"},
		Rows:   rows,
	})
	md.PlainText("")
}
