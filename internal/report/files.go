package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/probelab/deepresearch/internal/research"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
var whitespaceRuns = regexp.MustCompile(`\s+`)

// FileStem derives a filesystem-safe name for a run's report files from the
// query and the run start time: deep_research_<query>_<timestamp>.
func FileStem(result research.ResearchResult) string {
	safe := unsafeChars.ReplaceAllString(result.Query.Raw, "")
	if len(safe) > 50 {
		safe = safe[:50]
	}
	safe = whitespaceRuns.ReplaceAllString(strings.TrimSpace(safe), "_")
	if safe == "" {
		safe = "query"
	}
	return fmt.Sprintf("deep_research_%s_%s", safe, result.StartedAt.Format("20060102_150405"))
}

// WriteFiles emits the JSON wire document and the Markdown report into dir,
// creating it if needed. The two renders are independent, so they run
// concurrently. It returns the paths written, JSON first.
func WriteFiles(dir string, result research.ResearchResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	stem := FileStem(result)
	jsonPath := filepath.Join(dir, stem+".json")
	mdPath := filepath.Join(dir, stem+".md")

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return writeTo(jsonPath, func(w io.Writer) Writer { return NewJSONWriter(w) }, result)
	})
	g.Go(func() error {
		return writeTo(mdPath, func(w io.Writer) Writer { return NewMarkdownWriter(w) }, result)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return []string{jsonPath, mdPath}, nil
}

func writeTo(path string, build func(io.Writer) Writer, result research.ResearchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := build(f).Write(result); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}
