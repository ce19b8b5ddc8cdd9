package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probelab/deepresearch/internal/extractor"
	"github.com/probelab/deepresearch/internal/research"
	"github.com/probelab/deepresearch/internal/scorer"
	"github.com/probelab/deepresearch/internal/synthesizer"
)

type fakeProvider struct {
	hits []research.SearchHit
	err  error
}

func (p *fakeProvider) Search(_ context.Context, _ string, limit int) ([]research.SearchHit, error) {
	if p.err != nil {
		return nil, p.err
	}
	if limit > 0 && len(p.hits) > limit {
		return p.hits[:limit], nil
	}
	return p.hits, nil
}

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string // url -> html body; missing urls 404
	calls  []research.CrawlTask
	delay  time.Duration
	delays map[string]time.Duration // per-url overrides
}

func (f *fakeFetcher) Fetch(ctx context.Context, task research.CrawlTask) research.FetchOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, task)
	body, ok := f.pages[task.URL]
	f.mu.Unlock()

	if ctx.Err() != nil {
		return research.FetchOutcome{
			URL: task.URL, Status: research.StatusSkipped, Kind: research.KindDeadline, Err: ctx.Err(),
		}
	}
	delay := f.delay
	if d, ok := f.delays[task.URL]; ok {
		delay = d
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return research.FetchOutcome{
				URL: task.URL, Status: research.StatusSkipped, Kind: research.KindDeadline, Err: ctx.Err(),
			}
		}
	}
	if !ok {
		return research.FetchOutcome{
			URL: task.URL, Status: research.StatusHTTPError, HTTPCode: 404, Kind: research.KindHTTP4xx,
		}
	}
	return research.FetchOutcome{
		URL: task.URL, Status: research.StatusOK, HTTPCode: 200,
		ContentType: "text/html", Body: []byte(body), Elapsed: 5 * time.Millisecond,
	}
}

func (f *fakeFetcher) tasksAtLevel(level int) []research.CrawlTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []research.CrawlTask
	for _, c := range f.calls {
		if c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type fakeIDGen struct{}

func (fakeIDGen) NewID() (string, error) { return "run-test", nil }

func newTestPlanner(cfg Config, provider research.SearchProvider, fetch research.Fetcher) *Planner {
	if cfg.MaxLevel2PerPage == 0 {
		cfg.MaxLevel2PerPage = 10
	}
	if cfg.OverallDeadline == 0 {
		cfg.OverallDeadline = 30 * time.Second
	}
	return New(
		cfg,
		provider,
		fetch,
		extractor.New(0, zap.NewNop()),
		scorer.New(),
		synthesizer.New(synthesizer.Config{}),
		&fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		fakeIDGen{},
		nil,
		zap.NewNop(),
	)
}

func htmlPage(title, body string, links ...string) string {
	var anchors strings.Builder
	for i, l := range links {
		fmt.Fprintf(&anchors, `<a href=%q>link %d</a>`, l, i)
	}
	return fmt.Sprintf("<html><head><title>%s</title></head><body><p>%s</p>%s</body></html>", title, body, anchors.String())
}

func TestEmptySearchResult(t *testing.T) {
	t.Parallel()

	p := newTestPlanner(Config{}, &fakeProvider{}, &fakeFetcher{})
	result := p.Run(context.Background(), "zxcvbnm_nonsense_42")

	require.Empty(t, result.InitialHits)
	require.Empty(t, result.Level1)
	require.Empty(t, result.Level2)
	require.Empty(t, result.Summary)
	require.Zero(t, result.TotalPagesCrawled)
	require.Len(t, result.KeyFindings, 1)
	require.Contains(t, result.KeyFindings[0], "search-failure")
}

func TestSearchProviderError(t *testing.T) {
	t.Parallel()

	fetch := &fakeFetcher{}
	p := newTestPlanner(Config{}, &fakeProvider{err: errors.New("engine unreachable")}, fetch)
	result := p.Run(context.Background(), "anything")

	require.Len(t, result.KeyFindings, 1)
	require.Contains(t, result.KeyFindings[0], "search-failure")
	require.Contains(t, result.KeyFindings[0], "engine unreachable")
	require.Empty(t, fetch.calls, "no fetch may happen after a search failure")
}

func TestSingleHitHappyPath(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{hits: []research.SearchHit{
		{URL: "http://a.example/p1", Title: "Alpha", Snippet: "about widget", Rank: 1},
	}}
	dilute := strings.Repeat("plenty of extra filler text to thin the term density out considerably. ", 20)
	fetch := &fakeFetcher{pages: map[string]string{
		"http://a.example/p1": htmlPage("Alpha", "widget widget widget detail.", "http://b.example/x", "http://c.example/y"),
		"http://b.example/x":  htmlPage("Bravo", "one widget mention here. "+dilute),
		"http://c.example/y":  htmlPage("Charlie", "another widget mention. "+dilute),
	}}

	p := newTestPlanner(Config{}, provider, fetch)
	result := p.Run(context.Background(), "widget")

	require.Equal(t, 3, result.TotalPagesCrawled)
	require.Len(t, result.Level1, 1)
	require.Len(t, result.Level2, 2)
	require.Equal(t, 2, result.TotalLinksDiscovered)
	require.Empty(t, result.Failures)

	for _, p2 := range result.Level2 {
		require.Equal(t, "http://a.example/p1", p2.ParentURL)
		require.Greater(t, result.Level1[0].Relevance, p2.Relevance)
	}

	require.NotEmpty(t, result.KeyFindings)
	require.Contains(t, result.KeyFindings[0], "Alpha")
	require.NotEmpty(t, result.Summary)
	require.Contains(t, result.Summary, "Research on 'widget' surveyed 3 pages")
}

func TestPageURLsGloballyUnique(t *testing.T) {
	t.Parallel()

	// Both hits link to each other and to a shared child; nothing may be
	// fetched twice.
	provider := &fakeProvider{hits: []research.SearchHit{
		{URL: "http://a.example/p1", Rank: 1},
		{URL: "http://b.example/p2", Rank: 2},
	}}
	fetch := &fakeFetcher{pages: map[string]string{
		"http://a.example/p1": htmlPage("A", "topic here.", "http://b.example/p2", "http://shared.example/s", "http://a.example/p1"),
		"http://b.example/p2": htmlPage("B", "topic there.", "http://a.example/p1", "http://shared.example/s"),
		"http://shared.example/s": htmlPage("S", "topic shared."),
	}}

	p := newTestPlanner(Config{}, provider, fetch)
	result := p.Run(context.Background(), "topic")

	seen := make(map[string]int)
	for _, page := range result.Pages() {
		seen[page.URL]++
	}
	for url, count := range seen {
		require.Equal(t, 1, count, "url %s appeared %d times", url, count)
	}
	require.Equal(t, len(seen), result.TotalPagesCrawled)

	// The shared child was fetched exactly once.
	var sharedFetches int
	for _, c := range fetch.calls {
		if c.URL == "http://shared.example/s" {
			sharedFetches++
		}
	}
	require.Equal(t, 1, sharedFetches)
}

func TestLevel2CapEnforced(t *testing.T) {
	t.Parallel()

	links := make([]string, 50)
	for i := range links {
		links[i] = fmt.Sprintf("http://child%02d.example/page", i)
	}
	provider := &fakeProvider{hits: []research.SearchHit{{URL: "http://a.example/p1", Rank: 1}}}
	fetch := &fakeFetcher{pages: map[string]string{
		"http://a.example/p1": htmlPage("Hub", "term rich body.", links...),
	}}

	p := newTestPlanner(Config{MaxLevel2PerPage: 10}, provider, fetch)
	result := p.Run(context.Background(), "term")

	require.Len(t, fetch.tasksAtLevel(2), 10)
	require.Equal(t, 50, result.TotalLinksDiscovered)
}

func TestNoLevel3Expansion(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{hits: []research.SearchHit{{URL: "http://a.example/p1", Rank: 1}}}
	fetch := &fakeFetcher{pages: map[string]string{
		"http://a.example/p1": htmlPage("L1", "item body.", "http://b.example/l2"),
		"http://b.example/l2": htmlPage("L2", "item body again.", "http://c.example/l3", "http://d.example/l3b"),
	}}

	p := newTestPlanner(Config{}, provider, fetch)
	result := p.Run(context.Background(), "item")

	require.Equal(t, 2, result.TotalPagesCrawled)
	for _, c := range fetch.calls {
		require.LessOrEqual(t, c.Level, 2)
	}
	require.Len(t, fetch.calls, 2)
	// Level-2 outlinks are dropped from the result as well.
	require.Empty(t, result.Level2[0].Outlinks)
}

func TestZeroDeadline(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{hits: []research.SearchHit{
		{URL: "http://a.example/p1", Rank: 1},
		{URL: "http://b.example/p2", Rank: 2},
		{URL: "http://c.example/p3", Rank: 3},
	}}
	fetch := &fakeFetcher{pages: map[string]string{}}

	p := New(
		Config{MaxLevel2PerPage: 10, OverallDeadline: 0},
		provider,
		fetch,
		extractor.New(0, zap.NewNop()),
		scorer.New(),
		synthesizer.New(synthesizer.Config{}),
		&fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		fakeIDGen{},
		nil,
		zap.NewNop(),
	)
	result := p.Run(context.Background(), "deadline test")

	require.Zero(t, result.TotalPagesCrawled)
	require.Empty(t, result.Summary)
	require.Len(t, result.Failures, 3)
	urls := make(map[string]bool)
	for _, f := range result.Failures {
		require.Equal(t, research.KindDeadline, f.Kind)
		require.Equal(t, research.StatusSkipped, f.Status)
		urls[f.URL] = true
	}
	require.Len(t, urls, 3)
}

func TestDeadlineCutsRunShort(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{hits: []research.SearchHit{
		{URL: "http://fast.example/p", Rank: 1},
		{URL: "http://slow1.example/p", Rank: 2},
		{URL: "http://slow2.example/p", Rank: 3},
	}}
	fetch := &fakeFetcher{
		pages: map[string]string{
			"http://fast.example/p":  htmlPage("Fast", "timely content body."),
			"http://slow1.example/p": htmlPage("Slow", "late content."),
			"http://slow2.example/p": htmlPage("Slow", "late content."),
		},
		delays: map[string]time.Duration{
			"http://slow1.example/p": 5 * time.Second,
			"http://slow2.example/p": 5 * time.Second,
		},
	}

	p := newTestPlanner(Config{OverallDeadline: 300 * time.Millisecond}, provider, fetch)
	result := p.Run(context.Background(), "timely")

	require.Equal(t, 1, result.TotalPagesCrawled)
	require.Equal(t, "http://fast.example/p", result.Level1[0].URL)
	require.NotEmpty(t, result.Summary)

	require.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		require.Equal(t, research.KindDeadline, f.Kind)
	}
}

func TestMaxTotalPagesCap(t *testing.T) {
	t.Parallel()

	links := make([]string, 20)
	for i := range links {
		links[i] = fmt.Sprintf("http://child%02d.example/", i)
	}
	pages := map[string]string{
		"http://a.example/p1": htmlPage("Hub", "scope body.", links...),
	}
	for _, l := range links {
		pages[l] = htmlPage("Child", "scope child.")
	}
	provider := &fakeProvider{hits: []research.SearchHit{{URL: "http://a.example/p1", Rank: 1}}}
	fetch := &fakeFetcher{pages: pages}

	p := newTestPlanner(Config{MaxTotalPages: 4, MaxLevel2PerPage: 20}, provider, fetch)
	result := p.Run(context.Background(), "scope")

	require.LessOrEqual(t, len(fetch.calls), 4)
	require.LessOrEqual(t, result.TotalPagesCrawled, 4)
}

func TestFailedFetchRecordedOnce(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{hits: []research.SearchHit{
		{URL: "http://a.example/ok", Rank: 1},
		{URL: "http://gone.example/missing", Rank: 2},
	}}
	fetch := &fakeFetcher{pages: map[string]string{
		"http://a.example/ok": htmlPage("OK", "payload body."),
	}}

	p := newTestPlanner(Config{}, provider, fetch)
	result := p.Run(context.Background(), "payload")

	require.Len(t, result.Failures, 1)
	failure := result.Failures[0]
	require.Equal(t, "http://gone.example/missing", failure.URL)
	require.Equal(t, research.StatusHTTPError, failure.Status)
	require.Equal(t, 404, failure.HTTPCode)
	require.Equal(t, research.KindHTTP4xx, failure.Kind)

	for _, page := range result.Pages() {
		require.NotEqual(t, failure.URL, page.URL)
	}
	require.Equal(t, 1, result.TotalPagesCrawled)
}

func TestExtractFailureRecorded(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{hits: []research.SearchHit{{URL: "http://a.example/blank", Rank: 1}}}
	fetch := &fakeFetcher{pages: map[string]string{
		"http://a.example/blank": "   ",
	}}

	p := newTestPlanner(Config{}, provider, fetch)
	result := p.Run(context.Background(), "whatever")

	require.Len(t, result.Failures, 1)
	require.Equal(t, research.StatusExtract, result.Failures[0].Status)
	require.Equal(t, research.KindExtract, result.Failures[0].Kind)
	require.Zero(t, result.TotalPagesCrawled)
	require.Empty(t, result.Summary)
}

func TestRelevanceOrderingInFindings(t *testing.T) {
	t.Parallel()

	filler := strings.Repeat("neutral prose that has nothing to do with the subject matter at hand here. ", 12)
	provider := &fakeProvider{hits: []research.SearchHit{
		{URL: "http://weak.example/b", Rank: 1},
		{URL: "http://strong.example/a", Rank: 2},
	}}
	fetch := &fakeFetcher{pages: map[string]string{
		"http://weak.example/b":   htmlPage("Weak", filler+"ferrite appears once."),
		"http://strong.example/a": htmlPage("Strong", filler+strings.Repeat("ferrite appears often. ", 10)),
	}}

	p := newTestPlanner(Config{}, provider, fetch)
	result := p.Run(context.Background(), "ferrite")

	require.Len(t, result.KeyFindings, 2)
	require.Contains(t, result.KeyFindings[0], "strong.example")
	require.Contains(t, result.KeyFindings[1], "weak.example")

	byURL := make(map[string]float64)
	for _, page := range result.Pages() {
		byURL[page.URL] = page.Relevance
	}
	require.Greater(t, byURL["http://strong.example/a"], byURL["http://weak.example/b"])
	for _, rel := range byURL {
		require.Greater(t, rel, 0.0)
		require.LessOrEqual(t, rel, 1.0)
	}
}

func TestRunCountsAreConsistent(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{hits: []research.SearchHit{
		{URL: "http://a.example/1", Rank: 1},
		{URL: "http://b.example/2", Rank: 2},
	}}
	fetch := &fakeFetcher{pages: map[string]string{
		"http://a.example/1": htmlPage("One", "counting body.", "http://c.example/x"),
		"http://b.example/2": htmlPage("Two", "counting body."),
		"http://c.example/x": htmlPage("X", "counting child."),
	}}

	p := newTestPlanner(Config{}, provider, fetch)
	result := p.Run(context.Background(), "counting")

	require.Equal(t, len(result.Level1)+len(result.Level2), result.TotalPagesCrawled)
	require.False(t, result.FinishedAt.Before(result.StartedAt))
	require.Equal(t, "run-test", result.RunID)

	level1URLs := make(map[string]bool)
	for _, p1 := range result.Level1 {
		level1URLs[p1.URL] = true
	}
	for _, p2 := range result.Level2 {
		require.True(t, level1URLs[p2.ParentURL], "level-2 parent %s must be a level-1 page", p2.ParentURL)
	}
}
