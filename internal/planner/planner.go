// Package planner drives the two-level breadth-first exploration: initial
// search, Level-1 fetches, Level-2 expansion with filtering and
// de-duplication, and the hand-off to the synthesizer. The planner owns the
// frontier and the visited set; fetch and extract failures never abort a
// run.
package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/probelab/deepresearch/internal/extractor"
	"github.com/probelab/deepresearch/internal/metrics"
	"github.com/probelab/deepresearch/internal/progress"
	"github.com/probelab/deepresearch/internal/research"
	"github.com/probelab/deepresearch/internal/scorer"
)

// Config bounds the exploration.
type Config struct {
	MaxInitialResults int
	MaxLevel2PerPage  int
	MaxTotalPages     int
	OverallDeadline   time.Duration
}

// Planner coordinates the run. All shared mutable state (visited set,
// result accumulators) lives in a per-run state guarded by one lock.
type Planner struct {
	cfg      Config
	provider research.SearchProvider
	fetcher  research.Fetcher
	extract  *extractor.Extractor
	scorer   *scorer.Scorer
	synth    research.Summarizer
	clock    research.Clock
	ids      research.IDGenerator
	hub      *progress.Hub
	logger   *zap.Logger
}

// New constructs a Planner.
func New(
	cfg Config,
	provider research.SearchProvider,
	fetcher research.Fetcher,
	extract *extractor.Extractor,
	score *scorer.Scorer,
	synth research.Summarizer,
	clock research.Clock,
	ids research.IDGenerator,
	hub *progress.Hub,
	logger *zap.Logger,
) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxInitialResults <= 0 {
		cfg.MaxInitialResults = 20
	}
	return &Planner{
		cfg:      cfg,
		provider: provider,
		fetcher:  fetcher,
		extract:  extract,
		scorer:   score,
		synth:    synth,
		clock:    clock,
		ids:      ids,
		hub:      hub,
		logger:   logger,
	}
}

// runState accumulates results under a single lock.
type runState struct {
	mu       sync.Mutex
	query    research.Query
	visited  *visitSet
	level1   []research.ScoredPage
	level2   []research.ScoredPage
	failures []research.Failure
	links    int
	admitted int
}

func (r *runState) admitBudget(max int) bool {
	if max <= 0 {
		return true
	}
	return r.admitted < max
}

// Run executes the whole pipeline for one query and always returns a
// complete result; content-level failures degrade it, never abort it.
func (p *Planner) Run(ctx context.Context, rawQuery string) research.ResearchResult {
	started := p.clock.Now()
	query := research.NewQuery(rawQuery)
	runID := p.newRunID()

	result := research.ResearchResult{
		RunID:     runID,
		Query:     query,
		StartedAt: started,
	}

	p.emit(progress.Event{RunID: runID, TS: started, Stage: progress.StageRunStart, Note: rawQuery})
	p.logger.Info("research run starting",
		zap.String("run_id", runID),
		zap.String("query", rawQuery),
		zap.Strings("terms", query.Terms),
	)

	hits, err := p.searchHits(ctx, query)
	result.InitialHits = hits
	if err != nil || len(hits) == 0 {
		note := "search returned no results"
		if err != nil {
			note = err.Error()
			p.logger.Warn("search provider failed", zap.Error(err))
		}
		result.KeyFindings = []string{fmt.Sprintf("search-failure: %s (query %q)", note, rawQuery)}
		result.FinishedAt = p.clock.Now()
		p.emitRunDone(result)
		return result
	}
	p.emit(progress.Event{
		RunID: runID, TS: p.clock.Now(), Stage: progress.StageSearchDone,
		Note: fmt.Sprintf("%d hits", len(hits)),
	})

	run := &runState{query: query, visited: newVisitSet()}

	// Pre-insert every hit URL before any Level-2 expansion can run, so a
	// fast Level-1 page never re-queues a pending search hit as Level-2.
	var tasks []research.CrawlTask
	for _, hit := range hits {
		if !run.visited.MarkIfNew(hit.URL) {
			continue
		}
		tasks = append(tasks, research.CrawlTask{
			URL:           hit.URL,
			Level:         1,
			Rank:          hit.Rank,
			OriginSnippet: hit.Snippet,
		})
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.OverallDeadline)
	defer cancel()

	var wg sync.WaitGroup
	for _, task := range tasks {
		run.mu.Lock()
		ok := run.admitBudget(p.cfg.MaxTotalPages)
		if ok {
			run.admitted++
		}
		run.mu.Unlock()
		if !ok {
			p.logger.Debug("page budget reached, skipping search hit", zap.String("url", task.URL))
			continue
		}
		wg.Add(1)
		go p.crawl(fetchCtx, &wg, runID, run, task)
	}
	wg.Wait()

	p.emit(progress.Event{
		RunID: runID, TS: p.clock.Now(), Stage: progress.StageLevelDone,
		Note: fmt.Sprintf("%d level-1, %d level-2 pages", len(run.level1), len(run.level2)),
	})

	return p.assemble(result, run)
}

func (p *Planner) searchHits(ctx context.Context, query research.Query) ([]research.SearchHit, error) {
	raw, err := p.provider.Search(ctx, query.Raw, p.cfg.MaxInitialResults)
	if err != nil {
		return nil, fmt.Errorf("search provider: %w", err)
	}
	hits := make([]research.SearchHit, 0, len(raw))
	for _, hit := range raw {
		normalized, err := research.NormalizeURL(hit.URL)
		if err != nil {
			p.logger.Debug("dropping search hit with invalid url", zap.String("url", hit.URL))
			continue
		}
		hit.URL = normalized
		hit.Rank = len(hits) + 1
		hits = append(hits, hit)
		if len(hits) >= p.cfg.MaxInitialResults {
			break
		}
	}
	return hits, nil
}

// crawl runs one task to its terminal state and, for Level-1 pages, admits
// Level-2 children. Children are spawned before the parent's WaitGroup slot
// releases, so the group can never hit zero early.
func (p *Planner) crawl(
	ctx context.Context,
	wg *sync.WaitGroup,
	runID string,
	run *runState,
	task research.CrawlTask,
) {
	defer wg.Done()

	p.emit(progress.Event{
		RunID: runID, TS: p.clock.Now(), Stage: progress.StageFetchStart,
		Level: task.Level, URL: task.URL, Host: research.Host(task.URL),
	})
	metrics.IncInflightFetches()
	outcome := p.fetcher.Fetch(ctx, task)
	metrics.DecInflightFetches()
	p.emit(progress.Event{
		RunID: runID, TS: p.clock.Now(), Stage: progress.StageFetchDone,
		Level: task.Level, URL: task.URL, Host: research.Host(task.URL),
		Status: string(outcome.Status), Bytes: int64(len(outcome.Body)), Dur: outcome.Elapsed,
	})

	if !outcome.OK() {
		p.recordFailure(run, task, research.Failure{
			URL:      task.URL,
			Level:    task.Level,
			Status:   outcome.Status,
			HTTPCode: outcome.HTTPCode,
			Kind:     outcome.Kind,
		})
		return
	}

	page, err := p.extract.Extract(task, outcome)
	if err != nil {
		p.logger.Debug("extraction failed", zap.String("url", task.URL), zap.Error(err))
		p.recordFailure(run, task, research.Failure{
			URL:      task.URL,
			Level:    task.Level,
			Status:   research.StatusExtract,
			HTTPCode: outcome.HTTPCode,
			Kind:     research.KindExtract,
		})
		return
	}

	scored := p.scorer.Score(run.query, page)
	metrics.IncPagesCrawled(task.Level)

	if task.Level == 1 {
		children := p.admitLevel2(run, scored)
		run.mu.Lock()
		run.level1 = append(run.level1, scored)
		run.mu.Unlock()
		for _, child := range children {
			wg.Add(1)
			go p.crawl(ctx, wg, runID, run, child)
		}
		return
	}

	// Level-2 outlinks are discarded: no Level-3 expansion.
	scored.Outlinks = nil
	run.mu.Lock()
	run.level2 = append(run.level2, scored)
	run.mu.Unlock()
}

// admitLevel2 selects the parent's Level-2 children under the run lock:
// preference ordering, visited-set membership, per-parent cap, and the
// global page budget all apply here.
func (p *Planner) admitLevel2(run *runState, parent research.ScoredPage) []research.CrawlTask {
	candidates := level2Candidates(run.query, parent.Page)

	run.mu.Lock()
	defer run.mu.Unlock()

	run.links += len(parent.Outlinks)
	metrics.AddLinksDiscovered(len(parent.Outlinks))

	var children []research.CrawlTask
	for _, link := range candidates {
		if len(children) >= p.cfg.MaxLevel2PerPage {
			break
		}
		if !run.admitBudget(p.cfg.MaxTotalPages) {
			break
		}
		if !run.visited.MarkIfNew(link.URL) {
			continue
		}
		run.admitted++
		children = append(children, research.CrawlTask{
			URL:       link.URL,
			Level:     2,
			ParentURL: parent.URL,
			Rank:      parent.Rank,
		})
	}
	return children
}

func (p *Planner) recordFailure(run *runState, task research.CrawlTask, failure research.Failure) {
	p.logger.Debug("crawl task failed",
		zap.String("url", task.URL),
		zap.Int("level", task.Level),
		zap.String("status", string(failure.Status)),
		zap.String("kind", string(failure.Kind)),
	)
	run.mu.Lock()
	run.failures = append(run.failures, failure)
	run.mu.Unlock()
}

func (p *Planner) assemble(result research.ResearchResult, run *runState) research.ResearchResult {
	scorer.Order(run.level1)
	scorer.Order(run.level2)

	result.Level1 = run.level1
	result.Level2 = run.level2
	result.Failures = run.failures
	result.TotalPagesCrawled = len(run.level1) + len(run.level2)
	result.TotalLinksDiscovered = run.links

	if result.TotalPagesCrawled == 0 {
		// Search succeeded but nothing was retrieved (all fetches failed or
		// the deadline cut them off). The summary stays empty; the failure
		// is surfaced as a finding.
		result.Summary = ""
		result.KeyFindings = []string{
			fmt.Sprintf("fetch-failure: no pages could be retrieved (%d failures)", len(run.failures)),
		}
	} else {
		ordered := result.Pages()
		scorer.Order(ordered)
		domains := countDomains(ordered)
		result.Summary = p.synth.Summarize(run.query, ordered, result.TotalPagesCrawled, domains)
		result.KeyFindings = p.synth.KeyFindings(run.query, ordered)
	}
	result.FinishedAt = p.clock.Now()

	p.logger.Info("research run finished",
		zap.String("run_id", result.RunID),
		zap.Int("pages", result.TotalPagesCrawled),
		zap.Int("links", result.TotalLinksDiscovered),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("elapsed", result.Elapsed()),
	)
	p.emitRunDone(result)
	return result
}

func (p *Planner) emitRunDone(result research.ResearchResult) {
	p.emit(progress.Event{
		RunID: result.RunID, TS: result.FinishedAt, Stage: progress.StageRunDone,
		Dur:  result.Elapsed(),
		Note: fmt.Sprintf("%d pages crawled", result.TotalPagesCrawled),
	})
}

func (p *Planner) emit(evt progress.Event) {
	if p.hub == nil {
		return
	}
	p.hub.Publish(evt)
}

func (p *Planner) newRunID() string {
	if p.ids == nil {
		return ""
	}
	id, err := p.ids.NewID()
	if err != nil {
		p.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func countDomains(pages []research.ScoredPage) int {
	seen := make(map[string]struct{})
	for _, p := range pages {
		if d := research.RegistrableDomain(p.URL); d != "" {
			seen[d] = struct{}{}
		}
	}
	return len(seen)
}
