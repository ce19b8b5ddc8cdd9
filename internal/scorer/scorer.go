// Package scorer computes lexical relevance of pages to a query and defines
// the canonical ordering used for key findings and report sections.
package scorer

import (
	"math"
	"sort"
	"strings"

	"github.com/probelab/deepresearch/internal/research"
)

// Weights of the three relevance components. Coverage dominates: a page
// touching every query term beats a page repeating one term.
const (
	coverageWeight = 0.5
	densityWeight  = 0.3
	titleWeight    = 0.2

	// One body hit per this many characters saturates the density term.
	densityWindow = 500.0
)

// Scorer is stateless and deterministic: identical (query, text, title)
// inputs always yield the same score.
type Scorer struct{}

// New creates a Scorer.
func New() *Scorer {
	return &Scorer{}
}

// Score computes relevance in [0, 1] for a page.
func (s *Scorer) Score(q research.Query, page research.Page) research.ScoredPage {
	text := strings.ToLower(page.Text)
	title := strings.ToLower(page.Title)

	termHits := make(map[string]int, len(q.Terms))
	covered := 0
	bodyHits := 0
	titleHits := 0
	for _, term := range q.Terms {
		nBody := strings.Count(text, term)
		nTitle := strings.Count(title, term)
		termHits[term] = nBody + nTitle
		if nBody+nTitle > 0 {
			covered++
		}
		bodyHits += nBody
		titleHits += nTitle
	}

	terms := len(q.Terms)
	if terms == 0 {
		terms = 1
	}
	coverage := float64(covered) / float64(terms)
	density := math.Min(1, float64(bodyHits)/math.Max(1, float64(len(text))/densityWindow))
	titleBoost := math.Min(1, float64(titleHits)/float64(terms))

	relevance := coverageWeight*coverage + densityWeight*density + titleWeight*titleBoost
	relevance = math.Max(0, math.Min(1, relevance))

	return research.ScoredPage{
		Page:      page,
		Relevance: relevance,
		TermHits:  termHits,
	}
}

// Order sorts pages by relevance descending, breaking ties by level
// ascending, then origin rank ascending, then URL. This ordering is the
// contract for key findings and report sections.
func Order(pages []research.ScoredPage) {
	sort.SliceStable(pages, func(i, j int) bool {
		return Less(pages[i], pages[j])
	})
}

// Less reports whether a sorts before b under the canonical ordering.
func Less(a, b research.ScoredPage) bool {
	if a.Relevance != b.Relevance {
		return a.Relevance > b.Relevance
	}
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.URL < b.URL
}
