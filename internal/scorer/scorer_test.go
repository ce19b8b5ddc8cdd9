package scorer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/deepresearch/internal/research"
)

func page(url, title, text string) research.Page {
	return research.Page{URL: url, Level: 1, Title: title, Text: text}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	s := New()
	q := research.NewQuery("quantum computing")

	empty := s.Score(q, page("http://a.example/", "", ""))
	require.Equal(t, 0.0, empty.Relevance)

	saturated := s.Score(q, page(
		"http://a.example/",
		"quantum computing quantum computing",
		strings.Repeat("quantum computing ", 200),
	))
	require.LessOrEqual(t, saturated.Relevance, 1.0)
	require.Greater(t, saturated.Relevance, 0.9)
}

func TestScoreMonotoneInTermOccurrences(t *testing.T) {
	t.Parallel()

	s := New()
	q := research.NewQuery("ocean currents")

	base := "Some filler text about weather patterns and tides. "
	prev := -1.0
	for hits := 0; hits <= 12; hits++ {
		text := base + strings.Repeat("ocean ", hits)
		got := s.Score(q, page("http://a.example/", "", text)).Relevance
		require.GreaterOrEqual(t, got, prev,
			"relevance must not decrease when a term occurrence is added (hits=%d)", hits)
		prev = got
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	s := New()
	q := research.NewQuery("rust memory safety")
	p := page("http://a.example/", "Memory safety in practice", "rust enforces memory safety without garbage collection")

	first := s.Score(q, p)
	for i := 0; i < 5; i++ {
		again := s.Score(q, p)
		require.Equal(t, first.Relevance, again.Relevance)
		require.Equal(t, first.TermHits, again.TermHits)
	}
}

func TestScoreCoverageBeatsRepetition(t *testing.T) {
	t.Parallel()

	s := New()
	q := research.NewQuery("solar wind turbines")

	pad := strings.Repeat("neutral filler words here ", 40)
	allTerms := s.Score(q, page("http://a.example/", "", pad+"solar wind turbines"))
	oneTerm := s.Score(q, page("http://b.example/", "", pad+strings.Repeat("solar ", 3)))

	require.Greater(t, allTerms.Relevance, oneTerm.Relevance)
}

func TestScoreTitleBoost(t *testing.T) {
	t.Parallel()

	s := New()
	q := research.NewQuery("graph databases")

	text := "comparison of storage engines and query planners for graph databases"
	titled := s.Score(q, page("http://a.example/", "Graph databases explained", text))
	untitled := s.Score(q, page("http://b.example/", "Storage engines", text))

	require.Greater(t, titled.Relevance, untitled.Relevance)
}

func TestScoreEqualLengthPagesOrderByHits(t *testing.T) {
	t.Parallel()

	s := New()
	q := research.NewQuery("ferrite cores")

	// Long enough that density no longer saturates on a single hit.
	filler := strings.Repeat("inductors and transformers use magnetic windings ", 60)
	textA := filler + strings.Repeat("ferrite ", 10) + strings.Repeat("x ", 1)
	textB := filler + strings.Repeat("ferrite ", 1) + strings.Repeat("x ", 37)

	a := s.Score(q, page("http://a.example/", "", textA))
	b := s.Score(q, page("http://b.example/", "", textB))

	require.Greater(t, a.Relevance, b.Relevance)
	require.Greater(t, a.Relevance, 0.0)
	require.LessOrEqual(t, a.Relevance, 1.0)
	require.Greater(t, b.Relevance, 0.0)
}

func TestOrderTieBreaking(t *testing.T) {
	t.Parallel()

	mk := func(url string, level, rank int, rel float64) research.ScoredPage {
		return research.ScoredPage{
			Page:      research.Page{URL: url, Level: level, Rank: rank},
			Relevance: rel,
		}
	}

	pages := []research.ScoredPage{
		mk("http://e.example/", 2, 1, 0.5),
		mk("http://d.example/", 1, 2, 0.5),
		mk("http://c.example/", 1, 1, 0.5),
		mk("http://b.example/", 1, 1, 0.9),
		mk("http://a.example/z", 2, 3, 0.5),
		mk("http://a.example/a", 2, 3, 0.5),
	}
	Order(pages)

	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	require.Equal(t, []string{
		"http://b.example/",  // highest relevance first
		"http://c.example/",  // tie: level 1, rank 1
		"http://d.example/",  // tie: level 1, rank 2
		"http://e.example/",  // tie: level 2, rank 1
		"http://a.example/a", // tie: level 2 rank 3, URL ascending
		"http://a.example/z",
	}, urls)
}

func TestOrderIsStableContract(t *testing.T) {
	t.Parallel()

	// Shuffled input converges to one canonical order.
	build := func(perm []int) []research.ScoredPage {
		var pages []research.ScoredPage
		for _, i := range perm {
			pages = append(pages, research.ScoredPage{
				Page:      research.Page{URL: fmt.Sprintf("http://h%d.example/", i), Level: 1 + i%2, Rank: i},
				Relevance: 0.25,
			})
		}
		return pages
	}

	first := build([]int{0, 1, 2, 3, 4, 5})
	second := build([]int{5, 3, 1, 4, 2, 0})
	Order(first)
	Order(second)
	for i := range first {
		require.Equal(t, first[i].URL, second[i].URL)
	}
}
