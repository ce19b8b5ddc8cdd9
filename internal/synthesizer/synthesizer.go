// Package synthesizer distills scored pages into the summary paragraph and
// ranked key findings. It is the deterministic, lexical implementation of
// the summarize capability: identical inputs always produce identical text.
package synthesizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/probelab/deepresearch/internal/research"
)

// Config bounds the synthesis output.
type Config struct {
	TopPagesForSummary int
	SentencesPerPage   int
	SummaryMaxChars    int
	MaxFindings        int
	MaxFindingChars    int
	MinRelevance       float64
}

// Synthesizer implements research.Summarizer.
type Synthesizer struct {
	cfg Config
}

// New builds a Synthesizer, filling zero config fields with defaults.
func New(cfg Config) *Synthesizer {
	if cfg.TopPagesForSummary <= 0 {
		cfg.TopPagesForSummary = 5
	}
	if cfg.SentencesPerPage <= 0 {
		cfg.SentencesPerPage = 3
	}
	if cfg.SummaryMaxChars <= 0 {
		cfg.SummaryMaxChars = 1500
	}
	if cfg.MaxFindings <= 0 {
		cfg.MaxFindings = 10
	}
	if cfg.MaxFindingChars <= 0 {
		cfg.MaxFindingChars = 280
	}
	return &Synthesizer{cfg: cfg}
}

// Summarize builds the summary paragraph: a lead sentence with run totals,
// followed by the highest-scoring text windows from the top pages. Pages
// must arrive in canonical order (scorer.Order).
func (s *Synthesizer) Summarize(q research.Query, pages []research.ScoredPage, totalPages, domains int) string {
	lead := fmt.Sprintf("Research on '%s' surveyed %d pages across %d domains.", q.Raw, totalPages, domains)

	eligible := s.eligible(pages)
	if len(eligible) == 0 {
		return lead + " No relevant content could be retrieved."
	}
	if len(eligible) > s.cfg.TopPagesForSummary {
		eligible = eligible[:s.cfg.TopPagesForSummary]
	}

	seen := make(map[string]struct{})
	var windows []string
	total := 0
	for _, p := range eligible {
		kept := 0
		for _, sentence := range splitSentences(p.Text) {
			if kept >= s.cfg.SentencesPerPage || total >= s.cfg.SummaryMaxChars {
				break
			}
			if !containsAnyTerm(sentence, q.Terms) {
				continue
			}
			key := strings.ToLower(sentence)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			windows = append(windows, sentence)
			total += len(sentence)
			kept++
		}
	}

	body := strings.Join(windows, " ")
	if len(body) > s.cfg.SummaryMaxChars {
		body = strings.TrimSpace(body[:s.cfg.SummaryMaxChars])
	}
	if body == "" {
		return lead
	}
	return lead + " " + body
}

// KeyFindings emits one bullet per top page, deduplicated by host, in the
// order the pages arrive (the scorer's tie-breaking rule).
func (s *Synthesizer) KeyFindings(q research.Query, pages []research.ScoredPage) []string {
	findings := make([]string, 0, s.cfg.MaxFindings)
	seenHosts := make(map[string]struct{})
	for _, p := range s.eligible(pages) {
		if len(findings) >= s.cfg.MaxFindings {
			break
		}
		host := research.Host(p.URL)
		if _, dup := seenHosts[host]; dup {
			continue
		}
		seenHosts[host] = struct{}{}

		label := p.Title
		if label == "" {
			label = host
		}
		excerpt := firstSentenceWithTerm(p.Text, q.Terms)
		if excerpt == "" {
			excerpt = p.Snippet
		}
		if excerpt == "" {
			sentences := splitSentences(p.Text)
			if len(sentences) > 0 {
				excerpt = sentences[0]
			}
		}
		excerpt = truncate(excerpt, s.cfg.MaxFindingChars)
		findings = append(findings, fmt.Sprintf("%s — %s (%s)", label, excerpt, p.URL))
	}
	return findings
}

// eligible drops pages without text or below the relevance floor.
func (s *Synthesizer) eligible(pages []research.ScoredPage) []research.ScoredPage {
	out := make([]research.ScoredPage, 0, len(pages))
	for _, p := range pages {
		if p.Text == "" || p.Relevance < s.cfg.MinRelevance {
			continue
		}
		out = append(out, p)
	}
	return out
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// splitSentences breaks text on sentence terminators, keeping the
// terminator with each sentence. A trailing fragment without a terminator
// counts as a sentence.
func splitSentences(text string) []string {
	matches := sentencePattern.FindAllStringIndex(text, -1)
	var sentences []string
	end := 0
	for _, m := range matches {
		if s := strings.TrimSpace(text[m[0]:m[1]]); s != "" {
			sentences = append(sentences, s)
		}
		end = m[1]
	}
	if rest := strings.TrimSpace(text[end:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func containsAnyTerm(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func firstSentenceWithTerm(text string, terms []string) string {
	for _, sentence := range splitSentences(text) {
		if containsAnyTerm(sentence, terms) {
			return sentence
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
