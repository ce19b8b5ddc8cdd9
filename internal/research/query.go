package research

import (
	"strings"
	"unicode"
)

// Query holds the raw research question and its tokenized terms. Terms are
// lowercased, stop-word filtered, and deduplicated in first-seen order.
type Query struct {
	Raw   string
	Terms []string
}

// NewQuery tokenizes a raw query string. Multi-word phrases split on
// whitespace; punctuation is trimmed from term edges.
func NewQuery(raw string) Query {
	q := Query{Raw: raw}
	seen := make(map[string]struct{})
	for _, field := range strings.Fields(raw) {
		term := strings.TrimFunc(strings.ToLower(field), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if term == "" {
			continue
		}
		if _, stop := stopwords[term]; stop {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		q.Terms = append(q.Terms, term)
	}
	return q
}

// stopwords are high-frequency English words that carry no query signal.
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {},
	"and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"because": {}, "been": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "get": {},
	"had": {}, "has": {}, "have": {}, "he": {}, "her": {}, "his": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "just": {}, "me": {}, "more": {}, "most": {}, "my": {},
	"no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "other": {},
	"our": {}, "out": {}, "over": {}, "she": {}, "so": {}, "some": {},
	"still": {}, "such": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "up": {}, "want": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "will": {},
	"with": {}, "would": {}, "you": {}, "your": {},
}
