package research

import (
	"context"
	"time"
)

// SearchProvider returns ranked hits for a query. Implementations wrap a
// public search endpoint; tests substitute canned responses.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// Fetcher retrieves a crawl task's URL. It never returns an error; every
// failure mode is encoded in the outcome.
type Fetcher interface {
	Fetch(ctx context.Context, task CrawlTask) FetchOutcome
}

// Summarizer turns scored pages into the summary paragraph and key-finding
// bullets. The shipped implementation is deterministic and lexical; the seat
// exists so an alternative can be substituted.
type Summarizer interface {
	Summarize(q Query, pages []ScoredPage, totalPages, domains int) string
	KeyFindings(q Query, pages []ScoredPage) []string
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
