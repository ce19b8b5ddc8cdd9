// Package research defines the core types shared across the deep research
// pipeline: search hits, crawl tasks, fetch outcomes, scored pages, and the
// final result, plus the capability interfaces (search, fetch, summarize)
// that the planner is wired against.
package research
