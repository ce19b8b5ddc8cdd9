// Package fetcher implements the concurrent fetch engine: a colly-backed
// HTTP GET per crawl task, a per-host politeness gate, a global concurrency
// cap, and a retry policy for transient failures. Every failure mode is
// returned as a typed outcome; nothing propagates as an error.
package fetcher
