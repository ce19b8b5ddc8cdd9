// Package progress provides the event primitives and non-blocking hub that
// the research pipeline uses to report run progress. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as structured
// logs or Prometheus metrics.
package progress

import (
	"errors"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageSearchDone Stage = "SEARCH_DONE"
	StageFetchStart Stage = "FETCH_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageLevelDone  Stage = "LEVEL_DONE"
	StageRunDone    Stage = "RUN_DONE"
)

// Event captures a single component of run progress.
type Event struct {
	// RunID identifies the research run that emitted the event.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Level scopes fetch events to BFS depth (1 or 2).
	Level int
	// Host optionally scopes fetch events to a host label.
	Host string
	// URL is the optional page URL.
	URL string
	// Status carries the fetch outcome status for FETCH_DONE events.
	Status string
	// Bytes carries the response size for the fetch.
	Bytes int64
	// Dur captures latency for fetches and whole runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageSearchDone, StageLevelDone, StageRunDone:
	case StageFetchStart, StageFetchDone:
		if e.URL == "" {
			return errors.New("fetch events require a url")
		}
	default:
		return errors.New("unknown stage")
	}
	return nil
}
