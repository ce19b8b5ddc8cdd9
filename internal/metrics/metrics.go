// Package metrics exposes Prometheus collectors for pipeline internals that
// are not event-shaped: the in-flight fetch gauge and running totals.
// Event-driven metrics live in the progress Prometheus sink.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inflightFetches prometheus.Gauge
	pagesCrawled    *prometheus.CounterVec
	linksDiscovered prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times.
func Init() {
	once.Do(func() {
		inflightFetches = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "research_inflight_fetches",
			Help: "Number of fetches currently in flight.",
		})
		pagesCrawled = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "research_pages_crawled_total",
			Help: "Pages successfully crawled and extracted, labeled by level.",
		}, []string{"level"})
		linksDiscovered = promauto.NewCounter(prometheus.CounterOpts{
			Name: "research_links_discovered_total",
			Help: "Outlinks discovered on Level-1 pages before filtering.",
		})
	})
}

// IncInflightFetches marks a fetch as started.
func IncInflightFetches() {
	Init()
	inflightFetches.Inc()
}

// DecInflightFetches marks a fetch as finished.
func DecInflightFetches() {
	Init()
	inflightFetches.Dec()
}

// IncPagesCrawled counts a successfully extracted page at the given level.
func IncPagesCrawled(level int) {
	Init()
	pagesCrawled.WithLabelValues(strconv.Itoa(level)).Inc()
}

// AddLinksDiscovered counts outlinks found on a Level-1 page.
func AddLinksDiscovered(n int) {
	if n <= 0 {
		return
	}
	Init()
	linksDiscovered.Add(float64(n))
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
