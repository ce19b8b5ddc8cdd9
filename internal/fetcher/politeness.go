package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostGate serializes fetches per host: at most one request in flight to a
// host, and consecutive request starts to the same host spaced by at least
// the configured interval.
type hostGate struct {
	mu       sync.Mutex
	interval time.Duration
	hosts    map[string]*hostSlot
}

type hostSlot struct {
	busy    chan struct{}
	limiter *rate.Limiter
}

func newHostGate(interval time.Duration) *hostGate {
	return &hostGate{
		interval: interval,
		hosts:    make(map[string]*hostSlot),
	}
}

func (g *hostGate) slot(host string) *hostSlot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.hosts[host]
	if !ok {
		limit := rate.Inf
		if g.interval > 0 {
			limit = rate.Every(g.interval)
		}
		s = &hostSlot{
			busy:    make(chan struct{}, 1),
			limiter: rate.NewLimiter(limit, 1),
		}
		g.hosts[host] = s
	}
	return s
}

// Acquire blocks until the host is idle and its spacing token is available.
// The caller must Release the same host afterwards.
func (g *hostGate) Acquire(ctx context.Context, host string) error {
	s := g.slot(host)
	select {
	case s.busy <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		<-s.busy
		return fmt.Errorf("host spacing wait: %w", err)
	}
	return nil
}

// Release marks the host idle again.
func (g *hostGate) Release(host string) {
	s := g.slot(host)
	select {
	case <-s.busy:
	default:
	}
}
