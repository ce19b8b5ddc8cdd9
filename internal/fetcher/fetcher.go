package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/probelab/deepresearch/internal/research"
)

// Config controls fetch behavior.
type Config struct {
	UserAgent          string
	RequestTimeout     time.Duration
	MaxRetries         int
	MaxBytes           int
	MaxRedirects       int
	MaxConcurrency     int
	PerHostMinInterval time.Duration
	RetryBackoffBase   time.Duration
}

// Fetcher implements research.Fetcher using a Colly collector per attempt.
type Fetcher struct {
	cfg    Config
	base   *colly.Collector
	gate   *hostGate
	sem    chan struct{}
	retry  retryPolicy
	logger *zap.Logger
}

// New builds a Fetcher. The global concurrency cap and the per-host gate are
// owned here; callers simply invoke Fetch from as many goroutines as they
// like.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1_000_000
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	base := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	base.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:    cfg,
		base:   base,
		gate:   newHostGate(cfg.PerHostMinInterval),
		sem:    make(chan struct{}, cfg.MaxConcurrency),
		retry:  newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoffBase),
		logger: logger,
	}
}

// Fetch retrieves the task URL and returns a terminal outcome. It blocks on
// the global concurrency cap and the per-host gate, and runs the retry loop
// for transient failures.
func (f *Fetcher) Fetch(ctx context.Context, task research.CrawlTask) research.FetchOutcome {
	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return f.skipped(task, ctx.Err())
	}

	host := research.Host(task.URL)
	if err := f.gate.Acquire(ctx, host); err != nil {
		return f.skipped(task, err)
	}
	defer f.gate.Release(host)

	var out research.FetchOutcome
	for attempt := 0; ; attempt++ {
		out = f.attempt(ctx, task)
		if !f.retry.ShouldRetry(out, attempt) {
			break
		}
		f.logger.Debug("retrying fetch",
			zap.String("url", task.URL),
			zap.Int("attempt", attempt+1),
			zap.String("status", string(out.Status)),
		)
		if !sleep(ctx, f.retry.Backoff(attempt)) {
			break
		}
	}
	return out
}

func (f *Fetcher) attempt(ctx context.Context, task research.CrawlTask) research.FetchOutcome {
	if ctx.Err() != nil {
		return f.skipped(task, ctx.Err())
	}

	collector := f.base.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.MaxBodySize = f.cfg.MaxBytes + 1
	collector.SetRequestTimeout(f.cfg.RequestTimeout)
	maxRedirects := f.cfg.MaxRedirects
	collector.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	var (
		resp     *colly.Response
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		resp = r
	})
	collector.OnError(func(r *colly.Response, err error) {
		resp = r
		fetchErr = err
	})

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(task.URL)
	}()

	select {
	case <-ctx.Done():
		out := f.skipped(task, ctx.Err())
		out.Elapsed = time.Since(start)
		return out
	case visitErr := <-done:
		if fetchErr == nil {
			fetchErr = visitErr
		}
	}

	return f.classify(ctx, task, resp, fetchErr, time.Since(start))
}

func (f *Fetcher) classify(
	ctx context.Context,
	task research.CrawlTask,
	resp *colly.Response,
	err error,
	elapsed time.Duration,
) research.FetchOutcome {
	out := research.FetchOutcome{URL: task.URL, Elapsed: elapsed}

	if err != nil {
		if resp != nil {
			out.HTTPCode = resp.StatusCode
		}
		switch {
		case out.HTTPCode >= 500:
			out.Status = research.StatusHTTPError
			out.Kind = research.KindHTTP5xx
		case out.HTTPCode >= 400:
			out.Status = research.StatusHTTPError
			out.Kind = research.KindHTTP4xx
		case ctx.Err() != nil:
			out.Status = research.StatusSkipped
			out.Kind = research.KindDeadline
		case isTimeout(err):
			out.Status = research.StatusTimeout
			out.Kind = research.KindTimeout
		default:
			out.Status = research.StatusNetworkError
			out.Kind = research.KindNetwork
		}
		out.Err = err
		return out
	}

	if resp == nil {
		out.Status = research.StatusNetworkError
		out.Kind = research.KindNetwork
		out.Err = errors.New("no response received")
		return out
	}

	out.HTTPCode = resp.StatusCode
	out.ContentType = resp.Headers.Get("Content-Type")
	if !acceptableContentType(out.ContentType) {
		out.Status = research.StatusUnsupportedType
		out.Kind = research.KindUnsupportedType
		return out
	}

	body := resp.Body
	if len(body) > f.cfg.MaxBytes {
		out.Status = research.StatusTooLarge
		out.Kind = research.KindTooLarge
		out.Body = body[:f.cfg.MaxBytes]
		return out
	}

	out.Status = research.StatusOK
	out.Body = body
	return out
}

func (f *Fetcher) skipped(task research.CrawlTask, err error) research.FetchOutcome {
	return research.FetchOutcome{
		URL:    task.URL,
		Status: research.StatusSkipped,
		Kind:   research.KindDeadline,
		Err:    err,
	}
}

// acceptableContentType keeps HTML payloads only.
func acceptableContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleep waits for d or until the context fires; it reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
