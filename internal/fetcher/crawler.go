package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/supervisor-cli/internal/config"
	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/resilience"
)

// Options configures the Crawler.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxBodyBytes      int64
	MaxAttempts       int
	CacheTTL          time.Duration
	// RetryBackoff is the initial delay between attempts. Default: 1s.
	RetryBackoff time.Duration
}

// OptionsFromConfig maps the crawl section of the config onto Options.
func OptionsFromConfig(cfg config.CrawlConfig) Options {
	return Options{
		UserAgent:         cfg.UserAgent,
		Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		MaxAttempts:       cfg.MaxAttempts,
		CacheTTL:          time.Duration(cfg.CacheTTLHours) * time.Hour,
	}
}

// AdaptiveLimiter wraps a rate.Limiter whose rate drops on 429 responses
// and recovers on success, never above the configured rate.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at (and capped by) r.
func NewAdaptiveLimiter(r rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(r, burst),
		maxRate:     r,
		minRate:     r / 4,
		currentRate: r,
	}
}

// Wait blocks until the limiter allows a request.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%, up to the configured rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate, down to a quarter of the configured rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("fetcher: reducing host rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// Crawler fetches HTML pages with a per-host rate limit, retry on transient
// statuses, charset decoding and an optional page cache.
type Crawler struct {
	client *http.Client
	opts   Options
	cache  PageCache

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

var _ Fetcher = (*Crawler)(nil)

// New creates a Crawler. cache may be nil to disable caching.
func New(opts Options, cache PageCache) *Crawler {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 7 * 24 * time.Hour
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "supervisor-cli/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Crawler{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		cache:    cache,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the limiter for host, creating it on first use.
func (c *Crawler) limiterFor(host string) *AdaptiveLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(c.opts.RequestsPerSecond), 1)
		c.limiters[host] = lim
	}
	return lim
}

type response struct {
	status      int
	header      http.Header
	contentType string
	body        []byte
}

// Fetch returns the page at rawURL. It serves fresh cache hits without a
// network call and caches successful, unblocked responses.
func (c *Crawler) Fetch(ctx context.Context, rawURL string) model.Page {
	page := model.Page{URL: rawURL}
	log := zap.L().With(zap.String("url", rawURL))

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		log.Debug("fetcher: skipping invalid url")
		return page
	}

	if c.cache != nil {
		cached, cerr := c.cache.GetCachedPage(ctx, rawURL, c.opts.CacheTTL)
		if cerr != nil {
			log.Warn("fetcher: cache lookup failed", zap.Error(cerr))
		} else if cached != nil {
			cached.FromCache = true
			return *cached
		}
	}

	lim := c.limiterFor(strings.ToLower(u.Host))
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    c.opts.MaxAttempts,
		InitialBackoff: c.opts.RetryBackoff,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.25,
		OnRetry:        resilience.RetryLogger("crawler", "fetch"),
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*response, error) {
		return c.fetchOnce(ctx, lim, rawURL)
	})
	if err != nil {
		var te *resilience.TransientError
		if errors.As(err, &te) {
			page.StatusCode = te.StatusCode
		}
		log.Warn("fetcher: fetch failed", zap.Int("status", page.StatusCode), zap.Error(err))
		return page
	}

	page.StatusCode = resp.status
	page.HTML = decodeBody(resp.body, resp.contentType)
	page.Text = ExtractText(page.HTML)

	if blocked, kind := DetectBlock(resp.status, resp.header, resp.body); blocked {
		log.Info("fetcher: blocked page", zap.String("block", string(kind)))
		return page
	}

	if page.OK() && c.cache != nil {
		if err := c.cache.SetCachedPage(ctx, page); err != nil {
			log.Warn("fetcher: cache write failed", zap.Error(err))
		}
	}
	return page
}

func (c *Crawler) fetchOnce(ctx context.Context, lim *AdaptiveLimiter, rawURL string) (*response, error) {
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		if resp.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit()
		}
		return nil, resilience.NewTransientError(
			eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	lim.OnSuccess()

	return &response{
		status:      resp.StatusCode,
		header:      resp.Header,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}
