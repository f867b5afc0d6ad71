// Package search provides a client for the Google Custom Search JSON API.
package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/supervisor-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://www.googleapis.com"
	pageSize       = 10
	maxResultsCap  = 50
)

// Client runs paginated web searches.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type response struct {
	Items []Result `json:"items"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the per-minute request budget and the minimum interval
// between consecutive requests.
func WithRateLimit(perMinute int, minInterval time.Duration) Option {
	return func(c *httpClient) {
		if perMinute > 0 {
			c.budget = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		}
		if minInterval > 0 {
			c.interval = rate.NewLimiter(rate.Every(minInterval), 1)
		}
	}
}

// WithBackoff sets how many times a throttled (429) page request is retried
// and the base delay, doubled on each retry.
func WithBackoff(maxRetries int, base time.Duration) Option {
	return func(c *httpClient) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if base > 0 {
			c.backoffBase = base
		}
	}
}

type httpClient struct {
	apiKey      string
	cx          string
	baseURL     string
	http        *http.Client
	budget      *rate.Limiter
	interval    *rate.Limiter
	maxRetries  int
	backoffBase time.Duration
}

// NewClient creates a Custom Search client for the given API key and
// search engine id.
func NewClient(apiKey, cx string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		cx:      cx,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		budget:      rate.NewLimiter(rate.Every(time.Minute/100), 100),
		interval:    rate.NewLimiter(rate.Every(650*time.Millisecond), 1),
		maxRetries:  3,
		backoffBase: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search returns up to maxResults hits (capped at 50), fetching 10 per page.
// A failure after the first page returns the results collected so far.
func (c *httpClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 || maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	var out []Result
	for start := 1; len(out) < maxResults; start += pageSize {
		num := min(pageSize, maxResults-len(out))
		items, err := c.page(ctx, query, start, num)
		if err != nil {
			if len(out) == 0 {
				return nil, err
			}
			zap.L().Warn("search: stopping pagination",
				zap.String("query", query),
				zap.Int("collected", len(out)),
				zap.Error(err),
			)
			return out, nil
		}
		out = append(out, items...)
		if len(items) < num {
			break
		}
	}
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (c *httpClient) page(ctx context.Context, query string, start, num int) ([]Result, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    c.maxRetries + 1,
		InitialBackoff: c.backoffBase,
		MaxBackoff:     c.backoffBase << c.maxRetries,
		Multiplier:     2,
		ShouldRetry:    resilience.IsRateLimited,
		OnRetry:        resilience.RetryLogger("search", "customsearch"),
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]Result, error) {
		return c.fetchPage(ctx, query, start, num)
	})
}

func (c *httpClient) fetchPage(ctx context.Context, query string, start, num int) ([]Result, error) {
	if err := c.budget.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "search: rate limiter wait")
	}
	if err := c.interval.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "search: rate limiter wait")
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("start", strconv.Itoa(start))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/customsearch/v1?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "search: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "search: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "search: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("search", resp, body)
	}

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "search: unmarshal response")
	}
	return result.Items, nil
}
