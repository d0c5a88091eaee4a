// Package client provides the gallery API client: an authenticated JSON
// transport with pacing, retry and throttle handling, the session store,
// and factories for the paginated endpoint engines.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Sternrassler/mako-go/pkg/endpoints"
	"github.com/Sternrassler/mako-go/pkg/model"
	"github.com/Sternrassler/mako-go/pkg/ratelimit"
	"github.com/Sternrassler/mako-go/pkg/session"
)

// Prometheus metrics for client operations.
var (
	makoRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mako_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	makoRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mako_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	makoErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mako_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Client is the gallery API client. It implements engine.Fetcher.
type Client struct {
	http         *resty.Client
	limiter      *rate.Limiter
	throttle     *ratelimit.Tracker
	sessions     *session.Store
	auth         Authenticator
	refreshGroup singleflight.Group
	comparators  model.Comparators
	retryPolicy  RetryPolicy
	config       Config
	logger       zerolog.Logger
	now          func() time.Time

	mu     sync.Mutex
	root   context.Context
	cancel context.CancelFunc
	closed bool
}

// Config holds the client configuration.
type Config struct {
	// Redis shares throttle state between processes. Optional; state is
	// kept in memory when nil.
	Redis *redis.Client

	// BaseURL resolves relative locators.
	BaseURL string

	// User-Agent header (REQUIRED by the API)
	UserAgent string

	// Accept-Language header, selects tag translations.
	AcceptLanguage string

	// Pacing
	RateLimit float64 // Requests per second, 0 disables pacing
	Burst     int

	Timeout time.Duration

	// Retry
	MaxRetries  int         // Attempts per request including the first, 0 keeps the per-class default
	RetryPolicy RetryPolicy // Defaults to RetryConfigForErrorClass

	// Session is the initial session. Optional.
	Session *session.Session

	// Authenticator performs login and token refresh. Optional; without it
	// tokens are never refreshed automatically.
	Authenticator Authenticator

	// Comparators resolves sort options. Defaults to model.DefaultComparators.
	Comparators model.Comparators
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:        endpoints.BaseURL,
		UserAgent:      userAgent,
		AcceptLanguage: "en-us",
		RateLimit:      5,
		Burst:          1,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.RateLimit > 0 && cfg.Burst < 1 {
		return nil, fmt.Errorf("burst must be >= 1 when rate_limit is set (got %d)", cfg.Burst)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	logger := log.With().Str("component", "mako-client").Logger()

	var store ratelimit.Store
	if cfg.Redis != nil {
		store = ratelimit.NewRedisStore(cfg.Redis)
	}
	throttle := ratelimit.NewTracker(store, logger.With().Str("subsystem", "throttle").Logger())

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	comparators := cfg.Comparators
	if comparators == nil {
		comparators = model.DefaultComparators()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetHeader("Accept", "application/json")
	if cfg.AcceptLanguage != "" {
		httpClient.SetHeader("Accept-Language", cfg.AcceptLanguage)
	}
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	root, cancel := context.WithCancel(context.Background())
	c := &Client{
		http:        httpClient,
		limiter:     rate.NewLimiter(limit, max(cfg.Burst, 1)),
		throttle:    throttle,
		sessions:    session.NewStore(cfg.Session),
		auth:        cfg.Authenticator,
		comparators: comparators,
		retryPolicy: retryPolicyFor(cfg),
		config:      cfg,
		logger:      logger,
		now:         time.Now,
		root:        root,
		cancel:      cancel,
	}
	httpClient.OnAfterResponse(c.recordResponse)

	return c, nil
}

func retryPolicyFor(cfg Config) RetryPolicy {
	policy := cfg.RetryPolicy
	if policy == nil {
		policy = RetryConfigForErrorClass
	}
	if cfg.MaxRetries == 0 {
		return policy
	}
	return func(class ErrorClass) RetryConfig {
		rc := policy(class)
		rc.MaxAttempts = cfg.MaxRetries
		return rc
	}
}

// FetchJSON requests locator and decodes the JSON body into out. locator is
// either a path relative to the base URL or an absolute continuation URL.
func (c *Client) FetchJSON(ctx context.Context, locator string, out any) error {
	if c.isClosed() {
		return ErrClosed
	}

	endpoint := endpointLabel(locator)

	startTime := time.Now()
	defer func() {
		makoRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.ensureFresh(ctx); err != nil {
		return err
	}

	allowed, err := c.throttle.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Throttle check failed")
		return fmt.Errorf("throttle check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by throttle")
		makoRequestsTotal.WithLabelValues(endpoint, "blocked").Inc()
		return ErrRequestBlocked
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", locator).
		Msg("Executing API request")

	return retryWithBackoff(ctx, c.logger, c.retryPolicy, func() error {
		return c.fetchOnce(ctx, endpoint, locator, out)
	}, classifyError)
}

// fetchOnce performs a single attempt.
func (c *Client) fetchOnce(ctx context.Context, endpoint, locator string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	req := c.http.R().SetContext(ctx)
	if current := c.sessions.Load(); current.LoggedIn() {
		req.SetAuthToken(current.AccessToken)
	}

	resp, err := req.Get(locator)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		makoErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		makoRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return err
	}

	status := resp.StatusCode()
	makoRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()

	if status >= 400 {
		errClass := classifyStatus(status)
		makoErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", status).
			Str("error_class", string(errClass)).
			Msg("API request error")

		apiErr := &APIError{
			StatusCode: status,
			ErrorClass: errClass,
			Message:    resp.Status(),
			URL:        locator,
		}
		if errClass == ErrorClassRateLimit {
			apiErr.RetryAfter = ratelimit.ParseRetryAfter(resp.Header().Get("Retry-After"), c.now())
		}
		return apiErr
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		makoErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return &APIError{
			StatusCode: status,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response",
			URL:        locator,
			Err:        err,
		}
	}

	return nil
}

// recordResponse feeds every response status into the throttle tracker.
func (c *Client) recordResponse(_ *resty.Client, resp *resty.Response) error {
	ctx := resp.Request.Context()
	if err := c.throttle.UpdateFromResponse(ctx, resp.StatusCode(), resp.Header()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update throttle state from response")
	}
	return nil
}

// endpointLabel reduces a locator to its path for metric labels.
func endpointLabel(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *session.Session {
	return c.sessions.Load()
}

// SetSession replaces the current session.
func (c *Client) SetSession(s *session.Session) {
	c.sessions.Replace(s)
}

// ThrottleState returns the shared throttle state.
func (c *Client) ThrottleState(ctx context.Context) (*ratelimit.ThrottleState, error) {
	return c.throttle.GetState(ctx)
}

// Context returns the scope that engines created by this client observe.
// It is cancelled by CancelAll and Close.
func (c *Client) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// CancelAll cancels every enumeration started from engines created so far.
// Engines created afterwards are unaffected.
func (c *Client) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()
	if !c.closed {
		c.root, c.cancel = context.WithCancel(context.Background())
	}
	c.logger.Info().Msg("Cancelled all enumerations")
}

// Close cancels all enumerations and rejects further requests.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
