// Package upstream talks to the MySportsFeeds pull API.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"goflare.io/gridiron/internal/retrier"
	"goflare.io/gridiron/pkg/serialization"
)

const (
	// DefaultBaseURL is the MySportsFeeds v2.1 API root.
	DefaultBaseURL = "https://api.mysportsfeeds.com/v2.1"
	// Password is the fixed basic-auth password; the API key is the username.
	Password = "MYSPORTSFEEDS"
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 15 * time.Second

	league       = "nfl"
	bodyExcerpt  = 512
	defaultRPS   = 5.0
	defaultBurst = 5
)

// Resource names a season feed.
type Resource string

const (
	Schedule    Resource = "schedule"
	TeamStats   Resource = "teamstats"
	PlayerStats Resource = "playerstats"
)

// Resources lists every feed the client knows.
var Resources = []Resource{Schedule, TeamStats, PlayerStats}

// File returns the feed file name under the season path.
func (r Resource) File() string {
	switch r {
	case Schedule:
		return "schedule.json"
	case TeamStats:
		return "team_stats_totals.json"
	case PlayerStats:
		return "player_stats_totals.json"
	default:
		return string(r) + ".json"
	}
}

// Observer receives one call per finished upstream request.
type Observer interface {
	ObserveUpstream(resource string, status int, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, int, time.Duration, error) {}

// Client performs authenticated GETs against the provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   map[Resource]*gobreaker.CircuitBreaker
	retrier    *retrier.Retrier
	decoder    serialization.DecoderFunc
	observer   Observer
	tracer     trace.Tracer
	logger     *zap.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithAPIKey sets the basic-auth username.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit sets client-side rate limiting. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithBreakerSettings installs one circuit breaker per resource built from st.
func WithBreakerSettings(st gobreaker.Settings) ClientOption {
	return func(c *Client) {
		c.breakers = newBreakers(st)
	}
}

// WithRetrier sets the retry policy. The default makes a single attempt.
func WithRetrier(r *retrier.Retrier) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.retrier = r
		}
	}
}

// WithDecoder replaces the response body decoder.
func WithDecoder(dec serialization.DecoderFunc) ClientOption {
	return func(c *Client) {
		if dec != nil {
			c.decoder = dec
		}
	}
}

// WithObserver registers a per-request observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new provider client.
func NewClient(opts ...ClientOption) *Client {
	single, _ := retrier.NewRetrier(retrier.Settings{MaxAttempts: 1})

	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(defaultRPS), defaultBurst),
		breakers: newBreakers(gobreaker.Settings{}),
		retrier:  single,
		decoder:  serialization.JSONDecoder,
		observer: nopObserver{},
		tracer:   otel.Tracer("gridiron/upstream"),
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func newBreakers(st gobreaker.Settings) map[Resource]*gobreaker.CircuitBreaker {
	breakers := make(map[Resource]*gobreaker.CircuitBreaker, len(Resources))
	base := st.Name
	for _, res := range Resources {
		s := st
		s.Name = strings.TrimPrefix(base+"-"+string(res), "-")
		breakers[res] = gobreaker.NewCircuitBreaker(s)
	}
	return breakers
}

// URL returns the feed URL for res and season, without a query string.
func (c *Client) URL(res Resource, season string) string {
	return fmt.Sprintf("%s/pull/%s/%s/%s", c.baseURL, league, url.PathEscape(season+"-regular"), res.File())
}

// Breaker exposes the circuit breaker guarding res.
func (c *Client) Breaker(res Resource) *gobreaker.CircuitBreaker {
	return c.breakers[res]
}

// Fetch issues a GET for res and season and decodes the JSON body into a
// generic value. Every failure is a *RequestError.
func (c *Client) Fetch(ctx context.Context, res Resource, season string, query url.Values) (any, error) {
	endpoint := c.URL(res, season)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "upstream.Fetch", trace.WithAttributes(
		attribute.String("resource", string(res)),
		attribute.String("season", season),
	))
	defer span.End()

	breaker, ok := c.breakers[res]
	if !ok {
		err := &RequestError{Resource: res, URL: endpoint, Err: fmt.Errorf("unknown resource %q", res)}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var payload any
	_, err := breaker.Execute(func() (any, error) {
		return nil, c.retrier.Run(ctx, func(ctx context.Context) error {
			var err error
			payload, err = c.do(ctx, res, endpoint)
			return err
		})
	})
	if err != nil {
		var reqErr *RequestError
		if !asRequestError(err, &reqErr) {
			// Breaker open or half-open quota exhausted.
			err = &RequestError{Resource: res, URL: endpoint, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("upstream request failed",
			zap.String("resource", string(res)),
			zap.String("url", endpoint),
			zap.Error(err))
		return nil, err
	}

	return payload, nil
}

func (c *Client) do(ctx context.Context, res Resource, endpoint string) (payload any, err error) {
	start := time.Now()
	status := 0
	defer func() {
		c.observer.ObserveUpstream(string(res), status, time.Since(start), err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(ctx, res, endpoint, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RequestError{Resource: res, URL: endpoint, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.SetBasicAuth(c.apiKey, Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, res, endpoint, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	c.logger.Debug("upstream response",
		zap.String("resource", string(res)),
		zap.String("url", endpoint),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)))

	if status < 200 || status > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerpt))
		return nil, statusError(res, endpoint, status, strings.TrimSpace(string(excerpt)))
	}

	if err := c.decoder(resp.Body).Decode(&payload); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, &RequestError{Resource: res, URL: endpoint, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return payload, nil
}
