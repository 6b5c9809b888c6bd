// Package gridiron serves cached MySportsFeeds NFL data and scores matchups
// from season yardage.
package gridiron

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"goflare.io/gridiron/internal/cache/ttl"
	"goflare.io/gridiron/internal/config"
	"goflare.io/gridiron/internal/fetch"
	"goflare.io/gridiron/internal/metrics"
	"goflare.io/gridiron/internal/normalize"
	"goflare.io/gridiron/internal/predict"
	"goflare.io/gridiron/internal/retrier"
	"goflare.io/gridiron/internal/upstream"
)

type (
	TeamStat     = normalize.TeamStat
	ScheduleGame = normalize.ScheduleGame
	PlayerStat   = normalize.PlayerStat
	Prediction   = predict.Result
	Model        = predict.Model
	Config       = config.Config
)

// Option 定義初始化 Service 的選項接口
type Option = config.Option

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return config.WithLogger(logger)
}

// WithAPIKey sets the MySportsFeeds API key.
func WithAPIKey(key string) Option {
	return func(cfg *config.Config) error {
		cfg.Upstream.APIKey = key
		return nil
	}
}

// WithBaseURL points the client at another API root.
func WithBaseURL(baseURL string) Option {
	return func(cfg *config.Config) error {
		cfg.Upstream.BaseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config.Config) error {
		cfg.Upstream.HTTPClient = client
		return nil
	}
}

// WithRateLimit limits provider requests per second. Zero disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *config.Config) error {
		cfg.Upstream.RateLimit = rps
		cfg.Upstream.RateBurst = burst
		return nil
	}
}

// WithRetry sets the retry policy for temporary provider failures.
func WithRetry(settings retrier.Settings) Option {
	return func(cfg *config.Config) error {
		cfg.Upstream.Retry = settings
		return nil
	}
}

// WithShardCount 設置分片數量
func WithShardCount(shardCount uint64) Option {
	return config.WithShardCount(shardCount)
}

// WithDefaultExpiration 設置默認的過期時間
func WithDefaultExpiration(ttl time.Duration) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.DefaultTTL = ttl
		return nil
	}
}

// WithTTLs sets the per-feed freshness windows.
func WithTTLs(ttls fetch.TTLs) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.TTLs = ttls
		return nil
	}
}

// WithMaxEntries bounds the cache with a ristretto store. Zero keeps the
// unbounded sharded map.
func WithMaxEntries(n int64) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.MaxEntries = n
		return nil
	}
}

// WithCleanupInterval runs a janitor that purges stale entries every interval.
func WithCleanupInterval(interval time.Duration) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.CleanupInterval = interval
		return nil
	}
}

// WithSingleFlight toggles coalescing of concurrent identical misses.
func WithSingleFlight(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.SingleFlight = enabled
		return nil
	}
}

// WithModel sets the scorer constants.
func WithModel(m Model) Option {
	return func(cfg *config.Config) error {
		cfg.Model = m
		return nil
	}
}

// WithClock sets the cache clock.
func WithClock(now func() time.Time) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.Now = now
		return nil
	}
}

// FromEnv reads settings from the process environment.
func FromEnv() Option {
	return config.FromEnv()
}

// Service 定義 gridiron 的主要結構體
type Service struct {
	cfg     *config.Config
	cache   *ttl.Cache
	client  *upstream.Client
	fetcher *fetch.Fetcher
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New 初始化 Service，接受多個配置選項
func New(ctx context.Context, opts ...Option) (*Service, error) {
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	logger := cfg.Logger

	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}
	cacheOpts := []ttl.Option{
		ttl.WithDefaultTTL(cfg.Cache.DefaultTTL),
		ttl.WithLogger(logger.Named("cache")),
	}
	if cfg.Cache.Now != nil {
		cacheOpts = append(cacheOpts, ttl.WithClock(cfg.Cache.Now))
	}
	cache := ttl.New(store, cacheOpts...)

	collector := metrics.NewCollector()
	if err := collector.RegisterCache(cache.Metrics); err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to register cache metrics: %w", err)
	}

	retry, err := retrier.NewRetrier(cfg.Upstream.Retry)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	clientOpts := []upstream.ClientOption{
		upstream.WithBaseURL(cfg.Upstream.BaseURL),
		upstream.WithAPIKey(cfg.Upstream.APIKey),
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithRateLimit(cfg.Upstream.RateLimit, cfg.Upstream.RateBurst),
		upstream.WithBreakerSettings(cfg.Upstream.CircuitBreaker),
		upstream.WithRetrier(retry),
		upstream.WithDecoder(cfg.Serialization.Decoder),
		upstream.WithObserver(collector),
		upstream.WithLogger(logger.Named("upstream")),
	}
	if cfg.Upstream.HTTPClient != nil {
		clientOpts = append(clientOpts, upstream.WithHTTPClient(cfg.Upstream.HTTPClient))
	}
	client := upstream.NewClient(clientOpts...)

	fetcher := fetch.New(cache, client,
		fetch.WithTTLs(cfg.Cache.TTLs),
		fetch.WithSingleFlight(cfg.Cache.SingleFlight),
		fetch.WithDefaultSeason(cfg.DefaultSeason),
		fetch.WithRecorder(collector),
		fetch.WithLogger(logger.Named("fetch")),
	)

	cache.StartJanitor(ctx, cfg.Cache.CleanupInterval)

	s := &Service{
		cfg:     cfg,
		cache:   cache,
		client:  client,
		fetcher: fetcher,
		metrics: collector,
		logger:  logger,
	}

	if len(cfg.Cache.WarmupSeasons) > 0 {
		s.Warmup(ctx, cfg.Cache.WarmupSeasons...)
	}

	logger.Info("gridiron service initialized",
		zap.String("provider", cfg.Provider),
		zap.String("baseURL", cfg.Upstream.BaseURL),
		zap.Bool("apiKeySet", cfg.Upstream.APIKey != ""),
		zap.Int64("maxEntries", cfg.Cache.MaxEntries),
		zap.Bool("singleFlight", cfg.Cache.SingleFlight))

	return s, nil
}

func newStore(cfg *config.Config, logger *zap.Logger) (ttl.Store, error) {
	if cfg.Cache.MaxEntries > 0 {
		return ttl.NewRistrettoStore(cfg.Cache.MaxEntries, logger.Named("ristretto"))
	}
	return ttl.NewMemoryStore(cfg.Cache.ShardCount), nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.cfg
}

// Metrics returns the Prometheus collector of the service.
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// GetSchedule returns the season schedule, optionally for one week.
func (s *Service) GetSchedule(ctx context.Context, season, week string) ([]ScheduleGame, error) {
	return s.fetcher.Schedule(ctx, season, week)
}

// GetTeamStats returns season team totals, limited to one team when team is set.
func (s *Service) GetTeamStats(ctx context.Context, season, team string) ([]TeamStat, error) {
	teams, err := s.fetcher.TeamStats(ctx, season)
	if err != nil {
		return nil, err
	}
	return normalize.FilterTeams(teams, team), nil
}

// GetPlayerStats returns season player totals for one player or for all.
func (s *Service) GetPlayerStats(ctx context.Context, season, player string) ([]PlayerStat, error) {
	return s.fetcher.PlayerStats(ctx, season, player)
}

// Predict scores home against away. Unknown teams yield an even split with a
// diagnostic note rather than an error.
func (s *Service) Predict(ctx context.Context, home, away, season string) (Prediction, error) {
	home = strings.ToUpper(strings.TrimSpace(home))
	away = strings.ToUpper(strings.TrimSpace(away))
	if home == "" || away == "" {
		return Prediction{}, ErrValidation
	}

	teams, err := s.fetcher.TeamStats(ctx, season)
	if err != nil {
		return Prediction{}, err
	}

	homeStats, homeOK := normalize.FindTeam(teams, home)
	awayStats, awayOK := normalize.FindTeam(teams, away)
	if !homeOK || !awayOK {
		s.logger.Warn("prediction falls back to even odds",
			zap.String("home", home),
			zap.String("away", away),
			zap.Bool("homeFound", homeOK),
			zap.Bool("awayFound", awayOK),
			zap.Error(ErrMissingTeamData))
	}

	result := predict.Score(home, away, homeStats, awayStats, s.cfg.Model)
	s.metrics.ObservePrediction(result.Neutral())
	return result, nil
}

// Warmup loads team stats for seasons ahead of traffic and returns how many
// seasons failed.
func (s *Service) Warmup(ctx context.Context, seasons ...string) int {
	return s.fetcher.Warmup(ctx, seasons...)
}

// Close 關閉 Service，釋放資源
func (s *Service) Close() error {
	return s.cache.Close()
}
