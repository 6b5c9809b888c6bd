// Package config holds service settings and loads them from the environment.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/gridiron/internal/fetch"
	"goflare.io/gridiron/internal/predict"
	"goflare.io/gridiron/internal/retrier"
	"goflare.io/gridiron/internal/upstream"
	"goflare.io/gridiron/pkg/serialization"
)

// ProviderMySportsFeeds is the only supported data provider.
const ProviderMySportsFeeds = "mysportsfeeds"

// Config 用於服務的配置
type Config struct {
	Provider string
	Port     string

	Upstream UpstreamConfig
	Cache    CacheConfig
	Model    predict.Model

	DefaultSeason string
	CORSOrigins   []string

	Serialization SerializationConfig
	Logger        *zap.Logger
}

// UpstreamConfig 上游供應商相關配置
type UpstreamConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	// HTTPClient replaces the default client; Timeout is then ignored.
	HTTPClient *http.Client

	CircuitBreaker gobreaker.Settings
	Retry          retrier.Settings
}

// CacheConfig 緩存相關配置
type CacheConfig struct {
	DefaultTTL      time.Duration
	TTLs            fetch.TTLs
	ShardCount      uint64
	MaxEntries      int64 // > 0 selects the bounded ristretto store
	CleanupInterval time.Duration
	SingleFlight    bool
	WarmupSeasons   []string
	// Now is the cache clock. time.Now when nil.
	Now func() time.Time
}

// SerializationConfig 序列化相關配置
type SerializationConfig struct {
	Type    string
	Encoder serialization.EncoderFunc
	Decoder serialization.DecoderFunc
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrShardCountZero      = errors.New("shard count must be at least 1")
	ErrUnsupportedProvider = errors.New("unsupported data provider")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(options ...Option) (*Config, error) {
	cfg := &Config{
		Provider: ProviderMySportsFeeds,
		Port:     "3000",
		Upstream: UpstreamConfig{
			BaseURL:        upstream.DefaultBaseURL,
			Timeout:        upstream.DefaultTimeout,
			RateLimit:      5,
			RateBurst:      5,
			CircuitBreaker: upstream.DefaultBreakerSettings(),
			Retry: retrier.Settings{
				MaxAttempts: 1,
				BaseDelay:   200 * time.Millisecond,
				MaxDelay:    2 * time.Second,
				Factor:      2,
				Jitter:      0.2,
			},
		},
		Cache: CacheConfig{
			DefaultTTL:   120 * time.Second,
			TTLs:         fetch.DefaultTTLs(),
			ShardCount:   CalculateShardCount(),
			SingleFlight: true,
		},
		Model:         predict.DefaultModel(),
		DefaultSeason: fetch.DefaultSeason,
		CORSOrigins:   []string{"*"},
		Serialization: SerializationConfig{
			Type:    serialization.JSONType,
			Encoder: serialization.JSONEncoder,
			Decoder: serialization.JSONDecoder,
		},
		Logger: zap.NewNop(),
	}

	// 應用所有選項
	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	// 最終檢查
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Provider != ProviderMySportsFeeds {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, c.Provider)
	}
	if c.Cache.ShardCount == 0 {
		return ErrShardCountZero
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if _, err := retrier.NewRetrier(c.Upstream.Retry); err != nil {
		return fmt.Errorf("invalid retry settings: %w", err)
	}
	return nil
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithShardCount 設置分片數量
func WithShardCount(count uint64) Option {
	return func(c *Config) error {
		if count == 0 {
			return ErrShardCountZero
		}
		c.Cache.ShardCount = count
		return nil
	}
}

// FromEnv overlays the process environment on the configuration. Unset
// variables keep their current value; malformed ones are an error.
func FromEnv() Option {
	return FromLookup(os.LookupEnv)
}

// FromLookup is FromEnv over an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) Option {
	return func(c *Config) error {
		env := envReader{lookup: lookup}

		env.text("DATA_PROVIDER", func(v string) { c.Provider = strings.ToLower(v) })
		env.text("PORT", func(v string) { c.Port = v })
		env.text("MSF_BASE_URL", func(v string) { c.Upstream.BaseURL = strings.TrimRight(v, "/") })
		env.text("MSF_API_KEY", func(v string) { c.Upstream.APIKey = v })
		env.text("DEFAULT_SEASON", func(v string) { c.DefaultSeason = v })
		env.list("CORS_ORIGINS", func(v []string) { c.CORSOrigins = v })
		env.list("WARMUP_SEASONS", func(v []string) { c.Cache.WarmupSeasons = v })

		env.seconds("CACHE_TTL_SECS", func(d time.Duration) { c.Cache.DefaultTTL = d })
		env.seconds("SCHEDULE_TTL_SECS", func(d time.Duration) { c.Cache.TTLs.Schedule = d })
		env.seconds("TEAM_STATS_TTL_SECS", func(d time.Duration) { c.Cache.TTLs.TeamStats = d })
		env.seconds("PLAYER_STATS_TTL_SECS", func(d time.Duration) { c.Cache.TTLs.PlayerStats = d })
		env.seconds("CACHE_CLEANUP_SECS", func(d time.Duration) { c.Cache.CleanupInterval = d })
		env.seconds("UPSTREAM_TIMEOUT_SECS", func(d time.Duration) { c.Upstream.Timeout = d })
		env.integer("CACHE_MAX_ENTRIES", func(n int64) { c.Cache.MaxEntries = n })
		env.integer("UPSTREAM_MAX_ATTEMPTS", func(n int64) { c.Upstream.Retry.MaxAttempts = int(n) })
		env.boolean("CACHE_SINGLE_FLIGHT", func(b bool) { c.Cache.SingleFlight = b })

		env.float("UPSTREAM_RATE_LIMIT", func(f float64) { c.Upstream.RateLimit = f })
		env.float("MODEL_YARDS_TO_POINTS", func(f float64) { c.Model.YardsToPoints = f })
		env.float("MODEL_HOME_FIELD_ADV", func(f float64) { c.Model.HomeFieldAdv = f })
		env.float("MODEL_STD", func(f float64) { c.Model.Std = f })

		return errors.Join(env.errs...)
	}
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(name, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", name, value, err))
}

func (e *envReader) text(name string, set func(string)) {
	if v, ok := e.get(name); ok {
		set(v)
	}
}

func (e *envReader) list(name string, set func([]string)) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	set(items)
}

func (e *envReader) float(name string, set func(float64)) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	set(f)
}

func (e *envReader) integer(name string, set func(int64)) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	set(n)
}

func (e *envReader) boolean(name string, set func(bool)) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	set(b)
}

func (e *envReader) seconds(name string, set func(time.Duration)) {
	e.float(name, func(f float64) {
		if f < 0 {
			e.fail(name, strconv.FormatFloat(f, 'f', -1, 64), errors.New("must not be negative"))
			return
		}
		set(time.Duration(f * float64(time.Second)))
	})
}

// CalculateShardCount 計算動態分片數量
func CalculateShardCount() uint64 {
	// 限制分片數量不超過 CPU 核心數的 4 倍
	shards := uint64(runtime.NumCPU() * 4)
	if shards == 0 {
		shards = 1
	}
	return shards
}
