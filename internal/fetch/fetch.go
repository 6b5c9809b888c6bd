// Package fetch loads provider feeds through the TTL cache and normalizes them.
package fetch

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/gridiron/internal/cache/ttl"
	"goflare.io/gridiron/internal/normalize"
	"goflare.io/gridiron/internal/upstream"
)

// DefaultSeason is used when a caller passes an empty season.
const DefaultSeason = "2025"

// DefaultSharedTimeout bounds an upstream call shared by coalesced callers.
const DefaultSharedTimeout = 30 * time.Second

// TTLs holds the freshness window of each feed.
type TTLs struct {
	Schedule    time.Duration
	TeamStats   time.Duration
	PlayerStats time.Duration
}

// DefaultTTLs returns the standard freshness windows.
func DefaultTTLs() TTLs {
	return TTLs{
		Schedule:    90 * time.Second,
		TeamStats:   120 * time.Second,
		PlayerStats: 120 * time.Second,
	}
}

// Source performs upstream requests.
type Source interface {
	Fetch(ctx context.Context, res upstream.Resource, season string, query url.Values) (any, error)
}

// Recorder counts cache outcomes per feed.
type Recorder interface {
	CacheHit(resource string)
	CacheMiss(resource string)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)  {}
func (nopRecorder) CacheMiss(string) {}

// Fetcher serves schedule, team stats and player stats for a season.
type Fetcher struct {
	cache         *ttl.Cache
	source        Source
	group         singleflight.Group
	singleFlight  bool
	sharedTimeout time.Duration
	ttls          TTLs
	defaultSeason string
	recorder      Recorder
	tracer        trace.Tracer
	logger        *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTTLs overrides the per-feed freshness windows. Zero fields keep their default.
func WithTTLs(t TTLs) Option {
	return func(f *Fetcher) {
		if t.Schedule > 0 {
			f.ttls.Schedule = t.Schedule
		}
		if t.TeamStats > 0 {
			f.ttls.TeamStats = t.TeamStats
		}
		if t.PlayerStats > 0 {
			f.ttls.PlayerStats = t.PlayerStats
		}
	}
}

// WithSingleFlight toggles coalescing of concurrent misses for the same key.
func WithSingleFlight(enabled bool) Option {
	return func(f *Fetcher) {
		f.singleFlight = enabled
	}
}

// WithSharedTimeout bounds the coalesced upstream call.
func WithSharedTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.sharedTimeout = d
		}
	}
}

// WithDefaultSeason sets the season used for empty requests.
func WithDefaultSeason(season string) Option {
	return func(f *Fetcher) {
		if season = strings.TrimSpace(season); season != "" {
			f.defaultSeason = season
		}
	}
}

// WithRecorder registers a cache outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.recorder = r
		}
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher reading through cache from source.
func New(cache *ttl.Cache, source Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		cache:         cache,
		source:        source,
		singleFlight:  true,
		sharedTimeout: DefaultSharedTimeout,
		ttls:          DefaultTTLs(),
		defaultSeason: DefaultSeason,
		recorder:      nopRecorder{},
		tracer:        otel.Tracer("gridiron/fetch"),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Schedule returns the games of season, optionally limited to one week.
func (f *Fetcher) Schedule(ctx context.Context, season, week string) ([]normalize.ScheduleGame, error) {
	week = strings.TrimSpace(week)
	if strings.EqualFold(week, ttl.AllSelector) {
		week = ""
	}
	var query url.Values
	if week != "" {
		query = url.Values{"week": {week}}
	}
	return load(ctx, f, request[[]normalize.ScheduleGame]{
		resource:  upstream.Schedule,
		season:    f.season(season),
		selector:  week,
		ttl:       f.ttls.Schedule,
		query:     query,
		normalize: normalize.Schedule,
		clone:     normalize.CloneRecords,
	})
}

// TeamStats returns the per-team season totals of every team.
func (f *Fetcher) TeamStats(ctx context.Context, season string) ([]normalize.TeamStat, error) {
	return load(ctx, f, request[[]normalize.TeamStat]{
		resource:  upstream.TeamStats,
		season:    f.season(season),
		selector:  ttl.AllSelector,
		ttl:       f.ttls.TeamStats,
		normalize: normalize.TeamStats,
		clone:     normalize.CloneTeams,
	})
}

// PlayerStats returns the season totals of one player, or of every player
// when player is empty or "all".
func (f *Fetcher) PlayerStats(ctx context.Context, season, player string) ([]normalize.PlayerStat, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		player = ttl.AllSelector
	}
	var query url.Values
	if player != ttl.AllSelector {
		query = url.Values{"player": {player}}
	}
	return load(ctx, f, request[[]normalize.PlayerStat]{
		resource:  upstream.PlayerStats,
		season:    f.season(season),
		selector:  player,
		ttl:       f.ttls.PlayerStats,
		query:     query,
		normalize: normalize.PlayerStats,
		clone:     normalize.CloneRecords,
	})
}

func (f *Fetcher) season(season string) string {
	if season = strings.TrimSpace(season); season != "" {
		return season
	}
	return f.defaultSeason
}

type request[T any] struct {
	resource  upstream.Resource
	season    string
	selector  string
	ttl       time.Duration
	query     url.Values
	normalize func(any) T
	// clone copies cached records before they leave the fetcher.
	clone func(T) T
}

// load serves req from the cache or, on a miss, from the source. Failures are
// never cached. Callers always receive a copy of the cached records.
func load[T any](ctx context.Context, f *Fetcher, req request[T]) (T, error) {
	var zero T
	key := ttl.KeyFor(string(req.resource), req.season, req.selector)

	ctx, span := f.tracer.Start(ctx, "fetch."+string(req.resource), trace.WithAttributes(
		attribute.String("cache.key", key),
	))
	defer span.End()

	if cached, ok := f.cache.Get(ctx, key); ok {
		if records, ok := cached.(T); ok {
			f.recorder.CacheHit(string(req.resource))
			span.SetAttributes(attribute.Bool("cache.hit", true))
			f.logger.Debug("cache hit", zap.String("key", key))
			return req.clone(records), nil
		}
		f.logger.Warn("cached value has unexpected type", zap.String("key", key))
	}
	f.recorder.CacheMiss(string(req.resource))
	span.SetAttributes(attribute.Bool("cache.hit", false))
	f.logger.Debug("cache miss", zap.String("key", key))

	miss := func(ctx context.Context) (any, error) {
		payload, err := f.source.Fetch(ctx, req.resource, req.season, req.query)
		if err != nil {
			return nil, err
		}
		records := req.normalize(payload)
		if err := f.cache.Set(ctx, key, records, req.ttl); err != nil {
			f.logger.Warn("failed to cache records", zap.String("key", key), zap.Error(err))
		}
		return records, nil
	}

	var (
		value any
		err   error
	)
	if f.singleFlight {
		value, err = f.shared(ctx, key, miss)
	} else {
		value, err = miss(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}
	return req.clone(value.(T)), nil
}

// shared runs miss once per key for all concurrent callers. The shared call is
// detached from any single caller's cancellation and bounded by sharedTimeout;
// each caller still stops waiting when its own ctx is done.
func (f *Fetcher) shared(ctx context.Context, key string, miss func(context.Context) (any, error)) (any, error) {
	ch := f.group.DoChan(key, func() (any, error) {
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.sharedTimeout)
		defer cancel()
		return miss(detached)
	})

	select {
	case res := <-ch:
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("singleflight.shared", res.Shared))
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
