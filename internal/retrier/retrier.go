package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff multiplies the delay by the factor after every attempt.
// LinearBackoff grows the delay by the base delay after every attempt.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy defines how the delay between attempts grows.
type BackoffStrategy int

// Settings configures a Retrier.
type Settings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
	Strategy    BackoffStrategy
	// Retryable decides whether an error deserves another attempt.
	// IsTemporary is used when nil.
	Retryable func(error) bool
}

// Retrier runs a function until it succeeds, fails permanently or runs out of attempts.
type Retrier struct {
	settings Settings
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetrier validates settings and creates a Retrier.
func NewRetrier(s Settings) (*Retrier, error) {
	if s.MaxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if s.MaxAttempts > 1 {
		if s.BaseDelay < minBaseDelay {
			return nil, ErrInvalidBaseDelay
		}
		if s.Factor < minFactor {
			return nil, ErrInvalidFactor
		}
	}
	if s.Jitter < 0 || s.Jitter > maxJitter {
		return nil, ErrInvalidJitter
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = time.Duration(math.MaxInt64)
	}
	if s.Retryable == nil {
		s.Retryable = IsTemporary
	}
	return &Retrier{settings: s, sleep: sleepContext}, nil
}

// MaxAttempts returns the configured attempt budget.
func (r *Retrier) MaxAttempts() int {
	return r.settings.MaxAttempts
}

// Run calls fn until it returns nil, a non-retryable error, or the attempts run out.
// With a single attempt the error from fn is returned unwrapped.
func (r *Retrier) Run(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < r.settings.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !r.settings.Retryable(err) || attempt == r.settings.MaxAttempts-1 {
			break
		}
		if sleepErr := r.sleep(ctx, r.delay(attempt)); sleepErr != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, err)
		}
	}
	if r.settings.MaxAttempts > 1 && r.settings.Retryable(err) {
		return fmt.Errorf("max retry attempts reached: %w", err)
	}
	return err
}

// delay computes the wait before the attempt following attempt.
func (r *Retrier) delay(attempt int) time.Duration {
	s := r.settings
	var d float64
	switch s.Strategy {
	case LinearBackoff:
		d = float64(s.BaseDelay) * float64(attempt+1)
	default:
		d = float64(s.BaseDelay) * math.Pow(s.Factor, float64(attempt))
	}
	if d > float64(s.MaxDelay) {
		d = float64(s.MaxDelay)
	}
	d += rand.Float64() * s.Jitter * d
	if d > float64(time.Hour) {
		d = float64(time.Hour)
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
