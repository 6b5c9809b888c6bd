package upstream

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"goflare.io/gridiron/internal/retrier"
)

// DefaultBreakerSettings trips a resource breaker after more than five
// consecutive temporary failures and probes again after thirty seconds.
// Client errors such as 401 or 404 do not count against the breaker.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retrier.IsTemporary(err)
		},
	}
}

func asRequestError(err error, target **RequestError) bool {
	return errors.As(err, target)
}
