package breaker

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Config for a lookup circuit breaker
type Config struct {
	Name        string
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
	// IsSuccessful reports errors that should not count as failures,
	// e.g. a row that does not exist. Nil counts every error.
	IsSuccessful func(err error) bool
}

// New creates a circuit breaker that opens after MaxFailures consecutive
// failures and logs every state change
func New(cfg Config) *gobreaker.CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}
	if cfg.IsSuccessful != nil {
		st.IsSuccessful = cfg.IsSuccessful
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Call runs fn through cb and returns its typed result
func Call[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}
