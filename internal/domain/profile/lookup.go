package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/boardhub/boardhub-api/internal/pkg/breaker"
)

// Lookup reads profiles behind a circuit breaker with a per-call timeout.
// A missing profile does not count against the breaker.
type Lookup struct {
	repo    Repository
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewLookup creates a guarded profile lookup
func NewLookup(repo Repository, timeout time.Duration, cfg breaker.Config) *Lookup {
	cfg.Name = "profile-lookup"
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrProfileNotFound)
	}
	return &Lookup{repo: repo, cb: breaker.New(cfg), timeout: timeout}
}

// Get returns the profile, ErrProfileNotFound, or a store/breaker error
func (l *Lookup) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return breaker.Call(l.cb, func() (*Profile, error) {
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}
		return l.repo.GetByUserID(ctx, userID)
	})
}
