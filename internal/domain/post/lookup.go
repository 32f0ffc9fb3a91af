package post

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/boardhub/boardhub-api/internal/pkg/breaker"
)

// Lookup reads posts behind a circuit breaker
type Lookup struct {
	repo    Repository
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewLookup creates a guarded post lookup
func NewLookup(repo Repository, timeout time.Duration, cfg breaker.Config) *Lookup {
	cfg.Name = "post-lookup"
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrPostNotFound)
	}
	return &Lookup{repo: repo, cb: breaker.New(cfg), timeout: timeout}
}

// Get returns the post, or (nil, nil) when it does not exist
func (l *Lookup) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	p, err := breaker.Call(l.cb, func() (*Post, error) {
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}
		return l.repo.GetByID(ctx, id)
	})
	if errors.Is(err, ErrPostNotFound) {
		return nil, nil
	}
	return p, err
}
