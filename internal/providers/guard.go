package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/stocktide/stocktide/internal/config"
	"github.com/stocktide/stocktide/internal/errs"
)

// Guard wraps calls to one external provider with a token-bucket rate limit,
// a circuit breaker, a per-call timeout and bounded rate-limit retries.
type Guard struct {
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	retries int
}

// NewGuard builds a guard from provider configuration.
func NewGuard(name string, cfg config.ProviderConfig) *Guard {
	settings := gobreaker.Settings{Name: name}
	settings.Interval = 60 * time.Second
	settings.Timeout = 60 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}

	return &Guard{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
		retries: cfg.Retries,
	}
}

// Name returns the guarded provider's name.
func (g *Guard) Name() string { return g.name }

// Do runs fn under the guard. Rate-limited calls back off and retry up to the
// configured budget; every other failure is classified as provider
// unavailability so callers can degrade the affected component.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := 250 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait for %s: %w", g.name, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		_, err := g.breaker.Execute(func() (any, error) {
			return nil, fn(callCtx)
		})
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return errs.ProviderUnavailable(g.name, err)
		}
		if errs.IsRetryable(err) && attempt < g.retries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			continue
		}
		if errs.IsRetryable(err) {
			// Retry budget exhausted; defer to the next cycle.
			return err
		}
		return errs.ProviderUnavailable(g.name, err)
	}
}

// Guards bundles one guard per provider channel.
type Guards struct {
	Platform  *Guard
	News      *Guard
	Econ      *Guard
	Price     *Guard
	Sentiment *Guard
}

// NewGuards builds the full guard set from configuration.
func NewGuards(cfg config.ProvidersConfig) *Guards {
	return &Guards{
		Platform:  NewGuard("platform", cfg.Platform),
		News:      NewGuard("news", cfg.News),
		Econ:      NewGuard("econ", cfg.Econ),
		Price:     NewGuard("price", cfg.Price),
		Sentiment: NewGuard("sentiment", cfg.Sentiment),
	}
}
