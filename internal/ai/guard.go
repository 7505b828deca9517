package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GuardConfig bounds the calls made through a Guard
type GuardConfig struct {
	// RPM - requests per minute (0 = unlimited)
	RPM int
	// Timeout applied to every call (0 = none)
	Timeout time.Duration
	// MaxFailures - consecutive failures before the breaker opens
	MaxFailures uint32
	// Cooldown - how long the breaker stays open
	Cooldown time.Duration
}

// DefaultGuardConfig returns the limits used when none are configured
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:     60 * time.Second,
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}
}

// Guard wraps a Provider with a rate limiter, a per-call timeout and a
// circuit breaker
type Guard struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	timeout time.Duration
}

// NewGuard wraps inner
func NewGuard(inner Provider, cfg GuardConfig, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultGuardConfig().MaxFailures
	}

	g := &Guard{
		inner:   inner,
		timeout: cfg.Timeout,
	}

	if cfg.RPM > 0 {
		burst := cfg.RPM / 10
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), burst)
	}

	maxFailures := cfg.MaxFailures
	g.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "ai",
		Timeout: cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || cancelled(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return g
}

// cancelled reports whether err stems from the caller giving up, either
// directly or as the gRPC status the Vertex client reports. Such failures say
// nothing about the health of the model.
func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
}

// Generate implements Generator
func (g *Guard) Generate(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	return g.breaker.Execute(func() (string, error) {
		return g.inner.Generate(ctx, req)
	})
}

// State reports the breaker state, e.g. "closed" or "open"
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// Close releases the wrapped provider
func (g *Guard) Close() error {
	return g.inner.Close()
}
