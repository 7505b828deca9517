package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, req Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowGenerator) Close() error { return nil }

func TestGuard_PassesThrough(t *testing.T) {
	guard := NewGuard(&fakeGenerator{response: "ok"}, DefaultGuardConfig(), nil)

	got, err := guard.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, "closed", guard.State())
	assert.NoError(t, guard.Close())
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("unavailable")}
	guard := NewGuard(gen, GuardConfig{MaxFailures: 2, Cooldown: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := guard.Generate(context.Background(), Request{})
		require.Error(t, err)
	}
	assert.Equal(t, "open", guard.State())

	_, err := guard.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, gen.requests, 2)
}

func TestGuard_CancellationDoesNotTrip(t *testing.T) {
	guard := NewGuard(slowGenerator{}, GuardConfig{MaxFailures: 1, Cooldown: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", guard.State())
}

func TestGuard_GRPCCancellationDoesNotTrip(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("generate: %w", status.Error(codes.Canceled, "context canceled"))}
	guard := NewGuard(gen, GuardConfig{MaxFailures: 2, Cooldown: time.Minute}, nil)

	for i := 0; i < 5; i++ {
		_, err := guard.Generate(context.Background(), Request{})
		require.Error(t, err)
	}
	assert.Equal(t, "closed", guard.State())
	assert.Len(t, gen.requests, 5)
}

func TestGuard_GRPCFailureTrips(t *testing.T) {
	gen := &fakeGenerator{err: status.Error(codes.Unavailable, "backend down")}
	guard := NewGuard(gen, GuardConfig{MaxFailures: 2, Cooldown: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := guard.Generate(context.Background(), Request{})
		require.Error(t, err)
	}
	assert.Equal(t, "open", guard.State())
}

func TestGuard_Timeout(t *testing.T) {
	guard := NewGuard(slowGenerator{}, GuardConfig{Timeout: 20 * time.Millisecond, MaxFailures: 5}, nil)

	_, err := guard.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	guard := NewGuard(&fakeGenerator{response: "ok"}, GuardConfig{RPM: 1}, nil)

	_, err := guard.Generate(context.Background(), Request{})
	require.NoError(t, err)

	// the single token is spent; the next call would wait about a minute
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = guard.Generate(ctx, Request{})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "bogus"}, nil)
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), Config{Provider: ProviderOpenAI}, nil)
	assert.Error(t, err, "base URL is required")

	guard, err := NewProvider(context.Background(), Config{
		Provider: ProviderOpenAI,
		BaseURL:  "http://localhost:1",
	}, nil)
	require.NoError(t, err)
	assert.NoError(t, guard.Close())

	_, err = NewProvider(context.Background(), Config{Provider: ProviderVertex}, nil)
	assert.Error(t, err, "project and region are required")
}
