package ai

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Provider names
const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

// Config selects and configures a model provider
type Config struct {
	Provider string
	Model    string
	// Vertex AI
	Project         string
	Region          string
	CredentialsFile string
	// OpenAI compatible
	BaseURL string
	APIKey  string

	Guard GuardConfig
}

// NewProvider builds the configured provider wrapped in a Guard
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*Guard, error) {
	var (
		inner Provider
		err   error
	)

	switch cfg.Provider {
	case ProviderVertex:
		inner, err = NewVertexGenerator(ctx, cfg.Project, cfg.Region, cfg.Model, cfg.CredentialsFile)
	case ProviderOpenAI:
		// per-call deadlines come from the guard
		inner, err = NewOpenAIGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, &http.Client{})
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewGuard(inner, cfg.Guard, logger), nil
}
