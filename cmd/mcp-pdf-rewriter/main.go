package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a3tai/mcp-pdf-rewriter/internal/ai"
	"github.com/a3tai/mcp-pdf-rewriter/internal/config"
	"github.com/a3tai/mcp-pdf-rewriter/internal/mcp"
	"github.com/a3tai/mcp-pdf-rewriter/internal/metrics"
	"github.com/a3tai/mcp-pdf-rewriter/internal/pdf"
	"github.com/a3tai/mcp-pdf-rewriter/internal/session"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newLogger builds the logger for the configured mode. In stdio mode stdout
// carries the MCP protocol, so logs go to stderr and only in debug mode.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zcfg zap.Config
	if cfg.IsStdioMode() {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}

// guardConfig derives the AI call limits from the configuration
func guardConfig(cfg config.AIConfig) ai.GuardConfig {
	guard := ai.DefaultGuardConfig()
	guard.RPM = cfg.RPM
	guard.Timeout = cfg.Timeout
	return guard
}

// buildServer wires the PDF engine, the AI provider and the session registry
// into an MCP server. The returned cleanup releases the AI provider.
func buildServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*mcp.Server, func(), error) {
	pdfService, err := pdf.NewService(cfg.MaxFileSize, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create PDF service: %w", err)
	}

	provider, err := ai.NewProvider(ctx, ai.Config{
		Provider:        cfg.AI.Provider,
		Model:           cfg.AI.Model,
		Project:         cfg.AI.Project,
		Region:          cfg.AI.Region,
		CredentialsFile: cfg.AI.CredentialsFile,
		BaseURL:         cfg.AI.BaseURL,
		APIKey:          cfg.AI.APIKey,
		Guard:           guardConfig(cfg.AI),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AI provider: %w", err)
	}
	cleanup := func() {
		if err := provider.Close(); err != nil {
			logger.Warn("failed to close AI provider", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	analyzer := ai.NewAnalyzer(provider,
		ai.WithMaxInput(cfg.AI.MaxInput),
		ai.WithMetrics(m),
		ai.WithLogger(logger),
	)

	registry := session.NewRegistry(pdfService, analyzer, session.Options{
		KeepTextOnFailure: cfg.KeepTextOnFailure,
		Logger:            logger.Named("session"),
		Metrics:           m,
	}, cfg.MaxSessions)

	server, err := mcp.NewServer(cfg, registry, logger, reg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server, cleanup, nil
}

func run() error {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("starting", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	server, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := server.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Rewriter\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
