package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-pdf-rewriter/internal/config"
	"github.com/a3tai/mcp-pdf-rewriter/internal/descriptions"
	"github.com/a3tai/mcp-pdf-rewriter/internal/metrics"
	"github.com/a3tai/mcp-pdf-rewriter/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-rewriter/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	registry  *session.Registry
	paths     *security.PathValidator
	mcpServer *server.MCPServer
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance. gatherer may be nil, in which
// case server mode does not expose /metrics.
func NewServer(cfg *config.Config, registry *session.Registry, logger *zap.Logger,
	gatherer prometheus.Gatherer,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	paths, err := security.NewPathValidator(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		registry:  registry,
		paths:     paths,
		mcpServer: mcpServer,
		gatherer:  gatherer,
		logger:    logger.Named("mcp"),
	}

	s.registerTools()

	return s, nil
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session id returned by pdf_session_create"),
	)
}

func idParam() mcp.ToolOption {
	return mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Replacement entry id as shown by pdf_session_state"),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_session_create",
		mcp.WithDescription(descriptions.SessionCreateDescription),
	), s.handleSessionCreate)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_session_close",
		mcp.WithDescription(descriptions.SessionCloseDescription),
		sessionParam(),
	), s.handleSessionClose)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_session_state",
		mcp.WithDescription(descriptions.SessionStateDescription),
		sessionParam(),
	), s.handleSessionState)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_upload",
		mcp.WithDescription(descriptions.UploadDescription),
		sessionParam(),
		mcp.WithString("path",
			mcp.Description("PDF file inside the working directory; relative paths are resolved against it"),
		),
		mcp.WithString("content",
			mcp.Description("Base64 encoded file content, used when path is not given"),
		),
		mcp.WithString("name",
			mcp.Description("File name for inline content"),
		),
		mcp.WithString("mime_type",
			mcp.Description("Declared media type; detected from the name and content when omitted"),
		),
	), s.handleUpload)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_analysis_retry",
		mcp.WithDescription(descriptions.AnalysisRetryDescription),
		sessionParam(),
	), s.handleAnalysisRetry)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_replacement_add",
		mcp.WithDescription(descriptions.ReplacementAddDescription),
		sessionParam(),
		mcp.WithString("original_text",
			mcp.Description("Text to find"),
		),
		mcp.WithString("replacement_text",
			mcp.Description("Text to write instead"),
		),
		mcp.WithBoolean("all_entities",
			mcp.Description("Add one entry per entity found by the analysis"),
		),
	), s.handleReplacementAdd)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_replacement_update",
		mcp.WithDescription(descriptions.ReplacementUpdateDescription),
		sessionParam(),
		idParam(),
		mcp.WithString("replacement_text",
			mcp.Required(),
			mcp.Description("New replacement text"),
		),
	), s.handleReplacementUpdate)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_replacement_edit_original",
		mcp.WithDescription(descriptions.ReplacementEditOriginalDescription),
		sessionParam(),
		idParam(),
		mcp.WithString("original_text",
			mcp.Required(),
			mcp.Description("New text to find"),
		),
	), s.handleReplacementEditOriginal)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_replacement_remove",
		mcp.WithDescription(descriptions.ReplacementRemoveDescription),
		sessionParam(),
		idParam(),
	), s.handleReplacementRemove)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_replacement_suggest",
		mcp.WithDescription(descriptions.ReplacementSuggestDescription),
		sessionParam(),
		idParam(),
	), s.handleReplacementSuggest)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_apply",
		mcp.WithDescription(descriptions.ApplyDescription),
		sessionParam(),
		mcp.WithBoolean("inline",
			mcp.Description("Also return the generated PDF as base64"),
		),
	), s.handleApply)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_reset",
		mcp.WithDescription(descriptions.ResetDescription),
		sessionParam(),
	), s.handleReset)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_error_dismiss",
		mcp.WithDescription(descriptions.ErrorDismissDescription),
		sessionParam(),
	), s.handleErrorDismiss)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.ServerInfoDescription),
	), s.handleServerInfo)
}

// Run starts the MCP server in the configured mode and blocks until ctx is
// done or the transport fails
func (s *Server) Run(ctx context.Context) error {
	defer s.registry.CloseAll()

	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves a single client over stdin and stdout
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting stdio transport", zap.String("work_dir", s.paths.Directory()))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// httpHandler routes the SSE transport and, when a gatherer is configured,
// the /metrics endpoint
func (s *Server) httpHandler(baseURL string) (http.Handler, *server.SSEServer) {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	if s.gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(s.gatherer))
	}
	mux.Handle("/", sse)
	return mux, sse
}

// runServerMode serves MCP over SSE next to the /metrics endpoint
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	handler, sse := s.httpHandler("http://" + addr)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("address", addr), zap.String("work_dir", s.paths.Directory()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down")
		if err := sse.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("sse shutdown", zap.Error(err))
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
