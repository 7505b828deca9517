package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-rewriter/internal/ai"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// AI providers
	ProviderVertex = ai.ProviderVertex
	ProviderOpenAI = ai.ProviderOpenAI

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	DefaultMaxSessions = 32

	DefaultAIProvider = ProviderOpenAI
	DefaultAIBaseURL  = "https://api.openai.com/v1"
	DefaultAIRegion   = "us-central1"
	DefaultAITimeout  = 60 * time.Second
	DefaultAIMaxInput = 30000

	envPrefix = "PDF_REWRITER"
)

// ErrVersionRequested is returned by LoadFromFlags when --version was given
var ErrVersionRequested = errors.New("version requested")

// AIConfig selects the model provider used for analysis and rewrites
type AIConfig struct {
	Provider string
	Model    string
	// Vertex AI
	Project         string
	Region          string
	CredentialsFile string // service account key, ADC when empty
	// OpenAI compatible endpoint
	BaseURL string
	APIKey  string

	Timeout  time.Duration
	RPM      int // requests per minute, 0 = unlimited
	MaxInput int // characters of document text sent for analysis
}

// Config holds all configuration for the PDF rewriter server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// WorkDir holds the PDFs read by path and receives rewritten documents
	WorkDir string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
	MaxSessions int

	// KeepTextOnFailure keeps the extracted text of a failed analysis so it
	// can be retried without uploading again
	KeepTextOnFailure bool

	AI AIConfig
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:        ModeStdio,
		Host:        DefaultHost,
		Port:        DefaultPort,
		WorkDir:     currentDir,
		Version:     "1.0.0",
		ServerName:  "mcp-pdf-rewriter",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
		MaxSessions: DefaultMaxSessions,
		AI: AIConfig{
			Provider: DefaultAIProvider,
			BaseURL:  DefaultAIBaseURL,
			Region:   DefaultAIRegion,
			Timeout:  DefaultAITimeout,
			MaxInput: DefaultAIMaxInput,
		},
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.WorkDir != "" {
		if expandedPath, err := filepath.Abs(cfg.WorkDir); err == nil {
			cfg.WorkDir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.WorkDir)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("max-sessions", cfg.MaxSessions)
	viper.SetDefault("keep-text-on-failure", cfg.KeepTextOnFailure)
	viper.SetDefault("ai-provider", cfg.AI.Provider)
	viper.SetDefault("ai-model", cfg.AI.Model)
	viper.SetDefault("ai-project", cfg.AI.Project)
	viper.SetDefault("ai-region", cfg.AI.Region)
	viper.SetDefault("ai-credentials-file", cfg.AI.CredentialsFile)
	viper.SetDefault("ai-base-url", cfg.AI.BaseURL)
	viper.SetDefault("ai-api-key", cfg.AI.APIKey)
	viper.SetDefault("ai-timeout", cfg.AI.Timeout)
	viper.SetDefault("ai-rpm", cfg.AI.RPM)
	viper.SetDefault("ai-max-input", cfg.AI.MaxInput)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.WorkDir, "Working directory for input PDFs and rewritten output")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("max-sessions", cfg.MaxSessions, "Maximum number of open sessions")
	pflag.Bool("keep-text-on-failure", cfg.KeepTextOnFailure,
		"Keep extracted text when analysis fails so it can be retried")
	pflag.String("ai-provider", cfg.AI.Provider, "AI provider: 'vertex' or 'openai'")
	pflag.String("ai-model", cfg.AI.Model, "Model name (provider default when empty)")
	pflag.String("ai-project", cfg.AI.Project, "Google Cloud project (vertex)")
	pflag.String("ai-region", cfg.AI.Region, "Vertex AI region (vertex)")
	pflag.String("ai-credentials-file", cfg.AI.CredentialsFile,
		"Service account key file (vertex, Application Default Credentials when empty)")
	pflag.String("ai-base-url", cfg.AI.BaseURL, "Chat completions base URL (openai)")
	pflag.String("ai-api-key", cfg.AI.APIKey, "API key (openai)")
	pflag.Duration("ai-timeout", cfg.AI.Timeout, "Timeout of a single AI call")
	pflag.Int("ai-rpm", cfg.AI.RPM, "AI requests per minute (0 = unlimited)")
	pflag.Int("ai-max-input", cfg.AI.MaxInput, "Maximum characters of document text sent for analysis")
}

var flagKeys = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize", "max-sessions",
	"keep-text-on-failure", "ai-provider", "ai-model", "ai-project", "ai-region",
	"ai-credentials-file", "ai-base-url", "ai-api-key", "ai-timeout", "ai-rpm", "ai-max-input",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Rewriter - A Model Context Protocol server for AI assisted PDF text replacement\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                                  "+
			"# stdio mode, OpenAI\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --ai-provider=vertex --ai-project=my-project         "+
			"# stdio mode, Gemini on Vertex AI\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081              "+
			"# SSE server with /metrics\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every option can be set as %s_<OPTION>, e.g. %s_AI_API_KEY\n", envPrefix, envPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.WorkDir = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.MaxSessions = viper.GetInt("max-sessions")
	cfg.KeepTextOnFailure = viper.GetBool("keep-text-on-failure")

	cfg.AI.Provider = viper.GetString("ai-provider")
	cfg.AI.Model = viper.GetString("ai-model")
	cfg.AI.Project = viper.GetString("ai-project")
	cfg.AI.Region = viper.GetString("ai-region")
	cfg.AI.CredentialsFile = viper.GetString("ai-credentials-file")
	cfg.AI.BaseURL = viper.GetString("ai-base-url")
	cfg.AI.APIKey = viper.GetString("ai-api-key")
	cfg.AI.Timeout = viper.GetDuration("ai-timeout")
	cfg.AI.RPM = viper.GetInt("ai-rpm")
	cfg.AI.MaxInput = viper.GetInt("ai-max-input")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// the directory may not exist yet; it is created on first write
	if c.WorkDir == "" {
		return errors.New("working directory cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.MaxSessions <= 0 {
		return errors.New("maximum sessions must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return c.AI.Validate()
}

// Validate checks the provider settings
func (a AIConfig) Validate() error {
	switch a.Provider {
	case ProviderVertex:
		if a.Project == "" || a.Region == "" {
			return errors.New("vertex provider requires ai-project and ai-region")
		}
	case ProviderOpenAI:
		if a.BaseURL == "" {
			return errors.New("openai provider requires ai-base-url")
		}
	default:
		return fmt.Errorf("invalid AI provider: %s (must be one of: vertex, openai)", a.Provider)
	}

	if a.Timeout < 0 {
		return errors.New("AI timeout cannot be negative")
	}
	if a.RPM < 0 {
		return errors.New("AI requests per minute cannot be negative")
	}
	if a.MaxInput <= 0 {
		return errors.New("AI max input must be positive")
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The API key
// is never printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, WorkDir: %s, LogLevel: %s, MaxFileSize: %d, "+
		"MaxSessions: %d, KeepTextOnFailure: %t, AIProvider: %s, AIModel: %s}",
		c.Mode, c.Host, c.Port, c.WorkDir, c.LogLevel, c.MaxFileSize,
		c.MaxSessions, c.KeepTextOnFailure, c.AI.Provider, c.AI.Model)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
