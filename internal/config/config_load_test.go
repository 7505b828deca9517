package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envKeys = []string{
	"PDF_REWRITER_MODE",
	"PDF_REWRITER_HOST",
	"PDF_REWRITER_PORT",
	"PDF_REWRITER_DIR",
	"PDF_REWRITER_LOGLEVEL",
	"PDF_REWRITER_MAXFILESIZE",
	"PDF_REWRITER_MAX_SESSIONS",
	"PDF_REWRITER_KEEP_TEXT_ON_FAILURE",
	"PDF_REWRITER_AI_PROVIDER",
	"PDF_REWRITER_AI_PROJECT",
	"PDF_REWRITER_AI_API_KEY",
	"PDF_REWRITER_AI_TIMEOUT",
}

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// Helper function to set os.Args for testing
func setArgs(args []string) {
	os.Args = args
}

// Helper function to clear environment variables
func clearEnvVars() {
	for _, key := range envKeys {
		os.Unsetenv(key)
	}
}

// prepare installs args and a clean flag/env state, restoring both afterwards
func prepare(t *testing.T, args ...string) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	})

	setArgs(append([]string{"mcp-pdf-rewriter"}, args...))
	resetFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	clearEnvVars()
	prepare(t)

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, DefaultMaxFileSize)
	}
	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("LoadFromFlags() MaxSessions = %v, want %v", cfg.MaxSessions, DefaultMaxSessions)
	}
	if cfg.KeepTextOnFailure {
		t.Error("LoadFromFlags() KeepTextOnFailure should default to false")
	}
	if cfg.AI.Provider != ProviderOpenAI || cfg.AI.BaseURL != DefaultAIBaseURL {
		t.Errorf("LoadFromFlags() AI = %+v, want openai defaults", cfg.AI)
	}
	if cfg.AI.Timeout != DefaultAITimeout {
		t.Errorf("LoadFromFlags() AI.Timeout = %v, want %v", cfg.AI.Timeout, DefaultAITimeout)
	}
	if cfg.WorkDir == "" {
		t.Error("LoadFromFlags() WorkDir should not be empty")
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090", "--dir=" + tempDir},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
					t.Errorf("got %s", cfg)
				}
				if cfg.WorkDir != tempDir {
					t.Errorf("WorkDir = %s, want %s", cfg.WorkDir, tempDir)
				}
			},
		},
		{
			name: "debug logging",
			args: []string{"--loglevel=debug"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsDebug() {
					t.Errorf("expected debug, got %s", cfg.LogLevel)
				}
			},
		},
		{
			name: "vertex provider",
			args: []string{"--ai-provider=vertex", "--ai-project=demo", "--ai-model=gemini-1.5-pro"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.AI.Provider != ProviderVertex || cfg.AI.Project != "demo" || cfg.AI.Region != DefaultAIRegion {
					t.Errorf("unexpected AI config %+v", cfg.AI)
				}
				if cfg.AI.Model != "gemini-1.5-pro" {
					t.Errorf("AI.Model = %s", cfg.AI.Model)
				}
			},
		},
		{
			name: "workflow limits",
			args: []string{"--max-sessions=4", "--keep-text-on-failure", "--ai-timeout=15s", "--ai-rpm=30", "--maxfilesize=1024"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.MaxSessions != 4 || !cfg.KeepTextOnFailure || cfg.MaxFileSize != 1024 {
					t.Errorf("got %s", cfg)
				}
				if cfg.AI.Timeout != 15*time.Second || cfg.AI.RPM != 30 {
					t.Errorf("unexpected AI config %+v", cfg.AI)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			prepare(t, tt.args...)

			cfg, err := LoadFromFlags()
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	tempDir := t.TempDir()
	prepare(t)

	t.Setenv("PDF_REWRITER_MODE", "server")
	t.Setenv("PDF_REWRITER_PORT", "3000")
	t.Setenv("PDF_REWRITER_DIR", tempDir)
	t.Setenv("PDF_REWRITER_LOGLEVEL", "warn")
	t.Setenv("PDF_REWRITER_MAX_SESSIONS", "7")
	t.Setenv("PDF_REWRITER_KEEP_TEXT_ON_FAILURE", "true")
	t.Setenv("PDF_REWRITER_AI_API_KEY", "sk-test")
	t.Setenv("PDF_REWRITER_AI_TIMEOUT", "45s")
	t.Setenv("PDF_REWRITER_AI_CREDENTIALS_FILE", "/etc/gcp/key.json")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" || cfg.Port != 3000 || cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() = %s", cfg)
	}
	if cfg.MaxSessions != 7 || !cfg.KeepTextOnFailure {
		t.Errorf("LoadFromFlags() = %s", cfg)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Errorf("LoadFromFlags() AI.APIKey = %q, want sk-test", cfg.AI.APIKey)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Errorf("LoadFromFlags() AI.Timeout = %v", cfg.AI.Timeout)
	}
	if cfg.AI.CredentialsFile != "/etc/gcp/key.json" {
		t.Errorf("LoadFromFlags() AI.CredentialsFile = %q", cfg.AI.CredentialsFile)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	prepare(t, "--mode=stdio", "--port=8888")
	t.Setenv("PDF_REWRITER_MODE", "server")
	t.Setenv("PDF_REWRITER_PORT", "3000")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v (should override env)", cfg.Mode, "stdio")
	}
	if cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "mode", args: []string{"--mode=invalid"}, wantErr: "mode must be either 'stdio' or 'server'"},
		{name: "port", args: []string{"--mode=server", "--port=99999"}, wantErr: "port must be between 1 and 65535"},
		{name: "log level", args: []string{"--loglevel=invalid"}, wantErr: "invalid log level"},
		{name: "provider", args: []string{"--ai-provider=other"}, wantErr: "invalid AI provider"},
		{name: "vertex without project", args: []string{"--ai-provider=vertex"}, wantErr: "requires ai-project"},
		{name: "sessions", args: []string{"--max-sessions=0"}, wantErr: "maximum sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			prepare(t, tt.args...)

			_, err := LoadFromFlags()
			if err == nil {
				t.Fatal("LoadFromFlags() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	clearEnvVars()
	prepare(t, "--version")

	_, err := LoadFromFlags()
	if !errors.Is(err, ErrVersionRequested) {
		t.Errorf("LoadFromFlags() error = %v, want ErrVersionRequested", err)
	}
}
