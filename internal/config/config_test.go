package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "mcp-pdf-rewriter", cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, DefaultMaxSessions, cfg.MaxSessions)
	assert.False(t, cfg.KeepTextOnFailure)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)

	currentDir, _ := os.Getwd()
	assert.Equal(t, currentDir, cfg.WorkDir)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "server mode", mutate: func(c *Config) { c.Mode = ModeServer }},
		{name: "stdio ignores port", mutate: func(c *Config) { c.Port = 0 }},
		{name: "bad mode", mutate: func(c *Config) { c.Mode = "http" }, wantErr: "mode must be"},
		{name: "server port", mutate: func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }, wantErr: "port must be"},
		{name: "empty dir", mutate: func(c *Config) { c.WorkDir = "" }, wantErr: "working directory"},
		{name: "file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "file size"},
		{name: "sessions", mutate: func(c *Config) { c.MaxSessions = -1 }, wantErr: "sessions"},
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "DEBUG" }, wantErr: "invalid log level"},
		{
			name:   "vertex",
			mutate: func(c *Config) { c.AI.Provider = ProviderVertex; c.AI.Project = "p" },
		},
		{
			name:    "vertex without region",
			mutate:  func(c *Config) { c.AI.Provider = ProviderVertex; c.AI.Project = "p"; c.AI.Region = "" },
			wantErr: "ai-region",
		},
		{name: "openai without url", mutate: func(c *Config) { c.AI.BaseURL = "" }, wantErr: "ai-base-url"},
		{name: "negative timeout", mutate: func(c *Config) { c.AI.Timeout = -time.Second }, wantErr: "timeout"},
		{name: "negative rpm", mutate: func(c *Config) { c.AI.RPM = -1 }, wantErr: "per minute"},
		{name: "max input", mutate: func(c *Config) { c.AI.MaxInput = 0 }, wantErr: "max input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigValidateDoesNotCreateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "non-existent", "pdfs")
	cfg := DefaultConfig()
	cfg.WorkDir = dir

	assert.NoError(t, cfg.Validate())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "localhost"
	cfg.Port = 9000
	cfg.AI.APIKey = "sk-secret"

	assert.Equal(t, "localhost:9000", cfg.Address())
	assert.True(t, cfg.IsStdioMode())
	assert.False(t, cfg.IsServerMode())
	assert.False(t, cfg.IsDebug())
	assert.NotContains(t, cfg.String(), "sk-secret")
	assert.Contains(t, cfg.String(), "Port: 9000")

	cfg.Mode = ModeServer
	cfg.LogLevel = "debug"
	assert.True(t, cfg.IsServerMode())
	assert.True(t, cfg.IsDebug())
}
