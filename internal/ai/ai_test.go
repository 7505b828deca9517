package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-rewriter/internal/metrics"
	"github.com/a3tai/mcp-pdf-rewriter/internal/workflow"
)

// fakeGenerator replays canned responses and records requests
type fakeGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	requests []Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.response, f.err
}

func (f *fakeGenerator) Close() error { return nil }

func (f *fakeGenerator) last() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestAnalyzer_Analyze(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"summary": " An invoice. ",
		"entities": [
			{"type": "Organization", "value": "Acme Corp", "suggestion": "Client A"},
			{"type": "Email", "value": "  ", "suggestion": "dropped"}
		]
	}`}
	analyzer := NewAnalyzer(gen, WithMetrics(metrics.New(prometheus.NewRegistry())))

	result, err := analyzer.Analyze(context.Background(), "Invoice for Acme Corp")
	require.NoError(t, err)

	assert.Equal(t, "An invoice.", result.Summary)
	assert.Equal(t, []workflow.Entity{
		{Type: "Organization", Value: "Acme Corp", Suggestion: "Client A"},
	}, result.Entities)

	req := gen.last()
	assert.True(t, req.JSON)
	assert.Contains(t, req.Prompt, "Invoice for Acme Corp")
	assert.NotEmpty(t, req.System)
}

func TestAnalyzer_AnalyzeFencedJSON(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"entities\": []}\n```"}
	analyzer := NewAnalyzer(gen)

	result, err := analyzer.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Entities)
}

func TestAnalyzer_AnalyzeTruncatesInput(t *testing.T) {
	gen := &fakeGenerator{response: `{"entities": []}`}
	analyzer := NewAnalyzer(gen, WithMaxInput(4))

	_, err := analyzer.Analyze(context.Background(), "héllo world")
	require.NoError(t, err)

	prompt := gen.last().Prompt
	assert.True(t, len(prompt) > 0)
	assert.Contains(t, prompt, "héll")
	assert.NotContains(t, prompt, "héllo")
}

func TestAnalyzer_AnalyzeBlankText(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("must not be called")}
	analyzer := NewAnalyzer(gen)

	result, err := analyzer.Analyze(context.Background(), " \n\t ")
	require.NoError(t, err)
	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Entities)
	assert.Empty(t, gen.requests)
}

func TestAnalyzer_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want error
	}{
		{name: "generator failure", gen: &fakeGenerator{err: errors.New("boom")}},
		{name: "empty response", gen: &fakeGenerator{response: "  "}, want: ErrEmptyResponse},
		{name: "not json", gen: &fakeGenerator{response: "I cannot help with that"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnalyzer(tt.gen).Analyze(context.Background(), "text")
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestAnalyzer_SuggestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{name: "plain", response: "Dear client,", want: "Dear client,"},
		{name: "quoted", response: `"Dear client,"`, want: "Dear client,"},
		{name: "fenced", response: "```\nDear client,\n```", want: "Dear client,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{response: tt.response}
			got, err := NewAnalyzer(gen).SuggestRewrite(context.Background(), "hey u")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.False(t, gen.last().JSON)
			assert.Contains(t, gen.last().Prompt, "hey u")
		})
	}
}

func TestAnalyzer_SuggestRewriteEmpty(t *testing.T) {
	_, err := NewAnalyzer(&fakeGenerator{response: `""`}).SuggestRewrite(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"{}":                   "{}",
		"```json\n{}\n```":     "{}",
		"```\n{}\n```":         "{}",
		"  ```json{}```  ":     "{}",
		"```markdown\nhi\n```": "hi",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripFences(in), "input %q", in)
	}
}
