// Package ai turns extracted document text into replacement suggestions
// using a generative model.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-rewriter/internal/metrics"
	"github.com/a3tai/mcp-pdf-rewriter/internal/workflow"
)

// DefaultMaxInput caps the characters of document text sent for analysis
const DefaultMaxInput = 30000

// ErrEmptyResponse is returned when the model produced no usable output
var ErrEmptyResponse = errors.New("ai: empty response")

// Request is one prompt for a Generator
type Request struct {
	System string
	Prompt string
	// JSON asks the model for a JSON document
	JSON bool
}

// Generator sends a prompt to a model and returns the text it produced
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Provider is a Generator holding resources that must be released
type Provider interface {
	Generator
	Close() error
}

const analyzeSystemPrompt = "You are a document privacy assistant. You find names, organizations, " +
	"addresses, contact details, identifiers and monetary amounts in document text and propose " +
	"neutral replacements for them. You must output a single valid JSON object."

const analyzeUserPrompt = `Analyze the document text below.

Return a JSON object with exactly these keys:
- "summary": one or two sentences describing the document.
- "entities": an array of objects with the keys "type" (a short category label such as "Organization", "Person", "Email"), "value" (the exact text as it appears in the document) and "suggestion" (a replacement for it).

List each distinct value once, in order of first appearance. Do not include any text before or after the JSON object.

Document text:
`

const rewriteSystemPrompt = "You are a professional editor. You rewrite short passages so they read " +
	"clearly and professionally while keeping their meaning."

const rewriteUserPrompt = `Rewrite the following text professionally. Return ONLY the rewritten text, without quotes, explanations or markdown.

Text:
`

// Analyzer implements document analysis and rewrite suggestions on top of a
// Generator
type Analyzer struct {
	gen      Generator
	maxInput int
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithMaxInput sets the maximum number of characters sent for analysis
func WithMaxInput(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxInput = n
		}
	}
}

// WithMetrics records every model call on m
func WithMetrics(m *metrics.Metrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger sets the logger; nil keeps the no-op default
func WithLogger(l *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer creates an Analyzer backed by gen
func NewAnalyzer(gen Generator, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		gen:      gen,
		maxInput: DefaultMaxInput,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("ai")
	return a
}

type analysisPayload struct {
	Summary  string `json:"summary"`
	Entities []struct {
		Type       string `json:"type"`
		Value      string `json:"value"`
		Suggestion string `json:"suggestion"`
	} `json:"entities"`
}

// Analyze extracts a summary and the replaceable entities of text. Blank
// text, as extracted from scans, yields an empty result without a model call.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*workflow.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		a.logger.Debug("no document text, skipping analysis")
		return &workflow.AnalysisResult{Entities: []workflow.Entity{}}, nil
	}

	input := truncateRunes(text, a.maxInput)
	if len(input) < len(text) {
		a.logger.Debug("analysis input truncated",
			zap.Int("chars", a.maxInput),
			zap.Int("original_bytes", len(text)),
		)
	}

	raw, err := a.call(ctx, "analyze", Request{
		System: analyzeSystemPrompt,
		Prompt: analyzeUserPrompt + input,
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseAnalysis(raw)
	if err != nil {
		a.logger.Warn("unparseable analysis response", zap.Error(err), zap.Int("bytes", len(raw)))
		return nil, err
	}
	return result, nil
}

// SuggestRewrite returns a professional rewrite of text
func (a *Analyzer) SuggestRewrite(ctx context.Context, text string) (string, error) {
	raw, err := a.call(ctx, "rewrite", Request{
		System: rewriteSystemPrompt,
		Prompt: rewriteUserPrompt + text,
	})
	if err != nil {
		return "", err
	}

	suggestion := cleanRewrite(raw)
	if suggestion == "" {
		return "", ErrEmptyResponse
	}
	return suggestion, nil
}

func (a *Analyzer) call(ctx context.Context, op string, req Request) (string, error) {
	start := time.Now()
	raw, err := a.gen.Generate(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		a.metrics.RecordAICall(op, metrics.OutcomeFailure, elapsed)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	a.metrics.RecordAICall(op, metrics.OutcomeSuccess, elapsed)
	a.logger.Debug("model call complete", zap.String("op", op), zap.Duration("elapsed", elapsed))
	return raw, nil
}

// parseAnalysis decodes a model response into an AnalysisResult. Entities
// without a value are dropped.
func parseAnalysis(raw string) (*workflow.AnalysisResult, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, ErrEmptyResponse
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	result := &workflow.AnalysisResult{
		Summary:  strings.TrimSpace(payload.Summary),
		Entities: make([]workflow.Entity, 0, len(payload.Entities)),
	}
	for _, e := range payload.Entities {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		result.Entities = append(result.Entities, workflow.Entity{
			Type:       strings.TrimSpace(e.Type),
			Value:      e.Value,
			Suggestion: e.Suggestion,
		})
	}
	return result, nil
}

// stripFences removes a surrounding markdown code fence
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanRewrite(s string) string {
	s = stripFences(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
