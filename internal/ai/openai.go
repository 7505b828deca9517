package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOpenAIModel is used when no model is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator calls an OpenAI compatible chat completions endpoint
type OpenAIGenerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIGenerator creates a generator for baseURL, e.g.
// https://api.openai.com/v1
func NewOpenAIGenerator(baseURL, apiKey, model string, client *http.Client) (*OpenAIGenerator, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("NewOpenAIGenerator: base URL cannot be empty")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &OpenAIGenerator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  client,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Generate implements Generator
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	chat := chatRequest{
		Model:       g.model,
		Temperature: 0.2,
	}
	if req.System != "" {
		chat.Messages = append(chat.Messages, chatMessage{Role: "system", Content: req.System})
	}
	chat.Messages = append(chat.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		chat.Temperature = 0
		chat.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(chat)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close implements Provider
func (g *OpenAIGenerator) Close() error {
	return nil
}
