package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"interviewprep/internal/config"
)

// Completion is the explicit result of an LLM call. Degraded replaces the
// null-on-error convention of the gateway: the orchestrator decides from the
// type whether to abort or degrade, never from a falsy value.
type Completion struct {
	Text     string
	Degraded bool
	Reason   string
}

// LLMClient talks to an OpenAI-compatible chat-completions gateway.
type LLMClient struct {
	client      *http.Client
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewLLMClient(cfg config.LLMConfig, logger *zap.Logger) *LLMClient {
	return &LLMClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Complete sends the prompt and always returns a Completion; gateway errors
// degrade the result instead of failing the caller.
func (c *LLMClient) Complete(ctx context.Context, prompt string) Completion {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return c.degraded(fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return c.degraded(fmt.Sprintf("failed to create HTTP request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return c.degraded(fmt.Sprintf("failed to send HTTP request: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.degraded(fmt.Sprintf("failed to read response body: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		return c.degraded(fmt.Sprintf("gateway returned non-200 status: %d", resp.StatusCode))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return c.degraded(fmt.Sprintf("failed to unmarshal response JSON: %v", err))
	}
	if chatResp.Error != nil {
		return c.degraded(fmt.Sprintf("gateway error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return c.degraded("no choices returned")
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return c.degraded("empty completion text")
	}

	return Completion{Text: text}
}

func (c *LLMClient) degraded(reason string) Completion {
	c.logger.Warn("LLM completion degraded", zap.String("reason", reason))
	return Completion{Degraded: true, Reason: reason}
}
