// internal/common/llm/openai.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonerrors "grounded-qa/internal/common/errors"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/common/metrics"
)

// OpenAIConfig holds settings for the chat-completions client.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// OpenAIClient calls an OpenAI-compatible chat-completions endpoint. One
// attempt per request; failures surface as UPSTREAM_ERROR without retry.
type OpenAIClient struct {
	config *OpenAIConfig
	client *http.Client
	logger logger.Logger
}

func NewOpenAIClient(config *OpenAIConfig, log logger.Logger) *OpenAIClient {
	return &OpenAIClient{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.WithFields(map[string]interface{}{
			"component": "llm-client",
			"model":     config.Model,
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	start := time.Now()

	text, err := c.generate(ctx, prompt, opts)
	if err != nil {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.LLMRequests.WithLabelValues("success").Inc()
	c.logger.Debug("generation completed", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
		"replyChars": len(text),
	})
	return text, nil
}

func (c *OpenAIClient) generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var messages []chatMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}

	body, _ := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})

	url := strings.TrimRight(c.config.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", commonerrors.NewUpstreamError("llm-client", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", commonerrors.NewUpstreamError("llm-client", err)
	}
	defer resp.Body.Close()

	var apiResponse chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", commonerrors.NewUpstreamError("llm-client", fmt.Errorf("decode response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Errorf("status %d", resp.StatusCode)
		if apiResponse.Error != nil {
			detail = fmt.Errorf("status %d: %s (%s)", resp.StatusCode, apiResponse.Error.Message, apiResponse.Error.Type)
		}
		return "", commonerrors.NewUpstreamError("llm-client", detail)
	}

	if len(apiResponse.Choices) == 0 {
		return "", commonerrors.NewUpstreamError("llm-client", fmt.Errorf("response carried no choices"))
	}

	text := strings.TrimSpace(apiResponse.Choices[0].Message.Content)
	if text == "" {
		return "", commonerrors.NewUpstreamError("llm-client", fmt.Errorf("response text was empty"))
	}

	return text, nil
}
