package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/wrenware/scribe/internal/httpkit"
)

// Message is one chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI-style completion request shared by all
// three providers.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// responseFormat asks the provider to constrain its output shape.
// Only {"type": "json_object"} is used, for the judge call.
type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the subset of the completion response we consume.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatClient posts chat completions to a provider endpoint. One instance
// serves every provider; per-call state travels in the arguments.
type chatClient struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// newChatClient builds the shared wire client. Providers can think for a
// long while before the first response byte, so the transport gets a
// generous header timeout and the client itself has no overall timeout;
// deadlines come from the caller's context.
func newChatClient(logger *slog.Logger) *chatClient {
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 300 * time.Second

	return &chatClient{
		logger: logger,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// complete performs one chat completion against the given provider and
// returns the assistant message content. Errors are classified per the
// gateway taxonomy and never retried.
func (c *chatClient) complete(ctx context.Context, p Provider, apiKey string, req chatRequest) (string, error) {
	req.Model = p.Model

	payload, err := json.Marshal(req)
	if err != nil {
		return "", protocolErrorf("marshal request: %v", err)
	}

	c.logger.Debug("chat completion request",
		"provider", p.Key,
		"model", p.Model,
		"messages", len(req.Messages),
		"temperature", req.Temperature,
		"max_tokens", req.MaxTokens,
	)
	c.logger.Log(ctx, LevelTrace, "request payload", "provider", p.Key, "json", string(payload))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", protocolErrorf("create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("provider returned error",
			"provider", p.Key, "status", resp.StatusCode, "body", errBody)
		return "", upstreamErrorf("%s returned %d: %s", p.Key, resp.StatusCode, errBody)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", protocolErrorf("decode response from %s: %v", p.Key, err)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", protocolErrorf("response from %s has no choices[0].message.content", p.Key)
	}

	content := parsed.Choices[0].Message.Content
	c.logger.Debug("chat completion response",
		"provider", p.Key,
		"model", parsed.Model,
		"content_len", len(content),
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens,
		"elapsed", time.Since(start),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "provider", p.Key, "content", content)

	return content, nil
}
