// Package openai talks to any OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/document-insights/internal/infrastructure/resilience"
)

const provider = "openai"

var errNoChoices = errors.New("chat completion returned no choices")

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	payload := chatRequest{Model: c.model, Messages: messages, MaxTokens: req.MaxTokens}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	out, err := resilience.Call(ctx, c.executor, "openai_chat_completion", func(ctx context.Context) (string, error) {
		var resp chatResponse
		if err := llmhttp.PostJSON(ctx, c.httpClient, llmhttp.Request{
			Provider:  provider,
			Operation: "chat completion",
			URL:       c.baseURL + "/chat/completions",
			Headers:   headers,
			Payload:   payload,
		}, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errNoChoices
		}
		return resp.Choices[0].Message.Content, nil
	}, llmhttp.Classify)
	if err != nil {
		return "", llmhttp.ToDomain("openai chat completion", err)
	}
	return strings.TrimSpace(out), nil
}
