package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/document-insights/internal/infrastructure/resilience"
)

const provider = "ollama"

// Client answers completion requests through Ollama's /api/generate endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	payload := generateRequest{
		Model:   c.model,
		System:  req.System,
		Prompt:  req.User,
		Stream:  false,
		Options: generateOptions{NumPredict: req.MaxTokens},
	}

	out, err := resilience.Call(ctx, c.executor, "ollama_generate", func(ctx context.Context) (string, error) {
		var resp generateResponse
		err := llmhttp.PostJSON(ctx, c.httpClient, llmhttp.Request{
			Provider:  provider,
			Operation: "generate",
			URL:       c.baseURL + "/api/generate",
			Payload:   payload,
		}, &resp)
		return resp.Response, err
	}, llmhttp.Classify)
	if err != nil {
		return "", llmhttp.ToDomain("ollama generate", err)
	}
	return strings.TrimSpace(out), nil
}
