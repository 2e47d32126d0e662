package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

const (
	defaultEndpoint = "http://localhost:11434/api/generate"
	maxErrorBody    = 1024
)

// Client выполняет запросы к /api/generate.
type Client struct {
	http     *http.Client
	endpoint string
	model    string
	timeout  time.Duration
}

// NewClient создаёт клиента генеративной модели. timeout используется,
// если в запросе не задан свой.
func NewClient(endpoint, model string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		http:     &http.Client{},
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		timeout:  timeout,
	}
}

// GenerateRequest описывает тело запроса.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

// GenerateResponse описывает ответ без стриминга.
type GenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Generate отправляет промпт и возвращает сырой текст ответа модели.
// Сетевые сбои и ответы не 2xx возвращаются как *domain.GenerationError.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := GenerateRequest{Model: c.model, Prompt: req.Prompt, Stream: false}
	if req.JSON {
		payload.Format = "json"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		genErr := &domain.GenerationError{
			Kind:       domain.GenerationStatus,
			StatusCode: resp.StatusCode,
			Endpoint:   c.endpoint,
			Err:        fmt.Errorf("ollama: %s", strings.TrimSpace(string(data))),
		}
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, genErr)
		return "", genErr
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", c.classify(ctx, err)
	}
	var generated GenerateResponse
	if err := json.Unmarshal(respBody, &generated); err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, nil)
	metrics.ObserveLLMGeneration(c.model, time.Since(start), generated.PromptEvalCount, generated.EvalCount)
	return generated.Response, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	kind := domain.GenerationConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.GenerationTimeout
	}
	return &domain.GenerationError{Kind: kind, Endpoint: c.endpoint, Err: err}
}
