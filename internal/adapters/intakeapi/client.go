package intakeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// DefaultTimeout покрывает разбор жалобы моделью на стороне API.
const DefaultTimeout = 70 * time.Second

// Client ходит в REST API приёма обращений от имени бота.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// APIError ответ API со статусом не 2xx.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("intake api: status=%d detail=%s", e.StatusCode, e.Detail)
}

// SubmitRequest тело POST /submit-issue/.
type SubmitRequest struct {
	Text           string                  `json:"text"`
	Kind           domain.SubmissionKind   `json:"submission_type_by_user"`
	Source         domain.SubmissionSource `json:"source"`
	SourceUserID   string                  `json:"source_user_id"`
	SourceUsername *string                 `json:"source_username,omitempty"`
	UserFirstName  *string                 `json:"user_first_name,omitempty"`
}

// SubmitResult ответ на приём обращения.
type SubmitResult struct {
	SavedRecordID      int64                   `json:"saved_record_id"`
	Status             domain.SubmissionStatus `json:"status"`
	Analysis           *domain.Analysis        `json:"analysis"`
	LLMProcessingError *string                 `json:"llm_processing_error"`
	Message            string                  `json:"message"`
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SubmitIssue отправляет обращение гражданина.
func (c *Client) SubmitIssue(ctx context.Context, in SubmitRequest) (SubmitResult, error) {
	var out SubmitResult
	if err := c.do(ctx, "submit_issue", http.MethodPost, "/submit-issue/", nil, in, &out); err != nil {
		return SubmitResult{}, err
	}
	return out, nil
}

// ListUserIssues возвращает страницу обращений гражданина из указанного
// канала. limit <= 0 оставляет размер страницы на усмотрение сервера.
func (c *Client) ListUserIssues(ctx context.Context, source domain.SubmissionSource, userID string, skip, limit int) ([]domain.Submission, error) {
	query := url.Values{}
	query.Set("source", source.String())
	query.Set("source_user_id", userID)
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out []domain.Submission
	if err := c.do(ctx, "list_user_issues", http.MethodGet, "/issues/", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddFeedback сохраняет отзыв гражданина о решении.
func (c *Client) AddFeedback(ctx context.Context, id int64, feedback string) (domain.Submission, error) {
	var out domain.Submission
	body := map[string]string{"user_feedback_on_resolution": feedback}
	if err := c.do(ctx, "add_feedback", http.MethodPost, fmt.Sprintf("/issue/%d/feedback", id), nil, body, &out); err != nil {
		return domain.Submission{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("intake_api", op, c.baseURL.Host, start, err)
		return fmt.Errorf("intake api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
		metrics.ObserveNetworkRequest("intake_api", op, c.baseURL.Host, start, apiErr)
		return apiErr
	}
	metrics.ObserveNetworkRequest("intake_api", op, c.baseURL.Host, start, nil)

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)
	if strings.HasSuffix(endpoint, "/") && !strings.HasSuffix(resolved.Path, "/") {
		resolved.Path += "/"
	}
	if query != nil {
		resolved.RawQuery = query.Encode()
	}
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// errorDetail достаёт detail из тела ошибки: строку, поле message объекта
// или начало сырого ответа.
func errorDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Detail, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		return truncate(string(body.Detail), 200)
	}
	return truncate(strings.TrimSpace(string(data)), 200)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
