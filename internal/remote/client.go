package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"trivora/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client is a thin wrapper over the backend REST API. Each method performs exactly
// one HTTP round trip and never retries.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for baseURL authenticating with a bearer token.
func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the raw wire form of domain.APIResponse.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
	Error   string          `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// Ping calls the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/", nil, nil)
}

// RandomQuestion fetches one random question.
func (c *Client) RandomQuestion(ctx context.Context) (domain.Question, error) {
	var q domain.Question
	err := c.do(ctx, "random question", http.MethodGet, "/api/questions/random", nil, &q)
	return q, err
}

// RandomQuestions fetches n random questions.
func (c *Client) RandomQuestions(ctx context.Context, n int) ([]domain.Question, error) {
	var qs []domain.Question
	err := c.do(ctx, "random questions", http.MethodGet, "/api/questions/random/"+strconv.Itoa(n), nil, &qs)
	return qs, err
}

// AllQuestions fetches the whole catalog.
func (c *Client) AllQuestions(ctx context.Context) ([]domain.Question, error) {
	var qs []domain.Question
	err := c.do(ctx, "all questions", http.MethodGet, "/api/questions", nil, &qs)
	return qs, err
}

// Categories fetches the distinct category list.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := c.do(ctx, "categories", http.MethodGet, "/api/questions/categories", nil, &cats)
	return cats, err
}

// QuestionsByCategory fetches the questions of one category.
func (c *Client) QuestionsByCategory(ctx context.Context, category string) ([]domain.Question, error) {
	var qs []domain.Question
	path := "/api/questions/category/" + url.PathEscape(category)
	err := c.do(ctx, "questions by category", http.MethodGet, path, nil, &qs)
	return qs, err
}

// Profile gets or creates the caller's profile.
func (c *Client) Profile(ctx context.Context) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := c.do(ctx, "profile", http.MethodGet, "/api/users/profile", nil, &p)
	return p, err
}

// Stats fetches the caller's aggregate statistics.
func (c *Client) Stats(ctx context.Context) (domain.UserStats, error) {
	var s domain.UserStats
	err := c.do(ctx, "stats", http.MethodGet, "/api/users/stats", nil, &s)
	return s, err
}

// UpdateDisplayName changes the caller's display name.
func (c *Client) UpdateDisplayName(ctx context.Context, name string) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := c.do(ctx, "update display name", http.MethodPut, "/api/users/profile/display-name",
		domain.DisplayNameRequest{DisplayName: name}, &p)
	return p, err
}

// UpdatePushToken registers the device push token.
func (c *Client) UpdatePushToken(ctx context.Context, token string) error {
	return c.do(ctx, "update push token", http.MethodPut, "/api/users/fcm-token",
		domain.PushTokenRequest{FCMToken: token}, nil)
}

// ClearPushToken removes the device push token.
func (c *Client) ClearPushToken(ctx context.Context) error {
	return c.do(ctx, "clear push token", http.MethodDelete, "/api/users/fcm-token", nil, nil)
}

// SubmitResult uploads one completed quiz result.
func (c *Client) SubmitResult(ctx context.Context, req domain.QuizResultRequest) (domain.SubmitResultResponse, error) {
	var out domain.SubmitResultResponse
	err := c.do(ctx, "submit result", http.MethodPost, "/api/quiz-results", req, &out)
	return out, err
}

// History fetches the caller's most recent results.
func (c *Client) History(ctx context.Context, limit int) ([]domain.SubmittedResult, error) {
	var rs []domain.SubmittedResult
	path := "/api/quiz-results/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := c.do(ctx, "history", http.MethodGet, path, nil, &rs)
	return rs, err
}

// ResultsByCategory fetches the caller's results for one category.
func (c *Client) ResultsByCategory(ctx context.Context, category string) ([]domain.SubmittedResult, error) {
	var rs []domain.SubmittedResult
	path := "/api/quiz-results/category/" + url.PathEscape(category)
	err := c.do(ctx, "results by category", http.MethodGet, path, nil, &rs)
	return rs, err
}

// SendTestNotification asks the backend to push a test message to the caller.
func (c *Client) SendTestNotification(ctx context.Context, title, message string) error {
	return c.do(ctx, "send test notification", http.MethodPost, "/api/notifications/send-test",
		domain.TestNotificationRequest{Title: title, Message: message}, nil)
}

// do performs one request and decodes the envelope into out. Every failure is a
// *domain.RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote call failed", zap.String("op", op), zap.Error(err))
		return &domain.RemoteError{Kind: domain.FailureTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Kind: domain.FailureTransport, Op: op, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && env.text() != "" {
			msg = env.text()
		}
		return &domain.RemoteError{Kind: domain.FailureHTTP, Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		// a 2xx body that is not an envelope means the peer is not our backend
		return &domain.RemoteError{Kind: domain.FailureHTTP, Op: op, StatusCode: resp.StatusCode,
			Message: "malformed response", Err: decodeErr}
	}
	if !env.Success {
		msg := env.text()
		if msg == "" {
			msg = "request failed"
		}
		return &domain.RemoteError{Kind: domain.FailureDomain, Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &domain.RemoteError{Kind: domain.FailureHTTP, Op: op, StatusCode: resp.StatusCode,
			Message: "malformed payload", Err: err}
	}
	return nil
}

