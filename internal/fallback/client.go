// Package fallback talks to the remote backend that handles requests the
// local model is not confident about.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/themobileprof/textclass/internal/config"
	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

// ErrRemoteUnavailable wraps every failure to get an answer from the backend.
var ErrRemoteUnavailable = errors.New("remote backend unavailable")

// ClassifyRequest is the body sent to the backend
type ClassifyRequest struct {
	Text      string `json:"text"`
	RequestID string `json:"request_id,omitempty"`
}

// ClassifyResponse is the backend's reply
type ClassifyResponse struct {
	Success   bool                `json:"success"`
	Result    models.RemoteResult `json:"result"`
	Message   string              `json:"message,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// errRejected marks a well-formed reply with success=false; it is not retried.
var errRejected = errors.New("backend reported failure")

// statusError carries a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("backend returned status %d", e.code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Client is an HTTP client for the remote backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

var _ interfaces.RemoteClassifier = (*Client)(nil)

// New creates a client from config. With a token URL set, requests carry
// an OAuth2 client-credentials bearer token that is fetched and refreshed
// automatically.
func New(cfg config.FallbackConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("fallback endpoint not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: httpClient,
		maxRetries: cfg.MaxRetries,
		backoff:    200 * time.Millisecond,
		logger:     logger,
	}, nil
}

// Classify sends text to the backend, retrying transient failures
func (c *Client) Classify(ctx context.Context, requestID, text string) (*models.RemoteResult, error) {
	body, err := json.Marshal(ClassifyRequest{Text: text, RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		result, err := c.classifyOnce(ctx, requestID, body)
		if err == nil {
			return result, nil
		}

		var se *statusError
		retryable := !errors.Is(err, errRejected) && (!errors.As(err, &se) || se.retryable())
		if !retryable || attempt >= c.maxRetries || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}

		c.logger.Warn("remote classify failed, retrying",
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, ctx.Err())
		case <-time.After(delay):
			delay *= 2
		}
	}
}

func (c *Client) classifyOnce(ctx context.Context, requestID string, body []byte) (*models.RemoteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	var out ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Success {
		if out.Message != "" {
			return nil, fmt.Errorf("%w: %s", errRejected, out.Message)
		}
		return nil, errRejected
	}
	return &out.Result, nil
}

// Ping checks the backend's /health endpoint
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	return nil
}
