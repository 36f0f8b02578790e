// Package assistant is the HTTP gateway to the assistant backend: chat turns
// (POST /api/chat) and conversation info extraction (POST /api/extract-info).
package assistant

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

	"github.com/wolfman30/lead-chat-agent/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	chatPath    = "/api/chat"
	extractPath = "/api/extract-info"

	defaultUserAgent = "lead-chat-agent/0.1"
	maxErrorBody     = 2048
)

// Config controls how the client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Tracer     trace.Tracer
	UserAgent  string
}

// Client talks to the assistant backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	tracer     trace.Tracer
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("assistant: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("leadchat.internal.assistant")
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		tracer:     tracer,
		userAgent:  userAgent,
	}, nil
}

// Chat sends one visitor message with the current canonical history.
func (c *Client) Chat(ctx context.Context, message string, history []Turn) (*ChatResponse, error) {
	ctx, span := c.tracer.Start(ctx, "assistant.chat")
	defer span.End()
	span.SetAttributes(attribute.Int("history.length", len(history)))

	body, err := json.Marshal(ChatRequest{Message: message, ConversationHistory: CloneHistory(history)})
	if err != nil {
		return nil, fmt.Errorf("assistant: marshal chat request: %w", err)
	}
	data, err := c.invoke(ctx, chatPath, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var resp ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.ConversationHistory == nil {
		resp.ConversationHistory = []Turn{}
	}
	return &resp, nil
}

// ExtractInfo asks the backend to pull contact details out of the history.
// It returns ErrEmptyResult when the call succeeded but nothing usable came back.
func (c *Client) ExtractInfo(ctx context.Context, history []Turn) (*ExtractedInfo, error) {
	ctx, span := c.tracer.Start(ctx, "assistant.extract_info")
	defer span.End()

	body, err := json.Marshal(ExtractRequest{ConversationHistory: CloneHistory(history)})
	if err != nil {
		return nil, fmt.Errorf("assistant: marshal extract request: %w", err)
	}
	data, err := c.invoke(ctx, extractPath, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var resp ExtractResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !resp.Success || !resp.Data.Usable() {
		return nil, ErrEmptyResult
	}
	return &resp.Data, nil
}

func (c *Client) invoke(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("assistant: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
			}
			lastErr = fmt.Errorf("%w: %v", ErrNetwork, err)
			if attempt == c.maxRetries {
				break
			}
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrNetwork, sleepErr)
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: read response: %v", ErrNetwork, readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		perr := &ProtocolError{Path: path, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
		lastErr = perr
		if attempt == c.maxRetries || !perr.IsRetryable() {
			break
		}
		c.logRetry(path, attempt, resp.StatusCode, perr)
		if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, sleepErr)
		}
	}
	return nil, lastErr
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt, status int, err error) {
	c.logger.Warn("assistant: retrying request",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
