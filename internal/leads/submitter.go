package leads

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
)

const submitPath = "/api/leads"

// SubmitterConfig configures the lead intake client.
type SubmitterConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Submitter posts confirmed contact drafts to the lead intake endpoint.
type Submitter struct {
	endpoint   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSubmitter builds a Submitter for baseURL + /api/leads.
func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("leads: submitter base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Submitter{
		endpoint:   baseURL + submitPath,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Submit sends one lead. Any 2xx response counts as success.
func (s *Submitter) Submit(ctx context.Context, req CreateLeadRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("leads: marshal submission: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("leads: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("lead intake rejected submission", "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrSubmitFailed, resp.StatusCode)
	}
	return nil
}
