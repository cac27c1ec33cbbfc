package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Request is a single-turn prompt.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int // zero uses the configured default
}

// Response is the concatenated text output of a call.
type Response struct {
	Text       string
	Model      string
	StopReason string
	LatencyMs  int64
}

// Client sends prompts to a language model.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

type anthropicClient struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds an Anthropic Messages API client. It fails with a
// *ConfigurationError when the key or model is missing.
func NewClient(cfg Config, logger *slog.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Field: "api_key", Msg: "is not configured"}
	}
	if cfg.Model == "" {
		return nil, &ConfigurationError{Field: "model", Msg: "is required"}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &anthropicClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		logger: logger,
	}, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-200 answer from the provider.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("anthropic returned status %d: %s", e.Status, e.Message)
}

func (e *statusError) retryable() bool {
	return e.Status >= 500 || e.Status == 529
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	maxTok := c.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTok = req.MaxTokens
	}
	body := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTok,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
	}

	var lastErr error
	attempts := 1 + max(c.cfg.MaxRetries, 0)
	for i := 0; i < attempts; i++ {
		resp, err := c.doRequest(ctx, body)
		if err == nil {
			latency := time.Since(start).Milliseconds()
			c.logger.Info("llm call", "model", resp.Model, "latency_ms", latency, "attempt", i+1, "stop_reason", resp.StopReason)
			return &Response{
				Text:       joinText(resp.Content),
				Model:      resp.Model,
				StopReason: resp.StopReason,
				LatencyMs:  latency,
			}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
	}

	c.logger.Warn("llm call failed", "model", c.cfg.Model, "latency_ms", time.Since(start).Milliseconds(), "error", lastErr)
	if ctx.Err() != nil {
		return nil, ErrTimeout
	}
	var se *statusError
	if errors.As(lastErr, &se) {
		switch se.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, se.Message)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, se.Message)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}

func (c *anthropicClient) doRequest(ctx context.Context, body messagesRequest) (*messagesResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &statusError{Status: httpResp.StatusCode, Message: msg}
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

func joinText(blocks []contentBlock) string {
	var b strings.Builder
	for _, blk := range blocks {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}
