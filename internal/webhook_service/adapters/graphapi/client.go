// Package graphapi implements the outbound reply client against the Graph
// Send API: POST /{version}/me/messages with recipient.id addressing.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/instadm/golang_services/internal/webhook_service/domain"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = 1 * time.Second
	defaultBackoffCap  = 20 * time.Second
	defaultTimeout     = 15 * time.Second

	// Provider error bodies are captured into the delivery error for logs,
	// truncated so a misbehaving endpoint cannot flood them.
	maxErrorBodyBytes = 512
)

// Config carries the client settings. Zero values for MaxAttempts and the
// backoff fields fall back to the production defaults (5 attempts, 1s base
// doubling to a 20s cap); tests shrink them.
type Config struct {
	BaseURL     string
	APIVersion  string
	AccessToken string
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

type Client struct {
	logger      *slog.Logger
	httpClient  *http.Client
	sendURL     string
	accessToken string
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	return &Client{
		logger:      logger.With("component", "graphapi_client"),
		httpClient:  httpClient,
		sendURL:     fmt.Sprintf("%s/%s/me/messages", cfg.BaseURL, cfg.APIVersion),
		accessToken: cfg.AccessToken,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
	}
}

type sendMessageRequest struct {
	MessagingType string          `json:"messaging_type"`
	Recipient     recipientRef    `json:"recipient"`
	Message       sendMessageBody `json:"message"`
}

type recipientRef struct {
	ID string `json:"id"`
}

type sendMessageBody struct {
	Text string `json:"text"`
}

// SendText delivers one reply, retrying with capped exponential backoff on
// 429 and 5xx responses and on transport errors. Any other non-2xx status is
// a permanent rejection surfaced immediately. Exhausting all attempts is
// terminal for this message: nothing re-queues it later.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		MessagingType: "RESPONSE",
		Recipient:     recipientRef{ID: recipientID},
		Message:       sendMessageBody{Text: text},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	reqURL := c.sendURL + "?" + url.Values{"access_token": {c.accessToken}}.Encode()

	backoff := c.backoffBase
	var lastErr *domain.DeliveryError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, body, err := c.attempt(ctx, reqURL, payload)
		if err != nil {
			// Transport-level failure: no status to classify, treated as
			// transient the same as a 5xx.
			c.logger.WarnContext(ctx, "Send attempt failed",
				"attempt", attempt, "recipient_id", recipientID, "error", err)
			lastErr = &domain.DeliveryError{Transient: true, Attempts: attempt, Body: err.Error()}
		} else if status >= 200 && status < 300 {
			c.logger.InfoContext(ctx, "Reply sent",
				"recipient_id", recipientID, "status_code", status, "attempts", attempt)
			return nil
		} else if domain.RetryableStatus(status) {
			c.logger.WarnContext(ctx, "Send attempt rejected with retryable status",
				"attempt", attempt, "recipient_id", recipientID, "status_code", status)
			lastErr = &domain.DeliveryError{StatusCode: status, Transient: true, Attempts: attempt, Body: body}
		} else {
			c.logger.ErrorContext(ctx, "Send rejected permanently",
				"recipient_id", recipientID, "status_code", status, "body", body)
			return &domain.DeliveryError{StatusCode: status, Attempts: attempt, Body: body}
		}

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("send canceled during backoff: %w", ctx.Err())
		}
		backoff = min(backoff*2, c.backoffCap)
	}

	c.logger.ErrorContext(ctx, "Send exhausted all attempts",
		"recipient_id", recipientID, "attempts", c.maxAttempts, "last_status", lastErr.StatusCode)
	return lastErr
}

// attempt issues one HTTP call and returns the status plus a truncated
// response body for non-2xx outcomes.
func (c *Client) attempt(ctx context.Context, reqURL string, payload []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return resp.StatusCode, string(snippet), nil
}
