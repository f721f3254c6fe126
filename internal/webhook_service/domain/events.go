// Package domain holds the core types and error taxonomy of the webhook
// auto-reply service.
package domain

import (
	"errors"
	"fmt"
)

// InboundEvent is one normalized inbound user message extracted from a
// provider webhook envelope. MessageID is the identity key for dedup.
type InboundEvent struct {
	SenderID  string
	MessageID string
	Text      string
}

// Request-path failures, surfaced synchronously as HTTP error responses.
var (
	// ErrUnauthorized is the umbrella for all signature failures; the
	// specific sentinels below wrap it so handlers can match either level.
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingSignature   = fmt.Errorf("%w: missing X-Hub-Signature-256 header", ErrUnauthorized)
	ErrMalformedSignature = fmt.Errorf("%w: invalid X-Hub-Signature-256 format", ErrUnauthorized)
	ErrSignatureMismatch  = fmt.Errorf("%w: webhook signature mismatch", ErrUnauthorized)

	ErrVerificationRejected = errors.New("webhook verification failed")
	ErrMalformedPayload     = errors.New("invalid JSON payload")
)

// DeliveryError is a terminal failure of one outbound send. Transient reports
// whether the last observed status was in the retryable class (429/5xx);
// either way the delivery is over, after Attempts tries.
type DeliveryError struct {
	StatusCode int
	Transient  bool
	Attempts   int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Transient {
		return fmt.Sprintf("send failed after %d attempts: last status %d", e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("send rejected with status %d after %d attempt(s)", e.StatusCode, e.Attempts)
}

// RetryableStatus reports whether an outbound response status should be
// retried: 429 or any 5xx. Everything else non-2xx is a permanent rejection.
func RetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}
