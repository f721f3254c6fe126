package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/instadm/golang_services/internal/webhook_service/domain"
)

const signaturePrefix = "sha256="

// VerifySignature checks an X-Hub-Signature-256 header value against the raw
// request body using the shared app secret. The header carries
// "sha256=<hex HMAC-SHA256>". Comparison is constant-time.
//
// Callers decide whether to call this at all: when no app secret is
// configured, signature verification is skipped entirely.
func VerifySignature(appSecret string, rawBody []byte, headerValue string) error {
	if headerValue == "" {
		return domain.ErrMissingSignature
	}
	if !strings.HasPrefix(headerValue, signaturePrefix) {
		return domain.ErrMalformedSignature
	}

	got, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(headerValue, signaturePrefix)))
	if err != nil {
		return domain.ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(rawBody)
	if !hmac.Equal(mac.Sum(nil), got) {
		return domain.ErrSignatureMismatch
	}
	return nil
}
