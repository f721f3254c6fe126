package graphapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instadm/golang_services/internal/webhook_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:     serverURL,
		APIVersion:  "v24.0",
		AccessToken: "test-token",
		BackoffBase: time.Millisecond,
		BackoffCap:  4 * time.Millisecond,
	}, nil, testLogger())
}

func TestClient_SendText_Success(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message_id":"mid.1"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendText(context.Background(), "u1", "Got it ✅")
	require.NoError(t, err)

	assert.Equal(t, "/v24.0/me/messages", gotPath)
	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "RESPONSE", gotBody["messaging_type"])
	assert.Equal(t, map[string]any{"id": "u1"}, gotBody["recipient"])
	assert.Equal(t, map[string]any{"text": "Got it ✅"}, gotBody["message"])
}

func TestClient_SendText_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendText(context.Background(), "u1", "hi")

	assert.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "one retry after the rate limit response")
}

func TestClient_SendText_ExhaustsAttemptsOn500(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendText(context.Background(), "u1", "hi")
	require.Error(t, err)

	assert.Equal(t, int32(5), calls.Load(), "exactly five attempts, no sixth")

	var deliveryErr *domain.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, http.StatusInternalServerError, deliveryErr.StatusCode)
	assert.Equal(t, 5, deliveryErr.Attempts)
}

func TestClient_SendText_PermanentRejectionDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"Invalid OAuth access token"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendText(context.Background(), "u1", "hi")
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load(), "non-retryable status must fail on the first attempt")

	var deliveryErr *domain.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, http.StatusForbidden, deliveryErr.StatusCode)
	assert.False(t, deliveryErr.Transient)
	assert.Contains(t, deliveryErr.Body, "Invalid OAuth access token")
}

func TestClient_SendText_RetriesOnTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from the first attempt

	client := newTestClient(server.URL)
	err := client.SendText(context.Background(), "u1", "hi")
	require.Error(t, err)

	var deliveryErr *domain.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, 5, deliveryErr.Attempts)
}

func TestClient_SendText_CancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:     server.URL,
		APIVersion:  "v24.0",
		AccessToken: "test-token",
		BackoffBase: 10 * time.Second,
	}, nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.SendText(ctx, "u1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, domain.RetryableStatus(429))
	assert.True(t, domain.RetryableStatus(500))
	assert.True(t, domain.RetryableStatus(503))
	assert.False(t, domain.RetryableStatus(400))
	assert.False(t, domain.RetryableStatus(403))
	assert.False(t, domain.RetryableStatus(404))
	assert.False(t, domain.RetryableStatus(200))
}
