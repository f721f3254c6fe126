// Package http exposes the inbound webhook surface: the subscription
// verification handshake, the receive path, and a liveness endpoint.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/instadm/golang_services/internal/webhook_service/app"
	"github.com/instadm/golang_services/internal/webhook_service/domain"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

// DedupChecker filters repeated deliveries of the same message id.
// Implemented by app.DedupStore; substitutable in tests.
type DedupChecker interface {
	Seen(key string) bool
}

// ReplyScheduler hands reply work off the request path.
// Implemented by app.Dispatcher.
type ReplyScheduler interface {
	Enqueue(job app.DeliveryJob) bool
}

type WebhookHandler struct {
	verifyToken string
	appSecret   string
	replyText   string
	dedup       DedupChecker
	scheduler   ReplyScheduler
	logger      *slog.Logger
}

func NewWebhookHandler(verifyToken, appSecret, replyText string, dedup DedupChecker, scheduler ReplyScheduler, logger *slog.Logger) *WebhookHandler {
	h := &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		replyText:   replyText,
		dedup:       dedup,
		scheduler:   scheduler,
		logger:      logger.With("component", "webhook_handler"),
	}
	if appSecret == "" {
		// Explicit configuration state, never a silent fallback: without an
		// app secret, inbound payloads are not authenticated at all.
		h.logger.Warn("APP_SECRET not configured; X-Hub-Signature-256 verification is DISABLED")
	}
	return h
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Get("/webhook", h.HandleVerify)
	r.Post("/webhook", h.HandleReceive)
	r.Get("/health", h.HandleHealth)
}

// HandleVerify answers the provider's subscription handshake: echo
// hub.challenge when hub.mode is "subscribe" and hub.verify_token matches.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && challenge != "" {
		h.logger.InfoContext(ctx, "Webhook verification handshake accepted")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	h.logger.WarnContext(ctx, "Webhook verification handshake rejected",
		"mode", mode, "token_match", token == h.verifyToken)
	http.Error(w, domain.ErrVerificationRejected.Error(), http.StatusForbidden)
}

// HandleReceive processes one webhook delivery: authenticate, parse, extract,
// dedup, then schedule replies off the request path and acknowledge
// immediately. Delivery failures are never visible to this response.
func (h *WebhookHandler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
		}
		return
	}

	if h.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if err := app.VerifySignature(h.appSecret, rawBody, signature); err != nil {
			logger.WarnContext(ctx, "Webhook signature verification failed", "error", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	} else {
		logger.DebugContext(ctx, "Signature verification skipped, no app secret configured")
	}

	var body map[string]any
	if err := json.Unmarshal(rawBody, &body); err != nil {
		logger.WarnContext(ctx, "Malformed webhook payload", "error", err)
		http.Error(w, domain.ErrMalformedPayload.Error(), http.StatusBadRequest)
		return
	}

	events := app.ExtractTextEvents(body)
	for _, ev := range events {
		if h.dedup.Seen(ev.MessageID) {
			logger.DebugContext(ctx, "Duplicate event suppressed", "message_id", ev.MessageID)
			continue
		}
		h.scheduler.Enqueue(app.DeliveryJob{RecipientID: ev.SenderID, Text: h.replyText})
	}

	logger.InfoContext(ctx, "Webhook delivery processed", "events", len(events))
	writeJSON(w, http.StatusOK, receiveResponse{OK: true, Received: len(events)})
}

// HandleHealth is a liveness probe: unconditionally healthy, no dependencies
// checked.
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true})
}

type receiveResponse struct {
	OK       bool `json:"ok"`
	Received int  `json:"received"`
}

type healthResponse struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
