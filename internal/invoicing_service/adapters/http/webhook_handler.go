package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

// SignatureVerifier checks a webhook payload against the provider's
// transmission headers.
type SignatureVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers domain.SignatureHeaders, rawBody []byte) (bool, error)
}

// PaidEventProcessor consumes a signature-verified webhook event.
type PaidEventProcessor interface {
	HandlePaidEvent(ctx context.Context, ev domain.WebhookEvent) error
}

type WebhookHandler struct {
	verifier  SignatureVerifier
	processor PaidEventProcessor
	logger    *slog.Logger
}

func NewWebhookHandler(verifier SignatureVerifier, processor PaidEventProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
		logger:    logger.With("component", "webhook_handler"),
	}
}

// HandleProviderWebhook receives invoice event notifications from the payment
// provider. The provider retries aggressively on anything but a fast 2xx, so
// the handler acknowledges as soon as the body is read and does verification
// and processing afterwards; a rejected or failed event is dropped silently.
func (h *WebhookHandler) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "Method not allowed for webhook", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		if err.Error() == "http: request body too large" {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
		}
		return
	}

	headers := domain.SignatureHeadersFromRequest(r.Header)

	// Acknowledge before any outbound call so slow verification can never
	// push the provider into its retry/disable escalation.
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	var ev domain.WebhookEvent
	if err := json.Unmarshal(rawPayload, &ev); err != nil {
		logger.WarnContext(ctx, "Discarding undecodable webhook payload", "error", err, "payload_size", len(rawPayload))
		return
	}
	logger = logger.With("event_type", ev.EventType, "event_id", ev.ID)

	verified, err := h.verifier.VerifyWebhookSignature(ctx, headers, rawPayload)
	if err != nil {
		logger.ErrorContext(ctx, "Webhook signature verification errored, discarding event", "error", err)
		return
	}
	if !verified {
		logger.WarnContext(ctx, "Webhook signature rejected, discarding event", "remote_addr", r.RemoteAddr)
		return
	}

	if err := h.processor.HandlePaidEvent(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "Error processing webhook event", "error", err)
		return
	}
	logger.InfoContext(ctx, "Webhook event processed")
}
