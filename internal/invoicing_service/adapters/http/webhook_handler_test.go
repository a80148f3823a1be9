package http_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	adapter_http "github.com/ticketshop/invoicing-gateway/internal/invoicing_service/adapters/http"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
)

type MockSignatureVerifier struct {
	mock.Mock
}

func (m *MockSignatureVerifier) VerifyWebhookSignature(ctx context.Context, headers domain.SignatureHeaders, rawBody []byte) (bool, error) {
	args := m.Called(ctx, headers, rawBody)
	return args.Bool(0), args.Error(1)
}

type MockPaidEventProcessor struct {
	mock.Mock
}

func (m *MockPaidEventProcessor) HandlePaidEvent(ctx context.Context, ev domain.WebhookEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newWebhookHandler(verifier *MockSignatureVerifier, processor *MockPaidEventProcessor) *adapter_http.WebhookHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return adapter_http.NewWebhookHandler(verifier, processor, logger)
}

func signedRequest(payload []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewBuffer(payload))
	req.Header.Set("Paypal-Transmission-Id", "tid-1")
	req.Header.Set("Paypal-Transmission-Time", "2024-03-01T12:00:00Z")
	req.Header.Set("Paypal-Cert-Url", "https://api.paypal.com/cert")
	req.Header.Set("Paypal-Auth-Algo", "SHA256withRSA")
	req.Header.Set("Paypal-Transmission-Sig", "sig-1")
	return req
}

func TestWebhookHandler_VerifiedEventIsProcessed(t *testing.T) {
	verifier := new(MockSignatureVerifier)
	processor := new(MockPaidEventProcessor)
	handler := newWebhookHandler(verifier, processor)

	payload := []byte(`{"id":"WH-1","event_type":"INVOICING.INVOICE.PAID","resource":{"id":"INV2-A"}}`)
	rr := httptest.NewRecorder()

	verifier.On("VerifyWebhookSignature", mock.Anything, mock.MatchedBy(func(h domain.SignatureHeaders) bool {
		return h.TransmissionID == "tid-1" && h.TransmissionSig == "sig-1"
	}), payload).Return(true, nil).Once()
	processor.On("HandlePaidEvent", mock.Anything, mock.MatchedBy(func(ev domain.WebhookEvent) bool {
		return ev.EventType == domain.EventTypeInvoicePaid && ev.Resource.ID == "INV2-A"
	})).Return(nil).Once()

	handler.HandleProviderWebhook(rr, signedRequest(payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	verifier.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestWebhookHandler_RejectedSignatureStillAcksAndDrops(t *testing.T) {
	verifier := new(MockSignatureVerifier)
	processor := new(MockPaidEventProcessor)
	handler := newWebhookHandler(verifier, processor)

	payload := []byte(`{"id":"WH-2","event_type":"INVOICING.INVOICE.PAID","resource":{"id":"INV2-B"}}`)
	rr := httptest.NewRecorder()

	verifier.On("VerifyWebhookSignature", mock.Anything, mock.Anything, payload).Return(false, nil).Once()

	handler.HandleProviderWebhook(rr, signedRequest(payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	processor.AssertNotCalled(t, "HandlePaidEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_VerificationErrorStillAcksAndDrops(t *testing.T) {
	verifier := new(MockSignatureVerifier)
	processor := new(MockPaidEventProcessor)
	handler := newWebhookHandler(verifier, processor)

	payload := []byte(`{"id":"WH-3","event_type":"INVOICING.INVOICE.PAID","resource":{"id":"INV2-C"}}`)
	rr := httptest.NewRecorder()

	verifier.On("VerifyWebhookSignature", mock.Anything, mock.Anything, payload).
		Return(false, errors.New("verification endpoint unreachable")).Once()

	handler.HandleProviderWebhook(rr, signedRequest(payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	processor.AssertNotCalled(t, "HandlePaidEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_ProcessingErrorDoesNotChangeResponse(t *testing.T) {
	verifier := new(MockSignatureVerifier)
	processor := new(MockPaidEventProcessor)
	handler := newWebhookHandler(verifier, processor)

	payload := []byte(`{"id":"WH-4","event_type":"INVOICING.INVOICE.PAID","resource":{"id":"INV2-D"}}`)
	rr := httptest.NewRecorder()

	verifier.On("VerifyWebhookSignature", mock.Anything, mock.Anything, payload).Return(true, nil).Once()
	processor.On("HandlePaidEvent", mock.Anything, mock.Anything).Return(errors.New("downstream failure")).Once()

	handler.HandleProviderWebhook(rr, signedRequest(payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	processor.AssertExpectations(t)
}

func TestWebhookHandler_UndecodablePayloadIsAckedWithoutVerification(t *testing.T) {
	verifier := new(MockSignatureVerifier)
	processor := new(MockPaidEventProcessor)
	handler := newWebhookHandler(verifier, processor)

	rr := httptest.NewRecorder()
	handler.HandleProviderWebhook(rr, signedRequest([]byte("not json")))

	assert.Equal(t, http.StatusOK, rr.Code)
	verifier.AssertNotCalled(t, "VerifyWebhookSignature", mock.Anything, mock.Anything, mock.Anything)
	processor.AssertNotCalled(t, "HandlePaidEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	verifier := new(MockSignatureVerifier)
	processor := new(MockPaidEventProcessor)
	handler := newWebhookHandler(verifier, processor)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/paypal", nil)
	rr := httptest.NewRecorder()

	handler.HandleProviderWebhook(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	verifier := new(MockSignatureVerifier)
	processor := new(MockPaidEventProcessor)
	handler := newWebhookHandler(verifier, processor)

	largePayload := make([]byte, adapter_http.MaxRequestBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewBuffer(largePayload))
	rr := httptest.NewRecorder()

	handler.HandleProviderWebhook(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	verifier.AssertNotCalled(t, "VerifyWebhookSignature", mock.Anything, mock.Anything, mock.Anything)
}
