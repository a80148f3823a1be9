package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adapter_http "github.com/ticketshop/invoicing-gateway/internal/invoicing_service/adapters/http"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
)

type MockInvoiceIssuer struct {
	mock.Mock
}

func (m *MockInvoiceIssuer) Issue(ctx context.Context, req domain.InvoiceRequest) (*domain.IssuedInvoice, error) {
	args := m.Called(ctx, req)
	if inv := args.Get(0); inv != nil {
		return inv.(*domain.IssuedInvoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func newInvoiceHandler(issuer *MockInvoiceIssuer) *adapter_http.InvoiceHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return adapter_http.NewInvoiceHandler(issuer, logger, validator.New())
}

func TestInvoiceHandler_IssueInvoice_Success(t *testing.T) {
	issuer := new(MockInvoiceIssuer)
	handler := newInvoiceHandler(issuer)

	body := []byte(`{"item_label":"Game Pass X","amount":"5.00","guild_id":"G1","channel_id":"C42","requester_id":"U7"}`)
	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	issuer.On("Issue", mock.Anything, mock.MatchedBy(func(r domain.InvoiceRequest) bool {
		return r.ItemLabel == "Game Pass X" &&
			r.Amount.String() == "5" &&
			r.Origin.ChannelID == "C42" &&
			r.Origin.RequesterID == "U7"
	})).Return(&domain.IssuedInvoice{
		InvoiceID:     "INV2-A",
		PayableLink:   "https://www.paypal.com/invoice/p/#SHORT",
		LinkConfirmed: true,
	}, nil).Once()

	handler.IssueInvoice(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp struct {
		InvoiceID     string `json:"invoice_id"`
		PayableLink   string `json:"payable_link"`
		LinkConfirmed bool   `json:"link_confirmed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "INV2-A", resp.InvoiceID)
	assert.Equal(t, "https://www.paypal.com/invoice/p/#SHORT", resp.PayableLink)
	assert.True(t, resp.LinkConfirmed)
	issuer.AssertExpectations(t)
}

func TestInvoiceHandler_IssueInvoice_MissingFields(t *testing.T) {
	issuer := new(MockInvoiceIssuer)
	handler := newInvoiceHandler(issuer)

	for _, body := range []string{
		`{"amount":"5.00","channel_id":"C42"}`,
		`{"item_label":"Game Pass X","channel_id":"C42"}`,
		`{"item_label":"Game Pass X","amount":"5.00"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		handler.IssueInvoice(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %s", body)
	}
	issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_IssueInvoice_UnparseableAmount(t *testing.T) {
	issuer := new(MockInvoiceIssuer)
	handler := newInvoiceHandler(issuer)

	body := []byte(`{"item_label":"Game Pass X","amount":"five","channel_id":"C42"}`)
	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	handler.IssueInvoice(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_IssueInvoice_DomainValidationError(t *testing.T) {
	issuer := new(MockInvoiceIssuer)
	handler := newInvoiceHandler(issuer)

	body := []byte(`{"item_label":"Game Pass X","amount":"-5.00","channel_id":"C42"}`)
	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	issuer.On("Issue", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)).Once()

	handler.IssueInvoice(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInvoiceHandler_IssueInvoice_ProviderFailure(t *testing.T) {
	issuer := new(MockInvoiceIssuer)
	handler := newInvoiceHandler(issuer)

	body := []byte(`{"item_label":"Game Pass X","amount":"5.00","channel_id":"C42"}`)
	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	issuer.On("Issue", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: no invoice id resolvable", domain.ErrIssuanceFailed)).Once()

	handler.IssueInvoice(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "could not create the invoice")
	assert.NotContains(t, rr.Body.String(), "id resolvable", "provider detail must not leak to the caller")
}
