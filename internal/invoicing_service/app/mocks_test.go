package app

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
)

type MockInvoicingProvider struct {
	mock.Mock
}

func (m *MockInvoicingProvider) CreateInvoice(ctx context.Context, req domain.InvoiceRequest, businessNumber string) (string, error) {
	args := m.Called(ctx, req, businessNumber)
	return args.String(0), args.Error(1)
}

func (m *MockInvoicingProvider) SearchInvoiceByNumber(ctx context.Context, number string) (string, error) {
	args := m.Called(ctx, number)
	return args.String(0), args.Error(1)
}

func (m *MockInvoicingProvider) SendInvoice(ctx context.Context, invoiceID string, mode domain.SendMode) error {
	args := m.Called(ctx, invoiceID, mode)
	return args.Error(0)
}

func (m *MockInvoicingProvider) GetInvoice(ctx context.Context, invoiceID string) (*domain.ProviderInvoice, error) {
	args := m.Called(ctx, invoiceID)
	if inv := args.Get(0); inv != nil {
		return inv.(*domain.ProviderInvoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvoicingProvider) VerifyWebhookSignature(ctx context.Context, headers domain.SignatureHeaders, rawBody []byte) (bool, error) {
	args := m.Called(ctx, headers, rawBody)
	return args.Bool(0), args.Error(1)
}

type MockCorrelationRepository struct {
	mock.Mock
}

func (m *MockCorrelationRepository) Remember(ctx context.Context, invoiceID, channelID string) error {
	args := m.Called(ctx, invoiceID, channelID)
	return args.Error(0)
}

func (m *MockCorrelationRepository) Resolve(ctx context.Context, invoiceID string) (string, error) {
	args := m.Called(ctx, invoiceID)
	return args.String(0), args.Error(1)
}

func (m *MockCorrelationRepository) MostRecent(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockChannelNotifier struct {
	mock.Mock
}

func (m *MockChannelNotifier) Notify(ctx context.Context, channelID, message string) error {
	args := m.Called(ctx, channelID, message)
	return args.Error(0)
}
