package domain

import "context"

// SendMode selects how the provider publishes an invoice.
type SendMode string

const (
	// SendModeInvoicer emails only the issuing account.
	SendModeInvoicer SendMode = "invoicer"
	// SendModePlaceholder notifies the placeholder recipient attached at
	// creation time, satisfying the provider's must-have-a-recipient rule
	// when no real payer email is known.
	SendModePlaceholder SendMode = "placeholder"
	// SendModeShareLink publishes without sending any notification; the
	// payable link is shared out of band.
	SendModeShareLink SendMode = "share_link"
)

// ParseSendMode falls back to SendModeInvoicer for unknown values.
func ParseSendMode(raw string) SendMode {
	switch SendMode(raw) {
	case SendModePlaceholder, SendModeShareLink:
		return SendMode(raw)
	default:
		return SendModeInvoicer
	}
}

// InvoicingProvider is the port to the external invoicing API. All
// implementations propagate typed errors (ErrAuth, ErrProviderUnavailable,
// ErrNotFound) and bound every internal retry loop.
type InvoicingProvider interface {
	// CreateInvoice creates an invoice using businessNumber as both the
	// provider-side invoice number and the idempotency key. The returned id
	// may be empty when the provider's response carries no resolvable id;
	// callers then fall back to SearchInvoiceByNumber.
	CreateInvoice(ctx context.Context, req InvoiceRequest, businessNumber string) (string, error)

	// SearchInvoiceByNumber recovers an invoice id by its business number,
	// retrying across the provider's read-visibility lag.
	SearchInvoiceByNumber(ctx context.Context, number string) (string, error)

	// SendInvoice asks the provider to make the invoice payable.
	SendInvoice(ctx context.Context, invoiceID string, mode SendMode) error

	// GetInvoice returns the full invoice representation.
	GetInvoice(ctx context.Context, invoiceID string) (*ProviderInvoice, error)

	// VerifyWebhookSignature delegates signature verification to the
	// provider's own verification endpoint; it is never performed locally.
	VerifyWebhookSignature(ctx context.Context, headers SignatureHeaders, rawBody []byte) (bool, error)
}
