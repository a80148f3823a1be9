package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the provider-owned lifecycle state of an invoice. This
// system only observes it, never sets it.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "DRAFT"
	StatusUnpaid  InvoiceStatus = "UNPAID" // published and payable
	StatusPaid    InvoiceStatus = "PAID"
	StatusUnknown InvoiceStatus = "UNKNOWN"
)

// ParseInvoiceStatus normalizes the provider's status strings. PayPal
// reports published invoices as SENT or UNPAID and paid ones as PAID or
// MARKED_AS_PAID.
func ParseInvoiceStatus(raw string) InvoiceStatus {
	switch strings.ToUpper(raw) {
	case "DRAFT":
		return StatusDraft
	case "SENT", "UNPAID", "SCHEDULED":
		return StatusUnpaid
	case "PAID", "MARKED_AS_PAID":
		return StatusPaid
	default:
		return StatusUnknown
	}
}

// OriginContext identifies the conversation that originated a purchase.
// ChannelID is the destination for the later payment confirmation; the other
// ids are carried opaquely inside the invoice reference.
type OriginContext struct {
	GuildID     string
	ChannelID   string
	RequesterID string
}

// InvoiceRequest is the immutable input to issuance.
type InvoiceRequest struct {
	ItemLabel string
	Amount    decimal.Decimal
	Origin    OriginContext
}

// Validate rejects a request before any provider call is made.
func (r InvoiceRequest) Validate() error {
	if strings.TrimSpace(r.ItemLabel) == "" {
		return fmt.Errorf("%w: item label must not be empty", ErrValidation)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !r.Amount.Equal(r.Amount.Truncate(2)) {
		return fmt.Errorf("%w: amount must have at most two fraction digits", ErrValidation)
	}
	if r.Origin.ChannelID == "" {
		return fmt.Errorf("%w: origin channel id must not be empty", ErrValidation)
	}
	return nil
}

// IssuedInvoice is the outcome of issuance. LinkConfirmed is false when the
// provider never published a payable link within the polling window and the
// link was synthesized from the invoice id as a last resort.
type IssuedInvoice struct {
	InvoiceID     string
	PayableLink   string
	LinkConfirmed bool
	Status        InvoiceStatus
}

// InvoiceDetail carries the creation-time fields that embed the origin
// context: the reference blob and the application-generated invoice number.
type InvoiceDetail struct {
	Reference     string `json:"reference"`
	InvoiceNumber string `json:"invoice_number"`
}

// InvoiceLink is one entry of the provider's returned link set.
type InvoiceLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// ProviderInvoice is the provider's full invoice representation, used for
// payable-link extraction during issuance and for context recovery at
// webhook time.
type ProviderInvoice struct {
	ID     string
	Status InvoiceStatus
	Detail InvoiceDetail
	Links  []InvoiceLink
	Href   string
}
