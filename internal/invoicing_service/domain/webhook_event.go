package domain

import (
	"net/http"
	"strings"
)

// EventTypeInvoicePaid is the only actionable webhook event type; all
// others are acknowledged and ignored.
const EventTypeInvoicePaid = "INVOICING.INVOICE.PAID"

// WebhookEvent is the provider's inbound event envelope. Processed once,
// never stored.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  WebhookResource `json:"resource"`
}

type WebhookResource struct {
	ID        string         `json:"id"`
	InvoiceID string         `json:"invoice_id"`
	Href      string         `json:"href"`
	Detail    InvoiceDetail  `json:"detail"`
	Amount    *MonetaryValue `json:"amount,omitempty"`
}

type MonetaryValue struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

// ResolveInvoiceID recovers the invoice id from the payload's primary id
// field, the secondary invoice-id field, the invoice number, or an id
// segment embedded in the resource link.
func (e WebhookEvent) ResolveInvoiceID() string {
	if e.Resource.ID != "" {
		return e.Resource.ID
	}
	if e.Resource.InvoiceID != "" {
		return e.Resource.InvoiceID
	}
	if e.Resource.Detail.InvoiceNumber != "" {
		return e.Resource.Detail.InvoiceNumber
	}
	if href := e.Resource.Href; href != "" {
		trimmed := href
		if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
			trimmed = trimmed[:i]
		}
		trimmed = strings.TrimRight(trimmed, "/")
		if i := strings.LastIndex(trimmed, "/"); i >= 0 && i+1 < len(trimmed) {
			return trimmed[i+1:]
		}
	}
	return ""
}

// SignatureHeaders are the five provider-specific authentication headers
// forwarded verbatim to the provider's verification endpoint.
type SignatureHeaders struct {
	TransmissionID   string
	TransmissionTime string
	CertURL          string
	AuthAlgo         string
	TransmissionSig  string
}

// SignatureHeadersFromRequest pulls the provider headers off an inbound
// webhook request.
func SignatureHeadersFromRequest(h http.Header) SignatureHeaders {
	return SignatureHeaders{
		TransmissionID:   h.Get("Paypal-Transmission-Id"),
		TransmissionTime: h.Get("Paypal-Transmission-Time"),
		CertURL:          h.Get("Paypal-Cert-Url"),
		AuthAlgo:         h.Get("Paypal-Auth-Algo"),
		TransmissionSig:  h.Get("Paypal-Transmission-Sig"),
	}
}
