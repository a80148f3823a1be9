package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
	"github.com/ticketshop/invoicing-gateway/internal/platform/retry"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

// Config carries the provider settings for one PayPal account.
type Config struct {
	Mode      string // "sandbox" or "live"
	BaseURL   string // overrides Mode when set; used by tests
	ClientID  string
	Secret    string
	WebhookID string // trust anchor for remote signature verification

	Currency                  string
	BrandName                 string
	SellerEmail               string
	Terms                     string
	PlaceholderRecipientEmail string
}

// Client is a stateless wrapper over the PayPal Invoicing v2 API. Tokens are
// re-acquired per operation; PayPal's token endpoint is cheap and the
// short-lived credential is never cached across calls.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	cfg        Config

	searchPolicy retry.Policy
	sendPolicy   retry.Policy
}

func NewClient(cfg Config, logger *slog.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Mode == "live" {
			baseURL = liveBaseURL
		} else {
			baseURL = sandboxBaseURL
		}
	}
	return &Client{
		logger:     logger.With("provider", "paypal"),
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cfg:        cfg,
		// The provider's write path is not immediately read-consistent;
		// search keeps probing with growing delays before giving up.
		searchPolicy: retry.Policy{MaxAttempts: 6, Initial: 250 * time.Millisecond, Step: 150 * time.Millisecond},
		// A just-created invoice may 404 on send; retry exactly once.
		sendPolicy: retry.Policy{MaxAttempts: 2, Initial: 650 * time.Millisecond},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AcquireToken obtains a short-lived bearer credential via the OAuth2
// client-credentials grant.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token response: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "PayPal OAuth failed", "status_code", resp.StatusCode)
		return "", fmt.Errorf("%w: token endpoint returned status %d", domain.ErrAuth, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response unparseable", domain.ErrAuth)
	}
	return tok.AccessToken, nil
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r *apiResponse) ok() bool { return r.status >= 200 && r.status < 300 }

// call acquires a fresh token and performs one JSON API request.
func (c *Client) call(ctx context.Context, method, path string, payload any, idempotencyKey string) (*apiResponse, error) {
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request for %s: %w", path, err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("PayPal-Request-Id", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request to %s failed: %v", domain.ErrProviderUnavailable, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response from %s: %v", domain.ErrProviderUnavailable, path, err)
	}
	c.logger.DebugContext(ctx, "PayPal API response", "method", method, "path", path, "status_code", resp.StatusCode, "body_len", len(raw))
	return &apiResponse{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrAuth, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, status)
	default:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrProviderUnavailable, status)
	}
}

type invoiceName struct {
	GivenName string `json:"given_name,omitempty"`
	Surname   string `json:"surname,omitempty"`
}

type invoiceRecipient struct {
	BillingInfo *billingInfo `json:"billing_info,omitempty"`
}

type billingInfo struct {
	EmailAddress string `json:"email_address,omitempty"`
}

type monetaryValue struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type invoiceItem struct {
	Name       string        `json:"name"`
	Quantity   string        `json:"quantity"`
	UnitAmount monetaryValue `json:"unit_amount"`
}

type createInvoiceDetail struct {
	CurrencyCode       string `json:"currency_code"`
	InvoiceNumber      string `json:"invoice_number"`
	Reference          string `json:"reference"`
	Note               string `json:"note,omitempty"`
	TermsAndConditions string `json:"terms_and_conditions,omitempty"`
}

type createInvoiceInvoicer struct {
	Name         invoiceName `json:"name"`
	EmailAddress string      `json:"email_address,omitempty"`
}

type createInvoiceBody struct {
	Detail            createInvoiceDetail   `json:"detail"`
	Invoicer          createInvoiceInvoicer `json:"invoicer"`
	PrimaryRecipients []invoiceRecipient    `json:"primary_recipients,omitempty"`
	Items             []invoiceItem         `json:"items"`
}

// CreateInvoice creates a draft invoice. The returned id may be empty: the
// provider sometimes answers with an empty body and only a Location-style
// header, or with no resolvable id at all, in which case the caller falls
// back to SearchInvoiceByNumber.
func (c *Client) CreateInvoice(ctx context.Context, req domain.InvoiceRequest, businessNumber string) (string, error) {
	var body createInvoiceBody
	body.Detail.CurrencyCode = c.cfg.Currency
	body.Detail.InvoiceNumber = businessNumber
	body.Detail.Reference = domain.EncodeReference(req.Origin)
	body.Detail.Note = req.ItemLabel
	body.Detail.TermsAndConditions = c.cfg.Terms
	body.Invoicer.Name = invoiceName{GivenName: c.cfg.BrandName}
	body.Invoicer.EmailAddress = c.cfg.SellerEmail
	if c.cfg.PlaceholderRecipientEmail != "" {
		// The provider refuses to notify a recipient-less invoice; attach
		// the placeholder identity when no real payer email is known.
		body.PrimaryRecipients = []invoiceRecipient{{BillingInfo: &billingInfo{EmailAddress: c.cfg.PlaceholderRecipientEmail}}}
	}
	body.Items = []invoiceItem{{
		Name:       req.ItemLabel,
		Quantity:   "1",
		UnitAmount: monetaryValue{CurrencyCode: c.cfg.Currency, Value: req.Amount.StringFixed(2)},
	}}

	resp, err := c.call(ctx, http.MethodPost, "/v2/invoicing/invoices", body, businessNumber)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		c.logger.WarnContext(ctx, "PayPal create invoice failed", "status_code", resp.status, "invoice_number", businessNumber)
		return "", statusError(resp.status)
	}

	id := invoiceIDFromCreateResponse(resp)
	if id == "" {
		c.logger.WarnContext(ctx, "PayPal create invoice returned no resolvable id", "invoice_number", businessNumber)
	}
	return id, nil
}

func invoiceIDFromCreateResponse(resp *apiResponse) string {
	if len(resp.body) > 0 {
		var parsed struct {
			ID   string `json:"id"`
			Href string `json:"href"`
		}
		if err := json.Unmarshal(resp.body, &parsed); err == nil {
			if parsed.ID != "" {
				return parsed.ID
			}
			if parsed.Href != "" {
				return lastPathSegment(parsed.Href)
			}
		}
	}
	if loc := resp.header.Get("Location"); loc != "" {
		return lastPathSegment(loc)
	}
	return ""
}

func lastPathSegment(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

type searchRequest struct {
	InvoiceNumber string   `json:"invoice_number"`
	Status        []string `json:"status,omitempty"`
}

type searchResponse struct {
	TotalItems int `json:"total_items"`
	Items      []struct {
		ID string `json:"id"`
	} `json:"items"`
}

// narrowStatusesThrough is the number of leading search attempts that filter
// by a draft/unpaid status before broadening to an unfiltered query.
const narrowStatusesThrough = 3

// SearchInvoiceByNumber is the best-effort id recovery path for when the
// create response carried no id. The record may take a while to become
// searchable, so it probes repeatedly, first narrowed to live statuses and
// then unfiltered.
func (c *Client) SearchInvoiceByNumber(ctx context.Context, number string) (string, error) {
	var invoiceID string
	attempt := 0
	err := retry.Do(ctx, c.searchPolicy, func(ctx context.Context) error {
		attempt++
		search := searchRequest{InvoiceNumber: number}
		if attempt <= narrowStatusesThrough {
			search.Status = []string{"DRAFT", "UNPAID", "SENT"}
		}

		resp, err := c.call(ctx, http.MethodPost, "/v2/invoicing/search-invoices?page=1&page_size=20", search, "")
		if err != nil {
			return err
		}
		if !resp.ok() {
			err := statusError(resp.status)
			if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
				return retry.Permanent(err)
			}
			return err
		}

		var parsed searchResponse
		if err := json.Unmarshal(resp.body, &parsed); err != nil {
			return fmt.Errorf("%w: search response unparseable: %v", domain.ErrProviderUnavailable, err)
		}
		if len(parsed.Items) == 0 || parsed.Items[0].ID == "" {
			return domain.ErrNotFound
		}
		invoiceID = parsed.Items[0].ID
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "PayPal invoice search exhausted", "invoice_number", number, "attempts", attempt, "error", err)
		return "", err
	}
	c.logger.InfoContext(ctx, "Recovered invoice id via search", "invoice_number", number, "invoice_id", invoiceID, "attempts", attempt)
	return invoiceID, nil
}

type sendInvoiceBody struct {
	SendToInvoicer  bool `json:"send_to_invoicer"`
	SendToRecipient bool `json:"send_to_recipient"`
}

// SendInvoice requests the provider to make the invoice payable. A 404 is
// treated as transient (the record may not be read-visible yet) and retried
// once after a short delay; every other failure is terminal.
func (c *Client) SendInvoice(ctx context.Context, invoiceID string, mode domain.SendMode) error {
	body := sendInvoiceBody{}
	switch mode {
	case domain.SendModePlaceholder:
		body.SendToInvoicer = true
		body.SendToRecipient = true
	case domain.SendModeShareLink:
		// No notifications; the payable link is shared out of band.
	default:
		body.SendToInvoicer = true
	}

	return retry.Do(ctx, c.sendPolicy, func(ctx context.Context) error {
		resp, err := c.call(ctx, http.MethodPost, "/v2/invoicing/invoices/"+url.PathEscape(invoiceID)+"/send", body, "")
		if err != nil {
			return retry.Permanent(err)
		}
		if resp.status == http.StatusNotFound {
			c.logger.InfoContext(ctx, "Invoice not yet visible for send, will retry", "invoice_id", invoiceID)
			return domain.ErrNotFound
		}
		if !resp.ok() {
			return retry.Permanent(statusError(resp.status))
		}
		return nil
	})
}

type invoiceWire struct {
	ID     string               `json:"id"`
	Status string               `json:"status"`
	Detail domain.InvoiceDetail `json:"detail"`
	Links  []domain.InvoiceLink `json:"links"`
	Href   string               `json:"href"`
}

// GetInvoice returns the full invoice representation, used for payable-link
// extraction during issuance and for context recovery at webhook time.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*domain.ProviderInvoice, error) {
	resp, err := c.call(ctx, http.MethodGet, "/v2/invoicing/invoices/"+url.PathEscape(invoiceID), nil, "")
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, statusError(resp.status)
	}

	var wire invoiceWire
	if err := json.Unmarshal(resp.body, &wire); err != nil {
		return nil, fmt.Errorf("%w: invoice response unparseable: %v", domain.ErrProviderUnavailable, err)
	}
	return &domain.ProviderInvoice{
		ID:     wire.ID,
		Status: domain.ParseInvoiceStatus(wire.Status),
		Detail: wire.Detail,
		Links:  wire.Links,
		Href:   wire.Href,
	}, nil
}

type verifySignatureRequest struct {
	TransmissionID   string          `json:"transmission_id"`
	TransmissionTime string          `json:"transmission_time"`
	CertURL          string          `json:"cert_url"`
	AuthAlgo         string          `json:"auth_algo"`
	TransmissionSig  string          `json:"transmission_sig"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifySignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature delegates verification to the provider's own
// endpoint, forwarding the five transmission headers, the configured webhook
// id and the raw event body. Signatures are never verified locally.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers domain.SignatureHeaders, rawBody []byte) (bool, error) {
	reqBody := verifySignatureRequest{
		TransmissionID:   headers.TransmissionID,
		TransmissionTime: headers.TransmissionTime,
		CertURL:          headers.CertURL,
		AuthAlgo:         headers.AuthAlgo,
		TransmissionSig:  headers.TransmissionSig,
		WebhookID:        c.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(rawBody),
	}

	resp, err := c.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", reqBody, "")
	if err != nil {
		return false, err
	}
	if !resp.ok() {
		return false, statusError(resp.status)
	}

	var parsed verifySignatureResponse
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return false, fmt.Errorf("%w: verification response unparseable: %v", domain.ErrProviderUnavailable, err)
	}
	return parsed.VerificationStatus == "SUCCESS", nil
}
