package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/repository"
	"github.com/ticketshop/invoicing-gateway/internal/platform/retry"
)

// synthesizedLinkFormat is the last-resort long-form payer URL built from an
// invoice id when the provider never published a link within the polling
// window.
const synthesizedLinkFormat = "https://www.paypal.com/invoice/p/#%s"

// IssuerService turns an invoice request into a payable link, hiding the
// provider's non-atomic, eventually-visible create/publish/read pipeline.
type IssuerService struct {
	provider     domain.InvoicingProvider
	correlations repository.CorrelationRepository
	logger       *slog.Logger

	sendMode domain.SendMode
	linkPoll retry.Policy
	now      func() time.Time
}

func NewIssuerService(
	provider domain.InvoicingProvider,
	correlations repository.CorrelationRepository,
	sendMode domain.SendMode,
	logger *slog.Logger,
) *IssuerService {
	return &IssuerService{
		provider:     provider,
		correlations: correlations,
		logger:       logger.With("service", "issuer"),
		sendMode:     sendMode,
		linkPoll:     retry.Policy{MaxAttempts: 11, Initial: 250 * time.Millisecond, Step: 30 * time.Millisecond},
		now:          time.Now,
	}
}

// Issue runs the create → publish → resolve-payable-link protocol. Callers
// may time-box it through ctx; the polling loops alone can take several
// seconds against a slow provider.
func (s *IssuerService) Issue(ctx context.Context, req domain.InvoiceRequest) (*domain.IssuedInvoice, error) {
	if err := req.Validate(); err != nil {
		invoicesIssuedTotal.WithLabelValues("validation_rejected").Inc()
		return nil, err
	}

	number := businessNumber(req.Origin.ChannelID, s.now())
	logger := s.logger.With("invoice_number", number, "channel_id", req.Origin.ChannelID)

	invoiceID, err := s.provider.CreateInvoice(ctx, req, number)
	if err != nil {
		// The create may still have gone through server-side; the search
		// below can recover the id before we declare failure.
		logger.WarnContext(ctx, "Create invoice call failed, attempting search recovery", "error", err)
	}
	if invoiceID == "" {
		invoiceID, err = s.provider.SearchInvoiceByNumber(ctx, number)
		if err != nil || invoiceID == "" {
			logger.ErrorContext(ctx, "Invoice id unresolvable after create and search", "error", err)
			invoicesIssuedTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("%w: no invoice id resolvable for %s", domain.ErrIssuanceFailed, number)
		}
	}
	logger = logger.With("invoice_id", invoiceID)

	status := domain.StatusUnknown
	if inv, err := s.provider.GetInvoice(ctx, invoiceID); err != nil {
		logger.WarnContext(ctx, "Status read-back failed, proceeding as unknown", "error", err)
	} else {
		status = inv.Status
	}

	// Never re-publish a live invoice; publish drafts and, defensively,
	// invoices whose status could not be read.
	if status != domain.StatusUnpaid && status != domain.StatusPaid {
		if err := s.provider.SendInvoice(ctx, invoiceID, s.sendMode); err != nil {
			logger.WarnContext(ctx, "Publish failed, continuing to link resolution", "error", err)
		}
	}

	link, confirmed := s.pollPayableLink(ctx, invoiceID)
	if link == "" {
		link = fmt.Sprintf(synthesizedLinkFormat, invoiceID)
		confirmed = false
		logger.WarnContext(ctx, "No payable link published in time, synthesized fallback link")
	}

	if err := s.correlations.Remember(ctx, invoiceID, req.Origin.ChannelID); err != nil {
		logger.ErrorContext(ctx, "Failed to remember invoice correlation", "error", err)
	}

	if confirmed {
		invoicesIssuedTotal.WithLabelValues("issued").Inc()
	} else {
		invoicesIssuedTotal.WithLabelValues("issued_degraded_link").Inc()
	}
	logger.InfoContext(ctx, "Invoice issued", "link_confirmed", confirmed)
	return &domain.IssuedInvoice{
		InvoiceID:     invoiceID,
		PayableLink:   link,
		LinkConfirmed: confirmed,
		Status:        status,
	}, nil
}

// pollPayableLink waits for a link to appear in the invoice's link set,
// preferring the short-form pay link over the long-form detail link. The
// returned bool reports whether the link was provider-confirmed.
func (s *IssuerService) pollPayableLink(ctx context.Context, invoiceID string) (string, bool) {
	var shortLink, longLink string

	err := retry.Do(ctx, s.linkPoll, func(ctx context.Context) error {
		inv, err := s.provider.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		for _, l := range inv.Links {
			switch l.Rel {
			case "pay":
				shortLink = l.Href
			case "payer-view", "detail":
				longLink = l.Href
			}
		}
		if longLink == "" && inv.Href != "" {
			longLink = inv.Href
		}
		if shortLink == "" {
			return fmt.Errorf("%w: payable link not yet published", domain.ErrNotFound)
		}
		return nil
	})
	if err == nil {
		return shortLink, true
	}
	if longLink != "" {
		// The provider confirmed a long-form link even though the short
		// pay link never appeared.
		return longLink, true
	}
	return "", false
}

// businessNumber derives a short, collision-resistant provider-side invoice
// number from the time plus a truncated hash of the origin channel. It
// doubles as the idempotency key for creation and as the recovery key for
// the search fallback. Always at most 24 characters.
func businessNumber(channelID string, now time.Time) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(channelID))
	n := fmt.Sprintf("INV-%d-%06x", now.UnixMilli(), h.Sum32()&0xffffff)
	if len(n) > 24 {
		n = n[:24]
	}
	return n
}
