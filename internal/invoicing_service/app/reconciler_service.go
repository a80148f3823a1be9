package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/repository"
)

// ChannelNotifier is the outbound capability of the chat front-end: deliver
// a plain confirmation message to one conversation channel.
type ChannelNotifier interface {
	Notify(ctx context.Context, channelID, message string) error
}

// ReconcilerService consumes a verified payment notification, recovers the
// originating conversation through a prioritized multi-source lookup, and
// dispatches a paid confirmation to every resolved destination.
type ReconcilerService struct {
	provider          domain.InvoicingProvider
	correlations      repository.CorrelationRepository
	notifier          ChannelNotifier
	fallbackChannelID string
	logger            *slog.Logger
}

func NewReconcilerService(
	provider domain.InvoicingProvider,
	correlations repository.CorrelationRepository,
	notifier ChannelNotifier,
	fallbackChannelID string,
	logger *slog.Logger,
) *ReconcilerService {
	return &ReconcilerService{
		provider:          provider,
		correlations:      correlations,
		notifier:          notifier,
		fallbackChannelID: fallbackChannelID,
		logger:            logger.With("service", "reconciler"),
	}
}

// HandlePaidEvent processes one verified webhook event. It never returns an
// error for business-level misses; an unresolvable destination is an
// expected degraded case, logged and dropped.
func (s *ReconcilerService) HandlePaidEvent(ctx context.Context, ev domain.WebhookEvent) error {
	if ev.EventType != domain.EventTypeInvoicePaid {
		s.logger.DebugContext(ctx, "Ignoring non-actionable webhook event", "event_type", ev.EventType)
		webhookEventsTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	invoiceID := ev.ResolveInvoiceID()
	logger := s.logger.With("invoice_id", invoiceID)

	destinations := s.resolveDestinations(ctx, ev, invoiceID, logger)
	if len(destinations) == 0 {
		logger.WarnContext(ctx, "No destination resolved for paid invoice, dropping notification")
		webhookEventsTotal.WithLabelValues("unresolved").Inc()
		return nil
	}

	message := paidMessage(ev)
	for _, channelID := range destinations {
		// Each destination is attempted independently; one failure must
		// not block the others.
		if err := s.notifier.Notify(ctx, channelID, message); err != nil {
			logger.ErrorContext(ctx, "Failed to dispatch paid confirmation", "channel_id", channelID, "error", err)
			notificationsTotal.WithLabelValues("failed").Inc()
			continue
		}
		logger.InfoContext(ctx, "Dispatched paid confirmation", "channel_id", channelID)
		notificationsTotal.WithLabelValues("sent").Inc()
	}
	webhookEventsTotal.WithLabelValues("dispatched").Inc()
	return nil
}

// resolveDestinations tries the recovery strategies in strict priority
// order and stops at the first level that yields any destination. A single
// level may contribute several distinct channels (the event's reference and
// invoice-number fields can disagree); all of them are kept, deduplicated.
func (s *ReconcilerService) resolveDestinations(ctx context.Context, ev domain.WebhookEvent, invoiceID string, logger *slog.Logger) []string {
	var destinations []string
	add := func(channelID string) {
		if channelID == "" {
			return
		}
		for _, existing := range destinations {
			if existing == channelID {
				return
			}
		}
		destinations = append(destinations, channelID)
	}

	// Structured reference attached at creation time, then the legacy
	// pattern-matchable token.
	addFromDetail := func(detail domain.InvoiceDetail) {
		if ch, ok := domain.ChannelFromStructuredReference(detail.Reference); ok {
			add(ch)
		}
		if ch, ok := domain.ChannelFromLegacyToken(detail.Reference); ok {
			add(ch)
		}
		if ch, ok := domain.ChannelFromLegacyToken(detail.InvoiceNumber); ok {
			add(ch)
		}
	}

	addFromDetail(ev.Resource.Detail)
	if len(destinations) > 0 {
		logger.InfoContext(ctx, "Destination resolved from event reference", "channels", destinations)
		return destinations
	}

	if invoiceID != "" {
		if ch, err := s.correlations.Resolve(ctx, invoiceID); err == nil {
			add(ch)
			logger.InfoContext(ctx, "Destination resolved from correlation store", "channel_id", ch)
			return destinations
		} else if !errors.Is(err, repository.ErrCorrelationNotFound) {
			logger.ErrorContext(ctx, "Correlation lookup failed", "error", err)
		}
	}

	// The provider durably stores the reference fields set at creation;
	// read them back and re-apply the reference strategies.
	if invoiceID != "" {
		if inv, err := s.provider.GetInvoice(ctx, invoiceID); err != nil {
			logger.WarnContext(ctx, "Live invoice lookup failed during reconciliation", "error", err)
		} else {
			addFromDetail(inv.Detail)
			if len(destinations) > 0 {
				logger.InfoContext(ctx, "Destination resolved from fetched invoice reference", "channels", destinations)
				return destinations
			}
		}
	}

	if ch, err := s.correlations.MostRecent(ctx); err == nil {
		add(ch)
		logger.InfoContext(ctx, "Destination resolved from recency fallback", "channel_id", ch)
		return destinations
	}

	add(s.fallbackChannelID)
	if len(destinations) > 0 {
		logger.InfoContext(ctx, "Using statically configured fallback destination", "channel_id", s.fallbackChannelID)
	}
	return destinations
}

func paidMessage(ev domain.WebhookEvent) string {
	if amt := ev.Resource.Amount; amt != nil && amt.Value != "" && amt.CurrencyCode != "" {
		return fmt.Sprintf("Invoice has been paid (%s %s).", amt.Value, amt.CurrencyCode)
	}
	return "Invoice has been paid."
}
