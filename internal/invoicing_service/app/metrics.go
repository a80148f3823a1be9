package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invoicesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicing_invoices_issued_total",
		Help: "Invoice issuance attempts by outcome.",
	}, []string{"outcome"}) // issued, issued_degraded_link, validation_rejected, failed

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicing_webhook_events_total",
		Help: "Inbound webhook events by reconciliation result.",
	}, []string{"result"}) // dispatched, ignored, unresolved

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicing_notifications_total",
		Help: "Paid-confirmation dispatch attempts by outcome.",
	}, []string{"outcome"}) // sent, failed
)
