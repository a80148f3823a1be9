package repository

import (
	"context"
	"errors"
)

// ErrCorrelationNotFound is returned by Resolve and MostRecent when no
// usable entry exists.
var ErrCorrelationNotFound = errors.New("correlation entry not found")

// CorrelationRepository ties an issued invoice id to its origin channel so
// the payment confirmation can be routed back later. The in-memory
// implementation is volatile by design; the interface leaves room for a
// durable backing store without touching callers.
type CorrelationRepository interface {
	// Remember upserts the mapping (last write wins per invoice id) and
	// starts its retention clock.
	Remember(ctx context.Context, invoiceID, channelID string) error

	// Resolve returns the origin channel for an invoice id, or
	// ErrCorrelationNotFound once the entry expired or was never set.
	Resolve(ctx context.Context, invoiceID string) (string, error)

	// MostRecent returns the channel of the most recently remembered
	// invoice still inside the short recency window. A deliberately weak
	// last-resort signal for when the notification carries no usable
	// reference and the direct entry is gone.
	MostRecent(ctx context.Context) (string, error)
}
