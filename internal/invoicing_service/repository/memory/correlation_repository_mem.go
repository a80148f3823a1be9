package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/repository"
)

const (
	// DefaultRetention is how long a direct invoice→channel entry survives.
	DefaultRetention = 7 * 24 * time.Hour
	// DefaultRecentWindow bounds the last-resort recency fallback.
	DefaultRecentWindow = 20 * time.Minute

	janitorInterval = time.Minute
)

type entry struct {
	channelID string
	createdAt time.Time
}

type recentEntry struct {
	invoiceID string
	channelID string
	createdAt time.Time
}

// CorrelationRepositoryMem is the volatile correlation index: a direct map
// with time-based retention plus an ordered recency queue trimmed to a
// short window. A process restart loses all entries; that is modeled
// behavior, not a bug.
type CorrelationRepositoryMem struct {
	logger *slog.Logger

	mu        sync.RWMutex
	byInvoice map[string]entry
	recent    []recentEntry

	retention    time.Duration
	recentWindow time.Duration
	now          func() time.Time
}

func NewCorrelationRepository(logger *slog.Logger) *CorrelationRepositoryMem {
	return &CorrelationRepositoryMem{
		logger:       logger.With("component", "correlation_store"),
		byInvoice:    make(map[string]entry),
		retention:    DefaultRetention,
		recentWindow: DefaultRecentWindow,
		now:          time.Now,
	}
}

// StartJanitor prunes expired entries in the background until ctx is done.
// Reads also prune lazily, so the janitor only bounds memory growth.
func (r *CorrelationRepositoryMem) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.prune()
			}
		}
	}()
}

func (r *CorrelationRepositoryMem) Remember(ctx context.Context, invoiceID, channelID string) error {
	now := r.now()

	r.mu.Lock()
	r.byInvoice[invoiceID] = entry{channelID: channelID, createdAt: now}
	r.recent = append(r.recent, recentEntry{invoiceID: invoiceID, channelID: channelID, createdAt: now})
	r.pruneRecentLocked(now)
	mapSize, recentSize := len(r.byInvoice), len(r.recent)
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Remembered invoice correlation",
		"invoice_id", invoiceID, "channel_id", channelID,
		"map_size", mapSize, "recent_size", recentSize)
	return nil
}

func (r *CorrelationRepositoryMem) Resolve(ctx context.Context, invoiceID string) (string, error) {
	now := r.now()

	r.mu.RLock()
	e, ok := r.byInvoice[invoiceID]
	r.mu.RUnlock()

	if !ok || now.Sub(e.createdAt) > r.retention {
		return "", repository.ErrCorrelationNotFound
	}
	return e.channelID, nil
}

func (r *CorrelationRepositoryMem) MostRecent(ctx context.Context) (string, error) {
	now := r.now()

	r.mu.Lock()
	r.pruneRecentLocked(now)
	var channelID string
	if len(r.recent) > 0 {
		channelID = r.recent[len(r.recent)-1].channelID
	}
	r.mu.Unlock()

	if channelID == "" {
		return "", repository.ErrCorrelationNotFound
	}
	return channelID, nil
}

func (r *CorrelationRepositoryMem) prune() {
	now := r.now()

	r.mu.Lock()
	for id, e := range r.byInvoice {
		if now.Sub(e.createdAt) > r.retention {
			delete(r.byInvoice, id)
		}
	}
	r.pruneRecentLocked(now)
	r.mu.Unlock()
}

// pruneRecentLocked drops recency entries older than the window. Entries
// are appended in time order, so trimming from the front suffices.
func (r *CorrelationRepositoryMem) pruneRecentLocked(now time.Time) {
	cutoff := now.Add(-r.recentWindow)
	i := 0
	for i < len(r.recent) && r.recent[i].createdAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.recent = append(r.recent[:0], r.recent[i:]...)
	}
}
