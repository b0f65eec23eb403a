// Package poller implements the fixed-interval conversation refresh that
// feeds live views. Each tick replaces the previous snapshot wholesale,
// so consumers observe the store with a staleness bounded by one
// interval.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maelis/hostpilot/internal/store"
)

// Store is the read surface the watcher needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
}

// Watcher emits fresh conversation snapshots on a fixed interval.
type Watcher struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
}

// New creates a watcher polling at the given interval.
func New(st Store, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		store:    st,
		logger:   logger.With("component", "poller"),
		interval: interval,
	}
}

// Watch returns a channel of conversation snapshots for conversationID.
// The first snapshot is fetched immediately, then one per interval. Fetch
// failures are logged and skipped; the next tick retries. The channel is
// closed when ctx is canceled.
//
// The initial fetch is synchronous so callers learn about an unknown
// conversation before any goroutine starts.
func (w *Watcher) Watch(ctx context.Context, conversationID string) (<-chan *store.Conversation, error) {
	first, err := w.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("initial fetch for %s: %w", conversationID, err)
	}

	snapshots := make(chan *store.Conversation, 1)
	snapshots <- first

	go w.run(ctx, conversationID, snapshots)
	return snapshots, nil
}

func (w *Watcher) run(ctx context.Context, conversationID string, snapshots chan<- *store.Conversation) {
	defer close(snapshots)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conversation, err := w.store.GetConversation(ctx, conversationID)
			if err != nil {
				w.logger.WarnContext(ctx, "Snapshot refresh failed, keeping previous view",
					"conversation_id", conversationID, "error", err)
				continue
			}
			select {
			case snapshots <- conversation:
			case <-ctx.Done():
				return
			}
		}
	}
}
