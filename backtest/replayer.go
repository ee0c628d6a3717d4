package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gradascent/nautilus-trader/internal/engine"
	"github.com/gradascent/nautilus-trader/internal/storage"
)

// Replayer reads the event log from SQLite and feeds it into a Sequencer.
// Replaying a live session's WAL through the same dispatch path must land
// on the same portfolio state the live session had.
type Replayer struct {
	store *storage.EventStore
}

// NewReplayer creates a new replayer instance.
func NewReplayer(dbPath string) (*Replayer, error) {
	store, err := storage.NewEventStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &Replayer{store: store}, nil
}

// RunReplay replays all events into the provided sequencer.
func (r *Replayer) RunReplay(ctx context.Context, seq *engine.Sequencer) error {
	events, err := r.store.LoadEvents(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	slog.Info("Replaying event log", slog.Int("count", len(events)))

	for _, ev := range events {
		// Feed into sequencer synchronously for deterministic replay.
		seq.ReplayEvent(ev)
	}

	return nil
}

// Close releases the underlying store.
func (r *Replayer) Close() error {
	return r.store.Close()
}
