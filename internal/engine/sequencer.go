package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/internal/event"
	"github.com/gradascent/nautilus-trader/internal/portfolio"
	"github.com/gradascent/nautilus-trader/internal/storage"
)

// Sequencer is the core single-threaded event processor. It owns position
// lifecycles: fills mutate positions here, and the resulting lifecycle
// events flow into the portfolio read model.
type Sequencer struct {
	inbox     chan event.Event
	positions map[domain.PositionID]*domain.Position
	nextSeq   uint64
	store     *storage.EventStore

	portfolio *portfolio.Portfolio

	// Boundary: used to notify UI or other systems of position changes
	onPositionUpdate func(event.PositionEvent)

	// Write-held by the event loop per event, read-held by external
	// readers (snapshot loop, UI).
	mu sync.RWMutex
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(inboxSize int, store *storage.EventStore, pf *portfolio.Portfolio, onUpdate func(event.PositionEvent)) *Sequencer {
	seq := &Sequencer{
		inbox:            make(chan event.Event, inboxSize),
		positions:        make(map[domain.PositionID]*domain.Position),
		nextSeq:          1,
		store:            store,
		portfolio:        pf,
		onPositionUpdate: onUpdate,
	}
	return seq
}

// RestoreFromSnapshot primes state from a snapshot so WAL replay can start
// past it. Must be called before Run.
func (s *Sequencer) RestoreFromSnapshot(snap *storage.Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ps := range snap.Positions {
		s.positions[ps.ID] = domain.PositionFromSnapshot(ps)
	}
	s.portfolio.Restore(snap.Accounts, snap.Positions, snap.Ticks)
	s.nextSeq = snap.Seq + 1

	slog.Info("State restored from snapshot",
		slog.Uint64("seq", snap.Seq),
		slog.Int("positions", len(snap.Positions)),
		slog.Int("accounts", len(snap.Accounts)))
}

// RecoverFromWAL restores state by replaying events from WAL, starting after
// whatever a prior RestoreFromSnapshot already covered.
// This is the core of "Backtest is Reality" - same code path for live and replay.
func (s *Sequencer) RecoverFromWAL(ctx context.Context) error {
	if s.store == nil {
		slog.Info("No store configured, starting fresh")
		return nil
	}

	// Get last sequence number from WAL
	lastSeq, err := s.store.GetLastSeq(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last seq: %w", err)
	}

	if lastSeq < s.nextSeq {
		slog.Info("WAL has nothing beyond current state", slog.Uint64("next_seq", s.nextSeq))
		return nil
	}

	events, err := s.store.LoadEvents(ctx, s.nextSeq)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	slog.Info("Replaying events from WAL", slog.Int("count", len(events)))

	// Replay each event using the same code path as live
	for _, ev := range events {
		s.ReplayEvent(ev)
	}

	slog.Info("State recovered from WAL", slog.Uint64("next_seq", s.nextSeq))
	return nil
}

// ValidateSequence checks for gaps based on strictness policy.
// It reports whether the event should be processed: duplicates (seq below
// the expected value) were already persisted and applied, so they must be
// dropped, not re-run through the fill path.
func (s *Sequencer) ValidateSequence(evSeq uint64) bool {
	expected := s.nextSeq
	if evSeq == expected {
		return true
	}

	diff := int64(evSeq) - int64(expected)

	// Case 1: Replay/Duplicate (Old event)
	if diff < 0 {
		slog.Warn("SEQUENCE_DUPLICATE_IGNORED", slog.Uint64("expected", expected), slog.Uint64("got", evSeq))
		return false
	}

	// Case 2: Future Gap
	// Allow small gaps <= 10 for Availability
	if diff <= 10 {
		slog.Warn("SEQUENCE_GAP_TOLERATED",
			slog.Uint64("expected", expected),
			slog.Uint64("got", evSeq),
			slog.Int64("gap", diff))

		// Fast-forward sequence to match event
		s.nextSeq = evSeq
		return true
	}

	// Hard Panic for large gaps
	panic(fmt.Sprintf("SEQUENCE_GAP_FATAL: expected %d, got %d", expected, evSeq))
}

// Inbox returns the event channel. External workers send events here.
func (s *Sequencer) Inbox() chan<- event.Event {
	return s.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started (Single-Thread Hotpath)")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			// Halt after dump.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case ev := <-s.inbox:
			s.processEvent(ev)
		}
	}
}

func (s *Sequencer) processEvent(ev event.Event) {
	// External readers (snapshot loop, UI) take RLock; the hot path holds
	// the write lock so they never observe a half-applied event.
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Sequence Gap Check (with Tolerance Policy)
	if !s.ValidateSequence(ev.GetSeq()) {
		if tick, ok := ev.(*event.QuoteTickEvent); ok {
			event.ReleaseQuoteTickEvent(tick)
		}
		return
	}

	// 2. WAL-first: Persistence
	if s.store != nil {
		if err := s.store.SaveEvent(context.Background(), ev); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	// 3. Logic Dispatch
	s.dispatch(ev)

	// 4. Recycle pooled events (the tick was copied into the read model)
	if tick, ok := ev.(*event.QuoteTickEvent); ok {
		event.ReleaseQuoteTickEvent(tick)
	}

	// 5. Increment Sequence
	s.nextSeq++
}

// ReplayEvent processes an event synchronously without WAL logging.
// This is used exclusively by recovery and the Replayer.
func (s *Sequencer) ReplayEvent(ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replay must still respect sequence order
	if ev.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected %d, got %d", s.nextSeq, ev.GetSeq()))
	}

	// Dispatch without WAL
	s.dispatch(ev)

	s.nextSeq++
}

// dispatch is shared by the live path and replay. Position events derived
// from fills are NOT written to WAL: they are deterministic from the fill,
// so replaying the fill regenerates them.
func (s *Sequencer) dispatch(ev event.Event) {
	switch e := ev.(type) {
	case *event.QuoteTickEvent:
		s.portfolio.UpdateTick(e.Tick)
	case *event.AccountStateEvent:
		if err := s.portfolio.UpdateAccount(e.State); err != nil {
			slog.Warn("ACCOUNT_STATE_REJECTED",
				slog.String("account", e.State.AccountID.String()),
				slog.Any("error", err))
		}
	case *event.OrderFilledEvent:
		s.handleFill(e)
	case event.PositionEvent:
		// Externally injected lifecycle events (e.g. venue reconciliation)
		// go straight to the read model.
		s.portfolio.UpdatePosition(e)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

// handleFill applies a fill to its position and publishes the resulting
// lifecycle event. An invalid fill is rejected and dropped, never retried:
// re-applying it would produce the same contract violation.
// The caller already holds the write lock.
func (s *Sequencer) handleFill(e *event.OrderFilledEvent) {
	fill := e.Fill
	base := event.BaseEvent{Seq: e.Seq, Ts: fill.Ts, EventID: uuid.New()}

	pos, ok := s.positions[fill.PositionID]
	if !ok {
		opened, err := domain.NewPosition(fill)
		if err != nil {
			slog.Warn("FILL_REJECTED",
				slog.String("position_id", string(fill.PositionID)),
				slog.String("order_id", string(fill.OrderID)),
				slog.Any("error", err))
			return
		}
		s.positions[fill.PositionID] = opened
		s.publish(&event.PositionOpenedEvent{BaseEvent: base, Position: opened.Snapshot()})
		return
	}

	if err := pos.Apply(fill); err != nil {
		if errors.Is(err, domain.ErrInvalidFill) {
			slog.Warn("FILL_REJECTED",
				slog.String("position_id", string(fill.PositionID)),
				slog.String("order_id", string(fill.OrderID)),
				slog.Any("error", err))
			return
		}
		panic(fmt.Sprintf("POSITION_APPLY_FAILURE: %v", err))
	}

	if pos.IsClosed() {
		delete(s.positions, fill.PositionID)
		s.publish(&event.PositionClosedEvent{BaseEvent: base, Position: pos.Snapshot()})
		return
	}
	s.publish(&event.PositionModifiedEvent{BaseEvent: base, Position: pos.Snapshot()})
}

func (s *Sequencer) publish(ev event.PositionEvent) {
	s.portfolio.UpdatePosition(ev)
	if s.onPositionUpdate != nil {
		s.onPositionUpdate(ev)
	}
}

// GetPosition returns a snapshot of a live position (external read).
func (s *Sequencer) GetPosition(id domain.PositionID) (domain.PositionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[id]
	if !ok {
		return domain.PositionSnapshot{}, false
	}
	return pos.Snapshot(), true
}

// GetNextSeq returns the next expected sequence number (external read).
func (s *Sequencer) GetNextSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq
}

// ProcessEventForTest runs one event through the live path synchronously.
func (s *Sequencer) ProcessEventForTest(ev event.Event) {
	s.processEvent(ev)
}

// StateSnapshot captures the current state for periodic checkpointing.
// The returned snapshot covers every event below nextSeq.
func (s *Sequencer) StateSnapshot() *storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.CreateSnapshot(
		s.nextSeq-1,
		s.portfolio.AccountStates(),
		s.portfolio.OpenPositionSnapshots(),
		s.portfolio.TickSnapshots(),
	)
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		NextSeq   uint64                    `json:"next_seq"`
		Positions []domain.PositionSnapshot `json:"positions"`
		Accounts  []domain.AccountState     `json:"accounts"`
		Ticks     []domain.QuoteTick        `json:"ticks"`
	}{
		NextSeq:   s.nextSeq,
		Positions: s.portfolio.OpenPositionSnapshots(),
		Accounts:  s.portfolio.AccountStates(),
		Ticks:     s.portfolio.TickSnapshots(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
