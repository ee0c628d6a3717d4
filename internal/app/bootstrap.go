package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/internal/event"
	"github.com/gradascent/nautilus-trader/internal/infra"
	"github.com/gradascent/nautilus-trader/internal/storage"
	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	EventStore *storage.EventStore
	Snapshots  *storage.SnapshotManager

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (DB, Dir, etc.)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping...")

	// 0. Runtime Warmup (GC Optimization)
	event.Warmup()
	slog.Info("🔥 Event Pool Warmed up")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Prepare data directories
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, cfg.Storage.DataDir)
	snapDir := filepath.Join(dataDir, "snapshots")

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(snapDir); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	// 3.1 Singleton Instance Lock
	// Two writers on the same WAL DB would corrupt sequencing.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Initialize EventStore (Single-Writer WAL DB)
	dbPath := filepath.Join(dataDir, "events.db")
	evStore, err := storage.NewEventStore(dbPath)
	if err != nil {
		return err
	}
	b.EventStore = evStore
	slog.Info("✅ EventStore initialized (WAL-mode)", "path", dbPath)

	// 5. Snapshot manager for periodic checkpoints
	b.Snapshots = storage.NewSnapshotManager(snapDir)
	slog.Info("✅ Snapshot manager ready", "dir", snapDir)

	return nil
}

// SeedAccountStates builds the initial account states configured for this
// deployment. Applied only for venues recovery did not already restore.
func (b *Bootstrap) SeedAccountStates() ([]domain.AccountState, error) {
	now := quant.TimeStamp(time.Now().UnixMicro())

	states := make([]domain.AccountState, 0, len(b.Config.Accounts))
	for _, ac := range b.Config.Accounts {
		id, err := domain.AccountIDFromString(ac.ID)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", ac.ID, err)
		}
		cur := quant.CurrencyFromCode(ac.Currency)
		balance := quant.MoneyFromFloat(ac.Balance, cur)
		states = append(states, domain.AccountState{
			AccountID:       id,
			Currency:        cur,
			Balance:         balance,
			MarginUsed:      quant.ZeroMoney(cur),
			MarginAvailable: balance,
			Ts:              now,
		})
	}
	return states, nil
}

// SyncInstruments derives and persists instrument metadata for every
// configured feed symbol, merging with whatever a previous run stored.
func (b *Bootstrap) SyncInstruments(ctx context.Context) {
	slog.Info("🔄 Syncing instrument metadata...")

	venue := domain.Venue(b.Config.Feed.Venue)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5)

	for _, code := range b.Config.Feed.Symbols {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			symbol := domain.NewSymbol(code, venue)
			inst, ok := domain.InstrumentForPair(symbol)
			if !ok {
				slog.Warn("INSTRUMENT_UNPARSEABLE_SYMBOL", "symbol", symbol.String())
				return
			}

			// Keep precisions a previous run may have refined
			key := "instrument:" + symbol.String()
			if val, _ := b.EventStore.GetMetadata(ctx, key); val != "" {
				var existing domain.Instrument
				if err := json.Unmarshal([]byte(val), &existing); err == nil {
					inst.PricePrecision = existing.PricePrecision
					inst.SizePrecision = existing.SizePrecision
				}
			}

			data, _ := json.Marshal(inst)
			b.EventStore.UpsertMetadata(ctx, key, string(data), time.Now().UnixMicro())
		}(code)
	}

	wg.Wait()
	slog.Info("✨ Instrument metadata synced", "count", len(b.Config.Feed.Symbols))
}

// Shutdown releases startup-held resources (DB handle, instance lock).
func (b *Bootstrap) Shutdown() {
	if b.EventStore != nil {
		if err := b.EventStore.Close(); err != nil {
			slog.Warn("Failed to close event store", "err", err)
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
