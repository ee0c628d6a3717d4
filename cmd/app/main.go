package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gradascent/nautilus-trader/internal/app"
	"github.com/gradascent/nautilus-trader/internal/engine"
	"github.com/gradascent/nautilus-trader/internal/event"
	"github.com/gradascent/nautilus-trader/internal/infra/feed"
	"github.com/gradascent/nautilus-trader/internal/portfolio"
	"github.com/gradascent/nautilus-trader/pkg/quant"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 0. Local .env (dev convenience; real deployments use the environment)
	_ = godotenv.Load()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background instrument metadata sync
	go bootstrap.SyncInstruments(ctx)

	// 5. Portfolio read model + Sequencer
	convPriceType, err := cfg.ConversionPriceType()
	if err != nil {
		slog.Error("❌ Invalid conversion price type", slog.Any("error", err))
		os.Exit(1)
	}
	pf := portfolio.New(slog.Default(), convPriceType)
	seq := engine.NewSequencer(1024, bootstrap.EventStore, pf, nil)

	// 6. Recovery: latest snapshot first, then the WAL tail
	snap, err := bootstrap.Snapshots.LoadLatest()
	if err != nil {
		slog.Error("❌ Snapshot load failed", slog.Any("error", err))
		os.Exit(1)
	}
	seq.RestoreFromSnapshot(snap)
	if err := seq.RecoverFromWAL(ctx); err != nil {
		slog.Error("❌ WAL recovery failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Start Sequencer in its own goroutine (The Hotpath Loop)
	go seq.Run(ctx)
	slog.InfoContext(ctx, "✅ Sequencer (Hotpath) started")

	// External producers continue the recovered sequence
	nextSeq := seq.GetNextSeq() - 1

	// 7. Seed configured accounts that recovery did not restore
	states, err := bootstrap.SeedAccountStates()
	if err != nil {
		slog.Error("❌ Invalid account config", slog.Any("error", err))
		os.Exit(1)
	}
	for _, state := range states {
		if _, ok := pf.Account(state.AccountID.Venue()); ok {
			continue
		}
		seq.Inbox() <- &event.AccountStateEvent{
			BaseEvent: event.BaseEvent{
				Seq:     quant.NextSeq(&nextSeq),
				Ts:      state.Ts,
				EventID: uuid.New(),
			},
			State: state,
		}
		slog.InfoContext(ctx, "✅ Account seeded", slog.String("account", state.AccountID.String()))
	}

	// 8. Quote feed worker (Gateway)
	worker := feed.NewWorker(cfg.Feed, seq.Inbox(), &nextSeq)
	if err := worker.Connect(ctx); err != nil {
		slog.Error("Failed to connect feed", slog.Any("error", err))
	}
	defer worker.Disconnect()
	slog.InfoContext(ctx, "✅ Feed worker started",
		slog.String("venue", cfg.Feed.Venue),
		slog.Int("symbols", len(cfg.Feed.Symbols)))

	// 9. Periodic snapshots so restarts replay a short WAL tail only
	if cfg.Storage.SnapshotIntervalSec > 0 {
		go snapshotLoop(ctx, seq, bootstrap)
	}

	slog.InfoContext(ctx, "✨ System fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}

func snapshotLoop(ctx context.Context, seq *engine.Sequencer, bootstrap *app.Bootstrap) {
	interval := time.Duration(bootstrap.Config.Storage.SnapshotIntervalSec) * time.Second
	keep := bootstrap.Config.Storage.SnapshotKeep
	if keep == 0 {
		keep = 3
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := bootstrap.Snapshots.Save(seq.StateSnapshot()); err != nil {
				slog.Warn("Snapshot save failed", slog.Any("error", err))
				continue
			}
			if err := bootstrap.Snapshots.Cleanup(keep); err != nil {
				slog.Warn("Snapshot cleanup failed", slog.Any("error", err))
			}
		}
	}
}
