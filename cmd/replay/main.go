package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/gradascent/nautilus-trader/backtest"
	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/internal/engine"
	"github.com/gradascent/nautilus-trader/internal/portfolio"
)

// Replays a recorded event log through a fresh sequencer and prints the
// resulting portfolio valuations per venue. "Backtest is Reality": this is
// the exact dispatch path the live process runs.
func main() {
	dbPath := flag.String("db", "", "path to events.db")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *dbPath == "" {
		slog.Error("❌ -db is required")
		os.Exit(1)
	}

	replayer, err := backtest.NewReplayer(*dbPath)
	if err != nil {
		slog.Error("❌ Failed to open event log", "error", err)
		os.Exit(1)
	}
	defer replayer.Close()

	pf := portfolio.New(logger, 0)
	seq := engine.NewSequencer(1, nil, pf, nil)

	if err := replayer.RunReplay(context.Background(), seq); err != nil {
		slog.Error("❌ Replay failed", "error", err)
		os.Exit(1)
	}

	slog.Info("✅ Replay complete", "next_seq", seq.GetNextSeq())

	for _, state := range pf.AccountStates() {
		venue := state.AccountID.Venue()
		printValuations(pf, venue)
	}
}

func printValuations(pf *portfolio.Portfolio, venue domain.Venue) {
	fmt.Printf("── %s ──\n", venue)

	acct, _ := pf.Account(venue)
	fmt.Printf("  balance:         %s\n", acct.Balance())

	if pnl, ok := pf.UnrealizedPnL(venue); ok {
		fmt.Printf("  unrealized pnl:  %s\n", pnl)
	} else {
		fmt.Println("  unrealized pnl:  unavailable")
	}
	if ov, ok := pf.OpenValue(venue); ok {
		fmt.Printf("  open value:      %s\n", ov)
	} else {
		fmt.Println("  open value:      unavailable")
	}
}
