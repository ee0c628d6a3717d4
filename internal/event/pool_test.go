package event

import (
	"testing"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/pkg/quant"
)

func TestQuoteTickEventPool(t *testing.T) {
	// Acquire and use
	ev := AcquireQuoteTickEvent()
	ev.Seq = 7
	ev.Tick.Symbol = domain.NewSymbol("BTCUSDT", domain.Venue("BINANCE"))

	if ev.Tick.Symbol.Code != "BTCUSDT" {
		t.Error("Symbol not set")
	}

	// Release
	ReleaseQuoteTickEvent(ev)

	// Acquire again - should be reset
	ev2 := AcquireQuoteTickEvent()
	if ev2.Seq != 0 || ev2.Tick.Symbol.Code != "" {
		t.Error("Event should be reset after release")
	}
	ReleaseQuoteTickEvent(ev2)
}

// BenchmarkWithoutPool measures allocation without pool
func BenchmarkWithoutPool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ev := &QuoteTickEvent{
			BaseEvent: BaseEvent{Seq: 1, Ts: quant.TimeStamp(1000)},
		}
		_ = ev
	}
}

// BenchmarkWithPool measures allocation with pool
func BenchmarkWithPool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ev := AcquireQuoteTickEvent()
		ev.Seq = 1
		ev.Ts = quant.TimeStamp(1000)
		ReleaseQuoteTickEvent(ev)
	}
}
