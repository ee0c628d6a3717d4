package event

import (
	"sync"

	"github.com/gradascent/nautilus-trader/internal/domain"
)

// tickPool recycles QuoteTickEvents. Quote ticks are the hot path: one event
// per feed message, so pooling keeps the feed workers allocation-free.
var tickPool = sync.Pool{
	New: func() any {
		return &QuoteTickEvent{}
	},
}

// AcquireQuoteTickEvent gets a reset QuoteTickEvent from the pool.
func AcquireQuoteTickEvent() *QuoteTickEvent {
	return tickPool.Get().(*QuoteTickEvent)
}

// ReleaseQuoteTickEvent resets the event and returns it to the pool.
// The caller must not touch the event afterwards.
func ReleaseQuoteTickEvent(ev *QuoteTickEvent) {
	ev.BaseEvent = BaseEvent{}
	ev.Tick = domain.QuoteTick{}
	tickPool.Put(ev)
}

// Warmup pre-populates the pool to avoid allocation bursts at startup.
func Warmup() {
	const warmCount = 128
	events := make([]*QuoteTickEvent, 0, warmCount)
	for i := 0; i < warmCount; i++ {
		events = append(events, AcquireQuoteTickEvent())
	}
	for _, ev := range events {
		ReleaseQuoteTickEvent(ev)
	}
}
