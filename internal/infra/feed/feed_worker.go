package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/internal/event"
	"github.com/gradascent/nautilus-trader/internal/infra"
	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// quoteMessage is the wire shape of one two-sided quote.
// Uses json.Number so prices never pass through float64.
type quoteMessage struct {
	Type    string      `json:"type"` // quote
	Symbol  string      `json:"symbol"`
	Bid     json.Number `json:"bid"`
	Ask     json.Number `json:"ask"`
	BidSize json.Number `json:"bid_size"`
	AskSize json.Number `json:"ask_size"`
	Ts      int64       `json:"ts"` // ms
}

// Worker subscribes to a venue quote stream and feeds ticks to the sequencer.
type Worker struct {
	base    *infra.StreamWorker
	venue   domain.Venue
	url     string
	symbols []string
	inbox   chan<- event.Event
	seq     *uint64
}

// NewWorker creates a quote feed worker for the configured venue.
func NewWorker(cfg infra.FeedConfig, inbox chan<- event.Event, seq *uint64) *Worker {
	w := &Worker{
		venue:   domain.Venue(cfg.Venue),
		url:     cfg.WSURL,
		symbols: cfg.Symbols,
		inbox:   inbox,
		seq:     seq,
	}
	w.base = infra.NewStreamWorker(w)
	if cfg.ReconnectCapSec > 0 {
		w.base.Backoff.Cap = time.Duration(cfg.ReconnectCapSec) * time.Second
	}
	return w
}

// Venue returns the venue this worker streams quotes for.
func (w *Worker) Venue() domain.Venue { return w.venue }

// URL returns the WebSocket endpoint.
func (w *Worker) URL() string { return w.url }

// Connect starts the WebSocket connection.
func (w *Worker) Connect(ctx context.Context) error {
	w.base.Start(ctx)
	return nil
}

// Disconnect terminates the connection.
func (w *Worker) Disconnect() {
	w.base.Stop()
}

// OnConnect subscribes to the configured symbols.
func (w *Worker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"op":      "subscribe",
		"channel": "quote",
		"symbols": w.symbols,
		"ts":      time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(msg)
	return w.base.Write(websocket.TextMessage, b)
}

// OnMessage handles incoming quote updates.
func (w *Worker) OnMessage(ctx context.Context, msg []byte) {
	var resp quoteMessage
	if err := json.Unmarshal(msg, &resp); err != nil || resp.Type != "quote" {
		return
	}

	bid, err := quant.PriceFromString(resp.Bid.String())
	if err != nil {
		slog.Warn("FEED_BAD_QUOTE", "venue", w.venue, "symbol", resp.Symbol, "err", err)
		return
	}
	ask, err := quant.PriceFromString(resp.Ask.String())
	if err != nil {
		slog.Warn("FEED_BAD_QUOTE", "venue", w.venue, "symbol", resp.Symbol, "err", err)
		return
	}
	bidSize, err := quant.QuantityFromString(resp.BidSize.String())
	if err != nil {
		slog.Warn("FEED_BAD_QUOTE", "venue", w.venue, "symbol", resp.Symbol, "err", err)
		return
	}
	askSize, err := quant.QuantityFromString(resp.AskSize.String())
	if err != nil {
		slog.Warn("FEED_BAD_QUOTE", "venue", w.venue, "symbol", resp.Symbol, "err", err)
		return
	}

	ev := event.AcquireQuoteTickEvent()
	ev.Seq = quant.NextSeq(w.seq)
	ev.Ts = quant.TimeStamp(resp.Ts * 1000)
	ev.EventID = uuid.New()
	ev.Tick = domain.QuoteTick{
		Symbol:  domain.NewSymbol(resp.Symbol, w.venue),
		Bid:     bid,
		Ask:     ask,
		BidSize: bidSize,
		AskSize: askSize,
		Ts:      quant.TimeStamp(resp.Ts * 1000),
	}

	select {
	case w.inbox <- ev:
	default:
		// Drop if inbox is full, but release to pool to prevent leak.
		event.ReleaseQuoteTickEvent(ev)
	}
}

// OnPing keeps the connection alive with a heartbeat frame.
func (w *Worker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return w.base.Write(websocket.TextMessage, []byte(`{"op":"ping"}`))
}
