package event

import (
	"github.com/google/uuid"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// Type defines the type of event. The set is closed: the sequencer and the
// store dispatch exhaustively on it, so a new kind is a compile-visible
// change, never a silent no-op.
type Type uint16

const (
	EvQuoteTick Type = iota + 1
	EvAccountState
	EvOrderFilled
	EvPositionOpened
	EvPositionModified
	EvPositionClosed
)

// Event is the interface for all sequencer events.
type Event interface {
	GetSeq() uint64
	GetTs() quant.TimeStamp
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq     uint64          `json:"seq"`
	Ts      quant.TimeStamp `json:"ts"`
	EventID uuid.UUID       `json:"event_id"`
}

func (e BaseEvent) GetSeq() uint64         { return e.Seq }
func (e BaseEvent) GetTs() quant.TimeStamp { return e.Ts }

// QuoteTickEvent carries the latest two-sided quote for a symbol.
type QuoteTickEvent struct {
	BaseEvent
	Tick domain.QuoteTick `json:"tick"`
}

func (e QuoteTickEvent) GetType() Type { return EvQuoteTick }

// AccountStateEvent carries a wholesale account balance snapshot.
type AccountStateEvent struct {
	BaseEvent
	State domain.AccountState `json:"state"`
}

func (e AccountStateEvent) GetType() Type { return EvAccountState }

// OrderFilledEvent confirms that an order executed.
type OrderFilledEvent struct {
	BaseEvent
	Fill domain.Fill `json:"fill"`
}

func (e OrderFilledEvent) GetType() Type { return EvOrderFilled }

// PositionEvent is the closed set of position lifecycle events.
type PositionEvent interface {
	Event
	Snapshot() domain.PositionSnapshot
}

// PositionOpenedEvent carries the full snapshot of a newly opened position.
type PositionOpenedEvent struct {
	BaseEvent
	Position domain.PositionSnapshot `json:"position"`
}

func (e PositionOpenedEvent) GetType() Type                     { return EvPositionOpened }
func (e PositionOpenedEvent) Snapshot() domain.PositionSnapshot { return e.Position }

// PositionModifiedEvent carries the full current snapshot, not a diff.
type PositionModifiedEvent struct {
	BaseEvent
	Position domain.PositionSnapshot `json:"position"`
}

func (e PositionModifiedEvent) GetType() Type                     { return EvPositionModified }
func (e PositionModifiedEvent) Snapshot() domain.PositionSnapshot { return e.Position }

// PositionClosedEvent carries the final snapshot of a closed position.
type PositionClosedEvent struct {
	BaseEvent
	Position domain.PositionSnapshot `json:"position"`
}

func (e PositionClosedEvent) GetType() Type                     { return EvPositionClosed }
func (e PositionClosedEvent) Snapshot() domain.PositionSnapshot { return e.Position }
