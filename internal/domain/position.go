package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// ErrInvalidFill signals a fill that contradicts the position's identity
// (wrong symbol, wrong currencies, zero quantity, or a closed position).
// This is a programming error upstream, not a market-data condition.
var ErrInvalidFill = errors.New("invalid fill")

// OrderSide is the direction of a fill.
type OrderSide uint8

const (
	SideBuy OrderSide = iota + 1
	SideSell
)

func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNDEFINED"
	}
}

// PositionSide is the net exposure direction of a position.
type PositionSide uint8

const (
	SideFlat PositionSide = iota
	SideLong
	SideShort
)

func (s PositionSide) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Fill is the confirmation that an order executed at a given price/quantity.
type Fill struct {
	OrderID       OrderID         `json:"order_id"`
	PositionID    PositionID      `json:"position_id"`
	StrategyID    StrategyID      `json:"strategy_id"`
	Symbol        Symbol          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Quantity      quant.Quantity  `json:"quantity"`
	Price         quant.Price     `json:"price"`
	BaseCurrency  quant.Currency  `json:"base_currency"`
	QuoteCurrency quant.Currency  `json:"quote_currency"`
	Commission    quant.Money     `json:"commission"`
	Ts            quant.TimeStamp `json:"ts"`
}

// Position tracks net open exposure on one symbol under one position id.
//
// State machine: FLAT -> LONG/SHORT on the first fill; same-direction fills
// increase quantity and re-average the entry price; opposite-direction fills
// reduce quantity and realize PnL on the reduced portion, flipping side at
// the fill price if they overshoot. Quantity is never negative; side is FLAT
// iff quantity is zero; the average entry price is undefined when FLAT.
// FLAT is terminal for an id: reopening requires a new position id.
type Position struct {
	ID            PositionID
	StrategyID    StrategyID
	Symbol        Symbol
	BaseCurrency  quant.Currency
	QuoteCurrency quant.Currency

	side          PositionSide
	quantity      quant.Quantity
	avgEntryPrice decimal.Decimal
	realizedPnL   decimal.Decimal // quote currency
	commissions   decimal.Decimal // quote currency, tracked apart from PnL
	openedTs      quant.TimeStamp
	closedTs      quant.TimeStamp
	fillCount     int
}

// NewPosition opens a position from the first fill of a new position id.
func NewPosition(fill Fill) (*Position, error) {
	if fill.Quantity.IsZero() {
		return nil, fmt.Errorf("%w: zero quantity", ErrInvalidFill)
	}
	if c := fill.Commission.Currency(); c.Code != "" && !c.Equal(fill.QuoteCurrency) {
		return nil, fmt.Errorf("%w: commission in %s, quote currency is %s",
			ErrInvalidFill, c, fill.QuoteCurrency)
	}

	p := &Position{
		ID:            fill.PositionID,
		StrategyID:    fill.StrategyID,
		Symbol:        fill.Symbol,
		BaseCurrency:  fill.BaseCurrency,
		QuoteCurrency: fill.QuoteCurrency,
		side:          sideForOrder(fill.Side),
		quantity:      fill.Quantity,
		avgEntryPrice: fill.Price.Decimal(),
		commissions:   fill.Commission.Decimal(),
		openedTs:      fill.Ts,
		fillCount:     1,
	}
	return p, nil
}

// Apply mutates the position with a subsequent fill on the same id.
func (p *Position) Apply(fill Fill) error {
	if err := p.validate(fill); err != nil {
		return err
	}

	fillQty := fill.Quantity.Decimal()
	fillPrice := fill.Price.Decimal()
	current := p.quantity.Decimal()
	precision := p.quantity.Precision()
	if fill.Quantity.Precision() > precision {
		precision = fill.Quantity.Precision()
	}

	same := (p.side == SideLong && fill.Side == SideBuy) ||
		(p.side == SideShort && fill.Side == SideSell)

	if same {
		// Increase exposure: quantity-weighted average entry price.
		newQty := current.Add(fillQty)
		p.avgEntryPrice = p.avgEntryPrice.Mul(current).Add(fillPrice.Mul(fillQty)).Div(newQty)
		p.quantity = quant.NewQuantity(newQty, precision)
	} else {
		// Reduce exposure: realize PnL on the reduced portion.
		reduced := decimal.Min(fillQty, current)
		delta := fillPrice.Sub(p.avgEntryPrice).Mul(reduced)
		if p.side == SideShort {
			delta = delta.Neg()
		}
		p.realizedPnL = p.realizedPnL.Add(delta)

		switch fillQty.Cmp(current) {
		case -1: // partial reduce, entry price unchanged
			p.quantity = quant.NewQuantity(current.Sub(fillQty), precision)
		case 0: // exact close
			p.side = SideFlat
			p.quantity = quant.NewQuantity(decimal.Zero, precision)
			p.avgEntryPrice = decimal.Zero
			p.closedTs = fill.Ts
		case 1: // overshoot: residual becomes the opposite side at the fill price
			p.side = opposite(p.side)
			p.quantity = quant.NewQuantity(fillQty.Sub(current), precision)
			p.avgEntryPrice = fillPrice
		}
	}

	p.commissions = p.commissions.Add(fill.Commission.Decimal())
	p.fillCount++
	return nil
}

func (p *Position) validate(fill Fill) error {
	if p.IsClosed() {
		return fmt.Errorf("%w: position %s is closed, a new id is required to reopen", ErrInvalidFill, p.ID)
	}
	if fill.PositionID != p.ID {
		return fmt.Errorf("%w: position id %s != %s", ErrInvalidFill, fill.PositionID, p.ID)
	}
	if fill.Symbol != p.Symbol {
		return fmt.Errorf("%w: symbol %s != %s", ErrInvalidFill, fill.Symbol, p.Symbol)
	}
	if !fill.BaseCurrency.Equal(p.BaseCurrency) || !fill.QuoteCurrency.Equal(p.QuoteCurrency) {
		return fmt.Errorf("%w: currency pair %s/%s != %s/%s", ErrInvalidFill,
			fill.BaseCurrency, fill.QuoteCurrency, p.BaseCurrency, p.QuoteCurrency)
	}
	if c := fill.Commission.Currency(); c.Code != "" && !c.Equal(p.QuoteCurrency) {
		return fmt.Errorf("%w: commission in %s, quote currency is %s",
			ErrInvalidFill, c, p.QuoteCurrency)
	}
	if fill.Quantity.IsZero() {
		return fmt.Errorf("%w: zero quantity", ErrInvalidFill)
	}
	return nil
}

// UnrealizedPnL is a pure function of side, quantity, average entry price
// and the supplied mark price. The result is signed Money in quote currency.
func (p *Position) UnrealizedPnL(mark quant.Price) quant.Money {
	switch p.side {
	case SideLong:
		return quant.NewMoney(mark.Decimal().Sub(p.avgEntryPrice).Mul(p.quantity.Decimal()), p.QuoteCurrency)
	case SideShort:
		return quant.NewMoney(p.avgEntryPrice.Sub(mark.Decimal()).Mul(p.quantity.Decimal()), p.QuoteCurrency)
	default:
		return quant.ZeroMoney(p.QuoteCurrency)
	}
}

func (p *Position) Side() PositionSide       { return p.side }
func (p *Position) Quantity() quant.Quantity { return p.quantity }
func (p *Position) IsLong() bool             { return p.side == SideLong }
func (p *Position) IsShort() bool            { return p.side == SideShort }
func (p *Position) IsOpen() bool             { return p.side != SideFlat }
func (p *Position) IsClosed() bool           { return p.side == SideFlat && p.fillCount > 0 }
func (p *Position) FillCount() int           { return p.fillCount }

// AvgEntryPrice is undefined (zero) when the position is FLAT.
func (p *Position) AvgEntryPrice() decimal.Decimal { return p.avgEntryPrice }

// RealizedPnL is the PnL locked in by reducing fills, excluding commissions.
func (p *Position) RealizedPnL() quant.Money {
	return quant.NewMoney(p.realizedPnL, p.QuoteCurrency)
}

// Commissions is the accumulated commission in quote currency.
func (p *Position) Commissions() quant.Money {
	return quant.NewMoney(p.commissions, p.QuoteCurrency)
}

func (p *Position) OpenedTs() quant.TimeStamp { return p.openedTs }
func (p *Position) ClosedTs() quant.TimeStamp { return p.closedTs }

// PositionSnapshot is the full serializable state of a position, carried by
// position lifecycle events instead of diffs.
type PositionSnapshot struct {
	ID            PositionID      `json:"id"`
	StrategyID    StrategyID      `json:"strategy_id"`
	Symbol        Symbol          `json:"symbol"`
	BaseCurrency  quant.Currency  `json:"base_currency"`
	QuoteCurrency quant.Currency  `json:"quote_currency"`
	Side          PositionSide    `json:"side"`
	Quantity      quant.Quantity  `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Commissions   decimal.Decimal `json:"commissions"`
	OpenedTs      quant.TimeStamp `json:"opened_ts"`
	ClosedTs      quant.TimeStamp `json:"closed_ts"`
	FillCount     int             `json:"fill_count"`
}

// Snapshot captures the position's current state.
func (p *Position) Snapshot() PositionSnapshot {
	return PositionSnapshot{
		ID:            p.ID,
		StrategyID:    p.StrategyID,
		Symbol:        p.Symbol,
		BaseCurrency:  p.BaseCurrency,
		QuoteCurrency: p.QuoteCurrency,
		Side:          p.side,
		Quantity:      p.quantity,
		AvgEntryPrice: p.avgEntryPrice,
		RealizedPnL:   p.realizedPnL,
		Commissions:   p.commissions,
		OpenedTs:      p.openedTs,
		ClosedTs:      p.closedTs,
		FillCount:     p.fillCount,
	}
}

// PositionFromSnapshot reconstructs a position from its serialized state.
func PositionFromSnapshot(s PositionSnapshot) *Position {
	return &Position{
		ID:            s.ID,
		StrategyID:    s.StrategyID,
		Symbol:        s.Symbol,
		BaseCurrency:  s.BaseCurrency,
		QuoteCurrency: s.QuoteCurrency,
		side:          s.Side,
		quantity:      s.Quantity,
		avgEntryPrice: s.AvgEntryPrice,
		realizedPnL:   s.RealizedPnL,
		commissions:   s.Commissions,
		openedTs:      s.OpenedTs,
		closedTs:      s.ClosedTs,
		fillCount:     s.FillCount,
	}
}

func sideForOrder(side OrderSide) PositionSide {
	if side == SideBuy {
		return SideLong
	}
	return SideShort
}

func opposite(side PositionSide) PositionSide {
	if side == SideLong {
		return SideShort
	}
	return SideLong
}
