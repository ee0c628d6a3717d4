package domain

import (
	"github.com/shopspring/decimal"

	"github.com/gradascent/nautilus-trader/pkg/quant"
)

var two = decimal.NewFromInt(2)

// QuoteTick represents the latest two-sided quote for a symbol.
// Ticks are immutable; only the latest tick per symbol is retained.
type QuoteTick struct {
	Symbol  Symbol          `json:"symbol"`
	Bid     quant.Price     `json:"bid"`
	Ask     quant.Price     `json:"ask"`
	BidSize quant.Quantity  `json:"bid_size"`
	AskSize quant.Quantity  `json:"ask_size"`
	Ts      quant.TimeStamp `json:"ts"`
}

// ExtractPrice returns the bid, ask, or arithmetic mid of the quote.
func (t QuoteTick) ExtractPrice(priceType quant.PriceType) quant.Price {
	switch priceType {
	case quant.PriceTypeBid:
		return t.Bid
	case quant.PriceTypeAsk:
		return t.Ask
	case quant.PriceTypeMid:
		mid := t.Bid.Decimal().Add(t.Ask.Decimal()).Div(two)
		return quant.NewPrice(mid, t.Bid.Precision()+1)
	default:
		panic("CORE_PRICE_TYPE_UNDEFINED")
	}
}
