package domain

import (
	"strings"

	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// Instrument represents tradeable-instrument metadata: the currency pair and
// the fixed decimal precisions every Price/Quantity on this instrument uses.
type Instrument struct {
	Symbol         Symbol         `json:"symbol"`
	BaseCurrency   quant.Currency `json:"base_currency"`
	QuoteCurrency  quant.Currency `json:"quote_currency"`
	PricePrecision int32          `json:"price_precision"`
	SizePrecision  int32          `json:"size_precision"`
	IsActive       bool           `json:"is_active"` // Active trading status
}

// InstrumentForPair derives instrument metadata from a pair-shaped symbol
// code like "AUD/USD", "BTC-USDT" or "GBP_USD". False when the code does not
// split into exactly two currency legs.
func InstrumentForPair(symbol Symbol) (Instrument, bool) {
	code := symbol.Code
	var parts []string
	for _, sep := range []string{"/", "-", "_"} {
		if strings.Contains(code, sep) {
			parts = strings.Split(code, sep)
			break
		}
	}
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Instrument{}, false
	}

	base := quant.CurrencyFromCode(parts[0])
	quote := quant.CurrencyFromCode(parts[1])
	return Instrument{
		Symbol:         symbol,
		BaseCurrency:   base,
		QuoteCurrency:  quote,
		PricePrecision: 5,
		SizePrecision:  base.Precision,
		IsActive:       true,
	}, true
}
