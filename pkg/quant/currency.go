package quant

import (
	"github.com/Rhymond/go-money"
)

// Currency identifies a monetary denomination with its fixed decimal precision.
// The precision table is backed by the go-money ISO 4217 registry; crypto
// currencies are registered at init so lookups never fall back to defaults.
type Currency struct {
	Code      string `json:"code"`
	Precision int32  `json:"precision"`
}

// Common fiat and crypto currencies.
var (
	USD  = Currency{Code: "USD", Precision: 2}
	EUR  = Currency{Code: "EUR", Precision: 2}
	GBP  = Currency{Code: "GBP", Precision: 2}
	AUD  = Currency{Code: "AUD", Precision: 2}
	JPY  = Currency{Code: "JPY", Precision: 0}
	KRW  = Currency{Code: "KRW", Precision: 0}
	BTC  = Currency{Code: "BTC", Precision: 8}
	XBT  = Currency{Code: "XBT", Precision: 8}
	ETH  = Currency{Code: "ETH", Precision: 8}
	USDT = Currency{Code: "USDT", Precision: 8}
)

func init() {
	// go-money only ships ISO 4217; register crypto denominations so that
	// CurrencyFromCode resolves them with 8 fractional digits.
	for _, c := range []Currency{BTC, XBT, ETH, USDT} {
		money.AddCurrency(c.Code, c.Code, "$1", ".", ",", int(c.Precision))
	}
}

// CurrencyFromCode resolves a currency code against the registry.
// Unknown codes resolve with a precision of 2, matching go-money's default.
func CurrencyFromCode(code string) Currency {
	cur := money.GetCurrency(code)
	if cur == nil {
		return Currency{Code: code, Precision: 2}
	}
	return Currency{Code: cur.Code, Precision: int32(cur.Fraction)}
}

func (c Currency) String() string { return c.Code }

// Equal reports whether two currencies denominate the same unit.
func (c Currency) Equal(other Currency) bool { return c.Code == other.Code }
