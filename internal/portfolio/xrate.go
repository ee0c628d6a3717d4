package portfolio

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/pkg/quant"
)

var one = decimal.NewFromInt(1)

// ExchangeRateResolver computes a conversion rate between two currencies from
// the latest available two-sided quotes.
//
// Resolution is direct (a cached quote whose pair is exactly from/to),
// inverted (the reciprocal of a cached to/from quote), or unavailable.
// Unavailable is a legitimate missing-data state, not an error: callers must
// treat it as a valid terminal outcome. Triangulation through a third
// currency is deliberately not attempted.
type ExchangeRateResolver struct{}

// Rate returns the from->to conversion rate at the requested price type,
// or false if no direct or inverse quote is cached.
func (ExchangeRateResolver) Rate(
	ticks map[domain.Symbol]domain.QuoteTick,
	from, to quant.Currency,
	priceType quant.PriceType,
) (decimal.Decimal, bool) {
	if from.Equal(to) {
		return one, true
	}

	direct := from.Code + to.Code
	inverse := to.Code + from.Code

	for _, tick := range ticks {
		switch normalizePair(tick.Symbol.Code) {
		case direct:
			return tick.ExtractPrice(priceType).Decimal(), true
		case inverse:
			px := tick.ExtractPrice(priceType).Decimal()
			if px.IsZero() {
				return decimal.Zero, false
			}
			return one.Div(px), true
		}
	}

	return decimal.Zero, false
}

// normalizePair strips pair separators so "AUD/USD" and "AUDUSD" match.
func normalizePair(code string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '-', '_', '.':
			return -1
		}
		return r
	}, code)
}
