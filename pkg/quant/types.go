package quant

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

// NextSeq generates the next sequence number atomically.
func NextSeq(ptr *uint64) uint64 {
	return atomic.AddUint64(ptr, 1)
}

// ParseTimeStamp converts a string (ms) to TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeStamp(ms * 1000), nil
}

// PriceType selects which side of a two-sided quote to read.
type PriceType uint8

const (
	PriceTypeBid PriceType = iota + 1
	PriceTypeAsk
	PriceTypeMid
)

func (p PriceType) String() string {
	switch p {
	case PriceTypeBid:
		return "BID"
	case PriceTypeAsk:
		return "ASK"
	case PriceTypeMid:
		return "MID"
	default:
		return "UNDEFINED"
	}
}

// Quantity is a non-negative decimal magnitude with a fixed number of
// fractional digits per instrument. Constructing a negative quantity is a
// programming error and panics.
type Quantity struct {
	value     decimal.Decimal
	precision int32
}

// NewQuantity creates a quantity rounded to the given precision.
func NewQuantity(value decimal.Decimal, precision int32) Quantity {
	if value.IsNegative() {
		panic("CORE_QUANTITY_NEGATIVE: " + value.String())
	}
	return Quantity{value: value.Round(precision), precision: precision}
}

// QuantityFromString parses a quantity, inferring precision from the literal.
// E.g., "2.54" has precision 2.
func QuantityFromString(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	if d.IsNegative() {
		return Quantity{}, fmt.Errorf("invalid quantity %q: negative", s)
	}
	return Quantity{value: d, precision: precisionOf(d)}, nil
}

// QuantityFromInt creates a whole-unit quantity.
func QuantityFromInt(n int64) Quantity {
	if n < 0 {
		panic("CORE_QUANTITY_NEGATIVE: " + strconv.FormatInt(n, 10))
	}
	return Quantity{value: decimal.NewFromInt(n)}
}

func (q Quantity) Decimal() decimal.Decimal    { return q.value }
func (q Quantity) Precision() int32            { return q.precision }
func (q Quantity) IsZero() bool                { return q.value.IsZero() }
func (q Quantity) Equal(o Quantity) bool       { return q.value.Equal(o.value) }
func (q Quantity) GreaterThan(o Quantity) bool { return q.value.GreaterThan(o.value) }
func (q Quantity) LessThan(o Quantity) bool    { return q.value.LessThan(o.value) }

// Add returns the sum, keeping the wider precision of the two operands.
func (q Quantity) Add(o Quantity) Quantity {
	return Quantity{value: q.value.Add(o.value), precision: maxPrecision(q.precision, o.precision)}
}

// Sub returns the difference. A negative result breaks the non-negativity
// invariant and panics.
func (q Quantity) Sub(o Quantity) Quantity {
	v := q.value.Sub(o.value)
	if v.IsNegative() {
		panic("CORE_QUANTITY_SUB_NEGATIVE: " + q.value.String() + " - " + o.value.String())
	}
	return Quantity{value: v, precision: maxPrecision(q.precision, o.precision)}
}

func (q Quantity) String() string { return q.value.StringFixed(q.precision) }

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(q.String())), nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	parsed, err := QuantityFromString(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Price is a positive decimal with fixed fractional digits per instrument.
// Prices compare and scale; they are never added to quantities.
type Price struct {
	value     decimal.Decimal
	precision int32
}

// NewPrice creates a price rounded to the given precision.
// Non-positive prices are a programming error and panic.
func NewPrice(value decimal.Decimal, precision int32) Price {
	if !value.IsPositive() {
		panic("CORE_PRICE_NOT_POSITIVE: " + value.String())
	}
	return Price{value: value.Round(precision), precision: precision}
}

// PriceFromString parses a price, inferring precision from the literal.
func PriceFromString(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if !d.IsPositive() {
		return Price{}, fmt.Errorf("invalid price %q: not positive", s)
	}
	return Price{value: d, precision: precisionOf(d)}, nil
}

func (p Price) Decimal() decimal.Decimal { return p.value }
func (p Price) Precision() int32         { return p.precision }
func (p Price) IsZero() bool             { return p.value.IsZero() }
func (p Price) Equal(o Price) bool       { return p.value.Equal(o.value) }
func (p Price) GreaterThan(o Price) bool { return p.value.GreaterThan(o.value) }
func (p Price) LessThan(o Price) bool    { return p.value.LessThan(o.value) }

func (p Price) String() string { return p.value.StringFixed(p.precision) }

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	parsed, err := PriceFromString(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Money is a decimal amount denominated in a single currency. Amounts may be
// negative (a realized loss). Arithmetic across currencies is a programming
// error and panics; callers must convert first.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a monetary value rounded to the currency's precision.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount.Round(currency.Precision), currency: currency}
}

// MoneyFromFloat is a test/boundary convenience; internal logic stays decimal.
func MoneyFromFloat(amount float64, currency Currency) Money {
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

// ZeroMoney returns a zero value in the given currency.
func ZeroMoney(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Decimal() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency       { return m.currency }
func (m Money) IsZero() bool             { return m.amount.IsZero() }
func (m Money) IsNegative() bool         { return m.amount.IsNegative() }
func (m Money) IsPositive() bool         { return m.amount.IsPositive() }

func (m Money) Equal(o Money) bool {
	return m.currency.Equal(o.currency) && m.amount.Equal(o.amount)
}

func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount), currency: sameCurrency(m, o)}
}

func (m Money) Sub(o Money) Money {
	return Money{amount: m.amount.Sub(o.amount), currency: sameCurrency(m, o)}
}

func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

func (m Money) String() string {
	return m.amount.StringFixed(m.currency.Precision) + " " + m.currency.Code
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"amount":%q,"currency":%q}`,
		m.amount.StringFixed(m.currency.Precision), m.currency.Code)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var raw struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid money amount %q: %w", raw.Amount, err)
	}
	*m = NewMoney(d, CurrencyFromCode(raw.Currency))
	return nil
}

func sameCurrency(a, b Money) Currency {
	if !a.currency.Equal(b.currency) {
		panic("CORE_CURRENCY_MISMATCH: " + a.currency.Code + " != " + b.currency.Code)
	}
	return a.currency
}

func precisionOf(d decimal.Decimal) int32 {
	if d.Exponent() < 0 {
		return -d.Exponent()
	}
	return 0
}

func maxPrecision(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
