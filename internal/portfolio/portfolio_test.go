package portfolio

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/internal/event"
	"github.com/gradascent/nautilus-trader/pkg/quant"
)

var (
	fxcm    = domain.Venue("FXCM")
	binance = domain.Venue("BINANCE")
	bitmex  = domain.Venue("BITMEX")

	audusd = domain.NewSymbol("AUD/USD", fxcm)
	gbpusd = domain.NewSymbol("GBP/USD", fxcm)
	btcusd = domain.NewSymbol("BTC/USD", binance)
	ethusd = domain.NewSymbol("ETH/USD", bitmex)
)

func mustQty(t *testing.T, s string) quant.Quantity {
	t.Helper()
	q, err := quant.QuantityFromString(s)
	if err != nil {
		t.Fatalf("bad quantity %q: %v", s, err)
	}
	return q
}

func mustPrice(t *testing.T, s string) quant.Price {
	t.Helper()
	p, err := quant.PriceFromString(s)
	if err != nil {
		t.Fatalf("bad price %q: %v", s, err)
	}
	return p
}

func testAccount(t *testing.T, id string, cur quant.Currency, balance float64) *domain.Account {
	t.Helper()
	accountID, err := domain.AccountIDFromString(id)
	if err != nil {
		t.Fatalf("bad account id %q: %v", id, err)
	}
	return domain.NewAccount(domain.AccountState{
		AccountID:       accountID,
		Currency:        cur,
		Balance:         quant.MoneyFromFloat(balance, cur),
		MarginUsed:      quant.ZeroMoney(cur),
		MarginAvailable: quant.MoneyFromFloat(balance, cur),
		Ts:              quant.TimeStamp(0),
	})
}

func testPosition(t *testing.T, id string, symbol domain.Symbol, side domain.OrderSide, quantity, fillPrice string, base, quote quant.Currency) *domain.Position {
	t.Helper()
	pos, err := domain.NewPosition(domain.Fill{
		OrderID:       domain.OrderID("O-" + id),
		PositionID:    domain.PositionID(id),
		StrategyID:    domain.StrategyID("S-001"),
		Symbol:        symbol,
		Side:          side,
		Quantity:      mustQty(t, quantity),
		Price:         mustPrice(t, fillPrice),
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Commission:    quant.ZeroMoney(quote),
		Ts:            quant.TimeStamp(1000),
	})
	if err != nil {
		t.Fatalf("NewPosition failed: %v", err)
	}
	return pos
}

func applyFill(t *testing.T, pos *domain.Position, side domain.OrderSide, quantity, fillPrice string) {
	t.Helper()
	err := pos.Apply(domain.Fill{
		OrderID:       domain.OrderID("O-next"),
		PositionID:    pos.ID,
		StrategyID:    pos.StrategyID,
		Symbol:        pos.Symbol,
		Side:          side,
		Quantity:      mustQty(t, quantity),
		Price:         mustPrice(t, fillPrice),
		BaseCurrency:  pos.BaseCurrency,
		QuoteCurrency: pos.QuoteCurrency,
		Commission:    quant.ZeroMoney(pos.QuoteCurrency),
		Ts:            quant.TimeStamp(2000),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
}

func opened(pos *domain.Position) *event.PositionOpenedEvent {
	return &event.PositionOpenedEvent{
		BaseEvent: event.BaseEvent{EventID: uuid.New()},
		Position:  pos.Snapshot(),
	}
}

func modified(pos *domain.Position) *event.PositionModifiedEvent {
	return &event.PositionModifiedEvent{
		BaseEvent: event.BaseEvent{EventID: uuid.New()},
		Position:  pos.Snapshot(),
	}
}

func closed(pos *domain.Position) *event.PositionClosedEvent {
	return &event.PositionClosedEvent{
		BaseEvent: event.BaseEvent{EventID: uuid.New()},
		Position:  pos.Snapshot(),
	}
}

func tick(t *testing.T, symbol domain.Symbol, bid, ask string) domain.QuoteTick {
	t.Helper()
	return domain.QuoteTick{
		Symbol:  symbol,
		Bid:     mustPrice(t, bid),
		Ask:     mustPrice(t, ask),
		BidSize: mustQty(t, "1"),
		AskSize: mustQty(t, "1"),
		Ts:      quant.TimeStamp(3000),
	}
}

func TestAccount_WhenNoAccountReturnsFalse(t *testing.T) {
	p := New(nil, 0)

	if _, ok := p.Account(fxcm); ok {
		t.Error("expected no account for unregistered venue")
	}
}

func TestAccount_WhenRegisteredReturnsAccount(t *testing.T) {
	p := New(nil, 0)
	acct := testAccount(t, "BINANCE-1513111-SIMULATED", quant.BTC, 10)
	p.RegisterAccount(acct)

	got, ok := p.Account(binance)
	if !ok {
		t.Fatal("expected registered account")
	}
	if got != acct {
		t.Error("expected the registered account instance")
	}
}

func TestRegisterAccount_SecondAccountReplacesFirst(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "BINANCE-1513111-SIMULATED", quant.BTC, 10))
	p.RegisterAccount(testAccount(t, "BINANCE-9999999-LIVE", quant.BTC, 20))

	got, ok := p.Account(binance)
	if !ok {
		t.Fatal("expected registered account")
	}
	if want := quant.MoneyFromFloat(20, quant.BTC); !got.Balance().Equal(want) {
		t.Errorf("Balance = %s; want %s (the replacement account)", got.Balance(), want)
	}
}

func TestValuations_WhenNoAccountReturnFalse(t *testing.T) {
	p := New(nil, 0)

	if _, ok := p.UnrealizedPnL(fxcm); ok {
		t.Error("UnrealizedPnL: expected false without account")
	}
	if _, ok := p.OpenValue(fxcm); ok {
		t.Error("OpenValue: expected false without account")
	}
	if _, ok := p.OrderMargin(fxcm); ok {
		t.Error("OrderMargin: expected false without account")
	}
	if _, ok := p.PositionMargin(fxcm); ok {
		t.Error("PositionMargin: expected false without account")
	}
}

func TestOpeningOnePosition_UpdatesPortfolio(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "BINANCE-1513111-SIMULATED", quant.BTC, 10))

	pos := testPosition(t, "P-123456", btcusd, domain.SideBuy, "10", "10500.00", quant.BTC, quant.USD)
	p.UpdatePosition(opened(pos))
	p.UpdateTick(tick(t, btcusd, "10500.05", "10501.51"))

	openValue, ok := p.OpenValue(binance)
	if !ok {
		t.Fatal("OpenValue: expected a value")
	}
	if want := quant.MoneyFromFloat(10, quant.BTC); !openValue.Equal(want) {
		t.Errorf("OpenValue = %s; want %s", openValue, want)
	}

	pnl, ok := p.UnrealizedPnL(binance)
	if !ok {
		t.Fatal("UnrealizedPnL: expected a value")
	}
	// (10500.05 - 10500.00) * 10 = 0.50 USD, converted at 1/10500.05.
	if want := quant.MoneyFromFloat(0.00004762, quant.BTC); !pnl.Equal(want) {
		t.Errorf("UnrealizedPnL = %s; want %s", pnl, want)
	}
}

func TestUnrealizedPnL_NoQuoteCached_ReturnsFalse(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "BITMEX-01234-SIMULATED", quant.XBT, 10))

	pos := testPosition(t, "P-123456", ethusd, domain.SideBuy, "100", "376.05", quant.ETH, quant.USD)
	p.UpdatePosition(opened(pos))

	if _, ok := p.UnrealizedPnL(bitmex); ok {
		t.Error("expected false with no quote cached")
	}
}

func TestValuations_InsufficientDataForXrate_ReturnFalse(t *testing.T) {
	// Account base XBT, position quoted in USD, only the ETH/USD quote is
	// cached: neither the USD nor the ETH leg can reach XBT.
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "BITMEX-01234-SIMULATED", quant.XBT, 10))

	pos := testPosition(t, "P-123456", ethusd, domain.SideBuy, "100", "376.05", quant.ETH, quant.USD)
	p.UpdatePosition(opened(pos))
	p.UpdateTick(tick(t, ethusd, "376.05", "377.10"))

	if _, ok := p.UnrealizedPnL(bitmex); ok {
		t.Error("UnrealizedPnL: expected false with unresolvable rate")
	}
	if _, ok := p.OpenValue(bitmex); ok {
		t.Error("OpenValue: expected false with unresolvable rate")
	}
}

func TestOpeningSeveralPositions_UpdatesPortfolio(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "FXCM-01234-SIMULATED", quant.USD, 1000000))
	p.RegisterAccount(testAccount(t, "BINANCE-1513111-SIMULATED", quant.BTC, 10))

	pos1 := testPosition(t, "P-1", audusd, domain.SideBuy, "100000", "1.00000", quant.AUD, quant.USD)
	pos2 := testPosition(t, "P-2", gbpusd, domain.SideBuy, "100000", "1.00000", quant.GBP, quant.USD)
	p.UpdatePosition(opened(pos1))
	p.UpdatePosition(opened(pos2))

	p.UpdateTick(tick(t, audusd, "0.80501", "0.80505"))
	p.UpdateTick(tick(t, gbpusd, "1.30315", "1.30317"))

	pnl, ok := p.UnrealizedPnL(fxcm)
	if !ok {
		t.Fatal("UnrealizedPnL: expected a value")
	}
	// (0.80501-1)*100000 + (1.30315-1)*100000 = -19499 + 30315 = 10816 USD
	if want := quant.MoneyFromFloat(10816.00, quant.USD); !pnl.Equal(want) {
		t.Errorf("UnrealizedPnL = %s; want %s", pnl, want)
	}

	openValue, ok := p.OpenValue(fxcm)
	if !ok {
		t.Fatal("OpenValue: expected a value")
	}
	if want := quant.MoneyFromFloat(200000.00, quant.USD); !openValue.Equal(want) {
		t.Errorf("OpenValue = %s; want %s", openValue, want)
	}

	// The BINANCE account has no open positions: exactly zero in its base.
	binancePnL, ok := p.UnrealizedPnL(binance)
	if !ok || !binancePnL.Equal(quant.ZeroMoney(quant.BTC)) {
		t.Errorf("UnrealizedPnL(BINANCE) = %s, %v; want zero BTC", binancePnL, ok)
	}
}

func TestModifyingPosition_UpdatesPortfolio(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "FXCM-01234-SIMULATED", quant.USD, 1000000))

	pos := testPosition(t, "P-123456", audusd, domain.SideBuy, "100000", "1.00000", quant.AUD, quant.USD)
	p.UpdatePosition(opened(pos))

	// Partial reduce: quantity halves, entry price unchanged.
	applyFill(t, pos, domain.SideSell, "50000", "1.00000")
	p.UpdatePosition(modified(pos))
	p.UpdateTick(tick(t, audusd, "0.80501", "0.80505"))

	pnl, ok := p.UnrealizedPnL(fxcm)
	if !ok {
		t.Fatal("UnrealizedPnL: expected a value")
	}
	if want := quant.MoneyFromFloat(-9749.50, quant.USD); !pnl.Equal(want) {
		t.Errorf("UnrealizedPnL = %s; want %s", pnl, want)
	}

	openValue, ok := p.OpenValue(fxcm)
	if !ok {
		t.Fatal("OpenValue: expected a value")
	}
	if want := quant.MoneyFromFloat(50000.00, quant.USD); !openValue.Equal(want) {
		t.Errorf("OpenValue = %s; want %s", openValue, want)
	}
}

func TestClosingPosition_UpdatesPortfolio(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "FXCM-01234-SIMULATED", quant.USD, 1000000))

	pos := testPosition(t, "P-123456", audusd, domain.SideBuy, "100000", "1.00000", quant.AUD, quant.USD)
	p.UpdatePosition(opened(pos))

	applyFill(t, pos, domain.SideSell, "100000", "1.00010")
	p.UpdatePosition(closed(pos))

	pnl, ok := p.UnrealizedPnL(fxcm)
	if !ok || !pnl.Equal(quant.ZeroMoney(quant.USD)) {
		t.Errorf("UnrealizedPnL = %s, %v; want exactly zero USD", pnl, ok)
	}
	openValue, ok := p.OpenValue(fxcm)
	if !ok || !openValue.Equal(quant.ZeroMoney(quant.USD)) {
		t.Errorf("OpenValue = %s, %v; want exactly zero USD", openValue, ok)
	}
}

func TestUpdatePosition_UnknownIDIsNoOp(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "FXCM-01234-SIMULATED", quant.USD, 1000000))

	pos := testPosition(t, "P-unknown", audusd, domain.SideBuy, "100000", "1.00000", quant.AUD, quant.USD)

	// Modified and Closed for an id never opened: tolerated, not a fault.
	p.UpdatePosition(modified(pos))
	p.UpdatePosition(closed(pos))

	openValue, ok := p.OpenValue(fxcm)
	if !ok || !openValue.IsZero() {
		t.Errorf("OpenValue = %s, %v; want zero", openValue, ok)
	}
}

func TestOrderAndPositionMargin_PassThrough(t *testing.T) {
	p := New(nil, 0)
	acct := testAccount(t, "BITMEX-01234-SIMULATED", quant.XBT, 10)
	if err := acct.UpdateOrderMargin(quant.MoneyFromFloat(0.5, quant.XBT)); err != nil {
		t.Fatalf("UpdateOrderMargin failed: %v", err)
	}
	if err := acct.UpdatePositionMargin(quant.MoneyFromFloat(1.5, quant.XBT)); err != nil {
		t.Fatalf("UpdatePositionMargin failed: %v", err)
	}
	p.RegisterAccount(acct)

	om, ok := p.OrderMargin(bitmex)
	if !ok || !om.Equal(quant.MoneyFromFloat(0.5, quant.XBT)) {
		t.Errorf("OrderMargin = %s, %v; want 0.5 XBT", om, ok)
	}
	pm, ok := p.PositionMargin(bitmex)
	if !ok || !pm.Equal(quant.MoneyFromFloat(1.5, quant.XBT)) {
		t.Errorf("PositionMargin = %s, %v; want 1.5 XBT", pm, ok)
	}
}

func TestReset_ClearsPositionsAndTicksKeepsAccounts(t *testing.T) {
	p := New(nil, 0)
	p.RegisterAccount(testAccount(t, "FXCM-01234-SIMULATED", quant.USD, 1000000))

	pos := testPosition(t, "P-1", audusd, domain.SideBuy, "100000", "1.00000", quant.AUD, quant.USD)
	p.UpdatePosition(opened(pos))
	p.UpdateTick(tick(t, audusd, "0.80501", "0.80505"))

	p.Reset()

	if _, ok := p.Account(fxcm); !ok {
		t.Error("expected account to survive reset")
	}
	if len(p.OpenPositionSnapshots()) != 0 {
		t.Error("expected positions to be cleared")
	}
	if len(p.TickSnapshots()) != 0 {
		t.Error("expected ticks to be cleared")
	}
}

func TestUpdateAccount_RegistersThenRefreshes(t *testing.T) {
	p := New(nil, 0)

	accountID, err := domain.AccountIDFromString("FXCM-01234-SIMULATED")
	if err != nil {
		t.Fatalf("bad account id: %v", err)
	}
	state := domain.AccountState{
		AccountID:       accountID,
		Currency:        quant.USD,
		Balance:         quant.MoneyFromFloat(1000000, quant.USD),
		MarginUsed:      quant.ZeroMoney(quant.USD),
		MarginAvailable: quant.MoneyFromFloat(1000000, quant.USD),
		Ts:              quant.TimeStamp(1000),
	}
	if err := p.UpdateAccount(state); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}

	state.Balance = quant.MoneyFromFloat(900000, quant.USD)
	state.Ts = quant.TimeStamp(2000)
	if err := p.UpdateAccount(state); err != nil {
		t.Fatalf("UpdateAccount refresh failed: %v", err)
	}

	acct, ok := p.Account(fxcm)
	if !ok {
		t.Fatal("expected registered account")
	}
	if want := quant.MoneyFromFloat(900000, quant.USD); !acct.Balance().Equal(want) {
		t.Errorf("Balance = %s; want %s", acct.Balance(), want)
	}
}

// A malformed state snapshot is rejected with an error on both routes:
// registering a new venue and refreshing an existing one.
func TestUpdateAccount_MalformedStateRejected(t *testing.T) {
	p := New(nil, 0)

	accountID, err := domain.AccountIDFromString("FXCM-01234-SIMULATED")
	if err != nil {
		t.Fatalf("bad account id: %v", err)
	}
	malformed := domain.AccountState{
		AccountID:       accountID,
		Currency:        quant.USD,
		Balance:         quant.MoneyFromFloat(10, quant.BTC),
		MarginUsed:      quant.ZeroMoney(quant.USD),
		MarginAvailable: quant.MoneyFromFloat(10, quant.USD),
		Ts:              quant.TimeStamp(1000),
	}

	// Unregistered venue: rejected, nothing registered
	if err := p.UpdateAccount(malformed); !errors.Is(err, domain.ErrCurrencyMismatch) {
		t.Errorf("UpdateAccount error = %v; want ErrCurrencyMismatch", err)
	}
	if _, ok := p.Account(fxcm); ok {
		t.Error("expected no account registered from a malformed state")
	}

	// Registered venue: rejected, balances untouched
	p.RegisterAccount(testAccount(t, "FXCM-01234-SIMULATED", quant.USD, 1000000))
	if err := p.UpdateAccount(malformed); !errors.Is(err, domain.ErrCurrencyMismatch) {
		t.Errorf("UpdateAccount error = %v; want ErrCurrencyMismatch", err)
	}
	acct, _ := p.Account(fxcm)
	if want := quant.MoneyFromFloat(1000000, quant.USD); !acct.Balance().Equal(want) {
		t.Errorf("Balance = %s; want untouched %s", acct.Balance(), want)
	}
}
