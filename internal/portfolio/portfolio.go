package portfolio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/gradascent/nautilus-trader/internal/domain"
	"github.com/gradascent/nautilus-trader/internal/event"
	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// Portfolio aggregates accounts, open positions and the latest-quote cache,
// and answers valuation queries per venue.
//
// It is designed for a single logical writer: all mutating calls are expected
// from one event-processing goroutine in arrival order. Valuation queries may
// run concurrently with each other; one mutex serializes them against
// mutations. Registered accounts and positions are exclusively owned by the
// registries; callers must not hold returned references across mutations.
type Portfolio struct {
	mu        sync.RWMutex
	accounts  map[domain.Venue]*domain.Account
	positions map[domain.PositionID]*domain.Position
	ticks     map[domain.Symbol]domain.QuoteTick

	xrate ExchangeRateResolver
	// Price side used for FX conversion of valuation totals.
	convPriceType quant.PriceType

	log *slog.Logger
}

// New creates an empty portfolio. A zero convPriceType defaults to BID.
func New(log *slog.Logger, convPriceType quant.PriceType) *Portfolio {
	if log == nil {
		log = slog.Default()
	}
	if convPriceType == 0 {
		convPriceType = quant.PriceTypeBid
	}
	return &Portfolio{
		accounts:      make(map[domain.Venue]*domain.Account),
		positions:     make(map[domain.PositionID]*domain.Position),
		ticks:         make(map[domain.Symbol]domain.QuoteTick),
		convPriceType: convPriceType,
		log:           log,
	}
}

// RegisterAccount inserts or replaces the account for the account's venue.
// Last write wins: re-registration is how refreshed accounts land.
func (p *Portfolio) RegisterAccount(account *domain.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()

	venue := account.Venue()
	if _, ok := p.accounts[venue]; ok {
		p.log.Info("Replacing registered account", slog.String("venue", string(venue)), slog.String("account", account.ID.String()))
	}
	p.accounts[venue] = account
}

// UpdateAccount routes an account state snapshot: it refreshes the registered
// account for that venue, or registers a new one if none exists yet.
func (p *Portfolio) UpdateAccount(state domain.AccountState) error {
	// Reject malformed snapshots before the register branch: NewAccount
	// treats a bad state as a programming error and panics.
	if err := state.Validate(); err != nil {
		return fmt.Errorf("account state for %s: %w", state.AccountID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	venue := state.AccountID.Venue()
	if acct, ok := p.accounts[venue]; ok && acct.ID == state.AccountID {
		if err := acct.ApplyState(state); err != nil {
			return fmt.Errorf("account state for %s: %w", state.AccountID, err)
		}
		return nil
	}

	p.accounts[venue] = domain.NewAccount(state)
	p.log.Info("Account registered", slog.String("venue", string(venue)), slog.String("account", state.AccountID.String()))
	return nil
}

// Account returns the account registered for the venue, if any.
func (p *Portfolio) Account(venue domain.Venue) (*domain.Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acct, ok := p.accounts[venue]
	return acct, ok
}

// UpdatePosition dispatches a position lifecycle event into the registry.
// Unknown ids on Modified/Closed are tolerated with a warning: upstream
// delivery is not guaranteed duplicate-free across replays.
func (p *Portfolio) UpdatePosition(ev event.PositionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := ev.Snapshot()
	switch ev.(type) {
	case *event.PositionOpenedEvent:
		p.positions[snap.ID] = domain.PositionFromSnapshot(snap)
	case *event.PositionModifiedEvent:
		if _, ok := p.positions[snap.ID]; !ok {
			p.log.Warn("POSITION_MODIFIED_UNKNOWN_ID", slog.String("position", string(snap.ID)))
			return
		}
		p.positions[snap.ID] = domain.PositionFromSnapshot(snap)
	case *event.PositionClosedEvent:
		if _, ok := p.positions[snap.ID]; !ok {
			p.log.Warn("POSITION_CLOSED_UNKNOWN_ID", slog.String("position", string(snap.ID)))
			return
		}
		// Closed positions leave the open registry; the snapshot keeps the
		// historical PnL for whoever emitted the event.
		delete(p.positions, snap.ID)
	default:
		// The PositionEvent set is closed; reaching this is a defect.
		panic(fmt.Sprintf("CORE_UNHANDLED_POSITION_EVENT: %T", ev))
	}
}

// UpdateTick upserts the latest quote for the tick's symbol. O(1).
func (p *Portfolio) UpdateTick(tick domain.QuoteTick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks[tick.Symbol] = tick
}

// UnrealizedPnL sums the mark-to-market PnL of every open position on the
// venue, converted to the account's base currency. It returns false when no
// account is registered, when a position has no quote to mark against, or
// when any position's conversion rate is unavailable: a partially-summed
// total would silently understate exposure, so none is reported instead.
func (p *Portfolio) UnrealizedPnL(venue domain.Venue) (quant.Money, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acct, ok := p.accounts[venue]
	if !ok {
		return quant.Money{}, false
	}

	total := decimal.Zero
	for _, pos := range p.positions {
		if pos.Symbol.Venue != venue {
			continue
		}

		tick, ok := p.ticks[pos.Symbol]
		if !ok {
			p.log.Warn("Cannot compute unrealized PnL, no quote cached", slog.String("symbol", pos.Symbol.String()))
			return quant.Money{}, false
		}

		// Mark at the price the position would close against.
		mark := tick.Bid
		if pos.IsShort() {
			mark = tick.Ask
		}

		pnl := pos.UnrealizedPnL(mark)
		converted, ok := p.convert(pnl.Decimal(), pos.QuoteCurrency, acct.Currency())
		if !ok {
			return quant.Money{}, false
		}
		total = total.Add(converted)
	}

	return quant.NewMoney(total, acct.Currency()), true
}

// OpenValue sums each open position's committed notional, expressed in the
// position's base currency and converted to the account's base currency.
// The magnitude is side-independent: it is the entry-basis exposure, not a
// mark-to-market value. The all-or-none rule of UnrealizedPnL applies.
func (p *Portfolio) OpenValue(venue domain.Venue) (quant.Money, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acct, ok := p.accounts[venue]
	if !ok {
		return quant.Money{}, false
	}

	total := decimal.Zero
	for _, pos := range p.positions {
		if pos.Symbol.Venue != venue {
			continue
		}

		converted, ok := p.openValueOf(pos, acct.Currency())
		if !ok {
			return quant.Money{}, false
		}
		total = total.Add(converted)
	}

	return quant.NewMoney(total, acct.Currency()), true
}

// openValueOf expresses one position's committed notional in the target
// currency. In base currency the notional is the quantity itself; in quote
// currency it is avg_entry_price * quantity (the entry basis). When the
// account already denominates in the base currency no conversion is needed;
// otherwise the quote-denominated entry basis is converted, falling back to
// a direct base-currency rate if the quote pair is not resolvable.
func (p *Portfolio) openValueOf(pos *domain.Position, target quant.Currency) (decimal.Decimal, bool) {
	qty := pos.Quantity().Decimal()
	if pos.BaseCurrency.Equal(target) {
		return qty, true
	}
	if rate, ok := p.xrate.Rate(p.ticks, pos.QuoteCurrency, target, p.convPriceType); ok {
		return pos.AvgEntryPrice().Mul(qty).Mul(rate), true
	}
	if rate, ok := p.xrate.Rate(p.ticks, pos.BaseCurrency, target, p.convPriceType); ok {
		return qty.Mul(rate), true
	}

	p.log.Warn("Cannot resolve exchange rate for open value",
		slog.String("position", string(pos.ID)),
		slog.String("to", target.Code))
	return decimal.Zero, false
}

// OrderMargin returns the venue account's margin locked for working orders.
func (p *Portfolio) OrderMargin(venue domain.Venue) (quant.Money, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acct, ok := p.accounts[venue]
	if !ok {
		return quant.Money{}, false
	}
	return acct.OrderMargin(), true
}

// PositionMargin returns the venue account's margin locked for open positions.
func (p *Portfolio) PositionMargin(venue domain.Venue) (quant.Money, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acct, ok := p.accounts[venue]
	if !ok {
		return quant.Money{}, false
	}
	return acct.PositionMargin(), true
}

// Reset clears the position and tick caches but keeps registered accounts,
// so a strategy run can restart without tearing down venue connectivity.
func (p *Portfolio) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.positions = make(map[domain.PositionID]*domain.Position)
	p.ticks = make(map[domain.Symbol]domain.QuoteTick)
	p.log.Info("Portfolio reset (accounts retained)")
}

// convert converts an amount between currencies via the resolver.
// Must be called with at least a read lock held.
func (p *Portfolio) convert(amount decimal.Decimal, from, to quant.Currency) (decimal.Decimal, bool) {
	if from.Equal(to) {
		return amount, true
	}

	rate, ok := p.xrate.Rate(p.ticks, from, to, p.convPriceType)
	if !ok {
		p.log.Warn("Cannot resolve exchange rate",
			slog.String("from", from.Code),
			slog.String("to", to.Code))
		return decimal.Zero, false
	}
	return amount.Mul(rate), true
}

// OpenPositionSnapshots returns copies of all open positions (external read).
func (p *Portfolio) OpenPositionSnapshots() []domain.PositionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snaps := make([]domain.PositionSnapshot, 0, len(p.positions))
	for _, pos := range p.positions {
		snaps = append(snaps, pos.Snapshot())
	}
	return snaps
}

// TickSnapshots returns copies of the latest cached quotes (external read).
func (p *Portfolio) TickSnapshots() []domain.QuoteTick {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ticks := make([]domain.QuoteTick, 0, len(p.ticks))
	for _, t := range p.ticks {
		ticks = append(ticks, t)
	}
	return ticks
}

// AccountStates returns balance snapshots of all registered accounts.
func (p *Portfolio) AccountStates() []domain.AccountState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	states := make([]domain.AccountState, 0, len(p.accounts))
	for _, a := range p.accounts {
		states = append(states, a.State())
	}
	return states
}

// Restore loads a previously captured state wholesale. Used by snapshot
// recovery before WAL replay resumes.
func (p *Portfolio) Restore(accounts []domain.AccountState, positions []domain.PositionSnapshot, ticks []domain.QuoteTick) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accounts = make(map[domain.Venue]*domain.Account, len(accounts))
	for _, st := range accounts {
		p.accounts[st.AccountID.Venue()] = domain.NewAccount(st)
	}
	p.positions = make(map[domain.PositionID]*domain.Position, len(positions))
	for _, snap := range positions {
		p.positions[snap.ID] = domain.PositionFromSnapshot(snap)
	}
	p.ticks = make(map[domain.Symbol]domain.QuoteTick, len(ticks))
	for _, t := range ticks {
		p.ticks[t.Symbol] = t
	}
}
