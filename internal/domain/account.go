package domain

import (
	"errors"
	"fmt"

	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// ErrCurrencyMismatch signals a balance or margin update denominated in a
// currency other than the account's base currency.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// AccountState is a wholesale balance snapshot from the upstream ledger.
// Balances are authoritative there; this subsystem never derives them from
// fills.
type AccountState struct {
	AccountID       AccountID       `json:"account_id"`
	Currency        quant.Currency  `json:"currency"`
	Balance         quant.Money     `json:"balance"`
	MarginUsed      quant.Money     `json:"margin_used"`
	MarginAvailable quant.Money     `json:"margin_available"`
	Ts              quant.TimeStamp `json:"ts"`
}

// Validate checks that every balance field is denominated in the state's
// own currency. Upstream snapshots cross a trust boundary.
func (s AccountState) Validate() error {
	for _, m := range []quant.Money{s.Balance, s.MarginUsed, s.MarginAvailable} {
		if !m.Currency().Equal(s.Currency) {
			return fmt.Errorf("%w: state for %s is %s, balance field is %s",
				ErrCurrencyMismatch, s.AccountID, s.Currency, m.Currency())
		}
	}
	return nil
}

// Account is the per-venue balance ledger, denominated in one base currency.
type Account struct {
	ID AccountID

	currency        quant.Currency
	balance         quant.Money
	marginUsed      quant.Money
	marginAvailable quant.Money
	orderMargin     quant.Money
	positionMargin  quant.Money
	lastTs          quant.TimeStamp
}

// NewAccount creates an account from its initial state snapshot.
func NewAccount(state AccountState) *Account {
	a := &Account{
		ID:             state.AccountID,
		currency:       state.Currency,
		orderMargin:    quant.ZeroMoney(state.Currency),
		positionMargin: quant.ZeroMoney(state.Currency),
	}
	// The initial snapshot carries the account's own currency; mismatch here
	// would mean a malformed event stream.
	if err := a.ApplyState(state); err != nil {
		panic("CORE_ACCOUNT_STATE_INVALID: " + err.Error())
	}
	return a
}

// ApplyState replaces the balance snapshot wholesale.
func (a *Account) ApplyState(state AccountState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	if !state.Currency.Equal(a.currency) {
		return fmt.Errorf("%w: account %s is %s, state is %s",
			ErrCurrencyMismatch, a.ID, a.currency, state.Currency)
	}

	a.balance = state.Balance
	a.marginUsed = state.MarginUsed
	a.marginAvailable = state.MarginAvailable
	a.lastTs = state.Ts
	return nil
}

// UpdateOrderMargin sets the margin locked for working orders.
// Margin is account-ledger truth pushed from upstream, not recomputed here.
func (a *Account) UpdateOrderMargin(margin quant.Money) error {
	if !margin.Currency().Equal(a.currency) {
		return fmt.Errorf("%w: account %s is %s, margin is %s",
			ErrCurrencyMismatch, a.ID, a.currency, margin.Currency())
	}
	a.orderMargin = margin
	return nil
}

// UpdatePositionMargin sets the margin locked for open positions.
func (a *Account) UpdatePositionMargin(margin quant.Money) error {
	if !margin.Currency().Equal(a.currency) {
		return fmt.Errorf("%w: account %s is %s, margin is %s",
			ErrCurrencyMismatch, a.ID, a.currency, margin.Currency())
	}
	a.positionMargin = margin
	return nil
}

// State exports the current balance snapshot, e.g. for state dumps.
func (a *Account) State() AccountState {
	return AccountState{
		AccountID:       a.ID,
		Currency:        a.currency,
		Balance:         a.balance,
		MarginUsed:      a.marginUsed,
		MarginAvailable: a.marginAvailable,
		Ts:              a.lastTs,
	}
}

func (a *Account) Venue() Venue                   { return a.ID.Venue() }
func (a *Account) Currency() quant.Currency       { return a.currency }
func (a *Account) Balance() quant.Money           { return a.balance }
func (a *Account) FreeBalance() quant.Money       { return a.marginAvailable }
func (a *Account) LockedBalance() quant.Money     { return a.marginUsed }
func (a *Account) OrderMargin() quant.Money       { return a.orderMargin }
func (a *Account) PositionMargin() quant.Money    { return a.positionMargin }
func (a *Account) LastUpdateTs() quant.TimeStamp  { return a.lastTs }
