package domain

import (
	"fmt"
	"strings"
)

// Venue identifies a trading destination. Accounts and quotes
// are scoped per venue.
type Venue string

// Symbol binds an instrument code to a venue. It is the join key between
// quotes, positions, and account registration.
type Symbol struct {
	Code  string `json:"code"`
	Venue Venue  `json:"venue"`
}

func NewSymbol(code string, venue Venue) Symbol {
	return Symbol{Code: code, Venue: venue}
}

func (s Symbol) String() string { return s.Code + "." + string(s.Venue) }

// PositionID identifies one net exposure tracked under one identity.
type PositionID string

// StrategyID identifies the strategy a position belongs to.
type StrategyID string

// OrderID identifies an order at its venue.
type OrderID string

// AccountID ties an account to its issuing venue plus an issuer-side number,
// e.g. "FXCM-01234-SIMULATED" has issuer FXCM and number 01234-SIMULATED.
type AccountID struct {
	Issuer string `json:"issuer"`
	Number string `json:"number"`
}

// AccountIDFromString parses an "ISSUER-NUMBER" identifier.
func AccountIDFromString(s string) (AccountID, error) {
	issuer, number, ok := strings.Cut(s, "-")
	if !ok || issuer == "" || number == "" {
		return AccountID{}, fmt.Errorf("invalid account id %q: want ISSUER-NUMBER", s)
	}
	return AccountID{Issuer: issuer, Number: number}, nil
}

// Venue returns the venue this account trades on (1:1 with the issuer).
func (a AccountID) Venue() Venue { return Venue(a.Issuer) }

func (a AccountID) String() string { return a.Issuer + "-" + a.Number }
