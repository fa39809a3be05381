package benefits

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ResetScope names a group of keys cleared by Reset.
type ResetScope string

const (
	ResetReservation ResetScope = "reservation"
	ResetCredits     ResetScope = "credits"
	ResetCashback    ResetScope = "cashback"
	ResetProtectors  ResetScope = "protectors"
	ResetAll         ResetScope = "all"
)

var errNothingToDo = errors.New("nothing to do")

// ParseResetScopes validates scope names.
func ParseResetScopes(names []string) ([]ResetScope, error) {
	if len(names) == 0 {
		return nil, invalid("scopes", "at least one scope is required")
	}
	scopes := make([]ResetScope, 0, len(names))
	for _, n := range names {
		switch sc := ResetScope(n); sc {
		case ResetReservation, ResetCredits, ResetCashback, ResetProtectors, ResetAll:
			scopes = append(scopes, sc)
		default:
			return nil, invalid("scopes", fmt.Sprintf("unknown scope %q", n))
		}
	}
	return scopes, nil
}

// Reset nulls out the keys of each scope. Keys outside the ledger schema
// are never touched.
func (s *Service) Reset(ctx context.Context, customerID string, scopes ...ResetScope) (Metadata, error) {
	if len(scopes) == 0 {
		return Metadata{}, invalid("scopes", "at least one scope is required")
	}
	var keys []string
	for _, sc := range scopes {
		keys = append(keys, scopeKeys(sc)...)
	}
	_, m, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		for _, sc := range scopes {
			clearScope(m, sc)
		}
		return nil
	}, keys...)
	return m, err
}

// scopeKeys lists the raw keys a scope deletes, including values the schema
// could not parse.
func scopeKeys(sc ResetScope) []string {
	switch sc {
	case ResetReservation:
		return []string{KeyReservationDate, KeyReservationExpires}
	case ResetCredits:
		return append(scopeKeys(ResetReservation), KeyCreditsUsed, KeyCreditsReserved, KeyLastTransaction)
	case ResetCashback:
		return []string{KeyCashbackBalance, KeyCashbackHistory}
	case ResetProtectors:
		var keys []string
		for slot := 1; slot <= ProtectorSlots; slot++ {
			for _, f := range protectorFields {
				keys = append(keys, protectorKey(slot, f))
			}
		}
		return keys
	case ResetAll:
		var keys []string
		for _, each := range []ResetScope{ResetCredits, ResetCashback, ResetProtectors} {
			keys = append(keys, scopeKeys(each)...)
		}
		return keys
	}
	return nil
}

func clearScope(m *Metadata, sc ResetScope) {
	switch sc {
	case ResetReservation:
		m.CreditsReserved = set(decimal.Zero)
		m.ReservationDate = nil
		m.ReservationExpires = nil
	case ResetCredits:
		clearScope(m, ResetReservation)
		m.CreditsUsed.Valid = false
		m.CreditsReserved.Valid = false
		m.LastTransaction = nil
	case ResetCashback:
		m.CashbackBalance.Valid = false
		m.CashbackHistory = History{Format: FormatFull}
	case ResetProtectors:
		m.Protectors = [ProtectorSlots]ProtectorClaim{}
	case ResetAll:
		for _, each := range []ResetScope{ResetCredits, ResetCashback, ResetProtectors} {
			clearScope(m, each)
		}
	}
}
