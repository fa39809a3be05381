package benefits

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// CashbackEntry is an employee-recorded cashback movement.
type CashbackEntry struct {
	Amount      decimal.Decimal // purchase amount
	Cashback    decimal.Decimal // cashback earned or redeemed, positive
	Description string
	Type        HistoryType
}

// RecordCashback appends to cashback_history and adjusts cashback_balance.
// The entry is written in the history's existing encoding.
func (s *Service) RecordCashback(ctx context.Context, customerID string, entry CashbackEntry, employee Actor) (CashbackSummary, error) {
	if entry.Type != HistoryEarned && entry.Type != HistoryUsed {
		return CashbackSummary{}, invalid("type", "must be earned or used")
	}
	if !entry.Cashback.IsPositive() {
		return CashbackSummary{}, invalid("cashback", "must be a positive number")
	}
	if entry.Amount.IsNegative() {
		return CashbackSummary{}, invalid("amount", "must not be negative")
	}

	now := s.now()
	_, m, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		balance := m.Cashback()
		switch entry.Type {
		case HistoryEarned:
			balance = balance.Add(entry.Cashback)
		case HistoryUsed:
			if entry.Cashback.GreaterThan(balance) {
				return ErrInsufficientCashback
			}
			balance = balance.Sub(entry.Cashback)
		}

		employeeName := employee.Name
		if strings.TrimSpace(employeeName) == "" {
			employeeName = employee.ID
		}
		m.CashbackBalance = set(balance)
		m.CashbackHistory.Entries = append(m.CashbackHistory.Entries, HistoryEntry{
			ID:          s.NewID(),
			Date:        formatTime(now),
			Amount:      entry.Amount,
			Cashback:    entry.Cashback,
			Description: entry.Description,
			Employee:    employeeName,
			Type:        entry.Type,
		})
		return nil
	})
	if err != nil {
		return CashbackSummary{}, err
	}
	return ComputeCashback(m), nil
}

// MigrateHistory rewrites a compact cashback history in the full encoding.
// Returns false when there was nothing to migrate.
func (s *Service) MigrateHistory(ctx context.Context, customerID string) (bool, error) {
	migrated := false
	_, _, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		if m.CashbackHistory.Format != FormatCompact || len(m.CashbackHistory.Entries) == 0 {
			return errNothingToDo
		}
		m.CashbackHistory = UpgradeHistory(m.CashbackHistory)
		migrated = true
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return false, nil
	}
	return migrated, err
}
