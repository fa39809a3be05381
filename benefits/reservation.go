/*
reservation.go - Two-phase credit redemption (reserve -> confirm)

PURPOSE:
  A member reserves credits online; an employee confirms the in-store
  purchase that spends them.

STATE MACHINE (per reservation attempt):
  None ──Reserve──▶ Reserved ──Confirm──▶ Confirmed
                       │
                       └── abandoned (no Cancelled state; only an admin
                           reset clears a hold)

RESERVE:
  - amount must be positive and <= Available (else InsufficientCredits)
  - credits_reserved += amount
  - reservation_date = now, reservation_expires = now + ReservationHold
  - expiry is advisory: nothing ever reads it to release the hold

CONFIRM (employee only):
  - amount must EXACTLY equal credits_reserved (else AmountMismatch);
    partial confirmation is not supported
  - credits_used += amount, credits_reserved = 0, reservation dates cleared
  - last_transaction overwritten with this purchase; earlier in-store
    purchases are not retained

CONCURRENCY:
  Both operations are a single read-modify-write through Service.mutate.
  With a versioned store a lost race fails with ErrConcurrentModification
  instead of double-spending. With ProviderStore the race is still present.

EXAMPLE:
  4 qualifying invoices, credits_used=30:
    Credits  -> earned 60, available 30
    Reserve(30) -> reserved 30, available 0
    Confirm(30) -> used 60, reserved 0, last_transaction.amount 30
*/
package benefits

import (
	"context"

	"github.com/shopspring/decimal"
)

// TransactionInStorePurchase is the last_transaction type written by Confirm.
const TransactionInStorePurchase = "in_store_purchase"

// Reserve places a hold on amount credits.
func (s *Service) Reserve(ctx context.Context, customerID string, amount decimal.Decimal) (CreditSummary, error) {
	if !amount.IsPositive() {
		return CreditSummary{}, invalid("amount", "must be a positive number")
	}

	invoices, err := s.Billing.PaidInvoices(ctx, customerID, s.Program.InvoiceLimit)
	if err != nil {
		return CreditSummary{}, err
	}

	now := s.now()
	rec, m, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		current := ComputeCredits(s.Program, invoices, *m, now)
		if amount.GreaterThan(current.Available) {
			return &InsufficientCreditsError{Available: current.Available, Requested: amount}
		}

		expires := now.Add(s.Program.ReservationHold)
		m.CreditsReserved = set(m.Reserved().Add(amount))
		m.ReservationDate = &now
		m.ReservationExpires = &expires
		return nil
	})
	if err != nil {
		return CreditSummary{}, err
	}

	summary := ComputeCredits(s.Program, invoices, m, now)
	summary.CustomerID = rec.CustomerID
	return summary, nil
}

// Confirm converts the full reserved amount into used credits.
func (s *Service) Confirm(ctx context.Context, customerID string, amount decimal.Decimal, employee Actor) (CreditSummary, error) {
	if !amount.IsPositive() {
		return CreditSummary{}, invalid("amount", "must be a positive number")
	}
	if employee.Type != ActorEmployee && employee.Type != ActorSuperadmin {
		return CreditSummary{}, invalid("employee", "confirmation requires an employee")
	}

	invoices, err := s.Billing.PaidInvoices(ctx, customerID, s.Program.InvoiceLimit)
	if err != nil {
		return CreditSummary{}, err
	}

	now := s.now()
	rec, m, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		reserved := m.Reserved()
		if !amount.Equal(reserved) {
			return &AmountMismatchError{Reserved: reserved, Amount: amount}
		}

		m.CreditsUsed = set(m.Used().Add(amount))
		m.CreditsReserved = set(decimal.Zero)
		m.ReservationDate = nil
		m.ReservationExpires = nil
		m.LastTransaction = &InStoreTransaction{
			Amount:     amount,
			Date:       formatTime(now),
			Employee:   employee.Name,
			EmployeeID: employee.ID,
			Type:       TransactionInStorePurchase,
		}
		return nil
	})
	if err != nil {
		return CreditSummary{}, err
	}

	summary := ComputeCredits(s.Program, invoices, m, now)
	summary.CustomerID = rec.CustomerID
	return summary, nil
}
