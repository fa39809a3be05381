/*
balance.go - Derived balances (credits, cashback, protectors)

PURPOSE:
  Computes what a member has from raw metadata plus provider invoices.
  Nothing here writes; every value is recomputed on each read, so there is
  no stored "available" field that can drift.

CREDITS:
  TotalEarned = qualifying paid invoices x CreditPerPayment
  Available   = TotalEarned - Used - Reserved

  Only the InvoiceLimit most recent paid invoices are counted (100 by
  default), so very long-tenured members are under-counted. Available is
  NOT clamped at zero; a negative value is reported as-is.

CASHBACK:
  TotalEarned / TotalUsed = sum of abs(cashback) grouped by entry type.

PROTECTORS:
  Three fixed slots. used = (protector_i_used == "true").
  Status: recorded status when used, "delivered" when used with no status,
  otherwise "available".

SEE ALSO:
  - reservation.go: Uses CreditSummary.Available to validate holds
  - history.go: Cashback entries
*/
package benefits

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// CREDITS
// =============================================================================

// CreditSummary is the derived credit balance.
type CreditSummary struct {
	CustomerID         string
	QualifyingPayments int
	InvoicesCounted    int
	TotalEarned        decimal.Decimal
	Used               decimal.Decimal
	Reserved           decimal.Decimal
	Available          decimal.Decimal
	ReservationDate    *time.Time
	ReservationExpires *time.Time
	// ReservationStale is informational; stale holds are never released.
	ReservationStale bool
	LastTransaction  *InStoreTransaction
}

// ComputeCredits derives the credit balance. Pure function.
func ComputeCredits(p Program, invoices []Invoice, m Metadata, now time.Time) CreditSummary {
	qualifying := 0
	for _, inv := range invoices {
		if inv.Qualifies() {
			qualifying++
		}
	}
	earned := p.CreditPerPayment.Mul(decimal.NewFromInt(int64(qualifying)))
	used, reserved := m.Used(), m.Reserved()

	return CreditSummary{
		QualifyingPayments: qualifying,
		InvoicesCounted:    len(invoices),
		TotalEarned:        earned,
		Used:               used,
		Reserved:           reserved,
		Available:          earned.Sub(used).Sub(reserved),
		ReservationDate:    m.ReservationDate,
		ReservationExpires: m.ReservationExpires,
		ReservationStale:   IsReservationStale(m, now),
		LastTransaction:    m.LastTransaction,
	}
}

// IsReservationStale reports a positive hold whose expiry has passed.
func IsReservationStale(m Metadata, now time.Time) bool {
	return m.Reserved().IsPositive() &&
		m.ReservationExpires != nil &&
		now.After(*m.ReservationExpires)
}

// Credits returns the credit balance for a customer.
func (s *Service) Credits(ctx context.Context, customerID string) (CreditSummary, error) {
	rec, m, err := s.load(ctx, customerID)
	if err != nil {
		return CreditSummary{}, err
	}
	invoices, err := s.Billing.PaidInvoices(ctx, customerID, s.Program.InvoiceLimit)
	if err != nil {
		return CreditSummary{}, err
	}
	summary := ComputeCredits(s.Program, invoices, m, s.now())
	summary.CustomerID = rec.CustomerID
	return summary, nil
}

// =============================================================================
// CASHBACK
// =============================================================================

// CashbackSummary is the derived cashback view.
type CashbackSummary struct {
	Balance     decimal.Decimal
	TotalEarned decimal.Decimal
	TotalUsed   decimal.Decimal
	Format      HistoryFormat
	History     []HistoryEntry
}

// ComputeCashback derives cashback totals. Pure function.
func ComputeCashback(m Metadata) CashbackSummary {
	earned, used := decimal.Zero, decimal.Zero
	for _, e := range m.CashbackHistory.Entries {
		switch e.Type {
		case HistoryEarned:
			earned = earned.Add(e.Cashback.Abs())
		case HistoryUsed:
			used = used.Add(e.Cashback.Abs())
		}
	}
	history := m.CashbackHistory.Entries
	if history == nil {
		history = []HistoryEntry{}
	}
	return CashbackSummary{
		Balance:     m.Cashback(),
		TotalEarned: earned,
		TotalUsed:   used,
		Format:      m.CashbackHistory.Format,
		History:     history,
	}
}

func (s *Service) Cashback(ctx context.Context, customerID string) (CashbackSummary, error) {
	_, m, err := s.load(ctx, customerID)
	if err != nil {
		return CashbackSummary{}, err
	}
	return ComputeCashback(m), nil
}

// =============================================================================
// PROTECTORS
// =============================================================================

// ProtectorView is the derived state of one slot.
type ProtectorView struct {
	Slot     int
	Used     bool
	Status   ProtectorStatus
	Date     *time.Time
	Order    string
	Size     string
	Reason   string
	Delivery *time.Time
	Shipping *ShippingAddress
}

type ProtectorSummary struct {
	Slots     []ProtectorView
	Remaining int
}

// EffectiveStatus applies the default status rules to a recorded claim.
func (p ProtectorClaim) EffectiveStatus() ProtectorStatus {
	if !p.Used {
		return ProtectorAvailable
	}
	if p.Status == "" {
		return ProtectorDelivered
	}
	return p.Status
}

// ComputeProtectors derives the protector summary. Pure function.
func ComputeProtectors(m Metadata) ProtectorSummary {
	summary := ProtectorSummary{Slots: make([]ProtectorView, 0, ProtectorSlots)}
	for slot := 1; slot <= ProtectorSlots; slot++ {
		p := m.Protectors[slot-1]
		if !p.Used {
			summary.Remaining++
		}
		summary.Slots = append(summary.Slots, ProtectorView{
			Slot:     slot,
			Used:     p.Used,
			Status:   p.EffectiveStatus(),
			Date:     p.Date,
			Order:    p.Order,
			Size:     p.Size,
			Reason:   p.Reason,
			Delivery: p.Delivery,
			Shipping: p.Shipping,
		})
	}
	return summary
}

func (s *Service) Protectors(ctx context.Context, customerID string) (ProtectorSummary, error) {
	_, m, err := s.load(ctx, customerID)
	if err != nil {
		return ProtectorSummary{}, err
	}
	return ComputeProtectors(m), nil
}

// =============================================================================
// MEMBER SUMMARY
// =============================================================================

// MemberSummary is everything the member dashboard shows.
type MemberSummary struct {
	CustomerID         string
	Email              string
	Name               string
	SubscriptionStatus string
	Active             bool
	Credits            CreditSummary
	Cashback           CashbackSummary
	Protectors         ProtectorSummary
}

// Summary fetches the record, invoices and subscriptions concurrently.
func (s *Service) Summary(ctx context.Context, customerID string) (*MemberSummary, error) {
	var (
		rec      *Record
		m        Metadata
		invoices []Invoice
		subs     []Subscription
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, m, err = s.load(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = s.Billing.PaidInvoices(gctx, customerID, s.Program.InvoiceLimit)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.Billing.Subscriptions(gctx, customerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	credits := ComputeCredits(s.Program, invoices, m, s.now())
	credits.CustomerID = rec.CustomerID
	status, active := s.subscriptionStatus(subs)

	return &MemberSummary{
		CustomerID:         rec.CustomerID,
		Email:              rec.Email,
		Name:               rec.Name,
		SubscriptionStatus: status,
		Active:             active,
		Credits:            credits,
		Cashback:           ComputeCashback(m),
		Protectors:         ComputeProtectors(m),
	}, nil
}

// subscriptionStatus picks the first active status, else the first status seen.
func (s *Service) subscriptionStatus(subs []Subscription) (string, bool) {
	for _, sub := range subs {
		if s.Program.isActive(sub.Status) {
			return sub.Status, true
		}
	}
	if len(subs) > 0 {
		return subs[0].Status, false
	}
	return "none", false
}
