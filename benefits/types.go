/*
Package benefits implements the Elite Sleep+ member benefit ledger.

PURPOSE:
  Members earn in-store credits for every paid subscription invoice, collect
  cashback on purchases, and hold three one-time mattress protector
  replacements. All of that state lives as flat string metadata on the
  payment provider's customer record. This package gives it a typed schema,
  derives balances from it, and runs the two write workflows
  (reserve/confirm credits, claim protectors).

KEY CONCEPTS IN THIS FILE (types.go):
  - Program: Benefit constants (credit per payment, invoice cap, hold length)
  - Actor: Who performed a write (employee, superadmin, member, system)
  - Customer/Invoice/Subscription: Provider records as this package sees them

DESIGN PRINCIPLES:
  1. Typed schema: Raw metadata keys are only touched in metadata.go
  2. Precision: Money and credits use decimal.Decimal
  3. Derived balances: Available credits are recomputed on every read
  4. Single unit of change: Each operation performs exactly one metadata write

SEE ALSO:
  - metadata.go: Flat map <-> typed record
  - history.go: Cashback history codec (compact + full encodings)
  - balance.go: Credit, cashback and protector summaries
  - reservation.go: Reserve -> Confirm workflow
*/
package benefits

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROGRAM - Benefit constants
// =============================================================================

// Program holds the constants of the membership program.
type Program struct {
	// CreditPerPayment is granted for every qualifying paid invoice.
	CreditPerPayment decimal.Decimal

	// InvoiceLimit caps how many of the most recent paid invoices are counted.
	// Zero means every paid invoice is fetched.
	InvoiceLimit int

	// ReservationHold is recorded as reservation_expires - reservation_date.
	// Nothing releases a hold when it passes.
	ReservationHold time.Duration

	// DeliveryEstimate is added to the claim time for protector requests.
	DeliveryEstimate time.Duration

	// ActiveStatuses are subscription statuses that allow protector requests.
	ActiveStatuses []string
}

// DefaultProgram returns the production program constants.
func DefaultProgram() Program {
	return Program{
		CreditPerPayment: decimal.NewFromInt(15),
		InvoiceLimit:     100,
		ReservationHold:  24 * time.Hour,
		DeliveryEstimate: 5 * 24 * time.Hour,
		ActiveStatuses:   []string{"active", "trialing", "past_due"},
	}
}

func (p Program) isActive(status string) bool {
	for _, s := range p.ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// =============================================================================
// ACTORS
// =============================================================================

type ActorType string

const (
	ActorMember     ActorType = "member"
	ActorEmployee   ActorType = "employee"
	ActorSuperadmin ActorType = "superadmin"
	ActorSystem     ActorType = "system"
)

// Actor identifies who performed a write.
type Actor struct {
	ID   string
	Name string
	Type ActorType
}

// =============================================================================
// PROVIDER RECORDS
// =============================================================================

// Customer is the payment provider's customer record.
// This system never creates one; it only annotates Metadata.
type Customer struct {
	ID       string
	Email    string
	Name     string
	Metadata map[string]string
}

// Invoice is a paid provider invoice.
type Invoice struct {
	ID             string
	SubscriptionID string // empty for one-off invoices
	AmountPaid     int64  // minor units
	Created        time.Time
}

// Qualifies reports whether the invoice earns credits.
func (i Invoice) Qualifies() bool { return i.SubscriptionID != "" }

// Subscription is a provider subscription.
type Subscription struct {
	ID     string
	Status string
}

// =============================================================================
// TIME FORMAT
// =============================================================================

// TimeLayout is the ISO-8601 form used for every timestamp written to metadata.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
