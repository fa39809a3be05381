/*
metadata.go - Typed schema over the provider's flat metadata map

PURPOSE:
  The provider stores ledger state as string->string pairs on the customer.
  DecodeMetadata and Metadata.Encode are the ONLY code that reads or writes
  raw keys; everything else works with the typed Metadata record.

KEYS:
  credits_used, credits_reserved          decimal strings
  reservation_date, reservation_expires   ISO-8601 timestamps
  cashback_balance                        decimal string
  cashback_history                        JSON array (see history.go)
  protector_{1..3}_used                   "true" when claimed
  protector_{1..3}_date|_delivery         ISO-8601 timestamps
  protector_{1..3}_status|_order|_size|_reason   strings
  protector_{1..3}_shipping               JSON shipping snapshot
  last_transaction                        JSON in-store purchase

ENCODING CONTRACT:
  Encode returns every known key. A cleared key is returned with an empty
  value, which every LedgerStore treats as "delete" (the provider does the
  same). Unknown keys round-trip untouched.
*/
package benefits

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProtectorSlots is the number of protector replacements per member.
const ProtectorSlots = 3

const (
	KeyCreditsUsed        = "credits_used"
	KeyCreditsReserved    = "credits_reserved"
	KeyReservationDate    = "reservation_date"
	KeyReservationExpires = "reservation_expires"
	KeyCashbackBalance    = "cashback_balance"
	KeyCashbackHistory    = "cashback_history"
	KeyLastTransaction    = "last_transaction"
)

var protectorFields = []string{"used", "date", "status", "order", "size", "reason", "delivery", "shipping"}

func protectorKey(slot int, field string) string {
	return fmt.Sprintf("protector_%d_%s", slot, field)
}

// =============================================================================
// TYPED RECORD
// =============================================================================

type ProtectorStatus string

const (
	ProtectorAvailable  ProtectorStatus = "available"
	ProtectorProcessing ProtectorStatus = "processing"
	ProtectorShipped    ProtectorStatus = "shipped"
	ProtectorDelivered  ProtectorStatus = "delivered"
)

// ShippingAddress is the snapshot stored with a protector request.
type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ProtectorClaim is the recorded state of one slot.
type ProtectorClaim struct {
	Used     bool
	Date     *time.Time
	Status   ProtectorStatus // as recorded; empty when never set
	Order    string
	Size     string
	Reason   string
	Delivery *time.Time
	Shipping *ShippingAddress
}

// InStoreTransaction is the last confirmed in-store credit redemption.
type InStoreTransaction struct {
	Amount     decimal.Decimal
	Date       string
	Employee   string
	EmployeeID string
	Type       string
}

type inStoreWire struct {
	Amount     json.Number `json:"amount"`
	Date       string      `json:"date"`
	Employee   string      `json:"employee"`
	EmployeeID string      `json:"employeeId"`
	Type       string      `json:"type"`
}

// Metadata is the typed ledger for one customer.
type Metadata struct {
	CreditsUsed        decimal.NullDecimal
	CreditsReserved    decimal.NullDecimal
	ReservationDate    *time.Time
	ReservationExpires *time.Time
	CashbackBalance    decimal.NullDecimal
	CashbackHistory    History
	Protectors         [ProtectorSlots]ProtectorClaim
	LastTransaction    *InStoreTransaction

	// Extra holds keys this schema does not own.
	Extra map[string]string
}

// Used returns credits_used, zero when absent.
func (m Metadata) Used() decimal.Decimal { return m.CreditsUsed.Decimal }

// Reserved returns credits_reserved, zero when absent.
func (m Metadata) Reserved() decimal.Decimal { return m.CreditsReserved.Decimal }

// Cashback returns cashback_balance, zero when absent.
func (m Metadata) Cashback() decimal.Decimal { return m.CashbackBalance.Decimal }

// Protector returns the claim for a 1-based slot.
func (m *Metadata) Protector(slot int) *ProtectorClaim { return &m.Protectors[slot-1] }

func set(d decimal.Decimal) decimal.NullDecimal { return decimal.NullDecimal{Decimal: d, Valid: true} }

// =============================================================================
// DECODE
// =============================================================================

// DecodeMetadata builds the typed record from a raw metadata map.
func DecodeMetadata(raw map[string]string) Metadata {
	m := Metadata{Extra: make(map[string]string)}
	known := make(map[string]bool)
	get := func(key string) string {
		known[key] = true
		return raw[key]
	}

	m.CreditsUsed = parseDecimal(get(KeyCreditsUsed))
	m.CreditsReserved = parseDecimal(get(KeyCreditsReserved))
	m.ReservationDate = parseTime(get(KeyReservationDate))
	m.ReservationExpires = parseTime(get(KeyReservationExpires))
	m.CashbackBalance = parseDecimal(get(KeyCashbackBalance))
	m.CashbackHistory = DecodeHistory(get(KeyCashbackHistory))

	if s := get(KeyLastTransaction); s != "" {
		var w inStoreWire
		if err := json.Unmarshal([]byte(s), &w); err == nil {
			amount, _ := decimal.NewFromString(w.Amount.String())
			m.LastTransaction = &InStoreTransaction{
				Amount: amount, Date: w.Date, Employee: w.Employee,
				EmployeeID: w.EmployeeID, Type: w.Type,
			}
		}
	}

	for slot := 1; slot <= ProtectorSlots; slot++ {
		p := m.Protector(slot)
		p.Used = get(protectorKey(slot, "used")) == "true"
		p.Date = parseTime(get(protectorKey(slot, "date")))
		p.Status = ProtectorStatus(get(protectorKey(slot, "status")))
		p.Order = get(protectorKey(slot, "order"))
		p.Size = get(protectorKey(slot, "size"))
		p.Reason = get(protectorKey(slot, "reason"))
		p.Delivery = parseTime(get(protectorKey(slot, "delivery")))
		if s := get(protectorKey(slot, "shipping")); s != "" {
			var addr ShippingAddress
			if err := json.Unmarshal([]byte(s), &addr); err == nil {
				p.Shipping = &addr
			}
		}
	}

	for k, v := range raw {
		if !known[k] {
			m.Extra[k] = v
		}
	}
	return m
}

func parseDecimal(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return set(d)
}

// =============================================================================
// ENCODE
// =============================================================================

// Encode returns the flat map to write back. See ENCODING CONTRACT above.
// The second return value is the number of history entries dropped to fit
// the provider value limit.
func (m Metadata) Encode() (map[string]string, int) {
	out := make(map[string]string, len(m.Extra)+32)
	for k, v := range m.Extra {
		out[k] = v
	}

	out[KeyCreditsUsed] = encodeDecimal(m.CreditsUsed)
	out[KeyCreditsReserved] = encodeDecimal(m.CreditsReserved)
	out[KeyReservationDate] = encodeTime(m.ReservationDate)
	out[KeyReservationExpires] = encodeTime(m.ReservationExpires)
	out[KeyCashbackBalance] = encodeDecimal(m.CashbackBalance)

	dropped := 0
	out[KeyCashbackHistory] = ""
	if len(m.CashbackHistory.Entries) > 0 {
		out[KeyCashbackHistory], dropped = EncodeHistory(m.CashbackHistory)
	}

	out[KeyLastTransaction] = ""
	if t := m.LastTransaction; t != nil {
		b, _ := json.Marshal(inStoreWire{
			Amount: json.Number(t.Amount.String()), Date: t.Date,
			Employee: t.Employee, EmployeeID: t.EmployeeID, Type: t.Type,
		})
		out[KeyLastTransaction] = string(b)
	}

	for slot := 1; slot <= ProtectorSlots; slot++ {
		p := m.Protectors[slot-1]
		used := ""
		if p.Used {
			used = "true"
		}
		shipping := ""
		if p.Shipping != nil {
			b, _ := json.Marshal(p.Shipping)
			shipping = string(b)
		}
		values := map[string]string{
			"used":     used,
			"date":     encodeTime(p.Date),
			"status":   string(p.Status),
			"order":    p.Order,
			"size":     p.Size,
			"reason":   p.Reason,
			"delivery": encodeTime(p.Delivery),
			"shipping": shipping,
		}
		for _, f := range protectorFields {
			out[protectorKey(slot, f)] = values[f]
		}
	}
	return out, dropped
}

// DiffPatch returns the keys of after whose value differs from before.
func DiffPatch(before, after map[string]string) map[string]string {
	patch := make(map[string]string)
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			patch[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			patch[k] = ""
		}
	}
	return patch
}

func encodeDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func encodeTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// ApplyPatch merges an encoded map into stored metadata: empty values delete.
// Stores use it to emulate the provider's update semantics.
func ApplyPatch(stored, patch map[string]string) map[string]string {
	out := make(map[string]string, len(stored)+len(patch))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range patch {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
