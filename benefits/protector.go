/*
protector.go - Mattress protector replacement claims

PURPOSE:
  Each member holds three independent, one-time protector replacements.

STATES (per slot):
  Available ──Claim/Request──▶ Processing ──▶ Shipped ──▶ Delivered

  Claim and Request only ever move a slot out of Available. Shipped and
  Delivered are set by operational tooling through SetProtectorStatus,
  which only allows forward moves.

VARIANTS:
  Claim:   slot must be unused. No subscription check.
  Request: slot must be unused AND the member needs a subscription in
           Program.ActiveStatuses. Also records an order number, a
           shipping snapshot and a delivery estimate (now + 5 days).
  The asymmetry between the two variants is existing behavior.
*/
package benefits

import (
	"context"
	"fmt"
	"strings"
)

// ProtectorRequest is the input of the request variant.
type ProtectorRequest struct {
	Size     string
	Reason   string
	Shipping ShippingAddress
}

func validSlot(slot int) error {
	if slot < 1 || slot > ProtectorSlots {
		return invalid("slot", fmt.Sprintf("must be between 1 and %d", ProtectorSlots))
	}
	return nil
}

// Claim marks a slot as claimed and processing.
func (s *Service) Claim(ctx context.Context, customerID string, slot int) (ProtectorView, error) {
	if err := validSlot(slot); err != nil {
		return ProtectorView{}, err
	}

	now := s.now()
	_, m, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		p := m.Protector(slot)
		if p.Used {
			return &AlreadyClaimedError{Slot: slot}
		}
		p.Used = true
		p.Date = &now
		p.Status = ProtectorProcessing
		return nil
	})
	if err != nil {
		return ProtectorView{}, err
	}
	return ComputeProtectors(m).Slots[slot-1], nil
}

// Request claims a slot for an active subscriber and records shipping details.
func (s *Service) Request(ctx context.Context, customerID string, slot int, req ProtectorRequest) (ProtectorView, error) {
	if err := validSlot(slot); err != nil {
		return ProtectorView{}, err
	}
	if strings.TrimSpace(req.Size) == "" {
		return ProtectorView{}, invalid("size", "is required")
	}
	addr := req.Shipping
	if addr.Line1 == "" || addr.City == "" || addr.PostalCode == "" {
		return ProtectorView{}, invalid("shipping", "line1, city and postal_code are required")
	}

	subs, err := s.Billing.Subscriptions(ctx, customerID)
	if err != nil {
		return ProtectorView{}, err
	}
	if _, active := s.subscriptionStatus(subs); !active {
		return ProtectorView{}, ErrInactiveSubscription
	}

	now := s.now()
	delivery := now.Add(s.Program.DeliveryEstimate)
	order := s.orderNumber()

	_, m, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		p := m.Protector(slot)
		if p.Used {
			return &AlreadyClaimedError{Slot: slot}
		}
		p.Used = true
		p.Date = &now
		p.Status = ProtectorProcessing
		p.Order = order
		p.Size = req.Size
		p.Reason = req.Reason
		p.Delivery = &delivery
		p.Shipping = &addr
		return nil
	})
	if err != nil {
		return ProtectorView{}, err
	}
	return ComputeProtectors(m).Slots[slot-1], nil
}

func (s *Service) orderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(s.NewID(), "-", ""))
	if len(id) > 8 {
		id = id[:8]
	}
	return "EP-" + id
}

var statusRank = map[ProtectorStatus]int{
	ProtectorAvailable:  0,
	ProtectorProcessing: 1,
	ProtectorShipped:    2,
	ProtectorDelivered:  3,
}

// SetProtectorStatus moves a claimed slot forward (processing -> shipped -> delivered).
func (s *Service) SetProtectorStatus(ctx context.Context, customerID string, slot int, status ProtectorStatus) (ProtectorView, error) {
	if err := validSlot(slot); err != nil {
		return ProtectorView{}, err
	}
	next, ok := statusRank[status]
	if !ok || status == ProtectorAvailable {
		return ProtectorView{}, invalid("status", "must be processing, shipped or delivered")
	}

	_, m, err := s.mutate(ctx, customerID, func(_ *Record, m *Metadata) error {
		p := m.Protector(slot)
		if !p.Used {
			return fmt.Errorf("%w: protector %d has not been claimed", ErrInvalidTransition, slot)
		}
		current := p.EffectiveStatus()
		if next <= statusRank[current] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}
		p.Status = status
		return nil
	})
	if err != nil {
		return ProtectorView{}, err
	}
	return ComputeProtectors(m).Slots[slot-1], nil
}
