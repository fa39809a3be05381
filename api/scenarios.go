/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Populates the in-memory payment provider with members in specific
	benefit states, so the portal can be exercised without a Stripe account.
	Only mounted when DEMO_MODE=true.

AVAILABLE SCENARIOS:

	new-member:        Active subscriber, 4 paid invoices, untouched ledger
	pending-hold:      30 credits used, 30 reserved, hold already past expiry
	legacy-cashback:   Cashback history stored in the compact encoding
	protector-shipped: Slot 2 claimed and shipped, 12 paid invoices
	lapsed-member:     Canceled subscription, 6 paid invoices

HOW SCENARIOS WORK:
 1. Upsert the customer, invoices and subscription in the memory provider
 2. Load the ledger record (seeds the mirror on first load)
 3. Overwrite every ledger key with the scenario's values in one save

USAGE VIA API:

	POST /api/dev/scenarios/load
	{"scenarioId": "pending-hold"}

Register with the scenario email to log in as that member.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/elitesleep/portal/benefits"
	providermemory "github.com/elitesleep/portal/provider/memory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CustomerID  string `json:"customerId"`
	Email       string `json:"email"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

type scenario struct {
	ScenarioDTO
	invoices     int
	subscription string // status; empty for none
	metadata     func(now time.Time) map[string]string
}

func ts(t time.Time) string { return t.UTC().Format(benefits.TimeLayout) }

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "new-member",
			Name:        "New Member",
			Description: "Active subscriber with 4 paid invoices and no benefit activity",
			CustomerID:  "cus_demo_new",
			Email:       "new.member@demo.elitesleep.test",
		},
		invoices:     4,
		subscription: "active",
		metadata:     func(time.Time) map[string]string { return map[string]string{} },
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pending-hold",
			Name:        "Pending Hold",
			Description: "30 credits used and 30 reserved; the hold expired yesterday",
			CustomerID:  "cus_demo_hold",
			Email:       "pending.hold@demo.elitesleep.test",
		},
		invoices:     4,
		subscription: "active",
		metadata: func(now time.Time) map[string]string {
			return map[string]string{
				benefits.KeyCreditsUsed:        "30",
				benefits.KeyCreditsReserved:    "30",
				benefits.KeyReservationDate:    ts(now.Add(-48 * time.Hour)),
				benefits.KeyReservationExpires: ts(now.Add(-24 * time.Hour)),
			}
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "legacy-cashback",
			Name:        "Legacy Cashback History",
			Description: "Cashback history in the compact encoding written by older tools",
			CustomerID:  "cus_demo_legacy",
			Email:       "legacy.cashback@demo.elitesleep.test",
		},
		invoices:     8,
		subscription: "active",
		metadata: func(time.Time) map[string]string {
			return map[string]string{
				benefits.KeyCashbackBalance: "15",
				benefits.KeyCashbackHistory: `[{"d":"2024-01-01","a":100,"c":10,"desc":"Pillow set","e":"emp1","t":"e"},` +
					`{"d":"2024-02-12","a":250,"c":25,"desc":"Bed frame","e":"emp2","t":"e"},` +
					`{"d":"2024-03-03","a":0,"c":20,"desc":"Redeemed in store","e":"emp1","t":"u"}]`,
			}
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "protector-shipped",
			Name:        "Protector Shipped",
			Description: "Protector slot 2 claimed and shipped; slots 1 and 3 available",
			CustomerID:  "cus_demo_protector",
			Email:       "protector.shipped@demo.elitesleep.test",
		},
		invoices:     12,
		subscription: "active",
		metadata: func(now time.Time) map[string]string {
			return map[string]string{
				"protector_2_used":     "true",
				"protector_2_date":     ts(now.AddDate(0, 0, -3)),
				"protector_2_status":   string(benefits.ProtectorShipped),
				"protector_2_order":    "EP-DEMO0002",
				"protector_2_size":     "queen",
				"protector_2_reason":   "stain",
				"protector_2_delivery": ts(now.AddDate(0, 0, 2)),
			}
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "lapsed-member",
			Name:        "Lapsed Member",
			Description: "Canceled subscription with 6 paid invoices; protector requests are refused",
			CustomerID:  "cus_demo_lapsed",
			Email:       "lapsed.member@demo.elitesleep.test",
		},
		invoices:     6,
		subscription: "canceled",
		metadata:     func(time.Time) map[string]string { return map[string]string{} },
	},
}

// =============================================================================
// LOADER
// =============================================================================

// ScenarioLoader writes demo members into the memory provider and ledger.
type ScenarioLoader struct {
	Provider *providermemory.Provider
	Store    benefits.LedgerStore
	Now      func() time.Time

	mu      sync.Mutex
	current string
}

func NewScenarioLoader(p *providermemory.Provider, store benefits.LedgerStore) *ScenarioLoader {
	return &ScenarioLoader{Provider: p, Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// Load applies the scenario. Loading twice resets the member to the
// scenario state.
func (l *ScenarioLoader) Load(ctx context.Context, id string) (ScenarioDTO, error) {
	sc, ok := findScenario(id)
	if !ok {
		return ScenarioDTO{}, &benefits.ValidationError{Field: "scenarioId", Message: fmt.Sprintf("unknown scenario %q", id)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	raw := sc.metadata(now)
	l.Provider.AddCustomer(benefits.Customer{
		ID:       sc.CustomerID,
		Email:    sc.Email,
		Name:     sc.Name,
		Metadata: raw,
	})
	l.Provider.ResetBilling(sc.CustomerID)
	l.Provider.AddPaidInvoices(sc.CustomerID, "sub_"+sc.CustomerID, sc.invoices)
	if sc.subscription != "" {
		l.Provider.AddSubscription(sc.CustomerID, benefits.Subscription{ID: "sub_" + sc.CustomerID, Status: sc.subscription})
	}

	rec, err := l.Store.Load(ctx, sc.CustomerID)
	if err != nil {
		return ScenarioDTO{}, err
	}
	patch, _ := benefits.DecodeMetadata(raw).Encode()
	if err := l.Store.Save(ctx, rec, patch); err != nil {
		return ScenarioDTO{}, err
	}

	l.current = sc.ID
	return sc.ScenarioDTO, nil
}

// Current returns the id of the last loaded scenario.
func (l *ScenarioLoader) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": out,
		"current":   h.Demo.Current(),
	})
}

// LoadScenario loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dto, err := h.Demo.Load(r.Context(), req.ScenarioID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}
