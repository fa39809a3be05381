package benefits_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/elitesleep/portal/benefits"
	providermemory "github.com/elitesleep/portal/provider/memory"
	storememory "github.com/elitesleep/portal/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

var staff = benefits.Actor{ID: "emp-7", Name: "Sam Staff", Type: benefits.ActorEmployee}

type fixture struct {
	svc      *benefits.Service
	store    *storememory.Memory
	provider *providermemory.Provider
}

// newFixture wires a mirrored service over in-memory stores. cus_1 has four
// paid subscription invoices and an active subscription.
func newFixture(t *testing.T, metadata map[string]string) *fixture {
	t.Helper()

	p := providermemory.New()
	p.AddCustomer(benefits.Customer{
		ID:       "cus_1",
		Email:    "mia@example.com",
		Name:     "Mia Member",
		Metadata: metadata,
	})
	p.AddPaidInvoices("cus_1", "sub_1", 4)
	p.AddSubscription("cus_1", benefits.Subscription{ID: "sub_1", Status: "active"})

	st := storememory.NewMemory()
	svc := benefits.NewService(benefits.NewMirroredStore(st, p), p, benefits.DefaultProgram())
	svc.Now = func() time.Time { return testNow }
	ids := 0
	svc.NewID = func() string {
		ids++
		return fmt.Sprintf("%08x-0000-4000-8000-000000000000", ids)
	}
	return &fixture{svc: svc, store: st, provider: p}
}

// providerMetadata returns what the provider currently holds for a customer.
func (f *fixture) providerMetadata(t *testing.T, customerID string) map[string]string {
	t.Helper()
	c, err := f.provider.GetCustomer(t.Context(), customerID)
	if err != nil {
		t.Fatalf("provider customer %s: %v", customerID, err)
	}
	return c.Metadata
}
