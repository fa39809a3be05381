/*
Package memory provides an in-memory benefits.BillingProvider.

PURPOSE:
  Stands in for the payment provider in tests and in demo mode. Customers,
  paid invoices and subscriptions are seeded directly; metadata updates use
  the provider's merge semantics (empty value deletes the key).

USAGE:
  p := memory.New()
  p.AddCustomer(benefits.Customer{ID: "cus_1", Email: "a@example.com"})
  p.AddPaidInvoices("cus_1", "sub_1", 4)
  p.AddSubscription("cus_1", benefits.Subscription{ID: "sub_1", Status: "active"})
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elitesleep/portal/benefits"
)

type Provider struct {
	mu            sync.RWMutex
	customers     map[string]benefits.Customer
	invoices      map[string][]benefits.Invoice
	subscriptions map[string][]benefits.Subscription
	updates       int

	// FailUpdates makes UpdateMetadata return this error when set.
	FailUpdates error
}

func New() *Provider {
	return &Provider{
		customers:     make(map[string]benefits.Customer),
		invoices:      make(map[string][]benefits.Invoice),
		subscriptions: make(map[string][]benefits.Subscription),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (p *Provider) AddCustomer(c benefits.Customer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	p.customers[c.ID] = c
}

func (p *Provider) AddInvoice(customerID string, inv benefits.Invoice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invoices[customerID] = append(p.invoices[customerID], inv)
}

// AddPaidInvoices adds n monthly paid invoices for a subscription.
func (p *Provider) AddPaidInvoices(customerID, subscriptionID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := len(p.invoices[customerID])
	for i := 0; i < n; i++ {
		p.invoices[customerID] = append(p.invoices[customerID], benefits.Invoice{
			ID:             fmt.Sprintf("in_%s_%d", customerID, offset+i+1),
			SubscriptionID: subscriptionID,
			AmountPaid:     2999,
			Created:        base.AddDate(0, offset+i, 0),
		})
	}
}

func (p *Provider) AddSubscription(customerID string, sub benefits.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[customerID] = append(p.subscriptions[customerID], sub)
}

// ResetBilling drops a customer's invoices and subscriptions.
func (p *Provider) ResetBilling(customerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.invoices, customerID)
	delete(p.subscriptions, customerID)
}

// Updates returns how many metadata updates were received.
func (p *Provider) Updates() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updates
}

// =============================================================================
// benefits.BillingProvider
// =============================================================================

func (p *Provider) GetCustomer(_ context.Context, customerID string) (*benefits.Customer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.customers[customerID]
	if !ok {
		return nil, benefits.ErrCustomerNotFound
	}
	return copyCustomer(c), nil
}

func (p *Provider) FindCustomerByEmail(_ context.Context, email string) (*benefits.Customer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.customers))
	for id := range p.customers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if strings.EqualFold(p.customers[id].Email, email) {
			return copyCustomer(p.customers[id]), nil
		}
	}
	return nil, benefits.ErrCustomerNotFound
}

func (p *Provider) UpdateMetadata(_ context.Context, customerID string, patch map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailUpdates != nil {
		return p.FailUpdates
	}
	c, ok := p.customers[customerID]
	if !ok {
		return benefits.ErrCustomerNotFound
	}
	c.Metadata = benefits.ApplyPatch(c.Metadata, patch)
	p.customers[customerID] = c
	p.updates++
	return nil
}

func (p *Provider) PaidInvoices(_ context.Context, customerID string, limit int) ([]benefits.Invoice, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := append([]benefits.Invoice(nil), p.invoices[customerID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *Provider) Subscriptions(_ context.Context, customerID string) ([]benefits.Subscription, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]benefits.Subscription(nil), p.subscriptions[customerID]...), nil
}

func copyCustomer(c benefits.Customer) *benefits.Customer {
	md := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		md[k] = v
	}
	c.Metadata = md
	return &c
}
