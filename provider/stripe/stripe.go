// Package stripe implements benefits.BillingProvider on the Stripe API.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/elitesleep/portal/benefits"
)

// maxPageSize is the largest page Stripe list endpoints accept.
const maxPageSize = 100

// Client talks to Stripe through the package-level client configured by New.
// The function fields are swapped out in tests.
type Client struct {
	getCustomer       func(id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	updateCustomer    func(id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	listCustomers     func(params *stripe.CustomerListParams) ([]*stripe.Customer, error)
	listInvoices      func(params *stripe.InvoiceListParams, limit int) ([]*stripe.Invoice, error)
	listSubscriptions func(params *stripe.SubscriptionListParams) ([]*stripe.Subscription, error)
}

// New configures the Stripe secret key. An empty key yields
// benefits.ErrProviderUnavailable; startup treats that as fatal.
func New(apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, benefits.ErrProviderUnavailable
	}
	stripe.Key = apiKey
	return &Client{
		getCustomer:       customer.Get,
		updateCustomer:    customer.Update,
		listCustomers:     collectCustomers,
		listInvoices:      collectInvoices,
		listSubscriptions: collectSubscriptions,
	}, nil
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) (*benefits.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cus, err := c.getCustomer(customerID, params)
	if err != nil {
		return nil, mapError(err)
	}
	if cus.Deleted {
		return nil, benefits.ErrCustomerNotFound
	}
	return toCustomer(cus), nil
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*benefits.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(strings.TrimSpace(email))}
	params.Context = ctx
	params.Limit = stripe.Int64(10)
	customers, err := c.listCustomers(params)
	if err != nil {
		return nil, mapError(err)
	}
	for _, cus := range customers {
		if !cus.Deleted {
			return toCustomer(cus), nil
		}
	}
	return nil, benefits.ErrCustomerNotFound
}

// UpdateMetadata merges patch into the customer's metadata. Stripe deletes a
// key whose value is the empty string.
func (c *Client) UpdateMetadata(ctx context.Context, customerID string, patch map[string]string) error {
	if len(patch) == 0 {
		return nil
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx
	for k, v := range patch {
		params.AddMetadata(k, v)
	}
	if _, err := c.updateCustomer(customerID, params); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) PaidInvoices(ctx context.Context, customerID string, limit int) ([]benefits.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.InvoiceStatusPaid)),
	}
	params.Context = ctx
	pageSize := maxPageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}
	params.Limit = stripe.Int64(int64(pageSize))

	raw, err := c.listInvoices(params, limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]benefits.Invoice, 0, len(raw))
	for _, inv := range raw {
		out = append(out, toInvoice(inv))
	}
	return out, nil
}

func (c *Client) Subscriptions(ctx context.Context, customerID string) ([]benefits.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	raw, err := c.listSubscriptions(params)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]benefits.Subscription, 0, len(raw))
	for _, sub := range raw {
		out = append(out, benefits.Subscription{ID: sub.ID, Status: string(sub.Status)})
	}
	return out, nil
}

// =============================================================================
// LIST HELPERS - drain the auto-paginating iterators
// =============================================================================

func collectCustomers(params *stripe.CustomerListParams) ([]*stripe.Customer, error) {
	var out []*stripe.Customer
	it := customer.List(params)
	for it.Next() {
		out = append(out, it.Customer())
		if len(out) >= int(stripe.Int64Value(params.Limit)) {
			break
		}
	}
	return out, it.Err()
}

// collectInvoices stops after limit invoices; limit <= 0 reads every page.
func collectInvoices(params *stripe.InvoiceListParams, limit int) ([]*stripe.Invoice, error) {
	var out []*stripe.Invoice
	it := invoice.List(params)
	for it.Next() {
		out = append(out, it.Invoice())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, it.Err()
}

func collectSubscriptions(params *stripe.SubscriptionListParams) ([]*stripe.Subscription, error) {
	var out []*stripe.Subscription
	it := subscription.List(params)
	for it.Next() {
		out = append(out, it.Subscription())
	}
	return out, it.Err()
}

// =============================================================================
// CONVERSION
// =============================================================================

func toCustomer(cus *stripe.Customer) *benefits.Customer {
	md := make(map[string]string, len(cus.Metadata))
	for k, v := range cus.Metadata {
		md[k] = v
	}
	return &benefits.Customer{ID: cus.ID, Email: cus.Email, Name: cus.Name, Metadata: md}
}

func toInvoice(inv *stripe.Invoice) benefits.Invoice {
	out := benefits.Invoice{
		ID:         inv.ID,
		AmountPaid: inv.AmountPaid,
		Created:    time.Unix(inv.Created, 0).UTC(),
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		out.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return out
}

// mapError turns Stripe 404s into ErrCustomerNotFound and transport or
// server failures into ErrProviderUnavailable.
func mapError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch {
		case serr.HTTPStatusCode == http.StatusNotFound:
			return benefits.ErrCustomerNotFound
		case serr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %s", benefits.ErrProviderUnavailable, serr.Msg)
		}
		return fmt.Errorf("stripe: %w", err)
	}
	return fmt.Errorf("%w: %v", benefits.ErrProviderUnavailable, err)
}
