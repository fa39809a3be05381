package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitesleep/portal/benefits"
)

func TestProvider_CustomerLookup(t *testing.T) {
	p := New()
	p.AddCustomer(benefits.Customer{ID: "cus_1", Email: "Mia@Example.com"})
	ctx := context.Background()

	c, err := p.FindCustomerByEmail(ctx, "mia@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", c.ID)

	c.Metadata["mutated"] = "yes"
	again, err := p.GetCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Empty(t, again.Metadata, "returned customers are copies")

	_, err = p.GetCustomer(ctx, "cus_missing")
	assert.ErrorIs(t, err, benefits.ErrCustomerNotFound)
	_, err = p.FindCustomerByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, benefits.ErrCustomerNotFound)
}

func TestProvider_UpdateMetadata(t *testing.T) {
	p := New()
	p.AddCustomer(benefits.Customer{ID: "cus_1", Metadata: map[string]string{"a": "1", "b": "2"}})
	ctx := context.Background()

	require.NoError(t, p.UpdateMetadata(ctx, "cus_1", map[string]string{"a": "", "c": "3"}))
	c, err := p.GetCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2", "c": "3"}, c.Metadata)
	assert.Equal(t, 1, p.Updates())

	assert.ErrorIs(t, p.UpdateMetadata(ctx, "cus_missing", nil), benefits.ErrCustomerNotFound)

	p.FailUpdates = errors.New("down")
	assert.EqualError(t, p.UpdateMetadata(ctx, "cus_1", nil), "down")
}

func TestProvider_PaidInvoicesNewestFirst(t *testing.T) {
	p := New()
	p.AddPaidInvoices("cus_1", "sub_1", 5)
	ctx := context.Background()

	all, err := p.PaidInvoices(ctx, "cus_1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "in_cus_1_5", all[0].ID)
	assert.True(t, all[0].Created.After(all[4].Created))

	limited, err := p.PaidInvoices(ctx, "cus_1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	p.ResetBilling("cus_1")
	none, err := p.PaidInvoices(ctx, "cus_1", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
