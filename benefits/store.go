/*
store.go - Persistence interfaces for ledger records and the billing provider

PURPOSE:
  Defines the boundary between the benefit workflows and where the metadata
  map actually lives. Two arrangements are supported:

  ProviderStore (LEDGER_MODE=provider):
    The provider's customer metadata IS the system of record. Every save is
    a whole-map, last-write-wins update with no version check. Two
    concurrent reservations can both succeed and double-spend credits. Kept
    for parity with existing deployments.

  MirroredStore (LEDGER_MODE=mirror, default):
    A versioned SQL row per customer is the system of record. Saves are
    compare-and-swap on Record.Version; a lost race returns
    ErrConcurrentModification. After each committed save the same patch is
    pushed to the provider metadata so dashboards and other tools keep
    seeing current values. The provider copy is a mirror only.

PATCH CONTRACT:
  Save receives only the keys a write changed (DiffPatch over two
  Metadata.Encode results). An empty value deletes the key, matching the
  provider's update semantics (see ApplyPatch).

SEE ALSO:
  - store/sqldb: Versioned SQL implementation (SQLite or Postgres)
  - store/memory: Versioned in-memory implementation
  - provider/stripe: BillingProvider backed by Stripe
*/
package benefits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// LEDGER STORE
// =============================================================================

// Record is one customer's metadata plus its optimistic version.
type Record struct {
	CustomerID string
	Email      string
	Name       string
	Metadata   map[string]string
	Version    int64
	UpdatedAt  time.Time
}

// LedgerStore loads and saves customer metadata.
type LedgerStore interface {
	// Load returns the record or ErrCustomerNotFound.
	Load(ctx context.Context, customerID string) (*Record, error)

	// Save applies patch if rec.Version still matches the stored version.
	// On success rec.Metadata and rec.Version reflect the new state.
	Save(ctx context.Context, rec *Record, patch map[string]string) error
}

// SeedableStore can insert a record seen for the first time.
type SeedableStore interface {
	LedgerStore

	// Insert stores rec at version 1. Returns ErrAlreadyExists if present.
	Insert(ctx context.Context, rec *Record) error
}

// RecordLister enumerates stored records. Used by the stale hold monitor
// and the CLI.
type RecordLister interface {
	List(ctx context.Context) ([]Record, error)
}

// =============================================================================
// BILLING PROVIDER
// =============================================================================

// BillingProvider is the external payment/subscription provider.
type BillingProvider interface {
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)

	// UpdateMetadata merges patch into the customer's metadata. Empty values delete.
	UpdateMetadata(ctx context.Context, customerID string, patch map[string]string) error

	// PaidInvoices returns up to limit most recent paid invoices, newest first.
	// limit <= 0 returns all of them.
	PaidInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error)

	Subscriptions(ctx context.Context, customerID string) ([]Subscription, error)
}

// =============================================================================
// PROVIDER STORE - last-write-wins on provider metadata
// =============================================================================

type ProviderStore struct {
	Provider BillingProvider
}

func NewProviderStore(p BillingProvider) *ProviderStore {
	return &ProviderStore{Provider: p}
}

func (s *ProviderStore) Load(ctx context.Context, customerID string) (*Record, error) {
	c, err := s.Provider.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return recordFromCustomer(c), nil
}

// Save ignores rec.Version: the provider offers no conditional update.
func (s *ProviderStore) Save(ctx context.Context, rec *Record, patch map[string]string) error {
	if err := s.Provider.UpdateMetadata(ctx, rec.CustomerID, patch); err != nil {
		return err
	}
	rec.Metadata = ApplyPatch(rec.Metadata, patch)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// =============================================================================
// MIRRORED STORE - versioned primary, provider mirror
// =============================================================================

type MirroredStore struct {
	Primary  SeedableStore
	Provider BillingProvider
}

func NewMirroredStore(primary SeedableStore, p BillingProvider) *MirroredStore {
	return &MirroredStore{Primary: primary, Provider: p}
}

// Load reads the primary, seeding it from the provider on first sight.
func (s *MirroredStore) Load(ctx context.Context, customerID string) (*Record, error) {
	rec, err := s.Primary.Load(ctx, customerID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	c, err := s.Provider.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	rec = recordFromCustomer(c)
	if err := s.Primary.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.Primary.Load(ctx, customerID)
		}
		return nil, fmt.Errorf("seed ledger record: %w", err)
	}
	log.Debug().Str("customer_id", customerID).Msg("Seeded ledger record from provider")
	return rec, nil
}

// Save commits to the primary, then mirrors the patch to the provider.
func (s *MirroredStore) Save(ctx context.Context, rec *Record, patch map[string]string) error {
	if err := s.Primary.Save(ctx, rec, patch); err != nil {
		return err
	}
	if err := s.Provider.UpdateMetadata(ctx, rec.CustomerID, patch); err != nil {
		log.Warn().Err(err).
			Str("customer_id", rec.CustomerID).
			Int64("version", rec.Version).
			Msg("Ledger committed but provider mirror update failed")
	}
	return nil
}

func recordFromCustomer(c *Customer) *Record {
	md := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		md[k] = v
	}
	return &Record{
		CustomerID: c.ID,
		Email:      c.Email,
		Name:       c.Name,
		Metadata:   md,
		UpdatedAt:  time.Now().UTC(),
	}
}
