package benefits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service runs the benefit workflows against a LedgerStore and the provider.
type Service struct {
	Store   LedgerStore
	Billing BillingProvider
	Program Program

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string
}

func NewService(store LedgerStore, billing BillingProvider, program Program) *Service {
	return &Service{
		Store:   store,
		Billing: billing,
		Program: program,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   func() string { return uuid.NewString() },
	}
}

func (s *Service) now() time.Time { return s.Now().UTC() }

// load returns the record and its decoded metadata.
func (s *Service) load(ctx context.Context, customerID string) (*Record, Metadata, error) {
	if customerID == "" {
		return nil, Metadata{}, invalid("customerId", "is required")
	}
	rec, err := s.Store.Load(ctx, customerID)
	if err != nil {
		return nil, Metadata{}, err
	}
	return rec, DecodeMetadata(rec.Metadata), nil
}

// mutate is the single read-modify-write path. fn edits the typed metadata;
// if it returns an error nothing is written. At most one Save per call.
//
// Only keys whose encoded value changed are written, so stored values the
// schema cannot parse survive writes to other keys. Keys named in deleteKeys are
// deleted whenever the record still holds them.
func (s *Service) mutate(
	ctx context.Context,
	customerID string,
	fn func(rec *Record, m *Metadata) error,
	deleteKeys ...string,
) (*Record, Metadata, error) {
	rec, m, err := s.load(ctx, customerID)
	if err != nil {
		return nil, Metadata{}, err
	}
	before, _ := m.Encode()
	if err := fn(rec, &m); err != nil {
		return nil, Metadata{}, err
	}

	after, dropped := m.Encode()
	if dropped > 0 {
		log.Warn().
			Str("customer_id", customerID).
			Int("dropped", dropped).
			Msg("Cashback history trimmed to fit metadata value limit")
	}
	patch := DiffPatch(before, after)
	for _, k := range deleteKeys {
		if rec.Metadata[k] != "" {
			patch[k] = ""
		}
	}
	if len(patch) == 0 {
		return rec, DecodeMetadata(rec.Metadata), nil
	}
	if err := s.Store.Save(ctx, rec, patch); err != nil {
		return nil, Metadata{}, err
	}
	return rec, DecodeMetadata(rec.Metadata), nil
}

// EnsureRecord loads the customer's record, which seeds a mirrored store
// on first sight.
func (s *Service) EnsureRecord(ctx context.Context, customerID string) error {
	_, _, err := s.load(ctx, customerID)
	return err
}
