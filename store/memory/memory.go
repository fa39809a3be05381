// Package memory provides an in-memory, versioned benefits.LedgerStore.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/elitesleep/portal/benefits"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[string]benefits.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]benefits.Record)}
}

// Load returns a copy of the stored record.
func (m *Memory) Load(_ context.Context, customerID string) (*benefits.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[customerID]
	if !ok {
		return nil, benefits.ErrCustomerNotFound
	}
	out := copyRecord(rec)
	return &out, nil
}

// Insert stores a new record at version 1.
func (m *Memory) Insert(_ context.Context, rec *benefits.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.CustomerID]; ok {
		return benefits.ErrAlreadyExists
	}
	rec.Version = 1
	rec.UpdatedAt = time.Now().UTC()
	m.records[rec.CustomerID] = copyRecord(*rec)
	return nil
}

// Save applies patch when rec.Version matches (compare-and-swap).
func (m *Memory) Save(_ context.Context, rec *benefits.Record, patch map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[rec.CustomerID]
	if !ok {
		return benefits.ErrCustomerNotFound
	}
	if stored.Version != rec.Version {
		return benefits.ErrConcurrentModification
	}

	stored.Metadata = benefits.ApplyPatch(stored.Metadata, patch)
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	m.records[rec.CustomerID] = stored

	rec.Metadata = copyMetadata(stored.Metadata)
	rec.Version = stored.Version
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

// List returns all records ordered by customer id.
func (m *Memory) List(_ context.Context) ([]benefits.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]benefits.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func copyRecord(r benefits.Record) benefits.Record {
	r.Metadata = copyMetadata(r.Metadata)
	return r
}

func copyMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
