/*
scheduler.go - Stale reservation monitor

PURPOSE:
  Periodically scans the ledger for credit holds whose reservation_expires
  has passed without a confirmation, logs them, and exports the count as
  the portal_stale_reservations gauge.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Report only: holds are never released automatically. Expiry stays
    advisory, and an operator clears a hold with "ledger reset --scope
    reservation" or the admin reset endpoint.
  - Needs a RecordLister, so it only runs in mirror mode

USAGE:
  monitor := NewStaleReservationMonitor(store)
  monitor.Start()
  // ... later
  monitor.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elitesleep/portal/benefits"
	"github.com/elitesleep/portal/metrics"
)

// StaleReservation is one hold past its expiry.
type StaleReservation struct {
	CustomerID string
	Reserved   string
	Expires    time.Time
}

// StaleReservationMonitor reports expired credit holds.
type StaleReservationMonitor struct {
	Records       benefits.RecordLister
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewStaleReservationMonitor(records benefits.RecordLister) *StaleReservationMonitor {
	return &StaleReservationMonitor{
		Records:       records,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the monitor.
func (m *StaleReservationMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled || m.Records == nil {
		log.Info().Msg("Stale reservation monitor disabled")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run()

	log.Info().Dur("interval", m.CheckInterval).Msg("Stale reservation monitor started")
}

// Stop stops the monitor and waits for the current scan to finish.
func (m *StaleReservationMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		log.Info().Msg("Stale reservation monitor stopped")
	}
}

func (m *StaleReservationMonitor) run() {
	defer m.wg.Done()

	// Run immediately on start
	m.check()

	for {
		select {
		case <-m.ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *StaleReservationMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stale, err := m.Scan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Stale reservation scan failed")
		return
	}
	for _, s := range stale {
		log.Warn().
			Str("customer_id", s.CustomerID).
			Str("reserved", s.Reserved).
			Time("expired_at", s.Expires).
			Msg("Credit reservation past expiry")
	}
}

// Scan lists every stale hold and updates the gauge.
func (m *StaleReservationMonitor) Scan(ctx context.Context) ([]StaleReservation, error) {
	records, err := m.Records.List(ctx)
	if err != nil {
		return nil, err
	}

	now := m.Now()
	var stale []StaleReservation
	for _, rec := range records {
		md := benefits.DecodeMetadata(rec.Metadata)
		if !benefits.IsReservationStale(md, now) {
			continue
		}
		stale = append(stale, StaleReservation{
			CustomerID: rec.CustomerID,
			Reserved:   md.Reserved().String(),
			Expires:    *md.ReservationExpires,
		})
	}
	metrics.StaleReservations.Set(float64(len(stale)))
	return stale, nil
}
