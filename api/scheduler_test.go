package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleReservationMonitor_Scan(t *testing.T) {
	// GIVEN: One member with an expired hold and one with a fresh hold
	s := newTestServer(t)
	s.handler.Demo.Now = func() time.Time { return scenarioNow }
	_, err := s.handler.Demo.Load(t.Context(), "pending-hold")
	require.NoError(t, err)
	_, err = s.handler.Demo.Load(t.Context(), "new-member")
	require.NoError(t, err)

	s.handler.Benefits.Now = func() time.Time { return scenarioNow }
	_, err = s.handler.Benefits.Reserve(t.Context(), "cus_demo_new", mustDecimal(t, "15"))
	require.NoError(t, err)

	monitor := NewStaleReservationMonitor(s.db)
	monitor.Now = func() time.Time { return scenarioNow }

	// WHEN: The monitor scans the ledger
	stale, err := monitor.Scan(t.Context())

	// THEN: Only the expired hold is reported
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "cus_demo_hold", stale[0].CustomerID)
	assert.Equal(t, "30", stale[0].Reserved)
	assert.True(t, scenarioNow.Add(-24*time.Hour).Equal(stale[0].Expires))

	// AND: A day later both holds are stale
	monitor.Now = func() time.Time { return scenarioNow.Add(25 * time.Hour) }
	stale, err = monitor.Scan(t.Context())
	require.NoError(t, err)
	assert.Len(t, stale, 2)
}

func TestStaleReservationMonitor_StartStop(t *testing.T) {
	s := newTestServer(t)
	monitor := NewStaleReservationMonitor(s.db)
	monitor.CheckInterval = time.Hour

	monitor.Start()
	monitor.Start()
	monitor.Stop()
	monitor.Stop()

	disabled := NewStaleReservationMonitor(nil)
	disabled.Start()
	disabled.Stop()
}
