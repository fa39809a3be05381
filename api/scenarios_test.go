package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitesleep/portal/benefits"
)

var scenarioNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestScenarios_ListAndLoad(t *testing.T) {
	s := newTestServer(t)

	var list struct {
		Scenarios []ScenarioDTO `json:"scenarios"`
		Current   string        `json:"current"`
	}
	require.Equal(t, http.StatusOK, s.do("GET", "/api/dev/scenarios/", "", nil, &list))
	assert.Len(t, list.Scenarios, len(scenarios))
	assert.Empty(t, list.Current)

	var loaded ScenarioDTO
	require.Equal(t, http.StatusOK, s.do("POST", "/api/dev/scenarios/load", "", LoadScenarioRequest{ScenarioID: "legacy-cashback"}, &loaded))
	assert.Equal(t, "cus_demo_legacy", loaded.CustomerID)

	require.Equal(t, http.StatusOK, s.do("GET", "/api/dev/scenarios/", "", nil, &list))
	assert.Equal(t, "legacy-cashback", list.Current)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/dev/scenarios/load", "", LoadScenarioRequest{ScenarioID: "nope"}, &errResp))
	assert.Equal(t, "validation_error", errResp.Code)
}

func TestScenario_LegacyCashbackThroughPortal(t *testing.T) {
	// GIVEN: The legacy cashback member is loaded and registered
	s := newTestServer(t)
	var loaded ScenarioDTO
	require.Equal(t, http.StatusOK, s.do("POST", "/api/dev/scenarios/load", "", LoadScenarioRequest{ScenarioID: "legacy-cashback"}, &loaded))

	var session SessionDTO
	require.Equal(t, http.StatusCreated, s.do("POST", "/api/auth/register", "", CredentialsRequest{Email: loaded.Email, Password: "correct-horse"}, &session))

	// WHEN: They view their cashback
	var cashback CashbackDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/me/cashback", session.Token, nil, &cashback))

	// THEN: The compact history is decoded
	assert.Equal(t, "15", cashback.Balance.String())
	assert.Equal(t, "35", cashback.TotalEarned.String())
	assert.Equal(t, "20", cashback.TotalUsed.String())
	require.Len(t, cashback.History, 3)
	assert.Equal(t, "legacy-0", cashback.History[0].ID)
	assert.Equal(t, "Pillow set", cashback.History[0].Description)
	assert.Equal(t, "used", cashback.History[2].Type)
}

func TestScenario_ReloadResetsMember(t *testing.T) {
	// GIVEN: A loaded pending-hold member whose hold was then confirmed
	s := newTestServer(t)
	loader := s.handler.Demo
	loader.Now = func() time.Time { return scenarioNow }
	ctx := t.Context()

	_, err := loader.Load(ctx, "pending-hold")
	require.NoError(t, err)
	_, err = s.handler.Benefits.Confirm(ctx, "cus_demo_hold", mustDecimal(t, "30"), benefits.Actor{ID: "emp-7", Name: "Sam Staff", Type: benefits.ActorEmployee})
	require.NoError(t, err)

	// WHEN: The scenario is loaded again
	_, err = loader.Load(ctx, "pending-hold")
	require.NoError(t, err)

	// THEN: The ledger is back at the scenario values
	credits, err := s.handler.Benefits.Credits(ctx, "cus_demo_hold")
	require.NoError(t, err)
	assert.Equal(t, "30", credits.Used.String())
	assert.Equal(t, "30", credits.Reserved.String())
	assert.Nil(t, credits.LastTransaction)
	assert.Equal(t, 4, credits.QualifyingPayments)
}

func TestScenario_LapsedMemberCannotRequest(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handler.Demo.Load(t.Context(), "lapsed-member")
	require.NoError(t, err)

	_, err = s.handler.Benefits.Request(t.Context(), "cus_demo_lapsed", 1, benefits.ProtectorRequest{
		Size:     "queen",
		Shipping: benefits.ShippingAddress{Line1: "1 Main St", City: "Springfield", PostalCode: "62701"},
	})

	assert.ErrorIs(t, err, benefits.ErrInactiveSubscription)
}
