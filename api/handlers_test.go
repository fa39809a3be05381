package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitesleep/portal/auth"
	"github.com/elitesleep/portal/benefits"
	"github.com/elitesleep/portal/coupons"
	providermemory "github.com/elitesleep/portal/provider/memory"
	"github.com/elitesleep/portal/store/sqldb"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testSigningKey    = "0123456789abcdef0123456789abcdef"
	testWebhookSecret = "whsec_test_secret"
	adminEmail        = "ops@elitesleep.test"
	adminPassword     = "admin-secret-1"
)

type testServer struct {
	t        *testing.T
	srv      *httptest.Server
	db       *sqldb.Store
	provider *providermemory.Provider
	handler  *Handler
}

// newTestServer wires the full router over SQLite and the memory provider.
// cus_1 (mia@example.com) has four paid invoices and an active subscription.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sqldb.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := providermemory.New()
	p.AddCustomer(benefits.Customer{ID: "cus_1", Email: "mia@example.com", Name: "Mia Member"})
	p.AddPaidInvoices("cus_1", "sub_1", 4)
	p.AddSubscription("cus_1", benefits.Subscription{ID: "sub_1", Status: "active"})

	svc := benefits.NewService(benefits.NewMirroredStore(db, p), p, benefits.DefaultProgram())

	employees, err := auth.ParseEmployees("emp-7:counter-pass:Sam Staff")
	require.NoError(t, err)
	tokens := auth.NewTokens(testSigningKey, "portal")
	authSvc := auth.NewService(db, p, employees, tokens)
	_, err = authSvc.CreateSuperadmin(t.Context(), adminEmail, "Ops", adminPassword)
	require.NoError(t, err)

	h := NewHandler(svc, authSvc, coupons.NewService(db))
	h.Webhooks = NewWebhookHandler(testWebhookSecret, svc, db)
	h.Demo = NewScenarioLoader(p, benefits.NewMirroredStore(db, p))

	srv := httptest.NewServer(NewRouter(h, RouterOptions{Tokens: tokens, AllowedOrigins: []string{"*"}}))
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, db: db, provider: p, handler: h}
}

// do sends body as JSON and decodes a JSON response into out when non-nil.
func (s *testServer) do(method, path, token string, body any, out any) int {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(s.t.Context(), method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func mustDecimal(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func (s *testServer) memberToken() string {
	s.t.Helper()
	var session SessionDTO
	status := s.do("POST", "/api/auth/register", "", CredentialsRequest{Email: "mia@example.com", Password: "correct-horse"}, &session)
	require.Equal(s.t, http.StatusCreated, status)
	return session.Token
}

func (s *testServer) employeeToken() string {
	s.t.Helper()
	var session SessionDTO
	status := s.do("POST", "/api/employee/login", "", EmployeeLoginRequest{EmployeeID: "emp-7", Password: "counter-pass"}, &session)
	require.Equal(s.t, http.StatusOK, status)
	return session.Token
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	var session SessionDTO
	status := s.do("POST", "/api/admin/login", "", CredentialsRequest{Email: adminEmail, Password: adminPassword}, &session)
	require.Equal(s.t, http.StatusOK, status)
	return session.Token
}

// =============================================================================
// HEALTH AND AUTH
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, s.do("GET", "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	// GIVEN: A provider customer without a portal login
	s := newTestServer(t)

	// WHEN: They register
	var session SessionDTO
	status := s.do("POST", "/api/auth/register", "", CredentialsRequest{Email: "mia@example.com", Password: "correct-horse"}, &session)

	// THEN: A customer session is issued
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, auth.RoleCustomer, session.Role)
	assert.Equal(t, "cus_1", session.CustomerID)
	assert.NotEmpty(t, session.Token)

	// AND: Login works with the same password
	var again SessionDTO
	assert.Equal(t, http.StatusOK, s.do("POST", "/api/auth/login", "", CredentialsRequest{Email: "mia@example.com", Password: "correct-horse"}, &again))
	assert.Equal(t, "cus_1", again.CustomerID)

	// AND: A second registration conflicts
	var errResp ErrorResponse
	assert.Equal(t, http.StatusConflict, s.do("POST", "/api/auth/register", "", CredentialsRequest{Email: "mia@example.com", Password: "correct-horse"}, &errResp))
	assert.Equal(t, "email_taken", errResp.Code)
}

func TestRegister_UnknownEmail(t *testing.T) {
	s := newTestServer(t)

	var errResp ErrorResponse
	status := s.do("POST", "/api/auth/register", "", CredentialsRequest{Email: "stranger@example.com", Password: "correct-horse"}, &errResp)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errResp.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newTestServer(t)

	var errResp ErrorResponse
	status := s.do("POST", "/api/employee/login", "", EmployeeLoginRequest{EmployeeID: "emp-7", Password: "wrong"}, &errResp)

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_credentials", errResp.Code)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequestWithContext(t.Context(), "POST", s.srv.URL+"/api/auth/login", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", errResp.Code)
}

// =============================================================================
// ROLE CHECKS
// =============================================================================

func TestRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me/credits", "/api/employee/customers/cus_1/credits", "/api/admin/coupons"} {
		var errResp ErrorResponse
		assert.Equal(t, http.StatusUnauthorized, s.do("GET", path, "", nil, &errResp), path)
		assert.Equal(t, "unauthenticated", errResp.Code, path)
	}

	var errResp ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, s.do("GET", "/api/me/credits", "not-a-token", nil, &errResp))
}

func TestRoutes_RoleMismatch(t *testing.T) {
	s := newTestServer(t)
	member := s.memberToken()
	employee := s.employeeToken()

	var errResp ErrorResponse
	assert.Equal(t, http.StatusForbidden, s.do("GET", "/api/employee/customers/cus_1/credits", member, nil, &errResp))
	assert.Equal(t, "forbidden", errResp.Code)

	assert.Equal(t, http.StatusForbidden, s.do("GET", "/api/me/credits", employee, nil, &errResp))
	assert.Equal(t, http.StatusForbidden, s.do("GET", "/api/admin/coupons", employee, nil, &errResp))

	// Superadmins can use staff routes.
	var credits CreditsDTO
	assert.Equal(t, http.StatusOK, s.do("GET", "/api/employee/customers/cus_1/credits", s.adminToken(), nil, &credits))
	assert.Equal(t, "60", credits.TotalEarned.String())
}

// =============================================================================
// MEMBER AND EMPLOYEE FLOWS
// =============================================================================

func TestReserveAndConfirm(t *testing.T) {
	// GIVEN: A registered member with 60 earned credits
	s := newTestServer(t)
	member := s.memberToken()
	employee := s.employeeToken()

	var credits CreditsDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/me/credits", member, nil, &credits))
	assert.Equal(t, "60", credits.Available.String())
	assert.Equal(t, 4, credits.QualifyingPayments)

	// WHEN: The member reserves 45 credits
	require.Equal(t, http.StatusOK, s.do("POST", "/api/me/credits/reserve", member, map[string]any{"amount": "45"}, &credits))

	// THEN: The hold shows in the response
	assert.Equal(t, "45", credits.Reserved.String())
	assert.Equal(t, "15", credits.Available.String())
	assert.NotNil(t, credits.ReservationDate)
	assert.False(t, credits.ReservationStale)

	// WHEN: Reserving beyond what is available
	var errResp ErrorResponse
	status := s.do("POST", "/api/me/credits/reserve", member, map[string]any{"amount": "20"}, &errResp)

	// THEN: The request is refused
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "insufficient_credits", errResp.Code)

	// WHEN: The employee confirms the wrong amount
	status = s.do("POST", "/api/employee/customers/cus_1/credits/confirm", employee, map[string]any{"amount": "40"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "amount_mismatch", errResp.Code)

	// WHEN: The employee confirms the held amount
	require.Equal(t, http.StatusOK, s.do("POST", "/api/employee/customers/cus_1/credits/confirm", employee, map[string]any{"amount": "45"}, &credits))

	// THEN: Credits are used and the purchase is attributed to the employee
	assert.Equal(t, "45", credits.Used.String())
	assert.Equal(t, "0", credits.Reserved.String())
	assert.Nil(t, credits.ReservationDate)
	require.NotNil(t, credits.LastTransaction)
	assert.Equal(t, "Sam Staff", credits.LastTransaction.Employee)
	assert.Equal(t, "emp-7", credits.LastTransaction.EmployeeID)

	// AND: The SQL record and the provider mirror agree
	rec, err := s.db.Load(t.Context(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "45", rec.Metadata[benefits.KeyCreditsUsed])
	c, err := s.provider.GetCustomer(t.Context(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "45", c.Metadata[benefits.KeyCreditsUsed])
}

func TestReserve_InvalidAmount(t *testing.T) {
	s := newTestServer(t)
	member := s.memberToken()

	var errResp ErrorResponse
	status := s.do("POST", "/api/me/credits/reserve", member, map[string]any{"amount": "0"}, &errResp)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", errResp.Code)
}

func TestReserve_ProviderDownIsNotFatal(t *testing.T) {
	// GIVEN: The provider rejects metadata updates after the record is seeded
	s := newTestServer(t)
	member := s.memberToken()
	var credits CreditsDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/me/credits", member, nil, &credits))
	s.provider.FailUpdates = benefits.ErrProviderUnavailable

	// WHEN: The member reserves credits
	status := s.do("POST", "/api/me/credits/reserve", member, map[string]any{"amount": "15"}, &credits)

	// THEN: The SQL ledger commits and the mirror failure is only logged
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "15", credits.Reserved.String())
}

func TestCashbackFlow(t *testing.T) {
	s := newTestServer(t)
	member := s.memberToken()
	employee := s.employeeToken()

	var cashback CashbackDTO
	require.Equal(t, http.StatusOK, s.do("POST", "/api/employee/customers/cus_1/cashback", employee, CashbackRequest{
		Description: "Pillow set",
		Type:        "earned",
		Amount:      mustDecimal(t, "120"),
		Cashback:    mustDecimal(t, "12"),
	}, &cashback))
	assert.Equal(t, "12", cashback.Balance.String())

	var errResp ErrorResponse
	status := s.do("POST", "/api/employee/customers/cus_1/cashback", employee, CashbackRequest{
		Description: "Redeemed",
		Type:        "used",
		Cashback:    mustDecimal(t, "50"),
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "insufficient_cashback", errResp.Code)

	require.Equal(t, http.StatusOK, s.do("GET", "/api/me/cashback", member, nil, &cashback))
	require.Len(t, cashback.History, 1)
	assert.Equal(t, "Pillow set", cashback.History[0].Description)
	assert.Equal(t, "Sam Staff", cashback.History[0].Employee)
	assert.Equal(t, "12", cashback.TotalEarned.String())
}

func TestProtectorFlow(t *testing.T) {
	// GIVEN: A registered member with an active subscription
	s := newTestServer(t)
	member := s.memberToken()
	admin := s.adminToken()

	// WHEN: They request slot 1 with a shipping address
	var view ProtectorDTO
	require.Equal(t, http.StatusOK, s.do("POST", "/api/me/protectors/1/request", member, ProtectorRequestDTO{
		Size:   "queen",
		Reason: "stain",
		Shipping: benefits.ShippingAddress{
			Name: "Mia Member", Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701",
		},
	}, &view))

	// THEN: The slot is processing with an order number
	assert.True(t, view.Used)
	assert.Equal(t, "processing", view.Status)
	assert.Regexp(t, `^EP-[0-9A-F]{8}$`, view.Order)
	assert.NotNil(t, view.Delivery)

	// AND: Requesting it again is refused
	var errResp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/me/protectors/1/claim", member, nil, &errResp))
	assert.Equal(t, "already_claimed", errResp.Code)

	// WHEN: The admin ships it, then tries to move it back
	require.Equal(t, http.StatusOK, s.do("PUT", "/api/admin/customers/cus_1/protectors/1/status", admin, ProtectorStatusRequest{Status: "shipped"}, &view))
	assert.Equal(t, "shipped", view.Status)
	assert.Equal(t, http.StatusBadRequest, s.do("PUT", "/api/admin/customers/cus_1/protectors/1/status", admin, ProtectorStatusRequest{Status: "processing"}, &errResp))

	// THEN: The summary shows two slots remaining
	var protectors ProtectorsDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/me/protectors", member, nil, &protectors))
	assert.Equal(t, 2, protectors.Remaining)
	require.Len(t, protectors.Protectors, 3)
	assert.Equal(t, "shipped", protectors.Protectors[0].Status)
}

func TestProtector_BadSlot(t *testing.T) {
	s := newTestServer(t)
	member := s.memberToken()

	var errResp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/me/protectors/abc/claim", member, nil, &errResp))
	assert.Equal(t, "validation_error", errResp.Code)
	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/me/protectors/4/claim", member, nil, &errResp))
}

func TestProtector_InactiveSubscription(t *testing.T) {
	s := newTestServer(t)
	member := s.memberToken()
	s.provider.ResetBilling("cus_1")
	s.provider.AddSubscription("cus_1", benefits.Subscription{ID: "sub_1", Status: "canceled"})

	var errResp ErrorResponse
	status := s.do("POST", "/api/me/protectors/2/request", member, ProtectorRequestDTO{
		Size:     "king",
		Shipping: benefits.ShippingAddress{Line1: "1 Main St", City: "Springfield", PostalCode: "62701"},
	}, &errResp)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "inactive_subscription", errResp.Code)
}

func TestSummaryAndLookup(t *testing.T) {
	s := newTestServer(t)
	member := s.memberToken()
	employee := s.employeeToken()

	var summary SummaryDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/me/summary", member, nil, &summary))
	assert.Equal(t, "cus_1", summary.CustomerID)
	assert.Equal(t, "active", summary.SubscriptionStatus)
	assert.True(t, summary.Active)
	assert.Equal(t, 3, summary.Protectors.Remaining)

	var found SummaryDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/employee/customers/?email=mia@example.com", employee, nil, &found))
	assert.Equal(t, "cus_1", found.CustomerID)
	assert.Equal(t, "Mia Member", found.Name)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, s.do("GET", "/api/employee/customers/?email=nobody@example.com", employee, nil, &errResp))
	assert.Equal(t, http.StatusBadRequest, s.do("GET", "/api/employee/customers/", employee, nil, &errResp))
}

// =============================================================================
// ADMIN
// =============================================================================

func TestCouponAdminAndValidate(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	// GIVEN: A 15 percent coupon
	var created CouponDTO
	require.Equal(t, http.StatusCreated, s.do("POST", "/api/admin/coupons", admin, map[string]any{
		"code": " sleep15 ", "type": "percent", "value": "15",
	}, &created))
	assert.Equal(t, "SLEEP15", created.Code)
	assert.True(t, created.Active)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusConflict, s.do("POST", "/api/admin/coupons", admin, map[string]any{
		"code": "SLEEP15", "type": "fixed", "value": "5",
	}, &errResp))
	assert.Equal(t, "duplicate_code", errResp.Code)

	// WHEN: Checkout validates it without a token
	var res ValidateCouponResponse
	require.Equal(t, http.StatusOK, s.do("POST", "/api/coupons/validate", "", map[string]any{"code": "sleep15", "orderAmount": "200"}, &res))

	// THEN: The discount is computed
	assert.True(t, res.Valid)
	assert.Equal(t, "30", res.Discount.String())
	assert.Equal(t, "percent", res.Type)

	// WHEN: The coupon is deactivated
	require.Equal(t, http.StatusOK, s.do("PUT", "/api/admin/coupons/"+created.ID, admin, map[string]any{
		"code": "SLEEP15", "type": "percent", "value": "15", "active": false,
	}, &created))
	require.Equal(t, http.StatusOK, s.do("POST", "/api/coupons/validate", "", map[string]any{"code": "SLEEP15", "orderAmount": "200"}, &res))
	assert.False(t, res.Valid)
	assert.Equal(t, "coupon is inactive", res.Reason)

	// WHEN: It is deleted
	assert.Equal(t, http.StatusNoContent, s.do("DELETE", "/api/admin/coupons/"+created.ID, admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do("GET", "/api/admin/coupons/"+created.ID, admin, nil, &errResp))

	var list []CouponDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/admin/coupons", admin, nil, &list))
	assert.Empty(t, list)
}

func TestResetCustomer(t *testing.T) {
	// GIVEN: A member holding a reservation
	s := newTestServer(t)
	member := s.memberToken()
	admin := s.adminToken()
	var credits CreditsDTO
	require.Equal(t, http.StatusOK, s.do("POST", "/api/me/credits/reserve", member, map[string]any{"amount": "30"}, &credits))

	// WHEN: The admin resets the reservation scope
	var resp ResetResponse
	require.Equal(t, http.StatusOK, s.do("POST", "/api/admin/customers/cus_1/reset", admin, ResetRequest{Scopes: []string{"reservation"}}, &resp))
	assert.Equal(t, []string{"reservation"}, resp.Scopes)

	// THEN: The hold is gone
	require.Equal(t, http.StatusOK, s.do("GET", "/api/me/credits", member, nil, &credits))
	assert.Equal(t, "0", credits.Reserved.String())
	assert.Nil(t, credits.ReservationDate)

	// AND: Unknown scopes are rejected
	var errResp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/admin/customers/cus_1/reset", admin, ResetRequest{Scopes: []string{"everything"}}, &errResp))
	assert.Equal(t, "validation_error", errResp.Code)
}
