package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitesleep/portal/auth"
	"github.com/elitesleep/portal/benefits"
	providermemory "github.com/elitesleep/portal/provider/memory"
	"github.com/elitesleep/portal/store/sqldb"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestAuth(t *testing.T) *auth.Service {
	store, err := sqldb.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p := providermemory.New()
	p.AddCustomer(benefits.Customer{ID: "cus_1", Email: "Mia@Example.com", Name: "Mia Member"})

	employees, err := auth.ParseEmployees("emp-7:counter-pass:Sam Staff")
	require.NoError(t, err)

	return auth.NewService(store, p, employees, auth.NewTokens("0123456789abcdef0123456789abcdef", "portal"))
}

// =============================================================================
// MEMBERS
// =============================================================================

func TestRegisterThenLogin(t *testing.T) {
	// GIVEN: A provider customer with no portal login
	svc := newTestAuth(t)
	ctx := t.Context()

	// WHEN: They register with their billing email in any case
	session, err := svc.Register(ctx, " mia@EXAMPLE.com ", "correct-horse")

	// THEN: The login is linked to the provider customer
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "cus_1", session.Claims.CustomerID)
	assert.Equal(t, auth.RoleCustomer, session.Claims.Role)
	assert.Equal(t, "Mia Member", session.Claims.Name)

	claims, err := svc.Tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", claims.CustomerID)

	// AND: They can log in again, but not register twice
	again, err := svc.Login(ctx, "MIA@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", again.Claims.CustomerID)

	_, err = svc.Register(ctx, "mia@example.com", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestRegister_Rejections(t *testing.T) {
	svc := newTestAuth(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "stranger@example.com", "correct-horse")
	assert.ErrorIs(t, err, benefits.ErrCustomerNotFound)

	_, err = svc.Register(ctx, "mia@example.com", "short")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	_, err = svc.Register(ctx, "not-an-email", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestLogin_WrongPasswordOrUnknownEmail(t *testing.T) {
	svc := newTestAuth(t)
	ctx := t.Context()
	_, err := svc.Register(ctx, "mia@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "mia@example.com", "battery-staple")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// =============================================================================
// STAFF
// =============================================================================

func TestEmployeeLogin(t *testing.T) {
	svc := newTestAuth(t)

	session, err := svc.EmployeeLogin(" emp-7 ", "counter-pass")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEmployee, session.Claims.Role)
	assert.Equal(t, "emp-7", session.Claims.EmployeeID)
	assert.Equal(t, "Sam Staff", session.Claims.Name)

	_, err = svc.EmployeeLogin("emp-7", "nope")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSuperadmin_CreateAndLogin(t *testing.T) {
	svc := newTestAuth(t)
	ctx := t.Context()

	admin, err := svc.CreateSuperadmin(ctx, "Ops@Example.com", "", "operator-pass")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", admin.Email)
	assert.Equal(t, "ops@example.com", admin.Name, "name defaults to email")

	_, err = svc.CreateSuperadmin(ctx, "ops@example.com", "Ops", "operator-pass")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	session, err := svc.AdminLogin(ctx, "ops@example.com", "operator-pass")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSuperadmin, session.Claims.Role)
	assert.Equal(t, admin.ID, session.Claims.EmployeeID)

	_, err = svc.AdminLogin(ctx, "ops@example.com", "wrong-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestClaimsContext(t *testing.T) {
	assert.Nil(t, auth.ClaimsFrom(t.Context()))

	c := &auth.Claims{Role: auth.RoleEmployee}
	ctx := auth.WithClaims(t.Context(), c)
	assert.Same(t, c, auth.ClaimsFrom(ctx))
}
