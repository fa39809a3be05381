package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokens_IssueAndVerify(t *testing.T) {
	tokens := NewTokens(testSecret, "portal")

	raw, expires, err := tokens.Issue(Claims{CustomerID: "cus_1", Email: "mia@example.com", Role: RoleCustomer}, CustomerTokenTTL)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(CustomerTokenTTL), expires, time.Minute)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", claims.CustomerID)
	assert.Equal(t, "cus_1", claims.Subject)
	assert.Equal(t, RoleCustomer, claims.Role)
	assert.True(t, claims.HasRole(RoleEmployee, RoleCustomer))
	assert.False(t, claims.HasRole(RoleSuperadmin))
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens(testSecret, "portal")
	issued := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	raw, _, err := tokens.Issue(Claims{EmployeeID: "emp-7", Role: RoleEmployee}, StaffTokenTTL)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(StaffTokenTTL + time.Minute) }
	_, err = tokens.Verify(raw)

	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokens_Rejected(t *testing.T) {
	tokens := NewTokens(testSecret, "portal")
	good, _, err := tokens.Issue(Claims{Role: RoleEmployee, EmployeeID: "emp-7"}, time.Hour)
	require.NoError(t, err)

	otherSecret := NewTokens("ffffffffffffffffffffffffffffffff", "portal")
	forged, _, err := otherSecret.Issue(Claims{Role: RoleSuperadmin}, time.Hour)
	require.NoError(t, err)

	otherIssuer := NewTokens(testSecret, "someone-else")
	foreign, _, err := otherIssuer.Issue(Claims{Role: RoleEmployee}, time.Hour)
	require.NoError(t, err)

	unknownRole, _, err := tokens.Issue(Claims{Role: "owner"}, time.Hour)
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             RoleEmployee,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "portal"},
	})
	noExpiryRaw, err := noExpiry.SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"tampered":     good + "x",
		"wrong secret": forged,
		"wrong issuer": foreign,
		"unknown role": unknownRole,
		"no expiry":    noExpiryRaw,
	} {
		_, err := tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrUnauthenticated, name)
	}
}

func TestClaims_Actor(t *testing.T) {
	emp := Claims{Role: RoleEmployee, EmployeeID: "emp-7", Name: "Sam"}
	assert.Equal(t, "emp-7", emp.Actor().ID)
	assert.Equal(t, "employee", string(emp.Actor().Type))

	admin := Claims{Role: RoleSuperadmin, EmployeeID: "adm-1", Name: "Ops"}
	assert.Equal(t, "superadmin", string(admin.Actor().Type))

	member := Claims{Role: RoleCustomer, CustomerID: "cus_1"}
	assert.Equal(t, "cus_1", member.Actor().ID)
	assert.Equal(t, "member", string(member.Actor().Type))
}

func TestParseEmployees(t *testing.T) {
	d, err := ParseEmployees("emp-7:s3cret:Sam Staff, emp-8:pw2 ,")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"emp-7", "emp-8"}, d.IDs())

	emp, ok := d.Authenticate("emp-7", "s3cret")
	assert.True(t, ok)
	assert.Equal(t, "Sam Staff", emp.Name)

	emp, ok = d.Authenticate("emp-8", "pw2")
	assert.True(t, ok)
	assert.Equal(t, "emp-8", emp.Name, "name defaults to id")

	_, ok = d.Authenticate("emp-7", "wrong")
	assert.False(t, ok)
	_, ok = d.Authenticate("emp-9", "s3cret")
	assert.False(t, ok)

	_, err = ParseEmployees("emp-7")
	assert.Error(t, err)
	_, err = ParseEmployees("emp-7:a,emp-7:b")
	assert.Error(t, err)

	empty, err := ParseEmployees("")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
}

func TestPasswords(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("short"), ErrInvalidInput)
	require.NoError(t, ValidatePassword("long-enough"))

	hash, err := HashPassword("long-enough")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("long-enough", hash))
	assert.False(t, CheckPasswordHash("wrong-password", hash))
}
