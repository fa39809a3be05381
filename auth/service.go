/*
Package auth handles member, employee and superadmin authentication.

PRINCIPALS:
  customer:   registered against an existing provider customer, bcrypt
              password in the users table, token TTL 7 days.
  employee:   static credentials from EMPLOYEES, token TTL 12 hours.
  superadmin: bcrypt password in the superadmins table, created from the
              CLI, token TTL 12 hours.

All three receive the same HS256 bearer token shape (see Claims). The HTTP
layer verifies it and enforces roles per route group.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elitesleep/portal/benefits"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// User is a registered member login.
type User struct {
	ID           string
	Email        string
	CustomerID   string
	PasswordHash string
	CreatedAt    time.Time
}

// Superadmin is an operator login.
type Superadmin struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists member and superadmin logins.
// Lookups return ErrUserNotFound; creates return ErrEmailTaken on conflict.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateSuperadmin(ctx context.Context, a Superadmin) error
	GetSuperadminByEmail(ctx context.Context, email string) (*Superadmin, error)
}

// CustomerFinder resolves a registering email to a provider customer.
type CustomerFinder interface {
	FindCustomerByEmail(ctx context.Context, email string) (*benefits.Customer, error)
}

// Session is what a successful login returns.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Claims    Claims
}

type Service struct {
	Users     UserStore
	Customers CustomerFinder
	Employees *Directory
	Tokens    *Tokens
}

func NewService(users UserStore, customers CustomerFinder, employees *Directory, tokens *Tokens) *Service {
	if employees == nil {
		employees = &Directory{byID: map[string]Employee{}}
	}
	return &Service{Users: users, Customers: customers, Employees: employees, Tokens: tokens}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	return email, nil
}

// Register creates a member login for an existing provider customer.
func (s *Service) Register(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	customer, err := s.Customers.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		CustomerID:   customer.ID,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.customerSession(user, customer.Name)
}

// Login checks a member's password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.customerSession(*user, "")
}

func (s *Service) customerSession(u User, name string) (*Session, error) {
	return s.issue(Claims{
		CustomerID: u.CustomerID,
		Email:      u.Email,
		Role:       RoleCustomer,
		Name:       name,
	}, CustomerTokenTTL)
}

// EmployeeLogin checks static employee credentials.
func (s *Service) EmployeeLogin(employeeID, password string) (*Session, error) {
	emp, ok := s.Employees.Authenticate(strings.TrimSpace(employeeID), password)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.issue(Claims{
		Role:       RoleEmployee,
		EmployeeID: emp.ID,
		Name:       emp.Name,
	}, StaffTokenTTL)
}

// AdminLogin checks a superadmin's password.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	admin, err := s.Users.GetSuperadminByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPasswordHash(password, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(Claims{
		Email:      admin.Email,
		Role:       RoleSuperadmin,
		EmployeeID: admin.ID,
		Name:       admin.Name,
	}, StaffTokenTTL)
}

// CreateSuperadmin stores a new superadmin login.
func (s *Service) CreateSuperadmin(ctx context.Context, email, name, password string) (*Superadmin, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := Superadmin{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if admin.Name == "" {
		admin.Name = email
	}
	if err := s.Users.CreateSuperadmin(ctx, admin); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (s *Service) issue(c Claims, ttl time.Duration) (*Session, error) {
	token, expires, err := s.Tokens.Issue(c, ttl)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, Claims: c}, nil
}

// Actor converts staff claims into the actor recorded on ledger entries.
func (c *Claims) Actor() benefits.Actor {
	switch c.Role {
	case RoleSuperadmin:
		return benefits.Actor{ID: c.EmployeeID, Name: c.Name, Type: benefits.ActorSuperadmin}
	case RoleEmployee:
		return benefits.Actor{ID: c.EmployeeID, Name: c.Name, Type: benefits.ActorEmployee}
	default:
		return benefits.Actor{ID: c.CustomerID, Name: c.Name, Type: benefits.ActorMember}
	}
}
