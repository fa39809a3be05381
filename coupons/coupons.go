/*
Package coupons manages discount codes.

Codes are stored upper-cased and are unique. A coupon is usable while it is
active, not past its expiry, and (when MaxUses > 0) used fewer than MaxUses
times. Validate never mutates usage counts.
*/
package coupons

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("coupon not found")
	ErrDuplicateCode = errors.New("coupon code already exists")
	ErrInvalid       = errors.New("invalid coupon")
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Coupon struct {
	ID        string
	Code      string
	Type      DiscountType
	Value     decimal.Decimal
	MaxUses   int // 0 = unlimited
	TimesUsed int
	ExpiresAt *time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists coupons. Get* return ErrNotFound; Create/Update return
// ErrDuplicateCode when the code is taken.
type Store interface {
	CreateCoupon(ctx context.Context, c Coupon) error
	GetCoupon(ctx context.Context, id string) (*Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*Coupon, error)
	ListCoupons(ctx context.Context) ([]Coupon, error)
	UpdateCoupon(ctx context.Context, c Coupon) error
	DeleteCoupon(ctx context.Context, id string) error
}

// Input is the editable part of a coupon.
type Input struct {
	Code      string
	Type      DiscountType
	Value     decimal.Decimal
	MaxUses   int
	ExpiresAt *time.Time
	Active    bool
}

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

var hundred = decimal.NewFromInt(100)

// NormalizeCode trims and upper-cases a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (in *Input) validate() error {
	in.Code = NormalizeCode(in.Code)
	if !codePattern.MatchString(in.Code) {
		return fmt.Errorf("%w: code must be 3-32 characters of A-Z, 0-9, - or _", ErrInvalid)
	}
	switch in.Type {
	case DiscountPercent:
		if !in.Value.IsPositive() || in.Value.GreaterThan(hundred) {
			return fmt.Errorf("%w: percent value must be in (0, 100]", ErrInvalid)
		}
	case DiscountFixed:
		if !in.Value.IsPositive() {
			return fmt.Errorf("%w: fixed value must be positive", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: type must be percent or fixed", ErrInvalid)
	}
	if in.MaxUses < 0 {
		return fmt.Errorf("%w: maxUses must not be negative", ErrInvalid)
	}
	return nil
}

type Service struct {
	Store Store
	Now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, in Input) (*Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.Now()
	c := Coupon{
		ID:        uuid.NewString(),
		Code:      in.Code,
		Type:      in.Type,
		Value:     in.Value,
		MaxUses:   in.MaxUses,
		ExpiresAt: in.ExpiresAt,
		Active:    in.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Coupon, error) {
	return s.Store.GetCoupon(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.Store.ListCoupons(ctx)
}

// Update replaces the editable fields. Usage counts are preserved.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.Store.GetCoupon(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Code = in.Code
	c.Type = in.Type
	c.Value = in.Value
	c.MaxUses = in.MaxUses
	c.ExpiresAt = in.ExpiresAt
	c.Active = in.Active
	c.UpdatedAt = s.Now()
	if err := s.Store.UpdateCoupon(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Store.DeleteCoupon(ctx, id)
}

// Validation is the outcome of checking a code at checkout.
type Validation struct {
	Valid    bool
	Reason   string
	Coupon   *Coupon
	Discount decimal.Decimal // for the given order amount, zero when none given
}

// Validate checks whether code is usable. An unknown code is not an error;
// it yields Valid=false.
func (s *Service) Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (Validation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Validation{}, fmt.Errorf("%w: code is required", ErrInvalid)
	}
	c, err := s.Store.GetCouponByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Validation{Reason: "unknown code"}, nil
	}
	if err != nil {
		return Validation{}, err
	}

	if reason := c.unusableReason(s.Now()); reason != "" {
		return Validation{Reason: reason, Coupon: c}, nil
	}
	return Validation{Valid: true, Coupon: c, Discount: c.DiscountFor(orderAmount)}, nil
}

func (c *Coupon) unusableReason(now time.Time) string {
	switch {
	case !c.Active:
		return "coupon is inactive"
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return "coupon has expired"
	case c.MaxUses > 0 && c.TimesUsed >= c.MaxUses:
		return "coupon usage limit reached"
	}
	return ""
}

// DiscountFor returns the discount on amount, never more than amount.
func (c *Coupon) DiscountFor(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch c.Type {
	case DiscountPercent:
		d = amount.Mul(c.Value).Div(hundred).Round(2)
	default:
		d = c.Value
	}
	return decimal.Min(d, amount)
}
