/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  JSON request and response shapes. Field names are camelCase to match the
  portal front end. Money and credit amounts are decimal strings.

CONVENTIONS:
  - Timestamps: RFC3339 in UTC
  - Omit empty optional fields
  - Never expose password hashes or raw metadata
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/elitesleep/portal/auth"
	"github.com/elitesleep/portal/benefits"
	"github.com/elitesleep/portal/coupons"
)

// =============================================================================
// AUTH
// =============================================================================

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmployeeLoginRequest struct {
	EmployeeID string `json:"employeeId"`
	Password   string `json:"password"`
}

type SessionDTO struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Role       auth.Role `json:"role"`
	CustomerID string    `json:"customerId,omitempty"`
	Email      string    `json:"email,omitempty"`
	EmployeeID string    `json:"employeeId,omitempty"`
	Name       string    `json:"name,omitempty"`
}

func toSessionDTO(s *auth.Session) SessionDTO {
	return SessionDTO{
		Token:      s.Token,
		ExpiresAt:  s.ExpiresAt,
		Role:       s.Claims.Role,
		CustomerID: s.Claims.CustomerID,
		Email:      s.Claims.Email,
		EmployeeID: s.Claims.EmployeeID,
		Name:       s.Claims.Name,
	}
}

// =============================================================================
// CREDITS
// =============================================================================

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransactionDTO struct {
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Employee   string          `json:"employee"`
	EmployeeID string          `json:"employeeId"`
	Type       string          `json:"type"`
}

type CreditsDTO struct {
	CustomerID         string          `json:"customerId"`
	QualifyingPayments int             `json:"qualifyingPayments"`
	TotalEarned        decimal.Decimal `json:"totalEarned"`
	Used               decimal.Decimal `json:"used"`
	Reserved           decimal.Decimal `json:"reserved"`
	Available          decimal.Decimal `json:"available"`
	ReservationDate    *time.Time      `json:"reservationDate,omitempty"`
	ReservationExpires *time.Time      `json:"reservationExpires,omitempty"`
	ReservationStale   bool            `json:"reservationStale"`
	LastTransaction    *TransactionDTO `json:"lastTransaction,omitempty"`
}

func toCreditsDTO(s benefits.CreditSummary) CreditsDTO {
	dto := CreditsDTO{
		CustomerID:         s.CustomerID,
		QualifyingPayments: s.QualifyingPayments,
		TotalEarned:        s.TotalEarned,
		Used:               s.Used,
		Reserved:           s.Reserved,
		Available:          s.Available,
		ReservationDate:    s.ReservationDate,
		ReservationExpires: s.ReservationExpires,
		ReservationStale:   s.ReservationStale,
	}
	if t := s.LastTransaction; t != nil {
		dto.LastTransaction = &TransactionDTO{
			Amount:     t.Amount,
			Date:       t.Date,
			Employee:   t.Employee,
			EmployeeID: t.EmployeeID,
			Type:       t.Type,
		}
	}
	return dto
}

// =============================================================================
// CASHBACK
// =============================================================================

type CashbackRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Cashback    decimal.Decimal `json:"cashback"`
	Description string          `json:"description"`
	Type        string          `json:"type"` // earned | used
}

type HistoryEntryDTO struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Cashback    decimal.Decimal `json:"cashback"`
	Description string          `json:"description"`
	Employee    string          `json:"employee"`
	Type        string          `json:"type"`
}

type CashbackDTO struct {
	Balance     decimal.Decimal   `json:"balance"`
	TotalEarned decimal.Decimal   `json:"totalEarned"`
	TotalUsed   decimal.Decimal   `json:"totalUsed"`
	History     []HistoryEntryDTO `json:"history"`
}

func toCashbackDTO(s benefits.CashbackSummary) CashbackDTO {
	dto := CashbackDTO{
		Balance:     s.Balance,
		TotalEarned: s.TotalEarned,
		TotalUsed:   s.TotalUsed,
		History:     make([]HistoryEntryDTO, 0, len(s.History)),
	}
	for _, e := range s.History {
		dto.History = append(dto.History, HistoryEntryDTO{
			ID:          e.ID,
			Date:        e.Date,
			Amount:      e.Amount,
			Cashback:    e.Cashback,
			Description: e.Description,
			Employee:    e.Employee,
			Type:        string(e.Type),
		})
	}
	return dto
}

// =============================================================================
// PROTECTORS
// =============================================================================

type ProtectorRequestDTO struct {
	Size     string                   `json:"size"`
	Reason   string                   `json:"reason"`
	Shipping benefits.ShippingAddress `json:"shipping"`
}

type ProtectorStatusRequest struct {
	Status string `json:"status"`
}

type ProtectorDTO struct {
	Slot     int                       `json:"slot"`
	Used     bool                      `json:"used"`
	Status   string                    `json:"status"`
	Date     *time.Time                `json:"date,omitempty"`
	Order    string                    `json:"orderNumber,omitempty"`
	Size     string                    `json:"size,omitempty"`
	Reason   string                    `json:"reason,omitempty"`
	Delivery *time.Time                `json:"estimatedDelivery,omitempty"`
	Shipping *benefits.ShippingAddress `json:"shipping,omitempty"`
}

type ProtectorsDTO struct {
	Protectors []ProtectorDTO `json:"protectors"`
	Remaining  int            `json:"remaining"`
}

func toProtectorDTO(v benefits.ProtectorView) ProtectorDTO {
	return ProtectorDTO{
		Slot:     v.Slot,
		Used:     v.Used,
		Status:   string(v.Status),
		Date:     v.Date,
		Order:    v.Order,
		Size:     v.Size,
		Reason:   v.Reason,
		Delivery: v.Delivery,
		Shipping: v.Shipping,
	}
}

func toProtectorsDTO(s benefits.ProtectorSummary) ProtectorsDTO {
	dto := ProtectorsDTO{Protectors: make([]ProtectorDTO, 0, len(s.Slots)), Remaining: s.Remaining}
	for _, v := range s.Slots {
		dto.Protectors = append(dto.Protectors, toProtectorDTO(v))
	}
	return dto
}

// =============================================================================
// SUMMARY
// =============================================================================

type SummaryDTO struct {
	CustomerID         string        `json:"customerId"`
	Email              string        `json:"email"`
	Name               string        `json:"name"`
	SubscriptionStatus string        `json:"subscriptionStatus"`
	Active             bool          `json:"active"`
	Credits            CreditsDTO    `json:"credits"`
	Cashback           CashbackDTO   `json:"cashback"`
	Protectors         ProtectorsDTO `json:"protectors"`
}

func toSummaryDTO(s *benefits.MemberSummary) SummaryDTO {
	return SummaryDTO{
		CustomerID:         s.CustomerID,
		Email:              s.Email,
		Name:               s.Name,
		SubscriptionStatus: s.SubscriptionStatus,
		Active:             s.Active,
		Credits:            toCreditsDTO(s.Credits),
		Cashback:           toCashbackDTO(s.Cashback),
		Protectors:         toProtectorsDTO(s.Protectors),
	}
}

// =============================================================================
// ADMIN
// =============================================================================

type ResetRequest struct {
	Scopes []string `json:"scopes"`
}

type ResetResponse struct {
	CustomerID string   `json:"customerId"`
	Scopes     []string `json:"scopes"`
}

type CouponRequest struct {
	Code      string          `json:"code"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	MaxUses   int             `json:"maxUses"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Active    *bool           `json:"active,omitempty"`
}

func (req CouponRequest) toInput() coupons.Input {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return coupons.Input{
		Code:      req.Code,
		Type:      coupons.DiscountType(req.Type),
		Value:     req.Value,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt,
		Active:    active,
	}
}

type CouponDTO struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	MaxUses   int             `json:"maxUses"`
	TimesUsed int             `json:"timesUsed"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toCouponDTO(c *coupons.Coupon) CouponDTO {
	return CouponDTO{
		ID:        c.ID,
		Code:      c.Code,
		Type:      string(c.Type),
		Value:     c.Value,
		MaxUses:   c.MaxUses,
		TimesUsed: c.TimesUsed,
		ExpiresAt: c.ExpiresAt,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type ValidateCouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
}

type ValidateCouponResponse struct {
	Valid    bool            `json:"valid"`
	Reason   string          `json:"reason,omitempty"`
	Code     string          `json:"code,omitempty"`
	Type     string          `json:"type,omitempty"`
	Value    decimal.Decimal `json:"value"`
	Discount decimal.Decimal `json:"discount"`
}
