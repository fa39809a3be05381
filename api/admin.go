package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/elitesleep/portal/benefits"
)

// =============================================================================
// COUPON HANDLERS (superadmin)
// =============================================================================

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.Coupons.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	dtos := make([]CouponDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, toCouponDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Coupons.Create(r.Context(), req.toInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponDTO(c))
}

func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Coupons.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponDTO(c))
}

func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Coupons.Update(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponDTO(c))
}

func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.Coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateCoupon is public: checkout pages call it before payment.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Coupons.Validate(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := ValidateCouponResponse{Valid: res.Valid, Reason: res.Reason, Discount: res.Discount}
	if res.Valid && res.Coupon != nil {
		resp.Code = res.Coupon.Code
		resp.Type = string(res.Coupon.Type)
		resp.Value = res.Coupon.Value
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// LEDGER ADMINISTRATION (superadmin)
// =============================================================================

// SetProtectorStatus records shipping progress for a claimed slot.
func (h *Handler) SetProtectorStatus(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req ProtectorStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.Benefits.SetProtectorStatus(r.Context(), chi.URLParam(r, "id"), slot, benefits.ProtectorStatus(req.Status))
	recordLedgerOp("protector_status", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProtectorDTO(view))
}

// ResetCustomer clears ledger keys by scope.
func (h *Handler) ResetCustomer(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scopes, err := benefits.ParseResetScopes(req.Scopes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	customerID := chi.URLParam(r, "id")
	_, err = h.Benefits.Reset(r.Context(), customerID, scopes...)
	recordLedgerOp("reset", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	a := actor(r)
	zerolog.Ctx(r.Context()).Info().
		Str("customer_id", customerID).
		Strs("scopes", req.Scopes).
		Str("admin_id", a.ID).
		Msg("Ledger reset")
	writeJSON(w, http.StatusOK, ResetResponse{CustomerID: customerID, Scopes: req.Scopes})
}
