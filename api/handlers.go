/*
handlers.go - HTTP API handlers for the member benefits portal

PURPOSE:
  Exposes the benefit ledger, authentication and coupons over REST. Handles
  HTTP request/response and JSON, and delegates to the domain services.

ENDPOINTS:
  Auth (public):
    POST /api/auth/register         Member sign-up (existing provider customer)
    POST /api/auth/login            Member login
    POST /api/employee/login        Store employee login
    POST /api/admin/login           Superadmin login

  Member (role customer, own record only):
    GET  /api/me/credits
    POST /api/me/credits/reserve
    GET  /api/me/cashback
    GET  /api/me/protectors
    POST /api/me/protectors/{slot}/claim
    POST /api/me/protectors/{slot}/request
    GET  /api/me/summary

  Employee (role employee or superadmin):
    GET  /api/employee/customers?email=
    GET  /api/employee/customers/{id}/credits
    POST /api/employee/customers/{id}/credits/confirm
    POST /api/employee/customers/{id}/cashback

  Superadmin: see admin.go
  Public coupons and webhooks: see admin.go and webhook.go

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the acting principal from the token claims
  3. Call the domain service
  4. Serialize response, or map the error (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/elitesleep/portal/auth"
	"github.com/elitesleep/portal/benefits"
	"github.com/elitesleep/portal/coupons"
	"github.com/elitesleep/portal/metrics"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Benefits *benefits.Service
	Auth     *auth.Service
	Coupons  *coupons.Service
	Webhooks *WebhookHandler
	Demo     *ScenarioLoader // nil unless demo mode
}

func NewHandler(svc *benefits.Service, authSvc *auth.Service, couponSvc *coupons.Service) *Handler {
	return &Handler{Benefits: svc, Auth: authSvc, Coupons: couponSvc}
}

// decodeJSON reads a size-limited JSON body. It writes the 400 itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeError(w, http.StatusBadRequest, "validation_error", msg)
		return false
	}
	return true
}

func slotParam(r *http.Request) (int, error) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		return 0, &benefits.ValidationError{Field: "slot", Message: "must be a number"}
	}
	return slot, nil
}

// recordLedgerOp counts a benefit write for /metrics.
func recordLedgerOp(operation string, err error) {
	metrics.LedgerOperationsTotal.WithLabelValues(operation, metrics.Outcome(err)).Inc()
}

// memberID returns the customer id of the authenticated member.
func memberID(r *http.Request) string {
	if c := auth.ClaimsFrom(r.Context()); c != nil {
		return c.CustomerID
	}
	return ""
}

func actor(r *http.Request) benefits.Actor {
	if c := auth.ClaimsFrom(r.Context()); c != nil {
		return c.Actor()
	}
	return benefits.Actor{Type: benefits.ActorSystem}
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.Auth.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, benefits.ErrCustomerNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "No membership found for this email")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(session))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) EmployeeLogin(w http.ResponseWriter, r *http.Request) {
	var req EmployeeLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.Auth.EmployeeLogin(req.EmployeeID, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.Auth.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

func (h *Handler) MyCredits(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Benefits.Credits(r.Context(), memberID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditsDTO(summary))
}

// ReserveCredits places a hold on the member's own credits.
func (h *Handler) ReserveCredits(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := h.Benefits.Reserve(r.Context(), memberID(r), req.Amount)
	recordLedgerOp("reserve", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditsDTO(summary))
}

func (h *Handler) MyCashback(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Benefits.Cashback(r.Context(), memberID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCashbackDTO(summary))
}

func (h *Handler) MyProtectors(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Benefits.Protectors(r.Context(), memberID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProtectorsDTO(summary))
}

func (h *Handler) ClaimProtector(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := h.Benefits.Claim(r.Context(), memberID(r), slot)
	recordLedgerOp("protector_claim", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProtectorDTO(view))
}

func (h *Handler) RequestProtector(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req ProtectorRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.Benefits.Request(r.Context(), memberID(r), slot, benefits.ProtectorRequest{
		Size:     req.Size,
		Reason:   req.Reason,
		Shipping: req.Shipping,
	})
	recordLedgerOp("protector_request", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProtectorDTO(view))
}

func (h *Handler) MySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Benefits.Summary(r.Context(), memberID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// LookupCustomer finds a member by email for the in-store counter.
func (h *Handler) LookupCustomer(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "email query parameter is required")
		return
	}
	customer, err := h.Benefits.Billing.FindCustomerByEmail(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summary, err := h.Benefits.Summary(r.Context(), customer.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

func (h *Handler) CustomerCredits(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Benefits.Credits(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditsDTO(summary))
}

// ConfirmCredits converts a member's reservation into used credits.
func (h *Handler) ConfirmCredits(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := h.Benefits.Confirm(r.Context(), chi.URLParam(r, "id"), req.Amount, actor(r))
	recordLedgerOp("confirm", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditsDTO(summary))
}

func (h *Handler) RecordCashback(w http.ResponseWriter, r *http.Request) {
	var req CashbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := h.Benefits.RecordCashback(r.Context(), chi.URLParam(r, "id"), benefits.CashbackEntry{
		Amount:      req.Amount,
		Cashback:    req.Cashback,
		Description: req.Description,
		Type:        benefits.HistoryType(req.Type),
	}, actor(r))
	recordLedgerOp("cashback", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCashbackDTO(summary))
}
