package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/elitesleep/portal/auth"
	"github.com/elitesleep/portal/benefits"
	"github.com/elitesleep/portal/coupons"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// errorMapping pairs a sentinel with its HTTP status and code.
type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{auth.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{auth.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{benefits.ErrValidation, http.StatusBadRequest, "validation_error"},
	{benefits.ErrCustomerNotFound, http.StatusNotFound, "not_found"},
	{benefits.ErrInsufficientCredits, http.StatusBadRequest, "insufficient_credits"},
	{benefits.ErrAmountMismatch, http.StatusBadRequest, "amount_mismatch"},
	{benefits.ErrAlreadyClaimed, http.StatusBadRequest, "already_claimed"},
	{benefits.ErrInactiveSubscription, http.StatusBadRequest, "inactive_subscription"},
	{benefits.ErrInsufficientCashback, http.StatusBadRequest, "insufficient_cashback"},
	{benefits.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{benefits.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{benefits.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
	{coupons.ErrInvalid, http.StatusBadRequest, "validation_error"},
	{coupons.ErrNotFound, http.StatusNotFound, "not_found"},
	{coupons.ErrDuplicateCode, http.StatusConflict, "duplicate_code"},
}

// writeServiceError maps a domain error to a response. Unmapped errors are
// logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			message := err.Error()
			if m.status == http.StatusServiceUnavailable {
				message = "payment provider unavailable"
			}
			writeError(w, m.status, m.code, message)
			return
		}
	}

	zerolog.Ctx(r.Context()).Error().Err(err).
		Str("path", r.URL.Path).
		Msg("Unhandled error in API handler")
	writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
