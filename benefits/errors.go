/*
errors.go - Centralized error types for the benefit ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps them to status codes with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation errors - Missing or out-of-range input (400)
  2. Business rule errors - Credits, reservations, protector slots (400)
  3. Lookup errors - Customer absent (404)
  4. Store errors - Version conflicts (409), provider down (503)

USAGE:
  if errors.Is(err, benefits.ErrInsufficientCredits) {
      var detail *benefits.InsufficientCreditsError
      errors.As(err, &detail)
  }

SEE ALSO:
  - api/errors.go: HTTP status mapping
*/
package benefits

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for missing or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrCustomerNotFound is returned when the provider has no such customer.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInsufficientCredits is returned when a reservation exceeds available credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAmountMismatch is returned when a confirmation does not equal the reserved total.
	ErrAmountMismatch = errors.New("amount does not match reservation")

	// ErrAlreadyClaimed is returned when a protector slot was already used.
	ErrAlreadyClaimed = errors.New("protector already claimed")

	// ErrInactiveSubscription is returned when a protector request has no active subscription.
	ErrInactiveSubscription = errors.New("no active subscription")

	// ErrInsufficientCashback is returned when redeeming more cashback than the balance.
	ErrInsufficientCashback = errors.New("insufficient cashback balance")

	// ErrInvalidTransition is returned when a protector status would move backwards.
	ErrInvalidTransition = errors.New("invalid protector status transition")

	// ErrConcurrentModification is returned when the record changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrProviderUnavailable is returned when the payment provider is not configured.
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// ErrAlreadyExists is returned when seeding a record that is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientCreditsError provides details about a credit shortage.
type InsufficientCreditsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: available %s, requested %s",
		e.Available, e.Requested)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// AmountMismatchError reports the reserved total the confirmation had to match.
type AmountMismatchError struct {
	Reserved decimal.Decimal
	Amount   decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount %s does not match reserved credits %s", e.Amount, e.Reserved)
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

// AlreadyClaimedError identifies the slot.
type AlreadyClaimedError struct {
	Slot int
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("protector %d has already been claimed", e.Slot)
}

func (e *AlreadyClaimedError) Unwrap() error { return ErrAlreadyClaimed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or a
// business rule, and should be reported to the caller as-is.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrInactiveSubscription) ||
		errors.Is(err, ErrInsufficientCashback) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing customer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}
