package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/elitesleep/portal/benefits"
	"github.com/elitesleep/portal/metrics"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// EventRecorder remembers handled provider event ids.
type EventRecorder interface {
	// MarkEventProcessed returns false if the id was already recorded.
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

// WebhookHandler verifies and dispatches Stripe webhook events.
type WebhookHandler struct {
	secret   string
	benefits *benefits.Service
	events   EventRecorder
}

func NewWebhookHandler(secret string, svc *benefits.Service, events EventRecorder) *WebhookHandler {
	return &WebhookHandler{secret: secret, benefits: svc, events: events}
}

// Minimal event payloads; only the fields read here are decoded.
type invoicePayload struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	AmountPaid int64  `json:"amount_paid"`
	Parent     *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (p invoicePayload) subscriptionID() string {
	if p.Parent != nil && p.Parent.SubscriptionDetails != nil {
		return p.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

type subscriptionPayload struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

// ServeHTTP verifies the Stripe signature and dispatches the event.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	eventType := "unknown"
	result := "ok"
	defer func() {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
	}()

	if strings.TrimSpace(h.secret) == "" {
		result = "unconfigured"
		writeError(w, http.StatusServiceUnavailable, "provider_unavailable", "webhook secret not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		result = "bad_request"
		writeError(w, http.StatusBadRequest, "validation_error", "failed to read request body")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		result = "bad_signature"
		writeError(w, http.StatusBadRequest, "validation_error", "missing Stripe signature")
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		result = "bad_signature"
		writeError(w, http.StatusBadRequest, "validation_error", "invalid Stripe signature")
		return
	}
	eventType = string(event.Type)

	if h.events != nil {
		fresh, err := h.events.MarkEventProcessed(r.Context(), event.ID, eventType)
		if err != nil {
			result = "error"
			writeServiceError(w, r, err)
			return
		}
		if !fresh {
			result = "duplicate"
			logger.Debug().Str("event_id", event.ID).Msg("Stripe webhook redelivery ignored")
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	if err := h.handleEvent(r.Context(), &event); err != nil {
		logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("type", eventType).
			Msg("Stripe webhook processing failed")
		if h.events != nil {
			if ferr := h.events.ForgetEvent(r.Context(), event.ID); ferr != nil {
				logger.Warn().Err(ferr).Str("event_id", event.ID).Msg("Failed to release webhook event for retry")
			}
		}
		result = "error"
		writeError(w, http.StatusInternalServerError, "internal_error", "processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event *stripelib.Event) error {
	logger := zerolog.Ctx(ctx)

	switch event.Type {
	case "invoice.paid", "invoice.payment_succeeded":
		var inv invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		qualifies := benefits.Invoice{SubscriptionID: inv.subscriptionID()}.Qualifies()
		logger.Info().
			Str("event_id", event.ID).
			Str("customer_id", inv.Customer).
			Str("invoice_id", inv.ID).
			Int64("amount_paid", inv.AmountPaid).
			Bool("earns_credit", qualifies).
			Msg("Paid invoice received")
		if qualifies && inv.Customer != "" {
			metrics.LedgerOperationsTotal.WithLabelValues("credit_earned", "ok").Inc()
		}
		return nil

	case "customer.subscription.created":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		logger.Info().
			Str("customer_id", sub.Customer).
			Str("subscription_id", sub.ID).
			Str("status", sub.Status).
			Msg("Subscription created")
		if sub.Customer == "" {
			return nil
		}
		return h.benefits.EnsureRecord(ctx, sub.Customer)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		logger.Info().
			Str("type", string(event.Type)).
			Str("customer_id", sub.Customer).
			Str("subscription_id", sub.ID).
			Str("status", sub.Status).
			Msg("Subscription changed")
		return nil

	default:
		logger.Debug().
			Str("type", string(event.Type)).
			Str("event_id", event.ID).
			Msg("Stripe webhook ignored (unhandled type)")
		return nil
	}
}
