/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address from proxy headers
  3. requestLogger: zerolog access log, panic recovery, HTTP metrics
  4. CORS:          Cross-origin requests for the portal front end

ROUTE GROUPS:
  /healthz, /metrics         Operations
  /api/auth, .../login       Public login and registration
  /api/me/*                  Member (customer token)
  /api/employee/*            Store staff (employee or superadmin token)
  /api/admin/*               Superadmin
  /api/coupons/validate      Public
  /api/webhooks/stripe       Stripe (signature verified)
  /api/dev/*                 Demo scenarios (DEMO_MODE only)
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elitesleep/portal/auth"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Tokens         *auth.Tokens
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	requireAuth := authenticate(opts.Tokens)

	r.Route("/api", func(r chi.Router) {
		// Public authentication
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/employee/login", h.EmployeeLogin)
		r.Post("/admin/login", h.AdminLogin)

		// Public coupons and provider callbacks
		r.Post("/coupons/validate", h.ValidateCoupon)
		if h.Webhooks != nil {
			r.Post("/webhooks/stripe", h.Webhooks.ServeHTTP)
		}

		// Member routes
		r.Route("/me", func(r chi.Router) {
			r.Use(requireAuth, RequireRole(auth.RoleCustomer))
			r.Get("/credits", h.MyCredits)
			r.Post("/credits/reserve", h.ReserveCredits)
			r.Get("/cashback", h.MyCashback)
			r.Get("/protectors", h.MyProtectors)
			r.Post("/protectors/{slot}/claim", h.ClaimProtector)
			r.Post("/protectors/{slot}/request", h.RequestProtector)
			r.Get("/summary", h.MySummary)
		})

		// Store staff routes
		r.Route("/employee/customers", func(r chi.Router) {
			r.Use(requireAuth, RequireRole(auth.RoleEmployee, auth.RoleSuperadmin))
			r.Get("/", h.LookupCustomer)
			r.Get("/{id}/credits", h.CustomerCredits)
			r.Post("/{id}/credits/confirm", h.ConfirmCredits)
			r.Post("/{id}/cashback", h.RecordCashback)
		})

		// Superadmin routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, RequireRole(auth.RoleSuperadmin))
			r.Route("/admin/coupons", func(r chi.Router) {
				r.Get("/", h.ListCoupons)
				r.Post("/", h.CreateCoupon)
				r.Get("/{id}", h.GetCoupon)
				r.Put("/{id}", h.UpdateCoupon)
				r.Delete("/{id}", h.DeleteCoupon)
			})
			r.Put("/admin/customers/{id}/protectors/{slot}/status", h.SetProtectorStatus)
			r.Post("/admin/customers/{id}/reset", h.ResetCustomer)
		})

		// Demo scenarios
		if h.Demo != nil {
			r.Route("/dev/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
