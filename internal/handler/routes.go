package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"salon-loyalty-api/internal/metrics"
	"salon-loyalty-api/internal/middleware"
	"salon-loyalty-api/internal/tracing"
)

// RouterOptions configures the middleware stack around the API routes.
type RouterOptions struct {
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	Tracer         *tracing.Tracer
	AllowedOrigins []string
	// Limiter throttles the login, registration and check-in routes. Nil
	// disables rate limiting.
	Limiter *middleware.RateLimiter
}

// NewRouter mounts every API route on a chi router.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	limited := func(r chi.Router) chi.Router {
		if opts.Limiter == nil {
			return r
		}
		return r.With(middleware.RateLimit(opts.Limiter))
	}
	customerAuth := middleware.RequireAuth(h.service.AuthenticateCustomer, middleware.CustomerCookie)
	businessAuth := middleware.RequireAuth(h.service.AuthenticateBusiness, middleware.BusinessCookie)

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger)...)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing(opts.Tracer))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/customers", func(r chi.Router) {
		limited(r).Post("/register", h.RegisterCustomer)
		limited(r).Post("/login", h.LoginCustomer)

		r.Group(func(r chi.Router) {
			r.Use(customerAuth)
			r.Post("/logout", h.LogoutCustomer)
			r.Get("/profile", h.Profile)
			r.Put("/profile", h.UpdateProfile)
			limited(r).Post("/checkin", h.CheckIn)
			r.Get("/visits", h.Visits)
			r.Get("/rewards", h.AvailableRewards)
			r.Get("/rewards/claimed", h.ClaimedRewards)
			r.Post("/rewards/{rewardId}/redeem", h.RedeemReward)
		})
	})

	r.Route("/api/business", func(r chi.Router) {
		limited(r).Post("/login", h.LoginBusiness)

		r.Group(func(r chi.Router) {
			r.Use(businessAuth)
			r.Post("/logout", h.LogoutBusiness)
			r.Get("/dashboard", h.Dashboard)
			r.Get("/codes", h.CurrentCodes)
			r.Get("/customers", h.Customers)
			r.Delete("/customers/{customerId}", h.DeactivateCustomer)
			r.Get("/rewards", h.Rewards)
			r.Post("/rewards", h.CreateReward)
			r.Put("/rewards/{rewardId}", h.UpdateReward)
			r.Delete("/rewards/{rewardId}", h.DeleteReward)
			r.Put("/settings", h.UpdateSettings)
			r.Post("/award-points", h.AwardPoints)
		})
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", opts.Metrics.Handler())

	return r
}
