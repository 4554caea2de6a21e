package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vpportal/vpportal/backend/internal/setup"
	mw "github.com/vpportal/vpportal/shared/middleware"
	"github.com/vpportal/vpportal/shared/middleware/metrics"
	rl "github.com/vpportal/vpportal/shared/middleware/ratelimiter"
)

// Limiters are shared by every router built from them so tests can start
// from empty buckets.
type Limiters struct {
	EmailSending *rl.UserRateLimiter
	OTPCheck     *rl.UserRateLimiter
	Login        *rl.UserRateLimiter
	PerUser      *rl.UserRateLimiter
}

func DefaultLimiters() *Limiters {
	return &Limiters{
		EmailSending: rl.New(rl.Every(5, 10*time.Minute), 3, time.Hour),
		OTPCheck:     rl.New(rl.Every(5, 10*time.Minute), 5, time.Hour),
		Login:        rl.New(rl.Every(10, time.Minute), 5, time.Hour),
		PerUser:      rl.New(20, 40, time.Hour),
	}
}

func (l *Limiters) Stop() {
	l.EmailSending.Stop()
	l.OTPCheck.Stop()
	l.Login.Stop()
	l.PerUser.Stop()
}

// New creates the chi router with all routes.
// Limiters applied with Use count all endpoints of that group together.
func New(deps *setup.Dependencies, limiters *Limiters) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	// setup CORS for the dashboard
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// JSON API only, no scripts or styles needed
	r.Use(mw.SecurityHeaders(deps.Config.Public.HTTPS))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Endpoints that send email
			r.Group(func(r chi.Router) {
				r.Use(mw.LimitByIpAndEmail("email_sending", limiters.EmailSending))
				r.Post("/register", h.Register)
				r.Post("/resend-otp", h.ResendOTP)
				r.Post("/forgot-password", h.ForgotPassword)
			})

			// OTP and reset token checks, strict to slow down guessing
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit("otp_check", limiters.OTPCheck, mw.GetIP))
				r.With(mw.RateLimit("otp_check_email", limiters.OTPCheck, mw.GetEmailFromBody)).Post("/verify-email", h.VerifyEmail)
				r.Post("/reset-password/{token}", h.ResetPassword)
			})

			r.With(mw.RateLimit("login", limiters.Login, mw.GetIP)).Post("/login", h.Login)
		})

		// Logged-in user routes
		r.Group(func(r chi.Router) {
			r.Use(authMw.NeedAuth())
			r.Use(mw.RateLimit("per_user", limiters.PerUser, mw.GetUserIDFromContext))

			r.Get("/users/me", h.Me)
			r.Get("/requests/me", h.MyRequests)
			r.Post("/requests", h.CreateRequest)
			r.Get("/requests/{id}", h.GetRequest)
			r.Put("/requests/{id}", h.UpdateRequest)
		})
	})

	return r
}
