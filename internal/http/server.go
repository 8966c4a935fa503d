package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mysubs/internal/auth"
	"mysubs/internal/cache"
	"mysubs/internal/fx"
	applog "mysubs/internal/log"
	"mysubs/internal/middleware/ratelimit"
	"mysubs/internal/middleware/security"
	"mysubs/internal/middleware/trace"
	"mysubs/internal/ports"
	"mysubs/internal/services"
)

// QuoteSource serves the current exchange rate.
type QuoteSource interface {
	Quote(ctx context.Context) fx.Quote
}

// JobRunner executes a reminder job by name.
type JobRunner interface {
	Run(ctx context.Context, job string, now time.Time) (services.JobResult, error)
}

// Billing sells and manages the paid plan.
type Billing interface {
	CheckoutURL(ctx context.Context, userID, email string) (string, error)
	PortalURL(ctx context.Context, userID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Dependencies are the collaborators the handlers call. Billing and Sheets
// may be nil when the integration is not configured.
type Dependencies struct {
	Subscriptions *services.SubscriptionService
	Profiles      ports.ProfileRepository
	Rates         QuoteSource
	Jobs          JobRunner
	Billing       Billing
	Sheets        ports.SheetExporter
	Verifier      *auth.Verifier
	// Ready reports whether the storage backend is reachable.
	Ready func(ctx context.Context) error
}

type Config struct {
	Addr               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	CronSecret         string
	// Location is the zone "today" is taken in.
	Location       *time.Location
	UpcomingWithin int
}

type Server struct {
	http.Server
	deps     Dependencies
	cfg      Config
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	// known remembers users whose profile exists, keyed by id with the
	// email last recorded.
	known *cache.LRUCache[string]
	now   func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(cfg Config, deps Dependencies, logger *applog.Logger) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.UpcomingWithin <= 0 {
		cfg.UpcomingWithin = 7
	}
	s := &Server{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
		known:    cache.NewLRUCache[string](10000, 10*time.Minute),
		now:      time.Now,
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.detector.Middleware(s.logger))
	r.Use(trace.NewMiddleware(s.detector.ExtractClientIP, s.logger).Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Stripe and cron callers authenticate themselves and are not limited.
		r.Post("/stripe/webhook", s.handleStripeWebhook)
		r.With(auth.CronMiddleware(s.cfg.CronSecret)).Get("/cron/{job}", s.handleCron)
		r.With(auth.CronMiddleware(s.cfg.CronSecret)).Post("/cron/{job}", s.handleCron)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
				ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
			}))

			r.Get("/exchange-rate", s.handleExchangeRate)
			r.Get("/presets", s.handlePresets)

			r.Group(func(r chi.Router) {
				r.Use(s.deps.Verifier.Middleware)
				r.Use(s.ensureProfile)

				r.Get("/subscriptions", s.handleListSubscriptions)
				r.Post("/subscriptions", s.handleCreateSubscription)
				r.Put("/subscriptions/order", s.handleReorder)
				r.Get("/subscriptions/{id}", s.handleGetSubscription)
				r.Put("/subscriptions/{id}", s.handleUpdateSubscription)
				r.Delete("/subscriptions/{id}", s.handleDeleteSubscription)
				r.Post("/subscriptions/{id}/toggle", s.handleToggleSubscription)

				r.Get("/dashboard", s.handleDashboard)
				r.Get("/upcoming", s.handleUpcoming)
				r.Get("/export", s.handleExport)

				r.Get("/profile", s.handleProfile)
				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handleUpdateSettings)

				r.Post("/stripe/checkout", s.handleCheckout)
				r.Post("/stripe/portal", s.handlePortal)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})
	return r
}

// Caches returns the server's caches for periodic cleanup.
func (s *Server) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.known}
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// today is the current calendar day in the configured zone.
func (s *Server) today() time.Time {
	return s.now().In(s.cfg.Location)
}

// ensureProfile creates the caller's profile on first sight and records
// their email for notifications.
func (s *Server) ensureProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			UnauthorizedError().Write(w)
			return
		}
		email := strings.TrimSpace(user.Email)
		if known, hit := s.known.Get(user.ID); !hit || (email != "" && known != email) {
			if _, err := s.deps.Profiles.EnsureProfile(r.Context(), user.ID, email); err != nil {
				ErrorFor(r, err, "ensure_profile").Write(w)
				return
			}
			s.known.Set(user.ID, email)
		}
		ctx := applog.ContextWithLogger(r.Context(), applog.FromContext(r.Context()).With(applog.FieldUserID, user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			ServiceUnavailableError("storage unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// userID returns the authenticated caller; routes behind the verifier
// always have one.
func userID(r *http.Request) string {
	u, _ := auth.UserFromContext(r.Context())
	return u.ID
}
