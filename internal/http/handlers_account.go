package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mysubs/internal/auth"
	"mysubs/internal/payments"
	"mysubs/internal/services"
)

// maxWebhookBytes bounds Stripe webhook payloads.
const maxWebhookBytes = 1 << 16

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.GetProfile(r.Context(), userID(r))
	if err != nil {
		ErrorFor(r, err, "get_profile").Write(w)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.GetProfile(r.Context(), userID(r))
	if err != nil {
		ErrorFor(r, err, "get_settings").Write(w)
		return
	}
	NewJSONResponse().Body(p.Settings).Write(w)
}

// handleUpdateSettings overlays the body on the stored settings, so partial
// updates leave other preferences untouched.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	p, err := s.deps.Profiles.GetProfile(r.Context(), uid)
	if err != nil {
		ErrorFor(r, err, "update_settings").Write(w)
		return
	}
	settings := p.Settings
	if err := DecodeJSON(w, r, &settings); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := settings.Validate(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.deps.Profiles.UpdateSettings(r.Context(), uid, settings); err != nil {
		ErrorFor(r, err, "update_settings").Write(w)
		return
	}
	NewJSONResponse().Body(settings).Write(w)
}

type redirectResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Billing == nil {
		ServiceUnavailableError("payments are not configured").Write(w)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	email := user.Email
	if email == "" {
		if p, err := s.deps.Profiles.GetProfile(r.Context(), user.ID); err == nil {
			email = p.Email
		}
	}
	url, err := s.deps.Billing.CheckoutURL(r.Context(), user.ID, email)
	if err != nil {
		s.billingError(w, r, err, "checkout")
		return
	}
	NewJSONResponse().Body(redirectResponse{URL: url}).Write(w)
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Billing == nil {
		ServiceUnavailableError("payments are not configured").Write(w)
		return
	}
	url, err := s.deps.Billing.PortalURL(r.Context(), userID(r))
	if err != nil {
		s.billingError(w, r, err, "portal")
		return
	}
	NewJSONResponse().Body(redirectResponse{URL: url}).Write(w)
}

func (s *Server) billingError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, payments.ErrNotConfigured):
		ServiceUnavailableError("payments are not configured").Write(w)
	case errors.Is(err, payments.ErrNoCustomer):
		BadRequestError("구독 정보가 없습니다.").Write(w)
	default:
		ErrorFor(r, err, op).Write(w)
	}
}

// handleStripeWebhook acknowledges verified events. Processing failures
// return 500 so Stripe retries the delivery.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Billing == nil {
		ServiceUnavailableError("payments are not configured").Write(w)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		BadRequestError("unreadable body").Write(w)
		return
	}
	err = s.deps.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		BadRequestError("Webhook signature verification failed").Write(w)
	case err != nil:
		s.billingError(w, r, err, "stripe_webhook")
	default:
		NewJSONResponse().Body(map[string]bool{"received": true}).Write(w)
	}
}

var cronJobs = map[string]bool{
	services.JobBillingReminder: true,
	services.JobTrialReminder:   true,
	services.JobMonthlyReport:   true,
}

type cronResponse struct {
	Success bool `json:"success"`
	services.JobResult
}

func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	if !cronJobs[job] || s.deps.Jobs == nil {
		NotFoundError("unknown job").Write(w)
		return
	}
	res, err := s.deps.Jobs.Run(r.Context(), job, s.today())
	if err != nil {
		ErrorFor(r, err, job).Write(w)
		return
	}
	NewJSONResponse().Body(cronResponse{Success: true, JobResult: res}).Write(w)
}
