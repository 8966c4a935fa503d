package http

import (
	"bytes"
	"fmt"
	"net/http"

	"mysubs/internal/billing"
	"mysubs/internal/core"
	"mysubs/internal/export"
	applog "mysubs/internal/log"
	"mysubs/internal/metrics"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ov, err := s.deps.Subscriptions.Overview(r.Context(), userID(r), s.today())
	if err != nil {
		ErrorFor(r, err, "dashboard").Write(w)
		return
	}
	NewJSONResponse().Body(ov).Write(w)
}

type upcomingResponse struct {
	Within int                    `json:"within"`
	Order  billing.Order          `json:"order"`
	Items  []core.UpcomingBilling `json:"items"`
}

// handleUpcoming lists charges due within ?within= days (1-31), ordered by
// ?order=billing_day|days_until.
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	within, err := QueryInt(q, "within", s.cfg.UpcomingWithin, 1, 31)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var order billing.Order
	if raw := q.Get("order"); raw != "" {
		if order, err = billing.ParseOrder(raw); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
	}
	items, err := s.deps.Subscriptions.Upcoming(r.Context(), userID(r), s.today(), within, order)
	if err != nil {
		ErrorFor(r, err, "upcoming").Write(w)
		return
	}
	if items == nil {
		items = []core.UpcomingBilling{}
	}
	NewJSONResponse().Body(upcomingResponse{Within: within, Order: order, Items: items}).Write(w)
}

func (s *Server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	q := s.deps.Rates.Quote(r.Context())
	NewJSONResponse().
		Header("Cache-Control", "public, max-age=300").
		Body(q).
		Write(w)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Header("Cache-Control", "public, max-age=3600").
		Body(core.Presets()).
		Write(w)
}

// handleExport streams the caller's subscriptions as a file, or pushes them
// to the configured spreadsheet for ?format=sheets.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	uid := userID(r)
	subs, err := s.deps.Subscriptions.List(r.Context(), uid)
	if err != nil {
		ErrorFor(r, err, "export").Write(w)
		return
	}
	rate := s.deps.Rates.Quote(r.Context()).Rate
	now := s.today()
	metrics.Exports.WithLabelValues(string(format)).Inc()

	if format == export.Sheets {
		if s.deps.Sheets == nil {
			ServiceUnavailableError("spreadsheet export is not configured").Write(w)
			return
		}
		title := fmt.Sprintf("%s %s", now.Format(core.DateLayout), shortID(uid))
		rng, err := s.deps.Sheets.ExportRows(r.Context(), title, export.Table(subs, rate))
		if err != nil {
			ErrorFor(r, err, "export_sheets").Write(w)
			return
		}
		NewJSONResponse().Body(map[string]any{"range": rng, "rows": len(subs)}).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, subs, rate, now); err != nil {
		ErrorFor(r, err, "export").Write(w)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.FileName(now)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Export write failed", applog.FieldError, err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
