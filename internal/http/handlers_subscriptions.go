package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mysubs/internal/core"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.deps.Subscriptions.List(r.Context(), userID(r))
	if err != nil {
		ErrorFor(r, err, "list_subscriptions").Write(w)
		return
	}
	if subs == nil {
		subs = []core.Subscription{}
	}
	NewJSONResponse().Body(subs).Write(w)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Subscriptions.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		ErrorFor(r, err, "get_subscription").Write(w)
		return
	}
	NewJSONResponse().Body(sub).Write(w)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := ParseSubscription(w, r, core.Subscription{IsActive: true, AutoRenewal: true})
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	created, err := s.deps.Subscriptions.Create(r.Context(), userID(r), sub, s.today())
	if err != nil {
		ErrorFor(r, err, "create_subscription").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

// handleUpdateSubscription applies the fields present in the body on top of
// the stored record.
func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.deps.Subscriptions.Get(r.Context(), userID(r), id)
	if err != nil {
		ErrorFor(r, err, "update_subscription").Write(w)
		return
	}
	sub, err := ParseSubscription(w, r, existing)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	updated, err := s.deps.Subscriptions.Update(r.Context(), userID(r), id, sub, s.today())
	if err != nil {
		ErrorFor(r, err, "update_subscription").Write(w)
		return
	}
	NewJSONResponse().Body(updated).Write(w)
}

func (s *Server) handleToggleSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Subscriptions.Toggle(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		ErrorFor(r, err, "toggle_subscription").Write(w)
		return
	}
	NewJSONResponse().Body(sub).Write(w)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Subscriptions.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		ErrorFor(r, err, "delete_subscription").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if len(req.IDs) == 0 {
		BadRequestError("ids must not be empty").Write(w)
		return
	}
	if err := s.deps.Subscriptions.Reorder(r.Context(), userID(r), req.IDs); err != nil {
		ErrorFor(r, err, "reorder_subscriptions").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]bool{"success": true}).Write(w)
}
