package ui

import (
	"html/template"
	"net/http"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/config"
	"github.com/jw6ventures/volunteerportal/internal/http/errors"
	"github.com/jw6ventures/volunteerportal/internal/portal"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

// Handler serves server-rendered HTML pages.
type Handler struct {
	cfg         *config.Config
	store       *store.Store
	authService *auth.Service
	templates   map[string]*template.Template
}

func NewHandler(cfg *config.Config, store *store.Store, authService *auth.Service) *Handler {
	return &Handler{cfg: cfg, store: store, authService: authService, templates: templates}
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	events, err := h.store.IndividualEvents.ListByUser(r.Context(), user.ID)
	if err != nil {
		errors.InternalError(w, r, err, "load individual events")
		return
	}
	tokens, err := h.store.APITokens.ListActiveByUser(r.Context(), user.ID)
	if err != nil {
		errors.InternalError(w, r, err, "load api tokens")
		return
	}

	counts := map[portal.Status]int{}
	minutes := 0
	for _, e := range events {
		counts[e.Status]++
		if e.Status == portal.StatusApproved {
			minutes += e.Duration
		}
	}

	data := h.withFlash(r, map[string]any{
		"Title":         "Dashboard",
		"User":          user,
		"EventCount":    len(events),
		"PendingCount":  counts[portal.StatusPending],
		"ApprovedCount": counts[portal.StatusApproved],
		"ApprovedHours": formatMinutes(minutes),
		"TokenCount":    len(tokens),
	})
	h.render(w, r, "dashboard.html", data)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.Logout(w, r)
}
