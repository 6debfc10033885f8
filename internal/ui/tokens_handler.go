package ui

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/http/errors"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

type tokenView struct {
	ID         int64
	Label      string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	Status     string
}

// Tokens lists the user's API tokens.
func (h *Handler) Tokens(w http.ResponseWriter, r *http.Request) {
	h.renderTokens(w, r, "")
}

// CreateToken issues a token and shows its plaintext exactly once.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		errors.BadRequestError(w, r, err, "invalid form")
		return
	}
	label := strings.TrimSpace(r.FormValue("label"))
	if label == "" {
		http.Error(w, "label is required", http.StatusBadRequest)
		return
	}

	var ttl time.Duration
	if days := strings.TrimSpace(r.FormValue("expires_in_days")); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 || n > 3650 {
			http.Error(w, "expiry must be between 0 and 3650 days", http.StatusBadRequest)
			return
		}
		ttl = time.Duration(n) * 24 * time.Hour
	}

	plaintext, _, err := h.authService.CreateAPIToken(r.Context(), user.ID, label, ttl)
	if err != nil {
		errors.InternalError(w, r, err, "create api token")
		return
	}
	h.renderTokens(w, r, plaintext)
}

func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.store.APITokens.Revoke(r.Context(), user.ID, id); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		errors.InternalError(w, r, err, "revoke api token")
		return
	}
	h.redirect(w, r, "/tokens", map[string]string{"status": "revoked"})
}

func (h *Handler) renderTokens(w http.ResponseWriter, r *http.Request, plaintext string) {
	user, _ := auth.UserFromContext(r.Context())
	tokens, err := h.store.APITokens.ListByUser(r.Context(), user.ID)
	if err != nil {
		errors.InternalError(w, r, err, "load api tokens")
		return
	}

	now := time.Now()
	view := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		status := "active"
		switch {
		case t.RevokedAt != nil:
			status = "revoked"
		case !t.Active(now):
			status = "expired"
		}
		view = append(view, tokenView{
			ID:         t.ID,
			Label:      t.Label,
			CreatedAt:  t.CreatedAt,
			ExpiresAt:  t.ExpiresAt,
			LastUsedAt: t.LastUsedAt,
			Status:     status,
		})
	}

	data := h.withFlash(r, map[string]any{
		"Title":      "API Tokens",
		"User":       user,
		"Tokens":     view,
		"PlainToken": plaintext,
	})
	h.render(w, r, "tokens.html", data)
}
