package ui

import (
	stderrors "errors"
	"net/http"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/http/errors"
	"github.com/jw6ventures/volunteerportal/internal/portal"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

// IndividualEvents lists the user's reported events with an empty create form.
func (h *Handler) IndividualEvents(w http.ResponseWriter, r *http.Request) {
	h.renderIndividualEvents(w, r, http.StatusOK, portal.IndividualEventForm{ID: portal.SentinelID}, nil)
}

// EditIndividualEvent shows the list with the form pre-filled from one event.
func (h *Handler) EditIndividualEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	event, err := h.store.IndividualEvents.GetByID(r.Context(), user.ID, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		errors.InternalError(w, r, err, "load individual event")
		return
	}
	h.renderIndividualEvents(w, r, http.StatusOK, portal.FormFromEvent(*event), nil)
}

// SaveIndividualEvent handles the create/edit form. Invalid submissions are
// re-rendered with per-field messages.
func (h *Handler) SaveIndividualEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		errors.BadRequestError(w, r, err, "invalid form")
		return
	}

	form := portal.ParseIndividualEventForm(r.PostForm)
	input, err := form.Validate()
	var verr *portal.ValidationError
	if stderrors.As(err, &verr) {
		h.renderIndividualEvents(w, r, http.StatusUnprocessableEntity, form, verr.Fields)
		return
	}

	saved, err := h.store.IndividualEvents.Save(r.Context(), user.ID, input)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case stderrors.Is(err, store.ErrInvalidReference):
		field := store.InvalidReferenceField(err)
		if field == "" {
			field = "form"
		}
		h.renderIndividualEvents(w, r, http.StatusUnprocessableEntity, form, map[string]string{
			field: referenceMessages[field],
		})
		return
	case err != nil:
		errors.InternalError(w, r, err, "save individual event")
		return
	}
	errors.LogInfo(r, "individual event saved", "user_id", user.ID, "event_id", saved.ID)

	status := "updated"
	if input.IsNew() {
		status = "created"
	}
	h.redirect(w, r, "/individual-events", map[string]string{"status": status})
}

func (h *Handler) DeleteIndividualEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.store.IndividualEvents.Delete(r.Context(), user.ID, id); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		errors.InternalError(w, r, err, "delete individual event")
		return
	}
	h.redirect(w, r, "/individual-events", map[string]string{"status": "deleted"})
}

func (h *Handler) renderIndividualEvents(w http.ResponseWriter, r *http.Request, status int, form portal.IndividualEventForm, fieldErrors map[string]string) {
	user, _ := auth.UserFromContext(r.Context())
	events, err := h.store.IndividualEvents.ListByUser(r.Context(), user.ID)
	if err != nil {
		errors.InternalError(w, r, err, "load individual events")
		return
	}
	lookups, err := store.LoadLookups(r.Context(), h.store.Lookups)
	if err != nil {
		errors.InternalError(w, r, err, "load lookups")
		return
	}
	if form.Office == nil && user.OfficeID != nil && form.ID <= 0 {
		form.Office = &portal.Ref{ID: *user.OfficeID}
	}

	data := h.withFlash(r, map[string]any{
		"Title":       "My Events",
		"User":        user,
		"Events":      events,
		"Lookups":     lookups,
		"Form":        form,
		"Editing":     form.ID > 0,
		"FieldErrors": fieldErrors,
		"MaxDuration": portal.MaxDurationMinutes,
	})
	h.renderStatus(w, r, status, "individual_events.html", data)
}

var referenceMessages = map[string]string{
	"office.id":       "must be a known office",
	"eventType.id":    "must be a known event type",
	"organization.id": "must be a known organization",
	"form":            "office, event type or organization does not exist",
}
