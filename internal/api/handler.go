// Package api serves the JSON API used by portalctl and scripted clients.
// Every response body is a portal.Envelope.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	httperrors "github.com/jw6ventures/volunteerportal/internal/http/errors"
	"github.com/jw6ventures/volunteerportal/internal/portal"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

const maxBodyBytes = 64 << 10

// Handler implements the /api routes.
type Handler struct {
	lookups    store.LookupRepository
	individual store.IndividualEventRepository
	events     store.EventRepository
}

func NewHandler(st *store.Store) *Handler {
	return New(st.Lookups, st.IndividualEvents, st.Events)
}

func New(lookups store.LookupRepository, individual store.IndividualEventRepository, events store.EventRepository) *Handler {
	return &Handler{lookups: lookups, individual: individual, events: events}
}

// Routes mounts the API under the caller's router. Authentication must
// already have run.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/lookups", h.Lookups)
	r.Get("/individual-events", h.CurrentUser)
	r.Get("/individual-events.ics", h.ExportICS)
	r.Post("/individual-events", h.SaveIndividualEvent)
	r.Delete("/individual-events/{id}", h.DeleteIndividualEvent)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Get("/events", h.ListEvents)
		r.Delete("/events/{id}", h.DeleteEvent)
	})
}

func (h *Handler) Lookups(w http.ResponseWriter, r *http.Request) {
	lookups, err := store.LoadLookups(r.Context(), h.lookups)
	if err != nil {
		h.internalError(w, r, err, "load lookups")
		return
	}
	writeData(w, http.StatusOK, lookups)
}

// CurrentUser returns the caller with their individual events.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	events, err := h.individual.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, err, "list individual events")
		return
	}

	current := portal.CurrentUser{
		ID:               user.ID,
		Email:            user.PrimaryEmail,
		Admin:            user.Admin,
		IndividualEvents: events,
	}
	if user.OfficeID != nil {
		offices, err := h.lookups.ListOffices(r.Context())
		if err != nil {
			h.internalError(w, r, err, "list offices")
			return
		}
		current.Office = portal.Lookups{Offices: offices}.Office(*user.OfficeID)
	}
	writeData(w, http.StatusOK, current)
}

// SaveIndividualEvent creates the event when the input has no positive id and
// updates the caller's event otherwise.
func (h *Handler) SaveIndividualEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var in portal.IndividualEventInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeErrors(w, http.StatusBadRequest, portal.FieldError{Message: "invalid JSON body: " + err.Error()})
		return
	}
	in.Description = strings.TrimSpace(in.Description)
	in.Duration = portal.NormalizeDuration(in.Duration)

	var verr *portal.ValidationError
	if err := in.Validate(); errors.As(err, &verr) {
		writeErrors(w, http.StatusUnprocessableEntity, verr.FieldErrors()...)
		return
	}

	saved, err := h.individual.Save(r.Context(), user.ID, in)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErrors(w, http.StatusNotFound, portal.FieldError{Message: "individual event not found", Path: []string{"input", "id"}})
		return
	case errors.Is(err, store.ErrInvalidReference):
		if field := store.InvalidReferenceField(err); field != "" {
			writeErrors(w, http.StatusUnprocessableEntity, portal.FieldError{
				Message: field + " does not exist",
				Path:    append([]string{"input"}, strings.Split(field, ".")...),
			})
			return
		}
		writeErrors(w, http.StatusUnprocessableEntity, portal.FieldError{Message: "office, event type or organization does not exist", Path: []string{"input"}})
		return
	case err != nil:
		h.internalError(w, r, err, "save individual event")
		return
	}
	httperrors.LogInfo(r, "individual event saved", "user_id", user.ID, "event_id", saved.ID, "created", in.IsNew())

	status := http.StatusOK
	if in.IsNew() {
		status = http.StatusCreated
	}
	writeData(w, status, saved)
}

func (h *Handler) DeleteIndividualEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.individual.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErrors(w, http.StatusNotFound, portal.FieldError{Message: "individual event not found", Path: []string{"id"}})
			return
		}
		h.internalError(w, r, err, "delete individual event")
		return
	}
	writeData(w, http.StatusOK, portal.DeletedID{ID: id})
}

// ListEvents lists office events. officeId is "current" for the caller's
// office, a numeric id, or empty for every office. title and organization
// narrow by substring; sortBy takes any portal.EventSort value.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	q := r.URL.Query()

	filter := store.EventFilter{
		Title:        strings.TrimSpace(q.Get("title")),
		Organization: strings.TrimSpace(q.Get("organization")),
		Sort:         string(portal.ParseEventSort(q.Get("sortBy"))),
	}
	switch raw := strings.TrimSpace(q.Get("officeId")); raw {
	case "":
	case portal.CurrentOffice:
		if user.OfficeID == nil {
			writeData(w, http.StatusOK, []portal.Event{})
			return
		}
		filter.OfficeID = user.OfficeID
	default:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeErrors(w, http.StatusBadRequest, portal.FieldError{Message: "officeId must be \"current\" or a positive id", Path: []string{"officeId"}})
			return
		}
		filter.OfficeID = &id
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err, "list events")
		return
	}
	writeData(w, http.StatusOK, events)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.events.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErrors(w, http.StatusNotFound, portal.FieldError{Message: "event not found", Path: []string{"id"}})
			return
		}
		h.internalError(w, r, err, "delete event")
		return
	}
	writeData(w, http.StatusOK, deleted)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	httperrors.LogError(r, message, err)
	writeErrors(w, http.StatusInternalServerError, portal.FieldError{Message: "internal server error"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrors(w, http.StatusBadRequest, portal.FieldError{Message: "invalid id", Path: []string{"id"}})
		return 0, false
	}
	return id, true
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, portal.Envelope[any]{Data: data})
}

func writeErrors(w http.ResponseWriter, status int, errs ...portal.FieldError) {
	writeJSON(w, status, portal.Envelope[any]{Errors: errs})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
