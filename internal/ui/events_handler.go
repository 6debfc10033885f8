package ui

import (
	stderrors "errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/http/errors"
	"github.com/jw6ventures/volunteerportal/internal/portal"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

type eventRow struct {
	ID           int64
	Title        string
	Office       string
	Organization string
	StartDate    string
	Duration     string
	Participants string
}

// AdminEvents renders the office events table. officeId selects an office;
// "current" (the default) uses the admin's own office.
func (h *Handler) AdminEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	q := r.URL.Query()

	officeParam := q.Get("officeId")
	if officeParam == "" {
		officeParam = portal.CurrentOffice
	}
	filter := store.EventFilter{
		Title:        strings.TrimSpace(q.Get("title")),
		Organization: strings.TrimSpace(q.Get("organization")),
		Sort:         string(portal.ParseEventSort(q.Get("sortBy"))),
	}
	noOffice := false
	switch officeParam {
	case "all":
	case portal.CurrentOffice:
		filter.OfficeID = user.OfficeID
		noOffice = user.OfficeID == nil
	default:
		id, err := strconv.ParseInt(officeParam, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid officeId", http.StatusBadRequest)
			return
		}
		filter.OfficeID = &id
	}

	var events []portal.Event
	if !noOffice {
		var err error
		if events, err = h.store.Events.List(r.Context(), filter); err != nil {
			errors.InternalError(w, r, err, "load events")
			return
		}
	}
	offices, err := h.store.Lookups.ListOffices(r.Context())
	if err != nil {
		errors.InternalError(w, r, err, "load offices")
		return
	}

	page, limit := h.parsePagination(r)
	start, end := pageBounds(len(events), page, limit)
	rows := make([]eventRow, 0, end-start)
	for _, e := range events[start:end] {
		rows = append(rows, toEventRow(e))
	}

	data := h.withFlash(r, map[string]any{
		"Title":              "Office Events",
		"User":               user,
		"Events":             rows,
		"Offices":            offices,
		"OfficeID":           officeParam,
		"NoOffice":           noOffice,
		"TitleFilter":        filter.Title,
		"OrganizationFilter": filter.Organization,
		"SortBy":             filter.Sort,
		"Sorts":              portal.EventSorts,
		"Page":               page,
		"HasNext":            end < len(events),
		"PrevURL":            eventsPageURL(officeParam, filter, page-1),
		"NextURL":            eventsPageURL(officeParam, filter, page+1),
	})
	h.render(w, r, "events.html", data)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	deleted, err := h.store.Events.Delete(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		errors.InternalError(w, r, err, "delete event")
		return
	}
	errors.LogInfo(r, "event deleted", "event_id", deleted.ID)
	h.redirect(w, r, "/admin/events", map[string]string{"status": "deleted"})
}

// eventsPageURL links to another page of the table with the same filters.
func eventsPageURL(office string, filter store.EventFilter, page int) template.URL {
	v := url.Values{}
	v.Set("officeId", office)
	v.Set("sortBy", filter.Sort)
	if filter.Title != "" {
		v.Set("title", filter.Title)
	}
	if filter.Organization != "" {
		v.Set("organization", filter.Organization)
	}
	v.Set("page", strconv.Itoa(page))
	return template.URL("/admin/events?" + v.Encode())
}

func toEventRow(e portal.Event) eventRow {
	row := eventRow{
		ID:           e.ID,
		Title:        e.Title,
		StartDate:    portal.DateLabel(e.StartsAt.In(time.Local)),
		Duration:     portal.DurationLabel(e.StartsAt, e.EndsAt),
		Participants: strconv.Itoa(e.SignupCount),
	}
	if e.Capacity > 0 {
		row.Participants += " / " + strconv.Itoa(e.Capacity)
	}
	if e.Office != nil {
		row.Office = e.Office.Name
	}
	if e.Organization != nil {
		row.Organization = e.Organization.Name
	}
	return row
}
