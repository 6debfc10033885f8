package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/portal"
)

const icsProductID = "-//Volunteer Portal//Individual Events//EN"

// ExportICS serves the caller's individual events as an iCalendar feed of
// all-day entries.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	events, err := h.individual.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, err, "list individual events for export")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="individual-events.ics"`)
	_, _ = w.Write([]byte(BuildCalendar(events, r.Host, time.Now()).Serialize()))
}

// BuildCalendar converts individual events into a VCALENDAR. host scopes the
// event UIDs.
func BuildCalendar(events []portal.IndividualEvent, host string, now time.Time) *ical.Calendar {
	if host == "" {
		host = "volunteer-portal"
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	for _, e := range events {
		ev := cal.AddEvent(fmt.Sprintf("individual-event-%d@%s", e.ID, host))
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(eventSummary(e))
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if e.Office != nil {
			ev.SetLocation(e.Office.Name)
		}
		day := time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC)
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))

		switch e.Status {
		case portal.StatusApproved:
			ev.SetStatus(ical.ObjectStatusConfirmed)
		case portal.StatusRejected:
			ev.SetStatus(ical.ObjectStatusCancelled)
		default:
			ev.SetStatus(ical.ObjectStatusTentative)
		}
	}
	return cal
}

func eventSummary(e portal.IndividualEvent) string {
	parts := make([]string, 0, 3)
	if e.EventType != nil {
		parts = append(parts, e.EventType.Title)
	}
	if e.Organization != nil {
		parts = append(parts, e.Organization.Name)
	}
	if len(parts) == 0 {
		parts = append(parts, "Volunteering")
	}
	start := e.Date
	label := portal.DurationLabel(start, start.Add(time.Duration(e.Duration)*time.Minute))
	return strings.Join(parts, ": ") + " (" + label + ")"
}
