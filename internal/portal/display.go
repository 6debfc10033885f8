package portal

import (
	"fmt"
	"strings"
	"time"
)

// EventSort orders admin event listings.
type EventSort string

const (
	SortStartsAtDesc     EventSort = "STARTS_AT_DESC"
	SortStartsAtAsc      EventSort = "STARTS_AT_ASC"
	SortTitleAsc         EventSort = "TITLE_ASC"
	SortTitleDesc        EventSort = "TITLE_DESC"
	SortOrganizationAsc  EventSort = "ORGANIZATION_ASC"
	SortOrganizationDesc EventSort = "ORGANIZATION_DESC"
	SortDurationAsc      EventSort = "DURATION_ASC"
	SortDurationDesc     EventSort = "DURATION_DESC"
	SortParticipantsAsc  EventSort = "PARTICIPANTS_ASC"
	SortParticipantsDesc EventSort = "PARTICIPANTS_DESC"
)

// EventSortOption pairs a sort value with its label in the admin table.
type EventSortOption struct {
	Value EventSort
	Label string
}

// EventSorts lists every supported sort in display order.
var EventSorts = []EventSortOption{
	{SortStartsAtDesc, "Start date, newest first"},
	{SortStartsAtAsc, "Start date, oldest first"},
	{SortTitleAsc, "Title, A-Z"},
	{SortTitleDesc, "Title, Z-A"},
	{SortOrganizationAsc, "Organization, A-Z"},
	{SortOrganizationDesc, "Organization, Z-A"},
	{SortDurationAsc, "Duration, shortest first"},
	{SortDurationDesc, "Duration, longest first"},
	{SortParticipantsAsc, "Participants, fewest first"},
	{SortParticipantsDesc, "Participants, most first"},
}

// ParseEventSort falls back to STARTS_AT_DESC for empty or unknown values.
func ParseEventSort(raw string) EventSort {
	want := EventSort(strings.ToUpper(strings.TrimSpace(raw)))
	for _, opt := range EventSorts {
		if opt.Value == want {
			return want
		}
	}
	return SortStartsAtDesc
}

// CurrentOffice is the officeId filter value meaning "the caller's office".
const CurrentOffice = "current"

// OptimisticIndividualEvent builds the provisional record shown while a
// create or edit is in flight. Unknown references resolve to nil.
func OptimisticIndividualEvent(in IndividualEventInput, lookups Lookups) IndividualEvent {
	id := in.ID
	if id == 0 {
		id = SentinelID
	}
	return IndividualEvent{
		ID:           id,
		Description:  in.Description,
		Office:       lookups.Office(in.OfficeID),
		Date:         in.Date,
		Duration:     in.Duration,
		EventType:    lookups.EventType(in.EventTypeID),
		Organization: lookups.Organization(in.OrganizationID),
		Status:       StatusPending,
	}
}

// DurationLabel renders the span between start and end as H:mm.
func DurationLabel(start, end time.Time) string {
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// DateLabel formats an admin table start date.
func DateLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 02, 2006")
}

// LongDateLabel formats an individual event date.
func LongDateLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}
