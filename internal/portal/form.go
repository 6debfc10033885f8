package portal

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxDurationMinutes caps a single reported event at one day.
const MaxDurationMinutes = 24 * 60

const formDateLayout = "2006-01-02"

// Ref is an optional nested reference coming from a form.
type Ref struct {
	ID int64 `json:"id"`
}

// IndividualEventForm is the loosely shaped payload submitted by the
// create/edit dialog. Nested references and the date may be missing.
type IndividualEventForm struct {
	ID           int64      `json:"id"`
	Description  string     `json:"description"`
	Office       *Ref       `json:"office,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Duration     int        `json:"duration"`
	EventType    *Ref       `json:"eventType,omitempty"`
	Organization *Ref       `json:"organization,omitempty"`
}

// IndividualEventInput is the validated mutation input: every field the
// server needs is present.
type IndividualEventInput struct {
	ID             int64     `json:"id"`
	Description    string    `json:"description"`
	OfficeID       int64     `json:"officeId"`
	Date           time.Time `json:"date"`
	Duration       int       `json:"duration"`
	EventTypeID    int64     `json:"eventTypeId"`
	OrganizationID int64     `json:"organizationId"`
}

// IsNew reports whether the input creates a new record.
func (in IndividualEventInput) IsNew() bool { return in.ID <= 0 }

// ValidationError lists per-field problems keyed by form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "invalid individual event: " + strings.Join(parts, ", ")
}

// ParseIndividualEventForm reads the dialog's form fields. Unparseable values
// are treated as missing so that Validate reports them.
func ParseIndividualEventForm(values url.Values) IndividualEventForm {
	form := IndividualEventForm{
		ID:          SentinelID,
		Description: strings.TrimSpace(values.Get("description")),
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(values.Get("id")), 10, 64); err == nil && id > 0 {
		form.ID = id
	}
	form.Office = parseRef(values.Get("office.id"))
	form.EventType = parseRef(values.Get("eventType.id"))
	form.Organization = parseRef(values.Get("organization.id"))

	if raw := strings.TrimSpace(values.Get("date")); raw != "" {
		if d, err := time.Parse(formDateLayout, raw); err == nil {
			form.Date = &d
		} else if d, err := time.Parse(time.RFC3339, raw); err == nil {
			form.Date = &d
		}
	}
	if d, err := strconv.Atoi(strings.TrimSpace(values.Get("duration"))); err == nil {
		form.Duration = NormalizeDuration(d)
	}
	return form
}

func parseRef(raw string) *Ref {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &Ref{ID: id}
}

// NormalizeDuration clamps negative durations to zero.
func NormalizeDuration(minutes int) int {
	if minutes < 0 {
		return 0
	}
	return minutes
}

// Validate converts the form into an input, or returns a *ValidationError.
func (f IndividualEventForm) Validate() (IndividualEventInput, error) {
	in := IndividualEventInput{
		ID:          f.ID,
		Description: strings.TrimSpace(f.Description),
		Duration:    f.Duration,
	}
	if in.ID <= 0 {
		in.ID = SentinelID
	}
	if f.Office != nil {
		in.OfficeID = f.Office.ID
	}
	if f.EventType != nil {
		in.EventTypeID = f.EventType.ID
	}
	if f.Organization != nil {
		in.OrganizationID = f.Organization.ID
	}
	if f.Date != nil {
		in.Date = *f.Date
	}
	if err := in.Validate(); err != nil {
		return IndividualEventInput{}, err
	}
	return in, nil
}

// Validate checks the required fields and bounds of an input.
func (in IndividualEventInput) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "is required"
	}
	if in.OfficeID <= 0 {
		fields["office.id"] = "is required"
	}
	if in.Date.IsZero() {
		fields["date"] = "is required"
	}
	switch {
	case in.Duration <= 0:
		fields["duration"] = "is required"
	case in.Duration > MaxDurationMinutes:
		fields["duration"] = "must be less than or equal to 24 hours"
	}
	if in.EventTypeID <= 0 {
		fields["eventType.id"] = "is required"
	}
	if in.OrganizationID <= 0 {
		fields["organization.id"] = "is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// FormFromEvent pre-fills the edit dialog from an existing record.
func FormFromEvent(e IndividualEvent) IndividualEventForm {
	form := IndividualEventForm{
		ID:          e.ID,
		Description: e.Description,
		Duration:    e.Duration,
	}
	if e.Office != nil {
		form.Office = &Ref{ID: e.Office.ID}
	}
	if e.EventType != nil {
		form.EventType = &Ref{ID: e.EventType.ID}
	}
	if e.Organization != nil {
		form.Organization = &Ref{ID: e.Organization.ID}
	}
	if !e.Date.IsZero() {
		d := e.Date
		form.Date = &d
	}
	return form
}

// DateValue formats the form date for an <input type="date">.
func (f IndividualEventForm) DateValue() string {
	if f.Date == nil {
		return ""
	}
	return f.Date.Format(formDateLayout)
}

// RefID returns the id of r, or 0 when r is nil.
func RefID(r *Ref) int64 {
	if r == nil {
		return 0
	}
	return r.ID
}

// String is used in log lines.
func (in IndividualEventInput) String() string {
	return fmt.Sprintf("individual_event(id=%d office=%d type=%d org=%d)", in.ID, in.OfficeID, in.EventTypeID, in.OrganizationID)
}
