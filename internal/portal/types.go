// Package portal holds the volunteer portal's domain types shared by the
// server, the API client and the optimistic read cache.
package portal

import "time"

// SentinelID marks an entity that has not been persisted yet.
const SentinelID int64 = -1

// Status is the approval state of a self-reported individual event.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Normalize maps unknown values to PENDING.
func (s Status) Normalize() Status {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return s
	default:
		return StatusPending
	}
}

// Office is a company office volunteers belong to.
type Office struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Organization is the charity or group an event benefits.
type Organization struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// EventType classifies events (e.g. "Skills based", "Board service").
type EventType struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// IndividualEvent records hours a volunteer reports on their own.
type IndividualEvent struct {
	ID           int64         `json:"id"`
	Description  string        `json:"description"`
	Office       *Office       `json:"office"`
	Date         time.Time     `json:"date"`
	Duration     int           `json:"duration"`
	EventType    *EventType    `json:"eventType"`
	Organization *Organization `json:"organization"`
	Status       Status        `json:"status"`
}

// EntityID implements optimistic.Entity.
func (e IndividualEvent) EntityID() int64 { return e.ID }

// Event is an office-organised volunteering event.
type Event struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Office       *Office       `json:"office"`
	Organization *Organization `json:"organization"`
	EventType    *EventType    `json:"eventType"`
	StartsAt     time.Time     `json:"startsAt"`
	EndsAt       time.Time     `json:"endsAt"`
	Capacity     int           `json:"capacity"`
	SignupCount  int           `json:"signupCount"`
}

// EntityID implements optimistic.Entity.
func (e Event) EntityID() int64 { return e.ID }

// CurrentUser is the signed-in volunteer together with their reported events.
type CurrentUser struct {
	ID               int64             `json:"id"`
	Email            string            `json:"email"`
	Office           *Office           `json:"office"`
	Admin            bool              `json:"admin"`
	IndividualEvents []IndividualEvent `json:"individualEvents"`
}

// Lookups carries the reference lists used to fill form selects.
type Lookups struct {
	Offices       []Office       `json:"offices"`
	EventTypes    []EventType    `json:"eventTypes"`
	Organizations []Organization `json:"organizations"`
}

// Office returns the office with id, or nil.
func (l Lookups) Office(id int64) *Office {
	for i := range l.Offices {
		if l.Offices[i].ID == id {
			o := l.Offices[i]
			return &o
		}
	}
	return nil
}

// EventType returns the event type with id, or nil.
func (l Lookups) EventType(id int64) *EventType {
	for i := range l.EventTypes {
		if l.EventTypes[i].ID == id {
			t := l.EventTypes[i]
			return &t
		}
	}
	return nil
}

// Organization returns the organization with id, or nil.
func (l Lookups) Organization(id int64) *Organization {
	for i := range l.Organizations {
		if l.Organizations[i].ID == id {
			o := l.Organizations[i]
			return &o
		}
	}
	return nil
}
