package store

import (
	"context"

	"github.com/jw6ventures/volunteerportal/internal/portal"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UpsertOAuthUser(ctx context.Context, subject, email string, admin bool) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// APITokenRepository stores hashed API credentials.
type APITokenRepository interface {
	Create(ctx context.Context, token APIToken) (*APIToken, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]APIToken, error)
	ListByUser(ctx context.Context, userID int64) ([]APIToken, error)
	Revoke(ctx context.Context, userID, id int64) error
	TouchLastUsed(ctx context.Context, id int64) error
}

// LookupRepository lists the reference data used by event forms.
type LookupRepository interface {
	ListOffices(ctx context.Context) ([]portal.Office, error)
	ListEventTypes(ctx context.Context) ([]portal.EventType, error)
	ListOrganizations(ctx context.Context) ([]portal.Organization, error)
}

// IndividualEventRepository manages a volunteer's self-reported events.
type IndividualEventRepository interface {
	// ListByUser returns the user's events in creation order.
	ListByUser(ctx context.Context, userID int64) ([]portal.IndividualEvent, error)
	GetByID(ctx context.Context, userID, id int64) (*portal.IndividualEvent, error)
	// Save inserts new inputs and updates the caller's existing ones; an
	// update resets the status to PENDING.
	Save(ctx context.Context, userID int64, in portal.IndividualEventInput) (*portal.IndividualEvent, error)
	Delete(ctx context.Context, userID, id int64) error
}

// EventRepository manages office events.
type EventRepository interface {
	List(ctx context.Context, filter EventFilter) ([]portal.Event, error)
	GetByID(ctx context.Context, id int64) (*portal.Event, error)
	Delete(ctx context.Context, id int64) (*portal.Event, error)
}

// LoadLookups fetches all reference lists.
func LoadLookups(ctx context.Context, repo LookupRepository) (portal.Lookups, error) {
	var (
		l   portal.Lookups
		err error
	)
	if l.Offices, err = repo.ListOffices(ctx); err != nil {
		return l, err
	}
	if l.EventTypes, err = repo.ListEventTypes(ctx); err != nil {
		return l, err
	}
	if l.Organizations, err = repo.ListOrganizations(ctx); err != nil {
		return l, err
	}
	return l, nil
}
