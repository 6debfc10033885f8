package store

import "time"

// User is a volunteer authenticated via OIDC.
type User struct {
	ID           int64
	OAuthSubject string
	PrimaryEmail string
	OfficeID     *int64
	Admin        bool
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// APIToken is a per-client credential for the JSON API.
type APIToken struct {
	ID         int64
	UserID     int64
	Label      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}

// Active reports whether the token can still authenticate at now.
func (t APIToken) Active(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}

// EventFilter narrows admin event listings.
type EventFilter struct {
	// OfficeID nil lists every office.
	OfficeID *int64
	// Title and Organization are case-insensitive substring matches; empty
	// means no filter.
	Title        string
	Organization string
	Sort         string
}
