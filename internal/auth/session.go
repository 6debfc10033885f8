package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/jw6ventures/volunteerportal/internal/config"
)

const (
	sessionTTL = 7 * 24 * time.Hour
	stateTTL   = 10 * time.Minute
)

// ErrInvalidState is returned when the OAuth state cookie is missing,
// expired, or does not match the callback.
var ErrInvalidState = errors.New("invalid oauth state")

type sessionValue struct {
	UserID  int64 `json:"uid"`
	Expires int64 `json:"exp"`
}

type stateValue struct {
	State    string `json:"state"`
	ReturnTo string `json:"return_to,omitempty"`
	Expires  int64  `json:"exp"`
}

// SessionManager manages web UI sessions and the short-lived OAuth state
// cookie, both signed and encrypted with securecookie.
type SessionManager struct {
	cookieName string
	stateName  string
	codec      *securecookie.SecureCookie
	secure     bool
	now        func() time.Time
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	hash := sha256.Sum256([]byte(cfg.Session.Secret))
	block := sha256.Sum256(append([]byte("block:"), cfg.Session.Secret...))

	sc := securecookie.New(hash[:], block[:])
	sc.MaxAge(int(sessionTTL.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{
		cookieName: "portal_session",
		stateName:  "portal_oauth_state",
		codec:      sc,
		secure:     secure,
		now:        time.Now,
	}
}

// Issue sets the session cookie for userID.
func (m *SessionManager) Issue(w http.ResponseWriter, userID int64) error {
	expires := m.now().Add(sessionTTL)
	encoded, err := m.codec.Encode(m.cookieName, sessionValue{UserID: userID, Expires: expires.Unix()})
	if err != nil {
		return err
	}
	m.setCookie(w, m.cookieName, encoded, expires)
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	m.setCookie(w, m.cookieName, "", time.Unix(0, 0))
}

// CurrentUserID extracts the user ID from the request session if present.
func (m *SessionManager) CurrentUserID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return 0, false
	}
	var value sessionValue
	if err := m.codec.Decode(m.cookieName, c.Value, &value); err != nil {
		return 0, false
	}
	if value.UserID <= 0 || time.Unix(value.Expires, 0).Before(m.now()) {
		return 0, false
	}
	return value.UserID, true
}

// IssueState stores a fresh OAuth state (and where to land afterwards) and
// returns it for the authorization URL.
func (m *SessionManager) IssueState(w http.ResponseWriter, returnTo string) (string, error) {
	state := uuid.NewString()
	expires := m.now().Add(stateTTL)
	encoded, err := m.codec.Encode(m.stateName, stateValue{State: state, ReturnTo: returnTo, Expires: expires.Unix()})
	if err != nil {
		return "", err
	}
	m.setCookie(w, m.stateName, encoded, expires)
	return state, nil
}

// ConsumeState checks the callback's state against the cookie, clears it,
// and returns the stored return path.
func (m *SessionManager) ConsumeState(w http.ResponseWriter, r *http.Request, state string) (string, error) {
	c, err := r.Cookie(m.stateName)
	if err != nil {
		return "", ErrInvalidState
	}
	m.setCookie(w, m.stateName, "", time.Unix(0, 0))

	var value stateValue
	if err := m.codec.Decode(m.stateName, c.Value, &value); err != nil {
		return "", ErrInvalidState
	}
	if state == "" || value.State != state || time.Unix(value.Expires, 0).Before(m.now()) {
		return "", ErrInvalidState
	}
	return value.ReturnTo, nil
}

func (m *SessionManager) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
