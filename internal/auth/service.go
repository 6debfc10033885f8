package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jw6ventures/volunteerportal/internal/config"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

// ErrInvalidCredentials is returned for unknown emails and wrong tokens alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service encapsulates authentication flows for OAuth logins and API tokens.
type Service struct {
	cfg      *config.Config
	users    store.UserRepository
	tokens   store.APITokenRepository
	sessions *SessionManager
	authn    Authenticator
	logger   *slog.Logger
}

func NewService(cfg *config.Config, users store.UserRepository, tokens store.APITokenRepository, sessions *SessionManager, authn Authenticator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, users: users, tokens: tokens, sessions: sessions, authn: authn, logger: logger}
}

// BeginOAuth starts the OAuth/OIDC authorization flow.
func (s *Service) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.IssueState(w, safeReturnPath(r.URL.Query().Get("return_to")))
	if err != nil {
		s.logger.Error("issue oauth state", "error", err)
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.authn.AuthCodeURL(state), http.StatusFound)
}

// HandleOAuthCallback completes the OAuth flow and creates a session.
func (s *Service) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.logger.Warn("oauth provider returned error", "error", e, "description", q.Get("error_description"))
		http.Error(w, "login was cancelled or denied", http.StatusUnauthorized)
		return
	}

	returnTo, err := s.sessions.ConsumeState(w, r, q.Get("state"))
	if err != nil {
		http.Error(w, "login session expired, please try again", http.StatusBadRequest)
		return
	}

	identity, err := s.authn.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		s.logger.Warn("oauth exchange failed", "error", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}

	user, err := s.users.UpsertOAuthUser(r.Context(), identity.Subject, identity.Email, s.cfg.IsAdminEmail(identity.Email))
	if err != nil {
		s.logger.Error("persist oauth user", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Issue(w, user.ID); err != nil {
		s.logger.Error("issue session", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	s.logger.Info("user signed in", "user_id", user.ID)

	if returnTo == "" {
		returnTo = "/"
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// Logout clears the session and returns to the landing page.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// ValidateAPIToken verifies Basic Auth credentials for API clients.
func (s *Service) ValidateAPIToken(ctx context.Context, email, token string) (*store.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	active, err := s.tokens.ListActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, t := range active {
		if !t.Active(now) || !TokenMatches(t.TokenHash, token) {
			continue
		}
		if err := s.tokens.TouchLastUsed(ctx, t.ID); err != nil {
			s.logger.Warn("update token last_used_at", "token_id", t.ID, "error", err)
		}
		return user, nil
	}
	return nil, ErrInvalidCredentials
}

// CreateAPIToken issues a new token for userID and returns its plaintext.
// A zero ttl never expires.
func (s *Service) CreateAPIToken(ctx context.Context, userID int64, label string, ttl time.Duration) (string, *store.APIToken, error) {
	plaintext, hash, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}
	token := store.APIToken{UserID: userID, Label: strings.TrimSpace(label), TokenHash: hash}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		token.ExpiresAt = &exp
	}
	created, err := s.tokens.Create(ctx, token)
	if err != nil {
		return "", nil, err
	}
	return plaintext, created, nil
}

// RequireSession loads the signed-in user or redirects to the login page.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessionUser(r)
		if !ok {
			http.Redirect(w, r, "/auth/login?return_to="+r.URL.EscapedPath(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, MethodSession)))
	})
}

// RequireAPIAuth accepts Basic Auth (email and API token) or a browser
// session.
func (s *Service) RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email, token, ok := r.BasicAuth(); ok {
			if email == "" || token == "" {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			user, err := s.ValidateAPIToken(r.Context(), email, token)
			if err != nil {
				if !errors.Is(err, ErrInvalidCredentials) {
					s.logger.Error("validate api token", "error", err)
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="Volunteer Portal API"`)
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, MethodAPIToken)))
			return
		}

		if user, ok := s.sessionUser(r); ok {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, MethodSession)))
			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="Volunteer Portal API"`)
		http.Error(w, "authentication required", http.StatusUnauthorized)
	})
}

// RequireAdmin rejects users without the admin flag. It must run after one
// of the authentication middlewares.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.Admin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) sessionUser(r *http.Request) (*store.User, bool) {
	id, ok := s.sessions.CurrentUserID(r)
	if !ok {
		return nil, false
	}
	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("load session user", "user_id", id, "error", err)
		}
		return nil, false
	}
	return user, true
}

// safeReturnPath only allows local absolute paths.
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}
