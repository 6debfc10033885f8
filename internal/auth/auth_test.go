package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jw6ventures/volunteerportal/internal/config"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

type fakeUsers struct {
	byID     map[int64]*store.User
	upserted []string
}

func newFakeUsers(users ...*store.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*store.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) UpsertOAuthUser(_ context.Context, subject, email string, admin bool) (*store.User, error) {
	f.upserted = append(f.upserted, subject)
	u := &store.User{ID: int64(len(f.byID) + 1), OAuthSubject: subject, PrimaryEmail: email, Admin: admin}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*store.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*store.User, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.PrimaryEmail, email) {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeTokens struct {
	tokens  []store.APIToken
	touched []int64
}

func (f *fakeTokens) Create(_ context.Context, t store.APIToken) (*store.APIToken, error) {
	t.ID = int64(len(f.tokens) + 1)
	t.CreatedAt = time.Now()
	f.tokens = append(f.tokens, t)
	return &t, nil
}

func (f *fakeTokens) ListActiveByUser(_ context.Context, userID int64) ([]store.APIToken, error) {
	var out []store.APIToken
	for _, t := range f.tokens {
		if t.UserID == userID && t.Active(time.Now()) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokens) ListByUser(ctx context.Context, userID int64) ([]store.APIToken, error) {
	return f.ListActiveByUser(ctx, userID)
}

func (f *fakeTokens) Revoke(context.Context, int64, int64) error { return nil }

func (f *fakeTokens) TouchLastUsed(_ context.Context, id int64) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeAuthenticator struct {
	identity Identity
	err      error
}

func (f fakeAuthenticator) AuthCodeURL(state string) string {
	return "https://id.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f fakeAuthenticator) Exchange(context.Context, string) (Identity, error) {
	return f.identity, f.err
}

func testConfig() *config.Config {
	cfg := &config.Config{BaseURL: "http://localhost:8080", AdminEmails: []string{"boss@example.com"}}
	cfg.Session.Secret = strings.Repeat("k", 32)
	return cfg
}

func newTestService(users *fakeUsers, tokens *fakeTokens, authn Authenticator) *Service {
	cfg := testConfig()
	return NewService(cfg, users, tokens, NewSessionManager(cfg), authn, nil)
}

func TestSessionRoundTrip(t *testing.T) {
	m := NewSessionManager(testConfig())
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, 42))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	id, ok := m.CurrentUserID(req)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestSessionExpired(t *testing.T) {
	m := NewSessionManager(testConfig())
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, 42))

	m.now = func() time.Time { return time.Now().Add(sessionTTL + time.Hour) }
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	_, ok := m.CurrentUserID(req)
	assert.False(t, ok)
}

func TestOAuthFlow(t *testing.T) {
	users := newFakeUsers()
	svc := newTestService(users, &fakeTokens{}, fakeAuthenticator{identity: Identity{Subject: "sub-1", Email: "Boss@example.com"}})

	begin := httptest.NewRecorder()
	svc.BeginOAuth(begin, httptest.NewRequest(http.MethodGet, "/auth/login?return_to=/tokens", nil))
	require.Equal(t, http.StatusFound, begin.Code)
	loc, err := url.Parse(begin.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cb := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	for _, c := range begin.Result().Cookies() {
		cb.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	svc.HandleOAuthCallback(rec, cb)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/tokens", rec.Header().Get("Location"))
	assert.Equal(t, []string{"sub-1"}, users.upserted)
	assert.True(t, users.byID[1].Admin)
}

func TestOAuthCallbackRejectsWrongState(t *testing.T) {
	svc := newTestService(newFakeUsers(), &fakeTokens{}, fakeAuthenticator{})

	begin := httptest.NewRecorder()
	svc.BeginOAuth(begin, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	cb := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
	for _, c := range begin.Result().Cookies() {
		cb.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	svc.HandleOAuthCallback(rec, cb)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSafeReturnPath(t *testing.T) {
	assert.Equal(t, "/events", safeReturnPath("/events"))
	assert.Empty(t, safeReturnPath("//evil.example.com"))
	assert.Empty(t, safeReturnPath("https://evil.example.com"))
}

func TestRequireAPIAuthWithToken(t *testing.T) {
	users := newFakeUsers(&store.User{ID: 7, PrimaryEmail: "vol@example.com"})
	tokens := &fakeTokens{}
	svc := newTestService(users, tokens, fakeAuthenticator{})

	plaintext, created, err := svc.CreateAPIToken(context.Background(), 7, " laptop ", 0)
	require.NoError(t, err)
	assert.Equal(t, "laptop", created.Label)
	assert.NotEqual(t, plaintext, created.TokenHash)

	var seen *store.User
	h := svc.RequireAPIAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		assert.Equal(t, MethodAPIToken, MethodFromContext(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/individual-events", nil)
	req.SetBasicAuth("vol@example.com", plaintext)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(7), seen.ID)
	assert.Equal(t, []int64{created.ID}, tokens.touched)

	bad := httptest.NewRequest(http.MethodGet, "/api/individual-events", nil)
	bad.SetBasicAuth("vol@example.com", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAPIAuthAnonymous(t *testing.T) {
	svc := newTestService(newFakeUsers(), &fakeTokens{}, fakeAuthenticator{})
	h := svc.RequireAPIAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lookups", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

func TestRequireSessionRedirects(t *testing.T) {
	svc := newTestService(newFakeUsers(), &fakeTokens{}, fakeAuthenticator{})
	h := svc.RequireSession(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login?return_to=/events", rec.Header().Get("Location"))
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUser(req.Context(), &store.User{ID: 1}, MethodSession)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUser(req.Context(), &store.User{ID: 1, Admin: true}, MethodSession)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
