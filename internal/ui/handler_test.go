package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/config"
	"github.com/jw6ventures/volunteerportal/internal/portal"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

type fakeLookupRepo struct{}

func (fakeLookupRepo) ListOffices(context.Context) ([]portal.Office, error) {
	return []portal.Office{{ID: 1, Name: "Denver"}, {ID: 2, Name: "Boston"}}, nil
}
func (fakeLookupRepo) ListEventTypes(context.Context) ([]portal.EventType, error) {
	return []portal.EventType{{ID: 10, Title: "Skills based"}}, nil
}
func (fakeLookupRepo) ListOrganizations(context.Context) ([]portal.Organization, error) {
	return []portal.Organization{{ID: 20, Name: "Food Bank"}}, nil
}

type fakeIndividualRepo struct {
	events []portal.IndividualEvent
	saved  []portal.IndividualEventInput
}

func (f *fakeIndividualRepo) ListByUser(context.Context, int64) ([]portal.IndividualEvent, error) {
	return f.events, nil
}

func (f *fakeIndividualRepo) GetByID(_ context.Context, _ int64, id int64) (*portal.IndividualEvent, error) {
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeIndividualRepo) Save(_ context.Context, _ int64, in portal.IndividualEventInput) (*portal.IndividualEvent, error) {
	f.saved = append(f.saved, in)
	switch {
	case in.OrganizationID == 98:
		return nil, &store.ReferenceError{Field: "organization.id"}
	case in.OfficeID == 97:
		return nil, store.ErrInvalidReference
	}
	id := in.ID
	if in.IsNew() {
		id = int64(len(f.events) + 1)
	}
	return &portal.IndividualEvent{ID: id, Description: in.Description}, nil
}

func (f *fakeIndividualRepo) Delete(_ context.Context, _ int64, id int64) error {
	for i, e := range f.events {
		if e.ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeEventRepo struct {
	events     []portal.Event
	lastFilter store.EventFilter
}

func (f *fakeEventRepo) List(_ context.Context, filter store.EventFilter) ([]portal.Event, error) {
	f.lastFilter = filter
	return f.events, nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, id int64) (*portal.Event, error) {
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeEventRepo) Delete(ctx context.Context, id int64) (*portal.Event, error) {
	return f.GetByID(ctx, id)
}

type fakeTokenRepo struct {
	tokens []store.APIToken
}

func (f *fakeTokenRepo) Create(_ context.Context, t store.APIToken) (*store.APIToken, error) {
	t.ID = int64(len(f.tokens) + 1)
	t.CreatedAt = time.Now()
	f.tokens = append(f.tokens, t)
	return &t, nil
}
func (f *fakeTokenRepo) ListActiveByUser(context.Context, int64) ([]store.APIToken, error) {
	return f.tokens, nil
}
func (f *fakeTokenRepo) ListByUser(context.Context, int64) ([]store.APIToken, error) {
	return f.tokens, nil
}
func (f *fakeTokenRepo) Revoke(_ context.Context, _ int64, id int64) error {
	for i := range f.tokens {
		if f.tokens[i].ID == id {
			now := time.Now()
			f.tokens[i].RevokedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}
func (f *fakeTokenRepo) TouchLastUsed(context.Context, int64) error { return nil }

type testEnv struct {
	handler    *Handler
	individual *fakeIndividualRepo
	events     *fakeEventRepo
	tokens     *fakeTokenRepo
}

func newTestEnv() *testEnv {
	env := &testEnv{
		individual: &fakeIndividualRepo{},
		events:     &fakeEventRepo{},
		tokens:     &fakeTokenRepo{},
	}
	s := &store.Store{
		Lookups:          fakeLookupRepo{},
		IndividualEvents: env.individual,
		Events:           env.events,
		APITokens:        env.tokens,
	}
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	cfg.Session.Secret = strings.Repeat("x", 32)
	authService := auth.NewService(cfg, nil, env.tokens, auth.NewSessionManager(cfg), nil, nil)
	env.handler = NewHandler(cfg, s, authService)
	return env
}

func withUser(req *http.Request, user *store.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), user, auth.MethodSession))
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestDashboard(t *testing.T) {
	env := newTestEnv()
	env.individual.events = []portal.IndividualEvent{
		{ID: 1, Duration: 90, Status: portal.StatusApproved},
		{ID: 2, Duration: 30, Status: portal.StatusPending},
	}

	w := httptest.NewRecorder()
	env.handler.Dashboard(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), &store.User{ID: 1, PrimaryEmail: "vol@example.com"}))

	if w.Code != http.StatusOK {
		t.Fatalf("Dashboard() status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"2 reported events", "1 pending", "1:30 approved volunteer hours", "vol@example.com"} {
		if !strings.Contains(body, want) {
			t.Errorf("Dashboard() body missing %q", want)
		}
	}
}

func TestIndividualEventsPage(t *testing.T) {
	env := newTestEnv()
	env.individual.events = []portal.IndividualEvent{{
		ID:          7,
		Description: "Sorting donations",
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Duration:    75,
		Office:      &portal.Office{ID: 1, Name: "Denver"},
		Status:      portal.StatusPending,
	}}

	w := httptest.NewRecorder()
	office := int64(2)
	env.handler.IndividualEvents(w, withUser(httptest.NewRequest(http.MethodGet, "/individual-events", nil), &store.User{ID: 1, OfficeID: &office}))

	if w.Code != http.StatusOK {
		t.Fatalf("IndividualEvents() status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Sorting donations", "March 1, 2024", "1:15", "PENDING", `<option value="2" selected>Boston</option>`} {
		if !strings.Contains(body, want) {
			t.Errorf("IndividualEvents() body missing %q", want)
		}
	}
}

func TestSaveIndividualEvent(t *testing.T) {
	valid := url.Values{
		"description":     {"Shelter"},
		"office.id":       {"1"},
		"date":            {"2024-03-01"},
		"duration":        {"60"},
		"eventType.id":    {"10"},
		"organization.id": {"20"},
	}

	testCases := []struct {
		name         string
		mutate       func(url.Values)
		wantStatus   int
		wantLocation string
		wantBody     string
		wantSaved    int
	}{
		{
			name:         "create",
			mutate:       func(url.Values) {},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/individual-events?status=created",
			wantSaved:    1,
		},
		{
			name:         "update",
			mutate:       func(v url.Values) { v.Set("id", "7") },
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/individual-events?status=updated",
			wantSaved:    1,
		},
		{
			name:       "missing description",
			mutate:     func(v url.Values) { v.Del("description") },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "Description is required",
		},
		{
			name:       "duration over a day",
			mutate:     func(v url.Values) { v.Set("duration", "1441") },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "Duration must be less than or equal to 24 hours",
		},
		{
			name:       "unknown organization",
			mutate:     func(v url.Values) { v.Set("organization.id", "98") },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "Organization must be a known organization",
			wantSaved:  1,
		},
		{
			name:       "unknown reference without a column",
			mutate:     func(v url.Values) { v.Set("office.id", "97") },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "office, event type or organization does not exist",
			wantSaved:  1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			values := url.Values{}
			for k, v := range valid {
				values[k] = append([]string(nil), v...)
			}
			tc.mutate(values)

			w := httptest.NewRecorder()
			env.handler.SaveIndividualEvent(w, withUser(postForm("/individual-events", values), &store.User{ID: 1}))

			if w.Code != tc.wantStatus {
				t.Fatalf("SaveIndividualEvent() status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantLocation != "" && w.Header().Get("Location") != tc.wantLocation {
				t.Errorf("Location = %q, want %q", w.Header().Get("Location"), tc.wantLocation)
			}
			if tc.wantBody != "" && !strings.Contains(w.Body.String(), tc.wantBody) {
				t.Errorf("body missing %q", tc.wantBody)
			}
			if len(env.individual.saved) != tc.wantSaved {
				t.Errorf("saved %d inputs, want %d", len(env.individual.saved), tc.wantSaved)
			}
		})
	}
}

func TestEditIndividualEvent(t *testing.T) {
	env := newTestEnv()
	env.individual.events = []portal.IndividualEvent{{ID: 7, Description: "Tutoring", Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Duration: 45}}

	w := httptest.NewRecorder()
	req := withID(withUser(httptest.NewRequest(http.MethodGet, "/individual-events/7/edit", nil), &store.User{ID: 1}), "7")
	env.handler.EditIndividualEvent(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("EditIndividualEvent() status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `name="id" value="7"`) || !strings.Contains(body, `value="2024-05-02"`) {
		t.Errorf("edit form not pre-filled")
	}

	w = httptest.NewRecorder()
	req = withID(withUser(httptest.NewRequest(http.MethodGet, "/individual-events/8/edit", nil), &store.User{ID: 1}), "8")
	env.handler.EditIndividualEvent(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("EditIndividualEvent() missing status = %d, want 404", w.Code)
	}
}

func TestDeleteIndividualEventHandler(t *testing.T) {
	testCases := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "owned event", id: "3", wantStatus: http.StatusSeeOther},
		{name: "missing event", id: "4", wantStatus: http.StatusNotFound},
		{name: "invalid id", id: "abc", wantStatus: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.individual.events = []portal.IndividualEvent{{ID: 3}}

			w := httptest.NewRecorder()
			req := withID(withUser(httptest.NewRequest(http.MethodPost, "/individual-events/"+tc.id+"/delete", nil), &store.User{ID: 1}), tc.id)
			env.handler.DeleteIndividualEvent(w, req)
			if w.Code != tc.wantStatus {
				t.Errorf("DeleteIndividualEvent() status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestAdminEvents(t *testing.T) {
	env := newTestEnv()
	start := time.Date(2024, 4, 9, 15, 0, 0, 0, time.Local)
	env.events.events = []portal.Event{{
		ID:          1,
		Title:       "Park cleanup",
		StartsAt:    start,
		EndsAt:      start.Add(150 * time.Minute),
		Capacity:    20,
		SignupCount: 12,
		Office:      &portal.Office{ID: 2, Name: "Boston"},
	}}
	office := int64(2)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/events?sortBy=STARTS_AT_ASC", nil)
	env.handler.AdminEvents(w, withUser(req, &store.User{ID: 1, Admin: true, OfficeID: &office}))

	if w.Code != http.StatusOK {
		t.Fatalf("AdminEvents() status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Park cleanup", "Apr 09, 2024", "2:30", "12 / 20"} {
		if !strings.Contains(body, want) {
			t.Errorf("AdminEvents() body missing %q", want)
		}
	}
	if env.events.lastFilter.OfficeID == nil || *env.events.lastFilter.OfficeID != 2 {
		t.Errorf("expected current office filter, got %+v", env.events.lastFilter)
	}
	if env.events.lastFilter.Sort != "STARTS_AT_ASC" {
		t.Errorf("sort = %q", env.events.lastFilter.Sort)
	}
}

func TestAdminEventsColumnFilters(t *testing.T) {
	env := newTestEnv()
	env.events.events = []portal.Event{{ID: 1, Title: "Park cleanup", Organization: &portal.Organization{ID: 3, Name: "Food Bank"}}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/events?officeId=all&title=+park+&organization=food&sortBy=title_desc", nil)
	env.handler.AdminEvents(w, withUser(req, &store.User{ID: 1, Admin: true}))

	if w.Code != http.StatusOK {
		t.Fatalf("AdminEvents() status = %d", w.Code)
	}
	got := env.events.lastFilter
	if got.OfficeID != nil || got.Title != "park" || got.Organization != "food" || got.Sort != "TITLE_DESC" {
		t.Errorf("unexpected filter %+v", got)
	}
	body := w.Body.String()
	for _, want := range []string{`name="title" value="park"`, `name="organization" value="food"`, `value="TITLE_DESC" selected`, "Food Bank"} {
		if !strings.Contains(body, want) {
			t.Errorf("AdminEvents() body missing %q", want)
		}
	}
}

func TestEventsPageURLKeepsFilters(t *testing.T) {
	got := string(eventsPageURL("all", store.EventFilter{Title: "park", Organization: "Food Bank", Sort: "TITLE_ASC"}, 2))
	want := "/admin/events?officeId=all&organization=Food+Bank&page=2&sortBy=TITLE_ASC&title=park"
	if got != want {
		t.Errorf("eventsPageURL() = %q, want %q", got, want)
	}
}

func TestAdminEventsWithoutOffice(t *testing.T) {
	env := newTestEnv()
	env.events.events = []portal.Event{{ID: 1, Title: "Park cleanup"}}

	w := httptest.NewRecorder()
	env.handler.AdminEvents(w, withUser(httptest.NewRequest(http.MethodGet, "/admin/events", nil), &store.User{ID: 1, Admin: true}))

	if w.Code != http.StatusOK {
		t.Fatalf("AdminEvents() status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "Park cleanup") {
		t.Error("events listed for admin without an office")
	}
}

func TestCreateAndRevokeToken(t *testing.T) {
	env := newTestEnv()
	user := &store.User{ID: 1}

	w := httptest.NewRecorder()
	env.handler.CreateToken(w, withUser(postForm("/tokens", url.Values{"label": {"laptop"}, "expires_in_days": {"30"}}), user))
	if w.Code != http.StatusOK {
		t.Fatalf("CreateToken() status = %d", w.Code)
	}
	if len(env.tokens.tokens) != 1 || env.tokens.tokens[0].ExpiresAt == nil {
		t.Fatalf("expected one expiring token, got %+v", env.tokens.tokens)
	}
	if !strings.Contains(w.Body.String(), "it will not be shown again") {
		t.Error("plaintext token not shown")
	}

	w = httptest.NewRecorder()
	env.handler.RevokeToken(w, withID(withUser(httptest.NewRequest(http.MethodPost, "/tokens/1/revoke", nil), user), "1"))
	if w.Code != http.StatusSeeOther || env.tokens.tokens[0].RevokedAt == nil {
		t.Errorf("RevokeToken() status = %d, revoked = %v", w.Code, env.tokens.tokens[0].RevokedAt)
	}

	w = httptest.NewRecorder()
	env.handler.CreateToken(w, withUser(postForm("/tokens", url.Values{"label": {" "}}), user))
	if w.Code != http.StatusBadRequest {
		t.Errorf("CreateToken() without label status = %d", w.Code)
	}
}
