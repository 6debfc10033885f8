package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jw6ventures/volunteerportal/internal/config"
)

func handler() http.Handler {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	return Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(TokenFromContext(r.Context())))
	}))
}

func TestIssuesTokenOnGet(t *testing.T) {
	rec := httptest.NewRecorder()
	handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, rec.Body.String())
	assert.False(t, cookies[0].Secure)
}

func TestRejectsPostWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/individual-events", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
	rec := httptest.NewRecorder()
	handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptsFormField(t *testing.T) {
	form := url.Values{FieldName: {"tok"}}
	req := httptest.NewRequest(http.MethodPost, "/individual-events", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
	rec := httptest.NewRecorder()
	handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAcceptsHeaderAndRejectsMismatch(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/individual-events/3", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
	req.Header.Set(HeaderName, "tok")
	rec := httptest.NewRecorder()
	handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.Header.Set(HeaderName, "other")
	rec = httptest.NewRecorder()
	handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
