package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"html/template"
	"net/http"
	"net/url"

	"github.com/jw6ventures/volunteerportal/internal/config"
)

type contextKey struct{}

const (
	CookieName = "portal_csrf"
	HeaderName = "X-CSRF-Token"
	FieldName  = "_csrf"
)

// Middleware keeps a per-browser token in a cookie and requires it back on
// state-changing requests, either as the X-CSRF-Token header or the _csrf
// form field.
func Middleware(cfg *config.Config) func(http.Handler) http.Handler {
	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := cookieToken(w, r, secure)
			if err != nil {
				http.Error(w, "failed to issue csrf token", http.StatusInternalServerError)
				return
			}

			if isStateChanging(r.Method) && !valid(token, submitted(r)) {
				http.Error(w, "invalid csrf token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, token)))
		})
	}
}

func cookieToken(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func submitted(r *http.Request) string {
	if v := r.Header.Get(HeaderName); v != "" {
		return v
	}
	return r.FormValue(FieldName)
}

func valid(expected, provided string) bool {
	return provided != "" && subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// TokenFromContext returns the CSRF token associated with the request.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

// Field renders the hidden form input carrying the request's token.
func Field(ctx context.Context) template.HTML {
	return template.HTML(`<input type="hidden" name="` + FieldName + `" value="` +
		template.HTMLEscapeString(TokenFromContext(ctx)) + `">`)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
