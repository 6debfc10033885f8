package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jw6ventures/volunteerportal/internal/portal"
)

func writeEnvelope(w http.ResponseWriter, status int, env any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, Email: "vol@example.com", Token: "secret"})
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	assert.Error(t, err)
}

func TestClientSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		writeEnvelope(w, http.StatusOK, portal.Envelope[portal.Lookups]{Data: portal.Lookups{
			Offices: []portal.Office{{ID: 1, Name: "Denver"}},
		}})
	}))

	l, err := c.Lookups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vol@example.com", gotUser)
	assert.Equal(t, "secret", gotPass)
	require.Len(t, l.Offices, 1)
	assert.Equal(t, "Denver", l.Offices[0].Name)
}

func TestClientEventsQuery(t *testing.T) {
	var query string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, portal.Envelope[[]portal.Event]{Data: []portal.Event{{ID: 3}}})
	}))

	events, err := c.Events(context.Background(), EventQuery{OfficeID: portal.CurrentOffice, Sort: portal.SortStartsAtAsc})
	require.NoError(t, err)
	assert.Equal(t, "officeId=current&sortBy=STARTS_AT_ASC", query)
	assert.Len(t, events, 1)

	_, err = c.Events(context.Background(), EventQuery{Title: "park clean", Organization: "Food", Sort: portal.SortTitleAsc})
	require.NoError(t, err)
	assert.Equal(t, "organization=Food&sortBy=TITLE_ASC&title=park+clean", query)
}

func TestClientValidationError(t *testing.T) {
	verr := &portal.ValidationError{Fields: map[string]string{"description": "is required"}}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnprocessableEntity, portal.Envelope[any]{Errors: verr.FieldErrors()})
	}))

	_, err := c.SaveIndividualEvent(context.Background(), portal.IndividualEventInput{ID: portal.SentinelID})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.NotNil(t, apiErr.Validation())
	assert.Equal(t, "is required", apiErr.Validation().Fields["description"])
}

func TestClientStatusSentinels(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, "unauthorized\n", ErrUnauthorized},
		{http.StatusForbidden, `{"data":null,"errors":[{"message":"forbidden"}]}`, ErrForbidden},
		{http.StatusNotFound, `{"data":null,"errors":[{"message":"not found"}]}`, ErrNotFound},
	}
	for _, tt := range tests {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		}))
		_, err := c.DeleteIndividualEvent(context.Background(), 9)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Nil(t, apiErr.Validation())
		require.Len(t, apiErr.Errors, 1)
	}
}
