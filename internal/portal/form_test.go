package portal

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validValues() url.Values {
	return url.Values{
		"id":              {"7"},
		"description":     {"  Food bank shift "},
		"office.id":       {"2"},
		"date":            {"2024-03-09"},
		"duration":        {"90"},
		"eventType.id":    {"3"},
		"organization.id": {"4"},
	}
}

func TestParseIndividualEventForm(t *testing.T) {
	form := ParseIndividualEventForm(validValues())

	assert.Equal(t, int64(7), form.ID)
	assert.Equal(t, "Food bank shift", form.Description)
	require.NotNil(t, form.Office)
	assert.Equal(t, int64(2), form.Office.ID)
	require.NotNil(t, form.Date)
	assert.Equal(t, "2024-03-09", form.DateValue())
	assert.Equal(t, 90, form.Duration)
	assert.Equal(t, int64(3), RefID(form.EventType))
	assert.Equal(t, int64(4), RefID(form.Organization))
}

func TestParseIndividualEventFormDefaults(t *testing.T) {
	form := ParseIndividualEventForm(url.Values{
		"id":        {"abc"},
		"office.id": {"0"},
		"date":      {"yesterday"},
		"duration":  {"-15"},
	})

	assert.Equal(t, SentinelID, form.ID)
	assert.Nil(t, form.Office)
	assert.Nil(t, form.Date)
	assert.Equal(t, 0, form.Duration)
	assert.Nil(t, form.EventType)
	assert.Equal(t, int64(0), RefID(form.Organization))
}

func TestValidateReturnsInput(t *testing.T) {
	in, err := ParseIndividualEventForm(validValues()).Validate()
	require.NoError(t, err)

	assert.Equal(t, int64(7), in.ID)
	assert.False(t, in.IsNew())
	assert.Equal(t, int64(2), in.OfficeID)
	assert.Equal(t, int64(3), in.EventTypeID)
	assert.Equal(t, int64(4), in.OrganizationID)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), in.Date)
}

func TestValidateMissingFields(t *testing.T) {
	_, err := IndividualEventForm{ID: SentinelID}.Validate()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"description":     "is required",
		"office.id":       "is required",
		"date":            "is required",
		"duration":        "is required",
		"eventType.id":    "is required",
		"organization.id": "is required",
	}, verr.Fields)
	assert.Contains(t, err.Error(), "description is required")
}

func TestValidateDurationBound(t *testing.T) {
	values := validValues()
	values.Set("duration", "1441")

	_, err := ParseIndividualEventForm(values).Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"duration": "must be less than or equal to 24 hours"}, verr.Fields)

	values.Set("duration", "1440")
	_, err = ParseIndividualEventForm(values).Validate()
	assert.NoError(t, err)
}

func TestFormFromEventRoundTrip(t *testing.T) {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	form := FormFromEvent(IndividualEvent{
		ID:           12,
		Description:  "Mentoring",
		Office:       &Office{ID: 1},
		Date:         date,
		Duration:     60,
		EventType:    &EventType{ID: 2},
		Organization: &Organization{ID: 3},
	})

	in, err := form.Validate()
	require.NoError(t, err)
	assert.Equal(t, IndividualEventInput{
		ID:             12,
		Description:    "Mentoring",
		OfficeID:       1,
		Date:           date,
		Duration:       60,
		EventTypeID:    2,
		OrganizationID: 3,
	}, in)
}
