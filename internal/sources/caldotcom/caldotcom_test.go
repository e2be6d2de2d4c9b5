package caldotcom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/models"
)

const bookingsPayload = `{
	"bookings": [
		{
			"uid": "bk_abc123",
			"title": "Tennis Lesson with Sam",
			"startTime": "2026-09-10T14:00:00Z",
			"endTime": "2026-09-10T15:00:00Z",
			"location": "Court 3",
			"status": "ACCEPTED",
			"attendees": [{"email": "sam@example.com", "name": "Sam"}],
			"user": {"email": "coach@club.com", "name": "Coach"}
		},
		{
			"uid": "bk_cancelled",
			"title": "Cancelled slot",
			"startTime": "2026-09-11T14:00:00Z",
			"status": "CANCELLED"
		},
		{
			"uid": "bk_outside",
			"title": "Lesson far in the future",
			"startTime": "2027-06-01T14:00:00Z",
			"status": "ACCEPTED"
		}
	]
}`

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	source, err := NewSource(&Config{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return source
}

func TestFetchEvents(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bookingsPayload))
	})

	timeMin := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	timeMax := timeMin.AddDate(0, 0, 90)

	events, err := source.FetchEvents(context.Background(), timeMin, timeMax)
	require.NoError(t, err)

	// cancelled and out-of-window bookings are dropped
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, "bk_abc123", event.ExternalID)
	assert.Equal(t, models.SourceCalDotCom, event.Source)
	assert.Equal(t, "Court 3", event.Location)
	require.Len(t, event.Attendees, 1)
	assert.Equal(t, "sam@example.com", event.Attendees[0].Email)
	require.NotNil(t, event.Organizer)
	assert.Equal(t, "coach@club.com", event.Organizer.Email)
}

func TestFetchEvents_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantType   errors.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, errors.ErrTypeAuth},
		{"forbidden", http.StatusForbidden, errors.ErrTypeAuth},
		{"throttled", http.StatusTooManyRequests, errors.ErrTypeRateLimit},
		{"server error", http.StatusInternalServerError, errors.ErrTypeConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			_, err := source.FetchEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.GetType(err))
		})
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"triggerEvent":"BOOKING_CREATED"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifySignature(secret, body, signature))
	assert.False(t, VerifySignature(secret, body, "deadbeef"))
	assert.False(t, VerifySignature(secret, []byte("tampered"), signature))

	// empty secret disables verification
	assert.True(t, VerifySignature("", body, ""))
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"triggerEvent": "BOOKING_CREATED",
		"payload": {
			"uid": "bk_hook1",
			"title": "Coaching session",
			"startTime": "2026-09-12T09:00:00Z",
			"endTime": "2026-09-12T10:00:00Z",
			"status": "ACCEPTED",
			"attendees": [{"email": "alex@example.com", "name": "Alex"}],
			"organizer": {"email": "coach@club.com", "name": "Coach"}
		}
	}`)

	event, err := ParseWebhook(body)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "bk_hook1", event.ExternalID)
	assert.Equal(t, "Coaching session", event.Title)
	require.NotNil(t, event.Organizer)
	assert.Equal(t, "coach@club.com", event.Organizer.Email)
}

func TestParseWebhook_IgnoredTrigger(t *testing.T) {
	body := []byte(`{"triggerEvent": "MEETING_ENDED", "payload": {"uid": "bk_x", "startTime": "2026-09-12T09:00:00Z"}}`)

	event, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestParseWebhook_Malformed(t *testing.T) {
	_, err := ParseWebhook([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeValidation, errors.GetType(err))

	_, err = ParseWebhook([]byte(`{"triggerEvent": "BOOKING_CREATED", "payload": {}}`))
	require.Error(t, err)
}
