package caldotcom

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/models"
)

// SignatureHeader is the header Cal.com signs webhook deliveries with.
const SignatureHeader = "X-Cal-Signature-256"

// Webhook trigger events that represent a live booking.
const (
	TriggerBookingCreated     = "BOOKING_CREATED"
	TriggerBookingRescheduled = "BOOKING_RESCHEDULED"
)

// webhookEnvelope mirrors the wire shape of a Cal.com webhook delivery.
type webhookEnvelope struct {
	TriggerEvent string  `json:"triggerEvent"`
	Payload      booking `json:"payload"`
}

// VerifySignature checks the HMAC-SHA256 hex signature Cal.com sends
// with each delivery. An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook normalizes one webhook delivery into a canonical event.
// Deliveries for trigger events other than booking creation or
// reschedule return (nil, nil): they are acknowledged but produce no
// lesson.
func ParseWebhook(body []byte) (*models.CanonicalEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.ValidationError("malformed cal.com webhook payload")
	}

	switch envelope.TriggerEvent {
	case TriggerBookingCreated, TriggerBookingRescheduled:
	default:
		return nil, nil
	}

	event, ok := toCanonical(&envelope.Payload)
	if !ok {
		return nil, errors.ValidationError("cal.com webhook booking has no uid or start time")
	}

	return &event, nil
}
