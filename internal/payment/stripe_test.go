package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/souhailsouid/adele/internal/model"
)

func event(eventType, object string) *stripe.Event {
	return &stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(object)},
	}
}

func TestProcessEvent(t *testing.T) {
	s := NewStripeService(Options{WebhookSecret: "whsec_test"})

	tests := []struct {
		name     string
		event    *stripe.Event
		expected EventResult
	}{
		{
			name:  "checkout completed",
			event: event("checkout.session.completed", `{"id":"cs_1","metadata":{"user_id":"u1"},"subscription":"sub_1"}`),
			expected: EventResult{
				UserID: "u1", Status: model.PaymentStatusAccepted, SubscriptionID: "sub_1", PaymentID: "cs_1",
			},
		},
		{
			name:  "checkout completed with client reference",
			event: event("checkout.session.completed", `{"id":"cs_2","client_reference_id":"u2"}`),
			expected: EventResult{
				UserID: "u2", Status: model.PaymentStatusAccepted, PaymentID: "cs_2",
			},
		},
		{
			name:  "subscription deleted",
			event: event("customer.subscription.deleted", `{"id":"sub_1","metadata":{"user_id":"u1"}}`),
			expected: EventResult{
				UserID: "u1", Status: model.PaymentStatusClosed, SubscriptionID: "sub_1",
			},
		},
		{
			name:  "payment failed",
			event: event("invoice.payment_failed", `{"id":"in_1","subscription":"sub_9"}`),
			expected: EventResult{
				Status: model.PaymentStatusPending, SubscriptionID: "sub_9", PaymentID: "in_1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.ProcessEvent(tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *result)
		})
	}
}

func TestProcessEventErrors(t *testing.T) {
	s := NewStripeService(Options{})

	_, err := s.ProcessEvent(event("checkout.session.completed", `{"id":"cs_1"}`))
	assert.Error(t, err)

	_, err = s.ProcessEvent(event("invoice.payment_failed", `{"id":"in_1"}`))
	assert.Error(t, err)

	_, err = s.ProcessEvent(event("customer.created", `{"id":"cus_1"}`))
	assert.True(t, errors.Is(err, ErrUnhandledEvent))
}

func TestVerifyWebhookSignature(t *testing.T) {
	s := NewStripeService(Options{WebhookSecret: "whsec_test"})
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "metadata": {"user_id": "u1"}}}
	}`, stripe.APIVersion))

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	ev, err := s.VerifyWebhookSignature(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)

	result, err := s.ProcessEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, "u1", result.UserID)

	_, err = s.VerifyWebhookSignature(payload, "t=1,v1=bad")
	assert.Error(t, err)
}
