package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/souhailsouid/adele/internal/model"
)

// ErrUnhandledEvent is returned for webhook events that do not affect subscriptions
var ErrUnhandledEvent = errors.New("unhandled event type")

// Options configures the Stripe service
type Options struct {
	APIKey              string
	SubscriptionPriceID string
	WebhookSecret       string
	SuccessURL          string
	CancelURL           string
}

// StripeService handles Stripe payment operations
type StripeService struct {
	SubscriptionPriceID string
	WebhookSecret       string
	SuccessURL          string
	CancelURL           string
	logger              zerolog.Logger
}

// EventResult is the subscription change carried by a webhook event.
// UserID is empty when the event only identifies the Stripe subscription.
type EventResult struct {
	UserID         string
	Status         string
	SubscriptionID string
	PaymentID      string
}

// NewStripeService creates a new Stripe payment service
func NewStripeService(opts Options) *StripeService {
	// Initialize Stripe with the API key
	stripe.Key = opts.APIKey

	return &StripeService{
		SubscriptionPriceID: opts.SubscriptionPriceID,
		WebhookSecret:       opts.WebhookSecret,
		SuccessURL:          opts.SuccessURL,
		CancelURL:           opts.CancelURL,
		logger:              log.With().Str("component", "stripe").Logger(),
	}
}

// CreateCheckoutSession creates a new Stripe checkout session for a subscription
func (s *StripeService) CreateCheckoutSession(userID, email string) (string, string, error) {
	metadata := map[string]string{
		"user_id": userID,
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(s.SuccessURL),
		CancelURL:         stripe.String(s.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.SubscriptionPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		// Copied onto the subscription so cancellation events carry the user
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("creating checkout session: %w", err)
	}

	return sess.ID, sess.URL, nil
}

// VerifyWebhookSignature verifies the signature of a Stripe webhook event
func (s *StripeService) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.WebhookSecret)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ProcessEvent maps a webhook event onto the subscription status it implies
func (s *StripeService) ProcessEvent(event *stripe.Event) (*EventResult, error) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}

		userID := sess.Metadata["user_id"]
		if userID == "" {
			userID = sess.ClientReferenceID
		}
		if userID == "" {
			return nil, fmt.Errorf("user_id not found in session metadata")
		}

		result := &EventResult{UserID: userID, Status: model.PaymentStatusAccepted, PaymentID: sess.ID}
		if sess.Subscription != nil {
			result.SubscriptionID = sess.Subscription.ID
		}
		s.logger.Info().Str("user_id", userID).Str("session_id", sess.ID).Msg("Checkout session completed")
		return result, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription: %w", err)
		}
		return &EventResult{
			UserID:         sub.Metadata["user_id"],
			Status:         model.PaymentStatusClosed,
			SubscriptionID: sub.ID,
		}, nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice: %w", err)
		}
		result := &EventResult{
			UserID:    inv.Metadata["user_id"],
			Status:    model.PaymentStatusPending,
			PaymentID: inv.ID,
		}
		if inv.Subscription != nil {
			result.SubscriptionID = inv.Subscription.ID
		}
		if result.UserID == "" && result.SubscriptionID == "" {
			return nil, fmt.Errorf("invoice %s has no user or subscription", inv.ID)
		}
		return result, nil

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Ignoring webhook event")
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, event.Type)
	}
}

// CancelSubscription cancels a user's Stripe subscription
func (s *StripeService) CancelSubscription(subscriptionID string) error {
	// Cancel the subscription immediately
	params := &stripe.SubscriptionCancelParams{}

	_, err := subscription.Cancel(subscriptionID, params)
	return err
}
