package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/payment"
)

// maxWebhookBody is the largest Stripe payload accepted
const maxWebhookBody = 65536

type checkoutRequest struct {
	Email string `json:"email"`
}

// handleCheckout starts a Stripe subscription checkout for the calling user
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Billing == nil {
		s.writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if _, err := s.cfg.Store.CreateSubscription(userID, req.Email); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to create subscription")
		s.writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	sessionID, url, err := s.cfg.Billing.CreateCheckoutSession(userID, req.Email)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to create checkout session")
		s.writeError(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"url":        url,
	})
}

// handleSubscription returns the calling user's subscription
func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	sub, err := s.cfg.Store.GetSubscription(userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load subscription")
		s.writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if sub == nil {
		s.writeError(w, http.StatusNotFound, "no subscription")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"subscription": sub,
		"active":       sub.Active(s.now()),
	})
}

// handleCancelSubscription cancels the calling user's Stripe subscription and closes access
func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Billing == nil {
		s.writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	sub, err := s.cfg.Store.GetSubscription(userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load subscription")
		s.writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if sub == nil || sub.StripeSubscriptionID == "" || sub.Status == model.PaymentStatusClosed {
		s.writeError(w, http.StatusNotFound, "no active subscription")
		return
	}

	if err := s.cfg.Billing.CancelSubscription(sub.StripeSubscriptionID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to cancel Stripe subscription")
		s.writeError(w, http.StatusBadGateway, "failed to cancel subscription")
		return
	}
	if err := s.cfg.Store.CloseSubscription(userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to close subscription")
		s.writeError(w, http.StatusInternalServerError, "failed to close subscription")
		return
	}

	s.log.Info().Str("user_id", userID).Str("subscription_id", sub.StripeSubscriptionID).Msg("Subscription cancelled")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": model.PaymentStatusClosed})
}

// handleWebhook applies Stripe subscription events
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Billing == nil || s.cfg.Store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "error reading request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		s.writeError(w, http.StatusBadRequest, "Stripe-Signature header required")
		return
	}

	event, err := s.cfg.Billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to verify webhook signature")
		s.writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	result, err := s.cfg.Billing.ProcessEvent(event)
	if errors.Is(err, payment.ErrUnhandledEvent) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to process webhook event")
		s.writeError(w, http.StatusBadRequest, "error processing event")
		return
	}

	if err := s.applySubscriptionChange(result); err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to update subscription")
		s.writeError(w, http.StatusInternalServerError, "error updating subscription")
		return
	}

	s.log.Info().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("user_id", result.UserID).
		Str("status", result.Status).
		Msg("Webhook processed")

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) applySubscriptionChange(result *payment.EventResult) error {
	if result.UserID == "" && result.SubscriptionID != "" {
		userID, err := s.cfg.Store.UserByStripeSubscription(result.SubscriptionID)
		if err != nil {
			return err
		}
		result.UserID = userID
	}
	if result.UserID == "" {
		s.log.Warn().Str("subscription_id", result.SubscriptionID).Msg("No user found for webhook event")
		return nil
	}

	switch result.Status {
	case model.PaymentStatusClosed:
		return s.cfg.Store.CloseSubscription(result.UserID)
	default:
		if err := s.cfg.Store.UpdateSubscriptionStatus(result.UserID, result.Status, result.PaymentID); err != nil {
			return err
		}
		if result.SubscriptionID != "" {
			return s.cfg.Store.UpdateStripeSubscriptionID(result.UserID, result.SubscriptionID)
		}
		return nil
	}
}
