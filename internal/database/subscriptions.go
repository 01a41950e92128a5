package database

import (
	"database/sql"

	"github.com/souhailsouid/adele/internal/model"
)

// CreateSubscription creates or resets a pending subscription for a user
func (db *DB) CreateSubscription(userID, email string) (*model.UserSubscription, error) {
	now := db.now()
	sub := &model.UserSubscription{
		UserID:    userID,
		Email:     email,
		Status:    model.PaymentStatusPending,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 1, 0), // 1 month from now
	}

	_, err := db.Exec(`
		INSERT INTO user_subscriptions (
			user_id, email, status, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET
			email = EXCLUDED.email,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`,
		sub.UserID, sub.Email, sub.Status, sub.CreatedAt, sub.ExpiresAt)

	if err != nil {
		return nil, err
	}

	return sub, nil
}

// GetSubscription retrieves a user's subscription, or nil when there is none
func (db *DB) GetSubscription(userID string) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	var paymentID sql.NullString
	var stripeSubscriptionID sql.NullString

	err := db.QueryRow(`
		SELECT
			user_id, email, status, created_at, expires_at,
			payment_id, stripe_subscription_id
		FROM user_subscriptions
		WHERE user_id = $1
	`, userID).Scan(
		&sub.UserID, &sub.Email, &sub.Status, &sub.CreatedAt, &sub.ExpiresAt,
		&paymentID, &stripeSubscriptionID,
	)

	if err != nil {
		return nil, noRows(err)
	}

	if paymentID.Valid {
		sub.PaymentID = paymentID.String
	}

	if stripeSubscriptionID.Valid {
		sub.StripeSubscriptionID = stripeSubscriptionID.String
	}

	return &sub, nil
}

// UpdateSubscriptionStatus updates a user's subscription status. Accepting a payment
// starts a new one month period.
func (db *DB) UpdateSubscriptionStatus(userID, status, paymentID string) error {
	if status == model.PaymentStatusAccepted {
		_, err := db.Exec(`
			UPDATE user_subscriptions
			SET status = $1, payment_id = $2, expires_at = $3
			WHERE user_id = $4
		`, status, paymentID, db.now().AddDate(0, 1, 0), userID)
		return err
	}

	_, err := db.Exec(`
		UPDATE user_subscriptions
		SET status = $1, payment_id = $2
		WHERE user_id = $3
	`, status, paymentID, userID)

	return err
}

// CheckAndUpdateExpirations marks accepted subscriptions past their expiry as expired
// and returns how many changed
func (db *DB) CheckAndUpdateExpirations() (int64, error) {
	res, err := db.Exec(`
		UPDATE user_subscriptions
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
	`, model.PaymentStatusExpired, model.PaymentStatusAccepted, db.now())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// CloseSubscription closes a user's subscription
func (db *DB) CloseSubscription(userID string) error {
	_, err := db.Exec(`
		UPDATE user_subscriptions
		SET status = $1
		WHERE user_id = $2
	`, model.PaymentStatusClosed, userID)

	return err
}

// UpdateStripeSubscriptionID updates the Stripe subscription ID for a user
func (db *DB) UpdateStripeSubscriptionID(userID, stripeSubscriptionID string) error {
	_, err := db.Exec(`
		UPDATE user_subscriptions
		SET stripe_subscription_id = $1
		WHERE user_id = $2
	`, stripeSubscriptionID, userID)

	return err
}

// UserByStripeSubscription finds the user owning a Stripe subscription, or "" if none
func (db *DB) UserByStripeSubscription(stripeSubscriptionID string) (string, error) {
	var userID string

	err := db.QueryRow(`
		SELECT user_id
		FROM user_subscriptions
		WHERE stripe_subscription_id = $1
	`, stripeSubscriptionID).Scan(&userID)

	if err != nil {
		return "", noRows(err)
	}

	return userID, nil
}
