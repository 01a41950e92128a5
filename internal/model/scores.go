package model

import "time"

// Score kinds persisted in snapshots history
const (
	KindRecommendation = "recommendation"
	KindInstitutional  = "institutional_flow"
)

// Position recommendations
const (
	RecommendationReinforce = "RENFORCER"
	RecommendationWatch     = "SURVEILLER"
	RecommendationLighten   = "ALLÉGER"
)

// Institutional flow alert levels
const (
	AlertHigh    = "HIGH_ALERT"
	AlertMonitor = "MONITOR"
	AlertLow     = "LOW"
)

// Directions
const (
	DirectionBullish = "BULLISH"
	DirectionBearish = "BEARISH"
	DirectionNeutral = "NEUTRAL"
)

// FactorScore is one normalized sub-score of a composite
type FactorScore struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason,omitempty"`
}

// Recommendation is the weighted position recommendation for a ticker
type Recommendation struct {
	Ticker         string        `json:"ticker"`
	Composite      float64       `json:"composite"` // -1..1
	Recommendation string        `json:"recommendation"`
	Confidence     float64       `json:"confidence"` // share of weight backed by data
	Factors        []FactorScore `json:"factors"`
	Reasons        []string      `json:"reasons"`
	Timestamp      time.Time     `json:"timestamp"`
}

// FlowDetection is the institutional activity assessment for a ticker
type FlowDetection struct {
	Ticker     string            `json:"ticker"`
	Composite  float64           `json:"composite"` // 0..1
	AlertLevel string            `json:"alert_level"`
	Direction  string            `json:"direction"`
	Factors    []FactorScore     `json:"factors"`
	Signals    []string          `json:"signals"`
	Anomaly    *AnomalyDetection `json:"anomaly,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ScoreSnapshot is a persisted score result
type ScoreSnapshot struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Kind      string    `json:"kind"`
	Composite float64   `json:"composite"`
	Label     string    `json:"label"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment status constants
const (
	PaymentStatusPending  = "pending"
	PaymentStatusAccepted = "accepted"
	PaymentStatusClosed   = "closed"
	PaymentStatusExpired  = "expired"
)

// UserSubscription represents a dashboard user's subscription status
type UserSubscription struct {
	UserID               string    `json:"user_id"`
	Email                string    `json:"email"`
	Status               string    `json:"status"` // pending, accepted, closed, expired
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"`
	PaymentID            string    `json:"payment_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
}

// Active reports whether the subscription grants access at t
func (s *UserSubscription) Active(t time.Time) bool {
	return s != nil && s.Status == PaymentStatusAccepted && t.Before(s.ExpiresAt)
}

// WatchlistEntry is a ticker followed by a user
type WatchlistEntry struct {
	UserID  string    `json:"user_id"`
	Ticker  string    `json:"ticker"`
	AddedAt time.Time `json:"added_at"`
}
