package database

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/souhailsouid/adele/internal/model"
)

// SaveSnapshot persists a score result. payload is stored as JSON.
func (db *DB) SaveSnapshot(ticker, kind string, composite float64, label string, payload any) (*model.ScoreSnapshot, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot payload: %w", err)
	}

	snap := &model.ScoreSnapshot{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Kind:      kind,
		Composite: composite,
		Label:     label,
		Payload:   string(data),
		CreatedAt: db.now(),
	}

	_, err = db.Exec(`
		INSERT INTO score_snapshots (id, ticker, kind, composite, label, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, snap.ID, snap.Ticker, snap.Kind, snap.Composite, snap.Label, snap.Payload, snap.CreatedAt)
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// SaveRecommendation persists a position recommendation
func (db *DB) SaveRecommendation(r *model.Recommendation) (*model.ScoreSnapshot, error) {
	return db.SaveSnapshot(r.Ticker, model.KindRecommendation, r.Composite, r.Recommendation, r)
}

// SaveFlowDetection persists an institutional flow detection
func (db *DB) SaveFlowDetection(d *model.FlowDetection) (*model.ScoreSnapshot, error) {
	return db.SaveSnapshot(d.Ticker, model.KindInstitutional, d.Composite, d.AlertLevel, d)
}

// LatestSnapshot returns the most recent snapshot of a kind for ticker, or nil
func (db *DB) LatestSnapshot(ticker, kind string) (*model.ScoreSnapshot, error) {
	var s model.ScoreSnapshot
	err := db.QueryRow(`
		SELECT id, ticker, kind, composite, label, payload, created_at
		FROM score_snapshots
		WHERE ticker = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, ticker, kind).Scan(&s.ID, &s.Ticker, &s.Kind, &s.Composite, &s.Label, &s.Payload, &s.CreatedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &s, nil
}

// History returns up to limit snapshots of a kind for ticker, newest first.
// An empty kind returns every kind.
func (db *DB) History(ticker, kind string, limit int) ([]model.ScoreSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, ticker, kind, composite, label, payload, created_at
		FROM score_snapshots
		WHERE ticker = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, ticker, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []model.ScoreSnapshot{}
	for rows.Next() {
		var s model.ScoreSnapshot
		if err := rows.Scan(&s.ID, &s.Ticker, &s.Kind, &s.Composite, &s.Label, &s.Payload, &s.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, s)
	}
	return history, rows.Err()
}
