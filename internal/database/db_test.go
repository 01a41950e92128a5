package database

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souhailsouid/adele/internal/model"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDB(t *testing.T) (*DB, *clock) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := Wrap(sqlDB)
	require.NoError(t, err)

	c := &clock{t: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
	db.now = c.now
	return db, c
}

func TestSnapshotsHistory(t *testing.T) {
	db, c := newTestDB(t)

	latest, err := db.LatestSnapshot("AAPL", model.KindRecommendation)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := db.SaveRecommendation(&model.Recommendation{
		Ticker: "AAPL", Composite: 0.3, Recommendation: model.RecommendationReinforce,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	c.advance(time.Minute)
	_, err = db.SaveFlowDetection(&model.FlowDetection{
		Ticker: "AAPL", Composite: 0.8, AlertLevel: model.AlertHigh,
	})
	require.NoError(t, err)

	c.advance(time.Minute)
	_, err = db.SaveRecommendation(&model.Recommendation{
		Ticker: "AAPL", Composite: -0.4, Recommendation: model.RecommendationLighten,
	})
	require.NoError(t, err)

	latest, err = db.LatestSnapshot("AAPL", model.KindRecommendation)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, model.RecommendationLighten, latest.Label)
	assert.InDelta(t, -0.4, latest.Composite, 1e-9)
	assert.Contains(t, latest.Payload, `"recommendation":"ALLÉGER"`)

	history, err := db.History("AAPL", model.KindRecommendation, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RecommendationLighten, history[0].Label)
	assert.Equal(t, model.RecommendationReinforce, history[1].Label)

	all, err := db.History("AAPL", "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := db.History("AAPL", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := db.History("MSFT", "", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWatchlist(t *testing.T) {
	db, c := newTestDB(t)

	require.NoError(t, db.AddToWatchlist("u1", "NVDA"))
	c.advance(time.Second)
	require.NoError(t, db.AddToWatchlist("u1", "AAPL"))
	require.NoError(t, db.AddToWatchlist("u1", "AAPL"))
	require.NoError(t, db.AddToWatchlist("u2", "AAPL"))
	require.NoError(t, db.AddToWatchlist("u2", "TSLA"))

	entries, err := db.Watchlist("u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "NVDA", entries[0].Ticker)
	assert.Equal(t, "AAPL", entries[1].Ticker)

	tickers, err := db.AllWatchedTickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "NVDA", "TSLA"}, tickers)

	removed, err := db.RemoveFromWatchlist("u1", "NVDA")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.RemoveFromWatchlist("u1", "NVDA")
	require.NoError(t, err)
	assert.False(t, removed)

	entries, err = db.Watchlist("u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSubscriptionLifecycle(t *testing.T) {
	db, c := newTestDB(t)

	sub, err := db.GetSubscription("u1")
	require.NoError(t, err)
	assert.Nil(t, sub)

	created, err := db.CreateSubscription("u1", "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, created.Status)

	require.NoError(t, db.UpdateSubscriptionStatus("u1", model.PaymentStatusAccepted, "cs_123"))
	require.NoError(t, db.UpdateStripeSubscriptionID("u1", "sub_123"))

	sub, err = db.GetSubscription("u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, model.PaymentStatusAccepted, sub.Status)
	assert.Equal(t, "cs_123", sub.PaymentID)
	assert.Equal(t, "sub_123", sub.StripeSubscriptionID)
	assert.True(t, sub.Active(c.now()))

	owner, err := db.UserByStripeSubscription("sub_123")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	owner, err = db.UserByStripeSubscription("sub_missing")
	require.NoError(t, err)
	assert.Empty(t, owner)

	n, err := db.CheckAndUpdateExpirations()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	c.advance(32 * 24 * time.Hour)
	n, err = db.CheckAndUpdateExpirations()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sub, err = db.GetSubscription("u1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusExpired, sub.Status)
	assert.False(t, sub.Active(c.now()))

	// renewal after expiry grants a fresh month
	require.NoError(t, db.UpdateSubscriptionStatus("u1", model.PaymentStatusAccepted, "cs_2"))
	sub, err = db.GetSubscription("u1")
	require.NoError(t, err)
	assert.True(t, sub.Active(c.now()))
}

func TestCloseSubscription(t *testing.T) {
	db, _ := newTestDB(t)

	_, err := db.CreateSubscription("u1", "u1@example.com")
	require.NoError(t, err)
	require.NoError(t, db.UpdateSubscriptionStatus("u1", model.PaymentStatusAccepted, "cs_1"))
	require.NoError(t, db.CloseSubscription("u1"))

	sub, err := db.GetSubscription("u1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusClosed, sub.Status)
}

func TestConnectionParamsDSN(t *testing.T) {
	p := ConnectionParams{Host: "db", Port: "5432", User: "adele", Password: "secret", DBName: "signals", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=adele password=secret dbname=signals sslmode=disable", p.DSN())
}
