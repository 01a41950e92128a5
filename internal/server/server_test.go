package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/souhailsouid/adele/internal/analyze"
	"github.com/souhailsouid/adele/internal/database"
	"github.com/souhailsouid/adele/internal/feeds"
	"github.com/souhailsouid/adele/internal/institutional"
	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/payment"
	testutil "github.com/souhailsouid/adele/internal/testing"
	"github.com/souhailsouid/adele/internal/weights"
)

type fakeBilling struct {
	result    *payment.EventResult
	err       error
	checkout  int
	cancelled []string
}

func (f *fakeBilling) CreateCheckoutSession(userID, email string) (string, string, error) {
	f.checkout++
	return "cs_" + userID, "https://checkout.stripe.test/" + userID, nil
}

func (f *fakeBilling) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	if signature != "valid" {
		return nil, errors.New("bad signature")
	}
	return &stripe.Event{ID: "evt_1", Type: "checkout.session.completed"}, nil
}

func (f *fakeBilling) ProcessEvent(event *stripe.Event) (*payment.EventResult, error) {
	return f.result, f.err
}

func (f *fakeBilling) CancelSubscription(subscriptionID string) error {
	f.cancelled = append(f.cancelled, subscriptionID)
	return nil
}

type fakeRaw struct {
	calls int
	path  string
}

func (f *fakeRaw) Raw(_ context.Context, path string, query url.Values) (json.RawMessage, error) {
	f.calls++
	f.path = path
	return json.RawMessage(`{"data":[{"ticker":"` + query.Get("ticker") + `"}]}`), nil
}

type fixture struct {
	server  *Server
	db      *database.DB
	whales  *testutil.MockWhalesSource
	market  *testutil.MockMarketSource
	billing *fakeBilling
	raw     *fakeRaw
}

func newFixture(t *testing.T, requireSubscription bool) *fixture {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := database.Wrap(sqlDB)
	require.NoError(t, err)

	whales := testutil.NewMockWhalesSource()
	market := testutil.NewMockMarketSource()
	whales.SetFlow("AAPL", []model.FlowAlert{testutil.Call("AAPL", 3_000_000), testutil.Put("AAPL", 1_000_000)})
	whales.SetCongress("AAPL", []model.CongressTrade{{Ticker: "AAPL", TransactionType: "Buy"}})
	market.SetBars("AAPL", testutil.FlatBars(30, 190, 50_000_000))
	market.SetQuote("AAPL", &model.Quote{Symbol: "AAPL", Price: 190, AvgVolume: 50_000_000})

	collector := feeds.NewCollector(whales, market, nil, feeds.Options{})
	w := weights.Default()
	raw := &fakeRaw{}
	billing := &fakeBilling{}

	s := New(Config{
		Port:                "0",
		Log:                 zerolog.Nop(),
		DevMode:             true,
		Market:              collector,
		Recommender:         analyze.NewRecommender(w.Recommendation),
		Detector:            institutional.NewDetector(w.Flow, collector, 2),
		Store:               db,
		Billing:             billing,
		RawSources:          map[string]RawSource{"uw": raw},
		RequireSubscription: requireSubscription,
	})

	return &fixture{server: s, db: db, whales: whales, market: market, billing: billing, raw: raw}
}

func (f *fixture) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestRecommendationSavesSnapshot(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/signals/aapl/recommendation", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Snapshot-ID"))

	var result model.Recommendation
	decode(t, rec, &result)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.Equal(t, model.RecommendationReinforce, result.Recommendation)

	history, err := f.db.History("AAPL", model.KindRecommendation, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestInstitutionalFlowAndHistory(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/signals/AAPL/institutional-flow", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.FlowDetection
	decode(t, rec, &result)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.Equal(t, model.DirectionBullish, result.Direction)
	assert.Len(t, result.Factors, 6)

	rec = f.do(http.MethodGet, "/api/signals/AAPL/history?kind=institutional_flow&limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Ticker  string                `json:"ticker"`
		History []model.ScoreSnapshot `json:"history"`
	}
	decode(t, rec, &body)
	require.Len(t, body.History, 1)
	assert.Equal(t, model.KindInstitutional, body.History[0].Kind)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/signals/AAPL/history?kind=other", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/signals/AAPL/history?limit=0", nil, nil).Code)
}

func TestSignalErrors(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/signals/not_a_ticker!/recommendation", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.NotEmpty(t, body["error"])

	down := errors.New("upstream down")
	for _, feed := range []string{model.FeedFlow, model.FeedDarkPool, model.FeedInsider, model.FeedCongress, model.FeedInstitutional} {
		f.whales.SetError(feed, down)
	}
	for _, feed := range []string{model.FeedPrices, model.FeedQuote, model.FeedDCF, "fmp_insider"} {
		f.market.SetError(feed, down)
	}
	rec = f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestScan(t *testing.T) {
	f := newFixture(t, false)
	f.whales.SetDarkPool("MSFT", []model.DarkPoolTrade{testutil.Print("MSFT", 400, 399.9, 400.1, 50_000)})

	rec := f.do(http.MethodPost, "/api/scan", map[string]interface{}{"tickers": []string{"aapl", "MSFT", "AAPL"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []model.FlowDetection `json:"results"`
		Errors  []string              `json:"errors"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Results, 2)
	assert.Empty(t, body.Errors)
	assert.GreaterOrEqual(t, body.Results[0].Composite, body.Results[1].Composite)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/scan", map[string]interface{}{"tickers": []string{}}, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/scan", map[string]interface{}{"tickers": []string{"??"}}, nil).Code)
}

func TestWatchlistRoutes(t *testing.T) {
	f := newFixture(t, false)
	user := map[string]string{UserHeader: "u1"}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/watchlist", nil, nil).Code)

	rec := f.do(http.MethodPost, "/api/watchlist", map[string]string{"ticker": "nvda"}, user)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/watchlist", nil, user)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Watchlist []model.WatchlistEntry `json:"watchlist"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Watchlist, 1)
	assert.Equal(t, "NVDA", body.Watchlist[0].Ticker)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/watchlist", map[string]string{"ticker": ""}, user).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/watchlist/NVDA", nil, user).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/watchlist/NVDA", nil, user).Code)
}

func TestMarketRoutes(t *testing.T) {
	f := newFixture(t, false)
	f.market.SetEconomicCalendar([]model.EconomicEvent{{Event: "FOMC", Country: "US"}})

	rec := f.do(http.MethodGet, "/api/market/AAPL/quote", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote struct {
		Data model.Quote `json:"data"`
	}
	decode(t, rec, &quote)
	assert.Equal(t, 190.0, quote.Data.Price)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/market/AAPL/options-chain", nil, nil).Code)

	f.market.SetError(model.FeedDCF, errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, f.do(http.MethodGet, "/api/market/AAPL/dcf", nil, nil).Code)

	rec = f.do(http.MethodGet, "/api/market/economic-calendar?from=2024-01-01&to=2024-01-07", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cal struct {
		From string                `json:"from"`
		Data []model.EconomicEvent `json:"data"`
	}
	decode(t, rec, &cal)
	assert.Equal(t, "2024-01-01", cal.From)
	assert.Len(t, cal.Data, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/market/economic-calendar?from=2024-02-01&to=2024-01-01", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/market/economic-calendar?from=yesterday", nil, nil).Code)
}

func TestProxy(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/proxy/uw/api/stock/AAPL/greeks?ticker=AAPL", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"ticker":"AAPL"}]}`, rec.Body.String())
	assert.Equal(t, "/api/stock/AAPL/greeks", f.raw.path)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/proxy/unknown/x", nil, nil).Code)

	for _, target := range []string{
		"/api/proxy/uw/../x",
		"/api/proxy/uw/%2e%2e/x",
		"/api/proxy/uw/%2e%2e/%2e%2e/admin",
		"/api/proxy/uw/api/%2E%2E/admin",
		"/api/proxy/uw/api/./stock",
		"/api/proxy/uw/api//stock",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, target, nil, nil).Code)
		})
	}
	assert.Equal(t, 1, f.raw.calls)
}

func TestProxyPath(t *testing.T) {
	tests := []struct {
		param string
		want  string
		ok    bool
	}{
		{"api/stock/AAPL/greeks", "/api/stock/AAPL/greeks", true},
		{"api/stock/", "/api/stock/", true},
		{"", "/", true},
		{"api/stock/BRK%2EB", "/api/stock/BRK.B", true},
		{"../x", "", false},
		{"%2e%2e/x", "", false},
		{"api/%2e%2e", "", false},
		{"api/./x", "", false},
		{"api//x", "", false},
		{"api/%zz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			got, ok := proxyPath(tt.param)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubscriptionGate(t *testing.T) {
	f := newFixture(t, true)
	user := map[string]string{UserHeader: "u1"}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, nil).Code)
	assert.Equal(t, http.StatusPaymentRequired, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, user).Code)

	rec := f.do(http.MethodPost, "/api/billing/checkout", map[string]string{"email": "u1@example.com"}, user)
	require.Equal(t, http.StatusOK, rec.Code)
	var checkout map[string]string
	decode(t, rec, &checkout)
	assert.Equal(t, "cs_u1", checkout["session_id"])

	assert.Equal(t, http.StatusPaymentRequired, f.do(http.MethodPost, "/api/scan", map[string]interface{}{"tickers": []string{"AAPL"}}, user).Code)

	f.billing.result = &payment.EventResult{UserID: "u1", Status: model.PaymentStatusAccepted, SubscriptionID: "sub_1", PaymentID: "cs_u1"}
	rec = f.do(http.MethodPost, "/api/billing/webhook", map[string]string{"id": "evt_1"}, map[string]string{"Stripe-Signature": "valid"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, user).Code)

	rec = f.do(http.MethodGet, "/api/billing/subscription", nil, user)
	require.Equal(t, http.StatusOK, rec.Code)
	var sub struct {
		Subscription model.UserSubscription `json:"subscription"`
		Active       bool                   `json:"active"`
	}
	decode(t, rec, &sub)
	assert.True(t, sub.Active)
	assert.Equal(t, "sub_1", sub.Subscription.StripeSubscriptionID)

	// cancellation identified only by the Stripe subscription
	f.billing.result = &payment.EventResult{Status: model.PaymentStatusClosed, SubscriptionID: "sub_1"}
	rec = f.do(http.MethodPost, "/api/billing/webhook", map[string]string{"id": "evt_2"}, map[string]string{"Stripe-Signature": "valid"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusPaymentRequired, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, user).Code)
}

func TestWebhookErrors(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/billing/webhook", map[string]string{}, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/billing/webhook", map[string]string{}, map[string]string{"Stripe-Signature": "forged"}).Code)

	f.billing.err = payment.ErrUnhandledEvent
	rec := f.do(http.MethodPost, "/api/billing/webhook", map[string]string{}, map[string]string{"Stripe-Signature": "valid"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ignored", body["status"])
}

func TestSubscriptionExpiryClosesAccess(t *testing.T) {
	f := newFixture(t, true)
	user := map[string]string{UserHeader: "u2"}

	_, err := f.db.CreateSubscription("u2", "")
	require.NoError(t, err)
	require.NoError(t, f.db.UpdateSubscriptionStatus("u2", model.PaymentStatusAccepted, "cs"))
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, user).Code)

	f.server.now = func() time.Time { return time.Now().AddDate(0, 2, 0) }
	assert.Equal(t, http.StatusPaymentRequired, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, user).Code)
}

func TestCancelSubscription(t *testing.T) {
	f := newFixture(t, true)
	user := map[string]string{UserHeader: "u3"}

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/billing/subscription", nil, user).Code)

	_, err := f.db.CreateSubscription("u3", "u3@example.com")
	require.NoError(t, err)
	require.NoError(t, f.db.UpdateSubscriptionStatus("u3", model.PaymentStatusAccepted, "cs_u3"))
	require.NoError(t, f.db.UpdateStripeSubscriptionID("u3", "sub_3"))
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, user).Code)

	rec := f.do(http.MethodDelete, "/api/billing/subscription", nil, user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sub_3"}, f.billing.cancelled)
	assert.Equal(t, http.StatusPaymentRequired, f.do(http.MethodGet, "/api/signals/AAPL/recommendation", nil, user).Code)

	// already closed
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/billing/subscription", nil, user).Code)
	assert.Len(t, f.billing.cancelled, 1)
}
