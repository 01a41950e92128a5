package feeds

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souhailsouid/adele/internal/cache"
	"github.com/souhailsouid/adele/internal/model"
	testutil "github.com/souhailsouid/adele/internal/testing"
)

func TestCollectGathersAllFeeds(t *testing.T) {
	whales := testutil.NewMockWhalesSource()
	market := testutil.NewMockMarketSource()

	whales.SetFlow("AAPL", []model.FlowAlert{testutil.Call("AAPL", 1_000_000)})
	whales.SetDarkPool("AAPL", []model.DarkPoolTrade{testutil.Print("AAPL", 10.05, 10, 10.1, 500)})
	whales.SetInsider("AAPL", []model.InsiderTrade{testutil.Insider("AAPL", "COOK TIM", "S", 100, 190, "2024-05-01")})
	whales.SetInstitutional("AAPL", testutil.Holders("AAPL", 2, 1000, 10))
	market.SetBars("AAPL", testutil.FlatBars(30, 100, 1000))
	market.SetQuote("AAPL", &model.Quote{Symbol: "AAPL", Price: 101})
	market.SetDCF("AAPL", &model.DCF{Symbol: "AAPL", Value: 120, StockPrice: 101})

	c := NewCollector(whales, market, nil, Options{})
	snap, err := c.Collect(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", snap.Ticker)
	assert.Len(t, snap.FlowAlerts, 1)
	assert.Len(t, snap.DarkPool, 1)
	assert.Len(t, snap.Insider, 1)
	assert.Len(t, snap.Institutional, 2)
	assert.Len(t, snap.Bars, 30)
	require.NotNil(t, snap.Quote)
	require.NotNil(t, snap.DCF)
	assert.Empty(t, snap.Errors)
	assert.Equal(t, 0, market.Calls("fmp_insider"), "fallback must not run when UW has insider data")
}

func TestCollectRecordsFailedFeeds(t *testing.T) {
	whales := testutil.NewMockWhalesSource()
	market := testutil.NewMockMarketSource()
	whales.SetError(model.FeedFlow, errors.New("rate limited"))
	market.SetError(model.FeedDCF, errors.New("no dcf"))
	market.SetBars("MSFT", testutil.FlatBars(5, 400, 10))

	c := NewCollector(whales, market, nil, Options{})
	snap, err := c.Collect(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.True(t, snap.Failed(model.FeedFlow))
	assert.True(t, snap.Failed(model.FeedDCF))
	assert.False(t, snap.Failed(model.FeedPrices))
	assert.Equal(t, "rate limited", snap.Errors[model.FeedFlow])
}

func TestCollectInsiderFallback(t *testing.T) {
	whales := testutil.NewMockWhalesSource()
	market := testutil.NewMockMarketSource()
	whales.SetError(model.FeedInsider, errors.New("forbidden"))
	market.SetInsider("TSLA", []model.InsiderTrade{testutil.Insider("TSLA", "A", "P", 10, 1, "2024-01-01")})

	c := NewCollector(whales, market, nil, Options{})
	snap, err := c.Collect(context.Background(), "TSLA")
	require.NoError(t, err)

	assert.False(t, snap.Failed(model.FeedInsider))
	assert.Len(t, snap.Insider, 1)
	assert.Equal(t, 1, market.Calls("fmp_insider"))
}

func TestCollectAllFeedsFailed(t *testing.T) {
	whales := testutil.NewMockWhalesSource()
	market := testutil.NewMockMarketSource()
	boom := errors.New("down")
	for _, f := range []string{model.FeedFlow, model.FeedDarkPool, model.FeedInsider, model.FeedCongress, model.FeedInstitutional} {
		whales.SetError(f, boom)
	}
	for _, f := range []string{model.FeedPrices, model.FeedQuote, model.FeedDCF, "fmp_insider"} {
		market.SetError(f, boom)
	}

	c := NewCollector(whales, market, nil, Options{})
	_, err := c.Collect(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrAllFeedsFailed)
}

func TestCollectInvalidTicker(t *testing.T) {
	c := NewCollector(testutil.NewMockWhalesSource(), testutil.NewMockMarketSource(), nil, Options{})
	_, err := c.Collect(context.Background(), "../etc")
	assert.ErrorIs(t, err, model.ErrInvalidTicker)
}

func TestCollectUsesCache(t *testing.T) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	whales := testutil.NewMockWhalesSource()
	market := testutil.NewMockMarketSource()
	market.SetBars("NVDA", testutil.FlatBars(10, 900, 1))

	c := NewCollector(whales, market, store, Options{})
	_, err = c.Collect(context.Background(), "NVDA")
	require.NoError(t, err)
	_, err = c.Collect(context.Background(), "NVDA")
	require.NoError(t, err)

	assert.Equal(t, 1, market.Calls(model.FeedPrices))
	assert.Equal(t, 1, whales.Calls(model.FeedFlow))
}

func TestFeed(t *testing.T) {
	whales := testutil.NewMockWhalesSource()
	market := testutil.NewMockMarketSource()
	whales.SetCongress("MSFT", []model.CongressTrade{{Ticker: "MSFT", TransactionType: "Buy"}})
	market.SetQuote("MSFT", &model.Quote{Symbol: "MSFT", Price: 410})

	c := NewCollector(whales, market, nil, Options{})
	ctx := context.Background()

	v, err := c.Feed(ctx, "msft", model.FeedCongress)
	require.NoError(t, err)
	assert.Len(t, v, 1)

	v, err = c.Feed(ctx, "MSFT", model.FeedQuote)
	require.NoError(t, err)
	assert.Equal(t, 410.0, v.(*model.Quote).Price)

	_, err = c.Feed(ctx, "MSFT", "options-chain")
	assert.ErrorIs(t, err, ErrUnknownFeed)

	_, err = c.Feed(ctx, "$$$", model.FeedQuote)
	assert.ErrorIs(t, err, model.ErrInvalidTicker)

	whales.SetError(model.FeedFlow, errors.New("503"))
	_, err = c.Feed(ctx, "MSFT", model.FeedFlow)
	assert.Error(t, err)
}

func TestEconomicCalendarCached(t *testing.T) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	market := testutil.NewMockMarketSource()
	market.SetEconomicCalendar([]model.EconomicEvent{{Event: "CPI", Country: "US"}})

	c := NewCollector(testutil.NewMockWhalesSource(), market, store, Options{})
	for i := 0; i < 2; i++ {
		events, err := c.EconomicCalendar(context.Background(), "2024-01-01", "2024-01-07")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "CPI", events[0].Event)
	}
	assert.Equal(t, 1, market.Calls("economic"))
}
