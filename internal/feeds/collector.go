// Package feeds gathers every market data feed for a ticker into a model.Snapshot.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/souhailsouid/adele/internal/cache"
	"github.com/souhailsouid/adele/internal/model"
)

var (
	// ErrAllFeedsFailed is returned when not a single feed could be gathered
	ErrAllFeedsFailed = errors.New("all feeds failed")
	// ErrUnknownFeed is returned by Feed for names outside model.AllFeeds
	ErrUnknownFeed = errors.New("unknown feed")
)

// WhalesSource is the options flow / filings data source
type WhalesSource interface {
	FlowAlerts(ctx context.Context, ticker string, limit int) ([]model.FlowAlert, error)
	DarkPoolTrades(ctx context.Context, ticker string, limit int) ([]model.DarkPoolTrade, error)
	InsiderTransactions(ctx context.Context, ticker string) ([]model.InsiderTrade, error)
	CongressTrades(ctx context.Context, ticker string) ([]model.CongressTrade, error)
	InstitutionalOwnership(ctx context.Context, ticker string) ([]model.InstitutionalHolding, error)
}

// MarketSource is the price / fundamentals data source
type MarketSource interface {
	HistoricalPrices(ctx context.Context, ticker string, days int) ([]model.Bar, error)
	Quote(ctx context.Context, ticker string) (*model.Quote, error)
	DCF(ctx context.Context, ticker string) (*model.DCF, error)
	InsiderTrading(ctx context.Context, ticker string) ([]model.InsiderTrade, error)
	EconomicCalendar(ctx context.Context, from, to string) ([]model.EconomicEvent, error)
}

// Options tunes how much history is requested per feed
type Options struct {
	FlowLimit     int
	DarkPoolLimit int
	PriceDays     int
	Concurrency   int
}

// Collector gathers snapshots through the response cache
type Collector struct {
	whales WhalesSource
	market MarketSource
	cache  *cache.Store
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// NewCollector creates a collector. store may be nil to disable caching.
func NewCollector(whales WhalesSource, market MarketSource, store *cache.Store, opts Options) *Collector {
	if opts.FlowLimit == 0 {
		opts.FlowLimit = 100
	}
	if opts.DarkPoolLimit == 0 {
		opts.DarkPoolLimit = 200
	}
	if opts.PriceDays == 0 {
		opts.PriceDays = 60
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	return &Collector{
		whales: whales,
		market: market,
		cache:  store,
		opts:   opts,
		logger: log.With().Str("component", "feeds_collector").Logger(),
		now:    time.Now,
	}
}

// Collect fetches every feed for ticker concurrently. Failing feeds are recorded
// in Snapshot.Errors; only an invalid ticker or a total failure is an error.
func (c *Collector) Collect(ctx context.Context, ticker string) (*model.Snapshot, error) {
	ticker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		Ticker:      ticker,
		CollectedAt: c.now(),
		Errors:      map[string]string{},
	}

	var mu sync.Mutex
	fail := func(feed string, err error) {
		c.logger.Warn().Err(err).Str("ticker", ticker).Str("feed", feed).Msg("Feed unavailable")
		mu.Lock()
		snap.Errors[feed] = err.Error()
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)

	gather := func(feed string, load func() error) {
		g.Go(func() error {
			if err := load(); err != nil {
				fail(feed, err)
			}
			return nil
		})
	}

	gather(model.FeedFlow, func() (err error) {
		snap.FlowAlerts, err = c.flow(ctx, ticker)
		return err
	})
	gather(model.FeedDarkPool, func() (err error) {
		snap.DarkPool, err = c.darkPool(ctx, ticker)
		return err
	})
	gather(model.FeedInsider, func() (err error) {
		snap.Insider, err = c.insiderTrades(ctx, ticker)
		return err
	})
	gather(model.FeedCongress, func() (err error) {
		snap.Congress, err = c.congress(ctx, ticker)
		return err
	})
	gather(model.FeedInstitutional, func() (err error) {
		snap.Institutional, err = c.institutional(ctx, ticker)
		return err
	})
	gather(model.FeedPrices, func() (err error) {
		snap.Bars, err = c.prices(ctx, ticker)
		return err
	})
	gather(model.FeedQuote, func() (err error) {
		snap.Quote, err = c.quote(ctx, ticker)
		return err
	})
	gather(model.FeedDCF, func() (err error) {
		snap.DCF, err = c.dcf(ctx, ticker)
		return err
	})

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(snap.Errors) == len(model.AllFeeds) {
		return nil, ErrAllFeedsFailed
	}

	c.logger.Debug().
		Str("ticker", ticker).
		Int("failed_feeds", len(snap.Errors)).
		Msg("Snapshot collected")
	return snap, nil
}

// Feed returns a single feed for ticker through the cache
func (c *Collector) Feed(ctx context.Context, ticker, feed string) (interface{}, error) {
	ticker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	switch feed {
	case model.FeedFlow:
		return c.flow(ctx, ticker)
	case model.FeedDarkPool:
		return c.darkPool(ctx, ticker)
	case model.FeedInsider:
		return c.insiderTrades(ctx, ticker)
	case model.FeedCongress:
		return c.congress(ctx, ticker)
	case model.FeedInstitutional:
		return c.institutional(ctx, ticker)
	case model.FeedPrices:
		return c.prices(ctx, ticker)
	case model.FeedQuote:
		return c.quote(ctx, ticker)
	case model.FeedDCF:
		return c.dcf(ctx, ticker)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
}

// EconomicCalendar returns the economic events between from and to (YYYY-MM-DD) through the cache
func (c *Collector) EconomicCalendar(ctx context.Context, from, to string) ([]model.EconomicEvent, error) {
	return cache.Fetch(c.cache, "economic", from+":"+to, func() ([]model.EconomicEvent, error) {
		return c.market.EconomicCalendar(ctx, from, to)
	})
}

func (c *Collector) flow(ctx context.Context, ticker string) ([]model.FlowAlert, error) {
	return cache.Fetch(c.cache, model.FeedFlow, ticker, func() ([]model.FlowAlert, error) {
		return c.whales.FlowAlerts(ctx, ticker, c.opts.FlowLimit)
	})
}

func (c *Collector) darkPool(ctx context.Context, ticker string) ([]model.DarkPoolTrade, error) {
	return cache.Fetch(c.cache, model.FeedDarkPool, ticker, func() ([]model.DarkPoolTrade, error) {
		return c.whales.DarkPoolTrades(ctx, ticker, c.opts.DarkPoolLimit)
	})
}

func (c *Collector) insiderTrades(ctx context.Context, ticker string) ([]model.InsiderTrade, error) {
	return cache.Fetch(c.cache, model.FeedInsider, ticker, func() ([]model.InsiderTrade, error) {
		return c.insider(ctx, ticker)
	})
}

func (c *Collector) congress(ctx context.Context, ticker string) ([]model.CongressTrade, error) {
	return cache.Fetch(c.cache, model.FeedCongress, ticker, func() ([]model.CongressTrade, error) {
		return c.whales.CongressTrades(ctx, ticker)
	})
}

func (c *Collector) institutional(ctx context.Context, ticker string) ([]model.InstitutionalHolding, error) {
	return cache.Fetch(c.cache, model.FeedInstitutional, ticker, func() ([]model.InstitutionalHolding, error) {
		return c.whales.InstitutionalOwnership(ctx, ticker)
	})
}

func (c *Collector) prices(ctx context.Context, ticker string) ([]model.Bar, error) {
	return cache.Fetch(c.cache, model.FeedPrices, ticker, func() ([]model.Bar, error) {
		return c.market.HistoricalPrices(ctx, ticker, c.opts.PriceDays)
	})
}

func (c *Collector) quote(ctx context.Context, ticker string) (*model.Quote, error) {
	return cache.Fetch(c.cache, model.FeedQuote, ticker, func() (*model.Quote, error) {
		return c.market.Quote(ctx, ticker)
	})
}

func (c *Collector) dcf(ctx context.Context, ticker string) (*model.DCF, error) {
	return cache.Fetch(c.cache, model.FeedDCF, ticker, func() (*model.DCF, error) {
		return c.market.DCF(ctx, ticker)
	})
}

// insider prefers Unusual Whales and falls back to FMP when it is empty or failing
func (c *Collector) insider(ctx context.Context, ticker string) ([]model.InsiderTrade, error) {
	trades, err := c.whales.InsiderTransactions(ctx, ticker)
	if err == nil && len(trades) > 0 {
		return trades, nil
	}
	fallback, fbErr := c.market.InsiderTrading(ctx, ticker)
	if fbErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fbErr
	}
	return fallback, nil
}
