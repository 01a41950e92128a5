package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/souhailsouid/adele/internal/model"
)

// FlowScanner collects and scores a ticker
type FlowScanner interface {
	Scan(ctx context.Context, ticker string) (*model.FlowDetection, *model.Snapshot, error)
}

// Recommender scores a collected snapshot
type Recommender interface {
	Recommend(snap *model.Snapshot) *model.Recommendation
}

// TickerSource lists the tickers to scan
type TickerSource interface {
	AllWatchedTickers() ([]string, error)
}

// ScoreStore persists score results
type ScoreStore interface {
	SaveRecommendation(r *model.Recommendation) (*model.ScoreSnapshot, error)
	SaveFlowDetection(d *model.FlowDetection) (*model.ScoreSnapshot, error)
}

// AlertNotifier pushes detections to users
type AlertNotifier interface {
	Notify(ctx context.Context, d *model.FlowDetection) (bool, error)
}

// ScanSummary reports what a scan did
type ScanSummary struct {
	Tickers int
	Scored  int
	Failed  int
	Alerts  int
}

// ScanJob scores every watched ticker, saves the results and sends alerts
type ScanJob struct {
	Scanner        FlowScanner
	Recommender    Recommender
	Tickers        TickerSource // optional
	DefaultTickers []string
	Store          ScoreStore    // optional
	Notifier       AlertNotifier // optional
	Concurrency    int
	Timeout        time.Duration
	Log            zerolog.Logger
}

// Name implements Job
func (j *ScanJob) Name() string { return "watchlist_scan" }

// Run implements Job
func (j *ScanJob) Run() error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := j.RunScan(ctx)
	return err
}

// RunScan scans the union of watched and default tickers
func (j *ScanJob) RunScan(ctx context.Context) (ScanSummary, error) {
	tickers, err := j.tickers()
	if err != nil {
		return ScanSummary{}, err
	}

	summary := ScanSummary{Tickers: len(tickers)}
	if len(tickers) == 0 {
		j.Log.Debug().Msg("No tickers to scan")
		return summary, nil
	}

	concurrency := j.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, ticker := range tickers {
		ticker := ticker // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			alerted, err := j.scanOne(ctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				j.Log.Warn().Err(err).Str("ticker", ticker).Msg("Ticker scan failed")
				return nil
			}
			summary.Scored++
			if alerted {
				summary.Alerts++
			}
			return nil
		})
	}
	_ = g.Wait()

	j.Log.Info().
		Int("tickers", summary.Tickers).
		Int("scored", summary.Scored).
		Int("failed", summary.Failed).
		Int("alerts", summary.Alerts).
		Msg("Watchlist scan completed")

	if summary.Scored == 0 {
		return summary, fmt.Errorf("all %d tickers failed to scan", summary.Tickers)
	}
	return summary, nil
}

func (j *ScanJob) scanOne(ctx context.Context, ticker string) (bool, error) {
	detection, snap, err := j.Scanner.Scan(ctx, ticker)
	if err != nil {
		return false, err
	}
	recommendation := j.Recommender.Recommend(snap)

	if j.Store != nil {
		if _, err := j.Store.SaveFlowDetection(detection); err != nil {
			return false, fmt.Errorf("saving flow detection: %w", err)
		}
		if _, err := j.Store.SaveRecommendation(recommendation); err != nil {
			return false, fmt.Errorf("saving recommendation: %w", err)
		}
	}

	if j.Notifier == nil {
		return false, nil
	}
	sent, err := j.Notifier.Notify(ctx, detection)
	if err != nil {
		// An undelivered alert does not invalidate the scores
		j.Log.Error().Err(err).Str("ticker", ticker).Msg("Failed to send alert")
		return false, nil
	}
	return sent, nil
}

func (j *ScanJob) tickers() ([]string, error) {
	set := make(map[string]struct{})
	for _, t := range j.DefaultTickers {
		if n, err := model.NormalizeTicker(t); err == nil {
			set[n] = struct{}{}
		}
	}
	if j.Tickers != nil {
		watched, err := j.Tickers.AllWatchedTickers()
		if err != nil {
			return nil, fmt.Errorf("loading watchlists: %w", err)
		}
		for _, t := range watched {
			set[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// ExpiredEntries removes stale cache rows
type ExpiredEntries interface {
	DeleteExpired() (int64, error)
}

// CacheCleanupJob deletes expired API cache entries
type CacheCleanupJob struct {
	Cache ExpiredEntries
	Log   zerolog.Logger
}

// Name implements Job
func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

// Run implements Job
func (j *CacheCleanupJob) Run() error {
	if j.Cache == nil {
		return errors.New("cache cleanup job has no cache")
	}
	n, err := j.Cache.DeleteExpired()
	if err != nil {
		return fmt.Errorf("deleting expired cache entries: %w", err)
	}
	if n > 0 {
		j.Log.Info().Int64("deleted", n).Msg("Expired cache entries removed")
	}
	return nil
}

// SubscriptionExpirer closes lapsed subscriptions
type SubscriptionExpirer interface {
	CheckAndUpdateExpirations() (int64, error)
}

// ExpirationJob closes subscriptions past their expiry date
type ExpirationJob struct {
	Subscriptions SubscriptionExpirer
	Log           zerolog.Logger
}

// Name implements Job
func (j *ExpirationJob) Name() string { return "subscription_expiration" }

// Run implements Job
func (j *ExpirationJob) Run() error {
	if j.Subscriptions == nil {
		return errors.New("expiration job has no subscription store")
	}
	n, err := j.Subscriptions.CheckAndUpdateExpirations()
	if err != nil {
		return fmt.Errorf("updating expired subscriptions: %w", err)
	}
	if n > 0 {
		j.Log.Info().Int64("expired", n).Msg("Subscriptions expired")
	}
	return nil
}
