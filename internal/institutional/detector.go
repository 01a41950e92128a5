// Package institutional scores how strongly institutions appear to be moving a ticker.
package institutional

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/souhailsouid/adele/internal/anomaly"
	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/utils"
	"github.com/souhailsouid/adele/internal/weights"
)

// Alert thresholds on the composite
const (
	HighAlertThreshold = 0.70
	MonitorThreshold   = 0.40
)

// SignalThreshold is the factor score from which a factor is reported as a signal
const SignalThreshold = 0.5

// SnapshotSource gathers the feeds of a ticker
type SnapshotSource interface {
	Collect(ctx context.Context, ticker string) (*model.Snapshot, error)
}

// Detector computes institutional flow detections
type Detector struct {
	weights     weights.Flow
	source      SnapshotSource
	concurrency int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewDetector creates a detector. source may be nil when only Detect is used.
func NewDetector(w weights.Flow, source SnapshotSource, concurrency int) *Detector {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Detector{
		weights:     w,
		source:      source,
		concurrency: concurrency,
		logger:      log.With().Str("component", "institutional_detector").Logger(),
		now:         time.Now,
	}
}

// Detect scores a snapshot. Factors whose feed is missing score 0 and keep their weight.
func (d *Detector) Detect(snap *model.Snapshot) *model.FlowDetection {
	now := d.now()
	anom := anomaly.DetectMarketAnomalies(snap.Bars)
	hasAnomalyData := len(snap.Bars) >= anomaly.MinBars

	factors := []model.FactorScore{
		withWeight(optionsActivity(snap.FlowAlerts), d.weights.Options),
		withWeight(darkPoolActivity(snap.DarkPool, snap.AverageVolume()), d.weights.DarkPool),
		withWeight(volumeActivity(anom, hasAnomalyData), d.weights.Volume),
		withWeight(priceActivity(anom, hasAnomalyData), d.weights.Price),
		withWeight(holdingsActivity(snap.Institutional), d.weights.Holdings),
		withWeight(insiderActivity(snap.Insider, now), d.weights.Insider),
	}

	total := d.weights.Sum()
	var weighted float64
	var signals []string
	for i := range factors {
		f := &factors[i]
		if feed := feedFor(f.Name); feed != "" && snap.Failed(feed) {
			f.Available = false
			f.Score = 0
			f.Reason = "feed unavailable: " + snap.Errors[feed]
		}
		f.Score = utils.Round(f.Score, 4)
		weighted += f.Weight * f.Score
		if f.Available && f.Score >= SignalThreshold {
			signals = append(signals, fmt.Sprintf("%s %.2f: %s", f.Name, f.Score, f.Reason))
		}
	}

	composite := 0.0
	if total > 0 {
		composite = utils.Round(utils.Clamp01(weighted/total), 4)
	}

	if signals == nil {
		signals = []string{}
	}
	return &model.FlowDetection{
		Ticker:     snap.Ticker,
		Composite:  composite,
		AlertLevel: DetermineAlertLevel(composite),
		Direction:  direction(snap),
		Factors:    factors,
		Signals:    signals,
		Anomaly:    anom,
		Timestamp:  now,
	}
}

// Scan collects the feeds of one ticker and scores them
func (d *Detector) Scan(ctx context.Context, ticker string) (*model.FlowDetection, *model.Snapshot, error) {
	if d.source == nil {
		return nil, nil, errors.New("detector has no snapshot source")
	}
	snap, err := d.source.Collect(ctx, ticker)
	if err != nil {
		return nil, nil, fmt.Errorf("collecting %s: %w", ticker, err)
	}
	return d.Detect(snap), snap, nil
}

// ScanMany scans tickers with bounded concurrency and returns the detections sorted by
// composite, strongest first. Tickers that fail are skipped; their errors are joined
// into the returned error alongside the successful results.
func (d *Detector) ScanMany(ctx context.Context, tickers []string) ([]*model.FlowDetection, error) {
	var (
		mu      sync.Mutex
		results = make([]*model.FlowDetection, 0, len(tickers))
		errs    []error
	)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, ticker := range tickers {
		ticker := ticker // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			result, _, err := d.Scan(ctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.logger.Warn().Err(err).Str("ticker", ticker).Msg("Scan failed")
				errs = append(errs, err)
				return nil
			}
			results = append(results, result)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Composite == results[j].Composite {
			return results[i].Ticker < results[j].Ticker
		}
		return results[i].Composite > results[j].Composite
	})

	d.logger.Info().
		Int("tickers", len(tickers)).
		Int("scored", len(results)).
		Int("failed", len(errs)).
		Msg("Institutional scan completed")

	return results, errors.Join(errs...)
}

// DetermineAlertLevel maps a composite onto HIGH_ALERT, MONITOR or LOW
func DetermineAlertLevel(composite float64) string {
	switch {
	case composite >= HighAlertThreshold:
		return model.AlertHigh
	case composite >= MonitorThreshold:
		return model.AlertMonitor
	default:
		return model.AlertLow
	}
}

// direction combines the call/put premium imbalance with the dark pool side imbalance
func direction(snap *model.Snapshot) string {
	var sum float64
	var n int

	var calls, puts float64
	for _, a := range snap.FlowAlerts {
		switch {
		case a.IsCall():
			calls += a.TotalPremium.InexactFloat64()
		case a.IsPut():
			puts += a.TotalPremium.InexactFloat64()
		}
	}
	if v, ok := utils.Imbalance(calls, puts); ok {
		sum += v
		n++
	}

	var above, below float64
	for _, t := range snap.DarkPool {
		switch t.Side() {
		case 1:
			above += float64(t.Size)
		case -1:
			below += float64(t.Size)
		}
	}
	if v, ok := utils.Imbalance(above, below); ok {
		sum += v
		n++
	}

	if n == 0 {
		return model.DirectionNeutral
	}
	avg := sum / float64(n)
	switch {
	case avg > 0.2:
		return model.DirectionBullish
	case avg < -0.2:
		return model.DirectionBearish
	default:
		return model.DirectionNeutral
	}
}

func withWeight(f model.FactorScore, w float64) model.FactorScore {
	f.Weight = w
	return f
}
