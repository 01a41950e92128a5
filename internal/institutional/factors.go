package institutional

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/utils"
)

// Factor names
const (
	FactorOptions  = "options"
	FactorDarkPool = "darkpool"
	FactorVolume   = "volume"
	FactorPrice    = "price"
	FactorHoldings = "holdings"
	FactorInsider  = "insider"
)

// Saturation points
const (
	premiumCap         = 5_000_000
	largeAlertPremium  = 250_000
	largeAlertCap      = 10
	sweepBonus         = 0.1
	darkPoolShareCap   = 0.5
	blockPremium       = 1_000_000
	blockShares        = 10_000
	blockCap           = 5
	zScoreCap          = 3
	holdingsChangeCap  = 0.10
	insiderWindow      = 30 * 24 * time.Hour
	distinctInsiderCap = 3
)

var blockPremiumDec = decimal.NewFromInt(blockPremium)

func optionsActivity(alerts []model.FlowAlert) model.FactorScore {
	f := model.FactorScore{Name: FactorOptions}
	if len(alerts) == 0 {
		f.Reason = "no options flow"
		return f
	}

	var premium decimal.Decimal
	var large int
	var sweep bool
	for _, a := range alerts {
		premium = premium.Add(a.TotalPremium)
		if a.TotalPremium.IntPart() >= largeAlertPremium {
			large++
		}
		if a.HasSweep {
			sweep = true
		}
	}

	score := 0.6*utils.Saturate(premium.InexactFloat64(), premiumCap) + 0.4*utils.Saturate(float64(large), largeAlertCap)
	if sweep {
		score += sweepBonus
	}
	f.Score = utils.Clamp01(score)
	f.Available = true
	f.Reason = fmt.Sprintf("$%.1fM premium over %d alerts, %d large", premium.InexactFloat64()/1e6, len(alerts), large)
	if sweep {
		f.Reason += ", sweeps"
	}
	return f
}

func darkPoolActivity(trades []model.DarkPoolTrade, avgVolume float64) model.FactorScore {
	f := model.FactorScore{Name: FactorDarkPool}
	if len(trades) == 0 {
		f.Reason = "no dark pool prints"
		return f
	}

	var volume int64
	var blocks int
	for _, t := range trades {
		volume += t.Size
		if t.Premium.GreaterThanOrEqual(blockPremiumDec) || t.Size >= blockShares {
			blocks++
		}
	}

	share := 0.0
	if avgVolume > 0 {
		share = float64(volume) / avgVolume
	}
	f.Score = utils.Clamp01(0.5*utils.Saturate(share, darkPoolShareCap) + 0.5*utils.Saturate(float64(blocks), blockCap))
	f.Available = true
	f.Reason = fmt.Sprintf("%d shares (%.0f%% of avg volume), %d blocks", volume, share*100, blocks)
	return f
}

func volumeActivity(a *model.AnomalyDetection, ok bool) model.FactorScore {
	f := model.FactorScore{Name: FactorVolume}
	if !ok {
		f.Reason = a.Details
		return f
	}
	f.Score = utils.Saturate(math.Max(0, a.VolumeZ), zScoreCap)
	f.Available = true
	f.Reason = fmt.Sprintf("volume z-score %.2f", a.VolumeZ)
	return f
}

func priceActivity(a *model.AnomalyDetection, ok bool) model.FactorScore {
	f := model.FactorScore{Name: FactorPrice}
	if !ok {
		f.Reason = a.Details
		return f
	}
	f.Score = utils.Saturate(math.Abs(a.ReturnZ), zScoreCap)
	f.Available = true
	f.Reason = fmt.Sprintf("return z-score %.2f", a.ReturnZ)
	return f
}

func holdingsActivity(holdings []model.InstitutionalHolding) model.FactorScore {
	f := model.FactorScore{Name: FactorHoldings}

	var change, prior int64
	for _, h := range holdings {
		change += h.UnitsChange
		if p := h.PriorUnits(); p > 0 {
			prior += p
		}
	}
	if prior <= 0 {
		f.Reason = "no institutional holdings"
		return f
	}

	ratio := float64(change) / float64(prior)
	f.Score = utils.Saturate(math.Abs(ratio), holdingsChangeCap)
	f.Available = true
	f.Reason = fmt.Sprintf("13F positions %+.1f%%", ratio*100)
	return f
}

// insiderActivity counts distinct insiders buying or selling in the last 30 days
func insiderActivity(trades []model.InsiderTrade, now time.Time) model.FactorScore {
	f := model.FactorScore{Name: FactorInsider}
	if len(trades) == 0 {
		f.Reason = "no insider transactions"
		return f
	}

	cutoff := now.Add(-insiderWindow)
	insiders := make(map[string]struct{})
	for _, t := range trades {
		if !t.IsPurchase() && !t.IsSale() {
			continue
		}
		date, ok := tradeDate(t)
		if !ok || date.Before(cutoff) {
			continue
		}
		insiders[t.OwnerName] = struct{}{}
	}

	f.Score = utils.Saturate(float64(len(insiders)), distinctInsiderCap)
	f.Available = true
	f.Reason = fmt.Sprintf("%d insiders trading in the last 30 days", len(insiders))
	return f
}

func tradeDate(t model.InsiderTrade) (time.Time, bool) {
	for _, s := range []string{t.TransactionDate, t.FilingDate} {
		if len(s) < 10 {
			continue
		}
		if d, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// feedFor maps a factor onto the feed it is computed from
func feedFor(factor string) string {
	switch factor {
	case FactorOptions:
		return model.FeedFlow
	case FactorDarkPool:
		return model.FeedDarkPool
	case FactorVolume, FactorPrice:
		return model.FeedPrices
	case FactorHoldings:
		return model.FeedInstitutional
	case FactorInsider:
		return model.FeedInsider
	default:
		return ""
	}
}
