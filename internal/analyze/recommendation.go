package analyze

import (
	"fmt"
	"time"

	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/utils"
	"github.com/souhailsouid/adele/internal/weights"
)

// Composite thresholds separating the three recommendations
const (
	ReinforceThreshold = 0.25
	LightenThreshold   = -0.25
)

// Recommender turns a feed snapshot into a weighted position recommendation
type Recommender struct {
	weights weights.Recommendation
	now     func() time.Time
}

// NewRecommender creates a recommender with the given factor weights
func NewRecommender(w weights.Recommendation) *Recommender {
	return &Recommender{weights: w, now: time.Now}
}

// Recommend scores every factor, drops the unavailable ones and renormalizes
// the remaining weights into a composite in [-1, 1]
func (r *Recommender) Recommend(snap *model.Snapshot) *model.Recommendation {
	factors := []model.FactorScore{
		withWeight(optionsSentiment(snap.FlowAlerts), r.weights.Options),
		withWeight(darkPoolSentiment(snap.DarkPool), r.weights.DarkPool),
		withWeight(insiderSentiment(snap.Insider), r.weights.Insider),
		withWeight(congressSentiment(snap.Congress), r.weights.Congress),
		withWeight(institutionalSentiment(snap.Institutional), r.weights.Institutional),
		withWeight(momentum(snap.Bars), r.weights.Momentum),
		withWeight(valuation(snap.DCF, snap.LastPrice()), r.weights.Valuation),
	}

	var weighted, availableWeight, totalWeight float64
	reasons := make([]string, 0, len(factors))
	for i := range factors {
		f := &factors[i]
		if snap.Failed(feedFor(f.Name)) {
			f.Available = false
			f.Score = 0
			f.Reason = "feed unavailable: " + snap.Errors[feedFor(f.Name)]
		}

		totalWeight += f.Weight
		if !f.Available || f.Weight == 0 {
			continue
		}
		f.Score = utils.Round(f.Score, 4)
		weighted += f.Weight * f.Score
		availableWeight += f.Weight
		reasons = append(reasons, fmt.Sprintf("%s %+.2f: %s", f.Name, f.Score, f.Reason))
	}

	result := &model.Recommendation{
		Ticker:    snap.Ticker,
		Factors:   factors,
		Reasons:   reasons,
		Timestamp: r.now(),
	}

	if availableWeight == 0 {
		result.Recommendation = model.RecommendationWatch
		result.Reasons = append(result.Reasons, "no data available for any factor")
		return result
	}

	result.Composite = utils.Round(utils.ClampSigned(weighted/availableWeight), 4)
	result.Confidence = utils.Round(availableWeight/totalWeight, 4)
	result.Recommendation = DetermineRecommendation(result.Composite)
	return result
}

// DetermineRecommendation maps a composite score onto RENFORCER, SURVEILLER or ALLÉGER
func DetermineRecommendation(composite float64) string {
	switch {
	case composite >= ReinforceThreshold:
		return model.RecommendationReinforce
	case composite <= LightenThreshold:
		return model.RecommendationLighten
	default:
		return model.RecommendationWatch
	}
}

func withWeight(f model.FactorScore, w float64) model.FactorScore {
	f.Weight = w
	return f
}

// feedFor maps a factor onto the feed it is computed from
func feedFor(factor string) string {
	switch factor {
	case FactorOptions:
		return model.FeedFlow
	case FactorDarkPool:
		return model.FeedDarkPool
	case FactorInsider:
		return model.FeedInsider
	case FactorCongress:
		return model.FeedCongress
	case FactorInstitutional:
		return model.FeedInstitutional
	case FactorMomentum:
		return model.FeedPrices
	case FactorValuation:
		return model.FeedDCF
	default:
		return factor
	}
}
