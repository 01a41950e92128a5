package anomaly

import (
	"fmt"
	"math"

	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/utils"
)

// MinBars is the history needed for a 20 session baseline plus the current bar
const MinBars = 21

const baselineWindow = 20

// DetectMarketAnomalies identifies unusual volume, price moves and gaps on the latest daily bar
func DetectMarketAnomalies(bars []model.Bar) *model.AnomalyDetection {
	if len(bars) < MinBars {
		return &model.AnomalyDetection{
			IsAnomaly:    false,
			AnomalyScore: 0,
			Details:      fmt.Sprintf("insufficient data: need %d bars, got %d", MinBars, len(bars)),
		}
	}

	anomaly := &model.AnomalyDetection{
		IsAnomaly:        false,
		AnomalyScore:     0,
		RecommendedFlags: []string{},
	}

	current := bars[len(bars)-1]
	prevBar := bars[len(bars)-2]
	history := bars[:len(bars)-1]

	// Baselines exclude the bar being tested
	volumeBaseline := utils.Volumes(history[len(history)-baselineWindow:])
	anomaly.VolumeZ = utils.ZScore(float64(current.Volume), volumeBaseline)

	returns := utils.Returns(bars)
	lastReturn := returns[len(returns)-1]
	returnBaseline := returns[utils.MaxInt(0, len(returns)-1-baselineWindow) : len(returns)-1]
	anomaly.ReturnZ = utils.ZScore(lastReturn, returnBaseline)

	atr10 := utils.CalculateATR(history, 10)

	// 1. Volume spikes
	if current.Volume > 0 && anomaly.VolumeZ > 3.0 {
		anomaly.IsAnomaly = true
		anomaly.AnomalyType = "VOLUME_SPIKE"
		anomaly.AnomalyScore = math.Min(anomaly.VolumeZ/5.0, 1.0)
		anomaly.Details = fmt.Sprintf("Volume %.1f standard deviations above the 20 day mean", anomaly.VolumeZ)
		anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "WAIT_FOR_CONFIRMATION")
	}

	// 2. Price spikes
	absReturnZ := math.Abs(anomaly.ReturnZ)
	if absReturnZ > 3.0 {
		if anomaly.IsAnomaly {
			anomaly.AnomalyScore = math.Min(anomaly.AnomalyScore+0.2, 1.0)
			anomaly.AnomalyType += "_WITH_PRICE_SPIKE"
		} else {
			anomaly.IsAnomaly = true
			anomaly.AnomalyType = "PRICE_SPIKE"
			anomaly.AnomalyScore = math.Min(absReturnZ/4.0, 1.0)
			anomaly.Details = fmt.Sprintf("Daily move %.1f standard deviations from normal", anomaly.ReturnZ)
			anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "REDUCE_POSITION_SIZE", "USE_WIDER_STOPS")
		}
	}

	// 3. Gaps
	gapSize := 0.0
	if current.Low > prevBar.High {
		gapSize = current.Low - prevBar.High
	} else if current.High < prevBar.Low {
		gapSize = prevBar.Low - current.High
	}

	if atr10 > 0 {
		normalizedGapSize := gapSize / atr10
		if normalizedGapSize > 1.0 {
			if anomaly.IsAnomaly {
				anomaly.AnomalyScore = math.Min(anomaly.AnomalyScore+0.15, 1.0)
				anomaly.AnomalyType += "_WITH_GAP"
			} else {
				anomaly.IsAnomaly = true
				anomaly.AnomalyType = "GAP"
				anomaly.AnomalyScore = math.Min(normalizedGapSize/2.0, 1.0)
				anomaly.Details = fmt.Sprintf("Price gapped %.1f times the average range", normalizedGapSize)
				anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "EXPECT_VOLATILE_TRADING")
			}
		}
	}

	if anomaly.IsAnomaly {
		anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "USE_CAUTION", "MONITOR_CLOSELY")
	}

	return anomaly
}
