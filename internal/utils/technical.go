package utils

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/souhailsouid/adele/internal/model"
)

// CalculateATR returns the average true range over the last period bars
func CalculateATR(bars []model.Bar, period int) float64 {
	if len(bars) < 2 || period <= 0 {
		return 0
	}

	var trueRanges []float64

	// True Range is the greatest of:
	// 1. Current High - Current Low
	// 2. Abs(Current High - Previous Close)
	// 3. Abs(Current Low - Previous Close)
	for i := 1; i < len(bars); i++ {
		highLow := bars[i].High - bars[i].Low
		highPrevClose := math.Abs(bars[i].High - bars[i-1].Close)
		lowPrevClose := math.Abs(bars[i].Low - bars[i-1].Close)

		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	// If we don't have enough data for the period, use what we have
	periodToUse := MinInt(period, len(trueRanges))
	return stat.Mean(trueRanges[len(trueRanges)-periodToUse:], nil)
}

// Returns computes close-to-close simple returns
func Returns(bars []model.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (bars[i].Close-prev)/prev)
	}
	return out
}

// Volumes extracts bar volumes as float64
func Volumes(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// ZScore returns how many standard deviations x is from the mean of baseline.
// Zero when the baseline has fewer than two values or no dispersion.
func ZScore(x float64, baseline []float64) float64 {
	if len(baseline) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(baseline, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (x - mean) / std
}

// MinInt returns the smaller of a and b
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MaxInt returns the larger of a and b
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
