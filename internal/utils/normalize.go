package utils

import "math"

// Clamp bounds v to [lo, hi]; NaN maps to 0
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

// Clamp01 bounds v to [0, 1]
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// ClampSigned bounds v to [-1, 1]
func ClampSigned(v float64) float64 {
	return Clamp(v, -1, 1)
}

// Imbalance returns (a - b) / (a + b), or 0 and false when both are zero
func Imbalance(a, b float64) (float64, bool) {
	total := a + b
	if total <= 0 {
		return 0, false
	}
	return ClampSigned((a - b) / total), true
}

// Saturate maps a non-negative quantity onto [0, 1], reaching 1 at cap
func Saturate(v, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	return Clamp01(v / cap)
}

// Round rounds v to the given number of decimals
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
