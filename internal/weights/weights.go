// Package weights holds the factor weights of both scoring engines.
package weights

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Recommendation weights the signed factors of the position recommendation
type Recommendation struct {
	Options       float64 `yaml:"options"`
	DarkPool      float64 `yaml:"darkpool"`
	Insider       float64 `yaml:"insider"`
	Congress      float64 `yaml:"congress"`
	Institutional float64 `yaml:"institutional"`
	Momentum      float64 `yaml:"momentum"`
	Valuation     float64 `yaml:"valuation"`
}

// Flow weights the intensity factors of the institutional flow detector
type Flow struct {
	Options  float64 `yaml:"options"`
	DarkPool float64 `yaml:"darkpool"`
	Volume   float64 `yaml:"volume"`
	Price    float64 `yaml:"price"`
	Holdings float64 `yaml:"holdings"`
	Insider  float64 `yaml:"insider"`
}

// Weights is the full weights file
type Weights struct {
	Recommendation Recommendation `yaml:"recommendation"`
	Flow           Flow           `yaml:"institutional_flow"`
}

// Default returns the built-in weights
func Default() Weights {
	return Weights{
		Recommendation: Recommendation{
			Options:       0.20,
			DarkPool:      0.15,
			Insider:       0.15,
			Congress:      0.10,
			Institutional: 0.15,
			Momentum:      0.15,
			Valuation:     0.10,
		},
		Flow: Flow{
			Options:  0.30,
			DarkPool: 0.25,
			Volume:   0.20,
			Price:    0.10,
			Holdings: 0.10,
			Insider:  0.05,
		},
	}
}

// Load reads a YAML weights file over the defaults. An empty path returns the defaults.
func Load(path string) (Weights, error) {
	w := Default()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("reading weights file: %w", err)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, fmt.Errorf("parsing weights file: %w", err)
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// Validate rejects non-finite or negative weights and all-zero weight sets
func (w Weights) Validate() error {
	r := w.Recommendation
	for name, v := range map[string]float64{
		"recommendation.options":       r.Options,
		"recommendation.darkpool":      r.DarkPool,
		"recommendation.insider":       r.Insider,
		"recommendation.congress":      r.Congress,
		"recommendation.institutional": r.Institutional,
		"recommendation.momentum":      r.Momentum,
		"recommendation.valuation":     r.Valuation,
		"institutional_flow.options":   w.Flow.Options,
		"institutional_flow.darkpool":  w.Flow.DarkPool,
		"institutional_flow.volume":    w.Flow.Volume,
		"institutional_flow.price":     w.Flow.Price,
		"institutional_flow.holdings":  w.Flow.Holdings,
		"institutional_flow.insider":   w.Flow.Insider,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s must be a finite number, got %v", name, v)
		}
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative, got %v", name, v)
		}
	}
	if r.Sum() == 0 {
		return fmt.Errorf("recommendation weights are all zero")
	}
	if w.Flow.Sum() == 0 {
		return fmt.Errorf("institutional_flow weights are all zero")
	}
	return nil
}

// Sum returns the total recommendation weight
func (r Recommendation) Sum() float64 {
	return r.Options + r.DarkPool + r.Insider + r.Congress + r.Institutional + r.Momentum + r.Valuation
}

// Sum returns the total flow weight
func (f Flow) Sum() float64 {
	return f.Options + f.DarkPool + f.Volume + f.Price + f.Holdings + f.Insider
}
