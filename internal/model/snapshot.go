package model

import "time"

// Feed names used as keys in Snapshot.Errors and by the market proxy
const (
	FeedFlow          = "flow"
	FeedDarkPool      = "darkpool"
	FeedInsider       = "insider"
	FeedCongress      = "congress"
	FeedInstitutional = "institutional"
	FeedPrices        = "prices"
	FeedQuote         = "quote"
	FeedDCF           = "dcf"
)

// AllFeeds lists every per-ticker feed gathered into a Snapshot
var AllFeeds = []string{
	FeedFlow,
	FeedDarkPool,
	FeedInsider,
	FeedCongress,
	FeedInstitutional,
	FeedPrices,
	FeedQuote,
	FeedDCF,
}

// Snapshot holds every feed gathered for one ticker at one instant
type Snapshot struct {
	Ticker        string                 `json:"ticker"`
	CollectedAt   time.Time              `json:"collected_at"`
	FlowAlerts    []FlowAlert            `json:"flow_alerts"`
	DarkPool      []DarkPoolTrade        `json:"dark_pool"`
	Insider       []InsiderTrade         `json:"insider"`
	Congress      []CongressTrade        `json:"congress"`
	Institutional []InstitutionalHolding `json:"institutional"`
	Bars          []Bar                  `json:"bars"` // oldest first
	Quote         *Quote                 `json:"quote,omitempty"`
	DCF           *DCF                   `json:"dcf,omitempty"`
	Errors        map[string]string      `json:"errors,omitempty"`
}

// Failed reports whether the named feed could not be gathered
func (s *Snapshot) Failed(feed string) bool {
	_, ok := s.Errors[feed]
	return ok
}

// LastPrice returns the quote price, falling back to the last bar close
func (s *Snapshot) LastPrice() float64 {
	if s.Quote != nil && s.Quote.Price > 0 {
		return s.Quote.Price
	}
	if len(s.Bars) > 0 {
		return s.Bars[len(s.Bars)-1].Close
	}
	return 0
}

// AverageVolume returns the quote average volume, falling back to the mean bar volume
func (s *Snapshot) AverageVolume() float64 {
	if s.Quote != nil && s.Quote.AvgVolume > 0 {
		return float64(s.Quote.AvgVolume)
	}
	if len(s.Bars) == 0 {
		return 0
	}
	var total int64
	for _, b := range s.Bars {
		total += b.Volume
	}
	return float64(total) / float64(len(s.Bars))
}
