package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents a single daily price bar
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume,omitempty"`
}

// HistoricalResponse represents the historical-price-full response from FMP
type HistoricalResponse struct {
	Symbol     string `json:"symbol"`
	Historical []Bar  `json:"historical"`
}

// Quote is the latest quote for a symbol
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changesPercentage"`
	Volume        int64   `json:"volume"`
	AvgVolume     int64   `json:"avgVolume"`
}

// DCF is a discounted cash flow valuation
type DCF struct {
	Symbol     string  `json:"symbol"`
	Date       string  `json:"date"`
	Value      float64 `json:"dcf"`
	StockPrice float64 `json:"Stock Price"`
}

// Upside returns the relative distance between the DCF value and the stock price.
func (d DCF) Upside() (float64, bool) {
	if d.StockPrice <= 0 || d.Value <= 0 {
		return 0, false
	}
	return (d.Value - d.StockPrice) / d.StockPrice, true
}

// EconomicEvent is an entry of the economic calendar
type EconomicEvent struct {
	Event    string   `json:"event"`
	Country  string   `json:"country"`
	Date     string   `json:"date"`
	Actual   *float64 `json:"actual"`
	Previous *float64 `json:"previous"`
	Estimate *float64 `json:"estimate"`
	Impact   string   `json:"impact"`
}

// FlowAlert is an unusually large options trade
type FlowAlert struct {
	Ticker         string          `json:"ticker"`
	Type           string          `json:"type"` // call, put
	Strike         decimal.Decimal `json:"strike"`
	Expiry         string          `json:"expiry"`
	TotalPremium   decimal.Decimal `json:"total_premium"`
	TotalSize      int64           `json:"total_size"`
	Volume         int64           `json:"volume"`
	OpenInterest   int64           `json:"open_interest"`
	AskSidePremium decimal.Decimal `json:"total_ask_side_prem"`
	BidSidePremium decimal.Decimal `json:"total_bid_side_prem"`
	HasSweep       bool            `json:"has_sweep"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsCall reports whether the alert is on a call contract
func (f FlowAlert) IsCall() bool {
	return f.Type == "call" || f.Type == "CALL" || f.Type == "C"
}

// IsPut reports whether the alert is on a put contract
func (f FlowAlert) IsPut() bool {
	return f.Type == "put" || f.Type == "PUT" || f.Type == "P"
}

// DarkPoolTrade is an off-exchange print
type DarkPoolTrade struct {
	Ticker     string          `json:"ticker"`
	Price      decimal.Decimal `json:"price"`
	Size       int64           `json:"size"`
	Premium    decimal.Decimal `json:"premium"`
	NBBOBid    decimal.Decimal `json:"nbbo_bid"`
	NBBOAsk    decimal.Decimal `json:"nbbo_ask"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Side classifies the print against the NBBO midpoint: 1 at or above, -1 below, 0 unknown.
func (d DarkPoolTrade) Side() int {
	if d.NBBOBid.IsZero() || d.NBBOAsk.IsZero() {
		return 0
	}
	mid := d.NBBOBid.Add(d.NBBOAsk).Div(decimal.NewFromInt(2))
	if d.Price.GreaterThanOrEqual(mid) {
		return 1
	}
	return -1
}
