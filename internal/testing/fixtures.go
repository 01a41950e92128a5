package testing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/souhailsouid/adele/internal/model"
)

// GenerateBars builds n daily bars using generator, dated consecutively from 2024-01-01
func GenerateBars(n int, generator func(i int) model.Bar) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		b := generator(i)
		if b.Date == "" {
			b.Date = start.AddDate(0, 0, i).Format("2006-01-02")
		}
		bars[i] = b
	}
	return bars
}

// FlatBars returns n bars with a small alternating wiggle around price and constant volume
func FlatBars(n int, price float64, volume int64) []model.Bar {
	return GenerateBars(n, func(i int) model.Bar {
		p := price + float64(i%2)*0.5
		return model.Bar{Open: p, High: p + 1, Low: p - 1, Close: p, Volume: volume}
	})
}

// Call builds a call flow alert with the given premium
func Call(ticker string, premium int64) model.FlowAlert {
	return model.FlowAlert{Ticker: ticker, Type: "call", TotalPremium: decimal.NewFromInt(premium)}
}

// Put builds a put flow alert with the given premium
func Put(ticker string, premium int64) model.FlowAlert {
	return model.FlowAlert{Ticker: ticker, Type: "put", TotalPremium: decimal.NewFromInt(premium)}
}

// Print builds a dark pool trade at price with a 10.00/10.10 style NBBO around mid
func Print(ticker string, price, bid, ask float64, size int64) model.DarkPoolTrade {
	p := decimal.NewFromFloat(price)
	return model.DarkPoolTrade{
		Ticker:  ticker,
		Price:   p,
		Size:    size,
		Premium: p.Mul(decimal.NewFromInt(size)),
		NBBOBid: decimal.NewFromFloat(bid),
		NBBOAsk: decimal.NewFromFloat(ask),
	}
}

// Insider builds an insider transaction
func Insider(ticker, owner, code string, shares int64, price float64, date string) model.InsiderTrade {
	return model.InsiderTrade{
		Ticker:          ticker,
		OwnerName:       owner,
		TransactionCode: code,
		Shares:          decimal.NewFromInt(shares),
		Price:           decimal.NewFromFloat(price),
		FilingDate:      date,
		TransactionDate: date,
	}
}

// Holders builds n institutional holdings each with units and change
func Holders(ticker string, n int, units, change int64) []model.InstitutionalHolding {
	out := make([]model.InstitutionalHolding, n)
	for i := range out {
		out[i] = model.InstitutionalHolding{
			Name:        fmt.Sprintf("FUND %d", i),
			Ticker:      ticker,
			Units:       units,
			UnitsChange: change,
		}
	}
	return out
}
