package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// InsiderTrade is a Form 4 transaction reported by a company insider
type InsiderTrade struct {
	Ticker          string          `json:"ticker"`
	OwnerName       string          `json:"owner_name"`
	TransactionCode string          `json:"transaction_code"` // P purchase, S sale, A award, ...
	Shares          decimal.Decimal `json:"amount"`
	Price           decimal.Decimal `json:"price"`
	FilingDate      string          `json:"filing_date"`
	TransactionDate string          `json:"transaction_date"`
}

// IsPurchase reports an open-market purchase
func (t InsiderTrade) IsPurchase() bool {
	return strings.HasPrefix(strings.ToUpper(t.TransactionCode), "P")
}

// IsSale reports an open-market sale
func (t InsiderTrade) IsSale() bool {
	return strings.HasPrefix(strings.ToUpper(t.TransactionCode), "S")
}

// Value is |shares| * price
func (t InsiderTrade) Value() decimal.Decimal {
	return t.Shares.Abs().Mul(t.Price)
}

// CongressTrade is a disclosed transaction by a member of Congress
type CongressTrade struct {
	Ticker          string `json:"ticker"`
	Name            string `json:"name"`
	TransactionType string `json:"txn_type"`
	Amounts         string `json:"amounts"`
	TransactionDate string `json:"transaction_date"`
}

// IsBuy reports a purchase
func (t CongressTrade) IsBuy() bool {
	return strings.EqualFold(strings.TrimSpace(t.TransactionType), "buy") ||
		strings.EqualFold(strings.TrimSpace(t.TransactionType), "purchase")
}

// IsSell reports a full or partial sale
func (t CongressTrade) IsSell() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(t.TransactionType)), "sell") ||
		strings.HasPrefix(strings.ToLower(strings.TrimSpace(t.TransactionType)), "sale")
}

// InstitutionalHolding is a position reported on a 13F filing
type InstitutionalHolding struct {
	Name        string          `json:"name"`
	Ticker      string          `json:"ticker"`
	Units       int64           `json:"units"`
	UnitsChange int64           `json:"units_changed"`
	Value       decimal.Decimal `json:"value"`
	ReportDate  string          `json:"report_date"`
}

// PriorUnits is the position size before the reported change
func (h InstitutionalHolding) PriorUnits() int64 {
	return h.Units - h.UnitsChange
}
