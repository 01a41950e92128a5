package testing

import (
	"context"
	"sync"

	"github.com/souhailsouid/adele/internal/model"
)

// MockWhalesSource is an in-memory implementation of feeds.WhalesSource
type MockWhalesSource struct {
	mu            sync.RWMutex
	flow          map[string][]model.FlowAlert
	darkPool      map[string][]model.DarkPoolTrade
	insider       map[string][]model.InsiderTrade
	congress      map[string][]model.CongressTrade
	institutional map[string][]model.InstitutionalHolding
	errs          map[string]error
	calls         map[string]int
}

// NewMockWhalesSource creates an empty mock
func NewMockWhalesSource() *MockWhalesSource {
	return &MockWhalesSource{
		flow:          map[string][]model.FlowAlert{},
		darkPool:      map[string][]model.DarkPoolTrade{},
		insider:       map[string][]model.InsiderTrade{},
		congress:      map[string][]model.CongressTrade{},
		institutional: map[string][]model.InstitutionalHolding{},
		errs:          map[string]error{},
		calls:         map[string]int{},
	}
}

// SetFlow sets the flow alerts returned for ticker
func (m *MockWhalesSource) SetFlow(ticker string, v []model.FlowAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flow[ticker] = v
}

// SetDarkPool sets the dark pool trades returned for ticker
func (m *MockWhalesSource) SetDarkPool(ticker string, v []model.DarkPoolTrade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.darkPool[ticker] = v
}

// SetInsider sets the insider trades returned for ticker
func (m *MockWhalesSource) SetInsider(ticker string, v []model.InsiderTrade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insider[ticker] = v
}

// SetCongress sets the congress trades returned for ticker
func (m *MockWhalesSource) SetCongress(ticker string, v []model.CongressTrade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.congress[ticker] = v
}

// SetInstitutional sets the holdings returned for ticker
func (m *MockWhalesSource) SetInstitutional(ticker string, v []model.InstitutionalHolding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.institutional[ticker] = v
}

// SetError makes the named feed fail
func (m *MockWhalesSource) SetError(feed string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[feed] = err
}

// Calls returns how many times the named feed was requested
func (m *MockWhalesSource) Calls(feed string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[feed]
}

func (m *MockWhalesSource) record(feed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[feed]++
	return m.errs[feed]
}

// FlowAlerts implements feeds.WhalesSource
func (m *MockWhalesSource) FlowAlerts(_ context.Context, ticker string, _ int) ([]model.FlowAlert, error) {
	if err := m.record(model.FeedFlow); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flow[ticker], nil
}

// DarkPoolTrades implements feeds.WhalesSource
func (m *MockWhalesSource) DarkPoolTrades(_ context.Context, ticker string, _ int) ([]model.DarkPoolTrade, error) {
	if err := m.record(model.FeedDarkPool); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.darkPool[ticker], nil
}

// InsiderTransactions implements feeds.WhalesSource
func (m *MockWhalesSource) InsiderTransactions(_ context.Context, ticker string) ([]model.InsiderTrade, error) {
	if err := m.record(model.FeedInsider); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.insider[ticker], nil
}

// CongressTrades implements feeds.WhalesSource
func (m *MockWhalesSource) CongressTrades(_ context.Context, ticker string) ([]model.CongressTrade, error) {
	if err := m.record(model.FeedCongress); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.congress[ticker], nil
}

// InstitutionalOwnership implements feeds.WhalesSource
func (m *MockWhalesSource) InstitutionalOwnership(_ context.Context, ticker string) ([]model.InstitutionalHolding, error) {
	if err := m.record(model.FeedInstitutional); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.institutional[ticker], nil
}

// MockMarketSource is an in-memory implementation of feeds.MarketSource
type MockMarketSource struct {
	mu      sync.RWMutex
	bars    map[string][]model.Bar
	quotes  map[string]*model.Quote
	dcf     map[string]*model.DCF
	insider map[string][]model.InsiderTrade
	events  []model.EconomicEvent
	errs    map[string]error
	calls   map[string]int
}

// NewMockMarketSource creates an empty mock
func NewMockMarketSource() *MockMarketSource {
	return &MockMarketSource{
		bars:    map[string][]model.Bar{},
		quotes:  map[string]*model.Quote{},
		dcf:     map[string]*model.DCF{},
		insider: map[string][]model.InsiderTrade{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

// SetBars sets the bars returned for ticker
func (m *MockMarketSource) SetBars(ticker string, v []model.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[ticker] = v
}

// SetQuote sets the quote returned for ticker
func (m *MockMarketSource) SetQuote(ticker string, v *model.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[ticker] = v
}

// SetDCF sets the valuation returned for ticker
func (m *MockMarketSource) SetDCF(ticker string, v *model.DCF) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dcf[ticker] = v
}

// SetInsider sets the fallback insider trades returned for ticker
func (m *MockMarketSource) SetInsider(ticker string, v []model.InsiderTrade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insider[ticker] = v
}

// SetEconomicCalendar sets the events returned for any date range
func (m *MockMarketSource) SetEconomicCalendar(v []model.EconomicEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = v
}

// SetError makes the named feed fail
func (m *MockMarketSource) SetError(feed string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[feed] = err
}

// Calls returns how many times the named feed was requested
func (m *MockMarketSource) Calls(feed string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[feed]
}

func (m *MockMarketSource) record(feed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[feed]++
	return m.errs[feed]
}

// HistoricalPrices implements feeds.MarketSource
func (m *MockMarketSource) HistoricalPrices(_ context.Context, ticker string, _ int) ([]model.Bar, error) {
	if err := m.record(model.FeedPrices); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bars[ticker], nil
}

// Quote implements feeds.MarketSource
func (m *MockMarketSource) Quote(_ context.Context, ticker string) (*model.Quote, error) {
	if err := m.record(model.FeedQuote); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quotes[ticker], nil
}

// DCF implements feeds.MarketSource
func (m *MockMarketSource) DCF(_ context.Context, ticker string) (*model.DCF, error) {
	if err := m.record(model.FeedDCF); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dcf[ticker], nil
}

// InsiderTrading implements feeds.MarketSource
func (m *MockMarketSource) InsiderTrading(_ context.Context, ticker string) ([]model.InsiderTrade, error) {
	if err := m.record("fmp_insider"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.insider[ticker], nil
}

// EconomicCalendar implements feeds.MarketSource
func (m *MockMarketSource) EconomicCalendar(_ context.Context, _, _ string) ([]model.EconomicEvent, error) {
	if err := m.record("economic"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events, nil
}
