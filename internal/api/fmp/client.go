package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/souhailsouid/adele/internal/model"
	httpClient "github.com/souhailsouid/adele/internal/platform/http"
)

const defaultBaseURL = "https://financialmodelingprep.com"

// ErrNoData is returned when FMP answers with an empty payload
var ErrNoData = errors.New("fmp returned no data")

// Client is the Financial Modeling Prep API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new FMP client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new FMP API client
func NewClient(options ClientOptions) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  options.APIKey,
		baseURL: baseURL,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:         options.RequestTimeout,
			RequestsPerSec:  options.RequestsPerSec,
			MaxRetryTimeout: options.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "fmp_client").Logger(),
	}
}

// HistoricalPrices fetches daily bars for the last days sessions, oldest first
func (c *Client) HistoricalPrices(ctx context.Context, ticker string, days int) ([]model.Bar, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("timeseries", strconv.Itoa(days))
	}

	var data model.HistoricalResponse
	if err := c.getJSON(ctx, "/api/v3/historical-price-full/"+url.PathEscape(ticker), q, &data); err != nil {
		return nil, err
	}
	if len(data.Historical) == 0 {
		return nil, ErrNoData
	}

	// FMP returns newest first
	sort.Slice(data.Historical, func(i, j int) bool {
		return data.Historical[i].Date < data.Historical[j].Date
	})

	c.logger.Debug().Str("ticker", ticker).Int("count", len(data.Historical)).Msg("Fetched bars")
	return data.Historical, nil
}

// Quote fetches the latest quote
func (c *Client) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	var quotes []model.Quote
	if err := c.getJSON(ctx, "/api/v3/quote/"+url.PathEscape(ticker), nil, &quotes); err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, ErrNoData
	}
	return &quotes[0], nil
}

// DCF fetches the discounted cash flow valuation
func (c *Client) DCF(ctx context.Context, ticker string) (*model.DCF, error) {
	var values []model.DCF
	if err := c.getJSON(ctx, "/api/v3/discounted-cash-flow/"+url.PathEscape(ticker), nil, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}
	return &values[0], nil
}

// EconomicCalendar fetches economic events between from and to (YYYY-MM-DD)
func (c *Client) EconomicCalendar(ctx context.Context, from, to string) ([]model.EconomicEvent, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}

	var events []model.EconomicEvent
	if err := c.getJSON(ctx, "/api/v3/economic_calendar", q, &events); err != nil {
		return nil, err
	}
	return events, nil
}

type insiderTrade struct {
	Symbol               string          `json:"symbol"`
	FilingDate           string          `json:"filingDate"`
	TransactionDate      string          `json:"transactionDate"`
	ReportingName        string          `json:"reportingName"`
	TransactionType      string          `json:"transactionType"` // e.g. P-Purchase, S-Sale
	SecuritiesTransacted decimal.Decimal `json:"securitiesTransacted"`
	Price                decimal.Decimal `json:"price"`
}

// InsiderTrading fetches Form 4 transactions; used when Unusual Whales has no insider data
func (c *Client) InsiderTrading(ctx context.Context, ticker string) ([]model.InsiderTrade, error) {
	q := url.Values{}
	q.Set("symbol", ticker)

	var raw []insiderTrade
	if err := c.getJSON(ctx, "/api/v4/insider-trading", q, &raw); err != nil {
		return nil, err
	}

	trades := make([]model.InsiderTrade, 0, len(raw))
	for _, r := range raw {
		code, _, _ := strings.Cut(r.TransactionType, "-")
		trades = append(trades, model.InsiderTrade{
			Ticker:          r.Symbol,
			OwnerName:       r.ReportingName,
			TransactionCode: code,
			Shares:          r.SecuritiesTransacted,
			Price:           r.Price,
			FilingDate:      r.FilingDate,
			TransactionDate: r.TransactionDate,
		})
	}
	return trades, nil
}

// Raw performs a GET on an arbitrary API path and returns the body untouched
func (c *Client) Raw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("fmp returned invalid JSON for %s", path)
	}
	return json.RawMessage(body), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}

	// FMP reports errors with a 200 and an "Error Message" object
	if strings.Contains(string(body), `"Error Message"`) {
		c.logger.Error().Str("response", string(body)).Msg("FMP API error")
		return fmt.Errorf("FMP API error: %s", string(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("Error parsing JSON")
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("apikey", c.apiKey)
	u := c.baseURL + path + "?" + q.Encode()

	c.logger.Debug().Str("path", path).Msg("Requesting")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fmp %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
