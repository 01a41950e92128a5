package unusualwhales

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/souhailsouid/adele/internal/model"
	httpClient "github.com/souhailsouid/adele/internal/platform/http"
)

const defaultBaseURL = "https://api.unusualwhales.com"

// Client is the Unusual Whales API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Unusual Whales client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new Unusual Whales API client
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
		logger: log.With().Str("component", "unusualwhales_client").Logger(),
	}
}

type envelope[T any] struct {
	Data []T `json:"data"`
}

// FlowAlerts fetches recent options flow alerts for a ticker
func (c *Client) FlowAlerts(ctx context.Context, ticker string, limit int) ([]model.FlowAlert, error) {
	q := url.Values{}
	q.Set("ticker_symbol", ticker)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return getData[model.FlowAlert](ctx, c, "/api/option-trades/flow-alerts", q)
}

// DarkPoolTrades fetches recent dark pool prints for a ticker
func (c *Client) DarkPoolTrades(ctx context.Context, ticker string, limit int) ([]model.DarkPoolTrade, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return getData[model.DarkPoolTrade](ctx, c, "/api/darkpool/"+url.PathEscape(ticker), q)
}

// InsiderTransactions fetches Form 4 insider transactions for a ticker
func (c *Client) InsiderTransactions(ctx context.Context, ticker string) ([]model.InsiderTrade, error) {
	q := url.Values{}
	q.Set("ticker_symbol", ticker)
	return getData[model.InsiderTrade](ctx, c, "/api/insider/transactions", q)
}

// CongressTrades fetches congressional trades disclosed for a ticker
func (c *Client) CongressTrades(ctx context.Context, ticker string) ([]model.CongressTrade, error) {
	q := url.Values{}
	q.Set("ticker", ticker)
	return getData[model.CongressTrade](ctx, c, "/api/congress/recent-trades", q)
}

// InstitutionalOwnership fetches the 13F holders of a ticker
func (c *Client) InstitutionalOwnership(ctx context.Context, ticker string) ([]model.InstitutionalHolding, error) {
	holdings, err := getData[model.InstitutionalHolding](ctx, c, "/api/institution/"+url.PathEscape(ticker)+"/ownership", nil)
	if err != nil {
		return nil, err
	}
	for i := range holdings {
		if holdings[i].Ticker == "" {
			holdings[i].Ticker = ticker
		}
	}
	return holdings, nil
}

// Raw performs a GET on an arbitrary API path and returns the body untouched
func (c *Client) Raw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("unusual whales returned invalid JSON for %s", path)
	}
	return json.RawMessage(body), nil
}

func getData[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var data envelope[T]
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	c.logger.Debug().Str("path", path).Int("count", len(data.Data)).Msg("Fetched")
	return data.Data, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	c.logger.Debug().Str("url", u).Msg("Requesting")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("unusual whales %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
