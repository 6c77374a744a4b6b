package birdeye

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/httpx"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
)

const (
	defaultBaseURL = "https://public-api.birdeye.so"
	requestTimeout = 10 * time.Second
	requestRetries = 2
)

// Client talks to the Birdeye market data API.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
	logger  logger.Logger
}

func NewClient(apiKey string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    httpx.New(requestTimeout, requestRetries),
		logger:  log,
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"X-API-KEY": c.apiKey,
		"x-chain":   "solana",
	}
}

type priceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Value           float64 `json:"value"`
		UpdateUnixTime  int64   `json:"updateUnixTime"`
		PriceChange24H  float64 `json:"priceChange24h"`
		UpdateHumanTime string  `json:"updateHumanTime"`
	} `json:"data"`
}

// Price returns the current USD price of a mint.
func (c *Client) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	endpoint := c.baseURL + "/defi/price?address=" + url.QueryEscape(mint)

	var resp priceResponse
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		metrics.PriceLookups.WithLabelValues("error").Inc()
		return decimal.Zero, apperr.Wrap(apperr.CodeUnavailable, "price lookup failed", err)
	}
	if !resp.Success || resp.Data.Value <= 0 {
		metrics.PriceLookups.WithLabelValues("error").Inc()
		return decimal.Zero, apperr.Newf(apperr.CodeUnavailable, "no price available for %s", mint)
	}
	metrics.PriceLookups.WithLabelValues("ok").Inc()
	return decimal.NewFromFloat(resp.Data.Value), nil
}

// TokenMatch is one candidate returned by a symbol search, ordered by
// 24h trade volume so the liquid market wins ambiguous symbols.
type TokenMatch struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Decimals     uint8   `json:"decimals"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
}

type searchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			Type   string       `json:"type"`
			Result []TokenMatch `json:"result"`
		} `json:"items"`
	} `json:"data"`
}

// SearchSymbol finds token candidates for a free-form symbol.
func (c *Client) SearchSymbol(ctx context.Context, symbol string) ([]TokenMatch, error) {
	q := url.Values{}
	q.Set("keyword", symbol)
	q.Set("target", "token")
	q.Set("sort_by", "volume_24h_usd")
	q.Set("sort_type", "desc")
	endpoint := c.baseURL + "/defi/v3/search?" + q.Encode()

	var resp searchResponse
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, "symbol search failed", err)
	}
	if !resp.Success {
		return nil, apperr.Newf(apperr.CodeUnavailable, "symbol search rejected for %q", symbol)
	}

	var matches []TokenMatch
	for _, item := range resp.Data.Items {
		if item.Type != "token" {
			continue
		}
		matches = append(matches, item.Result...)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Volume24hUSD > matches[j].Volume24hUSD
	})
	return matches, nil
}

// Holding is one wallet position from the portfolio endpoint.
type Holding struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals uint8   `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
	ValueUSD float64 `json:"valueUsd"`
}

type portfolioResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Wallet   string    `json:"wallet"`
		TotalUSD float64   `json:"totalUsd"`
		Items    []Holding `json:"items"`
	} `json:"data"`
}

// Portfolio lists the wallet's token holdings with USD valuations.
func (c *Client) Portfolio(ctx context.Context, wallet string) ([]Holding, decimal.Decimal, error) {
	endpoint := c.baseURL + "/v1/wallet/token_list?wallet=" + url.QueryEscape(wallet)

	var resp portfolioResponse
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return nil, decimal.Zero, apperr.Wrap(apperr.CodeUnavailable, "portfolio lookup failed", err)
	}
	if !resp.Success {
		return nil, decimal.Zero, apperr.Newf(apperr.CodeUnavailable, "portfolio lookup rejected for %s", wallet)
	}
	return resp.Data.Items, decimal.NewFromFloat(resp.Data.TotalUSD), nil
}
