package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/provider"
	"github.com/mfcastro/ativo/internal/symbol"
)

const (
	baseURL = "https://api.coingecko.com/api/v3"

	priority = 10
)

// CoinGecko adapts the CoinGecko simple-price API for cryptocurrencies.
// It quotes directly in the requested currency (both usd and brl are
// asked for), so the orchestrator rarely needs to convert.
type CoinGecko struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// New creates a CoinGecko adapter. The API key is optional.
func New(apiKey string) *CoinGecko {
	return &CoinGecko{
		client: &http.Client{
			Timeout: provider.DefaultTimeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// NewWithBaseURL creates a CoinGecko adapter with custom base URL (for testing).
func NewWithBaseURL(apiKey, u string) *CoinGecko {
	c := New(apiKey)
	c.baseURL = u
	return c
}

func (c *CoinGecko) Name() string {
	return "coingecko"
}

func (c *CoinGecko) Priority() int {
	return priority
}

// CanHandle accepts only tickers present in the crypto-id table.
func (c *CoinGecko) CanHandle(ticker string, assetType core.AssetType) bool {
	if assetType != core.AssetCrypto {
		return false
	}
	_, ok := symbol.CoinID(ticker)
	return ok
}

// Quote fetches the live price in the requested currency.
func (c *CoinGecko) Quote(ctx context.Context, ticker string, assetType core.AssetType, currency core.Currency) (*core.Quote, error) {
	coinID, ok := symbol.CoinID(ticker)
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no coin id for %s", ticker))
	}
	vs := strings.ToLower(string(currency))

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd,brl&include_24hr_change=true&include_last_updated_at=true",
		c.baseURL, url.QueryEscape(coinID))

	var result map[string]map[string]float64
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	coinData, ok := result[coinID]
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for coin %s", coinID))
	}

	price := coinData[vs]
	if price <= 0 {
		return nil, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("non-positive price for %s in %s", coinID, vs))
	}

	changePercent := coinData[vs+"_24h_change"]
	q := &core.Quote{
		Symbol:        ticker,
		Price:         price,
		ChangePercent: changePercent,
		Currency:      currency,
		Source:        "coingecko",
		Time:          time.Unix(int64(coinData["last_updated_at"]), 0).UTC(),
		AssetType:     assetType,
	}
	// 24h change is quoted against the price a day ago.
	if changePercent > -100 {
		q.Change = price - price/(1+changePercent/100)
	}
	return q, nil
}

// HistoricalSeries fetches daily price samples. CoinGecko's market chart
// carries close prices only, so each bar collapses OHLC onto the close.
func (c *CoinGecko) HistoricalSeries(ctx context.Context, ticker string, _ core.AssetType, start, end time.Time) ([]core.PricePoint, error) {
	coinID, ok := symbol.CoinID(ticker)
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no coin id for %s", ticker))
	}

	u := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=usd&from=%d&to=%d",
		c.baseURL, url.PathEscape(coinID), start.Unix(), end.Unix())

	var result marketChartResponse
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	points := make([]core.PricePoint, 0, len(result.Prices))
	for i, sample := range result.Prices {
		if len(sample) < 2 || sample[1] <= 0 {
			continue
		}
		p := core.PricePoint{
			Date:  time.UnixMilli(int64(sample[0])).UTC(),
			Open:  sample[1],
			High:  sample[1],
			Low:   sample[1],
			Close: sample[1],
		}
		if i < len(result.TotalVolumes) && len(result.TotalVolumes[i]) >= 2 {
			p.Volume = int64(result.TotalVolumes[i][1])
		}
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty series for %s", coinID))
	}
	return points, nil
}

// Search queries CoinGecko's coin search endpoint.
func (c *CoinGecko) Search(ctx context.Context, query string, _ core.AssetType) ([]core.SymbolMatch, error) {
	u := fmt.Sprintf("%s/search?query=%s", c.baseURL, url.QueryEscape(query))

	var result searchResponse
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	matches := make([]core.SymbolMatch, 0, len(result.Coins))
	for _, coin := range result.Coins {
		if coin.Symbol == "" {
			continue
		}
		matches = append(matches, core.SymbolMatch{
			Symbol: strings.ToUpper(coin.Symbol),
			Name:   coin.Name,
		})
	}
	return matches, nil
}

func (c *CoinGecko) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.WrapError(core.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.WrapError(core.ErrUpstreamUnavailable, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.WrapError(core.ErrUpstreamMalformed, err)
	}
	return nil
}

// CoinGecko API response types
type marketChartResponse struct {
	Prices       [][]float64 `json:"prices"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

type searchResponse struct {
	Coins []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"coins"`
}
