package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/provider"
)

const (
	baseURL = "https://brapi.dev/api"

	priority = 20
)

// Brapi adapts the brapi.dev quote API for B3-listed equities. A token
// is required; the registry excludes the adapter at startup when the
// credential is unset.
type Brapi struct {
	client  *http.Client
	baseURL string
	token   string
}

// New creates a brapi adapter with the given API token.
func New(token string) *Brapi {
	return &Brapi{
		client: &http.Client{
			Timeout: provider.DefaultTimeout,
		},
		baseURL: baseURL,
		token:   token,
	}
}

// NewWithBaseURL creates a brapi adapter against a custom endpoint (for testing).
func NewWithBaseURL(token, u string) *Brapi {
	b := New(token)
	b.baseURL = u
	return b
}

func (b *Brapi) Name() string {
	return "brapi"
}

func (b *Brapi) Priority() int {
	return priority
}

func (b *Brapi) CanHandle(_ string, assetType core.AssetType) bool {
	return assetType == core.AssetBRStock
}

// Quote fetches the live price. brapi quotes B3 equities in BRL.
func (b *Brapi) Quote(ctx context.Context, ticker string, assetType core.AssetType, _ core.Currency) (*core.Quote, error) {
	u := fmt.Sprintf("%s/quote/%s?token=%s", b.baseURL, url.PathEscape(ticker), url.QueryEscape(b.token))

	var result quoteResponse
	if err := b.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty result set for %s", ticker))
	}

	r := result.Results[0]
	if r.RegularMarketPrice <= 0 {
		return nil, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("non-positive price for %s", ticker))
	}

	currency := core.Currency(r.Currency)
	if !currency.IsSupported() {
		currency = core.CurrencyBRL
	}

	return &core.Quote{
		Symbol:        ticker,
		Name:          r.ShortName,
		Price:         r.RegularMarketPrice,
		Change:        r.RegularMarketChange,
		ChangePercent: r.RegularMarketChangePercent,
		Currency:      currency,
		Source:        "brapi",
		Time:          time.Unix(r.RegularMarketTime, 0).UTC(),
		AssetType:     assetType,
	}, nil
}

// HistoricalSeries fetches daily bars. brapi takes a range string, so
// the requested window is widened to the smallest covering range.
func (b *Brapi) HistoricalSeries(ctx context.Context, ticker string, _ core.AssetType, start, end time.Time) ([]core.PricePoint, error) {
	u := fmt.Sprintf("%s/quote/%s?range=%s&interval=1d&token=%s",
		b.baseURL, url.PathEscape(ticker), coveringRange(start, end), url.QueryEscape(b.token))

	var result quoteResponse
	if err := b.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty result set for %s", ticker))
	}

	bars := result.Results[0].HistoricalDataPrice
	points := make([]core.PricePoint, 0, len(bars))
	for _, bar := range bars {
		if bar.Close <= 0 {
			continue
		}
		date := time.Unix(bar.Date, 0).UTC()
		if date.Before(start) || date.After(end.Add(24*time.Hour)) {
			continue
		}
		points = append(points, core.PricePoint{
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty series for %s", ticker))
	}
	return points, nil
}

// Search queries brapi's symbol listing.
func (b *Brapi) Search(ctx context.Context, query string, _ core.AssetType) ([]core.SymbolMatch, error) {
	u := fmt.Sprintf("%s/available?search=%s&token=%s", b.baseURL, url.QueryEscape(query), url.QueryEscape(b.token))

	var result availableResponse
	if err := b.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	matches := make([]core.SymbolMatch, 0, len(result.Stocks))
	for _, s := range result.Stocks {
		matches = append(matches, core.SymbolMatch{Symbol: s})
	}
	return matches, nil
}

func (b *Brapi) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.WrapError(core.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
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

// coveringRange maps a [start, end] window to the smallest brapi range
// string that covers it, measured from now.
func coveringRange(start, _ time.Time) string {
	age := time.Since(start)
	switch {
	case age <= 30*24*time.Hour:
		return "1mo"
	case age <= 90*24*time.Hour:
		return "3mo"
	case age <= 180*24*time.Hour:
		return "6mo"
	case age <= 365*24*time.Hour:
		return "1y"
	case age <= 2*365*24*time.Hour:
		return "2y"
	default:
		return "5y"
	}
}

// brapi API response types
type quoteResponse struct {
	Results []struct {
		Symbol                     string  `json:"symbol"`
		ShortName                  string  `json:"shortName"`
		Currency                   string  `json:"currency"`
		RegularMarketPrice         float64 `json:"regularMarketPrice"`
		RegularMarketChange        float64 `json:"regularMarketChange"`
		RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
		RegularMarketTime          int64   `json:"regularMarketTime"`
		HistoricalDataPrice        []struct {
			Date   int64   `json:"date"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume int64   `json:"volume"`
		} `json:"historicalDataPrice"`
	} `json:"results"`
}

type availableResponse struct {
	Stocks []string `json:"stocks"`
}
