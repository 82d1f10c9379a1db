package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/provider"
)

const (
	chartURL  = "https://query1.finance.yahoo.com/v8/finance/chart"
	searchURL = "https://query1.finance.yahoo.com/v1/finance/search"

	priority = 10
)

// validTicker matches canonical tickers after symbol resolution.
var validTicker = regexp.MustCompile(`^[A-Z0-9-]{1,12}$`)

// Yahoo adapts the Yahoo Finance chart API. It is the generalist
// strategy: it handles every asset type and is the primary chart-capable
// provider for historical windows.
type Yahoo struct {
	client    *http.Client
	chartURL  string
	searchURL string
}

// New creates a Yahoo adapter.
func New() *Yahoo {
	return &Yahoo{
		client: &http.Client{
			Timeout: provider.DefaultTimeout,
		},
		chartURL:  chartURL,
		searchURL: searchURL,
	}
}

// NewWithBaseURL creates a Yahoo adapter against a custom endpoint (for testing).
func NewWithBaseURL(chart, search string) *Yahoo {
	y := New()
	y.chartURL = chart
	y.searchURL = search
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

func (y *Yahoo) Priority() int {
	return priority
}

func (y *Yahoo) CanHandle(ticker string, _ core.AssetType) bool {
	return validTicker.MatchString(ticker)
}

// toYahooSymbol converts a canonical ticker to Yahoo's format.
// B3 equities get the .SA suffix, crypto becomes a -USD pair.
func toYahooSymbol(ticker string, assetType core.AssetType) string {
	switch assetType {
	case core.AssetBRStock:
		return ticker + ".SA"
	case core.AssetCrypto:
		return ticker + "-USD"
	default:
		return ticker
	}
}

// Quote fetches the live price. The returned currency is the upstream's
// native one (BRL for .SA symbols, USD otherwise); conversion is the
// orchestrator's job.
func (y *Yahoo) Quote(ctx context.Context, ticker string, assetType core.AssetType, _ core.Currency) (*core.Quote, error) {
	sym := toYahooSymbol(ticker, assetType)
	u := fmt.Sprintf("%s/%s?interval=1d&range=1d", y.chartURL, url.PathEscape(sym))

	var result chartResponse
	if err := y.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	r, err := firstResult(result)
	if err != nil {
		return nil, err
	}

	meta := r.Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("non-positive price for %s", sym))
	}

	currency := core.Currency(meta.Currency)
	if !currency.IsSupported() {
		currency = core.CurrencyUSD
	}

	q := &core.Quote{
		Symbol:    ticker,
		Price:     meta.RegularMarketPrice,
		Currency:  currency,
		Source:    "yahoo",
		Time:      time.Unix(meta.RegularMarketTime, 0).UTC(),
		AssetType: assetType,
	}
	if meta.ChartPreviousClose > 0 {
		q.Change = meta.RegularMarketPrice - meta.ChartPreviousClose
		q.ChangePercent = q.Change / meta.ChartPreviousClose * 100
	}
	return q, nil
}

// HistoricalSeries fetches daily bars covering [start, end].
func (y *Yahoo) HistoricalSeries(ctx context.Context, ticker string, assetType core.AssetType, start, end time.Time) ([]core.PricePoint, error) {
	sym := toYahooSymbol(ticker, assetType)
	u := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		y.chartURL, url.PathEscape(sym), start.Unix(), end.Unix())

	var result chartResponse
	if err := y.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	r, err := firstResult(result)
	if err != nil {
		return nil, err
	}

	if len(r.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("missing quote indicators for %s", sym))
	}
	quotes := r.Indicators.Quote[0]

	points := make([]core.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quotes.Close) || quotes.Close[i] == nil || *quotes.Close[i] <= 0 {
			continue
		}
		p := core.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *quotes.Close[i],
		}
		if i < len(quotes.Open) && quotes.Open[i] != nil {
			p.Open = *quotes.Open[i]
		}
		if i < len(quotes.High) && quotes.High[i] != nil {
			p.High = *quotes.High[i]
		}
		if i < len(quotes.Low) && quotes.Low[i] != nil {
			p.Low = *quotes.Low[i]
		}
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			p.Volume = *quotes.Volume[i]
		}
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty series for %s", sym))
	}
	return points, nil
}

// Search queries Yahoo's symbol search endpoint.
func (y *Yahoo) Search(ctx context.Context, query string, _ core.AssetType) ([]core.SymbolMatch, error) {
	u := fmt.Sprintf("%s?q=%s&quotesCount=10&newsCount=0", y.searchURL, url.QueryEscape(query))

	var result searchResponse
	if err := y.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	matches := make([]core.SymbolMatch, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		matches = append(matches, core.SymbolMatch{Symbol: q.Symbol, Name: name})
	}
	return matches, nil
}

// getJSON issues a GET and decodes the body, translating every failure
// mode into a core error.
func (y *Yahoo) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.WrapError(core.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ativo/1.0)")

	resp, err := y.client.Do(req)
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

func firstResult(result chartResponse) (chartResult, error) {
	if result.Chart.Error != nil {
		return chartResult{}, core.WrapError(core.ErrUpstreamUnavailable, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 {
		return chartResult{}, core.WrapError(core.ErrNoData, fmt.Errorf("empty result set"))
	}
	return result.Chart.Result[0], nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}
