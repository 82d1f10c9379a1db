package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mfcastro/ativo/internal/cache"
	"github.com/mfcastro/ativo/internal/core"
)

const (
	awesomeURL = "https://economia.awesomeapi.com.br/json"
	erAPIURL   = "https://open.er-api.com/v6/latest/USD"

	// DefaultFallbackRate is the documented static degradation used only
	// when both upstream rate sources fail.
	DefaultFallbackRate = 5.0

	requestTimeout = 8 * time.Second

	// degradedTTL bounds how long a static-fallback rate is served
	// before the upstream chain is retried.
	degradedTTL = time.Minute
)

// Converter resolves a USD/BRL rate through a small fallback chain and
// converts prices between the two currencies. Resolved rates are cached
// with a short TTL.
type Converter struct {
	client       *http.Client
	awesomeURL   string
	erAPIURL     string
	fallbackRate float64
	cache        *cache.Cache
	ttl          time.Duration
	logger       *zap.Logger
}

// Options tune a Converter. Zero values fall back to defaults.
type Options struct {
	AwesomeURL   string
	ERAPIURL     string
	FallbackRate float64
	TTL          time.Duration
}

// NewConverter creates a Converter backed by the shared cache.
func NewConverter(c *cache.Cache, logger *zap.Logger, opts Options) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	conv := &Converter{
		client:       &http.Client{Timeout: requestTimeout},
		awesomeURL:   awesomeURL,
		erAPIURL:     erAPIURL,
		fallbackRate: DefaultFallbackRate,
		cache:        c,
		ttl:          10 * time.Minute,
		logger:       logger,
	}
	if opts.AwesomeURL != "" {
		conv.awesomeURL = opts.AwesomeURL
	}
	if opts.ERAPIURL != "" {
		conv.erAPIURL = opts.ERAPIURL
	}
	if opts.FallbackRate > 0 {
		conv.fallbackRate = opts.FallbackRate
	}
	if opts.TTL > 0 {
		conv.ttl = opts.TTL
	}
	return conv
}

// USDBRL resolves the USD/BRL rate, optionally for a past date. The
// chain is: AwesomeAPI (supports historical-by-date) -> open.er-api.com
// (latest only) -> static fallback. The static fallback is an explicit,
// logged degradation, never a silent one.
func (c *Converter) USDBRL(ctx context.Context, asOf *time.Time) core.ExchangeRate {
	key := rateKey(asOf)
	if v, ok := c.cache.Get(key); ok {
		return v.(core.ExchangeRate)
	}

	rate, err := c.fromAwesome(ctx, asOf)
	if err != nil {
		c.logger.Debug("awesomeapi rate lookup failed", zap.Error(err))
		rate, err = c.fromERAPI(ctx)
	}
	if err != nil {
		c.logger.Warn("exchange-rate chain exhausted, using static fallback",
			zap.Float64("rate", c.fallbackRate), zap.Error(err))
		rate = core.ExchangeRate{
			Base:     core.CurrencyUSD,
			Quote:    core.CurrencyBRL,
			Rate:     c.fallbackRate,
			AsOf:     time.Now().UTC(),
			Source:   "static",
			Degraded: true,
		}
	}

	ttl := c.ttl
	if rate.Degraded {
		ttl = degradedTTL
	}
	c.cache.Put(key, rate, ttl)
	return rate
}

// Convert converts price between USD and BRL. A no-op when from == to.
// The returned bool reports whether the rate was degraded.
func (c *Converter) Convert(ctx context.Context, price float64, from, to core.Currency, asOf *time.Time) (float64, bool, error) {
	if from == to {
		return price, false, nil
	}
	if !from.IsSupported() || !to.IsSupported() {
		return 0, false, core.WrapError(core.ErrUnsupportedCurrency,
			fmt.Errorf("cannot convert %s to %s", from, to))
	}

	rate := c.USDBRL(ctx, asOf)
	if from == core.CurrencyUSD {
		return price * rate.Rate, rate.Degraded, nil
	}
	return price / rate.Rate, rate.Degraded, nil
}

// fromAwesome queries AwesomeAPI. With an asOf date it uses the daily
// endpoint (`[{"bid":"5.43",...}]`); otherwise the last endpoint
// (`{"USDBRL":{"bid":"5.43"}}`). Bids arrive as strings and are parsed
// exactly before collapsing to float64.
func (c *Converter) fromAwesome(ctx context.Context, asOf *time.Time) (core.ExchangeRate, error) {
	if asOf != nil {
		day := asOf.UTC().Format("20060102")
		u := fmt.Sprintf("%s/daily/USD-BRL/?start_date=%s&end_date=%s", c.awesomeURL, day, day)

		var result []awesomeQuote
		if err := c.getJSON(ctx, u, &result); err != nil {
			return core.ExchangeRate{}, err
		}
		if len(result) == 0 {
			return core.ExchangeRate{}, core.WrapError(core.ErrNoData, fmt.Errorf("no rate for %s", day))
		}
		return c.awesomeRate(result[0], *asOf)
	}

	u := fmt.Sprintf("%s/last/USD-BRL", c.awesomeURL)
	var result map[string]awesomeQuote
	if err := c.getJSON(ctx, u, &result); err != nil {
		return core.ExchangeRate{}, err
	}
	q, ok := result["USDBRL"]
	if !ok {
		return core.ExchangeRate{}, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("missing USDBRL field"))
	}
	return c.awesomeRate(q, time.Now().UTC())
}

func (c *Converter) awesomeRate(q awesomeQuote, asOf time.Time) (core.ExchangeRate, error) {
	bid, err := decimal.NewFromString(q.Bid)
	if err != nil {
		return core.ExchangeRate{}, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("bid %q: %w", q.Bid, err))
	}
	rate := bid.InexactFloat64()
	if rate <= 0 {
		return core.ExchangeRate{}, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("non-positive rate %s", q.Bid))
	}
	return core.ExchangeRate{
		Base:   core.CurrencyUSD,
		Quote:  core.CurrencyBRL,
		Rate:   rate,
		AsOf:   asOf.UTC(),
		Source: "awesomeapi",
	}, nil
}

// fromERAPI queries open.er-api.com for the latest USD rates.
func (c *Converter) fromERAPI(ctx context.Context) (core.ExchangeRate, error) {
	var result erAPIResponse
	if err := c.getJSON(ctx, c.erAPIURL, &result); err != nil {
		return core.ExchangeRate{}, err
	}

	rate, ok := result.Rates["BRL"]
	if !ok || rate <= 0 {
		return core.ExchangeRate{}, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("missing or invalid BRL rate"))
	}
	return core.ExchangeRate{
		Base:   core.CurrencyUSD,
		Quote:  core.CurrencyBRL,
		Rate:   rate,
		AsOf:   time.Now().UTC(),
		Source: "er-api",
	}, nil
}

func (c *Converter) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.WrapError(core.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

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

func rateKey(asOf *time.Time) string {
	if asOf == nil {
		return "rate:USDBRL:live"
	}
	return "rate:USDBRL:" + asOf.UTC().Format("2006-01-02")
}

// Upstream response types
type awesomeQuote struct {
	Bid       string `json:"bid"`
	Timestamp string `json:"timestamp"`
}

type erAPIResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}
