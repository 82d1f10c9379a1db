package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mfcastro/ativo/internal/cache"
	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/currency"
	"github.com/mfcastro/ativo/internal/metrics"
	"github.com/mfcastro/ativo/internal/provider"
	"github.com/mfcastro/ativo/internal/symbol"
)

// TTLConfig holds the cache lifetimes for each value family.
type TTLConfig struct {
	Quote      time.Duration
	Historical time.Duration
	Negative   time.Duration
}

// DefaultTTL returns the standard lifetimes: live quotes age fast, a
// past date's close is immutable so it keeps for much longer, and
// failures are suppressed for a cooldown window.
func DefaultTTL() TTLConfig {
	return TTLConfig{
		Quote:      time.Minute,
		Historical: 30 * time.Minute,
		Negative:   5 * time.Minute,
	}
}

// Options tune a Service beyond its collaborators.
type Options struct {
	TTL        TTLConfig
	BatchSize  int
	BatchDelay time.Duration
	Clock      func() time.Time
}

// Service is the fallback orchestrator. It owns no upstream knowledge
// of its own: providers are tried strictly in priority order, the first
// usable price wins, and failures are suppressed through the negative
// cache.
type Service struct {
	registry  *provider.Registry
	cache     *cache.Cache
	converter *currency.Converter
	logger    *zap.Logger
	metrics   *metrics.Registry

	ttl        TTLConfig
	batchSize  int
	batchDelay time.Duration
	clock      func() time.Time
}

// New creates a Service.
func New(reg *provider.Registry, c *cache.Cache, conv *currency.Converter, logger *zap.Logger, m *metrics.Registry, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	s := &Service{
		registry:   reg,
		cache:      c,
		converter:  conv,
		logger:     logger,
		metrics:    m,
		ttl:        opts.TTL,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		clock:      opts.Clock,
	}
	if s.ttl == (TTLConfig{}) {
		s.ttl = DefaultTTL()
	}
	if s.batchSize <= 0 {
		s.batchSize = 5
	}
	if s.batchDelay <= 0 {
		s.batchDelay = 500 * time.Millisecond
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// normalize canonicalizes the request: alias resolution, classification
// when the caller did not provide an asset type, and a currency default
// matching the ticker's home market.
func normalize(raw string, assetType core.AssetType, cur core.Currency) (string, core.AssetType, core.Currency) {
	ticker := symbol.Resolve(raw)
	if assetType == "" || assetType == core.AssetUnknown {
		assetType = symbol.Classify(ticker)
	}
	if cur == "" {
		if assetType == core.AssetBRStock {
			cur = core.CurrencyBRL
		} else {
			cur = core.CurrencyUSD
		}
	}
	return ticker, assetType, cur
}

// nativeCurrency is the currency historical bars arrive in for a given
// asset type: B3 equities trade in BRL, everything else is fetched in USD.
func nativeCurrency(assetType core.AssetType) core.Currency {
	if assetType == core.AssetBRStock {
		return core.CurrencyBRL
	}
	return core.CurrencyUSD
}

// GetQuote resolves a live quote through the provider chain.
//
// The negative cache short-circuits before any upstream call; the
// positive cache returns the previous resolution unchanged. Providers
// are tried sequentially in priority order because that order encodes a
// deliberate preference, never fanned out in parallel.
func (s *Service) GetQuote(ctx context.Context, rawTicker string, assetType core.AssetType, cur core.Currency) (*core.Quote, error) {
	ticker, assetType, cur := normalize(rawTicker, assetType, cur)
	if !cur.IsSupported() {
		return nil, core.WrapError(core.ErrUnsupportedCurrency, fmt.Errorf("requested %s", cur))
	}

	key := fmt.Sprintf("quote:%s:%s:%s", ticker, assetType, cur)
	if s.cache.Failed(key) {
		s.metrics.RecordCacheEvent("negative_hit")
		s.metrics.RecordResolution("quote", "negative_cached")
		return nil, core.ErrNotFound
	}
	if v, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheEvent("hit")
		s.metrics.RecordResolution("quote", "cached")
		return v.(*core.Quote), nil
	}
	s.metrics.RecordCacheEvent("miss")

	candidates := s.registry.Candidates(ticker, assetType)
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, core.WrapError(core.ErrUpstreamUnavailable, err)
		}

		start := s.clock()
		q, err := p.Quote(ctx, ticker, assetType, cur)
		elapsed := s.clock().Sub(start).Seconds()

		if err != nil || q == nil || !q.IsValid() {
			s.metrics.RecordProviderRequest(p.Name(), "quote", "error", elapsed)
			s.logger.Debug("provider quote failed",
				zap.String("provider", p.Name()),
				zap.String("ticker", ticker),
				zap.Error(err))
			continue
		}
		s.metrics.RecordProviderRequest(p.Name(), "quote", "ok", elapsed)

		if q.Currency != cur {
			converted, degraded, convErr := s.converter.Convert(ctx, q.Price, q.Currency, cur, nil)
			if convErr != nil {
				s.logger.Debug("conversion failed",
					zap.String("provider", p.Name()),
					zap.Error(convErr))
				continue
			}
			s.metrics.RecordConversion(degraded)
			// The change scales by the same rate the price used; price
			// is known positive here.
			q.Change *= converted / q.Price
			q.Price = converted
			q.Currency = cur
		}

		s.cache.Put(key, q, s.ttl.Quote)
		s.metrics.RecordCacheEvent("store")
		s.metrics.RecordResolution("quote", "ok")
		return q, nil
	}

	s.cache.MarkFailed(key, s.ttl.Negative)
	s.metrics.RecordResolution("quote", "not_found")
	s.logger.Debug("quote exhausted all providers",
		zap.String("ticker", ticker),
		zap.Int("candidates", len(candidates)))
	return nil, core.ErrNotFound
}

// Historical window around the target date: back far enough to cover
// holidays stacked on a weekend, forward a little for timezone drift.
const (
	windowBack    = 7 * 24 * time.Hour
	windowForward = 3 * 24 * time.Hour
)

// GetHistoricalPrice resolves a representative closing price for a
// calendar date.
//
// The window [D-7d, D+3d] is fetched from chart-capable providers in
// priority order. Selection: the exact UTC day if present, else the
// latest point at or before D, else the earliest point after D. When
// every provider fails, the live quote substitutes for the requested
// date; the result is marked Degraded so callers can flag it.
func (s *Service) GetHistoricalPrice(ctx context.Context, rawTicker string, date time.Time, assetType core.AssetType, cur core.Currency) (*core.HistoricalPrice, error) {
	ticker, assetType, cur := normalize(rawTicker, assetType, cur)
	if !cur.IsSupported() {
		return nil, core.WrapError(core.ErrUnsupportedCurrency, fmt.Errorf("requested %s", cur))
	}

	day := date.UTC().Truncate(24 * time.Hour)
	key := fmt.Sprintf("hist:%s:%s:%s:%s", ticker, assetType, cur, day.Format("2006-01-02"))

	if s.cache.Failed(key) {
		s.metrics.RecordCacheEvent("negative_hit")
		return nil, core.ErrNotFound
	}
	if v, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheEvent("hit")
		return v.(*core.HistoricalPrice), nil
	}
	s.metrics.RecordCacheEvent("miss")

	start, end := day.Add(-windowBack), day.Add(windowForward)

	for _, p := range s.registry.Candidates(ticker, assetType) {
		if err := ctx.Err(); err != nil {
			return nil, core.WrapError(core.ErrUpstreamUnavailable, err)
		}

		began := s.clock()
		series, err := p.HistoricalSeries(ctx, ticker, assetType, start, end)
		elapsed := s.clock().Sub(began).Seconds()

		if err != nil || len(series) == 0 {
			s.metrics.RecordProviderRequest(p.Name(), "history", "error", elapsed)
			continue
		}
		s.metrics.RecordProviderRequest(p.Name(), "history", "ok", elapsed)

		point, ok := pickWindowPoint(series, day)
		if !ok {
			continue
		}

		price := point.Close
		native := nativeCurrency(assetType)
		degradedRate := false
		if native != cur {
			asOf := day
			var convErr error
			price, degradedRate, convErr = s.converter.Convert(ctx, price, native, cur, &asOf)
			if convErr != nil {
				continue
			}
			s.metrics.RecordConversion(degradedRate)
		}

		hp := &core.HistoricalPrice{
			Ticker:   ticker,
			Date:     point.Date,
			Price:    price,
			Currency: cur,
			Source:   p.Name(),
			Degraded: degradedRate,
		}
		s.cache.Put(key, hp, s.ttl.Historical)
		s.metrics.RecordCacheEvent("store")
		s.metrics.RecordResolution("historical_price", "ok")
		return hp, nil
	}

	// Deliberate policy: when no window data exists anywhere, the live
	// price stands in for the requested date as a lower-confidence
	// substitute, flagged Degraded.
	if q, err := s.GetQuote(ctx, ticker, assetType, cur); err == nil {
		s.logger.Warn("substituting live quote for historical price",
			zap.String("ticker", ticker),
			zap.Time("date", day))
		s.metrics.RecordResolution("historical_price", "degraded")
		return &core.HistoricalPrice{
			Ticker:   ticker,
			Date:     day,
			Price:    q.Price,
			Currency: q.Currency,
			Source:   q.Source,
			Degraded: true,
		}, nil
	}

	s.cache.MarkFailed(key, s.ttl.Negative)
	s.metrics.RecordResolution("historical_price", "not_found")
	return nil, core.ErrNotFound
}

// pickWindowPoint applies the date-window tie-break: exact UTC calendar
// day first, then the latest point at or before the target, then the
// earliest point after it.
func pickWindowPoint(series []core.PricePoint, day time.Time) (core.PricePoint, bool) {
	target := day.UTC().Format("2006-01-02")

	var before, after *core.PricePoint
	for i := range series {
		p := &series[i]
		pd := p.Date.UTC()
		if pd.Format("2006-01-02") == target {
			return *p, true
		}
		if !pd.After(day) {
			if before == nil || pd.After(before.Date) {
				before = p
			}
		} else {
			if after == nil || pd.Before(after.Date) {
				after = p
			}
		}
	}

	if before != nil {
		return *before, true
	}
	if after != nil {
		return *after, true
	}
	return core.PricePoint{}, false
}

// rangeDays maps the public range strings to calendar spans.
var rangeDays = map[string]int{
	"1mo": 30,
	"3mo": 90,
	"6mo": 180,
	"1y":  365,
	"2y":  730,
	"5y":  1825,
}

// GetHistoricalSeries resolves the daily series for a trailing range.
func (s *Service) GetHistoricalSeries(ctx context.Context, rawTicker string, rng string) ([]core.PricePoint, error) {
	days, ok := rangeDays[rng]
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown range %q", rng))
	}

	ticker, assetType, _ := normalize(rawTicker, "", "")
	key := fmt.Sprintf("series:%s:%s:%s", ticker, assetType, rng)

	if s.cache.Failed(key) {
		s.metrics.RecordCacheEvent("negative_hit")
		return nil, core.ErrNotFound
	}
	if v, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheEvent("hit")
		return v.([]core.PricePoint), nil
	}
	s.metrics.RecordCacheEvent("miss")

	end := s.clock().UTC()
	start := end.AddDate(0, 0, -days)

	for _, p := range s.registry.Candidates(ticker, assetType) {
		if err := ctx.Err(); err != nil {
			return nil, core.WrapError(core.ErrUpstreamUnavailable, err)
		}

		began := s.clock()
		series, err := p.HistoricalSeries(ctx, ticker, assetType, start, end)
		elapsed := s.clock().Sub(began).Seconds()

		if err != nil || len(series) == 0 {
			s.metrics.RecordProviderRequest(p.Name(), "series", "error", elapsed)
			continue
		}
		s.metrics.RecordProviderRequest(p.Name(), "series", "ok", elapsed)

		sort.Slice(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})

		s.cache.Put(key, series, s.ttl.Historical)
		s.metrics.RecordCacheEvent("store")
		s.metrics.RecordResolution("series", "ok")
		return series, nil
	}

	s.cache.MarkFailed(key, s.ttl.Negative)
	s.metrics.RecordResolution("series", "not_found")
	return nil, core.ErrNotFound
}

// SearchSymbols queries the first capable provider that returns matches.
func (s *Service) SearchSymbols(ctx context.Context, query string, assetType core.AssetType) ([]core.SymbolMatch, error) {
	ticker, assetType, _ := normalize(query, assetType, "")

	for _, p := range s.registry.Candidates(ticker, assetType) {
		searcher, ok := p.(provider.Searcher)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, core.WrapError(core.ErrUpstreamUnavailable, err)
		}

		matches, err := searcher.Search(ctx, query, assetType)
		if err != nil {
			s.logger.Debug("search failed",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		if len(matches) > 0 {
			return matches, nil
		}
	}
	return nil, core.ErrNotFound
}

// QuoteRequest identifies one ticker in a batch refresh.
type QuoteRequest struct {
	Ticker    string
	AssetType core.AssetType
	Currency  core.Currency
}

// RefreshResult pairs a request with its outcome.
type RefreshResult struct {
	Request QuoteRequest
	Quote   *core.Quote
	Err     error
}

// RefreshBatch resolves many tickers, parallelizing across tickers only
// (never across providers) in bounded batches with a short pause in
// between, so a portfolio refresh does not trip upstream rate limits.
// Per-ticker failures are collected, not fatal.
func (s *Service) RefreshBatch(ctx context.Context, reqs []QuoteRequest) []RefreshResult {
	results := make([]RefreshResult, len(reqs))

	for offset := 0; offset < len(reqs); offset += s.batchSize {
		if ctx.Err() != nil {
			for i := offset; i < len(reqs); i++ {
				results[i] = RefreshResult{Request: reqs[i], Err: core.WrapError(core.ErrUpstreamUnavailable, ctx.Err())}
			}
			break
		}

		limit := offset + s.batchSize
		if limit > len(reqs) {
			limit = len(reqs)
		}

		var g errgroup.Group
		for i := offset; i < limit; i++ {
			i := i
			g.Go(func() error {
				q, err := s.GetQuote(ctx, reqs[i].Ticker, reqs[i].AssetType, reqs[i].Currency)
				results[i] = RefreshResult{Request: reqs[i], Quote: q, Err: err}
				return nil
			})
		}
		g.Wait()
		s.metrics.RecordRefreshBatch()

		if limit < len(reqs) {
			select {
			case <-ctx.Done():
			case <-time.After(s.batchDelay):
			}
		}
	}

	return results
}
