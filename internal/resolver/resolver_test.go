package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mfcastro/ativo/internal/cache"
	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/currency"
	"github.com/mfcastro/ativo/internal/provider"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubProvider struct {
	name     string
	priority int

	quoteFn  func(ticker string) (*core.Quote, error)
	seriesFn func(start, end time.Time) ([]core.PricePoint, error)

	quoteCalls  atomic.Int32
	seriesCalls atomic.Int32

	mu         sync.Mutex
	lastTicker string
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Priority() int { return s.priority }

func (s *stubProvider) CanHandle(ticker string, assetType core.AssetType) bool { return true }

func (s *stubProvider) Quote(ctx context.Context, ticker string, assetType core.AssetType, cur core.Currency) (*core.Quote, error) {
	s.quoteCalls.Add(1)
	s.mu.Lock()
	s.lastTicker = ticker
	s.mu.Unlock()
	if s.quoteFn == nil {
		return nil, core.ErrNotFound
	}
	q, err := s.quoteFn(ticker)
	if q != nil && q.Currency == "" {
		q.Currency = cur
	}
	return q, err
}

func (s *stubProvider) HistoricalSeries(ctx context.Context, ticker string, assetType core.AssetType, start, end time.Time) ([]core.PricePoint, error) {
	s.seriesCalls.Add(1)
	if s.seriesFn == nil {
		return nil, core.ErrNoData
	}
	return s.seriesFn(start, end)
}

type searchingProvider struct {
	stubProvider
	matches []core.SymbolMatch
}

func (s *searchingProvider) Search(ctx context.Context, query string, assetType core.AssetType) ([]core.SymbolMatch, error) {
	if s.matches == nil {
		return nil, core.ErrNotFound
	}
	return s.matches, nil
}

func quoteFor(ticker, source string, price float64, clk *fakeClock) func(string) (*core.Quote, error) {
	return func(t string) (*core.Quote, error) {
		return &core.Quote{
			Symbol: ticker,
			Price:  price,
			Source: source,
			Time:   clk.Now(),
		}, nil
	}
}

func newTestService(clk *fakeClock, providers ...provider.Provider) (*Service, *cache.Cache) {
	reg := provider.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	c := cache.New(clk.Now)
	conv := currency.NewConverter(c, zap.NewNop(), currency.Options{})
	svc := New(reg, c, conv, zap.NewNop(), nil, Options{Clock: clk.Now, BatchDelay: time.Millisecond})
	return svc, c
}

func TestGetQuote_FallbackOrder(t *testing.T) {
	clk := newFakeClock()
	failing := &stubProvider{name: "primary", priority: 10}
	backup := &stubProvider{name: "backup", priority: 20, quoteFn: quoteFor("AAPL", "backup", 210.5, clk)}

	svc, _ := newTestService(clk, backup, failing)

	q, err := svc.GetQuote(context.Background(), "AAPL", "", core.CurrencyUSD)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if q.Source != "backup" {
		t.Errorf("source = %s, want backup", q.Source)
	}
	if failing.quoteCalls.Load() != 1 {
		t.Errorf("primary should have been tried first exactly once, got %d", failing.quoteCalls.Load())
	}
}

func TestGetQuote_InvalidQuoteSkipped(t *testing.T) {
	clk := newFakeClock()
	zero := &stubProvider{name: "zero", priority: 10, quoteFn: func(string) (*core.Quote, error) {
		return &core.Quote{Symbol: "AAPL", Price: 0}, nil
	}}
	good := &stubProvider{name: "good", priority: 20, quoteFn: quoteFor("AAPL", "good", 210.5, clk)}

	svc, _ := newTestService(clk, zero, good)

	q, err := svc.GetQuote(context.Background(), "AAPL", "", core.CurrencyUSD)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if q.Source != "good" {
		t.Errorf("a zero price must not win the fallback, source = %s", q.Source)
	}
}

func TestGetQuote_CacheHit(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, quoteFn: quoteFor("AAPL", "p", 210.5, clk)}
	svc, _ := newTestService(clk, p)

	first, err := svc.GetQuote(context.Background(), "AAPL", "", core.CurrencyUSD)
	if err != nil {
		t.Fatalf("first GetQuote: %v", err)
	}

	clk.Advance(30 * time.Second)
	second, err := svc.GetQuote(context.Background(), "AAPL", "", core.CurrencyUSD)
	if err != nil {
		t.Fatalf("second GetQuote: %v", err)
	}

	if p.quoteCalls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", p.quoteCalls.Load())
	}
	if !second.Time.Equal(first.Time) {
		t.Errorf("cached quote must be returned unchanged, time %v != %v", second.Time, first.Time)
	}
}

func TestGetQuote_CacheExpiry(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, quoteFn: quoteFor("AAPL", "p", 210.5, clk)}
	svc, _ := newTestService(clk, p)

	if _, err := svc.GetQuote(context.Background(), "AAPL", "", core.CurrencyUSD); err != nil {
		t.Fatal(err)
	}
	clk.Advance(61 * time.Second)
	if _, err := svc.GetQuote(context.Background(), "AAPL", "", core.CurrencyUSD); err != nil {
		t.Fatal(err)
	}

	if p.quoteCalls.Load() != 2 {
		t.Errorf("upstream calls after expiry = %d, want 2", p.quoteCalls.Load())
	}
}

func TestGetQuote_NegativeCache(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10}
	svc, _ := newTestService(clk, p)

	if _, err := svc.GetQuote(context.Background(), "NOPE", "", core.CurrencyUSD); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetQuote(context.Background(), "NOPE", "", core.CurrencyUSD); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if p.quoteCalls.Load() != 1 {
		t.Errorf("negative cache must suppress retries, upstream calls = %d", p.quoteCalls.Load())
	}

	clk.Advance(6 * time.Minute)
	svc.GetQuote(context.Background(), "NOPE", "", core.CurrencyUSD)
	if p.quoteCalls.Load() != 2 {
		t.Errorf("expired negative marker must allow a retry, upstream calls = %d", p.quoteCalls.Load())
	}
}

func TestGetQuote_AliasResolution(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, quoteFn: quoteFor("NKE", "p", 95.0, clk)}
	svc, _ := newTestService(clk, p)

	if _, err := svc.GetQuote(context.Background(), "nike", "", core.CurrencyUSD); err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if p.lastTicker != "NKE" {
		t.Errorf("provider saw ticker %q, want NKE", p.lastTicker)
	}
}

func TestGetQuote_ConvertsPriceAndChangeWithOneRate(t *testing.T) {
	var rateCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rateCalls.Add(1)
		fmt.Fprint(w, `{"USDBRL":{"bid":"5.00"}}`)
	}))
	defer srv.Close()

	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, quoteFn: func(string) (*core.Quote, error) {
		return &core.Quote{
			Symbol:   "AAPL",
			Price:    200,
			Change:   4,
			Currency: core.CurrencyUSD,
			Source:   "p",
			Time:     clk.Now(),
		}, nil
	}}

	reg := provider.NewRegistry()
	reg.Register(p)
	c := cache.New(clk.Now)
	conv := currency.NewConverter(c, zap.NewNop(), currency.Options{AwesomeURL: srv.URL})
	svc := New(reg, c, conv, zap.NewNop(), nil, Options{Clock: clk.Now})

	q, err := svc.GetQuote(context.Background(), "AAPL", "", core.CurrencyBRL)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	if q.Price != 1000 {
		t.Errorf("price = %f, want 200 USD * 5.00 = 1000 BRL", q.Price)
	}
	if q.Change != 20 {
		t.Errorf("change = %f, want 4 USD * 5.00 = 20 BRL", q.Change)
	}
	if q.Currency != core.CurrencyBRL {
		t.Errorf("currency = %s, want BRL", q.Currency)
	}
	if rateCalls.Load() != 1 {
		t.Errorf("rate lookups = %d, want 1 shared rate", rateCalls.Load())
	}
}

func TestGetQuote_UnsupportedCurrency(t *testing.T) {
	clk := newFakeClock()
	svc, _ := newTestService(clk, &stubProvider{name: "p", priority: 10})

	_, err := svc.GetQuote(context.Background(), "AAPL", "", core.Currency("EUR"))
	if !errors.Is(err, core.ErrUnsupportedCurrency) {
		t.Errorf("err = %v, want ErrUnsupportedCurrency", err)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seriesOf(dates ...time.Time) []core.PricePoint {
	points := make([]core.PricePoint, len(dates))
	for i, dt := range dates {
		points[i] = core.PricePoint{Date: dt, Close: 100 + float64(i)}
	}
	return points
}

func TestPickWindowPoint(t *testing.T) {
	fri := day(2024, 6, 7)
	mon := day(2024, 6, 10)

	tests := []struct {
		name   string
		series []core.PricePoint
		target time.Time
		want   time.Time
		found  bool
	}{
		{"exact day", seriesOf(fri, mon), mon, mon, true},
		{"weekend picks friday", seriesOf(day(2024, 6, 5), fri, mon), day(2024, 6, 8), fri, true},
		{"only future picks earliest after", seriesOf(mon, day(2024, 6, 11)), fri, mon, true},
		{"empty", nil, fri, time.Time{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := pickWindowPoint(tc.series, tc.target)
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if ok && !got.Date.Equal(tc.want) {
				t.Errorf("picked %v, want %v", got.Date, tc.want)
			}
		})
	}
}

func TestGetHistoricalPrice_WeekendPicksFriday(t *testing.T) {
	clk := newFakeClock()
	fri := day(2024, 6, 7)
	p := &stubProvider{name: "p", priority: 10, seriesFn: func(start, end time.Time) ([]core.PricePoint, error) {
		return seriesOf(day(2024, 6, 5), fri, day(2024, 6, 10)), nil
	}}
	svc, _ := newTestService(clk, p)

	hp, err := svc.GetHistoricalPrice(context.Background(), "AAPL", day(2024, 6, 8), "", core.CurrencyUSD)
	if err != nil {
		t.Fatalf("GetHistoricalPrice: %v", err)
	}
	if !hp.Date.Equal(fri) {
		t.Errorf("date = %v, want friday %v", hp.Date, fri)
	}
	if hp.Degraded {
		t.Error("window resolution must not be degraded")
	}
}

func TestGetHistoricalPrice_Cached(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, seriesFn: func(start, end time.Time) ([]core.PricePoint, error) {
		return seriesOf(day(2024, 6, 7)), nil
	}}
	svc, _ := newTestService(clk, p)

	target := day(2024, 6, 7)
	if _, err := svc.GetHistoricalPrice(context.Background(), "AAPL", target, "", core.CurrencyUSD); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetHistoricalPrice(context.Background(), "AAPL", target, "", core.CurrencyUSD); err != nil {
		t.Fatal(err)
	}
	if p.seriesCalls.Load() != 1 {
		t.Errorf("series calls = %d, want 1", p.seriesCalls.Load())
	}
}

func TestGetHistoricalPrice_DegradedSubstitute(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, quoteFn: quoteFor("AAPL", "p", 210.5, clk)}
	svc, _ := newTestService(clk, p)

	hp, err := svc.GetHistoricalPrice(context.Background(), "AAPL", day(2024, 6, 3), "", core.CurrencyUSD)
	if err != nil {
		t.Fatalf("GetHistoricalPrice: %v", err)
	}
	if !hp.Degraded {
		t.Error("live-quote substitution must be flagged degraded")
	}
	if hp.Price != 210.5 {
		t.Errorf("price = %f, want the live quote 210.5", hp.Price)
	}
}

func TestGetHistoricalPrice_NotFound(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10}
	svc, _ := newTestService(clk, p)

	_, err := svc.GetHistoricalPrice(context.Background(), "AAPL", day(2024, 6, 3), "", core.CurrencyUSD)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	// The failure is suppressed on the next attempt.
	svc.GetHistoricalPrice(context.Background(), "AAPL", day(2024, 6, 3), "", core.CurrencyUSD)
	if p.seriesCalls.Load() != 1 {
		t.Errorf("series calls = %d, want 1 after negative caching", p.seriesCalls.Load())
	}
}

func TestGetHistoricalPrice_ConvertsBRStock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"bid":"5.00","timestamp":"1717718400"}]`)
	}))
	defer srv.Close()

	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, seriesFn: func(start, end time.Time) ([]core.PricePoint, error) {
		return []core.PricePoint{{Date: day(2024, 6, 7), Close: 40.0}}, nil
	}}

	reg := provider.NewRegistry()
	reg.Register(p)
	c := cache.New(clk.Now)
	conv := currency.NewConverter(c, zap.NewNop(), currency.Options{AwesomeURL: srv.URL})
	svc := New(reg, c, conv, zap.NewNop(), nil, Options{Clock: clk.Now})

	hp, err := svc.GetHistoricalPrice(context.Background(), "PETR4", day(2024, 6, 7), "", core.CurrencyUSD)
	if err != nil {
		t.Fatalf("GetHistoricalPrice: %v", err)
	}
	if hp.Currency != core.CurrencyUSD {
		t.Errorf("currency = %s, want USD", hp.Currency)
	}
	if hp.Price != 8.0 {
		t.Errorf("price = %f, want 40 BRL / 5.00 = 8.0 USD", hp.Price)
	}
	if hp.Degraded {
		t.Error("a live upstream rate is not a degradation")
	}
}

func TestGetHistoricalSeries(t *testing.T) {
	clk := newFakeClock()
	unsorted := []core.PricePoint{
		{Date: day(2024, 6, 5), Close: 101},
		{Date: day(2024, 6, 3), Close: 100},
		{Date: day(2024, 6, 7), Close: 102},
	}
	p := &stubProvider{name: "p", priority: 10, seriesFn: func(start, end time.Time) ([]core.PricePoint, error) {
		return unsorted, nil
	}}
	svc, _ := newTestService(clk, p)

	series, err := svc.GetHistoricalSeries(context.Background(), "AAPL", "1mo")
	if err != nil {
		t.Fatalf("GetHistoricalSeries: %v", err)
	}
	for i := 1; i < len(series); i++ {
		if series[i].Date.Before(series[i-1].Date) {
			t.Fatalf("series not ascending at %d", i)
		}
	}

	// Cached on the second call.
	svc.GetHistoricalSeries(context.Background(), "AAPL", "1mo")
	if p.seriesCalls.Load() != 1 {
		t.Errorf("series calls = %d, want 1", p.seriesCalls.Load())
	}
}

func TestGetHistoricalSeries_UnknownRange(t *testing.T) {
	clk := newFakeClock()
	svc, _ := newTestService(clk, &stubProvider{name: "p", priority: 10})

	if _, err := svc.GetHistoricalSeries(context.Background(), "AAPL", "7w"); err == nil {
		t.Error("unknown range must fail")
	}
}

func TestSearchSymbols(t *testing.T) {
	clk := newFakeClock()
	plain := &stubProvider{name: "plain", priority: 10}
	search := &searchingProvider{
		stubProvider: stubProvider{name: "search", priority: 20},
		matches:      []core.SymbolMatch{{Symbol: "AAPL", Name: "Apple Inc."}},
	}
	svc, _ := newTestService(clk, plain, search)

	matches, err := svc.SearchSymbols(context.Background(), "apple", "")
	if err != nil {
		t.Fatalf("SearchSymbols: %v", err)
	}
	if len(matches) != 1 || matches[0].Symbol != "AAPL" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestRefreshBatch(t *testing.T) {
	clk := newFakeClock()
	p := &stubProvider{name: "p", priority: 10, quoteFn: func(ticker string) (*core.Quote, error) {
		if ticker == "BAD1" {
			return nil, core.ErrUpstreamUnavailable
		}
		return &core.Quote{Symbol: ticker, Price: 10, Source: "p", Time: clk.Now()}, nil
	}}

	reg := provider.NewRegistry()
	reg.Register(p)
	c := cache.New(clk.Now)
	conv := currency.NewConverter(c, zap.NewNop(), currency.Options{})
	svc := New(reg, c, conv, zap.NewNop(), nil, Options{
		Clock:      clk.Now,
		BatchSize:  3,
		BatchDelay: time.Millisecond,
	})

	reqs := []QuoteRequest{
		{Ticker: "AAPL"}, {Ticker: "MSFT"}, {Ticker: "BAD1"},
		{Ticker: "GOOGL"}, {Ticker: "AMZN"}, {Ticker: "TSLA"},
		{Ticker: "NVDA"},
	}
	results := svc.RefreshBatch(context.Background(), reqs)

	if len(results) != len(reqs) {
		t.Fatalf("results = %d, want %d", len(results), len(reqs))
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if r.Quote == nil {
			t.Errorf("%s: no quote and no error", r.Request.Ticker)
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want exactly the one bad ticker", failed)
	}
}
