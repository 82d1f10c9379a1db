package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mfcastro/ativo/internal/cache"
	"github.com/mfcastro/ativo/internal/config"
	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/currency"
	"github.com/mfcastro/ativo/internal/metrics"
	"github.com/mfcastro/ativo/internal/provider"
	"github.com/mfcastro/ativo/internal/provider/brapi"
	"github.com/mfcastro/ativo/internal/provider/coingecko"
	"github.com/mfcastro/ativo/internal/provider/yahoo"
	"github.com/mfcastro/ativo/internal/provider/yfin"
	"github.com/mfcastro/ativo/internal/resolver"
	"github.com/mfcastro/ativo/internal/symbol"
)

// App wires the resolution engine together: cache, currency chain,
// provider registry, resolver and the scheduled watchlist refresh.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Registry
	cache     *cache.Cache
	registry  *provider.Registry
	converter *currency.Converter
	resolver  *resolver.Service
	cron      *cron.Cron

	mu        sync.RWMutex
	watchlist []resolver.QuoteRequest
	watchSet  map[string]struct{}
	running   bool
	cancel    context.CancelFunc
}

// New creates an App from configuration. Providers are registered
// according to their enabled flags; fallback order comes from each
// adapter's fixed priority.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := metrics.NewRegistry()
	c := cache.New(nil)
	conv := currency.NewConverter(c, logger, currency.Options{
		FallbackRate: cfg.Currency.FallbackRate,
		TTL:          cfg.Currency.RateTTL,
	})

	reg := provider.NewRegistry()
	if cfg.Providers.Yahoo.Enabled {
		reg.Register(yahoo.New())
	}
	// brapi requires a token; without one the adapter is excluded at
	// startup rather than failing on every request.
	if cfg.Providers.Brapi.Enabled {
		if cfg.Providers.Brapi.APIKey != "" {
			reg.Register(brapi.New(cfg.Providers.Brapi.APIKey))
		} else {
			logger.Warn("brapi enabled but no token configured, excluding provider")
		}
	}
	if cfg.Providers.CoinGecko.Enabled {
		reg.Register(coingecko.New(cfg.Providers.CoinGecko.APIKey))
	}
	if cfg.Providers.YFin.Enabled {
		reg.Register(yfin.New())
	}

	svc := resolver.New(reg, c, conv, logger, m, resolver.Options{
		TTL: resolver.TTLConfig{
			Quote:      cfg.Cache.QuoteTTL,
			Historical: cfg.Cache.HistoricalTTL,
			Negative:   cfg.Cache.NegativeTTL,
		},
		BatchSize:  cfg.Refresh.BatchSize,
		BatchDelay: cfg.Refresh.BatchDelay,
	})

	a := &App{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		cache:     c,
		registry:  reg,
		converter: conv,
		resolver:  svc,
		cron:      cron.New(),
		watchSet:  make(map[string]struct{}),
	}

	for _, item := range cfg.Watchlist {
		a.AddToWatchlist(item.Symbol, core.AssetType(item.AssetType), core.Currency(item.Currency))
	}

	return a
}

// Resolver returns the resolution service.
func (a *App) Resolver() *resolver.Service { return a.resolver }

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Start schedules the watchlist refresh and blocks until ctx is done.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("starting",
		zap.Int("watchlist", len(a.Watchlist())),
		zap.Int("providers", len(a.registry.All())),
		zap.String("schedule", a.cfg.Refresh.Schedule),
	)

	if _, err := a.cron.AddFunc(a.cfg.Refresh.Schedule, func() {
		a.RefreshNow(ctx)
	}); err != nil {
		cancel()
		a.mu.Lock()
		a.running = false
		a.cancel = nil
		a.mu.Unlock()
		return fmt.Errorf("scheduling refresh: %w", err)
	}
	a.cron.Start()

	// Warm the cache before the first tick.
	a.RefreshNow(ctx)

	<-ctx.Done()

	a.logger.Info("shutting down")
	stopCtx := a.cron.Stop()
	<-stopCtx.Done()

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	return ctx.Err()
}

// Stop cancels the refresh loop.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// RefreshNow resolves every watchlist entry immediately.
func (a *App) RefreshNow(ctx context.Context) {
	a.mu.RLock()
	reqs := make([]resolver.QuoteRequest, len(a.watchlist))
	copy(reqs, a.watchlist)
	a.mu.RUnlock()

	if len(reqs) == 0 {
		a.logger.Debug("watchlist empty, nothing to refresh")
		return
	}

	results := a.resolver.RefreshBatch(ctx, reqs)

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			a.logger.Debug("refresh failed",
				zap.String("symbol", r.Request.Ticker),
				zap.Error(r.Err))
		}
	}
	a.logger.Info("watchlist refreshed",
		zap.Int("total", len(results)),
		zap.Int("failed", failed))
}

// Watchlist returns the current watchlist symbols.
func (a *App) Watchlist() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.watchlist))
	for i, req := range a.watchlist {
		out[i] = req.Ticker
	}
	return out
}

// AddToWatchlist adds a symbol. The raw value is canonicalized first so
// "bitcoin" and "BTC" are the same entry. Duplicates are ignored.
func (a *App) AddToWatchlist(raw string, assetType core.AssetType, cur core.Currency) bool {
	ticker := symbol.Resolve(raw)
	if ticker == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.watchSet[ticker]; exists {
		return false
	}
	a.watchSet[ticker] = struct{}{}
	a.watchlist = append(a.watchlist, resolver.QuoteRequest{
		Ticker:    ticker,
		AssetType: assetType,
		Currency:  cur,
	})
	return true
}

// RemoveFromWatchlist removes a symbol from the watchlist.
func (a *App) RemoveFromWatchlist(raw string) bool {
	ticker := symbol.Resolve(raw)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.watchSet[ticker]; !exists {
		return false
	}
	delete(a.watchSet, ticker)
	for i, req := range a.watchlist {
		if req.Ticker == ticker {
			a.watchlist = append(a.watchlist[:i], a.watchlist[i+1:]...)
			break
		}
	}
	return true
}

// Stats returns application statistics.
func (a *App) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"running":   a.running,
		"watchlist": len(a.watchlist),
		"providers": len(a.registry.All()),
		"cached":    a.cache.Len(),
	}
}
