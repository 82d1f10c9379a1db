package provider

import (
	"context"
	"time"

	"github.com/mfcastro/ativo/internal/core"
)

// DefaultTimeout bounds every upstream call made by an adapter.
const DefaultTimeout = 8 * time.Second

// Provider is the uniform contract every upstream adapter implements.
//
// Adapters never panic past their boundary: timeouts, non-2xx statuses,
// malformed payloads and empty result sets all come back as a *core.Error
// return value. A price <= 0 from upstream is treated as absent data,
// never as a valid quote.
type Provider interface {
	// Name identifies the adapter, used to tag Quote.Source.
	Name() string

	// Priority orders fallback attempts; lower is tried first. Fixed for
	// the process lifetime.
	Priority() int

	// CanHandle is the capability predicate consulted before any call.
	CanHandle(ticker string, assetType core.AssetType) bool

	// Quote fetches the live price in the adapter's native currency,
	// which may differ from the requested one; the orchestrator converts.
	Quote(ctx context.Context, ticker string, assetType core.AssetType, currency core.Currency) (*core.Quote, error)

	// HistoricalSeries fetches daily bars covering [start, end],
	// ascending by date.
	HistoricalSeries(ctx context.Context, ticker string, assetType core.AssetType, start, end time.Time) ([]core.PricePoint, error)
}

// Searcher is an optional capability for symbol search.
type Searcher interface {
	Search(ctx context.Context, query string, assetType core.AssetType) ([]core.SymbolMatch, error)
}
