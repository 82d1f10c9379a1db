package yfin

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"

	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/provider"
)

const priority = 30

// YFin is a last-resort quote strategy for US equities built on
// piquette/finance-go. The library has no context support, so every
// call runs in its own goroutine bounded by the provider timeout; on
// timeout the goroutine is abandoned and its eventual result dropped.
type YFin struct {
	timeout time.Duration

	// get is swappable for tests.
	get func(symbol string) (*finance.Quote, error)
}

// New creates a YFin adapter.
func New() *YFin {
	return &YFin{
		timeout: provider.DefaultTimeout,
		get:     quote.Get,
	}
}

func (y *YFin) Name() string {
	return "yfin"
}

func (y *YFin) Priority() int {
	return priority
}

func (y *YFin) CanHandle(_ string, assetType core.AssetType) bool {
	return assetType == core.AssetUSStock
}

type quoteResult struct {
	q   *finance.Quote
	err error
}

// Quote fetches the live price. Native currency is USD.
func (y *YFin) Quote(ctx context.Context, ticker string, assetType core.AssetType, _ core.Currency) (*core.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	ch := make(chan quoteResult, 1)
	go func() {
		q, err := y.get(ticker)
		ch <- quoteResult{q: q, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, core.WrapError(core.ErrUpstreamUnavailable, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, core.WrapError(core.ErrUpstreamUnavailable, res.err)
		}
		if res.q == nil || res.q.RegularMarketPrice <= 0 {
			return nil, core.WrapError(core.ErrUpstreamMalformed, fmt.Errorf("no usable price for %s", ticker))
		}

		return &core.Quote{
			Symbol:        ticker,
			Name:          res.q.ShortName,
			Price:         res.q.RegularMarketPrice,
			Change:        res.q.RegularMarketChange,
			ChangePercent: res.q.RegularMarketChangePercent,
			Currency:      core.CurrencyUSD,
			Source:        "yfin",
			Time:          time.Unix(int64(res.q.RegularMarketTime), 0).UTC(),
			AssetType:     assetType,
		}, nil
	}
}

// HistoricalSeries is not supported by this strategy.
func (y *YFin) HistoricalSeries(_ context.Context, ticker string, _ core.AssetType, _, _ time.Time) ([]core.PricePoint, error) {
	return nil, core.WrapError(core.ErrNoData, fmt.Errorf("yfin has no chart capability for %s", ticker))
}
