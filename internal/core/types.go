package core

import "time"

// Currency is an ISO-4217 code. The engine only deals in USD and BRL.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyBRL Currency = "BRL"
)

// IsSupported reports whether the currency can be requested from the engine.
func (c Currency) IsSupported() bool {
	return c == CurrencyUSD || c == CurrencyBRL
}

// AssetType classifies a ticker.
type AssetType string

const (
	AssetCrypto  AssetType = "crypto"
	AssetUSStock AssetType = "us_stock"
	AssetBRStock AssetType = "br_stock"
	AssetUnknown AssetType = "unknown"
)

// IsStock reports whether the asset type is any kind of equity.
func (a AssetType) IsStock() bool {
	return a == AssetUSStock || a == AssetBRStock
}

// Quote represents a resolved live price. Quotes are immutable; a newer
// resolution supersedes the old value rather than mutating it.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Currency      Currency  `json:"currency"`
	Source        string    `json:"source"`
	Time          time.Time `json:"time"`
	AssetType     AssetType `json:"assetType"`
}

// IsValid checks the invariant every returned quote must satisfy.
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.Price > 0
}

// PricePoint is one bar of a daily historical series. Series are ordered
// ascending by date.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// HistoricalPrice is the result of a point-in-time historical lookup.
// Degraded is set when the requested date could not be resolved and the
// live quote was substituted instead.
type HistoricalPrice struct {
	Ticker   string    `json:"ticker"`
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Currency Currency  `json:"currency"`
	Source   string    `json:"source"`
	Degraded bool      `json:"degraded"`
}

// ExchangeRate is a USD/BRL rate resolved through the currency chain.
// Degraded is set when the static fallback constant was used.
type ExchangeRate struct {
	Base     Currency  `json:"base"`
	Quote    Currency  `json:"quote"`
	Rate     float64   `json:"rate"`
	AsOf     time.Time `json:"asOf"`
	Source   string    `json:"source"`
	Degraded bool      `json:"degraded"`
}

// SymbolMatch is one result of a symbol search.
type SymbolMatch struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
