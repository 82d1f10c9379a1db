package symbol

import (
	"regexp"
	"strings"

	"github.com/mfcastro/ativo/internal/core"
)

// nonTicker matches everything a canonical ticker cannot contain.
var nonTicker = regexp.MustCompile(`[^A-Z0-9-]`)

// brStock matches B3 equity tickers: 4 letters followed by 1-2 digits
// (PETR4, VALE3, ITUB4, BBAS3, MGLU3...).
var brStock = regexp.MustCompile(`^[A-Z]{4}[0-9]{1,2}$`)

// Resolve maps a raw user-entered symbol to a canonical ticker.
// Input is uppercased, stripped of characters outside [A-Z0-9-], then
// looked up in the friendly-name table. Unmapped input passes through.
func Resolve(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = nonTicker.ReplaceAllString(s, "")
	if ticker, ok := aliases[s]; ok {
		return ticker
	}
	return s
}

// Classify tags a canonical ticker with its asset type.
// Crypto wins over the stock tables so that "BTC" never classifies as
// an equity.
func Classify(ticker string) core.AssetType {
	t := strings.ToUpper(ticker)
	if _, ok := cryptoIDs[t]; ok {
		return core.AssetCrypto
	}
	if _, ok := usStocks[t]; ok {
		return core.AssetUSStock
	}
	if brStock.MatchString(t) {
		return core.AssetBRStock
	}
	return core.AssetUnknown
}

// CoinID returns the CoinGecko coin id for a crypto ticker.
func CoinID(ticker string) (string, bool) {
	id, ok := cryptoIDs[strings.ToUpper(ticker)]
	return id, ok
}
