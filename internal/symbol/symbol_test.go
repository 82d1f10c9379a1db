package symbol

import (
	"testing"

	"github.com/mfcastro/ativo/internal/core"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NIKE", "NKE"},
		{"nike", "NKE"},
		{"  Nike  ", "NKE"},
		{"BITCOIN", "BTC"},
		{"Petrobras", "PETR4"},
		{"banco do brasil", "BBAS3"},
		{"coca-cola", "KO"},
		{"AAPL", "AAPL"},      // already canonical
		{"petr4", "PETR4"},    // pass-through, uppercased
		{"BRK.B", "BRKB"},     // punctuation stripped
		{"XYZW11", "XYZW11"},  // unmapped pass-through
	}

	for _, tc := range tests {
		if got := Resolve(tc.input); got != tc.expected {
			t.Errorf("Resolve(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		ticker   string
		expected core.AssetType
	}{
		{"BTC", core.AssetCrypto},
		{"ETH", core.AssetCrypto},
		{"AAPL", core.AssetUSStock},
		{"NKE", core.AssetUSStock},
		{"PETR4", core.AssetBRStock},
		{"VALE3", core.AssetBRStock},
		{"ITUB4", core.AssetBRStock},
		{"XYZW11", core.AssetBRStock}, // FII-style ticker matches the B3 pattern
		{"ZZZZZZ", core.AssetUnknown},
		{"123", core.AssetUnknown},
	}

	for _, tc := range tests {
		if got := Classify(tc.ticker); got != tc.expected {
			t.Errorf("Classify(%s) = %s, want %s", tc.ticker, got, tc.expected)
		}
	}
}

// Classify(Resolve(x)) must be stable across calls.
func TestClassifyResolveIdempotent(t *testing.T) {
	inputs := []string{"NIKE", "BITCOIN", "PETR4", "petrobras", "aapl"}

	for _, in := range inputs {
		first := Classify(Resolve(in))
		for i := 0; i < 3; i++ {
			ticker := Resolve(in)
			if Resolve(ticker) != ticker {
				t.Errorf("Resolve not idempotent for %q", in)
			}
			if got := Classify(ticker); got != first {
				t.Errorf("Classify(Resolve(%q)) unstable: %s then %s", in, first, got)
			}
		}
	}
}

func TestCoinID(t *testing.T) {
	if id, ok := CoinID("BTC"); !ok || id != "bitcoin" {
		t.Errorf("CoinID(BTC) = %q, %v", id, ok)
	}
	if id, ok := CoinID("btc"); !ok || id != "bitcoin" {
		t.Errorf("CoinID should be case-insensitive, got %q, %v", id, ok)
	}
	if _, ok := CoinID("PETR4"); ok {
		t.Error("CoinID(PETR4) should not resolve")
	}
}
