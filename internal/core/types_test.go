package core

import "testing"

func TestQuote_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		quote Quote
		valid bool
	}{
		{"valid", Quote{Symbol: "PETR4", Price: 38.12}, true},
		{"zero price", Quote{Symbol: "PETR4", Price: 0}, false},
		{"negative price", Quote{Symbol: "PETR4", Price: -1}, false},
		{"empty symbol", Quote{Price: 38.12}, false},
	}

	for _, tc := range tests {
		if got := tc.quote.IsValid(); got != tc.valid {
			t.Errorf("%s: IsValid() = %v, want %v", tc.name, got, tc.valid)
		}
	}
}

func TestCurrency_IsSupported(t *testing.T) {
	if !CurrencyUSD.IsSupported() || !CurrencyBRL.IsSupported() {
		t.Error("USD and BRL must be supported")
	}
	if Currency("EUR").IsSupported() {
		t.Error("EUR must not be supported")
	}
}

func TestAssetType_IsStock(t *testing.T) {
	if !AssetUSStock.IsStock() || !AssetBRStock.IsStock() {
		t.Error("stock types should report IsStock")
	}
	if AssetCrypto.IsStock() || AssetUnknown.IsStock() {
		t.Error("non-stock types should not report IsStock")
	}
}
