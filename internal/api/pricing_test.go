package api

import (
	"testing"

	"tsu-payments-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestExpectedWei(t *testing.T) {
	tests := []struct {
		amount string
		price  string
		want   string
	}{
		{"100", "2000", "50000000000000000"},
		{"1", "3000", "333333333333333"},
		{"2500", "2500", "1000000000000000000"},
	}
	for _, tt := range tests {
		got := expectedWei(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.price))
		if got != tt.want {
			t.Errorf("expectedWei(%s, %s) = %s, want %s", tt.amount, tt.price, got, tt.want)
		}
	}
}

func TestExpectedSats(t *testing.T) {
	if got, ok := expectedSats(decimal.NewFromInt(100), decimal.NewFromInt(50000)); !ok || got != 200000 {
		t.Errorf("expected 200000 sats, got %d (ok=%v)", got, ok)
	}
	if got, ok := expectedSats(decimal.NewFromInt(1), decimal.NewFromInt(30000)); !ok || got != 3333 {
		t.Errorf("expected 3333 sats, got %d (ok=%v)", got, ok)
	}
}

func TestExpectedSats_Overflow(t *testing.T) {
	// 2^64 + 100000 sats would wrap to 100000 if truncated to 64 bits
	amount := decimal.RequireFromString("7378697629483860.6464")
	if got, ok := expectedSats(amount, decimal.NewFromInt(40000)); ok {
		t.Fatalf("expected overflow to be reported, got %d sats", got)
	}

	if _, ok := expectedSats(decimal.NewFromInt(1_000_000), decimal.RequireFromString("0.000000001")); ok {
		t.Error("expected overflow for a near-zero bitcoin price")
	}
}

func TestTsuForAmount(t *testing.T) {
	got := tsuForAmount(decimal.NewFromInt(100), DefaultFeeRate, decimal.NewFromInt(1))
	if !got.Equal(decimal.RequireFromString("97.5")) {
		t.Errorf("expected 97.5, got %s", got)
	}

	got = tsuForAmount(decimal.NewFromInt(10), DefaultFeeRate, decimal.NewFromInt(3))
	if !got.Equal(decimal.RequireFromString("3.25")) {
		t.Errorf("expected 3.25, got %s", got)
	}
}

func TestCryptoPriceFallback(t *testing.T) {
	rate := &models.TsuRate{
		Id:          "rate-1",
		TsuPrice:    decimal.NewFromInt(1),
		CryptoRates: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(3100), "BTC": decimal.Zero},
	}

	price, fallback := cryptoPrice(rate, models.PaymentMethodEthereum)
	if fallback || !price.Equal(decimal.NewFromInt(3100)) {
		t.Errorf("expected live ETH price, got %s (fallback=%v)", price, fallback)
	}

	price, fallback = cryptoPrice(rate, models.PaymentMethodBitcoin)
	if !fallback || !price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("expected BTC fallback 50000, got %s (fallback=%v)", price, fallback)
	}
}
