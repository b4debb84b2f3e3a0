package common

import (
	"os"
	"path/filepath"
	"testing"

	"tsu-payments-go/internal/models"

	"github.com/shopspring/decimal"
)

func writePaymentsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payments.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write payments file: %v", err)
	}
	return path
}

func TestLoadPaymentsConfig(t *testing.T) {
	path := writePaymentsFile(t, `
fee_rate: "0.03"
ethereum:
  min_confirmations: 12
bitcoin:
  min_confirmations: 2
  tolerance_sats: 500
`)

	p, err := LoadPaymentsConfig(path)
	if err != nil {
		t.Fatalf("LoadPaymentsConfig failed: %v", err)
	}

	cfg := &models.Config{
		Ethereum: models.EthereumConfig{MinConfirmations: 3},
		Bitcoin:  models.BitcoinConfig{MinConfirmations: 3, ToleranceSats: 1000},
	}
	p.Apply(cfg)

	if cfg.Ethereum.MinConfirmations != 12 {
		t.Errorf("expected eth confirmations 12, got %d", cfg.Ethereum.MinConfirmations)
	}
	if cfg.Bitcoin.MinConfirmations != 2 || cfg.Bitcoin.ToleranceSats != 500 {
		t.Errorf("unexpected bitcoin settings: %+v", cfg.Bitcoin)
	}
	if got := p.EffectiveFeeRate(decimal.RequireFromString("0.025")); !got.Equal(decimal.RequireFromString("0.03")) {
		t.Errorf("expected fee rate 0.03, got %s", got.String())
	}
}

func TestLoadPaymentsConfig_MissingFileKeepsDefaults(t *testing.T) {
	p, err := LoadPaymentsConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}

	cfg := &models.Config{Bitcoin: models.BitcoinConfig{MinConfirmations: 3, ToleranceSats: 1000}}
	p.Apply(cfg)
	if cfg.Bitcoin.MinConfirmations != 3 || cfg.Bitcoin.ToleranceSats != 1000 {
		t.Errorf("defaults changed: %+v", cfg.Bitcoin)
	}

	fallback := decimal.RequireFromString("0.025")
	if got := p.EffectiveFeeRate(fallback); !got.Equal(fallback) {
		t.Errorf("expected fallback fee rate, got %s", got.String())
	}
}

func TestEffectiveFeeRate_ZeroSelectsFallback(t *testing.T) {
	fallback := decimal.RequireFromString("0.025")
	p := &PaymentsConfig{FeeRate: "0"}
	if got := p.EffectiveFeeRate(fallback); !got.Equal(fallback) {
		t.Errorf("expected fallback fee rate, got %s", got.String())
	}
}

func TestLoadPaymentsConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"fee rate too high", `fee_rate: "1"`},
		{"fee rate not a number", `fee_rate: "abc"`},
		{"negative confirmations", "bitcoin:\n  min_confirmations: -1\n"},
		{"tolerance on ethereum", "ethereum:\n  tolerance_sats: 10\n"},
		{"malformed yaml", "ethereum: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadPaymentsConfig(writePaymentsFile(t, tt.content)); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}
