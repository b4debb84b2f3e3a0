package prime

import (
	"context"
	"testing"

	"tsu-payments-go/internal/models"
)

func TestTreasuryAssets(t *testing.T) {
	eth, ok := treasuryAssets[models.PaymentMethodEthereum]
	if !ok || eth.Symbol != "ETH" || eth.Network != "ethereum-mainnet" {
		t.Errorf("unexpected ethereum treasury asset: %+v", eth)
	}
	btc, ok := treasuryAssets[models.PaymentMethodBitcoin]
	if !ok || btc.Symbol != "BTC" || btc.Network != "bitcoin-mainnet" {
		t.Errorf("unexpected bitcoin treasury asset: %+v", btc)
	}
	if _, ok := treasuryAssets[models.PaymentMethodPayPal]; ok {
		t.Error("paypal has no on-chain treasury")
	}
}

func TestTreasuryWalletName(t *testing.T) {
	if got := treasuryWalletName("ETH"); got != "TSU Treasury ETH" {
		t.Errorf("treasuryWalletName = %q", got)
	}
}

func TestUnknownMethodRejectedBeforeAPICall(t *testing.T) {
	s := &Service{}
	if _, err := s.EnsureTreasuryWallet(context.Background(), "portfolio", models.PaymentMethodPayPal); err == nil {
		t.Error("expected error for paypal treasury wallet")
	}
	if _, err := s.CreateDepositAddress(context.Background(), "portfolio", &models.Wallet{Id: "w"}, "dogecoin"); err == nil {
		t.Error("expected error for unknown method")
	}
}
