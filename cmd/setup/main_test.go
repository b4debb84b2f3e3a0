package main

import (
	"testing"

	"tsu-payments-go/internal/models"
)

func TestValidateTreasuryAddress(t *testing.T) {
	tests := []struct {
		name    string
		method  models.PaymentMethod
		address string
		wantErr bool
	}{
		{"eth ok", models.PaymentMethodEthereum, "0x52908400098527886E0F7030069857D2E4169EE7", false},
		{"btc ok", models.PaymentMethodBitcoin, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", false},
		{"btc address on eth", models.PaymentMethodEthereum, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", true},
		{"eth address on btc", models.PaymentMethodBitcoin, "0x52908400098527886E0F7030069857D2E4169EE7", true},
		{"paypal", models.PaymentMethodPayPal, "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTreasuryAddress(tt.method, tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTreasuryAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
