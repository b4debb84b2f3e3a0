package chain

import "testing"

func TestValidateBitcoinAddress(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true},
		{"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", true},
		{"BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4", true},
		{"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t5", false}, // bad checksum
		{"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", false}, // testnet
		{"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", false},         // bad checksum
		{"", false},
		{"0x1111111111111111111111111111111111111111", false},
	}
	for _, tt := range tests {
		err := ValidateBitcoinAddress(tt.address)
		if tt.valid && err != nil {
			t.Errorf("ValidateBitcoinAddress(%q) unexpected error: %v", tt.address, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidateBitcoinAddress(%q) expected error", tt.address)
		}
	}
}

func TestValidateEthereumAddress(t *testing.T) {
	if err := ValidateEthereumAddress("0x1111111111111111111111111111111111111111"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateEthereumAddress("0x1111"); err == nil {
		t.Error("expected error for short address")
	}
	if err := ValidateEthereumAddress("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"); err == nil {
		t.Error("expected error for bitcoin address")
	}
}

func TestSameEthereumAddress(t *testing.T) {
	if !SameEthereumAddress("0xABCDEF0000000000000000000000000000000001", "0xabcdef0000000000000000000000000000000001") {
		t.Error("expected case-insensitive match")
	}
	if SameEthereumAddress("", "") {
		t.Error("empty addresses must never match")
	}
	if SameEthereumAddress("0xDEAD000000000000000000000000000000000000", "0xABCD000000000000000000000000000000000000") {
		t.Error("different addresses must not match")
	}
}
