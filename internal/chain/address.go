package chain

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

const (
	bitcoinMainnetHRP     = "bc"
	bitcoinP2PKHVersion   = 0x00
	bitcoinP2SHVersion    = 0x05
	bitcoinHash160Length  = 20
	bitcoinWitnessVersion = 0
)

// ValidateEthereumAddress checks for a 20-byte hex address
func ValidateEthereumAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid ethereum address %q", address)
	}
	return nil
}

// SameEthereumAddress compares two addresses case-insensitively
func SameEthereumAddress(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// ValidateBitcoinAddress accepts mainnet base58 (P2PKH, P2SH) and segwit v0
// bech32 addresses.
// TODO: accept bech32m (taproot, witness v1) once btcutil is upgraded to a release with bech32m support.
func ValidateBitcoinAddress(address string) error {
	if strings.HasPrefix(strings.ToLower(address), bitcoinMainnetHRP+"1") {
		hrp, data, err := bech32.Decode(address)
		if err != nil {
			return fmt.Errorf("invalid bech32 address %q: %w", address, err)
		}
		if hrp != bitcoinMainnetHRP {
			return fmt.Errorf("address %q is not a mainnet address", address)
		}
		if len(data) < 1 || data[0] != bitcoinWitnessVersion {
			return fmt.Errorf("unsupported witness version in %q", address)
		}
		program, err := bech32.ConvertBits(data[1:], 5, 8, false)
		if err != nil {
			return fmt.Errorf("invalid witness program in %q: %w", address, err)
		}
		if len(program) != 20 && len(program) != 32 {
			return fmt.Errorf("invalid witness program length %d in %q", len(program), address)
		}
		return nil
	}

	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return fmt.Errorf("invalid base58 address %q: %w", address, err)
	}
	if version != bitcoinP2PKHVersion && version != bitcoinP2SHVersion {
		return fmt.Errorf("address %q is not a mainnet address", address)
	}
	if len(payload) != bitcoinHash160Length {
		return fmt.Errorf("invalid address payload length %d in %q", len(payload), address)
	}
	return nil
}
