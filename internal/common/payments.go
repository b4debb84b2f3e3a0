package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tsu-payments-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type MethodSettings struct {
	MinConfirmations int   `yaml:"min_confirmations"`
	ToleranceSats    int64 `yaml:"tolerance_sats"`
}

// PaymentsConfig is the optional payments settings file. Zero values keep
// whatever the environment configured.
type PaymentsConfig struct {
	FeeRate  string         `yaml:"fee_rate"`
	Ethereum MethodSettings `yaml:"ethereum"`
	Bitcoin  MethodSettings `yaml:"bitcoin"`
}

// LoadPaymentsConfig reads the payments file. A missing file is not an error.
func LoadPaymentsConfig(paymentsFile string) (*PaymentsConfig, error) {
	if paymentsFile == "" {
		return &PaymentsConfig{}, nil
	}

	var paymentsPath string
	if filepath.IsAbs(paymentsFile) {
		paymentsPath = paymentsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		paymentsPath = filepath.Join(wd, paymentsFile)
	}

	data, err := os.ReadFile(paymentsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			zap.L().Debug("No payments file, using environment settings", zap.String("path", paymentsPath))
			return &PaymentsConfig{}, nil
		}
		return nil, fmt.Errorf("unable to read %s: %w", paymentsFile, err)
	}

	var config PaymentsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", paymentsFile, err)
	}

	if config.Ethereum.MinConfirmations < 0 || config.Bitcoin.MinConfirmations < 0 {
		return nil, fmt.Errorf("min_confirmations must not be negative")
	}
	if config.Bitcoin.ToleranceSats < 0 {
		return nil, fmt.Errorf("bitcoin tolerance_sats must not be negative")
	}
	if config.Ethereum.ToleranceSats != 0 {
		return nil, fmt.Errorf("tolerance_sats only applies to bitcoin")
	}
	if _, err := config.feeRate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (p *PaymentsConfig) feeRate() (decimal.Decimal, error) {
	if p.FeeRate == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(p.FeeRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid fee_rate %q: %w", p.FeeRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("fee_rate must be in [0, 1), got %s", p.FeeRate)
	}
	return rate, nil
}

// Apply overlays the file's non-zero settings onto cfg.
func (p *PaymentsConfig) Apply(cfg *models.Config) {
	if p.Ethereum.MinConfirmations > 0 {
		cfg.Ethereum.MinConfirmations = p.Ethereum.MinConfirmations
	}
	if p.Bitcoin.MinConfirmations > 0 {
		cfg.Bitcoin.MinConfirmations = p.Bitcoin.MinConfirmations
	}
	if p.Bitcoin.ToleranceSats > 0 {
		cfg.Bitcoin.ToleranceSats = p.Bitcoin.ToleranceSats
	}
}

// EffectiveFeeRate returns the configured fee rate, or fallback when the
// file sets none or sets zero.
func (p *PaymentsConfig) EffectiveFeeRate(fallback decimal.Decimal) decimal.Decimal {
	rate, err := p.feeRate()
	if err != nil || rate.IsZero() {
		return fallback
	}
	return rate
}
