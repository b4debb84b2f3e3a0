package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"tsu-payments-go/internal/chain"
	"tsu-payments-go/internal/common"
	"tsu-payments-go/internal/database"
	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/prime"
	"tsu-payments-go/internal/store"

	"go.uber.org/zap"
)

var treasuryMethods = []models.PaymentMethod{
	models.PaymentMethodEthereum,
	models.PaymentMethodBitcoin,
}

// validateTreasuryAddress rejects an address Prime returned for the wrong chain
func validateTreasuryAddress(method models.PaymentMethod, address string) error {
	switch method {
	case models.PaymentMethodEthereum:
		return chain.ValidateEthereumAddress(address)
	case models.PaymentMethodBitcoin:
		return chain.ValidateBitcoinAddress(address)
	}
	return fmt.Errorf("no treasury for payment method %q", method)
}

func existingTreasuryAddress(ctx context.Context, dbService *database.Service, method models.PaymentMethod) (string, error) {
	address, err := dbService.GetTreasuryAddress(ctx, method)
	if err != nil {
		if errors.Is(err, store.ErrTreasuryNotConfigured) {
			return "", nil
		}
		return "", err
	}
	return address, nil
}

func provisionTreasury(ctx context.Context, dbService *database.Service, primeService *prime.Service, portfolio *models.Portfolio, method models.PaymentMethod) (string, error) {
	wallet, err := primeService.EnsureTreasuryWallet(ctx, portfolio.Id, method)
	if err != nil {
		return "", err
	}

	depositAddress, err := primeService.CreateDepositAddress(ctx, portfolio.Id, wallet, method)
	if err != nil {
		return "", err
	}
	if err := validateTreasuryAddress(method, depositAddress.Address); err != nil {
		return "", fmt.Errorf("prime returned an unusable address: %w", err)
	}

	stored, err := dbService.StoreTreasuryAddress(ctx, database.StoreTreasuryAddressParams{
		Method:   method,
		Address:  depositAddress.Address,
		WalletId: wallet.Id,
	})
	if err != nil {
		return "", err
	}

	zap.L().Info("Treasury address provisioned",
		zap.String("method", string(method)),
		zap.String("network", depositAddress.Network),
		zap.String("address", stored.Address),
		zap.String("wallet_id", wallet.Id))
	return stored.Address, nil
}

func main() {
	force := flag.Bool("force", false, "Provision a new address even if one is already stored")
	flag.Parse()

	ctx := context.Background()

	cfg, _, err := common.LoadConfig()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	primeService, portfolio, err := common.InitializePrime(ctx)
	if err != nil {
		zap.L().Fatal("Failed to initialize Prime", zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.ReportWidth)
	report.Header("TREASURY SETUP")

	var failed []string
	for _, method := range treasuryMethods {
		if !*force {
			existing, err := existingTreasuryAddress(ctx, dbService, method)
			if err != nil {
				zap.L().Error("Failed to read treasury address", zap.String("method", string(method)), zap.Error(err))
				failed = append(failed, string(method))
				continue
			}
			if existing != "" {
				report.Status(true, "%-10s already configured: %s", method, existing)
				continue
			}
		}

		address, err := provisionTreasury(ctx, dbService, primeService, portfolio, method)
		if err != nil {
			zap.L().Error("Failed to provision treasury address",
				zap.String("method", string(method)),
				zap.Error(err))
			report.Status(false, "%-10s failed: %v", method, err)
			failed = append(failed, string(method))
			continue
		}
		report.Status(true, "%-10s %s", method, address)
	}

	if len(failed) > 0 {
		report.Footer(fmt.Sprintf("Setup finished with %d failure(s); re-run to retry", len(failed)))
		zap.L().Warn("Treasury setup completed with failures", zap.Strings("failed_methods", failed))
		return
	}
	report.Footer("Treasury setup complete")
}
