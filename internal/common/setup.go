/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"tsu-payments-go/internal/api"
	"tsu-payments-go/internal/chain"
	"tsu-payments-go/internal/config"
	"tsu-payments-go/internal/database"
	"tsu-payments-go/internal/formance"
	"tsu-payments-go/internal/metrics"
	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/prime"
	"tsu-payments-go/internal/store"
	"tsu-payments-go/internal/transport"
	"tsu-payments-go/internal/verifier"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// init loads environment variables from .env file if it exists
func init() {
	// A missing .env is fine; variables can come from the shell or the container.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services is everything the purchase server needs, built from one config.
type Services struct {
	DbService *database.Service
	Ledger    store.PurchaseLedger
	Metrics   *metrics.Metrics
	Purchases *api.PurchaseService
}

// InitializeLogger installs a production zap logger as the global logger.
// When a log file is configured, output is also written to a size-rotated file.
func InitializeLogger(cfg models.LoggingConfig) (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zap.InfoLevel,
		)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
		if rotator != nil {
			_ = rotator.Close()
		}
	}

	return logger, cleanup
}

// LoadConfig reads the environment and overlays the payments file.
func LoadConfig() (*models.Config, *PaymentsConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	payments, err := LoadPaymentsConfig(cfg.PaymentsFile)
	if err != nil {
		return nil, nil, err
	}
	payments.Apply(cfg)
	return cfg, payments, nil
}

// InitializeServices wires storage, chain providers, verifiers and metrics
// into a PurchaseService.
func InitializeServices(ctx context.Context, cfg *models.Config, payments *PaymentsConfig) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	dbService.SetTreasuryOverrides(cfg.Treasury)

	services := &Services{DbService: dbService}

	ledger, err := InitializeLedger(ctx, cfg, dbService)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Ledger = ledger

	m := metrics.New("tsu")

	ethBackend, err := ethereumBackend(cfg.Ethereum)
	if err != nil {
		services.Close()
		return nil, err
	}
	btcBackend, err := bitcoinBackend(cfg.Bitcoin)
	if err != nil {
		services.Close()
		return nil, err
	}

	btcVerifier := verifier.NewBitcoinVerifier(btcBackend, cfg.Bitcoin.ToleranceSats, m)

	purchases, err := api.NewPurchaseService(api.Dependencies{
		Users:    dbService,
		Rates:    dbService,
		Treasury: dbService,
		Ledger:   ledger,
		Ethereum: verifier.NewEthereumVerifier(ethBackend, m),
		Bitcoin:  btcVerifier,
		Health:   dbService,
		Recorder: m,
	}, api.PurchaseSettings{
		FeeRate:             payments.EffectiveFeeRate(api.DefaultFeeRate),
		EthMinConfirmations: int64(cfg.Ethereum.MinConfirmations),
		BtcMinConfirmations: int64(cfg.Bitcoin.MinConfirmations),
		PayPalConfigured:    cfg.PayPal.Configured(),
	})
	if err != nil {
		services.Close()
		return nil, err
	}

	zap.L().Info("Purchase service initialized",
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.Bool("ethereum", cfg.Ethereum.RPCURL != ""),
		zap.Bool("bitcoin", btcVerifier.Configured()),
		zap.Int64("btc_tolerance_sats", btcVerifier.Tolerance()),
		zap.Bool("paypal", cfg.PayPal.Configured()))

	services.Metrics = m
	services.Purchases = purchases
	return services, nil
}

// InitializeDatabaseOnly opens the database without chain providers.
// Useful for admin tools such as rate updates and balance reports.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	dbService.SetTreasuryOverrides(cfg.Treasury)
	return dbService, nil
}

// InitializeLedger selects the purchase ledger backend. The SQLite backend
// shares the database service.
func InitializeLedger(ctx context.Context, cfg *models.Config, dbService *database.Service) (store.PurchaseLedger, error) {
	switch cfg.LedgerBackend {
	case "", config.LedgerBackendSQLite:
		return dbService, nil
	case config.LedgerBackendFormance:
		formanceService, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			return nil, err
		}
		return formanceService, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// InitializePrime connects to Coinbase Prime and resolves the default portfolio.
func InitializePrime(ctx context.Context) (*prime.Service, *models.Portfolio, error) {
	zap.L().Info("Loading Prime API credentials")
	creds, err := loadPrimeCredentials()
	if err != nil {
		return nil, nil, err
	}

	primeService, err := prime.NewService(creds)
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Finding default portfolio")
	defaultPortfolio, err := primeService.FindDefaultPortfolio(ctx)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("Using default portfolio",
		zap.String("name", defaultPortfolio.Name),
		zap.String("id", defaultPortfolio.Id))

	return primeService, defaultPortfolio, nil
}

// Close releases the ledger and the database. A ledger backed by the
// database itself is closed once.
func (cs *Services) Close() {
	if cs.Ledger != nil && cs.Ledger != store.PurchaseLedger(cs.DbService) {
		cs.Ledger.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func ethereumBackend(cfg models.EthereumConfig) (chain.EthereumBackend, error) {
	if cfg.RPCURL == "" {
		zap.L().Warn("ETH_RPC_URL not set, Ethereum purchases disabled")
		return chain.UnconfiguredEthereum(), nil
	}
	provider, err := chain.DialEthereum(cfg.RPCURL, cfg.CallTimeout)
	if err != nil {
		return chain.EthereumBackend{}, err
	}
	return chain.ConfiguredEthereum(provider), nil
}

func bitcoinBackend(cfg models.BitcoinConfig) (chain.BitcoinBackend, error) {
	if !cfg.Enabled {
		zap.L().Warn("Bitcoin purchases disabled")
		return chain.UnconfiguredBitcoin(), nil
	}
	httpClient, err := transport.NewHTTPClient(cfg.CallTimeout)
	if err != nil {
		return chain.BitcoinBackend{}, fmt.Errorf("unable to create http client: %w", err)
	}
	return chain.ConfiguredBitcoin(chain.NewEsploraClient(cfg.APIBaseURL, httpClient, cfg.CallTimeout)), nil
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	var missing []string
	if accessKey == "" {
		missing = append(missing, "PRIME_ACCESS_KEY")
	}
	if passphrase == "" {
		missing = append(missing, "PRIME_PASSPHRASE")
	}
	if signingKey == "" {
		missing = append(missing, "PRIME_SIGNING_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Prime API credentials: %s", strings.Join(missing, ", "))
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
