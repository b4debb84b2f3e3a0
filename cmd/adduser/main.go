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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"tsu-payments-go/internal/chain"
	"tsu-payments-go/internal/common"
	"tsu-payments-go/internal/database"
	"tsu-payments-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

// verifiedAddresses validates the optional wallet flags and returns them keyed by method
func verifiedAddresses(eth, btc string) (map[models.PaymentMethod]string, error) {
	addresses := make(map[models.PaymentMethod]string)
	if eth != "" {
		if err := chain.ValidateEthereumAddress(eth); err != nil {
			return nil, err
		}
		addresses[models.PaymentMethodEthereum] = eth
	}
	if btc != "" {
		if err := chain.ValidateBitcoinAddress(btc); err != nil {
			return nil, err
		}
		addresses[models.PaymentMethodBitcoin] = btc
	}
	return addresses, nil
}

func lookupOrCreateUser(ctx context.Context, dbService *database.Service, name, email string) (*models.User, bool, error) {
	user, err := dbService.CreateUser(ctx, uuid.New().String(), name, email)
	if err == nil {
		return user, true, nil
	}
	if !strings.Contains(err.Error(), "already exists") {
		return nil, false, err
	}
	existing, lookupErr := dbService.GetUserByEmail(ctx, email)
	if lookupErr != nil {
		return nil, false, lookupErr
	}
	return existing, false, nil
}

func main() {
	ctx := context.Background()

	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	ethFlag := flag.String("eth", "", "Verified Ethereum address (optional)")
	btcFlag := flag.String("btc", "", "Verified Bitcoin address (optional)")
	flag.Parse()

	cfg, _, err := common.LoadConfig()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --name and --email")
	}
	if err := validateName(*nameFlag); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}
	addresses, err := verifiedAddresses(*ethFlag, *btcFlag)
	if err != nil {
		zap.L().Fatal("Invalid wallet address", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	user, created, err := lookupOrCreateUser(ctx, dbService, *nameFlag, *emailFlag)
	if err != nil {
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}
	if !created {
		zap.L().Info("User already exists, updating verified addresses", zap.String("id", user.Id))
	}

	for method, address := range addresses {
		if err := dbService.SetVerifiedAddress(ctx, user.Id, method, address); err != nil {
			zap.L().Fatal("Failed to record verified address",
				zap.String("method", string(method)),
				zap.Error(err))
		}
	}

	report := common.NewReport(os.Stdout, common.ReportWidth)
	report.Header("USER READY")
	report.Line("ID:    %s", user.Id)
	report.Line("Name:  %s", user.Name)
	report.Line("Email: %s", user.Email)
	if address, ok := addresses[models.PaymentMethodEthereum]; ok {
		report.Line("ETH:   %s", address)
	}
	if address, ok := addresses[models.PaymentMethodBitcoin]; ok {
		report.Line("BTC:   %s", address)
	}
	report.Rule()

	zap.L().Info("User ready",
		zap.String("id", user.Id),
		zap.Bool("created", created),
		zap.Int("verified_addresses", len(addresses)))
}
