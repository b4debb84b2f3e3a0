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
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"tsu-payments-go/internal/common"
	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// parseRates turns the flag values into a snapshot. Empty crypto prices are omitted.
func parseRates(tsuPrice string, crypto map[string]string) (decimal.Decimal, map[string]decimal.Decimal, error) {
	price, err := decimal.NewFromString(tsuPrice)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("invalid tsu price %q: %w", tsuPrice, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, nil, fmt.Errorf("tsu price must be positive")
	}

	rates := make(map[string]decimal.Decimal)
	for symbol, raw := range crypto {
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("invalid %s price %q: %w", symbol, raw, err)
		}
		if !value.IsPositive() {
			return decimal.Zero, nil, fmt.Errorf("%s price must be positive", symbol)
		}
		rates[symbol] = value
	}
	return price, rates, nil
}

func printRates(title string, rate *models.TsuRate) {
	report := common.NewReport(os.Stdout, common.ReportWidth)
	report.Header(title)
	report.Line("TSU price (USD): %s", rate.TsuPrice.String())
	symbols := make([]string, 0, len(rate.CryptoRates))
	for symbol := range rate.CryptoRates {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for i, symbol := range symbols {
		report.Item(i == len(symbols)-1, "%-6s %s", symbol, rate.CryptoRates[symbol].String())
	}
	report.Line("Set at: %s", rate.CreatedAt.Format("2006-01-02 15:04:05"))
	report.Rule()
}

func main() {
	ctx := context.Background()

	tsuFlag := flag.String("tsu-price", "", "USD price of one TSU (omit to show current rates)")
	ethFlag := flag.String("eth", "", "USD price of one ETH")
	btcFlag := flag.String("btc", "", "USD price of one BTC")
	flag.Parse()

	cfg, _, err := common.LoadConfig()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if *tsuFlag == "" {
		current, err := dbService.GetTsuRates(ctx)
		if errors.Is(err, store.ErrRatesUnavailable) {
			fmt.Println("No active rates. Set them with --tsu-price, --eth and --btc")
			return
		}
		if err != nil {
			logger.Fatal("Failed to read rates", zap.Error(err))
		}
		printRates("CURRENT TSU RATES", current)
		return
	}

	price, crypto, err := parseRates(*tsuFlag, map[string]string{"ETH": *ethFlag, "BTC": *btcFlag})
	if err != nil {
		logger.Fatal("Invalid rates", zap.Error(err))
	}

	rate, err := dbService.SetTsuRates(ctx, price, crypto)
	if err != nil {
		logger.Fatal("Failed to update rates", zap.Error(err))
	}
	printRates("TSU RATES UPDATED", rate)
}
