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

	"tsu-payments-go/internal/common"
	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	usersWithBalances int
	totalPurchases    int
	failures          int
}

// accountRows is implemented by ledgers that keep versioned balance rows
type accountRows interface {
	GetAllUserBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)
}

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func printAccountRows(ctx context.Context, report *common.Report, ledger store.PurchaseLedger, userId string) {
	rows, ok := ledger.(accountRows)
	if !ok {
		return
	}
	balances, err := rows.GetAllUserBalances(ctx, userId)
	if err != nil {
		zap.L().Warn("Failed to read balance rows", zap.String("user_id", userId), zap.Error(err))
		return
	}
	for _, b := range balances {
		report.Field("%s row: v%d, last_tx: %s, updated: %s",
			b.Asset,
			b.Version,
			formatTransactionId(b.LastTransactionId),
			b.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func formatReference(ref string) string {
	if ref == "" {
		return "none"
	}
	if len(ref) > 14 {
		return ref[:14] + "..."
	}
	return ref
}

func printPurchase(report *common.Report, tx models.Transaction, isLast bool) {
	report.Item(isLast, "%-9s %18s  for %s %s",
		tx.PaymentMethod,
		common.FormatTSU(tx.Amount),
		tx.FiatAmount.StringFixed(2),
		tx.Currency)
	report.Detail(isLast, "ref: %s  (%s)",
		formatReference(tx.PaymentReference),
		tx.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printUserHeader(report *common.Report, user common.UserInfo, balance decimal.Decimal) {
	report.Section("User: %s (%s)", user.Name, user.Email)
	report.Field("ID: %s", user.Id)
	report.Field("Balance: %s", common.FormatTSU(balance))
}

func processUser(ctx context.Context, report *common.Report, user common.UserInfo, ledger store.PurchaseLedger, history int, reconcile bool, logger *zap.Logger) (int, bool, error) {
	balance, err := ledger.GetUserBalance(ctx, user.Id, store.AssetTSU)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get balance: %w", err)
	}

	if reconcile {
		if err := ledger.ReconcileUserBalance(ctx, user.Id, store.AssetTSU); err != nil {
			logger.Error("Reconciliation failed", zap.String("user_id", user.Id), zap.Error(err))
			return 0, false, err
		}
	}

	if balance.IsZero() {
		return 0, false, nil
	}

	purchases, err := ledger.GetTransactionHistory(ctx, user.Id, store.AssetTSU, history, 0)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get purchases: %w", err)
	}

	printUserHeader(report, user, balance)
	printAccountRows(ctx, report, ledger, user.Id)
	report.Divider()
	for i, tx := range purchases {
		printPurchase(report, tx, i == len(purchases)-1)
	}
	return len(purchases), true, nil
}

func main() {
	ctx := context.Background()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	historyFlag := flag.Int("history", 5, "Number of recent purchases to show per user")
	reconcileFlag := flag.Bool("reconcile", false, "Verify each balance against its purchase journal")
	flag.Parse()

	cfg, _, err := common.LoadConfig()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	logger.Info("Starting balance query",
		zap.String("path", cfg.Database.Path),
		zap.String("ledger_backend", cfg.LedgerBackend))

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	ledger, err := common.InitializeLedger(ctx, cfg, dbService)
	if err != nil {
		logger.Fatal("Failed to initialize ledger", zap.Error(err))
	}

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.WideReportWidth)
	report.Header("TSU BALANCE REPORT")

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		count, hasBalance, err := processUser(ctx, report, user, ledger, *historyFlag, *reconcileFlag, logger)
		if err != nil {
			stats.failures++
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}
		if hasBalance {
			stats.usersWithBalances++
			stats.totalPurchases += count
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users hold TSU (%d recent purchases shown)",
		stats.usersWithBalances, stats.totalUsers, stats.totalPurchases)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d failed", stats.failures)
	}
	report.Footer(summary)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("failures", stats.failures))
}
