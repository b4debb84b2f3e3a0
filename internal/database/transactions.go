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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessTransactionParams contains the parameters for a subledger posting
type ProcessTransactionParams struct {
	UserId           string
	Asset            string
	TransactionType  string
	Amount           decimal.Decimal
	PaymentReference string
	PaymentMethod    string
	FiatAmount       decimal.Decimal
	Currency         string
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// ProcessTransaction updates the balance and records the transaction inside
// the caller's database transaction. The caller owns commit and rollback.
func (s *SubledgerService) ProcessTransaction(ctx context.Context, tx *sql.Tx, params ProcessTransactionParams) (*models.Transaction, error) {
	zap.L().Info("Processing transaction",
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset),
		zap.String("type", params.TransactionType),
		zap.String("amount", params.Amount.String()),
		zap.String("payment_reference", params.PaymentReference))

	if params.PaymentReference != "" {
		var existingTxId string
		err := tx.QueryRowContext(ctx, queryCheckDuplicateTransaction, params.PaymentReference).Scan(&existingTxId)
		if err == nil {
			zap.L().Warn("Duplicate payment reference detected, skipping",
				zap.String("payment_reference", params.PaymentReference),
				zap.String("existing_internal_tx_id", existingTxId))
			return nil, fmt.Errorf("%w: payment_reference %s already exists", store.ErrDuplicateTransaction, params.PaymentReference)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
		}
	}

	var currentBalanceStr string
	var accountId string
	var version int64

	err := tx.QueryRowContext(ctx, queryGetAccountBalance, params.UserId, params.Asset).Scan(&accountId, &currentBalanceStr, &version)

	var currentBalance decimal.Decimal
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1

		_, err = tx.ExecContext(ctx, queryInsertAccountBalance, accountId, params.UserId, params.Asset, "0", 1)
		if err != nil {
			return nil, fmt.Errorf("failed to create account balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		currentBalance, err = decimal.NewFromString(currentBalanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
		}
	}

	newBalance := currentBalance.Add(params.Amount)

	transactionId := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, queryInsertTransaction,
		transactionId, params.UserId, params.Asset, params.TransactionType,
		params.Amount.String(), currentBalance.String(), newBalance.String(),
		params.PaymentReference, params.PaymentMethod, params.FiatAmount.String(), params.Currency,
		"confirmed", now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	transaction := &models.Transaction{
		Id:               transactionId,
		UserId:           params.UserId,
		Asset:            params.Asset,
		TransactionType:  params.TransactionType,
		Amount:           params.Amount,
		BalanceBefore:    currentBalance,
		BalanceAfter:     newBalance,
		PaymentReference: params.PaymentReference,
		PaymentMethod:    params.PaymentMethod,
		FiatAmount:       params.FiatAmount,
		Currency:         params.Currency,
		Status:           "confirmed",
		CreatedAt:        now,
		ProcessedAt:      now,
	}

	// Optimistic lock on the balance row
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, newBalance.String(), transactionId, params.UserId, params.Asset, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := s.addJournalEntries(ctx, tx, transaction); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	zap.L().Info("Transaction processed successfully",
		zap.String("transaction_id", transactionId),
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return transaction, nil
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error {
	userAccount := fmt.Sprintf("%s_%s", transaction.UserId, transaction.Asset)

	var entries []journalEntry
	switch transaction.TransactionType {
	case "purchase":
		// User holds more TSU; the reserve owes the user that amount
		entries = []journalEntry{
			{"user_asset", userAccount, transaction.Amount, decimal.Zero},
			{"system_liability", fmt.Sprintf("tsu_issued_%s", transaction.PaymentMethod), decimal.Zero, transaction.Amount},
		}
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId,
			entry.debitAmount.String(), entry.creditAmount.String())
		if err != nil {
			return err
		}
	}

	return nil
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, userId, asset string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.String("asset", asset),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, asset, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var amountStr, balanceBeforeStr, balanceAfterStr, fiatAmountStr string
		err := rows.Scan(&tx.Id, &tx.UserId, &tx.Asset, &tx.TransactionType,
			&amountStr, &balanceBeforeStr, &balanceAfterStr,
			&tx.PaymentReference, &tx.PaymentMethod, &fiatAmountStr, &tx.Currency,
			&tx.Status, &tx.CreatedAt, &tx.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if err := parseAmounts(&tx, amountStr, balanceBeforeStr, balanceAfterStr, fiatAmountStr); err != nil {
			return nil, err
		}

		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

func parseAmounts(tx *models.Transaction, amount, before, after, fiat string) error {
	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return fmt.Errorf("failed to parse amount '%s': %w", amount, err)
	}
	if tx.BalanceBefore, err = decimal.NewFromString(before); err != nil {
		return fmt.Errorf("failed to parse balance before '%s': %w", before, err)
	}
	if tx.BalanceAfter, err = decimal.NewFromString(after); err != nil {
		return fmt.Errorf("failed to parse balance after '%s': %w", after, err)
	}
	if tx.FiatAmount, err = decimal.NewFromString(fiat); err != nil {
		return fmt.Errorf("failed to parse fiat amount '%s': %w", fiat, err)
	}
	return nil
}
