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

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IsPaymentProcessed reports whether a payment reference has already been credited
func (s *Service) IsPaymentProcessed(ctx context.Context, paymentReference string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, queryCheckProcessedPayment, paymentReference).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		zap.L().Error("Failed to check processed payment",
			zap.String("payment_reference", paymentReference),
			zap.Error(err))
		return false, fmt.Errorf("unable to check processed payment: %w", err)
	}
	return true, nil
}

// CommitPurchase records the processed payment, credits the TSU balance and
// appends the purchase transaction in a single database transaction. The
// processed_payments primary key closes the race between two requests
// carrying the same reference: the loser gets ErrPaymentAlreadyProcessed.
func (s *Service) CommitPurchase(ctx context.Context, params store.CommitPurchaseParams) (*models.Transaction, error) {
	if params.PaymentReference == "" {
		return nil, fmt.Errorf("payment reference cannot be empty")
	}
	if !params.TsuAmount.IsPositive() {
		return nil, fmt.Errorf("tsu amount must be positive, got %s", params.TsuAmount.String())
	}

	verificationData := string(params.VerificationData)
	if verificationData == "" {
		verificationData = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, queryInsertProcessedPayment,
		params.PaymentReference, string(params.PaymentMethod), params.UserId,
		params.FiatAmount.String(), params.TsuAmount.String(), verificationData, "")
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Warn("Payment reference already processed",
				zap.String("payment_reference", params.PaymentReference),
				zap.String("user_id", params.UserId))
			return nil, fmt.Errorf("%w: %s", store.ErrPaymentAlreadyProcessed, params.PaymentReference)
		}
		return nil, fmt.Errorf("failed to record processed payment: %w", err)
	}

	transaction, err := s.subledger.ProcessTransaction(ctx, tx, ProcessTransactionParams{
		UserId:           params.UserId,
		Asset:            store.AssetTSU,
		TransactionType:  "purchase",
		Amount:           params.TsuAmount,
		PaymentReference: params.PaymentReference,
		PaymentMethod:    string(params.PaymentMethod),
		FiatAmount:       params.FiatAmount,
		Currency:         params.Currency,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			return nil, fmt.Errorf("%w: %v", store.ErrPaymentAlreadyProcessed, err)
		}
		return nil, fmt.Errorf("failed to credit purchase: %w", err)
	}

	if _, err := tx.ExecContext(ctx, queryLinkProcessedPayment, transaction.Id, params.PaymentReference); err != nil {
		return nil, fmt.Errorf("failed to link processed payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrPaymentAlreadyProcessed, params.PaymentReference)
		}
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	zap.L().Info("Purchase committed",
		zap.String("payment_reference", params.PaymentReference),
		zap.String("payment_method", string(params.PaymentMethod)),
		zap.String("user_id", params.UserId),
		zap.String("tsu_amount", params.TsuAmount.String()),
		zap.String("new_balance", transaction.BalanceAfter.String()))

	return transaction, nil
}

// GetProcessedPayment returns the replay-guard record for a reference
func (s *Service) GetProcessedPayment(ctx context.Context, paymentReference string) (*models.ProcessedPayment, error) {
	var payment models.ProcessedPayment
	var method, amountStr, tsuStr, data string
	err := s.db.QueryRowContext(ctx, queryGetProcessedPayment, paymentReference).Scan(
		&payment.PaymentReference, &method, &payment.UserId, &amountStr, &tsuStr, &data, &payment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("processed payment not found: %s", paymentReference)
		}
		return nil, fmt.Errorf("unable to query processed payment: %w", err)
	}

	payment.PaymentMethod = models.PaymentMethod(method)
	payment.VerificationData = []byte(data)
	if payment.AmountProcessed, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount processed '%s': %w", amountStr, err)
	}
	if payment.TsuCredited, err = decimal.NewFromString(tsuStr); err != nil {
		return nil, fmt.Errorf("failed to parse tsu credited '%s': %w", tsuStr, err)
	}
	return &payment, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
